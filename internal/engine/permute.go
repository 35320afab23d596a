package engine

import (
	"math/rand/v2"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

// DefaultSeed seeds the node permutation. Every machine working on the same
// grid must use the same seed so their shards are disjoint.
const DefaultSeed = 42

// Permutation returns the ids 0..n-1 shuffled by a Fisher-Yates pass driven
// by a PCG generator seeded with seed. The result depends only on n and seed.
func Permutation(n int64, seed uint64) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i)
	}
	r := rand.New(rand.NewPCG(seed, seed))
	for i := n - 1; i > 0; i-- {
		j := r.Int64N(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// Shard returns the slice ids[int(bottom*N):int(top*N)] where N = len(ids).
// Boundaries must satisfy 0 <= bottom <= top <= 1.
func Shard(ids []int64, bottom, top float64) ([]int64, error) {
	if bottom < 0 || top > 1 || bottom > top {
		return nil, model.Configf("invalid shard boundaries [%v, %v): need 0 <= bottom <= top <= 1", bottom, top)
	}
	n := float64(len(ids))
	return ids[int(bottom*n):int(top*n)], nil
}

// chunks splits ids into consecutive slices of at most size elements.
func chunks(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = max(len(ids), 1)
	}
	out := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}
