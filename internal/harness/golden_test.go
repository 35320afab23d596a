package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// To regenerate:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden_ToyFull(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "toy_full"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_ShardedMerge(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "sharded_merge"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestNewSnapshot(t *testing.T) {
	r := NewResult()
	r.Database = "main"
	r.Runs = []RunOutcome{
		{Database: "main", Interrupted: true, Simulated: []int64{1, 4}, Committed: []int64{1}},
		{Database: "main", Error: "SIMULATE"},
	}
	r.databases["main"] = &DatabaseState{Marker: int64p(1)}

	snap := NewSnapshot("example", r)
	assert.Equal(t, []RunSnapshot{
		{Database: "main", Interrupted: true},
		{Database: "main", Error: "SIMULATE"},
	}, snap.Runs)
	assert.True(t, snap.Marker)
	assert.NotNil(t, snap.Nodes, "an empty table snapshots as []")
}
