package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirofedurco/EB-gridmaker/internal/grid"
	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

func TestBindGrid_RecordsOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta.Order)

	b, err := s.BindGrid(ctx, testOrder(), 1000)
	require.NoError(t, err)
	assert.Equal(t, Binding{}, b)

	meta, err = s.Meta(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta.Order)
	assert.True(t, meta.Order.Equal(testOrder()))
	assert.Equal(t, testOrder().Fingerprint(), meta.Fingerprint)
	assert.Equal(t, 1000, meta.ChunkSize)
}

func TestBindGrid_KeepsLargestChunk(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.BindGrid(ctx, testOrder(), 1000)
	require.NoError(t, err)

	b, err := s.BindGrid(ctx, testOrder(), 10)
	require.NoError(t, err)
	assert.Equal(t, Binding{PreviousChunkSize: 1000}, b)

	b, err = s.BindGrid(ctx, testOrder(), 10)
	require.NoError(t, err)
	assert.Equal(t, Binding{PreviousChunkSize: 1000}, b)
}

func TestBindGrid_Growth(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.BindGrid(ctx, testOrder(), 10)
	require.NoError(t, err)

	leading := grid.MustOrder(
		grid.Dimension{Name: "a", Values: []float64{1, 2, 3, 4}},
		grid.Dimension{Name: "b", Values: []float64{1, 2, 3, 4}},
	)
	b, err := s.BindGrid(ctx, leading, 10)
	require.NoError(t, err)
	assert.True(t, b.Grown)

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(16), meta.Order.Size())

	inner := grid.MustOrder(
		grid.Dimension{Name: "a", Values: []float64{1, 2, 3, 4}},
		grid.Dimension{Name: "b", Values: []float64{1, 2, 3, 4, 5}},
	)
	_, err = s.BindGrid(ctx, inner, 10)
	require.Error(t, err)
	assert.True(t, model.IsConfig(err))

	inserted := grid.MustOrder(
		grid.Dimension{Name: "a", Values: []float64{1, 1.5, 2, 3, 4}},
		grid.Dimension{Name: "b", Values: []float64{1, 2, 3, 4}},
	)
	_, err = s.BindGrid(ctx, inserted, 10)
	require.Error(t, err)
	assert.True(t, model.IsConfig(err))
}

func TestBindGrid_GrowthClearsMarker(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.BindGrid(ctx, testOrder(), 10)
	require.NoError(t, err)
	require.NoError(t, s.InsertObservation(ctx, testObservation(5)))

	// Rebinding the same grid keeps the marker.
	b, err := s.BindGrid(ctx, testOrder(), 10)
	require.NoError(t, err)
	assert.False(t, b.Grown)
	last, ok, err := s.LastIndex(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(5), last)

	grown := grid.MustOrder(
		grid.Dimension{Name: "a", Values: []float64{1, 2, 3, 4}},
		grid.Dimension{Name: "b", Values: []float64{1, 2, 3, 4}},
	)
	b, err = s.BindGrid(ctx, grown, 10)
	require.NoError(t, err)
	assert.Equal(t, Binding{PreviousChunkSize: 10, Grown: true}, b)

	_, ok, err = s.LastIndex(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a marker from the old shuffle must not survive growth")

	pos, err := s.SearchForBreakpoint(ctx, []int64{3, 5, 7})
	require.NoError(t, err)
	assert.Equal(t, -1, pos)

	ids, err := s.CommittedIDs(ctx)
	require.NoError(t, err)
	assert.True(t, ids.Contains(5), "stored rows are kept")
}
