package grid

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

func smallOrder(t *testing.T) Order {
	t.Helper()
	o, err := NewOrder(
		Dimension{Name: "a", Values: []float64{10, 20, 30}},
		Dimension{Name: "b", Values: []float64{1, 2, 3, 4}},
	)
	require.NoError(t, err)
	return o
}

func TestOrder_PlaceValues(t *testing.T) {
	o := MustOrder(
		Dimension{Name: "a", Values: []float64{1, 2, 3}},
		Dimension{Name: "b", Values: []float64{1, 2, 3, 4}},
		Dimension{Name: "c", Values: []float64{1, 2, 3, 4, 5}},
	)
	assert.Equal(t, []int64{20, 5, 1}, o.PlaceValues())
	assert.Equal(t, int64(60), o.Size())
}

func TestOrder_DecodeCoversEveryTupleOnce(t *testing.T) {
	o := smallOrder(t)
	require.Equal(t, int64(12), o.Size())

	seen := make(map[string]int64)
	for id := int64(0); id < o.Size(); id++ {
		node, err := o.Decode(id)
		require.NoError(t, err)
		assert.Equal(t, id, node.ID)

		key := fmt.Sprint(node.Indices)
		prev, dup := seen[key]
		require.False(t, dup, "ids %d and %d decode to %s", prev, id, key)
		seen[key] = id

		back, err := o.Encode(node.Indices)
		require.NoError(t, err)
		assert.Equal(t, id, back)
	}
	assert.Len(t, seen, 12)
}

func TestOrder_DecodeValues(t *testing.T) {
	o := smallOrder(t)

	node, err := o.Decode(7)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, node.Indices)
	assert.Equal(t, []float64{20, 4}, node.Values)
}

func TestOrder_DecodeOutOfRange(t *testing.T) {
	o := smallOrder(t)

	for _, id := range []int64{12, 13, 1 << 40, -1} {
		_, err := o.Decode(id)
		require.Error(t, err, "id %d", id)
		assert.True(t, model.IsRange(err), "id %d: %v", id, err)
	}
}

func TestOrder_EncodeRejectsBadIndices(t *testing.T) {
	o := smallOrder(t)

	_, err := o.Encode([]int{0})
	assert.True(t, model.IsRange(err))

	_, err = o.Encode([]int{3, 0})
	assert.True(t, model.IsRange(err))

	_, err = o.Encode([]int{0, -1})
	assert.True(t, model.IsRange(err))
}

func TestOrder_AppendToLeadingDimensionPreservesIDs(t *testing.T) {
	old := smallOrder(t)
	grown := MustOrder(
		Dimension{Name: "a", Values: []float64{10, 20, 30, 40}},
		Dimension{Name: "b", Values: []float64{1, 2, 3, 4}},
	)

	require.NoError(t, grown.Extends(old))
	require.NoError(t, grown.PreservesIDs(old))
	assert.Equal(t, int64(16), grown.Size())

	for id := int64(0); id < old.Size(); id++ {
		before, err := old.Decode(id)
		require.NoError(t, err)
		after, err := grown.Decode(id)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	}
}

func TestOrder_AppendToInnerDimensionRenumbers(t *testing.T) {
	old := smallOrder(t)
	grown := MustOrder(
		Dimension{Name: "a", Values: []float64{10, 20, 30}},
		Dimension{Name: "b", Values: []float64{1, 2, 3, 4, 5}},
	)

	require.NoError(t, grown.Extends(old))
	err := grown.PreservesIDs(old)
	require.Error(t, err)
	assert.True(t, model.IsConfig(err))
}

func TestOrder_ExtendsRejectsInsertion(t *testing.T) {
	old := smallOrder(t)

	tests := []struct {
		name  string
		order Order
	}{
		{"inserted value", MustOrder(
			Dimension{Name: "a", Values: []float64{10, 15, 20, 30}},
			Dimension{Name: "b", Values: []float64{1, 2, 3, 4}},
		)},
		{"removed value", MustOrder(
			Dimension{Name: "a", Values: []float64{10, 20}},
			Dimension{Name: "b", Values: []float64{1, 2, 3, 4}},
		)},
		{"reordered dimensions", MustOrder(
			Dimension{Name: "b", Values: []float64{1, 2, 3, 4}},
			Dimension{Name: "a", Values: []float64{10, 20, 30}},
		)},
		{"extra dimension", MustOrder(
			Dimension{Name: "a", Values: []float64{10, 20, 30}},
			Dimension{Name: "b", Values: []float64{1, 2, 3, 4}},
			Dimension{Name: "c", Values: []float64{0}},
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Extends(old)
			require.Error(t, err)
			assert.True(t, model.IsConfig(err))
		})
	}
}

func TestNewOrder_Invalid(t *testing.T) {
	_, err := NewOrder()
	assert.True(t, model.IsConfig(err))

	_, err = NewOrder(Dimension{Name: "empty"})
	assert.True(t, model.IsConfig(err))

	_, err = NewOrder(Dimension{Values: []float64{1}})
	assert.True(t, model.IsConfig(err))

	dims := make([]Dimension, 64)
	for i := range dims {
		dims[i] = Dimension{Name: fmt.Sprintf("d%d", i), Values: []float64{0, 1}}
	}
	_, err = NewOrder(dims...)
	assert.True(t, model.IsConfig(err), "2^64 nodes must overflow")
}

func TestOrder_JSON(t *testing.T) {
	o := smallOrder(t)

	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"a","values":[10,20,30]},{"name":"b","values":[1,2,3,4]}]`, string(data))

	var back Order
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(o))
	assert.Equal(t, o.Fingerprint(), back.Fingerprint())
}

func TestOrder_Fingerprint(t *testing.T) {
	o := smallOrder(t)
	fp := o.Fingerprint()
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, smallOrder(t).Fingerprint())

	changed := MustOrder(
		Dimension{Name: "a", Values: []float64{10, 20, 31}},
		Dimension{Name: "b", Values: []float64{1, 2, 3, 4}},
	)
	assert.NotEqual(t, fp, changed.Fingerprint())

	// NFC and NFD spellings of the same name hash identically.
	nfc := MustOrder(Dimension{Name: "\u00e9", Values: []float64{1}})
	nfd := MustOrder(Dimension{Name: "e\u0301", Values: []float64{1}})
	assert.Equal(t, nfc.Fingerprint(), nfd.Fingerprint())
}

func TestOrder_Canonical(t *testing.T) {
	o := MustOrder(
		Dimension{Name: "q", Values: []float64{0.1, 1}},
		Dimension{Name: "t<eff>", Values: []float64{4000}},
	)
	assert.Equal(t,
		`{"dimensions":[{"name":"q","values":[0.1,1]},{"name":"t<eff>","values":[4000]}]}`,
		string(o.canonical()))
}
