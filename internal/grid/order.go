package grid

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

// Positions of the binary-grid parameters within the sampling order.
const (
	AxisMassRatio = iota
	AxisPrimaryRadius
	AxisSecondaryRadius
	AxisPrimaryTeff
	AxisSecondaryTeff
	AxisInclination

	// BinaryArity is the number of dimensions of a binary grid.
	BinaryArity
)

// Node is a decoded grid node: the parameter values and the index of each
// value within its dimension, in sampling order.
type Node struct {
	ID      int64
	Values  []float64
	Indices []int
}

// Order is an ordered list of dimensions defining a mixed-radix numbering of
// every combination of their values. The first dimension is the most
// significant digit.
//
// Order is immutable and safe for concurrent use.
type Order struct {
	dims  []Dimension
	place []int64
	size  int64
}

// NewOrder builds a sampling order. Dimensions may repeat: two positions can
// draw from the same named array.
func NewOrder(dims ...Dimension) (Order, error) {
	if len(dims) == 0 {
		return Order{}, model.Configf("sampling order is empty")
	}

	own := make([]Dimension, len(dims))
	for i, d := range dims {
		if err := d.validate(); err != nil {
			return Order{}, err
		}
		own[i] = Dimension{Name: d.Name, Values: append([]float64(nil), d.Values...)}
	}

	place := make([]int64, len(own))
	size := int64(1)
	for i := len(own) - 1; i >= 0; i-- {
		place[i] = size
		n := int64(own[i].Len())
		if size > math.MaxInt64/n {
			return Order{}, model.Configf("grid size overflows int64 at dimension %d (%s)", i, own[i].Name)
		}
		size *= n
	}

	return Order{dims: own, place: place, size: size}, nil
}

// MustOrder is NewOrder that panics on error. Intended for tests and fixed tables.
func MustOrder(dims ...Dimension) Order {
	o, err := NewOrder(dims...)
	if err != nil {
		panic(err)
	}
	return o
}

// Size returns N, the number of nodes in the grid.
func (o Order) Size() int64 {
	return o.size
}

// Len returns the number of dimensions.
func (o Order) Len() int {
	return len(o.dims)
}

// Dimension returns the dimension at position i.
func (o Order) Dimension(i int) Dimension {
	return o.dims[i]
}

// Dimensions returns a copy of the dimensions in sampling order.
func (o Order) Dimensions() []Dimension {
	out := make([]Dimension, len(o.dims))
	for i, d := range o.dims {
		out[i] = Dimension{Name: d.Name, Values: append([]float64(nil), d.Values...)}
	}
	return out
}

// PlaceValues returns the weight of each digit: the product of the sizes of
// all less significant dimensions.
func (o Order) PlaceValues() []int64 {
	return append([]int64(nil), o.place...)
}

// Encode maps one index per dimension to its node ID.
func (o Order) Encode(indices []int) (int64, error) {
	if len(indices) != len(o.dims) {
		return 0, model.Rangef("expected %d indices, got %d", len(o.dims), len(indices))
	}
	var id int64
	for i, idx := range indices {
		if idx < 0 || idx >= o.dims[i].Len() {
			return 0, model.Rangef("index %d out of range for dimension %d (%s) of size %d",
				idx, i, o.dims[i].Name, o.dims[i].Len())
		}
		id += int64(idx) * o.place[i]
	}
	return id, nil
}

// Decode maps a node ID in [0, N) back to its parameter values and indices.
// It is the exact inverse of Encode.
func (o Order) Decode(id int64) (Node, error) {
	if id < 0 || id >= o.size {
		return Node{}, model.Rangef("node id %d outside grid of size %d", id, o.size)
	}

	node := Node{
		ID:      id,
		Values:  make([]float64, len(o.dims)),
		Indices: make([]int, len(o.dims)),
	}
	rem := id
	for i, d := range o.dims {
		idx := rem / o.place[i]
		rem %= o.place[i]
		node.Indices[i] = int(idx)
		node.Values[i] = d.Values[idx]
	}
	return node, nil
}

// Extends reports whether o is a legal growth of previous: same dimensions in
// the same positions, each keeping all of its old values as a prefix.
func (o Order) Extends(previous Order) error {
	if len(previous.dims) != len(o.dims) {
		return model.Configf("sampling order has %d dimensions, previously %d", len(o.dims), len(previous.dims))
	}
	for i, old := range previous.dims {
		cur := o.dims[i]
		if cur.Name != old.Name {
			return model.Configf("dimension %d is %q, previously %q", i, cur.Name, old.Name)
		}
		if cur.Len() < old.Len() {
			return model.Configf("dimension %q shrank from %d to %d values", cur.Name, old.Len(), cur.Len())
		}
		for j, v := range old.Values {
			if cur.Values[j] != v {
				return model.Configf("dimension %q value %d changed from %v to %v; values may only be appended",
					cur.Name, j, v, cur.Values[j])
			}
		}
	}
	return nil
}

// PreservesIDs reports whether every node ID of previous decodes to the same
// indices under o. That holds when o extends previous and only the most
// significant dimension grew; growth anywhere else changes place values.
func (o Order) PreservesIDs(previous Order) error {
	if err := o.Extends(previous); err != nil {
		return err
	}
	for i := 1; i < len(o.dims); i++ {
		if o.dims[i].Len() != previous.dims[i].Len() {
			return model.Configf("dimension %d (%s) grew from %d to %d values; stored node ids would be renumbered",
				i, o.dims[i].Name, previous.dims[i].Len(), o.dims[i].Len())
		}
	}
	return nil
}

// Equal reports whether both orders define the same grid.
func (o Order) Equal(other Order) bool {
	return o.Extends(other) == nil && other.Extends(o) == nil
}

// MarshalJSON encodes the order as its list of dimensions.
func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.dims)
}

// UnmarshalJSON decodes and validates a list of dimensions.
func (o *Order) UnmarshalJSON(data []byte) error {
	var dims []Dimension
	if err := json.Unmarshal(data, &dims); err != nil {
		return fmt.Errorf("decode sampling order: %w", err)
	}
	parsed, err := NewOrder(dims...)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

func (o Order) String() string {
	return fmt.Sprintf("%v (N=%d)", o.dims, o.size)
}
