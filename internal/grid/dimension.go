package grid

import (
	"fmt"
	"math"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

// Dimension is a named, ordered array of values for one grid parameter.
//
// Once a grid has been partly evaluated its dimensions may only grow by
// appending values at the end; inserting or reordering values changes the
// meaning of node IDs that are already stored.
type Dimension struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Len returns the number of values in the dimension.
func (d Dimension) Len() int {
	return len(d.Values)
}

// IndexOf returns the position of v in the dimension, or -1.
func (d Dimension) IndexOf(v float64) int {
	for i, x := range d.Values {
		if x == v {
			return i
		}
	}
	return -1
}

func (d Dimension) validate() error {
	if d.Name == "" {
		return model.Configf("dimension name is empty")
	}
	if len(d.Values) == 0 {
		return model.Configf("dimension %q has no values", d.Name)
	}
	for i, v := range d.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.Configf("dimension %q value %d is not finite", d.Name, i)
		}
	}
	return nil
}

// Arange returns the values start, start+step, ... strictly below stop (above
// stop for a negative step), rounded to the given number of decimals. The
// number of values is ceil((stop-start)/step), so a stop that is not a whole
// number of steps away from start is still excluded.
func Arange(start, stop, step float64, decimals int) ([]float64, error) {
	if step == 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil, model.Configf("range step must be finite and non-zero, got %v", step)
	}
	n := math.Ceil((stop - start) / step)
	if n <= 0 || math.IsNaN(n) {
		return nil, model.Configf("range [%v, %v) with step %v is empty", start, stop, step)
	}
	if n > math.MaxInt32 {
		return nil, model.Configf("range [%v, %v) with step %v is too large", start, stop, step)
	}

	values := make([]float64, int(n))
	for k := range values {
		values[k] = Round(start+float64(k)*step, decimals)
	}
	return values, nil
}

// Concat joins value segments in order.
func Concat(segments ...[]float64) []float64 {
	var n int
	for _, s := range segments {
		n += len(s)
	}
	out := make([]float64, 0, n)
	for _, s := range segments {
		out = append(out, s...)
	}
	return out
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func (d Dimension) String() string {
	return fmt.Sprintf("%s[%d]", d.Name, len(d.Values))
}
