// Package testutil provides deterministic fixtures shared by package tests:
// a toy binary grid with known validity outcomes and an in-process simulator.
package testutil

import (
	"github.com/mirofedurco/EB-gridmaker/internal/grid"
	"github.com/mirofedurco/EB-gridmaker/internal/schema"
)

// ToyOrder returns a binary sampling order with N = 12 nodes.
//
// With q = 1 the critical potentials are L1 = 3.75 and L2 = L3 ~ 3.2068, and
// the primary potentials of radii 0.1, 0.3 and 0.5 are ~11.02, ~4.49 and
// ~3.42. Radii 0.1 and 0.3 are therefore detached candidates, accepted for
// secondary radii 0.1 and 0.3; radius 0.5 is an overcontact, accepted only
// for the first secondary radius. See ToyValidIDs.
func ToyOrder() grid.Order {
	return grid.MustOrder(
		grid.Dimension{Name: "mass_ratio", Values: []float64{1.0}},
		grid.Dimension{Name: "primary_radius", Values: []float64{0.1, 0.3, 0.5}},
		grid.Dimension{Name: "secondary_radius", Values: []float64{0.1, 0.3, 0.5, 0.6}},
		grid.Dimension{Name: "t_eff", Values: []float64{5000}},
		grid.Dimension{Name: "t_eff", Values: []float64{5000}},
		grid.Dimension{Name: "inclination", Values: []float64{0.5}},
	)
}

// ToyValidIDs are the valid nodes of ToyOrder, ascending.
var ToyValidIDs = []int64{0, 1, 4, 5, 8}

// ToyDetachedIDs and ToyOvercontactIDs split ToyValidIDs by morphology.
var (
	ToyDetachedIDs    = []int64{0, 1, 4, 5}
	ToyOvercontactIDs = []int64{8}
)

// ToyPassbands are the passbands used with the toy grid.
var ToyPassbands = []string{"Kepler", "TESS"}

// ToyLayout is the standard parameter columns with ToyPassbands.
func ToyLayout() schema.Layout {
	l, err := schema.NewLayout(schema.DefaultParameterColumns(), ToyPassbands, nil)
	if err != nil {
		panic(err)
	}
	return l
}
