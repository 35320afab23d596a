package engine

import (
	"github.com/mirofedurco/EB-gridmaker/internal/grid"
	"github.com/mirofedurco/EB-gridmaker/internal/roche"
	"github.com/mirofedurco/EB-gridmaker/internal/validity"
)

// Aux holds the read-only lookup tables shared by all workers. It is built
// once before dispatch and never mutated.
type Aux struct {
	// Critical[k] are the critical potentials of the k-th mass ratio.
	Critical []validity.Critical

	// Omega1 is indexed by (mass ratio, primary radius).
	Omega1 grid.Table

	// Omega2 is indexed by (mass ratio, secondary radius).
	Omega2 grid.Table

	// ICrit is indexed by (primary radius, secondary radius), in degrees.
	ICrit grid.Table
}

// BuildAux precomputes the tables for a binary sampling order.
func BuildAux(order grid.Order) Aux {
	qs := order.Dimension(grid.AxisMassRatio).Values
	r1 := order.Dimension(grid.AxisPrimaryRadius).Values
	r2 := order.Dimension(grid.AxisSecondaryRadius).Values

	crit := make([]validity.Critical, len(qs))
	for k, q := range qs {
		crit[k] = roche.CriticalPotentials(q)
	}

	return Aux{
		Critical: crit,
		Omega1:   grid.Precompute(qs, r1, func(q, r float64) float64 { return roche.PrimaryPotential(r, q) }),
		Omega2:   grid.Precompute(qs, r2, func(q, r float64) float64 { return roche.SecondaryPotential(r, q) }),
		ICrit:    grid.Precompute(r1, r2, roche.CriticalInclination),
	}
}

// lookup returns the inputs of the validity decision for node.
func (a Aux) lookup(node grid.Node) (validity.Potentials, validity.Critical) {
	qi := node.Indices[grid.AxisMassRatio]
	return validity.Potentials{
		Primary:   a.Omega1.At(qi, node.Indices[grid.AxisPrimaryRadius]),
		Secondary: a.Omega2.At(qi, node.Indices[grid.AxisSecondaryRadius]),
	}, a.Critical[qi]
}
