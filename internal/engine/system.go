package engine

import (
	"github.com/mirofedurco/EB-gridmaker/internal/grid"
	"github.com/mirofedurco/EB-gridmaker/internal/model"
	"github.com/mirofedurco/EB-gridmaker/internal/roche"
	"github.com/mirofedurco/EB-gridmaker/internal/validity"
)

// system resolves a valid node into the configuration handed to the
// simulator.
//
// An overcontact shares one surface, so the secondary takes the primary's
// potential. When the secondary is the hotter star the components are
// swapped: the mass ratio is inverted and every potential, including the
// critical one, is converted to the new primary's frame.
func (e *Engine) system(node grid.Node, pot validity.Potentials, crit validity.Critical, class model.Class) model.System {
	v := node.Values
	q := v[grid.AxisMassRatio]
	r1, r2 := v[grid.AxisPrimaryRadius], v[grid.AxisSecondaryRadius]
	t1, t2 := v[grid.AxisPrimaryTeff], v[grid.AxisSecondaryTeff]

	overcontact := class == model.ClassOvercontact
	omega1, omega2 := pot.Primary, pot.Secondary
	if overcontact {
		omega2 = omega1
	}
	critical := crit.Inner()

	iCrit := e.aux.ICrit.At(node.Indices[grid.AxisPrimaryRadius], node.Indices[grid.AxisSecondaryRadius])
	inclination := roche.Inclination(iCrit, v[grid.AxisInclination], e.cfg.MinimumInclination, e.cfg.OverCritical)

	if t2 > t1 {
		omega1, omega2 = roche.SwitchPotential(omega2, q), roche.SwitchPotential(omega1, q)
		critical = roche.SwitchPotential(critical, q)
		q = 1 / q
		r1, r2 = r2, r1
		t1, t2 = t2, t1
	}

	sma, period := roche.OrbitScale(q, r1, r2)
	return model.System{
		MassRatio:                q,
		Primary:                  model.Component{SurfacePotential: omega1, Teff: t1},
		Secondary:                model.Component{SurfacePotential: omega2, Teff: t2},
		Inclination:              inclination,
		CriticalSurfacePotential: critical,
		Overcontact:              overcontact,
		SemiMajorAxis:            sma,
		Period:                   period,
	}
}
