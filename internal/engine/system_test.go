package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirofedurco/EB-gridmaker/internal/grid"
	"github.com/mirofedurco/EB-gridmaker/internal/model"
	"github.com/mirofedurco/EB-gridmaker/internal/roche"
	"github.com/mirofedurco/EB-gridmaker/internal/testutil"
	"github.com/mirofedurco/EB-gridmaker/internal/validity"
)

func switchOrder() grid.Order {
	teff := []float64{5000, 6000}
	return grid.MustOrder(
		grid.Dimension{Name: "mass_ratio", Values: []float64{0.5}},
		grid.Dimension{Name: "radius", Values: []float64{0.1, 0.2}},
		grid.Dimension{Name: "radius", Values: []float64{0.1, 0.2}},
		grid.Dimension{Name: "t_eff", Values: teff},
		grid.Dimension{Name: "t_eff", Values: teff},
		grid.Dimension{Name: "inclination", Values: []float64{0, 1}},
	)
}

func switchEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := toyConfig()
	cfg.Order = switchOrder()
	cfg.OverCritical = true
	return newToyEngine(t, setupTestStore(t, "switch.db"), &testutil.FakeSimulator{}, cfg)
}

func TestBuildAux(t *testing.T) {
	aux := BuildAux(switchOrder())

	require.Len(t, aux.Critical, 1)
	assert.InDelta(t, 2.8758446, aux.Critical[0].Inner(), 1e-6)

	rows, cols := aux.Omega1.Shape()
	assert.Equal(t, [2]int{1, 2}, [2]int{rows, cols})
	assert.InDelta(t, roche.PrimaryPotential(0.2, 0.5), aux.Omega1.At(0, 1), 1e-12)
	assert.InDelta(t, roche.SecondaryPotential(0.1, 0.5), aux.Omega2.At(0, 0), 1e-12)
	assert.InDelta(t, roche.CriticalInclination(0.1, 0.2), aux.ICrit.At(0, 1), 1e-12)
}

func TestSystem_NoSwitch(t *testing.T) {
	e := switchEngine(t)
	// q=0.5, r1=0.1, r2=0.2, t1=6000, t2=5000, i step 1
	node, err := e.cfg.Order.Encode([]int{0, 0, 1, 1, 0, 1})
	require.NoError(t, err)
	n, err := e.cfg.Order.Decode(node)
	require.NoError(t, err)

	pot, crit := e.aux.lookup(n)
	sys := e.system(n, pot, crit, model.ClassDetached)

	assert.Equal(t, 0.5, sys.MassRatio)
	assert.Equal(t, 6000.0, sys.Primary.Teff)
	assert.Equal(t, 5000.0, sys.Secondary.Teff)
	assert.InDelta(t, roche.PrimaryPotential(0.1, 0.5), sys.Primary.SurfacePotential, 1e-12)
	assert.InDelta(t, roche.SecondaryPotential(0.2, 0.5), sys.Secondary.SurfacePotential, 1e-12)
	assert.InDelta(t, crit.Inner(), sys.CriticalSurfacePotential, 1e-12)
	assert.InDelta(t, 90.0, sys.Inclination, 1e-12, "step 1 above critical is edge-on")
	assert.False(t, sys.Overcontact)

	sma, period := roche.OrbitScale(0.5, 0.1, 0.2)
	assert.Equal(t, sma, sys.SemiMajorAxis)
	assert.Equal(t, period, sys.Period)
}

func TestSystem_HotterSecondarySwitches(t *testing.T) {
	e := switchEngine(t)
	// q=0.5, r1=0.1, r2=0.2, t1=5000, t2=6000, i step 0
	id, err := e.cfg.Order.Encode([]int{0, 0, 1, 0, 1, 0})
	require.NoError(t, err)
	n, err := e.cfg.Order.Decode(id)
	require.NoError(t, err)

	pot, crit := e.aux.lookup(n)
	sys := e.system(n, pot, crit, model.ClassDetached)

	assert.InDelta(t, 2.0, sys.MassRatio, 1e-12)
	assert.Equal(t, 6000.0, sys.Primary.Teff)
	assert.Equal(t, 5000.0, sys.Secondary.Teff)
	assert.InDelta(t, roche.SwitchPotential(pot.Secondary, 0.5), sys.Primary.SurfacePotential, 1e-12)
	assert.InDelta(t, roche.SwitchPotential(pot.Primary, 0.5), sys.Secondary.SurfacePotential, 1e-12)
	assert.InDelta(t, roche.SwitchPotential(crit.Inner(), 0.5), sys.CriticalSurfacePotential, 1e-12)

	iCrit := math.Acos(0.3) * 180 / math.Pi
	assert.InDelta(t, iCrit, sys.Inclination, 1e-9, "step 0 above critical is the critical inclination")

	sma, _ := roche.OrbitScale(2, 0.2, 0.1)
	assert.InDelta(t, sma, sys.SemiMajorAxis, 1e-9)
}

func TestSystem_SwitchedPotentialMatchesInvertedFrame(t *testing.T) {
	// The secondary's surface expressed in its own frame must agree with the
	// primary potential of the same radius at mass ratio 1/q.
	q, r := 0.5, 0.2
	assert.InDelta(t, roche.PrimaryPotential(r, 1/q), roche.SwitchPotential(roche.SecondaryPotential(r, q), q), 1e-12)
}

func TestAux_LookupFeedsValidity(t *testing.T) {
	e := switchEngine(t)
	n, err := e.cfg.Order.Decode(0)
	require.NoError(t, err)

	pot, crit := e.aux.lookup(n)
	v := validity.Evaluate(n, pot, crit, e.cfg.Limits)
	assert.True(t, v.Valid)
	assert.Equal(t, model.ClassDetached, v.Class)
}

func TestSystem_ZeroMinimumInclinationIsKept(t *testing.T) {
	cfg := toyConfig()
	cfg.Order = switchOrder()
	cfg.MinimumInclination = 0
	e := newToyEngine(t, setupTestStore(t, "zero.db"), &testutil.FakeSimulator{}, cfg)
	assert.Zero(t, e.cfg.MinimumInclination)

	// Below critical, step 0 is the minimum itself.
	n, err := e.cfg.Order.Decode(0)
	require.NoError(t, err)
	pot, crit := e.aux.lookup(n)
	sys := e.system(n, pot, crit, model.ClassDetached)
	assert.Zero(t, sys.Inclination)
}
