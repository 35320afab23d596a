// Package roche evaluates the Roche-model quantities needed to lay out a
// binary grid: component surface potentials for a given radius, Lagrangian
// critical potentials, critical inclinations and the physical orbit scale.
//
// Potentials are the dimensionless modified Kopal potential for a circular,
// synchronous orbit with unit separation, measured in the primary's frame.
package roche

import (
	"math"
)

// Physical constants in SI units.
const (
	G             = 6.67430e-11
	SolarRadius   = 6.957e8
	SecondsPerDay = 86400.0

	// referenceMass is the primary mass used to scale the orbit.
	referenceMass = 4e30

	// referenceGravity is the surface gravity both components are scaled to.
	referenceGravity = 31.622776601683793 // 10^1.5
)

// PrimaryPotential returns the primary's surface potential whose back radius
// (the point opposite the companion) is r.
func PrimaryPotential(r, q float64) float64 {
	return 1/r + q*(1/(1+r)+r) + 0.5*(1+q)*r*r
}

// SecondaryPotential returns the secondary's surface potential, expressed in
// the primary's frame, whose back radius is r.
func SecondaryPotential(r, q float64) float64 {
	return q/r + 1/(1+r) + r + 0.5*(1+q)*r*r + 0.5*(1-q)
}

// axisGradient is dΩ/dx along the line joining the components.
func axisGradient(x, q float64) float64 {
	d := x - 1
	return -x/math.Abs(x*x*x) - q*d/math.Abs(d*d*d) - q + (1+q)*x
}

// axisPotential is Ω on the line joining the components.
func axisPotential(x, q float64) float64 {
	return 1/math.Abs(x) + q*(1/math.Abs(x-1)-x) + 0.5*(1+q)*x*x
}

// CriticalPotentials returns the potentials of the collinear Lagrangian points
// ordered [L3, L1, L2]: behind the primary, between the components, and
// behind the secondary.
func CriticalPotentials(q float64) [3]float64 {
	f := func(x float64) float64 { return axisGradient(x, q) }
	const eps = 1e-9
	l3 := bisect(f, -3, -eps)
	l1 := bisect(f, eps, 1-eps)
	l2 := bisect(f, 1+eps, 3)
	return [3]float64{axisPotential(l3, q), axisPotential(l1, q), axisPotential(l2, q)}
}

// bisect finds a root of f in [a, b]; f(a) and f(b) must differ in sign.
func bisect(f func(float64) float64, a, b float64) float64 {
	fa := f(a)
	for range 200 {
		m := 0.5 * (a + b)
		fm := f(m)
		if fm == 0 || b-a < 1e-14 {
			return m
		}
		if (fa < 0) == (fm < 0) {
			a, fa = m, fm
		} else {
			b = m
		}
	}
	return 0.5 * (a + b)
}

// CriticalInclination returns the lowest inclination in degrees at which the
// components of relative radii r1 and r2 eclipse. It is NaN when the radii
// sum to one or more and eclipses occur at any inclination.
func CriticalInclination(r1, r2 float64) float64 {
	s := r1 + r2
	if s >= 1 {
		return math.NaN()
	}
	return math.Acos(s) * 180 / math.Pi
}

// Inclination maps a step in [0, 1] onto an inclination in degrees. Above the
// critical inclination it spans [iCrit, 90], however small iCrit is; below it
// spans [minimum, iCrit], empty when iCrit <= minimum. A NaN critical
// inclination (eclipses at any inclination) is replaced by minimum.
func Inclination(iCrit, step, minimum float64, overCritical bool) float64 {
	if math.IsNaN(iCrit) {
		iCrit = minimum
	}
	if overCritical {
		return iCrit + step*(90-iCrit)
	}
	if iCrit <= minimum {
		return minimum
	}
	return minimum + step*(iCrit-minimum)
}

// SwitchPotential converts a surface potential to the frame in which the other
// component is the primary, i.e. mass ratio 1/q.
func SwitchPotential(omega, q float64) float64 {
	return omega/q + (q-1)/(2*q)
}

// OrbitScale returns the semi-major axis in solar radii and the period in days
// of a system whose components, with relative radii r1 and r2, both have the
// reference surface gravity.
func OrbitScale(q, r1, r2 float64) (sma, period float64) {
	m1 := referenceMass
	m2 := q * m1

	a1 := math.Sqrt(G * m1 / (r1 * r1 * referenceGravity))
	a2 := math.Sqrt(G * m2 / (r2 * r2 * referenceGravity))
	a := 0.5 * (a1 + a2)

	p := math.Sqrt(4 * math.Pi * math.Pi * a * a * a / (G * (m1 + m2)))
	return a / SolarRadius, p / SecondsPerDay
}
