// Package validity decides whether a decoded binary-grid node describes a
// physically admissible system and classifies it as detached or overcontact.
package validity

import (
	"math"
	"strings"

	"github.com/mirofedurco/EB-gridmaker/internal/grid"
	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

// Default overcontact limits.
const (
	DefaultMaxOvercontactTeff     = 8000.0
	DefaultMaxOvercontactTeffDiff = 500.0
)

// Limits bound the temperatures accepted for overcontact systems.
type Limits struct {
	// MaxOvercontactTeff is the hottest component temperature allowed in an
	// overcontact system.
	MaxOvercontactTeff float64

	// MaxOvercontactTeffDiff is the largest temperature difference allowed
	// between overcontact components unless their temperatures are adjacent
	// grid values.
	MaxOvercontactTeffDiff float64
}

// DefaultLimits returns the limits used by the standard atlas.
func DefaultLimits() Limits {
	return Limits{
		MaxOvercontactTeff:     DefaultMaxOvercontactTeff,
		MaxOvercontactTeffDiff: DefaultMaxOvercontactTeffDiff,
	}
}

// Potentials are the surface potentials of both components, looked up from
// the precomputed tables for the node's mass ratio and radii.
type Potentials struct {
	Primary   float64
	Secondary float64
}

// Critical holds the Lagrangian potentials for one mass ratio ordered as
// [L3, L1, L2]. Index 1 is the inner critical potential and index 2 the outer.
type Critical [3]float64

// Inner returns the L1 potential.
func (c Critical) Inner() float64 { return c[1] }

// Outer returns the L2 potential.
func (c Critical) Outer() float64 { return c[2] }

// Verdict is the outcome of Evaluate.
type Verdict struct {
	Valid bool
	Class model.Class
}

var invalid = Verdict{}

// Evaluate applies the validity rules to a binary-grid node. The first
// matching rule decides:
//
//  1. primary potential at or below the outer critical potential: invalid
//     (overflow through L2);
//  2. primary potential below the inner critical potential: overcontact,
//     accepted only for the first secondary radius (the secondary radius is
//     not a free parameter of an overcontact), with both temperatures within
//     MaxOvercontactTeff, and with a temperature difference within
//     MaxOvercontactTeffDiff unless the temperature indices are adjacent;
//  3. otherwise detached, accepted when the secondary also fits inside its
//     Roche lobe.
//
// Both temperature dimensions must share one value array so their indices are
// comparable.
func Evaluate(node grid.Node, pot Potentials, crit Critical, limits Limits) Verdict {
	if pot.Primary <= crit.Outer() {
		return invalid
	}

	if pot.Primary < crit.Inner() {
		if node.Indices[grid.AxisSecondaryRadius] != 0 {
			return invalid
		}
		t1 := node.Values[grid.AxisPrimaryTeff]
		t2 := node.Values[grid.AxisSecondaryTeff]
		if t1 > limits.MaxOvercontactTeff || t2 > limits.MaxOvercontactTeff {
			return invalid
		}
		if math.Abs(t2-t1) > limits.MaxOvercontactTeffDiff {
			d := node.Indices[grid.AxisPrimaryTeff] - node.Indices[grid.AxisSecondaryTeff]
			if d > 1 || d < -1 {
				return invalid
			}
		}
		return Verdict{Valid: true, Class: model.ClassOvercontact}
	}

	if pot.Secondary < crit.Inner() {
		return invalid
	}
	return Verdict{Valid: true, Class: model.ClassDetached}
}

// Morphology selects which classes of valid nodes are evaluated.
type Morphology string

const (
	MorphologyAll         Morphology = "all"
	MorphologyDetached    Morphology = "detached"
	MorphologyOvercontact Morphology = "overcontact"
)

// ParseMorphology parses a morphology filter name.
func ParseMorphology(s string) (Morphology, error) {
	switch m := Morphology(strings.ToLower(strings.TrimSpace(s))); m {
	case MorphologyAll, MorphologyDetached, MorphologyOvercontact:
		return m, nil
	default:
		return "", model.Configf("invalid morphology %q: use detached, overcontact or all", s)
	}
}

// Accepts reports whether a node of class c passes the filter.
func (m Morphology) Accepts(c model.Class) bool {
	switch m {
	case MorphologyAll:
		return c != model.ClassNone
	case MorphologyDetached:
		return c == model.ClassDetached
	case MorphologyOvercontact:
		return c == model.ClassOvercontact
	}
	return false
}
