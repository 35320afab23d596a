// Package schema maps parameters-table column names to typed accessors over a
// committed observation, and passband names to curves-table columns.
//
// Column lists come from configuration and are resolved once at load time, so
// an unknown column is a configuration error rather than a failure deep inside
// a worker.
package schema

import (
	"fmt"
	"math"
	"regexp"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

// SQL column types.
const (
	TypeInteger = "INTEGER"
	TypeReal    = "REAL"
)

// Column is one parameters-table column.
type Column struct {
	Name  string
	Type  string
	Value func(model.Observation) any
}

func realColumn(name string, fn func(model.Observation) float64) Column {
	return Column{Name: name, Type: TypeReal, Value: func(o model.Observation) any { return fn(o) }}
}

func intColumn(name string, fn func(model.Observation) int64) Column {
	return Column{Name: name, Type: TypeInteger, Value: func(o model.Observation) any { return fn(o) }}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

var columns = map[string]Column{}

func register(c Column) {
	columns[c.Name] = c
}

func init() {
	register(realColumn("mass_ratio", func(o model.Observation) float64 { return o.System.MassRatio }))
	register(realColumn("primary__surface_potential", func(o model.Observation) float64 { return o.System.Primary.SurfacePotential }))
	register(realColumn("secondary__surface_potential", func(o model.Observation) float64 { return o.System.Secondary.SurfacePotential }))
	register(intColumn("primary__t_eff", func(o model.Observation) int64 { return int64(math.Round(o.System.Primary.Teff)) }))
	register(intColumn("secondary__t_eff", func(o model.Observation) int64 { return int64(math.Round(o.System.Secondary.Teff)) }))
	register(realColumn("inclination", func(o model.Observation) float64 { return o.System.Inclination }))
	register(realColumn("critical_surface_potential", func(o model.Observation) float64 { return o.System.CriticalSurfacePotential }))
	register(intColumn("overcontact", func(o model.Observation) int64 { return boolInt(o.System.Overcontact) }))
	register(realColumn("primary__equivalent_radius", func(o model.Observation) float64 { return o.Derived.PrimaryEquivalentRadius }))
	register(realColumn("secondary__equivalent_radius", func(o model.Observation) float64 { return o.Derived.SecondaryEquivalentRadius }))
	register(realColumn("primary__filling_factor", func(o model.Observation) float64 { return o.Derived.PrimaryFillingFactor }))
	register(realColumn("secondary__filling_factor", func(o model.Observation) float64 { return o.Derived.SecondaryFillingFactor }))
	register(realColumn("semi_major_axis", func(o model.Observation) float64 { return o.System.SemiMajorAxis }))
	register(realColumn("period", func(o model.Observation) float64 { return o.System.Period }))
}

// DefaultParameterColumns lists the parameters-table columns of the standard
// atlas, after the id.
func DefaultParameterColumns() []string {
	return []string{
		"mass_ratio",
		"primary__surface_potential", "secondary__surface_potential",
		"primary__t_eff", "secondary__t_eff",
		"inclination", "critical_surface_potential", "overcontact",
		"primary__equivalent_radius", "secondary__equivalent_radius",
		"primary__filling_factor", "secondary__filling_factor",
	}
}

// Resolve looks up columns by name, preserving order.
func Resolve(names []string) ([]Column, error) {
	if len(names) == 0 {
		return nil, model.Configf("no parameter columns configured")
	}
	seen := make(map[string]bool, len(names))
	out := make([]Column, 0, len(names))
	for _, name := range names {
		c, ok := columns[name]
		if !ok {
			return nil, model.Configf("unknown parameter column %q", name)
		}
		if seen[name] {
			return nil, model.Configf("duplicate parameter column %q", name)
		}
		seen[name] = true
		out = append(out, c)
	}
	return out, nil
}

// Passband pairs a simulator passband name with its curves-table column.
type Passband struct {
	Name   string
	Column string
}

var passbandColumns = map[string]string{
	"Generic.Bessell.U": "Bessell_U",
	"Generic.Bessell.B": "Bessell_B",
	"Generic.Bessell.V": "Bessell_V",
	"Generic.Bessell.R": "Bessell_R",
	"Generic.Bessell.I": "Bessell_I",
	"SLOAN.SDSS.u":      "SLOAN_u",
	"SLOAN.SDSS.g":      "SLOAN_g",
	"SLOAN.SDSS.r":      "SLOAN_r",
	"SLOAN.SDSS.i":      "SLOAN_i",
	"SLOAN.SDSS.z":      "SLOAN_z",
	"Kepler":            "Kepler",
	"GaiaDR2":           "GaiaDR2",
	"TESS":              "TESS",
}

// DefaultPassbands lists the passbands of the standard atlas in column order.
func DefaultPassbands() []string {
	return []string{
		"Generic.Bessell.U", "Generic.Bessell.B", "Generic.Bessell.V", "Generic.Bessell.R", "Generic.Bessell.I",
		"SLOAN.SDSS.u", "SLOAN.SDSS.g", "SLOAN.SDSS.r", "SLOAN.SDSS.i", "SLOAN.SDSS.z",
		"Kepler", "GaiaDR2", "TESS",
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ResolvePassbands maps passband names to curve columns. Columns given in
// overrides take precedence over the built-in names.
func ResolvePassbands(names []string, overrides map[string]string) ([]Passband, error) {
	if len(names) == 0 {
		return nil, model.Configf("no passbands configured")
	}
	seenName := make(map[string]bool, len(names))
	seenCol := make(map[string]bool, len(names))
	out := make([]Passband, 0, len(names))
	for _, name := range names {
		col, ok := overrides[name]
		if !ok {
			col, ok = passbandColumns[name]
		}
		if !ok {
			return nil, model.Configf("no column known for passband %q", name)
		}
		if !identifier.MatchString(col) {
			return nil, model.Configf("passband %q column %q is not a valid identifier", name, col)
		}
		if seenName[name] || seenCol[col] || col == "id" {
			return nil, model.Configf("duplicate passband or column %q (%s)", name, col)
		}
		seenName[name], seenCol[col] = true, true
		out = append(out, Passband{Name: name, Column: col})
	}
	return out, nil
}

// Layout is the resolved table layout of a grid database.
type Layout struct {
	Parameters []Column
	Passbands  []Passband
}

// NewLayout resolves parameter columns and passbands.
func NewLayout(columnNames, passbands []string, overrides map[string]string) (Layout, error) {
	cols, err := Resolve(columnNames)
	if err != nil {
		return Layout{}, err
	}
	pbs, err := ResolvePassbands(passbands, overrides)
	if err != nil {
		return Layout{}, err
	}
	return Layout{Parameters: cols, Passbands: pbs}, nil
}

// DefaultLayout returns the layout of the standard atlas.
func DefaultLayout() Layout {
	l, err := NewLayout(DefaultParameterColumns(), DefaultPassbands(), nil)
	if err != nil {
		panic(fmt.Sprintf("default layout: %v", err))
	}
	return l
}

// PassbandNames returns the simulator names of the layout's passbands.
func (l Layout) PassbandNames() []string {
	out := make([]string, len(l.Passbands))
	for i, p := range l.Passbands {
		out[i] = p.Name
	}
	return out
}
