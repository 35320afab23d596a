package model

// Class is the morphological class assigned to a valid grid node.
type Class int

const (
	ClassNone Class = iota
	ClassDetached
	ClassOvercontact
)

func (c Class) String() string {
	switch c {
	case ClassDetached:
		return "detached"
	case ClassOvercontact:
		return "overcontact"
	default:
		return "none"
	}
}

// Component holds the per-star inputs handed to the simulator.
type Component struct {
	SurfacePotential float64 `json:"surface_potential"`
	Teff             float64 `json:"t_eff"`
}

// System is the fully resolved binary configuration of one grid node.
// Inclination is in degrees, SemiMajorAxis in solar radii and Period in days.
type System struct {
	MassRatio                float64   `json:"mass_ratio"`
	Primary                  Component `json:"primary"`
	Secondary                Component `json:"secondary"`
	Inclination              float64   `json:"inclination"`
	CriticalSurfacePotential float64   `json:"critical_surface_potential"`
	Overcontact              bool      `json:"overcontact"`
	SemiMajorAxis            float64   `json:"semi_major_axis"`
	Period                   float64   `json:"period"`
}

// Derived holds quantities the simulator computes from a System.
type Derived struct {
	PrimaryEquivalentRadius   float64 `json:"primary__equivalent_radius"`
	SecondaryEquivalentRadius float64 `json:"secondary__equivalent_radius"`
	PrimaryFillingFactor      float64 `json:"primary__filling_factor"`
	SecondaryFillingFactor    float64 `json:"secondary__filling_factor"`
}

// Observation is one committed grid node: its parameters and its light curves,
// keyed by passband name.
type Observation struct {
	ID      int64
	System  System
	Derived Derived
	Fluxes  map[string][]float64
}
