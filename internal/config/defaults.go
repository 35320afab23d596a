package config

import (
	"runtime"

	"github.com/mirofedurco/EB-gridmaker/internal/engine"
	"github.com/mirofedurco/EB-gridmaker/internal/schema"
	"github.com/mirofedurco/EB-gridmaker/internal/store"
	"github.com/mirofedurco/EB-gridmaker/internal/validity"
)

// DefaultNPoints is the number of phases per light curve.
const DefaultNPoints = 400

func intp(v int) *int { return &v }

// Defaults returns the configuration of the standard eclipsing-binary atlas:
// 10 mass ratios, 25 radii per component, 17 effective temperatures per
// component and 11 inclination steps.
func Defaults() File {
	var f File
	f.Database = "ceb_atlas.db"
	f.Driver = store.DriverCGO
	f.Processes = runtime.NumCPU()
	f.ChunkSize = engine.DefaultChunkSize
	f.Seed = engine.DefaultSeed
	f.Resume = string(engine.ResumeWindow)
	f.Morphology = string(validity.MorphologyAll)
	f.NPoints = DefaultNPoints
	f.Passbands = schema.DefaultPassbands()
	f.ParameterColumns = schema.DefaultParameterColumns()

	f.Shard.Bottom, f.Shard.Top = 0, 1
	f.Limits.MaxOvercontactTeff = validity.DefaultMaxOvercontactTeff
	f.Limits.MaxOvercontactTeffDiff = validity.DefaultMaxOvercontactTeffDiff
	f.Inclination.Minimum = engine.DefaultMinimumInclination
	f.Inclination.OverCritical = true
	f.Simulator.Retries = 2

	// Arrays may only grow by appending values once a grid has been started.
	f.Grid.Arrays = map[string]Array{
		"mass_ratio": {Ranges: []Range{{Start: 0.1, Stop: 1.01, Step: 0.1, Decimals: intp(3)}}},
		"radius":     {Ranges: []Range{{Start: 0.01, Stop: 1.0, Step: 0.04, Decimals: intp(6)}}},
		"t_eff": {Ranges: []Range{
			{Start: 4000, Stop: 10001, Step: 1000},
			{Start: 12000, Stop: 20001, Step: 2000},
			{Start: 25000, Stop: 50000, Step: 5000},
		}},
		"inclination": {Ranges: []Range{{Start: 0, Stop: 1.01, Step: 0.1, Decimals: intp(6)}}},
	}
	f.Grid.Order = []string{"mass_ratio", "radius", "radius", "t_eff", "t_eff", "inclination"}
	return f
}
