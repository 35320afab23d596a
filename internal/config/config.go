// Package config loads the gridmaker configuration: a YAML file checked
// against an embedded CUE schema, layered over the built-in atlas defaults and
// overridden by environment variables.
//
// Loading resolves everything a run needs up front (sampling order, table
// layout, morphology, resume policy) so that a bad value fails here with a
// configuration error instead of inside a worker.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/mirofedurco/EB-gridmaker/internal/engine"
	"github.com/mirofedurco/EB-gridmaker/internal/grid"
	"github.com/mirofedurco/EB-gridmaker/internal/model"
	"github.com/mirofedurco/EB-gridmaker/internal/schema"
	"github.com/mirofedurco/EB-gridmaker/internal/simulator"
	"github.com/mirofedurco/EB-gridmaker/internal/store"
	"github.com/mirofedurco/EB-gridmaker/internal/validity"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables read by Load.
const (
	EnvProcesses        = "GRIDMAKER_PROCESSES"
	EnvChunkSize        = "GRIDMAKER_CHUNK_SIZE"
	EnvConnectionString = "AZURE_STORAGE_CONNECTION_STRING"
)

// Range is a numpy-style value range: start, start+step, ... below stop.
type Range struct {
	Start    float64 `yaml:"start"`
	Stop     float64 `yaml:"stop"`
	Step     float64 `yaml:"step"`
	Decimals *int    `yaml:"decimals,omitempty"`
}

// Array defines one named dimension array, either by explicit values or as
// concatenated ranges.
type Array struct {
	Values []float64 `yaml:"values,omitempty"`
	Ranges []Range   `yaml:"ranges,omitempty"`
}

// File mirrors the YAML configuration file.
type File struct {
	Database         string            `yaml:"database"`
	Driver           string            `yaml:"driver"`
	Processes        int               `yaml:"processes"`
	ChunkSize        int               `yaml:"chunk_size"`
	Seed             uint64            `yaml:"seed"`
	Resume           string            `yaml:"resume"`
	Morphology       string            `yaml:"morphology"`
	NPoints          int               `yaml:"n_points"`
	Passbands        []string          `yaml:"passbands"`
	PassbandColumns  map[string]string `yaml:"passband_columns,omitempty"`
	ParameterColumns []string          `yaml:"parameter_columns"`

	Shard struct {
		Bottom float64 `yaml:"bottom"`
		Top    float64 `yaml:"top"`
	} `yaml:"shard"`

	Limits struct {
		MaxOvercontactTeff     float64 `yaml:"max_overcontact_t_eff"`
		MaxOvercontactTeffDiff float64 `yaml:"max_overcontact_t_eff_diff"`
	} `yaml:"limits"`

	Inclination struct {
		Minimum      float64 `yaml:"minimum"`
		OverCritical bool    `yaml:"over_critical"`
	} `yaml:"inclination"`

	NodeTimeout string `yaml:"node_timeout"`

	Simulator struct {
		Command []string `yaml:"command"`
		Dir     string   `yaml:"dir,omitempty"`
		Env     []string `yaml:"env,omitempty"`
		Retries int      `yaml:"retries"`
	} `yaml:"simulator"`

	Grid struct {
		Arrays map[string]Array `yaml:"arrays"`
		Order  []string         `yaml:"order"`
	} `yaml:"grid"`

	Storage struct {
		Container string `yaml:"container,omitempty"`
		Blob      string `yaml:"blob,omitempty"`
	} `yaml:"storage"`
}

// Config is a loaded and resolved configuration.
type Config struct {
	File

	Order       grid.Order
	Layout      schema.Layout
	Morphology  validity.Morphology
	Resume      engine.ResumePolicy
	NodeTimeout time.Duration

	// ConnectionString for Azure Blob Storage, from the environment only.
	ConnectionString string
}

// Load reads the configuration file at path (built-in defaults only when path
// is empty), applies environment overrides and resolves it.
func Load(path string) (*Config, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Resolve(f)
}

// LoadFile is Load without the final Resolve, for callers that override
// fields (command-line flags) before resolving.
func LoadFile(path string) (File, error) {
	f := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return File{}, &model.Error{Kind: model.KindConfig, Message: "read config file", Err: err}
		}
		if err := Decode(data, &f); err != nil {
			return File{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := applyEnv(&f, os.Getenv); err != nil {
		return File{}, err
	}
	return f, nil
}

// Decode validates data against the schema and decodes it over f, so fields
// absent from data keep their values in f. Unknown fields are rejected.
func Decode(data []byte, f *File) error {
	if err := validate(data); err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return &model.Error{Kind: model.KindConfig, Message: "decode config", Err: err}
	}
	return nil
}

// validate unifies the YAML document with #Config.
func validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &model.Error{Kind: model.KindConfig, Message: "parse config", Err: err}
	}
	if doc == nil {
		return nil
	}

	ctx := cuecontext.New()
	schemaVal := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schemaVal.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schemaVal.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &model.Error{Kind: model.KindConfig, Message: "config does not match schema", Err: formatCUEError(err)}
	}
	return nil
}

// formatCUEError keeps the first of possibly many CUE errors, with its path.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	msg, args := first.Msg()
	text := fmt.Sprintf(msg, args...)
	if path := first.Path(); len(path) > 0 {
		return fmt.Errorf("%s: %s", strings.Join(path, "."), text)
	}
	return errors.New(text)
}

func applyEnv(f *File, getenv func(string) string) error {
	for _, o := range []struct {
		name string
		dst  *int
		min  int
	}{
		{EnvProcesses, &f.Processes, 0},
		{EnvChunkSize, &f.ChunkSize, 1},
	} {
		raw := getenv(o.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < o.min {
			return model.Configf("%s must be an integer >= %d, got %q", o.name, o.min, raw)
		}
		*o.dst = n
	}
	return nil
}

// Resolve builds the sampling order, table layout and policies from f.
func Resolve(f File) (*Config, error) {
	c := &Config{File: f, ConnectionString: os.Getenv(EnvConnectionString)}

	order, err := f.order()
	if err != nil {
		return nil, err
	}
	c.Order = order

	c.Layout, err = schema.NewLayout(f.ParameterColumns, f.Passbands, f.PassbandColumns)
	if err != nil {
		return nil, err
	}
	if c.Morphology, err = validity.ParseMorphology(f.Morphology); err != nil {
		return nil, err
	}
	if c.Resume, err = engine.ParseResumePolicy(f.Resume); err != nil {
		return nil, err
	}
	if f.NodeTimeout != "" {
		if c.NodeTimeout, err = time.ParseDuration(f.NodeTimeout); err != nil || c.NodeTimeout < 0 {
			return nil, model.Configf("invalid node_timeout %q", f.NodeTimeout)
		}
	}
	if f.Driver != store.DriverCGO && f.Driver != store.DriverPure {
		return nil, model.Configf("unknown driver %q: use %q or %q", f.Driver, store.DriverCGO, store.DriverPure)
	}
	if f.Shard.Bottom < 0 || f.Shard.Top > 1 || f.Shard.Bottom > f.Shard.Top {
		return nil, model.Configf("invalid shard boundaries [%v, %v): need 0 <= bottom <= top <= 1",
			f.Shard.Bottom, f.Shard.Top)
	}
	if f.NPoints <= 0 {
		return nil, model.Configf("n_points must be positive, got %d", f.NPoints)
	}
	return c, nil
}

// order expands the arrays named by grid.order into a sampling order.
func (f File) order() (grid.Order, error) {
	names := f.Grid.Order
	if len(names) != grid.BinaryArity {
		return grid.Order{}, model.Configf("grid.order must name %d arrays (q, r1, r2, t1, t2, i), got %d",
			grid.BinaryArity, len(names))
	}
	if names[grid.AxisPrimaryTeff] != names[grid.AxisSecondaryTeff] {
		return grid.Order{}, model.Configf("both temperature slots must use one array, got %q and %q",
			names[grid.AxisPrimaryTeff], names[grid.AxisSecondaryTeff])
	}

	dims := make([]grid.Dimension, len(names))
	for i, name := range names {
		a, ok := f.Grid.Arrays[name]
		if !ok {
			return grid.Order{}, model.Configf("grid.order names undefined array %q", name)
		}
		values, err := a.expand()
		if err != nil {
			return grid.Order{}, fmt.Errorf("array %q: %w", name, err)
		}
		dims[i] = grid.Dimension{Name: name, Values: values}
	}
	return grid.NewOrder(dims...)
}

func (a Array) expand() ([]float64, error) {
	if len(a.Values) > 0 && len(a.Ranges) > 0 {
		return nil, model.Configf("give either values or ranges, not both")
	}
	if len(a.Values) > 0 {
		return a.Values, nil
	}
	segments := make([][]float64, 0, len(a.Ranges))
	for _, r := range a.Ranges {
		decimals := -1
		if r.Decimals != nil {
			decimals = *r.Decimals
		}
		seg, err := grid.Arange(r.Start, r.Stop, r.Step, decimals)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	values := grid.Concat(segments...)
	if len(values) == 0 {
		return nil, model.Configf("array has no values")
	}
	return values, nil
}

// Engine returns the run configuration for the engine.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Order:       c.Order,
		Bottom:      c.Shard.Bottom,
		Top:         c.Shard.Top,
		Morphology:  c.Morphology,
		Limits: validity.Limits{
			MaxOvercontactTeff:     c.Limits.MaxOvercontactTeff,
			MaxOvercontactTeffDiff: c.Limits.MaxOvercontactTeffDiff,
		},
		Seed:               c.Seed,
		Parallelism:        c.Processes,
		ChunkSize:          c.ChunkSize,
		Resume:             c.Resume,
		Phases:             simulator.Phases(c.NPoints),
		Passbands:          c.Layout.PassbandNames(),
		MinimumInclination: c.Inclination.Minimum,
		OverCritical:       c.Inclination.OverCritical,
		NodeTimeout:        c.NodeTimeout,
	}
}

// NewSimulator returns the configured external simulator with retries.
// It fails when no command is configured.
func (c *Config) NewSimulator() (simulator.Simulator, error) {
	if len(c.File.Simulator.Command) == 0 {
		return nil, model.Configf("no simulator command configured")
	}
	exec := &simulator.Exec{
		Command: c.File.Simulator.Command,
		Dir:     c.File.Simulator.Dir,
		Env:     c.File.Simulator.Env,
	}
	return simulator.Retrying(exec, c.File.Simulator.Retries), nil
}

// StoreOptions returns the store options implied by the configuration.
func (c *Config) StoreOptions() []store.Option {
	return []store.Option{store.WithDriver(c.Driver)}
}
