package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

func TestDefaultLayout(t *testing.T) {
	l := DefaultLayout()
	require.Len(t, l.Parameters, 12)
	require.Len(t, l.Passbands, 13)

	assert.Equal(t, "mass_ratio", l.Parameters[0].Name)
	assert.Equal(t, TypeInteger, l.Parameters[3].Type)
	assert.Equal(t, Passband{Name: "SLOAN.SDSS.u", Column: "SLOAN_u"}, l.Passbands[5])
	assert.Equal(t, "TESS", l.PassbandNames()[12])
}

func TestColumnValues(t *testing.T) {
	obs := model.Observation{
		ID: 3,
		System: model.System{
			MassRatio:   0.5,
			Primary:     model.Component{SurfacePotential: 4.2, Teff: 6000},
			Secondary:   model.Component{SurfacePotential: 3.9, Teff: 4999.6},
			Inclination: 81.5,
			Overcontact: true,
		},
		Derived: model.Derived{SecondaryFillingFactor: -0.2},
	}

	cols, err := Resolve([]string{"mass_ratio", "secondary__t_eff", "overcontact", "secondary__filling_factor", "inclination"})
	require.NoError(t, err)

	got := make([]any, len(cols))
	for i, c := range cols {
		got[i] = c.Value(obs)
	}
	assert.Equal(t, []any{0.5, int64(5000), int64(1), -0.2, 81.5}, got)
}

func TestResolve_Errors(t *testing.T) {
	_, err := Resolve(nil)
	assert.True(t, model.IsConfig(err))

	_, err = Resolve([]string{"primary__colour"})
	assert.True(t, model.IsConfig(err))

	_, err = Resolve([]string{"mass_ratio", "mass_ratio"})
	assert.True(t, model.IsConfig(err))
}

func TestResolvePassbands(t *testing.T) {
	pbs, err := ResolvePassbands([]string{"Kepler", "Custom.Band"}, map[string]string{"Custom.Band": "custom_band"})
	require.NoError(t, err)
	assert.Equal(t, []Passband{{"Kepler", "Kepler"}, {"Custom.Band", "custom_band"}}, pbs)

	tests := map[string]struct {
		names     []string
		overrides map[string]string
	}{
		"empty":           {nil, nil},
		"unknown":         {[]string{"Johnson.X"}, nil},
		"bad identifier":  {[]string{"Kepler"}, map[string]string{"Kepler": "kepler; DROP TABLE"}},
		"duplicate":       {[]string{"Kepler", "Kepler"}, nil},
		"column clash":    {[]string{"Kepler", "TESS"}, map[string]string{"TESS": "Kepler"}},
		"reserved column": {[]string{"Kepler"}, map[string]string{"Kepler": "id"}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ResolvePassbands(tt.names, tt.overrides)
			assert.True(t, model.IsConfig(err), "got %v", err)
		})
	}
}
