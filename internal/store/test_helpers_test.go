package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mirofedurco/EB-gridmaker/internal/grid"
	"github.com/mirofedurco/EB-gridmaker/internal/model"
	"github.com/mirofedurco/EB-gridmaker/internal/schema"
)

// testLayout is a reduced layout: three parameter columns, two passbands.
func testLayout(t *testing.T) schema.Layout {
	t.Helper()
	l, err := schema.NewLayout(
		[]string{"mass_ratio", "primary__t_eff", "overcontact"},
		[]string{"Kepler", "TESS"},
		nil,
	)
	require.NoError(t, err)
	return l
}

// createTestStore opens a fresh database in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testLayout(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// testObservation builds an observation whose values are derived from id.
func testObservation(id int64) model.Observation {
	return model.Observation{
		ID: id,
		System: model.System{
			MassRatio:   0.1 * float64(id%10+1),
			Primary:     model.Component{Teff: 4000 + float64(id)},
			Overcontact: id%2 == 0,
		},
		Fluxes: map[string][]float64{
			"Kepler": {1, 0.5, 1, float64(id)},
			"TESS":   {1, 0.6, 1, -float64(id)},
		},
	}
}

func testOrder() grid.Order {
	return grid.MustOrder(
		grid.Dimension{Name: "a", Values: []float64{1, 2, 3}},
		grid.Dimension{Name: "b", Values: []float64{1, 2, 3, 4}},
	)
}
