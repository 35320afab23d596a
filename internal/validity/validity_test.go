package validity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirofedurco/EB-gridmaker/internal/grid"
	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

var crit = Critical{2.0, 3.8, 3.4}

// node builds a binary node; only the secondary radius index and both
// temperatures (values and indices) matter to Evaluate.
func node(r2Index int, t1 float64, t1Index int, t2 float64, t2Index int) grid.Node {
	return grid.Node{
		Values:  []float64{0.5, 0.2, 0.1, t1, t2, 0.5},
		Indices: []int{4, 5, r2Index, t1Index, t2Index, 5},
	}
}

func TestEvaluate_OverflowThroughL2(t *testing.T) {
	for _, primary := range []float64{3.4, 3.0, -1} {
		v := Evaluate(node(0, 5000, 1, 5000, 1), Potentials{Primary: primary, Secondary: 10}, crit, DefaultLimits())
		assert.False(t, v.Valid, "primary=%v", primary)
		assert.Equal(t, model.ClassNone, v.Class)
	}
}

func TestEvaluate_Overcontact(t *testing.T) {
	pot := Potentials{Primary: 3.6, Secondary: 3.6}

	tests := []struct {
		name  string
		node  grid.Node
		valid bool
	}{
		{"accepted", node(0, 5000, 1, 5000, 1), true},
		{"non-canonical secondary radius", node(1, 5000, 1, 5000, 1), false},
		{"primary too hot", node(0, 9000, 5, 5000, 1), false},
		{"secondary too hot", node(0, 5000, 1, 9000, 5), false},
		{"at temperature limit", node(0, 8000, 4, 8000, 4), true},
		{"large difference, adjacent indices", node(0, 6000, 2, 7000, 3), true},
		{"large difference, distant indices", node(0, 4000, 0, 6000, 2), false},
		{"small difference, distant indices", node(0, 4000, 0, 4400, 2), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tt.node, pot, crit, DefaultLimits())
			assert.Equal(t, tt.valid, v.Valid)
			if tt.valid {
				assert.Equal(t, model.ClassOvercontact, v.Class)
			}
		})
	}
}

func TestEvaluate_Detached(t *testing.T) {
	n := node(3, 20000, 10, 4000, 0)

	v := Evaluate(n, Potentials{Primary: 4.0, Secondary: 3.9}, crit, DefaultLimits())
	assert.Equal(t, Verdict{Valid: true, Class: model.ClassDetached}, v)

	// Primary exactly at L1 is detached.
	v = Evaluate(n, Potentials{Primary: 3.8, Secondary: 3.8}, crit, DefaultLimits())
	assert.Equal(t, Verdict{Valid: true, Class: model.ClassDetached}, v)

	// Secondary overflowing its Roche lobe.
	v = Evaluate(n, Potentials{Primary: 4.0, Secondary: 3.7}, crit, DefaultLimits())
	assert.False(t, v.Valid)
}

func TestEvaluate_OvercontactIgnoresSecondaryPotential(t *testing.T) {
	v := Evaluate(node(0, 5000, 1, 5000, 1), Potentials{Primary: 3.6, Secondary: -100}, crit, DefaultLimits())
	assert.True(t, v.Valid)
}

func TestParseMorphology(t *testing.T) {
	for _, s := range []string{"all", "detached", "overcontact", " Detached "} {
		m, err := ParseMorphology(s)
		require.NoError(t, err, s)
		assert.NotEmpty(t, m)
	}

	_, err := ParseMorphology("single_spotty")
	require.Error(t, err)
	assert.True(t, model.IsConfig(err))
}

func TestMorphology_Accepts(t *testing.T) {
	assert.True(t, MorphologyAll.Accepts(model.ClassDetached))
	assert.True(t, MorphologyAll.Accepts(model.ClassOvercontact))
	assert.False(t, MorphologyAll.Accepts(model.ClassNone))

	assert.True(t, MorphologyDetached.Accepts(model.ClassDetached))
	assert.False(t, MorphologyDetached.Accepts(model.ClassOvercontact))

	assert.True(t, MorphologyOvercontact.Accepts(model.ClassOvercontact))
	assert.False(t, MorphologyOvercontact.Accepts(model.ClassDetached))

	assert.False(t, Morphology("bogus").Accepts(model.ClassDetached))
}
