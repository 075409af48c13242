package ml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-attendance/dropout-radar/internal/domain/risk"
)

// twoTreeModel: tree 1 splits on attendance_pct at 0.5, tree 2 splits on
// max_consec_absences at 7.5.
const twoTreeModel = `{
  "schema_version": "v1",
  "features": ["attendance_pct", "max_consec_absences", "num_long_streaks"],
  "trees": [
    {
      "nodes": [
        {"feature": 0, "threshold": 0.5, "left": 1, "right": 2},
        {"leaf": [0.1, 0.9]},
        {"leaf": [0.8, 0.2]}
      ]
    },
    {
      "nodes": [
        {"feature": 1, "threshold": 7.5, "left": 1, "right": 2},
        {"leaf": [0.9, 0.1]},
        {"leaf": [0.3, 0.7]}
      ]
    }
  ]
}`

func TestNewForestFromJSON_SchemaDeclared(t *testing.T) {
	f, err := NewForestFromJSON([]byte(twoTreeModel))
	require.NoError(t, err)

	assert.True(t, f.Schema().Equal(risk.SchemaV1))
}

func TestForest_PredictProba_AveragesTrees(t *testing.T) {
	f, err := NewForestFromJSON([]byte(twoTreeModel))
	require.NoError(t, err)

	// Low attendance, long absences: tree 1 -> 0.9, tree 2 -> 0.7.
	prob, err := f.PredictProba(risk.FeatureVector{0.2, 9, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, prob, 1e-12)

	// High attendance, short absences: tree 1 -> 0.2, tree 2 -> 0.1.
	prob, err = f.PredictProba(risk.FeatureVector{0.95, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.15, prob, 1e-12)
}

func TestForest_Predict(t *testing.T) {
	f, err := NewForestFromJSON([]byte(twoTreeModel))
	require.NoError(t, err)

	label, err := f.Predict(risk.FeatureVector{0.2, 9, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	label, err = f.Predict(risk.FeatureVector{0.95, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, label)
}

func TestForest_PredictTieGoesToStayClass(t *testing.T) {
	const tieModel = `{
	  "schema_version": "v1",
	  "features": ["attendance_pct", "max_consec_absences", "num_long_streaks"],
	  "trees": [{"nodes": [{"leaf": [0.5, 0.5]}]}]
	}`
	f, err := NewForestFromJSON([]byte(tieModel))
	require.NoError(t, err)

	label, err := f.Predict(risk.FeatureVector{0.5, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, label)
}

func TestNewForestFromJSON_Invalid(t *testing.T) {
	for name, data := range map[string]string{
		"garbage":      `{{{`,
		"no trees":     `{"schema_version":"v1","features":["a"],"trees":[]}`,
		"no features":  `{"schema_version":"v1","features":[],"trees":[{"nodes":[{"leaf":[1,0]}]}]}`,
		"empty tree":   `{"schema_version":"v1","features":["a"],"trees":[{"nodes":[]}]}`,
		"bad leaf":     `{"schema_version":"v1","features":["a"],"trees":[{"nodes":[{"leaf":[1]}]}]}`,
		"bad feature":  `{"schema_version":"v1","features":["a"],"trees":[{"nodes":[{"feature":3,"threshold":1,"left":1,"right":2},{"leaf":[1,0]},{"leaf":[0,1]}]}]}`,
		"bad children": `{"schema_version":"v1","features":["a"],"trees":[{"nodes":[{"feature":0,"threshold":1,"left":0,"right":9},{"leaf":[1,0]}]}]}`,
	} {
		_, err := NewForestFromJSON([]byte(data))
		assert.Error(t, err, name)
	}
}

func TestLoadForest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, []byte(twoTreeModel), 0o644))

	f, err := LoadForest(path)
	require.NoError(t, err)
	assert.Len(t, f.trees, 2)

	_, err = LoadForest(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
