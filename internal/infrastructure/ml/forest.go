// Package ml loads and evaluates the pre-trained dropout-risk model.
//
// The model is a random forest exported from the training pipeline as a JSON
// manifest: a declared feature schema plus flattened decision trees. It is
// loaded once at process start and is read-only afterwards, so a single
// *Forest is safe for concurrent use across school runs.
package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/smart-attendance/dropout-radar/internal/domain/risk"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrModelInvalid indicates a structurally broken model manifest.
	ErrModelInvalid = errors.New("ml: invalid model manifest")

	// ErrModelEmpty indicates a manifest with no trees.
	ErrModelEmpty = errors.New("ml: model has no trees")
)

// ══════════════════════════════════════════════════════════════════════════════
// MANIFEST FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// manifest is the on-disk model format produced by the training export.
type manifest struct {
	// SchemaVersion names the feature contract the model was trained on.
	SchemaVersion string `json:"schema_version"`

	// Features lists the expected feature columns in order.
	Features []string `json:"features"`

	// Trees holds the forest's decision trees.
	Trees []tree `json:"trees"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

// node is one flattened decision-tree node. Internal nodes route on
// value[Feature] <= Threshold (left) vs > Threshold (right); leaves carry a
// two-class probability distribution [P(stay), P(dropout)].
type node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Leaf      []float64 `json:"leaf,omitempty"`
}

func (n node) isLeaf() bool {
	return len(n.Leaf) > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// FOREST
// ══════════════════════════════════════════════════════════════════════════════

// Forest is a loaded dropout-risk model implementing risk.Classifier.
type Forest struct {
	schema risk.FeatureSchema
	trees  []tree
}

// LoadForest reads and validates a model manifest from disk.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ml: read model file %s: %w", path, err)
	}
	f, err := NewForestFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("ml: load model file %s: %w", path, err)
	}
	return f, nil
}

// NewForestFromJSON parses and validates a model manifest.
func NewForestFromJSON(data []byte) (*Forest, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelInvalid, err)
	}

	if len(m.Trees) == 0 {
		return nil, ErrModelEmpty
	}
	if len(m.Features) == 0 {
		return nil, fmt.Errorf("%w: no feature columns declared", ErrModelInvalid)
	}

	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return nil, fmt.Errorf("%w: tree %d has no nodes", ErrModelInvalid, ti)
		}
		for ni, n := range t.Nodes {
			if n.isLeaf() {
				if len(n.Leaf) != 2 {
					return nil, fmt.Errorf("%w: tree %d node %d: leaf must hold 2 class probabilities", ErrModelInvalid, ti, ni)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= len(m.Features) {
				return nil, fmt.Errorf("%w: tree %d node %d: feature index %d out of range", ErrModelInvalid, ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return nil, fmt.Errorf("%w: tree %d node %d: child index out of range", ErrModelInvalid, ti, ni)
			}
		}
	}

	return &Forest{
		schema: risk.FeatureSchema{Version: m.SchemaVersion, Columns: m.Features},
		trees:  m.Trees,
	}, nil
}

// Schema returns the feature contract declared by the manifest. The scorer
// compares it against risk.SchemaV1 and refuses to run on mismatch.
func (f *Forest) Schema() risk.FeatureSchema {
	return f.schema
}

// PredictProba returns the forest-averaged probability of the dropout class.
func (f *Forest) PredictProba(v risk.FeatureVector) (float64, error) {
	dist, err := f.predictDist(v)
	if err != nil {
		return 0, err
	}
	return dist[1], nil
}

// Predict returns the binary label: the class with the higher averaged
// probability. The stay class wins exact ties, matching the training
// pipeline's argmax.
func (f *Forest) Predict(v risk.FeatureVector) (int, error) {
	dist, err := f.predictDist(v)
	if err != nil {
		return 0, err
	}
	if dist[1] > dist[0] {
		return 1, nil
	}
	return 0, nil
}

// predictDist averages the leaf distributions reached in every tree.
func (f *Forest) predictDist(v risk.FeatureVector) ([2]float64, error) {
	var sum [2]float64
	for ti := range f.trees {
		leaf, err := f.trees[ti].walk(v)
		if err != nil {
			return sum, fmt.Errorf("ml: tree %d: %w", ti, err)
		}
		sum[0] += leaf[0]
		sum[1] += leaf[1]
	}
	n := float64(len(f.trees))
	return [2]float64{sum[0] / n, sum[1] / n}, nil
}

// walk descends from the root to a leaf. Child indices are validated at load
// time to be strictly increasing, so traversal always terminates.
func (t tree) walk(v risk.FeatureVector) ([]float64, error) {
	i := 0
	for {
		n := t.Nodes[i]
		if n.isLeaf() {
			return n.Leaf, nil
		}
		if n.Feature >= len(v) {
			return nil, fmt.Errorf("%w: feature index %d exceeds vector size", ErrModelInvalid, n.Feature)
		}
		if v[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
