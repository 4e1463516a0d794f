package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/OrderLens/OrderLens-Go/utils"
)

// Fingerprint identifies the shape a model was trained against. A persisted
// model whose fingerprint no longer matches the requested shape is stale and
// gets retrained instead of silently producing wrong-shaped predictions.
type Fingerprint struct {
	Kind         ModelKind `json:"kind"`
	FeatureNames []string  `json:"feature_names"`
}

// Matches reports whether two fingerprints describe the same model shape
func (f Fingerprint) Matches(other Fingerprint) bool {
	if f.Kind != other.Kind || len(f.FeatureNames) != len(other.FeatureNames) {
		return false
	}
	for i, name := range f.FeatureNames {
		if name != other.FeatureNames[i] {
			return false
		}
	}
	return true
}

// artifact is the on-disk envelope around a persisted forest
type artifact struct {
	Fingerprint Fingerprint   `json:"fingerprint"`
	Model       *RandomForest `json:"model"`
}

// Store caches trained forests on disk keyed by name. Training only happens
// when no usable artifact exists, so repeated GetOrTrain calls for the same
// key are cheap.
type Store struct {
	dir      string
	numTrees int
	seed     int64
}

// NewStore creates a model store rooted at dir, creating it if needed
func NewStore(dir string, numTrees int, seed int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating model directory: %w", err)
	}
	return &Store{dir: dir, numTrees: numTrees, seed: seed}, nil
}

// Path returns the artifact path for a model key
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// GetOrTrain loads the persisted model for key if its fingerprint matches the
// requested kind and feature order; otherwise it trains a fresh forest and
// persists it. Corrupt or stale artifacts are replaced, not errors.
func (s *Store) GetOrTrain(key string, kind ModelKind, X [][]float64, y []float64, featureNames []string) (*RandomForest, error) {
	want := Fingerprint{Kind: kind, FeatureNames: featureNames}
	path := s.Path(key)
	logger := utils.GetLogger()

	if model, ok := s.load(path, want); ok {
		logger.Info("Model loaded from store",
			utils.String("key", key),
			utils.String("kind", string(kind)),
			utils.Component("ml"))
		return model, nil
	}

	forest := NewRandomForest(s.numTrees, s.seed)
	var err error
	switch kind {
	case Regression:
		err = forest.FitRegression(X, y, featureNames)
	case Classification:
		labels := make([]int, len(y))
		for i, v := range y {
			labels[i] = int(math.Round(v))
		}
		err = forest.Fit(X, labels, featureNames)
	default:
		return nil, fmt.Errorf("unknown model kind: %s", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("training %s: %w", key, err)
	}

	if err := s.save(path, want, forest); err != nil {
		return nil, fmt.Errorf("persisting %s: %w", key, err)
	}

	logger.Info("Model trained and persisted",
		utils.String("key", key),
		utils.String("kind", string(kind)),
		utils.Component("ml"))

	return forest, nil
}

// Exists reports whether an artifact file exists for key
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// Remove deletes the artifact for key, ignoring a missing file
func (s *Store) Remove(key string) error {
	err := os.Remove(s.Path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) load(path string, want Fingerprint) (*RandomForest, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil || art.Model == nil {
		utils.GetLogger().Warn("Discarding unreadable model artifact",
			utils.String("path", path),
			utils.Component("ml"))
		return nil, false
	}
	if !art.Fingerprint.Matches(want) {
		utils.GetLogger().Warn("Discarding stale model artifact",
			utils.String("path", path),
			utils.Component("ml"))
		return nil, false
	}

	return art.Model, true
}

func (s *Store) save(path string, fp Fingerprint, model *RandomForest) error {
	data, err := json.MarshalIndent(artifact{Fingerprint: fp, Model: model}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
