package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/OrderLens/OrderLens-Go/utils"
)

// ModelKind distinguishes regression forests from classification forests
type ModelKind string

const (
	Regression     ModelKind = "regression"
	Classification ModelKind = "classification"
)

// RandomForest is an ensemble of decision trees trained on bootstrap samples
// with random feature subsets. Training is deterministic for a given seed:
// every tree derives its own RNG from the forest seed and its index, so the
// parallel training order cannot change the result.
type RandomForest struct {
	Trees           []*DecisionTree `json:"trees"`
	TreeFeatures    [][]int         `json:"tree_features"` // Feature subset per tree
	NumTrees        int             `json:"num_trees"`
	MaxDepth        int             `json:"max_depth"`
	MinSamplesSplit int             `json:"min_samples_split"`
	MinSamplesLeaf  int             `json:"min_samples_leaf"`
	MaxFeatures     int             `json:"max_features"`
	FeatureNames    []string        `json:"feature_names"`
	NumFeatures     int             `json:"num_features"`
	Kind            ModelKind       `json:"kind"`
	Seed            int64           `json:"seed"`
}

// NewRandomForest creates a forest with default hyperparameters for
// non-positive arguments
func NewRandomForest(numTrees int, seed int64) *RandomForest {
	if numTrees <= 0 {
		numTrees = 100
	}
	return &RandomForest{
		NumTrees:        numTrees,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            seed,
	}
}

// Fit trains a classification forest
func (rf *RandomForest) Fit(X [][]float64, y []int, featureNames []string) error {
	rf.Kind = Classification
	return rf.train(X, func(tree *DecisionTree, subX [][]float64, sampleIdx []int) error {
		subY := make([]int, len(sampleIdx))
		for i, idx := range sampleIdx {
			subY[i] = y[idx]
		}
		return tree.Fit(subX, subY)
	}, len(y), featureNames)
}

// FitRegression trains a regression forest
func (rf *RandomForest) FitRegression(X [][]float64, y []float64, featureNames []string) error {
	rf.Kind = Regression
	return rf.train(X, func(tree *DecisionTree, subX [][]float64, sampleIdx []int) error {
		subY := make([]float64, len(sampleIdx))
		for i, idx := range sampleIdx {
			subY[i] = y[idx]
		}
		return tree.FitRegression(subX, subY)
	}, len(y), featureNames)
}

// train runs the shared bootstrap-and-fit loop. fitTree receives the tree,
// the bootstrapped feature-projected matrix and the bootstrap sample indices.
func (rf *RandomForest) train(X [][]float64, fitTree func(*DecisionTree, [][]float64, []int) error, numTargets int, featureNames []string) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != numTargets {
		return fmt.Errorf("X and y must have same number of samples")
	}

	rf.NumFeatures = len(X[0])
	rf.FeatureNames = make([]string, len(featureNames))
	copy(rf.FeatureNames, featureNames)

	if rf.MaxFeatures <= 0 {
		rf.MaxFeatures = int(math.Sqrt(float64(rf.NumFeatures)))
		if rf.MaxFeatures < 1 {
			rf.MaxFeatures = 1
		}
	}

	start := time.Now()

	rf.Trees = make([]*DecisionTree, rf.NumTrees)
	rf.TreeFeatures = make([][]int, rf.NumTrees)

	var wg sync.WaitGroup
	errs := make([]error, rf.NumTrees)

	for t := 0; t < rf.NumTrees; t++ {
		wg.Add(1)
		go func(treeIdx int) {
			defer wg.Done()

			// Per-tree RNG keyed on the forest seed keeps training
			// reproducible regardless of goroutine scheduling
			rng := rand.New(rand.NewSource(rf.Seed + int64(treeIdx)))

			sampleIdx := bootstrapSample(len(X), rng)
			features := sampleFeatures(rf.NumFeatures, rf.MaxFeatures, rng)

			subX := make([][]float64, len(sampleIdx))
			for i, idx := range sampleIdx {
				row := make([]float64, len(features))
				for j, f := range features {
					row[j] = X[idx][f]
				}
				subX[i] = row
			}

			tree := NewDecisionTree(rf.MaxDepth, rf.MinSamplesSplit, rf.MinSamplesLeaf)
			if err := fitTree(tree, subX, sampleIdx); err != nil {
				errs[treeIdx] = fmt.Errorf("training tree %d: %w", treeIdx, err)
				return
			}

			rf.Trees[treeIdx] = tree
			rf.TreeFeatures[treeIdx] = features
		}(t)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	utils.GetLogger().Info("Random forest trained",
		utils.String("kind", string(rf.Kind)),
		utils.Int("trees", rf.NumTrees),
		utils.Int("samples", len(X)),
		utils.Float("duration_ms", time.Since(start).Seconds()*1000),
		utils.Component("ml"))

	return nil
}

// Predict aggregates the per-tree predictions for one sample: the mean for a
// regression forest, the majority vote for a classification forest. Vote ties
// break toward the lowest class so prediction is deterministic.
func (rf *RandomForest) Predict(x []float64) (float64, error) {
	if len(rf.Trees) == 0 {
		return 0, fmt.Errorf("model not trained")
	}
	if len(x) != rf.NumFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", rf.NumFeatures, len(x))
	}

	if rf.Kind == Regression {
		sum := 0.0
		for t, tree := range rf.Trees {
			pred, err := tree.Predict(projectFeatures(x, rf.TreeFeatures[t]))
			if err != nil {
				return 0, fmt.Errorf("tree %d: %w", t, err)
			}
			sum += pred
		}
		return sum / float64(len(rf.Trees)), nil
	}

	votes := make(map[int]int)
	for t, tree := range rf.Trees {
		class, err := tree.PredictClass(projectFeatures(x, rf.TreeFeatures[t]))
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", t, err)
		}
		votes[class]++
	}
	return float64(majorityClass(votes)), nil
}

// PredictClass predicts the majority-vote class for one sample
func (rf *RandomForest) PredictClass(x []float64) (int, error) {
	if rf.Kind != Classification {
		return 0, fmt.Errorf("model is not a classification model")
	}
	pred, err := rf.Predict(x)
	if err != nil {
		return 0, err
	}
	return int(pred), nil
}

// Save persists the forest as indented JSON
func (rf *RandomForest) Save(path string) error {
	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing model file: %w", err)
	}
	return nil
}

// LoadRandomForest reads a persisted forest from disk
func LoadRandomForest(path string) (*RandomForest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	var rf RandomForest
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("unmarshaling model: %w", err)
	}
	return &rf, nil
}

// bootstrapSample draws n indices with replacement
func bootstrapSample(n int, rng *rand.Rand) []int {
	sample := make([]int, n)
	for i := range sample {
		sample[i] = rng.Intn(n)
	}
	return sample
}

// sampleFeatures draws k distinct feature indices, returned sorted
func sampleFeatures(numFeatures, k int, rng *rand.Rand) []int {
	if k >= numFeatures {
		features := make([]int, numFeatures)
		for i := range features {
			features[i] = i
		}
		return features
	}

	perm := rng.Perm(numFeatures)
	features := make([]int, k)
	copy(features, perm[:k])
	sort.Ints(features)
	return features
}

// projectFeatures extracts the tree's feature subset from a full vector
func projectFeatures(x []float64, features []int) []float64 {
	sub := make([]float64, len(features))
	for i, f := range features {
		sub[i] = x[f]
	}
	return sub
}
