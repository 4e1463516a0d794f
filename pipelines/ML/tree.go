package ml

import (
	"fmt"
	"sort"
)

// TreeNode represents a node in a decision tree
type TreeNode struct {
	IsLeaf       bool      `json:"is_leaf"`
	Class        int       `json:"class,omitempty"`         // Leaf class (classification)
	Value        float64   `json:"value,omitempty"`         // Leaf mean (regression)
	FeatureIndex int       `json:"feature_index,omitempty"` // Index of split feature
	Threshold    float64   `json:"threshold,omitempty"`     // Split threshold (<= left, > right)
	Left         *TreeNode `json:"left,omitempty"`
	Right        *TreeNode `json:"right,omitempty"`
	Samples      int       `json:"samples"`
}

// DecisionTree implements a lightweight CART tree supporting binary-style
// classification over integer labels and mean-leaf regression
type DecisionTree struct {
	Root            *TreeNode `json:"root"`
	MaxDepth        int       `json:"max_depth"`
	MinSamplesSplit int       `json:"min_samples_split"`
	MinSamplesLeaf  int       `json:"min_samples_leaf"`
	NumFeatures     int       `json:"num_features"`
	Kind            ModelKind `json:"kind"`
}

// NewDecisionTree creates a decision tree with default hyperparameters for
// non-positive arguments
func NewDecisionTree(maxDepth, minSamplesSplit, minSamplesLeaf int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if minSamplesSplit <= 0 {
		minSamplesSplit = 2
	}
	if minSamplesLeaf <= 0 {
		minSamplesLeaf = 1
	}
	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  minSamplesLeaf,
	}
}

// Fit builds a classification tree from training data
func (dt *DecisionTree) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}

	dt.NumFeatures = len(X[0])
	dt.Kind = Classification

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}
	dt.Root = dt.buildTree(X, y, indices, 0)
	return nil
}

// FitRegression builds a regression tree from training data
func (dt *DecisionTree) FitRegression(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}

	dt.NumFeatures = len(X[0])
	dt.Kind = Regression

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}
	dt.Root = dt.buildTreeRegression(X, y, indices, 0)
	return nil
}

// buildTree recursively builds a classification tree
func (dt *DecisionTree) buildTree(X [][]float64, y []int, indices []int, depth int) *TreeNode {
	node := &TreeNode{Samples: len(indices)}

	classCounts := make(map[int]int)
	for _, idx := range indices {
		classCounts[y[idx]]++
	}
	node.Class = majorityClass(classCounts)

	if depth >= dt.MaxDepth || len(indices) < dt.MinSamplesSplit || len(classCounts) == 1 {
		node.IsLeaf = true
		return node
	}

	bestFeature, bestThreshold, bestGain := dt.findBestSplit(X, y, indices)
	if bestGain <= 0 {
		node.IsLeaf = true
		return node
	}

	leftIndices, rightIndices := dt.splitData(X, indices, bestFeature, bestThreshold)
	if len(leftIndices) < dt.MinSamplesLeaf || len(rightIndices) < dt.MinSamplesLeaf {
		node.IsLeaf = true
		return node
	}

	node.FeatureIndex = bestFeature
	node.Threshold = bestThreshold
	node.Left = dt.buildTree(X, y, leftIndices, depth+1)
	node.Right = dt.buildTree(X, y, rightIndices, depth+1)
	return node
}

// buildTreeRegression recursively builds a regression tree
func (dt *DecisionTree) buildTreeRegression(X [][]float64, y []float64, indices []int, depth int) *TreeNode {
	node := &TreeNode{Samples: len(indices)}

	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = y[idx]
	}
	mean := calculateMean(values)
	variance := calculateVariance(values, mean)
	node.Value = mean

	if depth >= dt.MaxDepth || len(indices) < dt.MinSamplesSplit || variance < 1e-7 {
		node.IsLeaf = true
		return node
	}

	bestFeature, bestThreshold, bestGain := dt.findBestSplitRegression(X, y, indices)
	if bestGain <= 0 {
		node.IsLeaf = true
		return node
	}

	leftIndices, rightIndices := dt.splitData(X, indices, bestFeature, bestThreshold)
	if len(leftIndices) < dt.MinSamplesLeaf || len(rightIndices) < dt.MinSamplesLeaf {
		node.IsLeaf = true
		return node
	}

	node.FeatureIndex = bestFeature
	node.Threshold = bestThreshold
	node.Left = dt.buildTreeRegression(X, y, leftIndices, depth+1)
	node.Right = dt.buildTreeRegression(X, y, rightIndices, depth+1)
	return node
}

// findBestSplit finds the Gini-optimal feature and threshold
func (dt *DecisionTree) findBestSplit(X [][]float64, y []int, indices []int) (int, float64, float64) {
	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	labels := make([]int, len(indices))
	for i, idx := range indices {
		labels[i] = y[idx]
	}
	parentGini := giniImpurity(labels)

	for feature := 0; feature < dt.NumFeatures; feature++ {
		values := make([]float64, len(indices))
		for i, idx := range indices {
			values[i] = X[idx][feature]
		}

		for _, threshold := range candidateThresholds(values) {
			leftIndices, rightIndices := dt.splitData(X, indices, feature, threshold)
			if len(leftIndices) == 0 || len(rightIndices) == 0 {
				continue
			}

			leftLabels := make([]int, len(leftIndices))
			for i, idx := range leftIndices {
				leftLabels[i] = y[idx]
			}
			rightLabels := make([]int, len(rightIndices))
			for i, idx := range rightIndices {
				rightLabels[i] = y[idx]
			}

			n := float64(len(indices))
			nLeft := float64(len(leftIndices))
			nRight := float64(len(rightIndices))

			weightedGini := (nLeft/n)*giniImpurity(leftLabels) + (nRight/n)*giniImpurity(rightLabels)
			gain := parentGini - weightedGini

			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

// findBestSplitRegression finds the variance-reduction-optimal split
func (dt *DecisionTree) findBestSplitRegression(X [][]float64, y []float64, indices []int) (int, float64, float64) {
	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = y[idx]
	}
	parentVariance := calculateVariance(values, calculateMean(values))

	for feature := 0; feature < dt.NumFeatures; feature++ {
		featureValues := make([]float64, len(indices))
		for i, idx := range indices {
			featureValues[i] = X[idx][feature]
		}

		for _, threshold := range candidateThresholds(featureValues) {
			leftIndices, rightIndices := dt.splitData(X, indices, feature, threshold)
			if len(leftIndices) == 0 || len(rightIndices) == 0 {
				continue
			}

			leftValues := make([]float64, len(leftIndices))
			for i, idx := range leftIndices {
				leftValues[i] = y[idx]
			}
			rightValues := make([]float64, len(rightIndices))
			for i, idx := range rightIndices {
				rightValues[i] = y[idx]
			}

			n := float64(len(indices))
			nLeft := float64(len(leftIndices))
			nRight := float64(len(rightIndices))

			leftVariance := calculateVariance(leftValues, calculateMean(leftValues))
			rightVariance := calculateVariance(rightValues, calculateMean(rightValues))

			weightedVariance := (nLeft/n)*leftVariance + (nRight/n)*rightVariance
			gain := parentVariance - weightedVariance

			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

// splitData splits indices on a feature threshold
func (dt *DecisionTree) splitData(X [][]float64, indices []int, feature int, threshold float64) ([]int, []int) {
	var leftIndices, rightIndices []int
	for _, idx := range indices {
		if X[idx][feature] <= threshold {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}
	return leftIndices, rightIndices
}

// PredictClass predicts the class for a single sample
func (dt *DecisionTree) PredictClass(x []float64) (int, error) {
	if dt.Root == nil {
		return 0, fmt.Errorf("model not trained")
	}
	if len(x) != dt.NumFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", dt.NumFeatures, len(x))
	}

	node := dt.Root
	for !node.IsLeaf {
		if x[node.FeatureIndex] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Class, nil
}

// Predict predicts a numeric value for a single sample (regression)
func (dt *DecisionTree) Predict(x []float64) (float64, error) {
	if dt.Root == nil {
		return 0, fmt.Errorf("model not trained")
	}
	if dt.Kind != Regression {
		return 0, fmt.Errorf("model is not a regression model")
	}
	if len(x) != dt.NumFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", dt.NumFeatures, len(x))
	}

	node := dt.Root
	for !node.IsLeaf {
		if x[node.FeatureIndex] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value, nil
}

// Depth returns the maximum depth of the tree
func (dt *DecisionTree) Depth() int {
	return nodeDepth(dt.Root)
}

func nodeDepth(node *TreeNode) int {
	if node == nil {
		return 0
	}
	if node.IsLeaf {
		return 0
	}
	left := nodeDepth(node.Left)
	right := nodeDepth(node.Right)
	if left > right {
		return 1 + left
	}
	return 1 + right
}

// NumNodes returns the total number of nodes in the tree
func (dt *DecisionTree) NumNodes() int {
	return countNodes(dt.Root)
}

func countNodes(node *TreeNode) int {
	if node == nil {
		return 0
	}
	return 1 + countNodes(node.Left) + countNodes(node.Right)
}

// Helper functions

// majorityClass picks the most frequent class, lowest class winning ties so
// repeated calls are deterministic
func majorityClass(classCounts map[int]int) int {
	classes := make([]int, 0, len(classCounts))
	for class := range classCounts {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	best := 0
	bestCount := -1
	for _, class := range classes {
		if classCounts[class] > bestCount {
			best = class
			bestCount = classCounts[class]
		}
	}
	return best
}

// giniImpurity computes Gini impurity, accumulating in sorted class order so
// the float result does not depend on map iteration order
func giniImpurity(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	classes := make([]int, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	n := float64(len(labels))
	gini := 1.0
	for _, class := range classes {
		p := float64(counts[class]) / n
		gini -= p * p
	}
	return gini
}

// candidateThresholds returns midpoints between sorted unique values
func candidateThresholds(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	uniqueVals := make([]float64, 0, len(values))
	seen := make(map[float64]bool)
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			uniqueVals = append(uniqueVals, v)
		}
	}
	if len(uniqueVals) == 1 {
		return nil
	}
	sort.Float64s(uniqueVals)

	thresholds := make([]float64, len(uniqueVals)-1)
	for i := 0; i < len(uniqueVals)-1; i++ {
		thresholds[i] = (uniqueVals[i] + uniqueVals[i+1]) / 2.0
	}
	return thresholds
}

func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func calculateVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return variance / float64(len(values))
}
