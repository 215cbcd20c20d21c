package models

import (
	"fmt"
	"math"
)

// Classifier kinds accepted in model artifacts.
const (
	KindLogistic     = "logistic"
	KindBoostedTrees = "boosted_trees"
	KindRandomForest = "random_forest"
)

// Classifier is a trained binary model. PredictProba returns P(cancelled)
// for one row whose values are ordered like the model's feature columns.
type Classifier interface {
	PredictProba(row []float64) (float64, error)
}

// Node is one entry of a flat decision-tree array. A node with Left == -1
// is a leaf and carries Leaf; otherwise rows with x[Feature] < Threshold
// descend to Left and all others (including NaN) to Right.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      float64 `json:"leaf"`
}

// Tree is a validated flat node array rooted at index 0.
type Tree []Node

func (t Tree) isLeaf(i int) bool { return t[i].Left == -1 }

// eval walks the tree. Children always sit after their parent, so the loop
// terminates in at most len(t) steps.
func (t Tree) eval(row []float64) float64 {
	i := 0
	for !t.isLeaf(i) {
		n := t[i]
		if row[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t[i].Leaf
}

func (t Tree) validate(numFeatures int) error {
	if len(t) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, n := range t {
		if n.Left == -1 {
			if math.IsNaN(n.Leaf) || math.IsInf(n.Leaf, 0) {
				return fmt.Errorf("node %d: leaf value is not finite", i)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= numFeatures {
			return fmt.Errorf("node %d: feature index %d out of range [0,%d)", i, n.Feature, numFeatures)
		}
		if n.Left <= i || n.Left >= len(t) || n.Right <= i || n.Right >= len(t) {
			return fmt.Errorf("node %d: dangling child index (left=%d right=%d)", i, n.Left, n.Right)
		}
	}
	return nil
}

func checkRow(row []float64, want int) error {
	if len(row) != want {
		return fmt.Errorf("row has %d values, model expects %d", len(row), want)
	}
	return nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Logistic is a linear model with a sigmoid link.
type Logistic struct {
	Coefficients []float64
	Intercept    float64
}

// PredictProba implements Classifier.
func (m *Logistic) PredictProba(row []float64) (float64, error) {
	if err := checkRow(row, len(m.Coefficients)); err != nil {
		return 0, err
	}
	z := m.Intercept
	for i, c := range m.Coefficients {
		z += c * row[i]
	}
	return sigmoid(z), nil
}

// BoostedTrees is a gradient-boosted ensemble whose leaves hold logit
// margins. The probability is sigmoid(BaseScore + sum of leaf values).
type BoostedTrees struct {
	BaseScore   float64
	Trees       []Tree
	NumFeatures int
}

// PredictProba implements Classifier.
func (m *BoostedTrees) PredictProba(row []float64) (float64, error) {
	if err := checkRow(row, m.NumFeatures); err != nil {
		return 0, err
	}
	margin := m.BaseScore
	for _, t := range m.Trees {
		margin += t.eval(row)
	}
	return sigmoid(margin), nil
}

// RandomForest averages per-tree positive-class probabilities.
type RandomForest struct {
	Trees       []Tree
	NumFeatures int
}

// PredictProba implements Classifier.
func (m *RandomForest) PredictProba(row []float64) (float64, error) {
	if err := checkRow(row, m.NumFeatures); err != nil {
		return 0, err
	}
	var sum float64
	for _, t := range m.Trees {
		sum += t.eval(row)
	}
	return sum / float64(len(m.Trees)), nil
}
