package classifier

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// TrainOptions controls logistic regression fitting.
type TrainOptions struct {
	// C is the inverse L2 regularization strength.
	C            float64
	Iterations   int
	LearningRate float64
}

// DefaultTrainOptions mirrors a stock multinomial logistic regression.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{C: 1.0, Iterations: 3000, LearningRate: 0.5}
}

// LogisticRegression is a fitted multinomial (softmax) linear classifier.
type LogisticRegression struct {
	Classes   []string    `json:"classes"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

// fitLogisticRegression minimises the mean cross-entropy plus an L2 penalty on
// the coefficients with full-batch gradient descent. Starting from zero
// weights with a fixed schedule makes the result deterministic.
func fitLogisticRegression(xs []SparseVector, labels []string, features int, opts TrainOptions) (*LogisticRegression, error) {
	if len(xs) != len(labels) {
		return nil, fmt.Errorf("have %d vectors but %d labels", len(xs), len(labels))
	}
	if opts.C <= 0 || opts.Iterations <= 0 || opts.LearningRate <= 0 {
		return nil, errors.New("train options must be positive")
	}

	classes := uniqueSorted(labels)
	if len(classes) < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", len(classes))
	}
	classIndex := make(map[string]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}
	ys := make([]int, len(labels))
	for i, l := range labels {
		ys[i] = classIndex[l]
	}

	k := len(classes)
	n := float64(len(xs))
	coef := make([][]float64, k)
	grad := make([][]float64, k)
	for c := range coef {
		coef[c] = make([]float64, features)
		grad[c] = make([]float64, features)
	}
	intercept := make([]float64, k)
	gradB := make([]float64, k)
	probs := make([]float64, k)

	lr := &LogisticRegression{Classes: classes, Coef: coef, Intercept: intercept}
	for iter := 0; iter < opts.Iterations; iter++ {
		for c := 0; c < k; c++ {
			for j := range grad[c] {
				grad[c][j] = coef[c][j] / (opts.C * n)
			}
			gradB[c] = 0
		}

		for i, x := range xs {
			lr.probabilities(x, probs)
			for c := 0; c < k; c++ {
				diff := probs[c]
				if c == ys[i] {
					diff--
				}
				diff /= n
				gradB[c] += diff
				for j, v := range x {
					grad[c][j] += diff * v
				}
			}
		}

		for c := 0; c < k; c++ {
			for j := range coef[c] {
				coef[c][j] -= opts.LearningRate * grad[c][j]
			}
			intercept[c] -= opts.LearningRate * gradB[c]
		}
	}

	return lr, nil
}

// scores writes the linear decision values of x into out.
func (lr *LogisticRegression) scores(x SparseVector, out []float64) {
	for c := range lr.Classes {
		s := lr.Intercept[c]
		for j, v := range x {
			s += lr.Coef[c][j] * v
		}
		out[c] = s
	}
}

// probabilities writes the softmax of the decision values of x into out.
func (lr *LogisticRegression) probabilities(x SparseVector, out []float64) {
	lr.scores(x, out)
	max := math.Inf(-1)
	for _, s := range out {
		if s > max {
			max = s
		}
	}
	var sum float64
	for c, s := range out {
		out[c] = math.Exp(s - max)
		sum += out[c]
	}
	for c := range out {
		out[c] /= sum
	}
}

// Predict returns the class with the highest decision value. Ties go to the
// alphabetically first class.
func (lr *LogisticRegression) Predict(x SparseVector) string {
	out := make([]float64, len(lr.Classes))
	lr.scores(x, out)
	best := 0
	for c := 1; c < len(out); c++ {
		if out[c] > out[best] {
			best = c
		}
	}
	return lr.Classes[best]
}

func (lr *LogisticRegression) validate(features int) error {
	if len(lr.Classes) == 0 {
		return errors.New("model has no classes")
	}
	if len(lr.Coef) != len(lr.Classes) || len(lr.Intercept) != len(lr.Classes) {
		return fmt.Errorf("model has %d classes but %d coefficient rows and %d intercepts",
			len(lr.Classes), len(lr.Coef), len(lr.Intercept))
	}
	for c, row := range lr.Coef {
		if len(row) != features {
			return fmt.Errorf("coefficient row %d has %d features, vectorizer has %d", c, len(row), features)
		}
	}
	return nil
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
