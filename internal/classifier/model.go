package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Default artifact file names.
const (
	VectorizerFile = "expense_category_vectorizer.json"
	ModelFile      = "expense_category_model.json"
)

// Model is a trained bag-of-words logistic regression classifier.
type Model struct {
	vectorizer *Vectorizer
	lr         *LogisticRegression
}

// Train fits a model on samples.
func Train(samples []Sample, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 {
		return nil, errors.New("no training samples")
	}

	docs := make([]string, len(samples))
	labels := make([]string, len(samples))
	for i, s := range samples {
		docs[i] = s.Name
		labels[i] = s.Category
	}

	vec := NewVectorizer()
	vec.Fit(docs)
	if vec.Features() == 0 {
		return nil, errors.New("training samples produced an empty vocabulary")
	}

	xs := make([]SparseVector, len(docs))
	for i, d := range docs {
		xs[i] = vec.Transform(d)
	}

	lr, err := fitLogisticRegression(xs, labels, vec.Features(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fit model: %w", err)
	}

	return &Model{vectorizer: vec, lr: lr}, nil
}

// Predict implements Classifier.
func (m *Model) Predict(_ context.Context, name string) (string, error) {
	if m == nil || m.vectorizer == nil || m.lr == nil {
		return "", ErrNoModel
	}
	return m.lr.Predict(m.vectorizer.Transform(name)), nil
}

// Classes returns the labels the model can predict, sorted.
func (m *Model) Classes() []string {
	return append([]string(nil), m.lr.Classes...)
}

// Accuracy returns the fraction of samples the model labels correctly.
func (m *Model) Accuracy(ctx context.Context, samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var hits int
	for _, s := range samples {
		if got, err := m.Predict(ctx, s.Name); err == nil && got == s.Category {
			hits++
		}
	}
	return float64(hits) / float64(len(samples))
}

// Save writes the vectorizer and model artifacts.
func (m *Model) Save(vectorizerPath, modelPath string) error {
	if err := writeJSON(vectorizerPath, m.vectorizer); err != nil {
		return fmt.Errorf("failed to save vectorizer: %w", err)
	}
	if err := writeJSON(modelPath, m.lr); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}

// Load reads a model from its two artifacts. Both must exist and agree on
// the feature count.
func Load(vectorizerPath, modelPath string) (*Model, error) {
	var vec Vectorizer
	if err := readJSON(vectorizerPath, &vec); err != nil {
		return nil, fmt.Errorf("failed to load vectorizer: %w", err)
	}
	if len(vec.Vocabulary) == 0 {
		return nil, fmt.Errorf("vectorizer %s has an empty vocabulary", vectorizerPath)
	}

	var lr LogisticRegression
	if err := readJSON(modelPath, &lr); err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	if err := lr.validate(vec.Features()); err != nil {
		return nil, fmt.Errorf("model %s does not match vectorizer: %w", modelPath, err)
	}

	return &Model{vectorizer: &vec, lr: &lr}, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
