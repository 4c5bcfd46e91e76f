// Package classifier infers an expense category from the expense name.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Uncategorized is assigned whenever no category can be inferred.
const Uncategorized = "Uncategorized"

var (
	// ErrNoModel is returned by classifiers that have nothing loaded.
	ErrNoModel = errors.New("no category model loaded")
	// ErrUnknownCategory is returned when a backend answers with a label it
	// was not asked to choose from.
	ErrUnknownCategory = errors.New("unknown category")
)

// Classifier predicts a category for an expense name.
type Classifier interface {
	Predict(ctx context.Context, name string) (string, error)
}

// Categorize returns the category c predicts for name. It never fails to
// produce a usable label: a nil classifier, a prediction error, a panic or
// an empty answer all yield Uncategorized. The error, when non-nil, explains
// why the fallback was used and is meant for logging only.
func Categorize(ctx context.Context, c Classifier, name string) (category string, err error) {
	if c == nil {
		return Uncategorized, ErrNoModel
	}

	defer func() {
		if r := recover(); r != nil {
			category = Uncategorized
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()

	category, err = c.Predict(ctx, name)
	if err != nil {
		return Uncategorized, err
	}
	if strings.TrimSpace(category) == "" {
		return Uncategorized, errors.New("classifier returned an empty category")
	}
	return category, nil
}

// Unavailable is a Classifier that always fails. It stands in when the
// configured backend could not be loaded.
type Unavailable struct {
	Reason error
}

func (u Unavailable) Predict(context.Context, string) (string, error) {
	if u.Reason != nil {
		return "", fmt.Errorf("%w: %v", ErrNoModel, u.Reason)
	}
	return "", ErrNoModel
}
