package service

import (
	"context"
	"errors"

	"github.com/ayush630/clinical-bert-api/internal/domain/entity"
)

// ErrNotReady is returned by a classifier asked to predict before its model is loaded
var ErrNotReady = errors.New("model runtime not ready")

// AssertionClassifier classifies clinical sentences into assertion labels
type AssertionClassifier interface {
	// Predict classifies a single sentence
	Predict(ctx context.Context, sentence string) (entity.Prediction, error)

	// PredictBatch classifies sentences in one pass, results in input order
	PredictBatch(ctx context.Context, sentences []string) ([]entity.Prediction, error)

	// IsReady reports whether the model is loaded
	IsReady() bool

	// ModelID returns the identifier of the served model
	ModelID() string
}

// PredictionCache stores predictions keyed by model and sentence
type PredictionCache interface {
	// GetMany returns cached predictions aligned with sentences; misses are nil
	GetMany(ctx context.Context, modelID string, sentences []string) ([]*entity.Prediction, error)

	// SetMany stores predictions aligned with sentences
	SetMany(ctx context.Context, modelID string, sentences []string, predictions []entity.Prediction) error
}
