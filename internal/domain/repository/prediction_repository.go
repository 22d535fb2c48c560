package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ayush630/clinical-bert-api/internal/domain/entity"
)

// PredictionFilter narrows prediction record listings
type PredictionFilter struct {
	Label string
}

// PredictionRepository defines the interface for prediction record operations
type PredictionRepository interface {
	// CreateBatch stores records for one request
	CreateBatch(ctx context.Context, records []*entity.PredictionRecord) error

	// GetByID retrieves a record by its ID, nil if missing
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PredictionRecord, error)

	// List retrieves records, newest first, with pagination
	List(ctx context.Context, filter PredictionFilter, limit, offset int) ([]*entity.PredictionRecord, int64, error)
}
