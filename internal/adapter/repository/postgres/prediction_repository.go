package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayush630/clinical-bert-api/internal/domain/entity"
	"github.com/ayush630/clinical-bert-api/internal/domain/repository"
)

const insertBatchSize = 100

type predictionRepository struct {
	db *gorm.DB
}

// NewPredictionRepository creates a new prediction record repository
func NewPredictionRepository(db *gorm.DB) repository.PredictionRepository {
	return &predictionRepository{db: db}
}

func (r *predictionRepository) CreateBatch(ctx context.Context, records []*entity.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(records, insertBatchSize).Error
}

func (r *predictionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PredictionRecord, error) {
	var record entity.PredictionRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *predictionRepository) List(ctx context.Context, filter repository.PredictionFilter, limit, offset int) ([]*entity.PredictionRecord, int64, error) {
	var records []*entity.PredictionRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PredictionRecord{})
	if filter.Label != "" {
		query = query.Where("label = ?", filter.Label)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("batch_index ASC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
