package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayush630/clinical-bert-api/internal/domain/entity"
	"github.com/ayush630/clinical-bert-api/internal/domain/repository"
	"github.com/ayush630/clinical-bert-api/internal/domain/service"
	"github.com/ayush630/clinical-bert-api/internal/infrastructure/metrics"
)

// Error definitions for prediction usecase
var (
	ErrModelNotReady      = errors.New("model not loaded")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrPredictionNotFound = errors.New("prediction record not found")
	ErrAuditDisabled      = errors.New("prediction log is disabled")
)

// PredictInput represents a single sentence request
type PredictInput struct {
	Sentence string `json:"sentence" binding:"required,min=1"`
}

// BatchPredictInput represents a batch request
type BatchPredictInput struct {
	Sentences []string `json:"sentences" binding:"required,min=1"`
}

// BatchPredictOutput holds predictions in request order
type BatchPredictOutput struct {
	Predictions []entity.Prediction `json:"predictions"`
}

// PredictionRecordOutput represents a stored prediction
type PredictionRecordOutput struct {
	ID             uuid.UUID `json:"id"`
	RequestID      string    `json:"request_id"`
	Mode           string    `json:"mode"`
	BatchIndex     int       `json:"batch_index"`
	SentenceHash   string    `json:"sentence_hash"`
	SentenceLength int       `json:"sentence_length"`
	Label          string    `json:"label"`
	Score          float64   `json:"score"`
	LatencyMs      int64     `json:"latency_ms"`
	ModelID        string    `json:"model_id"`
	CreatedAt      string    `json:"created_at"`
}

// PredictionRecordListOutput represents a paginated record list
type PredictionRecordListOutput struct {
	Records []*PredictionRecordOutput `json:"records"`
	Total   int64                     `json:"total"`
	Limit   int                       `json:"limit"`
	Offset  int                       `json:"offset"`
	HasMore bool                      `json:"has_more"`
}

// PredictionUsecase defines the interface for prediction business logic
type PredictionUsecase interface {
	IsModelReady() bool
	ModelID() string
	Predict(ctx context.Context, requestID string, input *PredictInput) (*entity.Prediction, error)
	PredictBatch(ctx context.Context, requestID string, input *BatchPredictInput) (*BatchPredictOutput, error)
	GetRecord(ctx context.Context, id uuid.UUID) (*PredictionRecordOutput, error)
	ListRecords(ctx context.Context, label string, limit, offset int) (*PredictionRecordListOutput, error)
}

type predictionUsecase struct {
	classifier service.AssertionClassifier
	cache      service.PredictionCache
	records    repository.PredictionRepository
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewPredictionUsecase creates a new prediction usecase.
// cache, records and m may be nil when those features are disabled.
func NewPredictionUsecase(
	classifier service.AssertionClassifier,
	cache service.PredictionCache,
	records repository.PredictionRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) PredictionUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &predictionUsecase{
		classifier: classifier,
		cache:      cache,
		records:    records,
		metrics:    m,
		logger:     logger,
	}
}

func (uc *predictionUsecase) IsModelReady() bool {
	return uc.classifier.IsReady()
}

func (uc *predictionUsecase) ModelID() string {
	return uc.classifier.ModelID()
}

func (uc *predictionUsecase) Predict(ctx context.Context, requestID string, input *PredictInput) (*entity.Prediction, error) {
	if !uc.classifier.IsReady() {
		return nil, ErrModelNotReady
	}
	if input == nil || input.Sentence == "" {
		return nil, ErrInvalidRequest
	}

	preds, err := uc.classify(ctx, requestID, entity.PredictionModeSingle, []string{input.Sentence})
	if err != nil {
		return nil, err
	}
	return &preds[0], nil
}

func (uc *predictionUsecase) PredictBatch(ctx context.Context, requestID string, input *BatchPredictInput) (*BatchPredictOutput, error) {
	if !uc.classifier.IsReady() {
		return nil, ErrModelNotReady
	}
	if input == nil || len(input.Sentences) == 0 {
		return nil, ErrInvalidRequest
	}

	uc.metrics.ObserveBatchSize(len(input.Sentences))
	preds, err := uc.classify(ctx, requestID, entity.PredictionModeBatch, input.Sentences)
	if err != nil {
		return nil, err
	}
	return &BatchPredictOutput{Predictions: preds}, nil
}

// classify serves cached results and infers the rest in one pass, keeping input order
func (uc *predictionUsecase) classify(ctx context.Context, requestID string, mode entity.PredictionMode, sentences []string) ([]entity.Prediction, error) {
	start := time.Now()
	modelID := uc.classifier.ModelID()
	preds := make([]entity.Prediction, len(sentences))

	missIdx := uc.fillFromCache(ctx, modelID, sentences, preds)

	if len(missIdx) > 0 {
		missing := make([]string, len(missIdx))
		for i, idx := range missIdx {
			missing[i] = sentences[idx]
		}

		inferStart := time.Now()
		var inferred []entity.Prediction
		var err error
		if len(missing) == 1 {
			var p entity.Prediction
			p, err = uc.classifier.Predict(ctx, missing[0])
			inferred = []entity.Prediction{p}
		} else {
			inferred, err = uc.classifier.PredictBatch(ctx, missing)
		}
		if err != nil {
			if errors.Is(err, service.ErrNotReady) {
				return nil, ErrModelNotReady
			}
			return nil, err
		}
		if len(inferred) != len(missing) {
			return nil, fmt.Errorf("classifier returned %d predictions for %d sentences", len(inferred), len(missing))
		}
		uc.metrics.ObserveInference(string(mode), time.Since(inferStart))

		for i, idx := range missIdx {
			preds[idx] = inferred[i]
		}
		uc.storeInCache(ctx, modelID, missing, inferred)
	}

	for _, p := range preds {
		uc.metrics.ObservePrediction(p.Label)
	}
	uc.record(ctx, requestID, mode, sentences, preds, modelID, time.Since(start))
	return preds, nil
}

// fillFromCache copies hits into preds and returns the indices still to infer
func (uc *predictionUsecase) fillFromCache(ctx context.Context, modelID string, sentences []string, preds []entity.Prediction) []int {
	all := make([]int, len(sentences))
	for i := range all {
		all[i] = i
	}
	if uc.cache == nil {
		return all
	}

	cached, err := uc.cache.GetMany(ctx, modelID, sentences)
	if err != nil || len(cached) != len(sentences) {
		uc.logger.Warn("Prediction cache lookup failed", zap.Error(err))
		return all
	}

	missIdx := make([]int, 0, len(sentences))
	for i, p := range cached {
		if p == nil {
			missIdx = append(missIdx, i)
			continue
		}
		preds[i] = *p
	}
	uc.metrics.ObserveCache(len(sentences)-len(missIdx), len(missIdx))
	return missIdx
}

func (uc *predictionUsecase) storeInCache(ctx context.Context, modelID string, sentences []string, preds []entity.Prediction) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.SetMany(ctx, modelID, sentences, preds); err != nil {
		uc.logger.Warn("Prediction cache write failed", zap.Error(err))
	}
}

func (uc *predictionUsecase) record(ctx context.Context, requestID string, mode entity.PredictionMode, sentences []string, preds []entity.Prediction, modelID string, elapsed time.Duration) {
	if uc.records == nil {
		return
	}

	records := make([]*entity.PredictionRecord, len(sentences))
	for i, s := range sentences {
		records[i] = entity.NewPredictionRecord(requestID, mode, i, s, preds[i], modelID, elapsed.Milliseconds())
	}
	if err := uc.records.CreateBatch(ctx, records); err != nil {
		uc.logger.Error("Failed to store prediction records",
			zap.String("request_id", requestID),
			zap.Int("count", len(records)),
			zap.Error(err),
		)
	}
}

func (uc *predictionUsecase) GetRecord(ctx context.Context, id uuid.UUID) (*PredictionRecordOutput, error) {
	if uc.records == nil {
		return nil, ErrAuditDisabled
	}
	record, err := uc.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrPredictionNotFound
	}
	return toRecordOutput(record), nil
}

func (uc *predictionUsecase) ListRecords(ctx context.Context, label string, limit, offset int) (*PredictionRecordListOutput, error) {
	if uc.records == nil {
		return nil, ErrAuditDisabled
	}
	records, total, err := uc.records.List(ctx, repository.PredictionFilter{Label: label}, limit, offset)
	if err != nil {
		return nil, err
	}

	outputs := make([]*PredictionRecordOutput, len(records))
	for i, r := range records {
		outputs[i] = toRecordOutput(r)
	}

	return &PredictionRecordListOutput{
		Records: outputs,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(records)) < total,
	}, nil
}

func toRecordOutput(r *entity.PredictionRecord) *PredictionRecordOutput {
	return &PredictionRecordOutput{
		ID:             r.ID,
		RequestID:      r.RequestID,
		Mode:           string(r.Mode),
		BatchIndex:     r.BatchIndex,
		SentenceHash:   r.SentenceHash,
		SentenceLength: r.SentenceLength,
		Label:          r.Label,
		Score:          r.Score,
		LatencyMs:      r.LatencyMs,
		ModelID:        r.ModelID,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}
