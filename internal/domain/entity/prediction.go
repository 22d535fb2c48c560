package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Prediction is the outcome of classifying one sentence
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// PredictionMode tells whether a record was served by the single or batch endpoint
type PredictionMode string

const (
	PredictionModeSingle PredictionMode = "single"
	PredictionModeBatch  PredictionMode = "batch"
)

// PredictionRecord is the audit entry for a served prediction.
// The sentence itself is never persisted, only its hash and length.
type PredictionRecord struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	RequestID      string         `json:"request_id" gorm:"type:varchar(64);index"`
	Mode           PredictionMode `json:"mode" gorm:"type:varchar(10);not null"`
	BatchIndex     int            `json:"batch_index" gorm:"default:0"`
	SentenceHash   string         `json:"sentence_hash" gorm:"type:char(64);not null;index"`
	SentenceLength int            `json:"sentence_length" gorm:"not null"`
	Label          string         `json:"label" gorm:"type:varchar(50);not null;index"`
	Score          float64        `json:"score" gorm:"type:decimal(6,5)"`
	LatencyMs      int64          `json:"latency_ms" gorm:"default:0"`
	ModelID        string         `json:"model_id" gorm:"type:varchar(200);not null"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName returns the table name for GORM
func (PredictionRecord) TableName() string {
	return "prediction_records"
}

// NewPredictionRecord creates a record for one classified sentence
func NewPredictionRecord(requestID string, mode PredictionMode, batchIndex int, sentence string, p Prediction, modelID string, latencyMs int64) *PredictionRecord {
	return &PredictionRecord{
		ID:             uuid.New(),
		RequestID:      requestID,
		Mode:           mode,
		BatchIndex:     batchIndex,
		SentenceHash:   HashSentence(sentence),
		SentenceLength: len([]rune(sentence)),
		Label:          p.Label,
		Score:          p.Score,
		LatencyMs:      latencyMs,
		ModelID:        modelID,
	}
}

// HashSentence returns the hex SHA-256 of a sentence
func HashSentence(sentence string) string {
	sum := sha256.Sum256([]byte(sentence))
	return hex.EncodeToString(sum[:])
}
