package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayush630/clinical-bert-api/internal/domain/entity"
	"github.com/ayush630/clinical-bert-api/internal/domain/service"
	"github.com/ayush630/clinical-bert-api/internal/infrastructure/config"
)

const keyPrefix = "clinical:prediction"

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// PredictionCache stores predictions in Redis under
// clinical:prediction:{model_id}:{sha256(sentence)}
type PredictionCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ service.PredictionCache = (*PredictionCache)(nil)

// NewPredictionCache creates a cache; ttl <= 0 stores entries without expiry
func NewPredictionCache(client *redis.Client, ttl time.Duration) *PredictionCache {
	return &PredictionCache{client: client, ttl: ttl}
}

// Key returns the cache key for a sentence under a model
func Key(modelID, sentence string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, modelID, entity.HashSentence(sentence))
}

func keys(modelID string, sentences []string) []string {
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = Key(modelID, s)
	}
	return out
}

// GetMany fetches all sentences in one MGET; misses and undecodable entries are nil
func (c *PredictionCache) GetMany(ctx context.Context, modelID string, sentences []string) ([]*entity.Prediction, error) {
	if len(sentences) == 0 {
		return []*entity.Prediction{}, nil
	}

	vals, err := c.client.MGet(ctx, keys(modelID, sentences)...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make([]*entity.Prediction, len(sentences))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if p, err := decode([]byte(s)); err == nil {
			out[i] = p
		}
	}
	return out, nil
}

// SetMany writes predictions with one pipeline
func (c *PredictionCache) SetMany(ctx context.Context, modelID string, sentences []string, predictions []entity.Prediction) error {
	if len(sentences) != len(predictions) {
		return fmt.Errorf("cache: %d sentences for %d predictions", len(sentences), len(predictions))
	}
	if len(sentences) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for i, s := range sentences {
		data, err := encode(predictions[i])
		if err != nil {
			return err
		}
		pipe.Set(ctx, Key(modelID, s), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func encode(p entity.Prediction) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode prediction: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*entity.Prediction, error) {
	var p entity.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Label == "" {
		return nil, fmt.Errorf("cached prediction has no label")
	}
	return &p, nil
}
