package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush630/clinical-bert-api/internal/domain/entity"
	"github.com/ayush630/clinical-bert-api/internal/infrastructure/config"
)

func TestKey(t *testing.T) {
	key := Key("bvanaken/clinical-assertion-negation-bert", "No fever.")

	assert.True(t, strings.HasPrefix(key, "clinical:prediction:bvanaken/clinical-assertion-negation-bert:"))
	assert.Equal(t, key, Key("bvanaken/clinical-assertion-negation-bert", "No fever."))
	assert.NotEqual(t, key, Key("bvanaken/clinical-assertion-negation-bert", "No fever"))
	assert.NotEqual(t, key, Key("other/model", "No fever."))
	assert.Len(t, strings.TrimPrefix(key, "clinical:prediction:bvanaken/clinical-assertion-negation-bert:"), 64)
}

func TestCodec(t *testing.T) {
	t.Run("decode encoded", func(t *testing.T) {
		data, err := encode(entity.Prediction{Label: entity.LabelAbsent, Score: 0.97})
		require.NoError(t, err)
		assert.JSONEq(t, `{"label":"ABSENT","score":0.97}`, string(data))

		p, err := decode(data)
		require.NoError(t, err)
		assert.Equal(t, entity.LabelAbsent, p.Label)
		assert.Equal(t, 0.97, p.Score)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := decode([]byte("not json"))
		assert.Error(t, err)
	})

	t.Run("missing label", func(t *testing.T) {
		_, err := decode([]byte(`{"score":0.5}`))
		assert.Error(t, err)
	})
}

func unreachableCache() *PredictionCache {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	return NewPredictionCache(client, time.Hour)
}

func TestPredictionCache_EmptyInput(t *testing.T) {
	c := unreachableCache()
	defer c.client.Close()

	got, err := c.GetMany(context.Background(), "m", nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.NoError(t, c.SetMany(context.Background(), "m", nil, nil))
}

func TestPredictionCache_LengthMismatch(t *testing.T) {
	c := unreachableCache()
	defer c.client.Close()

	err := c.SetMany(context.Background(), "m", []string{"a", "b"}, []entity.Prediction{{Label: "PRESENT"}})
	assert.Error(t, err)
}

func TestPredictionCache_Unreachable(t *testing.T) {
	c := unreachableCache()
	defer c.client.Close()

	_, err := c.GetMany(context.Background(), "m", []string{"a"})
	assert.Error(t, err)

	err = c.SetMany(context.Background(), "m", []string{"a"}, []entity.Prediction{{Label: "PRESENT", Score: 0.9}})
	assert.Error(t, err)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(context.Background(), &config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}
