package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush630/clinical-bert-api/internal/domain/entity"
)

// fakeSource returns fixed artifacts and counts fetches
type fakeSource struct {
	fetches atomic.Int32
	err     error
	labels  entity.LabelMapping
}

func (s *fakeSource) Fetch(ctx context.Context) (*Artifacts, error) {
	s.fetches.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	labels := s.labels
	if labels.Len() == 0 {
		labels = entity.DefaultLabelMapping()
	}
	return &Artifacts{Tokenizer: wordTokenizer{}, Special: testSpecial, Labels: labels}, nil
}

// fakeBackend scores each row with fn; by default the first body token picks the class
type fakeBackend struct {
	fn       func(row []int64) []float32
	forwards atomic.Int32
	closed   atomic.Bool
	extraRow bool
}

func (b *fakeBackend) Forward(ctx context.Context, enc *Encoding) ([][]float32, error) {
	b.forwards.Add(1)
	fn := b.fn
	if fn == nil {
		fn = firstTokenLogits
	}
	rows := make([][]float32, 0, enc.BatchSize()+1)
	for _, ids := range enc.InputIDs {
		rows = append(rows, fn(ids))
	}
	if b.extraRow {
		rows = append(rows, []float32{0, 0, 0})
	}
	return rows, nil
}

func (b *fakeBackend) Device() string       { return DeviceCPU }
func (b *fakeBackend) ConcurrentSafe() bool { return true }
func (b *fakeBackend) Close() error {
	b.closed.Store(true)
	return nil
}

func firstTokenLogits(row []int64) []float32 {
	logits := []float32{0, 0, 0}
	if len(row) > 2 {
		logits[row[1]%3] = 4
	}
	return logits
}

func newTestRuntime(source ArtifactSource, backend *fakeBackend) *Runtime {
	return NewRuntime(Options{
		ModelID: "test/model",
		Source:  source,
		NewBackend: func(ctx context.Context, artifacts *Artifacts) (Backend, error) {
			return backend, nil
		},
	})
}

func loadedRuntime(t *testing.T, backend *fakeBackend) *Runtime {
	t.Helper()
	rt := newTestRuntime(&fakeSource{}, backend)
	require.NoError(t, rt.Load(context.Background()))
	return rt
}

func TestRuntime_NotReady(t *testing.T) {
	rt := newTestRuntime(&fakeSource{}, &fakeBackend{})

	assert.False(t, rt.IsReady())
	assert.Equal(t, "", rt.Device())
	_, ok := rt.Labels()
	assert.False(t, ok)

	_, err := rt.Predict(context.Background(), "no fever")
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = rt.PredictBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestRuntime_Load(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		source := &fakeSource{}
		rt := newTestRuntime(source, &fakeBackend{})

		require.NoError(t, rt.Load(context.Background()))
		require.NoError(t, rt.Load(context.Background()))

		assert.True(t, rt.IsReady())
		assert.Equal(t, int32(1), source.fetches.Load())
		assert.Equal(t, DeviceCPU, rt.Device())
		assert.Equal(t, "test/model", rt.ModelID())
	})

	t.Run("concurrent loads share one fetch", func(t *testing.T) {
		source := &fakeSource{}
		rt := newTestRuntime(source, &fakeBackend{})

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, rt.Load(context.Background()))
			}()
		}
		wg.Wait()

		assert.True(t, rt.IsReady())
		assert.Equal(t, int32(1), source.fetches.Load())
	})

	t.Run("fetch failure leaves runtime unloaded", func(t *testing.T) {
		source := &fakeSource{err: errors.New("network unreachable")}
		rt := newTestRuntime(source, &fakeBackend{})

		err := rt.Load(context.Background())
		require.Error(t, err)

		var loadErr *LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, StageFetch, loadErr.Stage)
		assert.Equal(t, "test/model", loadErr.ModelID)
		assert.Contains(t, err.Error(), "network unreachable")
		assert.False(t, rt.IsReady())

		source.err = nil
		require.NoError(t, rt.Load(context.Background()))
		assert.True(t, rt.IsReady())
	})

	t.Run("backend failure", func(t *testing.T) {
		rt := NewRuntime(Options{
			ModelID: "test/model",
			Source:  &fakeSource{},
			NewBackend: func(ctx context.Context, artifacts *Artifacts) (Backend, error) {
				return nil, errors.New("no onnx file")
			},
		})

		err := rt.Load(context.Background())

		var loadErr *LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, StageBackend, loadErr.Stage)
		assert.False(t, rt.IsReady())
	})

	t.Run("missing source", func(t *testing.T) {
		rt := NewRuntime(Options{ModelID: "test/model"})

		var loadErr *LoadError
		require.ErrorAs(t, rt.Load(context.Background()), &loadErr)
	})
}

func TestRuntime_Predict(t *testing.T) {
	rt := loadedRuntime(t, &fakeBackend{})

	pred, err := rt.Predict(context.Background(), "fever")
	require.NoError(t, err)

	assert.True(t, entity.IsAssertionLabel(pred.Label))
	assert.Greater(t, pred.Score, 0.9)
	assert.LessOrEqual(t, pred.Score, 1.0)
}

func TestRuntime_PredictBatch(t *testing.T) {
	t.Run("matches single predictions in order", func(t *testing.T) {
		rt := loadedRuntime(t, &fakeBackend{})
		sentences := []string{
			"The patient denies chest pain.",
			"He has a history of hypertension.",
			"If the patient experiences dizziness, reduce the dosage.",
			"No signs of pneumonia were observed.",
		}

		batch, err := rt.PredictBatch(context.Background(), sentences)
		require.NoError(t, err)
		require.Len(t, batch, len(sentences))

		for i, s := range sentences {
			single, err := rt.Predict(context.Background(), s)
			require.NoError(t, err)
			assert.Equal(t, single.Label, batch[i].Label, "sentence %d", i)
			assert.InDelta(t, single.Score, batch[i].Score, 1e-9, "sentence %d", i)
		}
	})

	t.Run("one forward pass per batch", func(t *testing.T) {
		backend := &fakeBackend{}
		rt := loadedRuntime(t, backend)

		_, err := rt.PredictBatch(context.Background(), []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.Equal(t, int32(1), backend.forwards.Load())
	})

	t.Run("empty batch", func(t *testing.T) {
		backend := &fakeBackend{}
		rt := loadedRuntime(t, backend)

		preds, err := rt.PredictBatch(context.Background(), []string{})
		require.NoError(t, err)
		assert.Empty(t, preds)
		assert.Equal(t, int32(0), backend.forwards.Load())
	})

	t.Run("unknown class index", func(t *testing.T) {
		rt := loadedRuntime(t, &fakeBackend{fn: func([]int64) []float32 {
			return []float32{0, 0, 0, 5}
		}})

		pred, err := rt.Predict(context.Background(), "anything")
		require.NoError(t, err)
		assert.Equal(t, "UNKNOWN_3", pred.Label)
	})

	t.Run("custom label mapping", func(t *testing.T) {
		source := &fakeSource{labels: entity.NewLabelMapping(map[int]string{0: "ABSENT", 1: "PRESENT", 2: "CONDITIONAL"})}
		rt := newTestRuntime(source, &fakeBackend{fn: func([]int64) []float32 {
			return []float32{3, 0, 0}
		}})
		require.NoError(t, rt.Load(context.Background()))

		pred, err := rt.Predict(context.Background(), "no fever")
		require.NoError(t, err)
		assert.Equal(t, entity.LabelAbsent, pred.Label)
	})

	t.Run("row count mismatch", func(t *testing.T) {
		rt := loadedRuntime(t, &fakeBackend{extraRow: true})

		_, err := rt.PredictBatch(context.Background(), []string{"a", "b"})
		assert.Error(t, err)
	})

	t.Run("non-finite logits", func(t *testing.T) {
		rt := loadedRuntime(t, &fakeBackend{fn: func([]int64) []float32 {
			return []float32{float32(math.NaN()), 0, 0}
		}})

		_, err := rt.Predict(context.Background(), "a")
		assert.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		rt := NewRuntime(Options{
			ModelID:        "test/model",
			MaxConcurrency: 1,
			Source:         &fakeSource{},
			NewBackend: func(ctx context.Context, artifacts *Artifacts) (Backend, error) {
				return &fakeBackend{}, nil
			},
		})
		require.NoError(t, rt.Load(context.Background()))

		h := rt.current.Load()
		require.NoError(t, h.sem.Acquire(context.Background(), 1))
		defer h.sem.Release(1)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := rt.Predict(ctx, "a")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRuntime_ConcurrentPredict(t *testing.T) {
	rt := loadedRuntime(t, &fakeBackend{})

	expected, err := rt.Predict(context.Background(), "hypertension")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var pred entity.Prediction
			var err error
			if i%2 == 0 {
				pred, err = rt.Predict(context.Background(), "hypertension")
			} else {
				var preds []entity.Prediction
				preds, err = rt.PredictBatch(context.Background(), []string{"x", "hypertension"})
				if err == nil {
					pred = preds[1]
				}
			}
			if err != nil {
				errs <- err
				return
			}
			if pred != expected {
				errs <- fmt.Errorf("goroutine %d got %+v, want %+v", i, pred, expected)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestRuntime_Reset(t *testing.T) {
	source := &fakeSource{}
	backend := &fakeBackend{}
	rt := newTestRuntime(source, backend)
	require.NoError(t, rt.Load(context.Background()))

	require.NoError(t, rt.Reset())

	assert.False(t, rt.IsReady())
	assert.True(t, backend.closed.Load())
	_, err := rt.Predict(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, rt.Load(context.Background()))
	assert.True(t, rt.IsReady())
	assert.Equal(t, int32(2), source.fetches.Load())

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
}
