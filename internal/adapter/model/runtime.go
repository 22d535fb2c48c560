// Package model loads a pretrained sequence classifier once and serves
// assertion predictions from it.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	goruntime "runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/ayush630/clinical-bert-api/internal/domain/entity"
	"github.com/ayush630/clinical-bert-api/internal/domain/service"
)

// Options configures a Runtime
type Options struct {
	ModelID   string
	MaxLength int
	// MaxConcurrency bounds concurrent forward passes; 0 uses GOMAXPROCS
	MaxConcurrency int
	Source         ArtifactSource
	NewBackend     BackendFactory
	Logger         *zap.Logger
}

// Runtime owns the loaded model handle. It is safe for concurrent use.
type Runtime struct {
	modelID        string
	maxLength      int
	maxConcurrency int
	source         ArtifactSource
	newBackend     BackendFactory
	logger         *zap.Logger

	current atomic.Pointer[handle]
	loads   singleflight.Group
	// mu orders publishing a handle against Reset and Close
	mu sync.Mutex
}

var _ service.AssertionClassifier = (*Runtime)(nil)

// handle is published only once fully built, so callers never see a partial model
type handle struct {
	encoder *Encoder
	backend Backend
	labels  entity.LabelMapping
	sem     *semaphore.Weighted
	weight  int64
	closed  atomic.Bool
}

// release waits for in-flight forward passes, then closes the backend
func (h *handle) release() error {
	if err := h.sem.Acquire(context.Background(), h.weight); err != nil {
		return err
	}
	defer h.sem.Release(h.weight)
	h.closed.Store(true)
	return h.backend.Close()
}

// NewRuntime creates an unloaded runtime
func NewRuntime(opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		modelID:        opts.ModelID,
		maxLength:      opts.MaxLength,
		maxConcurrency: opts.MaxConcurrency,
		source:         opts.Source,
		newBackend:     opts.NewBackend,
		logger:         logger.Named("model"),
	}
}

// ModelID returns the identifier of the served model
func (r *Runtime) ModelID() string {
	return r.modelID
}

// IsReady reports whether a model handle is loaded
func (r *Runtime) IsReady() bool {
	return r.current.Load() != nil
}

// Device returns where inference runs, empty when unloaded
func (r *Runtime) Device() string {
	if h := r.current.Load(); h != nil {
		return h.backend.Device()
	}
	return ""
}

// Labels returns the label mapping of the loaded model
func (r *Runtime) Labels() (entity.LabelMapping, bool) {
	if h := r.current.Load(); h != nil {
		return h.labels, true
	}
	return entity.LabelMapping{}, false
}

// Load fetches the model and creates the backend. Calls after a successful
// load return immediately; concurrent calls share one load.
func (r *Runtime) Load(ctx context.Context) error {
	if r.IsReady() {
		r.logger.Info("Model already loaded, skipping reload", zap.String("model_id", r.modelID))
		return nil
	}

	_, err, _ := r.loads.Do(r.modelID, func() (interface{}, error) {
		if r.IsReady() {
			return nil, nil
		}
		h, err := r.build(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.current.Store(h)
		r.mu.Unlock()
		return nil, nil
	})
	return err
}

func (r *Runtime) build(ctx context.Context) (*handle, error) {
	start := time.Now()
	r.logger.Info("Loading model", zap.String("model_id", r.modelID))

	if r.source == nil || r.newBackend == nil {
		return nil, &LoadError{ModelID: r.modelID, Stage: StageFetch, Err: errors.New("runtime has no artifact source or backend factory")}
	}

	artifacts, err := r.source.Fetch(ctx)
	if err != nil {
		r.logger.Error("Failed to fetch model artifacts", zap.String("model_id", r.modelID), zap.Error(err))
		return nil, &LoadError{ModelID: r.modelID, Stage: StageFetch, Err: err}
	}

	backend, err := r.newBackend(ctx, artifacts)
	if err != nil {
		r.logger.Error("Failed to create inference backend", zap.String("model_id", r.modelID), zap.Error(err))
		return nil, &LoadError{ModelID: r.modelID, Stage: StageBackend, Err: err}
	}

	weight := int64(1)
	if backend.ConcurrentSafe() {
		weight = int64(r.maxConcurrency)
		if weight <= 0 {
			weight = int64(goruntime.GOMAXPROCS(0))
		}
	}

	r.logger.Info("Model loaded successfully",
		zap.String("model_id", r.modelID),
		zap.String("device", backend.Device()),
		zap.Strings("labels", artifacts.Labels.Names()),
		zap.Int64("max_concurrency", weight),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &handle{
		encoder: NewEncoder(artifacts.Tokenizer, artifacts.Special, r.maxLength),
		backend: backend,
		labels:  artifacts.Labels,
		sem:     semaphore.NewWeighted(weight),
		weight:  weight,
	}, nil
}

// Predict classifies one sentence
func (r *Runtime) Predict(ctx context.Context, sentence string) (entity.Prediction, error) {
	preds, err := r.PredictBatch(ctx, []string{sentence})
	if err != nil {
		return entity.Prediction{}, err
	}
	return preds[0], nil
}

// PredictBatch classifies sentences with a single forward pass.
// The result at position i belongs to sentences[i].
func (r *Runtime) PredictBatch(ctx context.Context, sentences []string) ([]entity.Prediction, error) {
	h := r.current.Load()
	if h == nil {
		return nil, ErrNotReady
	}
	if len(sentences) == 0 {
		return []entity.Prediction{}, nil
	}

	enc, err := h.encoder.Encode(sentences)
	if err != nil {
		return nil, err
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if h.closed.Load() {
		h.sem.Release(1)
		return nil, ErrNotReady
	}
	logits, err := h.backend.Forward(ctx, enc)
	h.sem.Release(1)
	if err != nil {
		return nil, fmt.Errorf("forward pass: %w", err)
	}
	if len(logits) != len(sentences) {
		return nil, fmt.Errorf("backend returned %d rows for %d inputs", len(logits), len(sentences))
	}

	preds := make([]entity.Prediction, len(logits))
	for i, row := range logits {
		if len(row) == 0 {
			return nil, fmt.Errorf("backend returned no logits for input %d", i)
		}
		probs := Softmax(row)
		idx := Argmax(probs)
		if math.IsNaN(probs[idx]) {
			return nil, fmt.Errorf("non-finite logits for input %d", i)
		}
		preds[i] = entity.Prediction{
			Label: h.labels.Resolve(idx).String(),
			Score: clampUnit(probs[idx]),
		}
	}
	return preds, nil
}

// Reset unloads the model; a later Load loads it again
func (r *Runtime) Reset() error {
	r.mu.Lock()
	h := r.current.Swap(nil)
	r.mu.Unlock()

	if h == nil {
		return nil
	}
	r.logger.Info("Unloading model", zap.String("model_id", r.modelID))
	return h.release()
}

// Close releases the model at shutdown
func (r *Runtime) Close() error {
	return r.Reset()
}
