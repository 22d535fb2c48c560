package model

import (
	"context"

	"github.com/ayush630/clinical-bert-api/internal/domain/entity"
)

// Backend runs the classifier forward pass
type Backend interface {
	// Forward returns one row of class logits per encoded input, in input order
	Forward(ctx context.Context, enc *Encoding) ([][]float32, error)

	// Device names where inference runs (cpu, cuda, remote)
	Device() string

	// ConcurrentSafe reports whether Forward may run from several goroutines at once
	ConcurrentSafe() bool

	// Close releases backend resources
	Close() error
}

// Artifacts are the model files fetched before a backend is created
type Artifacts struct {
	Tokenizer Tokenizer
	Special   SpecialTokens
	Labels    entity.LabelMapping
	// WeightsPath is the local model file, empty for remote backends
	WeightsPath string
}

// ArtifactSource fetches model artifacts by a fixed model identifier
type ArtifactSource interface {
	Fetch(ctx context.Context) (*Artifacts, error)
}

// BackendFactory creates the inference backend for fetched artifacts
type BackendFactory func(ctx context.Context, artifacts *Artifacts) (Backend, error)
