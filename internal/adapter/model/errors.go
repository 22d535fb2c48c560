package model

import (
	"fmt"

	"github.com/ayush630/clinical-bert-api/internal/domain/service"
)

// ErrNotReady is returned by inference calls made before a successful Load
var ErrNotReady = service.ErrNotReady

// LoadError reports a failed model load. The runtime stays unloaded.
type LoadError struct {
	ModelID string
	Stage   string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s: %s: %v", e.ModelID, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load stages reported in LoadError
const (
	StageFetch   = "fetch artifacts"
	StageBackend = "create backend"
)
