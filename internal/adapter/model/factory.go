package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ayush630/clinical-bert-api/internal/infrastructure/config"
)

// NewRuntimeFromConfig wires the hub source and the configured backend into a Runtime
func NewRuntimeFromConfig(cfg *config.ModelConfig, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	factory, err := backendFactory(cfg, logger)
	if err != nil {
		return nil, err
	}

	source := &HubSource{
		ModelID:   cfg.ID,
		Revision:  cfg.Revision,
		CacheDir:  cfg.CacheDir,
		AuthToken: cfg.AuthToken,
		Logger:    logger,
	}
	if cfg.Backend == config.BackendONNX && cfg.ONNX.Path == "" {
		source.WeightsFile = cfg.ONNX.File
	}

	return NewRuntime(Options{
		ModelID:        cfg.ID,
		MaxLength:      cfg.MaxLength,
		MaxConcurrency: cfg.MaxConcurrency,
		Source:         source,
		NewBackend:     factory,
		Logger:         logger,
	}), nil
}

func backendFactory(cfg *config.ModelConfig, logger *zap.Logger) (BackendFactory, error) {
	switch cfg.Backend {
	case config.BackendONNX:
		return func(_ context.Context, artifacts *Artifacts) (Backend, error) {
			weights := artifacts.WeightsPath
			if cfg.ONNX.Path != "" {
				weights = cfg.ONNX.Path
			}
			return NewONNXBackend(weights, ONNXOptions{
				SharedLibrary: cfg.ONNX.SharedLibrary,
				Device:        cfg.Device,
				IntraThreads:  cfg.ONNX.IntraThreads,
				Logger:        logger,
			})
		}, nil

	case config.BackendKServe:
		return func(ctx context.Context, _ *Artifacts) (Backend, error) {
			opts := []KServeOption{
				WithKServeVersion(cfg.KServe.ModelVersion),
				WithKServeOutput(cfg.KServe.OutputName),
			}
			if cfg.KServe.Timeout > 0 {
				opts = append(opts, WithKServeTimeout(cfg.KServe.Timeout))
			}
			backend := NewKServeBackend(cfg.KServe.Endpoint, cfg.KServe.ModelName, opts...)
			if err := backend.Ready(ctx); err != nil {
				return nil, err
			}
			return backend, nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
}
