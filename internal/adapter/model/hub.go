package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gomlx/go-huggingface/hub"
	"go.uber.org/zap"

	"github.com/ayush630/clinical-bert-api/internal/domain/entity"
)

// modelConfigFile is the HuggingFace model configuration carrying id2label
const modelConfigFile = "config.json"

// HubSource fetches tokenizer, configuration and weights from the HuggingFace Hub.
// Downloaded files are kept in the local hub cache.
type HubSource struct {
	ModelID   string
	Revision  string
	CacheDir  string
	AuthToken string
	// WeightsFile is downloaded when set, e.g. "model.onnx"
	WeightsFile string
	Logger      *zap.Logger
}

func (s *HubSource) repo() *hub.Repo {
	repo := hub.New(s.ModelID).WithProgressBar(false)
	// Progress goes through the service logger, not stdout.
	repo.Verbosity = 0
	if s.Revision != "" {
		repo = repo.WithRevision(s.Revision)
	}
	if s.CacheDir != "" {
		repo = repo.WithCacheDir(s.CacheDir)
	}
	if s.AuthToken != "" {
		repo = repo.WithAuth(s.AuthToken)
	}
	return repo
}

// Fetch downloads (or reuses cached) model artifacts
func (s *HubSource) Fetch(ctx context.Context) (*Artifacts, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger.Info("Fetching model artifacts",
		zap.String("model_id", s.ModelID),
		zap.String("revision", s.Revision),
		zap.String("weights_file", s.WeightsFile),
	)

	repo := s.repo()
	if err := repo.DownloadInfo(false); err != nil {
		return nil, fmt.Errorf("fetch repository info for %s: %w", s.ModelID, err)
	}

	configPath, err := s.download(repo, modelConfigFile, logger)
	if err != nil {
		return nil, err
	}
	labels, fromConfig, err := readLabelMapping(configPath)
	if err != nil {
		return nil, err
	}
	if fromConfig {
		logger.Info("Using model label mapping", zap.Strings("labels", labels.Names()))
	} else {
		logger.Warn("Model config has no id2label, using default mapping", zap.Strings("labels", labels.Names()))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tok, special, err := s.loadTokenizer(repo, logger)
	if err != nil {
		return nil, err
	}

	artifacts := &Artifacts{
		Tokenizer: tok,
		Special:   special,
		Labels:    labels,
	}

	if s.WeightsFile != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, err := s.download(repo, s.WeightsFile, logger)
		if err != nil {
			return nil, err
		}
		artifacts.WeightsPath = path
	}

	logger.Info("Model artifacts ready",
		zap.String("model_id", s.ModelID),
		zap.Duration("elapsed", time.Since(start)),
	)
	return artifacts, nil
}

func (s *HubSource) download(repo *hub.Repo, file string, logger *zap.Logger) (string, error) {
	start := time.Now()
	logger.Debug("Downloading model file", zap.String("file", file))
	path, err := repo.DownloadFile(file)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", file, err)
	}
	logger.Debug("Model file available",
		zap.String("file", file),
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)),
	)
	return path, nil
}

// loadTokenizer prefers the WordPiece vocab.txt of BERT checkpoints and
// falls back to tokenizer.json
func (s *HubSource) loadTokenizer(repo *hub.Repo, logger *zap.Logger) (*BertTokenizer, SpecialTokens, error) {
	settings := DefaultTokenizerSettings()
	if repo.HasFile(tokenizerConfigFile) {
		path, err := s.download(repo, tokenizerConfigFile, logger)
		if err != nil {
			return nil, SpecialTokens{}, err
		}
		if settings, err = readTokenizerSettings(path); err != nil {
			return nil, SpecialTokens{}, err
		}
	}

	var (
		tok *BertTokenizer
		err error
	)
	switch {
	case repo.HasFile(vocabFile):
		var path string
		if path, err = s.download(repo, vocabFile, logger); err != nil {
			return nil, SpecialTokens{}, err
		}
		tok, err = NewWordPieceTokenizer(path, settings)
	case repo.HasFile(tokenizerFile):
		var path string
		if path, err = s.download(repo, tokenizerFile, logger); err != nil {
			return nil, SpecialTokens{}, err
		}
		tok, err = LoadTokenizerJSON(path)
	default:
		err = fmt.Errorf("model %s has neither %s nor %s", s.ModelID, vocabFile, tokenizerFile)
	}
	if err != nil {
		return nil, SpecialTokens{}, fmt.Errorf("load tokenizer: %w", err)
	}

	special, err := tok.SpecialTokens(settings)
	if err != nil {
		return nil, SpecialTokens{}, fmt.Errorf("load tokenizer: %w", err)
	}
	logger.Info("Tokenizer loaded",
		zap.Bool("lowercase", settings.DoLowerCase),
		zap.Int("cls_id", special.CLS),
		zap.Int("sep_id", special.SEP),
		zap.Int("pad_id", special.Pad),
	)
	return tok, special, nil
}

// modelConfig is the subset of a HuggingFace config.json the service reads
type modelConfig struct {
	ID2Label  map[string]string `json:"id2label"`
	NumLabels int               `json:"num_labels"`
}

// readLabelMapping loads id2label from config.json; the bool reports whether it was present
func readLabelMapping(path string) (entity.LabelMapping, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.LabelMapping{}, false, fmt.Errorf("read %s: %w", modelConfigFile, err)
	}
	return parseLabelMapping(data)
}

func parseLabelMapping(data []byte) (entity.LabelMapping, bool, error) {
	var cfg modelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return entity.LabelMapping{}, false, fmt.Errorf("parse %s: %w", modelConfigFile, err)
	}
	if len(cfg.ID2Label) == 0 {
		return entity.DefaultLabelMapping(), false, nil
	}
	names, err := entity.ParseID2Label(cfg.ID2Label)
	if err != nil {
		return entity.LabelMapping{}, false, fmt.Errorf("parse %s: %w", modelConfigFile, err)
	}
	return entity.NewLabelMapping(names), true, nil
}
