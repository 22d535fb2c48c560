package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ayush630/clinical-bert-api/internal/domain/entity"
)

// PredictRequest is the body of POST /predict
type PredictRequest struct {
	Sentence string `json:"sentence"`
}

// BatchPredictRequest is the body of POST /predict/batch
type BatchPredictRequest struct {
	Sentences []string `json:"sentences"`
}

// BatchPredictResponse is the body returned by POST /predict/batch
type BatchPredictResponse struct {
	Predictions []entity.Prediction `json:"predictions"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// APIError is a non-200 answer from the service
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("assertion API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("assertion API returned status %d: %s", e.StatusCode, e.Detail)
}

// AssertionClient is an HTTP client for the assertion classification API
type AssertionClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAssertionClient creates a new API client
func NewAssertionClient(baseURL string, timeout time.Duration) *AssertionClient {
	return &AssertionClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Predict classifies a single sentence
func (c *AssertionClient) Predict(ctx context.Context, sentence string) (*entity.Prediction, error) {
	var result entity.Prediction
	if err := c.post(ctx, "/predict", PredictRequest{Sentence: sentence}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PredictBatch classifies sentences in one request
func (c *AssertionClient) PredictBatch(ctx context.Context, sentences []string) (*BatchPredictResponse, error) {
	var result BatchPredictResponse
	if err := c.post(ctx, "/predict/batch", BatchPredictRequest{Sentences: sentences}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health checks the service health
func (c *AssertionClient) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result HealthResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *AssertionClient) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *AssertionClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}

	var detail struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(respBody, &detail) == nil && detail.Detail != "" {
		apiErr.Detail = detail.Detail
	} else {
		apiErr.Detail = strings.TrimSpace(string(respBody))
	}
	return apiErr
}
