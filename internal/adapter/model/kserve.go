package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// KServeBackend sends tokenized batches to a Triton or KServe server speaking
// the Open Inference Protocol (V2) over HTTP:
//
//   - Infer: POST /v2/models/{name}[/versions/{version}]/infer
//   - Model ready: GET /v2/models/{name}[/versions/{version}]/ready
//
// Tokenization stays in this process; the server only sees INT64 id tensors.
type KServeBackend struct {
	endpoint     string
	modelName    string
	modelVersion string
	inputNames   []string
	outputName   string
	httpClient   *http.Client
}

// KServeOption configures a KServeBackend
type KServeOption func(*KServeBackend)

// WithKServeVersion pins the model version
func WithKServeVersion(version string) KServeOption {
	return func(b *KServeBackend) {
		b.modelVersion = version
	}
}

// WithKServeInputs overrides the input tensor names sent to the server
func WithKServeInputs(names ...string) KServeOption {
	return func(b *KServeBackend) {
		if len(names) > 0 {
			b.inputNames = names
		}
	}
}

// WithKServeOutput sets the logits output tensor name
func WithKServeOutput(name string) KServeOption {
	return func(b *KServeBackend) {
		if name != "" {
			b.outputName = name
		}
	}
}

// WithKServeTimeout sets the per-request timeout
func WithKServeTimeout(timeout time.Duration) KServeOption {
	return func(b *KServeBackend) {
		b.httpClient.Timeout = timeout
	}
}

// WithKServeHTTPClient replaces the HTTP client
func WithKServeHTTPClient(client *http.Client) KServeOption {
	return func(b *KServeBackend) {
		if client != nil {
			b.httpClient = client
		}
	}
}

// NewKServeBackend creates a backend for a model served at endpoint (e.g. http://triton:8000)
func NewKServeBackend(endpoint, modelName string, opts ...KServeOption) *KServeBackend {
	b := &KServeBackend{
		endpoint:   strings.TrimRight(endpoint, "/"),
		modelName:  modelName,
		inputNames: []string{inputIDsName, attentionMaskName, tokenTypeIDsName},
		outputName: logitsName,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *KServeBackend) modelPath() string {
	path := fmt.Sprintf("%s/v2/models/%s", b.endpoint, b.modelName)
	if b.modelVersion != "" {
		path = fmt.Sprintf("%s/versions/%s", path, b.modelVersion)
	}
	return path
}

// Ready checks that the server has the model loaded
func (b *KServeBackend) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.modelPath()+"/ready", http.NoBody)
	if err != nil {
		return fmt.Errorf("kserve create ready request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("kserve ready request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kserve model %s not ready: status %d", b.modelName, resp.StatusCode)
	}
	return nil
}

type v2InferInput struct {
	Name     string  `json:"name"`
	Shape    []int   `json:"shape"`
	Datatype string  `json:"datatype"`
	Data     []int64 `json:"data"`
}

type v2RequestedOutput struct {
	Name string `json:"name"`
}

type v2InferRequest struct {
	ID      string              `json:"id,omitempty"`
	Inputs  []v2InferInput      `json:"inputs"`
	Outputs []v2RequestedOutput `json:"outputs,omitempty"`
}

type v2OutputTensor struct {
	Name     string    `json:"name"`
	Shape    []int64   `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float32 `json:"data"`
}

type v2InferResponse struct {
	ModelName    string           `json:"model_name"`
	ModelVersion string           `json:"model_version"`
	Outputs      []v2OutputTensor `json:"outputs"`
}

// Forward posts the batch to the infer endpoint and returns logits rows
func (b *KServeBackend) Forward(ctx context.Context, enc *Encoding) ([][]float32, error) {
	batch := enc.BatchSize()
	if batch == 0 {
		return nil, nil
	}
	shape := []int{batch, enc.SeqLen}

	reqBody := v2InferRequest{Outputs: []v2RequestedOutput{{Name: b.outputName}}}
	for _, name := range b.inputNames {
		var rows [][]int64
		switch name {
		case inputIDsName:
			rows = enc.InputIDs
		case attentionMaskName:
			rows = enc.AttentionMask
		case tokenTypeIDsName:
			rows = enc.TokenTypeIDs
		default:
			return nil, fmt.Errorf("kserve unsupported input tensor %q", name)
		}
		reqBody.Inputs = append(reqBody.Inputs, v2InferInput{
			Name:     name,
			Shape:    shape,
			Datatype: "INT64",
			Data:     Flatten(rows),
		})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("kserve marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.modelPath()+"/infer", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("kserve create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kserve request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("kserve error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	var out v2InferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("kserve parse response: %w", err)
	}
	if len(out.Outputs) == 0 {
		return nil, fmt.Errorf("kserve empty outputs")
	}

	tensor := &out.Outputs[0]
	for i := range out.Outputs {
		if out.Outputs[i].Name == b.outputName {
			tensor = &out.Outputs[i]
			break
		}
	}
	return splitRows(tensor.Data, tensor.Shape, batch)
}

// Device is remote; the server picks its own hardware
func (b *KServeBackend) Device() string {
	return DeviceRemote
}

// ConcurrentSafe is true; each Forward is an independent HTTP request
func (b *KServeBackend) ConcurrentSafe() bool {
	return true
}

// Close releases idle connections
func (b *KServeBackend) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}
