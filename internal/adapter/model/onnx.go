package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Device names
const (
	DeviceAuto   = "auto"
	DeviceCPU    = "cpu"
	DeviceCUDA   = "cuda"
	DeviceRemote = "remote"
)

// Standard input and output names of HuggingFace sequence classification exports
const (
	inputIDsName      = "input_ids"
	attentionMaskName = "attention_mask"
	tokenTypeIDsName  = "token_type_ids"
	logitsName        = "logits"
)

var ortInit struct {
	sync.Mutex
	done bool
}

// initONNXRuntime loads the shared library once per process
func initONNXRuntime(sharedLibrary string) error {
	ortInit.Lock()
	defer ortInit.Unlock()
	if ortInit.done || ort.IsInitialized() {
		ortInit.done = true
		return nil
	}
	if sharedLibrary == "" {
		sharedLibrary = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	if sharedLibrary != "" {
		ort.SetSharedLibraryPath(sharedLibrary)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	ortInit.done = true
	return nil
}

// ONNXOptions configures the ONNX Runtime backend
type ONNXOptions struct {
	SharedLibrary string
	Device        string
	IntraThreads  int
	Logger        *zap.Logger
}

// ONNXBackend runs the classifier in-process with ONNX Runtime
type ONNXBackend struct {
	session    *ort.DynamicAdvancedSession
	inputs     []string
	outputName string
	device     string
}

// NewONNXBackend creates a session for the model file on the requested device.
// With DeviceAuto, CUDA is tried first and CPU is used if it is unavailable.
func NewONNXBackend(modelPath string, opts ONNXOptions) (*ONNXBackend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if modelPath == "" {
		return nil, errors.New("onnx model path is empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("onnx model: %w", err)
	}
	if err := initONNXRuntime(opts.SharedLibrary); err != nil {
		return nil, err
	}

	inputs, outputName, err := selectTensorNames(modelPath)
	if err != nil {
		return nil, err
	}

	device := opts.Device
	if device == "" {
		device = DeviceAuto
	}

	if device == DeviceCUDA || device == DeviceAuto {
		session, err := newONNXSession(modelPath, inputs, outputName, opts.IntraThreads, true)
		if err == nil {
			return &ONNXBackend{session: session, inputs: inputs, outputName: outputName, device: DeviceCUDA}, nil
		}
		if device == DeviceCUDA {
			return nil, fmt.Errorf("create cuda session: %w", err)
		}
		logger.Info("CUDA unavailable, using CPU", zap.Error(err))
	}

	session, err := newONNXSession(modelPath, inputs, outputName, opts.IntraThreads, false)
	if err != nil {
		return nil, fmt.Errorf("create cpu session: %w", err)
	}
	return &ONNXBackend{session: session, inputs: inputs, outputName: outputName, device: DeviceCPU}, nil
}

// selectTensorNames picks the BERT inputs the model declares and its logits output
func selectTensorNames(modelPath string) ([]string, string, error) {
	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, "", fmt.Errorf("inspect onnx model: %w", err)
	}

	declared := make(map[string]bool, len(inputInfo))
	for _, in := range inputInfo {
		declared[in.Name] = true
	}
	var inputs []string
	for _, name := range []string{inputIDsName, attentionMaskName, tokenTypeIDsName} {
		if declared[name] {
			inputs = append(inputs, name)
		}
	}
	if !declared[inputIDsName] {
		return nil, "", fmt.Errorf("onnx model has no %q input", inputIDsName)
	}

	if len(outputInfo) == 0 {
		return nil, "", errors.New("onnx model declares no outputs")
	}
	outputName := outputInfo[0].Name
	for _, out := range outputInfo {
		if out.Name == logitsName {
			outputName = out.Name
			break
		}
	}
	return inputs, outputName, nil
}

func newONNXSession(modelPath string, inputs []string, outputName string, intraThreads int, cuda bool) (*ort.DynamicAdvancedSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer options.Destroy()

	if intraThreads > 0 {
		if err := options.SetIntraOpNumThreads(intraThreads); err != nil {
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}

	if cuda {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("cuda provider options: %w", err)
		}
		defer cudaOptions.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			return nil, fmt.Errorf("append cuda provider: %w", err)
		}
	}

	return ort.NewDynamicAdvancedSession(modelPath, inputs, []string{outputName}, options)
}

// Forward runs one inference over the padded batch
func (b *ONNXBackend) Forward(ctx context.Context, enc *Encoding) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch := enc.BatchSize()
	if batch == 0 {
		return nil, nil
	}
	shape := ort.NewShape(int64(batch), int64(enc.SeqLen))

	inputs := make([]ort.Value, 0, len(b.inputs))
	defer func() {
		for _, v := range inputs {
			_ = v.Destroy()
		}
	}()
	for _, name := range b.inputs {
		var rows [][]int64
		switch name {
		case inputIDsName:
			rows = enc.InputIDs
		case attentionMaskName:
			rows = enc.AttentionMask
		case tokenTypeIDsName:
			rows = enc.TokenTypeIDs
		}
		tensor, err := ort.NewTensor(shape, Flatten(rows))
		if err != nil {
			return nil, fmt.Errorf("create %s tensor: %w", name, err)
		}
		inputs = append(inputs, tensor)
	}

	outputs := []ort.Value{nil}
	if err := b.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	defer func() { _ = outputs[0].Destroy() }()

	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx output %q is not a float32 tensor", b.outputName)
	}
	return splitRows(logits.GetData(), logits.GetShape(), batch)
}

// splitRows reshapes flat [batch, classes] logits into rows
func splitRows(data []float32, shape []int64, batch int) ([][]float32, error) {
	if len(shape) != 2 || shape[0] != int64(batch) {
		return nil, fmt.Errorf("unexpected logits shape %v for batch of %d", shape, batch)
	}
	classes := int(shape[1])
	if classes <= 0 || len(data) != batch*classes {
		return nil, fmt.Errorf("logits size %d does not match shape %v", len(data), shape)
	}
	rows := make([][]float32, batch)
	for i := range rows {
		row := make([]float32, classes)
		copy(row, data[i*classes:(i+1)*classes])
		rows[i] = row
	}
	return rows, nil
}

// Device returns cpu or cuda
func (b *ONNXBackend) Device() string {
	return b.device
}

// ConcurrentSafe is true; ONNX Runtime sessions accept concurrent Run calls
func (b *ONNXBackend) ConcurrentSafe() bool {
	return true
}

// Close destroys the session
func (b *ONNXBackend) Close() error {
	if b.session == nil {
		return nil
	}
	err := b.session.Destroy()
	b.session = nil
	return err
}
