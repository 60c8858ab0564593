package classify

import (
	"fmt"
	"strconv"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/sightlab/camera-benchmark-service/tensor"
)

// Custom metadata keys carrying affine quantization parameters; written by
// the export pipeline alongside quantized catalog models.
const (
	metaInputScale      = "input_scale"
	metaInputZeroPoint  = "input_zero_point"
	metaOutputScale     = "output_scale"
	metaOutputZeroPoint = "output_zero_point"
)

// ortEngine wraps an onnxruntime session with pre-allocated typed input and
// output tensors matching the model's declared specs.
type ortEngine struct {
	session *ort.AdvancedSession

	inFloat *ort.Tensor[float32]
	inU8    *ort.Tensor[uint8]
	inI8    *ort.Tensor[int8]

	outFloat *ort.Tensor[float32]
	outU8    *ort.Tensor[uint8]
	outI8    *ort.Tensor[int8]

	inSpec      tensor.Spec
	outSpec     tensor.Spec
	accelerated bool
}

// InspectORTModel reads input/output tensor specs from a model file without
// creating a session.
func InspectORTModel(path string) (tensor.Spec, tensor.Spec, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return tensor.Spec{}, tensor.Spec{}, fmt.Errorf("read model metadata: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return tensor.Spec{}, tensor.Spec{}, fmt.Errorf("expected 1 input and 1 output tensor, got %d/%d", len(inputs), len(outputs))
	}

	inSpec, err := inputSpecFromInfo(inputs[0])
	if err != nil {
		return tensor.Spec{}, tensor.Spec{}, err
	}
	outSpec, err := outputSpecFromInfo(outputs[0])
	if err != nil {
		return tensor.Spec{}, tensor.Spec{}, err
	}
	return inSpec, outSpec, nil
}

func inputSpecFromInfo(info ort.InputOutputInfo) (tensor.Spec, error) {
	t, err := elementType(info.DataType)
	if err != nil {
		return tensor.Spec{}, fmt.Errorf("input %q: %w", info.Name, err)
	}
	dims := info.Dimensions
	if len(dims) != 4 || dims[0] != 1 || dims[3] != 3 {
		return tensor.Spec{}, fmt.Errorf("input %q: expected shape [1 H W 3], got %v", info.Name, dims)
	}
	return tensor.Spec{
		Type:     t,
		Height:   int(dims[1]),
		Width:    int(dims[2]),
		Channels: int(dims[3]),
	}, nil
}

func outputSpecFromInfo(info ort.InputOutputInfo) (tensor.Spec, error) {
	t, err := elementType(info.DataType)
	if err != nil {
		return tensor.Spec{}, fmt.Errorf("output %q: %w", info.Name, err)
	}
	dims := info.Dimensions
	if len(dims) != 2 || dims[0] != 1 {
		return tensor.Spec{}, fmt.Errorf("output %q: expected shape [1 classes], got %v", info.Name, dims)
	}
	return tensor.Spec{
		Type:    t,
		Classes: int(dims[1]),
	}, nil
}

func elementType(t ort.TensorElementDataType) (tensor.ElementType, error) {
	switch t {
	case ort.TensorElementDataTypeFloat:
		return tensor.Float32, nil
	case ort.TensorElementDataTypeUint8:
		return tensor.Uint8, nil
	case ort.TensorElementDataTypeInt8:
		return tensor.Int8, nil
	default:
		return 0, fmt.Errorf("unsupported tensor element type %d", t)
	}
}

// NewORTEngine opens an onnxruntime session for the model. When useGPU is
// set the CUDA execution provider is attempted first; on provider failure
// the session falls back to general-purpose execution rather than failing
// the load.
func NewORTEngine(path string, useGPU bool) (Engine, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("read model metadata: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 input and 1 output tensor, got %d/%d", len(inputs), len(outputs))
	}
	inSpec, err := inputSpecFromInfo(inputs[0])
	if err != nil {
		return nil, err
	}
	outSpec, err := outputSpecFromInfo(outputs[0])
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	accelerated := false
	if useGPU {
		if err := appendCUDA(options); err == nil {
			accelerated = true
		}
	}

	e := &ortEngine{inSpec: inSpec, outSpec: outSpec, accelerated: accelerated}

	inputShape := ort.NewShape(1, int64(inSpec.Height), int64(inSpec.Width), int64(inSpec.Channels))
	outputShape := ort.NewShape(1, int64(outSpec.Classes))

	inputTensor, err := e.makeInput(inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	outputTensor, err := e.makeOutput(outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		path,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}
	e.session = session

	e.readQuantization()
	if err := e.inSpec.ValidateInput(); err != nil {
		e.Close()
		return nil, fmt.Errorf("model %s: %w", path, err)
	}

	return e, nil
}

func appendCUDA(options *ort.SessionOptions) error {
	cudaOptions, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cudaOptions.Destroy()
	return options.AppendExecutionProviderCUDA(cudaOptions)
}

func (e *ortEngine) makeInput(shape ort.Shape) (ort.ArbitraryTensor, error) {
	switch e.inSpec.Type {
	case tensor.Uint8:
		t, err := ort.NewEmptyTensor[uint8](shape)
		e.inU8 = t
		return t, err
	case tensor.Int8:
		t, err := ort.NewEmptyTensor[int8](shape)
		e.inI8 = t
		return t, err
	default:
		t, err := ort.NewEmptyTensor[float32](shape)
		e.inFloat = t
		return t, err
	}
}

func (e *ortEngine) makeOutput(shape ort.Shape) (ort.ArbitraryTensor, error) {
	switch e.outSpec.Type {
	case tensor.Uint8:
		t, err := ort.NewEmptyTensor[uint8](shape)
		e.outU8 = t
		return t, err
	case tensor.Int8:
		t, err := ort.NewEmptyTensor[int8](shape)
		e.outI8 = t
		return t, err
	default:
		t, err := ort.NewEmptyTensor[float32](shape)
		e.outFloat = t
		return t, err
	}
}

// readQuantization pulls affine parameters from the model's custom metadata
// map. Missing keys leave scale at zero, which the codec treats as
// raw pass-through on decode and the load validator rejects for inputs.
func (e *ortEngine) readQuantization() {
	meta, err := e.session.GetModelMetadata()
	if err != nil {
		return
	}
	defer meta.Destroy()

	lookup := func(key string) (float64, bool) {
		value, _, err := meta.LookupCustomMetadataMap(key)
		if err != nil || value == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return 0, false
		}
		return f, true
	}

	if e.inSpec.Type != tensor.Float32 {
		if s, ok := lookup(metaInputScale); ok {
			e.inSpec.Quant.Scale = float32(s)
		}
		if z, ok := lookup(metaInputZeroPoint); ok {
			e.inSpec.Quant.ZeroPoint = int32(z)
		}
	}
	if e.outSpec.Type != tensor.Float32 {
		if s, ok := lookup(metaOutputScale); ok {
			e.outSpec.Quant.Scale = float32(s)
		}
		if z, ok := lookup(metaOutputZeroPoint); ok {
			e.outSpec.Quant.ZeroPoint = int32(z)
		}
	}
}

func (e *ortEngine) InputSpec() tensor.Spec  { return e.inSpec }
func (e *ortEngine) OutputSpec() tensor.Spec { return e.outSpec }
func (e *ortEngine) Accelerated() bool       { return e.accelerated }

func (e *ortEngine) Run(input tensor.Buffer) (tensor.Buffer, error) {
	switch e.inSpec.Type {
	case tensor.Uint8:
		copy(e.inU8.GetData(), input.Uint8s)
	case tensor.Int8:
		copy(e.inI8.GetData(), input.Int8s)
	default:
		copy(e.inFloat.GetData(), input.Floats)
	}

	if err := e.session.Run(); err != nil {
		return tensor.Buffer{}, fmt.Errorf("model inference: %w", err)
	}

	out := tensor.NewBuffer(e.outSpec.Type, e.outSpec.Classes)
	switch e.outSpec.Type {
	case tensor.Uint8:
		copy(out.Uint8s, e.outU8.GetData())
	case tensor.Int8:
		copy(out.Int8s, e.outI8.GetData())
	default:
		copy(out.Floats, e.outFloat.GetData())
	}
	return out, nil
}

func (e *ortEngine) Close() error {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	destroyTensor(e.inFloat)
	destroyTensor(e.inU8)
	destroyTensor(e.inI8)
	destroyTensor(e.outFloat)
	destroyTensor(e.outU8)
	destroyTensor(e.outI8)
	e.inFloat, e.inU8, e.inI8 = nil, nil, nil
	e.outFloat, e.outU8, e.outI8 = nil, nil, nil
	return nil
}

func destroyTensor[T ort.TensorData](t *ort.Tensor[T]) {
	if t != nil {
		t.Destroy()
	}
}
