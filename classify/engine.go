package classify

import "github.com/sightlab/camera-benchmark-service/tensor"

// Engine is the opaque inference capability: a loaded model exposing its
// tensor layout and a synchronous run call. Implementations must tolerate
// repeated Close calls, and an engine must be closed before a new one is
// opened against the same runtime.
type Engine interface {
	InputSpec() tensor.Spec
	OutputSpec() tensor.Spec

	// Accelerated reports whether the GPU path was actually applied, which
	// can differ from what the caller requested.
	Accelerated() bool

	Run(input tensor.Buffer) (tensor.Buffer, error)
	Close() error
}

// EngineFactory opens an engine for a model file. useGPU is a request; the
// implementation may fall back to general-purpose execution.
type EngineFactory func(path string, useGPU bool) (Engine, error)

// InspectFunc reads a model's input/output tensor specs without loading an
// engine. Quantization parameters may be absent at this stage.
type InspectFunc func(path string) (input, output tensor.Spec, err error)
