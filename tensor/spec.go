package tensor

import "fmt"

// ElementType enumerates the tensor element layouts the codec can handle.
// Dispatch happens on this enumeration, not on the engine's own type system.
type ElementType int

const (
	Float32 ElementType = iota
	Uint8
	Int8
)

func (t ElementType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Uint8:
		return "uint8"
	case Int8:
		return "int8"
	default:
		return fmt.Sprintf("ElementType(%d)", int(t))
	}
}

// Quantization holds the affine parameters of a quantized tensor. Meaningful
// only when the element type is an integer type.
type Quantization struct {
	Scale     float32
	ZeroPoint int32
}

// Spec describes one tensor read back from a loaded model: element layout,
// spatial shape (batch is always 1), and quantization parameters.
type Spec struct {
	Type ElementType

	// Input tensors: batch x Height x Width x Channels.
	Height   int
	Width    int
	Channels int

	// Output tensors: batch x Classes.
	Classes int

	Quant Quantization
}

// ValidateInput rejects specs a model load must not accept: a quantized input
// with zero scale would divide by zero at encode time, so it is refused here
// instead.
func (s Spec) ValidateInput() error {
	if s.Type != Float32 && s.Quant.Scale == 0 {
		return fmt.Errorf("quantized %s input declares zero scale", s.Type)
	}
	if s.Height <= 0 || s.Width <= 0 || s.Channels <= 0 {
		return fmt.Errorf("invalid input shape %dx%dx%d", s.Height, s.Width, s.Channels)
	}
	return nil
}

// InputLen is the element count of a batch-1 input buffer.
func (s Spec) InputLen() int {
	return s.Height * s.Width * s.Channels
}

// Buffer is a tagged union over the element layouts; exactly one slice is
// populated, matching the Spec the buffer was built against.
type Buffer struct {
	Floats []float32
	Uint8s []uint8
	Int8s  []int8
}

// NewBuffer allocates a buffer of n elements laid out per spec.
func NewBuffer(t ElementType, n int) Buffer {
	switch t {
	case Uint8:
		return Buffer{Uint8s: make([]uint8, n)}
	case Int8:
		return Buffer{Int8s: make([]int8, n)}
	default:
		return Buffer{Floats: make([]float32, n)}
	}
}

// Len returns the element count of whichever slice is populated.
func (b Buffer) Len() int {
	switch {
	case b.Uint8s != nil:
		return len(b.Uint8s)
	case b.Int8s != nil:
		return len(b.Int8s)
	default:
		return len(b.Floats)
	}
}
