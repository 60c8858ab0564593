package tensor

import (
	"fmt"
	"image"
	"math"
)

// Encode fills a batch x H x W x 3 input buffer from an RGBA image whose
// bounds must already match the spec's spatial shape.
//
// Float inputs receive the raw 0-255 channel magnitudes unchanged. Quantized
// inputs apply the affine transform q = round(v/scale + zeroPoint) and clamp
// to the element type's representable range rather than wrapping.
func Encode(img *image.NRGBA, spec Spec) (Buffer, error) {
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	if w != spec.Width || h != spec.Height {
		return Buffer{}, fmt.Errorf("image %dx%d does not match input shape %dx%d", w, h, spec.Width, spec.Height)
	}
	if spec.Channels != 3 {
		return Buffer{}, fmt.Errorf("unsupported channel count %d", spec.Channels)
	}

	buf := NewBuffer(spec.Type, spec.InputLen())
	i := 0
	for y := 0; y < h; y++ {
		row := img.PixOffset(0, y)
		for x := 0; x < w; x++ {
			px := img.Pix[row : row+3 : row+3]
			switch spec.Type {
			case Float32:
				buf.Floats[i+0] = float32(px[0])
				buf.Floats[i+1] = float32(px[1])
				buf.Floats[i+2] = float32(px[2])
			case Uint8:
				buf.Uint8s[i+0] = quantizeUint8(px[0], spec.Quant)
				buf.Uint8s[i+1] = quantizeUint8(px[1], spec.Quant)
				buf.Uint8s[i+2] = quantizeUint8(px[2], spec.Quant)
			case Int8:
				buf.Int8s[i+0] = quantizeInt8(px[0], spec.Quant)
				buf.Int8s[i+1] = quantizeInt8(px[1], spec.Quant)
				buf.Int8s[i+2] = quantizeInt8(px[2], spec.Quant)
			}
			i += 3
			row += 4
		}
	}
	return buf, nil
}

func quantizeUint8(v uint8, q Quantization) uint8 {
	n := int64(math.Round(float64(v)/float64(q.Scale))) + int64(q.ZeroPoint)
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}

func quantizeInt8(v uint8, q Quantization) int8 {
	n := int64(math.Round(float64(v)/float64(q.Scale))) + int64(q.ZeroPoint)
	if n < -128 {
		return -128
	}
	if n > 127 {
		return 127
	}
	return int8(n)
}

// Decode converts a raw model output buffer into float logits. Quantized
// outputs dequantize as (raw - zeroPoint) * scale; a zero scale (some
// exported models report one) passes the raw integers through as floats
// instead of failing.
func Decode(buf Buffer, spec Spec) []float32 {
	switch spec.Type {
	case Uint8:
		out := make([]float32, len(buf.Uint8s))
		for i, v := range buf.Uint8s {
			out[i] = dequantize(int32(v), spec.Quant)
		}
		return out
	case Int8:
		out := make([]float32, len(buf.Int8s))
		for i, v := range buf.Int8s {
			out[i] = dequantize(int32(v), spec.Quant)
		}
		return out
	default:
		out := make([]float32, len(buf.Floats))
		copy(out, buf.Floats)
		return out
	}
}

func dequantize(raw int32, q Quantization) float32 {
	if q.Scale > 0 {
		return float32(raw-q.ZeroPoint) * q.Scale
	}
	return float32(raw)
}

// Softmax converts logits into a probability distribution. The maximum logit
// is subtracted before exponentiation so unbounded dequantized magnitudes
// cannot overflow.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}

	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	probs := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxLogit))
		probs[i] = float32(e)
		sum += e
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sum)
	}
	return probs
}

// Argmax returns the index of the largest value; ties resolve to the lowest
// index. Returns -1 for an empty slice.
func Argmax(values []float32) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for i, v := range values[1:] {
		if v > values[best] {
			best = i + 1
		}
	}
	return best
}
