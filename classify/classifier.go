package classify

import (
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/sightlab/camera-benchmark-service/models"
	"github.com/sightlab/camera-benchmark-service/tensor"
)

// QuantNameHint is the filename substring marking integer-quantized model
// variants; used only when tensor metadata cannot be read.
const QuantNameHint = "quant"

// ModelHandle is the identity of the one currently loaded model.
type ModelHandle struct {
	Path        string
	Accelerated bool
	Input       tensor.Spec
	Output      tensor.Spec

	engine Engine
	// ready is false when the model loaded but its tensor metadata could
	// not be read; predictions against such a handle are not attempted.
	ready bool
}

// Classifier owns the single live model handle and turns RGB frames into
// labeled results. Not safe for concurrent use; the coordination goroutine
// owns it (load and predict are never concurrent).
type Classifier struct {
	log       *logrus.Logger
	labels    []string
	handle    *ModelHandle
	newEngine EngineFactory
	inspect   InspectFunc
}

// New builds a classifier around the onnxruntime engine. The label asset is
// optional: a failed load is logged and every prediction reports
// UnknownLabel.
func New(log *logrus.Logger, labelPath string) *Classifier {
	c := &Classifier{
		log:       log,
		newEngine: NewORTEngine,
		inspect:   InspectORTModel,
	}
	if labelPath != "" {
		labels, err := LoadLabels(labelPath)
		if err != nil {
			log.WithError(err).Warn("label asset unavailable, predictions will report Unknown")
		} else {
			c.labels = labels
		}
	}
	return c
}

// NewWithEngine builds a classifier over a custom engine factory and
// inspector; used by tests and alternative backends.
func NewWithEngine(log *logrus.Logger, labels []string, factory EngineFactory, inspect InspectFunc) *Classifier {
	return &Classifier{log: log, labels: labels, newEngine: factory, inspect: inspect}
}

// Handle returns the live model handle, or nil when no model is loaded.
func (c *Classifier) Handle() *ModelHandle { return c.handle }

// LoadModel releases any previously loaded engine, then loads the model at
// path. Acceleration is decided from the read input tensor type when
// available (integer kernels run faster on general-purpose cores here), with
// the filename convention as fallback; an unavailable acceleration path
// degrades to CPU execution inside the engine. A failed load is logged and
// leaves the classifier with no model.
func (c *Classifier) LoadModel(path string, useGPUHint bool) {
	c.Close()

	useGPU := useGPUHint
	inSpec, _, inspectErr := c.inspect(path)
	switch {
	case inspectErr == nil:
		if inSpec.Type != tensor.Float32 {
			useGPU = false
		}
	case strings.Contains(strings.ToLower(filepath.Base(path)), QuantNameHint):
		useGPU = false
	}

	engine, err := c.newEngine(path, useGPU)
	if err != nil {
		if inspectErr != nil {
			// Loaded-but-unreadable: keep the handle so the model stays
			// selected, but never predict against it.
			c.log.WithError(inspectErr).WithField("model", path).Warn("model metadata unreadable, predictions disabled")
			c.handle = &ModelHandle{Path: path}
			return
		}
		c.log.WithError(err).WithField("model", path).Error("model load failed")
		return
	}

	c.handle = &ModelHandle{
		Path:        path,
		Accelerated: engine.Accelerated(),
		Input:       engine.InputSpec(),
		Output:      engine.OutputSpec(),
		engine:      engine,
		ready:       true,
	}
	c.log.WithFields(logrus.Fields{
		"model":       path,
		"accelerated": c.handle.Accelerated,
		"input":       c.handle.Input.Type.String(),
	}).Info("model loaded")
}

// Close releases the live engine, if any. Safe to call repeatedly.
func (c *Classifier) Close() {
	if c.handle != nil && c.handle.engine != nil {
		if err := c.handle.engine.Close(); err != nil {
			c.log.WithError(err).Warn("engine close failed")
		}
	}
	c.handle = nil
}

// Predict classifies one frame. The fixed preprocessing sequence (rotate 90
// degrees, center-crop to the shorter edge, resize to the model's square
// input) runs before the timed region, which covers only encode, inference,
// decode, and softmax/argmax. Returns false when no model is ready or the
// frame failed; per-frame failures are logged and skipped, never propagated.
func (c *Classifier) Predict(img *image.NRGBA) (models.ClassificationResult, bool) {
	h := c.handle
	if h == nil || !h.ready {
		return models.ClassificationResult{}, false
	}

	frameStart := time.Now()
	prepared := c.preprocess(img, h.Input)
	timings := models.ProcessingTimings{Preprocess: time.Since(frameStart)}

	start := time.Now()
	input, err := tensor.Encode(prepared, h.Input)
	if err != nil {
		c.log.WithError(err).Warn("frame encode failed")
		return models.ClassificationResult{}, false
	}
	output, err := h.engine.Run(input)
	if err != nil {
		c.log.WithError(err).Warn("inference failed")
		return models.ClassificationResult{}, false
	}
	logits := tensor.Decode(output, h.Output)
	probs := tensor.Softmax(logits)
	best := tensor.Argmax(probs)
	elapsed := time.Since(start)

	if best < 0 {
		return models.ClassificationResult{}, false
	}

	timings.Inference = elapsed
	timings.Total = time.Since(frameStart)
	if c.log.IsLevelEnabled(logrus.DebugLevel) {
		c.log.WithFields(logrus.Fields{
			"preprocess": timings.Preprocess,
			"inference":  timings.Inference,
			"total":      timings.Total,
		}).Debug("frame timings")
	}
	return models.ClassificationResult{
		Label:           c.label(best),
		Confidence:      probs[best],
		InferenceTimeMs: elapsed.Milliseconds(),
	}, true
}

func (c *Classifier) preprocess(img *image.NRGBA, spec tensor.Spec) *image.NRGBA {
	rotated := imaging.Rotate90(img)

	side := rotated.Rect.Dx()
	if h := rotated.Rect.Dy(); h < side {
		side = h
	}
	cropped := imaging.CropCenter(rotated, side, side)

	return imaging.Resize(cropped, spec.Width, spec.Height, imaging.Linear)
}

func (c *Classifier) label(index int) string {
	if index < 0 || index >= len(c.labels) {
		return UnknownLabel
	}
	return c.labels[index]
}
