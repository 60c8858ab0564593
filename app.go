package main

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sightlab/camera-benchmark-service/bench"
	"github.com/sightlab/camera-benchmark-service/classify"
	"github.com/sightlab/camera-benchmark-service/models"
	"github.com/sightlab/camera-benchmark-service/stream"
)

// Display smoothing blend for the live inference-time readout. Display-only;
// benchmark means are plain averages of raw samples.
const (
	smoothKeep = 0.8
	smoothNew  = 0.2
)

type frameResult struct {
	result     models.ClassificationResult
	generation uint64
}

// App is the coordination layer: a single goroutine owns the classifier,
// benchmark state, and live display fields. Camera callbacks hand frames to
// the scheduler; the scheduler's background worker classifies and reports
// back over a channel, never mutating shared state itself.
type App struct {
	log *logrus.Logger
	cfg Config

	camera     stream.Camera
	scheduler  *stream.Scheduler
	classifier *classify.Classifier
	benchCfg   bench.Config

	results chan frameResult
	control chan func()

	// Owned by the coordination goroutine.
	benchState   bench.State
	currentModel string
	smoothedMs   float64
	haveSmoothed bool

	// Snapshot state read by HTTP handlers.
	mu         sync.RWMutex
	live       models.LiveStatus
	lastReport *models.BenchmarkReport

	hub *Hub
}

func NewApp(log *logrus.Logger, cfg Config, camera stream.Camera, classifier *classify.Classifier, hub *Hub) *App {
	a := &App{
		log:        log,
		cfg:        cfg,
		camera:     camera,
		classifier: classifier,
		benchCfg: bench.Config{
			Catalog: cfg.Catalog(),
			Warmup:  cfg.WarmupDuration,
			Measure: cfg.MeasureDuration,
		},
		results: make(chan frameResult, 4),
		control: make(chan func(), 8),
		hub:     hub,
	}
	a.scheduler = stream.NewScheduler(log, cfg.Decimation, a.processFrame)
	return a
}

// Scheduler exposes counters for the metrics surface.
func (a *App) Scheduler() *stream.Scheduler { return a.scheduler }

// Run executes the coordination loop until the context is cancelled. The
// initial selected model is loaded and the stream started before the first
// event is handled.
func (a *App) Run(ctx context.Context) {
	a.loadModel(a.cfg.SelectedModelPath())
	a.startStream()

	for {
		select {
		case <-ctx.Done():
			a.stopStream()
			a.classifier.Close()
			return
		case r := <-a.results:
			a.handleResult(r)
		case fn := <-a.control:
			fn()
		}
	}
}

// processFrame runs on the scheduler's background worker: it classifies the
// converted frame and marshals the result to the coordination goroutine. The
// send never blocks; with the loop busy the frame is stale anyway.
func (a *App) processFrame(img *image.NRGBA, generation uint64) {
	result, ok := a.classifier.Predict(img)
	if !ok {
		return
	}
	select {
	case a.results <- frameResult{result: result, generation: generation}:
	default:
	}
}

func (a *App) handleResult(r frameResult) {
	if r.generation != a.scheduler.Generation() {
		// Started before the last model swap or benchmark transition.
		return
	}

	if a.benchState.Active() {
		next, cmds := bench.OnResult(a.benchCfg, a.benchState, r.result.InferenceTimeMs, time.Now())
		a.benchState = next
		a.execute(cmds)
		if a.benchState.Active() {
			a.hub.Broadcast(Event{Type: "benchmark_progress", Payload: a.benchState.Progress(a.benchCfg, time.Now())})
		}
		return
	}

	if a.haveSmoothed {
		a.smoothedMs = smoothKeep*a.smoothedMs + smoothNew*float64(r.result.InferenceTimeMs)
	} else {
		a.smoothedMs = float64(r.result.InferenceTimeMs)
		a.haveSmoothed = true
	}

	status := models.LiveStatus{
		Label:          r.result.Label,
		Confidence:     fmt.Sprintf("%.1f%%", r.result.Confidence*100),
		SmoothedTimeMs: a.smoothedMs,
		Model:          filepath.Base(a.currentModel),
	}
	a.mu.Lock()
	a.live = status
	a.mu.Unlock()
	a.hub.Broadcast(Event{Type: "classification", Payload: status})
}

// execute applies benchmark side effects in order on the coordination
// goroutine. Stream stop, model swap, and stream start are strictly
// sequenced; starting the stream against a midway-reloading model is
// undefined.
func (a *App) execute(cmds []bench.Command) {
	for _, cmd := range cmds {
		switch cmd.Kind {
		case bench.CmdStopStream:
			a.stopStream()
		case bench.CmdLoadModel:
			a.loadModel(cmd.Model)
		case bench.CmdStartStream:
			a.startStream()
		case bench.CmdEmitReport:
			a.mu.Lock()
			a.lastReport = cmd.Report
			a.mu.Unlock()
			a.log.WithField("run_id", cmd.Report.RunID).Info("benchmark complete")
			for _, e := range cmd.Report.Entries {
				a.log.WithFields(logrus.Fields{
					"model":   filepath.Base(e.Model),
					"mean_ms": e.MeanMs,
				}).Info("benchmark result")
			}
			a.hub.Broadcast(Event{Type: "benchmark_report", Payload: cmd.Report})
		}
	}
}

func (a *App) startStream() {
	if err := a.camera.Start(a.scheduler.OnFrame); err != nil {
		a.log.WithError(err).Error("camera start failed")
	}
}

// stopStream halts delivery, invalidates outstanding work, and waits for the
// in-flight frame (if any) to finish so a following model swap cannot race
// the engine.
func (a *App) stopStream() {
	if err := a.camera.Stop(); err != nil {
		a.log.WithError(err).Warn("camera stop failed")
	}
	a.scheduler.Reset()
	a.scheduler.WaitIdle()
}

func (a *App) loadModel(path string) {
	a.classifier.LoadModel(path, a.cfg.UseGPU)
	a.currentModel = path
	a.haveSmoothed = false
}

// StartBenchmark requests a benchmark run; ignored while one is active.
func (a *App) StartBenchmark() {
	a.control <- func() {
		if a.benchState.Active() {
			a.log.Warn("benchmark already running")
			return
		}
		state, cmds := bench.Begin(a.benchCfg, a.currentModel, time.Now())
		a.benchState = state
		a.execute(cmds)
		a.log.WithField("run_id", state.RunID).Info("benchmark started")
	}
}

// SelectModel switches live classification to a catalog model; rejected
// while a benchmark is running.
func (a *App) SelectModel(name string) error {
	resolved := ""
	for _, path := range a.benchCfg.Catalog {
		if filepath.Base(path) == name {
			resolved = path
			break
		}
	}
	if resolved == "" {
		return fmt.Errorf("model %q is not in the catalog", name)
	}

	a.control <- func() {
		if a.benchState.Active() {
			a.log.Warn("model selection ignored during benchmark")
			return
		}
		a.stopStream()
		a.loadModel(resolved)
		a.startStream()
	}
	return nil
}

// Live returns the latest display status.
func (a *App) Live() models.LiveStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

// Report returns the most recent completed benchmark report, or nil.
func (a *App) Report() *models.BenchmarkReport {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastReport
}

// CatalogNames lists the catalog's model file names in order.
func (a *App) CatalogNames() []string {
	names := make([]string, len(a.benchCfg.Catalog))
	for i, path := range a.benchCfg.Catalog {
		names[i] = filepath.Base(path)
	}
	return names
}
