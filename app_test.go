package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sightlab/camera-benchmark-service/classify"
	"github.com/sightlab/camera-benchmark-service/stream"
	"github.com/sightlab/camera-benchmark-service/tensor"
)

type stubEngine struct {
	in, out tensor.Spec
	logits  []float32
}

func (e *stubEngine) InputSpec() tensor.Spec  { return e.in }
func (e *stubEngine) OutputSpec() tensor.Spec { return e.out }
func (e *stubEngine) Accelerated() bool       { return false }
func (e *stubEngine) Close() error            { return nil }

func (e *stubEngine) Run(tensor.Buffer) (tensor.Buffer, error) {
	return tensor.Buffer{Floats: append([]float32(nil), e.logits...)}, nil
}

func newTestApp(t *testing.T) (*App, context.CancelFunc) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	in := tensor.Spec{Type: tensor.Float32, Height: 16, Width: 16, Channels: 3}
	out := tensor.Spec{Type: tensor.Float32, Classes: 2}
	classifier := classify.NewWithEngine(log, []string{"noise", "subject"},
		func(string, bool) (classify.Engine, error) {
			return &stubEngine{in: in, out: out, logits: []float32{0.2, 3.0}}, nil
		},
		func(string) (tensor.Spec, tensor.Spec, error) { return in, out, nil })

	cfg := Config{
		ModelDir:        "testmodels",
		SelectedModel:   modelCatalog[0],
		CameraWidth:     32,
		CameraHeight:    24,
		CameraFPS:       120,
		Decimation:      1,
		WarmupDuration:  50 * time.Millisecond,
		MeasureDuration: 150 * time.Millisecond,
	}
	camera := stream.NewSyntheticCamera(cfg.CameraWidth, cfg.CameraHeight, cfg.CameraFPS)
	hub := NewHub(log)
	app := NewApp(log, cfg, camera, classifier, hub)

	ctx, cancel := context.WithCancel(context.Background())
	go app.Run(ctx)
	return app, cancel
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestLiveClassificationFlows(t *testing.T) {
	app, cancel := newTestApp(t)
	defer cancel()

	waitFor(t, 5*time.Second, func() bool {
		return app.Live().Label == "subject"
	}, "no live classification arrived")

	live := app.Live()
	if live.Confidence == "" || live.Model != "mobilenet_v1_224.onnx" {
		t.Fatalf("live status = %+v", live)
	}
}

func TestBenchmarkRunProducesSortedReport(t *testing.T) {
	app, cancel := newTestApp(t)
	defer cancel()

	waitFor(t, 5*time.Second, func() bool {
		return app.Live().Label != ""
	}, "stream never produced a result")

	app.StartBenchmark()
	waitFor(t, 20*time.Second, func() bool {
		return app.Report() != nil
	}, "benchmark never completed")

	report := app.Report()
	if len(report.Entries) != len(modelCatalog) {
		t.Fatalf("report has %d entries, want %d", len(report.Entries), len(modelCatalog))
	}
	for i := 1; i < len(report.Entries); i++ {
		if report.Entries[i-1].MeanMs > report.Entries[i].MeanMs {
			t.Fatalf("report not ascending: %+v", report.Entries)
		}
	}

	// The pre-benchmark selection resumes for live classification.
	waitFor(t, 5*time.Second, func() bool {
		return app.Live().Model == "mobilenet_v1_224.onnx"
	}, "pre-benchmark model was not restored")
}

func TestCatalogNames(t *testing.T) {
	app, cancel := newTestApp(t)
	defer cancel()

	names := app.CatalogNames()
	if len(names) != len(modelCatalog) {
		t.Fatalf("catalog %v", names)
	}
	for i, want := range modelCatalog {
		if names[i] != want {
			t.Fatalf("catalog[%d] = %q, want %q", i, names[i], want)
		}
	}
}
