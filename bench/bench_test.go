package bench

import (
	"testing"
	"time"

	"github.com/sightlab/camera-benchmark-service/models"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time { return t0.Add(time.Duration(seconds) * time.Second) }

func testConfig() Config {
	return Config{
		Catalog: []string{"models/a.onnx", "models/b.onnx"},
		Warmup:  5 * time.Second,
		Measure: 20 * time.Second,
	}
}

func kinds(cmds []Command) []CommandKind {
	out := make([]CommandKind, len(cmds))
	for i, c := range cmds {
		out[i] = c.Kind
	}
	return out
}

func TestBeginLoadsFirstModelFenced(t *testing.T) {
	cfg := testConfig()
	state, cmds := Begin(cfg, "models/user.onnx", at(0))

	if state.Phase != PhaseWarmup || state.Cursor != 0 {
		t.Fatalf("state after Begin: phase=%v cursor=%d", state.Phase, state.Cursor)
	}
	want := []CommandKind{CmdStopStream, CmdLoadModel, CmdStartStream}
	got := kinds(cmds)
	if len(got) != len(want) {
		t.Fatalf("commands %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("command[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if cmds[1].Model != "models/a.onnx" {
		t.Fatalf("first load %q, want models/a.onnx", cmds[1].Model)
	}
}

func TestFullTwoModelRun(t *testing.T) {
	cfg := testConfig()
	state, _ := Begin(cfg, "models/user.onnx", at(0))

	// Warmup: samples before the 5s boundary are discarded without effect.
	state, cmds := OnResult(cfg, state, 99, at(1))
	if state.Phase != PhaseWarmup || len(cmds) != 0 || len(state.Samples) != 0 {
		t.Fatalf("warmup sample recorded: %+v", state)
	}

	// Exactly at the boundary the phase flips; the triggering sample is
	// still discarded.
	state, _ = OnResult(cfg, state, 99, at(5))
	if state.Phase != PhaseMeasuring || len(state.Samples) != 0 {
		t.Fatalf("expected measuring with empty samples, got %+v", state)
	}

	state, _ = OnResult(cfg, state, 10, at(6))
	state, _ = OnResult(cfg, state, 20, at(10))
	if len(state.Samples) != 2 {
		t.Fatalf("samples = %v", state.Samples)
	}

	// Measuring boundary: sample appended, mean recorded, next model fenced.
	state, cmds = OnResult(cfg, state, 30, at(25))
	if state.Phase != PhaseWarmup || state.Cursor != 1 {
		t.Fatalf("expected warmup for model 1, got phase=%v cursor=%d", state.Phase, state.Cursor)
	}
	if len(state.Entries) != 1 || state.Entries[0].MeanMs != 20 {
		t.Fatalf("entries = %+v, want mean 20 for model a", state.Entries)
	}
	wantKinds := []CommandKind{CmdStopStream, CmdLoadModel, CmdStartStream}
	for i, k := range kinds(cmds) {
		if k != wantKinds[i] {
			t.Fatalf("transition commands %v", kinds(cmds))
		}
	}
	if cmds[1].Model != "models/b.onnx" {
		t.Fatalf("second load %q", cmds[1].Model)
	}

	// Second model: warmup then one measured sample window.
	state, _ = OnResult(cfg, state, 99, at(30))
	if state.Phase != PhaseMeasuring {
		t.Fatalf("phase = %v", state.Phase)
	}
	state, _ = OnResult(cfg, state, 40, at(31))
	state, cmds = OnResult(cfg, state, 60, at(50))

	if state.Phase != PhaseIdle {
		t.Fatalf("phase = %v, want idle", state.Phase)
	}
	got := kinds(cmds)
	want := []CommandKind{CmdStopStream, CmdLoadModel, CmdStartStream, CmdEmitReport}
	if len(got) != len(want) {
		t.Fatalf("final commands %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("final command[%d] = %v", i, got[i])
		}
	}
	if cmds[1].Model != "models/user.onnx" {
		t.Fatalf("restored %q, want the pre-benchmark model", cmds[1].Model)
	}

	report := cmds[3].Report
	if report == nil || len(report.Entries) != 2 {
		t.Fatalf("report = %+v", report)
	}
	// a averaged 20ms, b averaged 50ms: ascending order is a then b.
	if report.Entries[0].Model != "models/a.onnx" || report.Entries[0].MeanMs != 20 {
		t.Fatalf("entry 0 = %+v", report.Entries[0])
	}
	if report.Entries[1].Model != "models/b.onnx" || report.Entries[1].MeanMs != 50 {
		t.Fatalf("entry 1 = %+v", report.Entries[1])
	}
	if report.RunID == "" {
		t.Fatal("report missing run ID")
	}
}

func TestMeanOfEmptySampleSetIsZero(t *testing.T) {
	if m := mean(nil); m != 0 {
		t.Fatalf("mean(nil) = %v, want 0", m)
	}
	if m := mean([]float64{}); m != 0 {
		t.Fatalf("mean([]) = %v, want 0", m)
	}
}

func TestReportTiesPreserveCatalogOrder(t *testing.T) {
	s := State{
		RunID: "run",
		Entries: []models.BenchmarkEntry{
			{Model: "a.onnx", MeanMs: 7},
			{Model: "b.onnx", MeanMs: 3},
			{Model: "c.onnx", MeanMs: 3},
		},
	}
	r := report(s, at(0))
	want := []string{"b.onnx", "c.onnx", "a.onnx"}
	for i, w := range want {
		if r.Entries[i].Model != w {
			t.Fatalf("sorted order %v, want %v at %d", r.Entries[i].Model, w, i)
		}
	}
}

func TestEmptyCatalogCompletesImmediately(t *testing.T) {
	state, cmds := Begin(Config{}, "models/user.onnx", at(0))
	if state.Active() {
		t.Fatal("empty catalog must stay idle")
	}
	if len(cmds) != 1 || cmds[0].Kind != CmdEmitReport || len(cmds[0].Report.Entries) != 0 {
		t.Fatalf("commands = %+v", cmds)
	}
}

func TestIdleIgnoresResults(t *testing.T) {
	cfg := testConfig()
	state, cmds := OnResult(cfg, State{Phase: PhaseIdle}, 12, at(1))
	if state.Phase != PhaseIdle || len(cmds) != 0 {
		t.Fatalf("idle transition: %+v %v", state, cmds)
	}
}
