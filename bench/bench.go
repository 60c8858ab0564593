// Package bench implements the model-latency benchmark as a pure state
// machine: transitions are functions of (state, event) returning the next
// state plus the side effects the coordination loop must execute. This keeps
// the warmup/measurement protocol testable with synthetic timestamps.
package bench

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sightlab/camera-benchmark-service/models"
)

// Phase is the orchestrator's position in the protocol.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWarmup
	PhaseMeasuring
)

func (p Phase) String() string {
	switch p {
	case PhaseWarmup:
		return "warmup"
	case PhaseMeasuring:
		return "measuring"
	default:
		return "idle"
	}
}

// Default phase durations.
const (
	DefaultWarmup  = 5 * time.Second
	DefaultMeasure = 20 * time.Second
)

// Config fixes the catalog and phase durations for one run. Catalog order
// determines iteration order and the report's tie-break.
type Config struct {
	Catalog []string
	Warmup  time.Duration
	Measure time.Duration
}

func (c Config) warmup() time.Duration {
	if c.Warmup > 0 {
		return c.Warmup
	}
	return DefaultWarmup
}

func (c Config) measure() time.Duration {
	if c.Measure > 0 {
		return c.Measure
	}
	return DefaultMeasure
}

// CommandKind enumerates the side effects a transition can demand.
type CommandKind int

const (
	// CmdStopStream halts live frame delivery before a model swap.
	CmdStopStream CommandKind = iota
	// CmdLoadModel loads Command.Model; always fenced by stop/start.
	CmdLoadModel
	// CmdStartStream resumes frame delivery.
	CmdStartStream
	// CmdEmitReport publishes Command.Report after the full catalog ran.
	CmdEmitReport
)

// Command is one side effect; the coordination loop executes them in order.
type Command struct {
	Kind   CommandKind
	Model  string
	Report *models.BenchmarkReport
}

// State is the orchestrator's full condition between events. Values are
// treated as immutable: transitions return fresh copies.
type State struct {
	Phase      Phase
	Cursor     int
	PhaseStart time.Time
	Samples    []float64
	Entries    []models.BenchmarkEntry
	PriorModel string
	RunID      string
}

// Active reports whether a run is underway.
func (s State) Active() bool { return s.Phase != PhaseIdle }

// Progress snapshots the run for the presentation layer.
func (s State) Progress(cfg Config, now time.Time) models.BenchmarkProgress {
	p := models.BenchmarkProgress{
		ModelIndex: s.Cursor,
		ModelCount: len(cfg.Catalog),
		Phase:      s.Phase.String(),
	}
	if s.Cursor < len(cfg.Catalog) {
		p.Model = cfg.Catalog[s.Cursor]
	}
	if s.Active() {
		p.PhaseElapsed = now.Sub(s.PhaseStart).Seconds()
	}
	return p
}

// Begin starts a run against the catalog: frame delivery is stopped, prior
// results cleared, the first model loaded, and delivery re-enabled with the
// orchestrator in Warmup. priorModel is restored once the catalog completes.
// An empty catalog yields an immediate empty report with no model churn.
func Begin(cfg Config, priorModel string, now time.Time) (State, []Command) {
	if len(cfg.Catalog) == 0 {
		s := State{Phase: PhaseIdle, RunID: uuid.NewString()}
		return s, []Command{{Kind: CmdEmitReport, Report: report(s, now)}}
	}

	s := State{
		Phase:      PhaseWarmup,
		Cursor:     0,
		PhaseStart: now,
		PriorModel: priorModel,
		RunID:      uuid.NewString(),
	}
	return s, []Command{
		{Kind: CmdStopStream},
		{Kind: CmdLoadModel, Model: cfg.Catalog[0]},
		{Kind: CmdStartStream},
	}
}

// OnResult feeds one classified frame's inference time into the protocol and
// returns the next state plus any side effects. Events arriving while Idle
// are ignored.
func OnResult(cfg Config, s State, inferenceMs int64, now time.Time) (State, []Command) {
	switch s.Phase {
	case PhaseWarmup:
		if now.Sub(s.PhaseStart) < cfg.warmup() {
			// Warmup samples are never recorded.
			return s, nil
		}
		next := s
		next.Phase = PhaseMeasuring
		next.PhaseStart = now
		next.Samples = nil
		return next, nil

	case PhaseMeasuring:
		next := s
		next.Samples = append(append([]float64(nil), s.Samples...), float64(inferenceMs))
		if now.Sub(s.PhaseStart) < cfg.measure() {
			return next, nil
		}

		next.Entries = append(append([]models.BenchmarkEntry(nil), s.Entries...), models.BenchmarkEntry{
			Model:  cfg.Catalog[s.Cursor],
			MeanMs: mean(next.Samples),
		})
		next.Samples = nil

		if s.Cursor+1 < len(cfg.Catalog) {
			next.Cursor = s.Cursor + 1
			next.Phase = PhaseWarmup
			next.PhaseStart = now
			return next, []Command{
				{Kind: CmdStopStream},
				{Kind: CmdLoadModel, Model: cfg.Catalog[next.Cursor]},
				{Kind: CmdStartStream},
			}
		}

		next.Phase = PhaseIdle
		cmds := []Command{{Kind: CmdStopStream}}
		if s.PriorModel != "" {
			cmds = append(cmds, Command{Kind: CmdLoadModel, Model: s.PriorModel})
		}
		cmds = append(cmds,
			Command{Kind: CmdStartStream},
			Command{Kind: CmdEmitReport, Report: report(next, now)},
		)
		return next, cmds

	default:
		return s, nil
	}
}

// report sorts entries ascending by mean time; sort stability preserves
// catalog order on ties.
func report(s State, now time.Time) *models.BenchmarkReport {
	entries := append([]models.BenchmarkEntry(nil), s.Entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].MeanMs < entries[j].MeanMs
	})
	return &models.BenchmarkReport{
		RunID:     s.RunID,
		Entries:   entries,
		Completed: now,
	}
}

// mean of an empty set is 0, never a fault.
func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}
