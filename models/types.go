package models

import "time"

// ClassificationResult is the outcome of classifying one frame.
type ClassificationResult struct {
	Label           string  `json:"label"`
	Confidence      float32 `json:"confidence"`
	InferenceTimeMs int64   `json:"inference_time_ms"`
}

// ProcessingTimings breaks one frame's handling into stages. Only Inference
// covers the timed encode-to-argmax region; preprocessing is fixed-cost work
// kept out of benchmark measurements.
type ProcessingTimings struct {
	Preprocess time.Duration
	Inference  time.Duration
	Total      time.Duration
}

// BenchmarkEntry is one catalog model's aggregated latency.
type BenchmarkEntry struct {
	Model  string  `json:"model"`
	MeanMs float64 `json:"mean_ms"`
}

// BenchmarkReport maps the full catalog to mean inference times, sorted
// ascending by mean; ties preserve catalog order.
type BenchmarkReport struct {
	RunID     string           `json:"run_id"`
	Entries   []BenchmarkEntry `json:"entries"`
	Completed time.Time        `json:"completed"`
}

// BenchmarkProgress describes the orchestrator's position mid-run.
type BenchmarkProgress struct {
	ModelIndex   int     `json:"model_index"`
	ModelCount   int     `json:"model_count"`
	Model        string  `json:"model"`
	Phase        string  `json:"phase"`
	PhaseElapsed float64 `json:"phase_elapsed_s"`
}

// LiveStatus is the presentation-layer view of the most recent frame:
// confidence formatted to one decimal percent and an exponentially smoothed
// inference time (display smoothing, never benchmark input).
type LiveStatus struct {
	Label          string  `json:"label"`
	Confidence     string  `json:"confidence"`
	SmoothedTimeMs float64 `json:"smoothed_time_ms"`
	Model          string  `json:"model"`
}
