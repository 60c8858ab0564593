package stream

import (
	"image"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/sightlab/camera-benchmark-service/convert"
)

// DefaultDecimation admits every third delivered frame for consideration,
// bounding conversion and inference load well below the raw camera rate.
const DefaultDecimation = 3

// ProcessFunc receives a converted frame on the background worker, together
// with the scheduler generation the frame was admitted under. Consumers must
// compare the generation against the current one before touching shared
// state, so results started before a Reset are discarded instead of
// overwriting newer state.
type ProcessFunc func(img *image.NRGBA, generation uint64)

// Scheduler throttles and serializes frame submission: frames are decimated
// first, then admitted only while no other frame is in flight. Admitted
// frames are deep-copied out of the camera's buffers before the background
// conversion starts. Frames that arrive busy are dropped, never queued.
//
// The in-flight flag is a single-slot token channel: a full slot means one
// frame is outstanding, and WaitIdle can block on the slot draining.
type Scheduler struct {
	log        *logrus.Logger
	process    ProcessFunc
	decimation uint64
	slot       chan struct{}

	delivered  atomic.Uint64
	decimated  atomic.Uint64
	dropped    atomic.Uint64
	admitted   atomic.Uint64
	processed  atomic.Uint64
	generation atomic.Uint64
}

// Stats is a snapshot of the scheduler's counters.
type Stats struct {
	Delivered uint64 `json:"delivered"`
	Decimated uint64 `json:"decimated"`
	Dropped   uint64 `json:"dropped"`
	Admitted  uint64 `json:"admitted"`
	Processed uint64 `json:"processed"`
}

// NewScheduler builds a scheduler delivering converted frames to process.
// decimation <= 0 uses DefaultDecimation.
func NewScheduler(log *logrus.Logger, decimation int, process ProcessFunc) *Scheduler {
	if decimation <= 0 {
		decimation = DefaultDecimation
	}
	return &Scheduler{
		log:        log,
		process:    process,
		decimation: uint64(decimation),
		slot:       make(chan struct{}, 1),
	}
}

// OnFrame is the camera callback. It returns quickly in every path: the
// heavy conversion work runs on a spawned worker goroutine, at most one of
// which is alive at a time.
func (s *Scheduler) OnFrame(frame convert.RawFrame) {
	n := s.delivered.Add(1)
	if n%s.decimation != 0 {
		s.decimated.Add(1)
		return
	}

	select {
	case s.slot <- struct{}{}:
	default:
		s.dropped.Add(1)
		return
	}
	s.admitted.Add(1)

	// The camera may recycle its plane buffers the moment this callback
	// returns; detach before going asynchronous.
	copied := frame.Clone()
	generation := s.generation.Load()

	go func() {
		// The slot is released on every exit path, success or panic.
		defer func() { <-s.slot }()
		defer func() {
			if r := recover(); r != nil {
				s.log.WithField("panic", r).Error("frame processing panicked, frame skipped")
			}
		}()
		img := convert.Convert(copied)
		s.process(img, generation)
		s.processed.Add(1)
	}()
}

// Generation returns the current admission generation.
func (s *Scheduler) Generation() uint64 {
	return s.generation.Load()
}

// Reset invalidates results from any frame admitted before the call. The
// outstanding worker, if any, runs to completion; its result fails the
// generation check instead of being cancelled.
func (s *Scheduler) Reset() {
	s.generation.Add(1)
}

// WaitIdle blocks until no frame is in flight. Callers must have stopped
// frame delivery first, otherwise a newly admitted frame can take the slot
// back immediately.
func (s *Scheduler) WaitIdle() {
	s.slot <- struct{}{}
	<-s.slot
}

// Stats returns a counter snapshot.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Delivered: s.delivered.Load(),
		Decimated: s.decimated.Load(),
		Dropped:   s.dropped.Load(),
		Admitted:  s.admitted.Load(),
		Processed: s.processed.Load(),
	}
}
