package stream

import (
	"image"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sightlab/camera-benchmark-service/convert"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testFrame() convert.RawFrame {
	return convert.RawFrame{
		Y:             make([]byte, 16),
		U:             make([]byte, 4),
		V:             make([]byte, 4),
		YRowStride:    4,
		UVRowStride:   2,
		UVPixelStride: 1,
		Width:         4,
		Height:        4,
	}
}

func TestDecimationAdmitsEveryThirdFrame(t *testing.T) {
	seen := make(chan uint64, 16)
	s := NewScheduler(quietLogger(), 3, func(_ *image.NRGBA, gen uint64) {
		seen <- gen
	})

	for i := 0; i < 9; i++ {
		s.OnFrame(testFrame())
		s.WaitIdle() // let each admitted frame finish so none is dropped busy
	}

	stats := s.Stats()
	if stats.Delivered != 9 {
		t.Fatalf("delivered = %d", stats.Delivered)
	}
	if stats.Decimated != 6 {
		t.Fatalf("decimated = %d, want 6 of 9", stats.Decimated)
	}
	if stats.Admitted != 3 {
		t.Fatalf("admitted = %d, want every third frame", stats.Admitted)
	}
	if stats.Dropped != 0 {
		t.Fatalf("dropped = %d, want 0", stats.Dropped)
	}
}

func TestBurstWhileInFlightDropsAllButOne(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s := NewScheduler(quietLogger(), 3, func(*image.NRGBA, uint64) {
		started <- struct{}{}
		<-release
	})

	// Frames 1..3: frame 3 passes decimation and takes the slot.
	for i := 0; i < 3; i++ {
		s.OnFrame(testFrame())
	}
	<-started

	// Burst of 9 more while in flight: frames 6, 9, 12 reach the admission
	// check and every one is dropped, not queued.
	for i := 0; i < 9; i++ {
		s.OnFrame(testFrame())
	}

	stats := s.Stats()
	if stats.Admitted != 1 {
		t.Fatalf("admitted = %d, want exactly 1 per in-flight window", stats.Admitted)
	}
	if stats.Dropped != 3 {
		t.Fatalf("dropped = %d, want 3", stats.Dropped)
	}

	close(release)
	s.WaitIdle()

	// Slot free again: the next decimation survivor is admitted.
	for i := 0; i < 3; i++ {
		s.OnFrame(testFrame())
	}
	<-started
	close(started)
	s.WaitIdle()
	if got := s.Stats().Admitted; got != 2 {
		t.Fatalf("admitted after release = %d, want 2", got)
	}
}

func TestResetInvalidatesOutstandingGeneration(t *testing.T) {
	release := make(chan struct{})
	gens := make(chan uint64, 1)
	s := NewScheduler(quietLogger(), 1, func(_ *image.NRGBA, gen uint64) {
		<-release
		gens <- gen
	})

	s.OnFrame(testFrame())
	s.Reset() // model swap while the frame is still in flight
	close(release)
	s.WaitIdle()

	got := <-gens
	if got == s.Generation() {
		t.Fatalf("stale frame carries current generation %d", got)
	}
}

func TestWorkerReceivesDetachedCopy(t *testing.T) {
	frames := make(chan *image.NRGBA, 1)
	s := NewScheduler(quietLogger(), 1, func(img *image.NRGBA, _ uint64) {
		frames <- img
	})

	frame := testFrame()
	for i := range frame.Y {
		frame.Y[i] = 128
	}
	for i := range frame.U {
		frame.U[i] = 128
	}
	for i := range frame.V {
		frame.V[i] = 128
	}
	s.OnFrame(frame)
	// Simulate the camera recycling its buffer immediately.
	for i := range frame.Y {
		frame.Y[i] = 0
	}
	s.WaitIdle()

	img := <-frames
	i := img.PixOffset(0, 0)
	if img.Pix[i] != 128 {
		t.Fatalf("conversion saw recycled buffer: R=%d, want 128", img.Pix[i])
	}
}

func TestPanicInProcessReleasesSlot(t *testing.T) {
	s := NewScheduler(quietLogger(), 1, func(*image.NRGBA, uint64) {
		panic("boom")
	})
	s.OnFrame(testFrame())
	done := make(chan struct{})
	go func() {
		s.WaitIdle()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("slot never released after panic")
	}
}
