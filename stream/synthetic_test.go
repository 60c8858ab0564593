package stream

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sightlab/camera-benchmark-service/convert"
)

func TestSyntheticCameraDeliversValidFrames(t *testing.T) {
	cam := NewSyntheticCamera(64, 48, 120)

	devices, err := cam.Devices()
	if err != nil || len(devices) != 1 {
		t.Fatalf("devices = %v, %v", devices, err)
	}

	frames := make(chan convert.RawFrame, 1)
	var count atomic.Int64
	err = cam.Start(func(f convert.RawFrame) {
		if count.Add(1) == 1 {
			frames <- f.Clone()
		}
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer cam.Stop()

	select {
	case f := <-frames:
		if f.Width != 64 || f.Height != 48 {
			t.Fatalf("frame %dx%d, want 64x48", f.Width, f.Height)
		}
		if len(f.Y) != 64*48 || len(f.U) != 32*24 || len(f.V) != 32*24 {
			t.Fatalf("plane sizes %d/%d/%d", len(f.Y), len(f.U), len(f.V))
		}
		img := convert.Convert(f)
		if img.Rect.Dx() != 64 || img.Rect.Dy() != 48 {
			t.Fatalf("converted bounds %v", img.Rect)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestSyntheticCameraStopWhileIdleIsNoOp(t *testing.T) {
	cam := NewSyntheticCamera(32, 32, 30)
	if err := cam.Stop(); err != nil {
		t.Fatalf("idle stop: %v", err)
	}
	if err := cam.Start(func(convert.RawFrame) {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := cam.Start(func(convert.RawFrame) {}); err == nil {
		t.Fatal("double start must error")
	}
	if err := cam.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := cam.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
