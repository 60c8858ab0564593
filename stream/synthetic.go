package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sightlab/camera-benchmark-service/convert"
)

// SyntheticCamera pushes generated planar YUV420 gradient frames on a fixed
// cadence. It stands in for real capture hardware during development and in
// tests; frame content shifts every tick so consumers see motion.
type SyntheticCamera struct {
	id     string
	width  int
	height int
	fps    int

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup

	frame convert.RawFrame
	phase byte
}

// NewSyntheticCamera builds a source producing width x height frames at the
// given rate.
func NewSyntheticCamera(width, height, fps int) *SyntheticCamera {
	if fps <= 0 {
		fps = 30
	}
	c := &SyntheticCamera{
		id:     uuid.NewString(),
		width:  width,
		height: height,
		fps:    fps,
	}
	c.frame = convert.RawFrame{
		Y:             make([]byte, width*height),
		U:             make([]byte, (width/2)*(height/2)),
		V:             make([]byte, (width/2)*(height/2)),
		YRowStride:    width,
		UVRowStride:   width / 2,
		UVPixelStride: 1,
		Width:         width,
		Height:        height,
	}
	return c
}

func (c *SyntheticCamera) Devices() ([]Device, error) {
	return []Device{{
		ID:   c.id,
		Name: fmt.Sprintf("synthetic %dx%d@%d", c.width, c.height, c.fps),
	}}, nil
}

// Start begins frame delivery. Returns an error if already running.
func (c *SyntheticCamera) Start(onFrame FrameFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return fmt.Errorf("camera already started")
	}
	stop := make(chan struct{})
	c.stop = stop

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(time.Second / time.Duration(c.fps))
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.fill()
				onFrame(c.frame)
			}
		}
	}()
	return nil
}

// Stop halts delivery and waits for the generator goroutine. A no-op when
// the camera is not running.
func (c *SyntheticCamera) Stop() error {
	c.mu.Lock()
	if c.stop == nil {
		c.mu.Unlock()
		return nil
	}
	close(c.stop)
	c.stop = nil
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// fill rewrites the shared plane buffers in place, mimicking capture
// hardware that recycles its buffers between callbacks.
func (c *SyntheticCamera) fill() {
	c.phase++
	for y := 0; y < c.height; y++ {
		row := y * c.frame.YRowStride
		for x := 0; x < c.width; x++ {
			c.frame.Y[row+x] = byte(x+y) + c.phase
		}
	}
	for y := 0; y < c.height/2; y++ {
		row := y * c.frame.UVRowStride
		for x := 0; x < c.width/2; x++ {
			c.frame.U[row+x] = byte(x)*2 + c.phase
			c.frame.V[row+x] = byte(y)*2 - c.phase
		}
	}
}
