package stream

import "github.com/sightlab/camera-benchmark-service/convert"

// Device identifies one capture device.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FrameFunc receives frames pushed by a running camera. The frame's plane
// buffers belong to the camera and may be reused as soon as the callback
// returns; receivers must copy what they keep.
type FrameFunc func(frame convert.RawFrame)

// Camera is the capture collaborator: a low-resolution planar YUV420 source
// with push-style delivery. Stop while idle must be a no-op.
type Camera interface {
	Devices() ([]Device, error)
	Start(onFrame FrameFunc) error
	Stop() error
}
