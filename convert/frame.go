package convert

// RawFrame is an immutable snapshot of one planar YUV420 camera frame.
// Plane data must not be mutated after construction; callers that receive
// frames from a camera whose buffers are reused must copy before handing
// the frame off (see stream.Scheduler).
type RawFrame struct {
	Y []byte
	U []byte
	V []byte

	YRowStride    int
	UVRowStride   int
	UVPixelStride int

	Width  int
	Height int
}

// Clone deep-copies the frame, detaching it from any caller-owned buffers.
func (f RawFrame) Clone() RawFrame {
	c := f
	c.Y = append([]byte(nil), f.Y...)
	c.U = append([]byte(nil), f.U...)
	c.V = append([]byte(nil), f.V...)
	return c
}
