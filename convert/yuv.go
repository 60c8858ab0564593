package convert

import (
	"image"
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"
)

// BT.601 full-range coefficients.
const (
	coefRV = 1.402
	coefGU = 0.344136
	coefGV = 0.714136
	coefBU = 1.772
)

var numWorkers = defaultWorkers()

func defaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	// Conversion is memory-bound; wider vector units keep more row slices fed.
	if cpu.X86.HasAVX2 {
		n *= 2
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Convert transforms one planar YUV420 frame into an RGBA pixel buffer
// (alpha fixed at 255). Samples whose computed plane index falls outside the
// plane are skipped, leaving that pixel's color channels at zero; a frame is
// never rejected for a single short plane.
//
// Pure and stateless: safe to call from any goroutine.
func Convert(frame RawFrame) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}

	workers := numWorkers
	if workers > frame.Height {
		workers = frame.Height
	}
	if workers <= 1 {
		convertRows(frame, img, 0, frame.Height)
		return img
	}

	rowsPerWorker := frame.Height / workers
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		startY := w * rowsPerWorker
		endY := startY + rowsPerWorker
		if w == workers-1 {
			endY = frame.Height
		}
		go func(startY, endY int) {
			defer wg.Done()
			convertRows(frame, img, startY, endY)
		}(startY, endY)
	}
	wg.Wait()

	return img
}

func convertRows(frame RawFrame, img *image.NRGBA, startY, endY int) {
	for y := startY; y < endY; y++ {
		yRow := y * frame.YRowStride
		uvRow := (y / 2) * frame.UVRowStride
		out := img.PixOffset(0, y)
		for x := 0; x < frame.Width; x++ {
			yIdx := yRow + x
			uvIdx := uvRow + (x/2)*frame.UVPixelStride
			if yIdx >= len(frame.Y) || uvIdx >= len(frame.U) || uvIdx >= len(frame.V) {
				out += 4
				continue
			}

			luma := float64(frame.Y[yIdx])
			u := float64(frame.U[uvIdx]) - 128
			v := float64(frame.V[uvIdx]) - 128

			img.Pix[out+0] = clampByte(luma + coefRV*v)
			img.Pix[out+1] = clampByte(luma - coefGU*u - coefGV*v)
			img.Pix[out+2] = clampByte(luma + coefBU*u)
			out += 4
		}
	}
}

// clampByte truncates toward zero and clamps to [0,255].
func clampByte(v float64) uint8 {
	n := int(v)
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}
