// Motion capture point-cloud parser.
package formats

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/Faultbox/animviewer/pkg/encoding"
)

// Motion capture format errors.
var (
	ErrInvalidMotionCaptureTag    = errors.New("invalid motion capture tag: expected 0x50")
	ErrTruncatedMotionCaptureData = errors.New("truncated motion capture data")
	ErrInvalidMotionCaptureCount  = errors.New("invalid motion capture point or frame count")
	ErrInvalidMotionCaptureRate   = errors.New("invalid motion capture frame rate")
)

// Motion capture layout constants.
const (
	MotionCaptureHeaderSize = 44
	MotionCaptureNameSize   = 32
	MotionCapturePointSize  = 12
)

// MotionCapture is a parsed point-cloud recording. Points are stored frame
// by frame in file axis order; Y and Z are swapped relative to the engine.
type MotionCapture struct {
	Version    uint8
	Flags      uint16
	Name       string
	FrameRate  float32 // frames per second
	PointCount uint32
	FrameCount uint32
	Points     [][3]float32
}

// ParseMotionCapture parses motion capture data from a byte slice.
func ParseMotionCapture(data []byte) (*MotionCapture, error) {
	if len(data) < MotionCaptureHeaderSize {
		return nil, ErrTruncatedMotionCaptureData
	}
	if data[1] != MotionCaptureTag {
		return nil, ErrInvalidMotionCaptureTag
	}

	r := newReader(data)
	mc := &MotionCapture{}
	mc.Version = r.u8()
	r.u8() // tag
	mc.Flags = r.u16()
	mc.Name = encoding.FixedString(r.take(MotionCaptureNameSize))
	mc.FrameRate = r.f32()
	mc.PointCount = r.u32()
	mc.FrameCount = r.u32()

	// Zero and negative rates fall back to a default later; NaN and Inf
	// cannot.
	if rate := float64(mc.FrameRate); math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMotionCaptureRate, mc.FrameRate)
	}

	total := uint64(mc.PointCount) * uint64(mc.FrameCount)
	if total > uint64(r.remaining()/MotionCapturePointSize) {
		return nil, fmt.Errorf("%w: %d points x %d frames", ErrInvalidMotionCaptureCount, mc.PointCount, mc.FrameCount)
	}

	mc.Points = make([][3]float32, total)
	for i := range mc.Points {
		mc.Points[i] = r.vec3()
	}
	if r.short {
		return nil, ErrTruncatedMotionCaptureData
	}
	return mc, nil
}

// ParseMotionCaptureFile parses a motion capture file from disk.
func ParseMotionCaptureFile(path string) (*MotionCapture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading motion capture file: %w", err)
	}
	return ParseMotionCapture(data)
}
