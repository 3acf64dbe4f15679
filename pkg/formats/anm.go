// ANM format parser for joint-aligned keyframe animations.
package formats

import (
	"errors"
	"fmt"
	"os"

	"github.com/Faultbox/animviewer/pkg/encoding"
)

// ANM format errors.
var (
	ErrTruncatedANMData = errors.New("truncated ANM data")
	ErrInvalidANMCount  = errors.New("invalid ANM frame or joint count")
)

// ANM layout constants.
const (
	ANMHeaderSize = 52
	ANMNameSize   = 32
	ANMJointSize  = 48 // 12 float32
)

// ANMFrame is one keyframe. Each joint is a 3x4 column-major matrix with the
// bottom row (0, 0, 0, 1) omitted.
type ANMFrame struct {
	TimeMs uint32
	Joints [][12]float32
}

// ANM represents a parsed ANM animation.
type ANM struct {
	Version    uint32
	Name       string
	FrameCount uint32
	Flags      uint32
	DurationMs uint32
	JointCount uint32
	Frames     []ANMFrame
}

// ParseANM parses ANM data from a byte slice.
func ParseANM(data []byte) (*ANM, error) {
	if len(data) < ANMHeaderSize {
		return nil, ErrTruncatedANMData
	}

	r := newReader(data)
	anm := &ANM{}
	anm.Version = r.u32()
	anm.Name = encoding.FixedString(r.take(ANMNameSize))
	anm.FrameCount = r.u32()
	anm.Flags = r.u32()
	anm.DurationMs = r.u32()
	anm.JointCount = r.u32()

	frameSize := 4 + int(anm.JointCount)*ANMJointSize
	if int(anm.JointCount) > len(data)/ANMJointSize || int(anm.FrameCount) > len(data)/frameSize {
		return nil, fmt.Errorf("%w: %d frames of %d joints", ErrInvalidANMCount, anm.FrameCount, anm.JointCount)
	}

	anm.Frames = make([]ANMFrame, anm.FrameCount)
	for i := range anm.Frames {
		f := &anm.Frames[i]
		f.TimeMs = r.u32()
		f.Joints = make([][12]float32, anm.JointCount)
		for j := range f.Joints {
			for k := range f.Joints[j] {
				f.Joints[j][k] = r.f32()
			}
		}
		if r.short {
			return nil, fmt.Errorf("frame %d: %w", i, ErrTruncatedANMData)
		}
	}

	return anm, nil
}

// ParseANMFile parses an ANM file from disk.
func ParseANMFile(path string) (*ANM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ANM file: %w", err)
	}
	return ParseANM(data)
}

// Duration returns the declared duration in seconds.
func (a *ANM) Duration() float32 {
	return float32(a.DurationMs) / 1000
}
