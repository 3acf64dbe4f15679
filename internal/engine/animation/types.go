// Package animation normalizes keyframe animations and motion capture into a
// single representation, retargets animations onto mesh skeletons and plays
// them back.
package animation

import (
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Animation errors.
var (
	ErrEmptyAnimation = errors.New("animation has no frames")
	ErrNoPoints       = errors.New("motion capture has no points")
	ErrNoSkeleton     = errors.New("scene has no skeleton")
)

// DefaultFrameRate is used when a source declares no usable duration.
const DefaultFrameRate = 30.0

// Frame is one keyframe: a timestamp and one matrix per joint.
type Frame struct {
	Time   time.Duration
	Joints []mgl32.Mat4
}

// Animation is a keyframed skeletal animation. When JointNames is empty the
// joints are aligned by index with the target mesh's bones; otherwise they
// are matched by name. Relative animations store parent-local matrices.
type Animation struct {
	Name       string
	FrameCount int
	Duration   time.Duration
	FrameRate  float64 // frames per second
	Relative   bool
	JointNames []string
	Frames     []Frame
}

// IndexAligned reports whether joints map to mesh bones by position.
func (a *Animation) IndexAligned() bool {
	return len(a.JointNames) == 0
}

// JointCount returns the number of joints per frame.
func (a *Animation) JointCount() int {
	if len(a.Frames) == 0 {
		return 0
	}
	return len(a.Frames[0].Joints)
}

// MotionCapture is an unstructured point cloud recording. Points holds all
// points of frame 0, then all points of frame 1, and so on.
type MotionCapture struct {
	Name       string
	FrameRate  float64 // frames per second
	PointCount int
	Points     []mgl32.Vec3
}

// FrameCount returns the number of recorded frames.
func (m *MotionCapture) FrameCount() int {
	if m.PointCount == 0 {
		return 0
	}
	return len(m.Points) / m.PointCount
}

// Frame returns the points of frame i.
func (m *MotionCapture) Frame(i int) []mgl32.Vec3 {
	if i < 0 || i >= m.FrameCount() {
		return nil
	}
	return m.Points[i*m.PointCount : (i+1)*m.PointCount]
}

// frameRate derives frames per second from a frame count and duration.
func frameRate(frames int, d time.Duration) float64 {
	if d <= 0 || frames == 0 {
		return DefaultFrameRate
	}
	return float64(frames) / d.Seconds()
}
