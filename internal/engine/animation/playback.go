package animation

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/Faultbox/animviewer/pkg/math"
)

// DefaultRelativeOffsetDivisor scales the bind translation added under
// relative joints.
const DefaultRelativeOffsetDivisor = 3.0

// PoseOptions tunes pose evaluation.
type PoseOptions struct {
	RelativeOffsetDivisor float32
}

// Playback is an animation bound to one mesh.
type Playback struct {
	Clock
	AnimationID uuid.UUID

	// Transformed holds one pose per frame, one matrix per mesh bone.
	Transformed [][]mgl32.Mat4
	// Animated marks the bones driven by the animation.
	Animated  []bool
	Times     []time.Duration
	FrameRate float64
	Relative  bool
}

// FrameCount returns the number of frames.
func (p *Playback) FrameCount() int {
	return len(p.Transformed)
}

// Advance moves playback forward by dt.
func (p *Playback) Advance(dt time.Duration) {
	p.Clock.Advance(dt, p.FrameRate, p.FrameCount())
}

// Pose evaluates the joint matrices at the current time. Between frames the
// matrix components are blended linearly toward the next frame, wrapping to
// frame zero after the last. A non-looping absolute animation stopped on its
// final frame returns that frame unblended.
func (p *Playback) Pose(bind []mgl32.Mat4, opts PoseOptions) []mgl32.Mat4 {
	n := p.FrameCount()
	if n == 0 {
		out := make([]mgl32.Mat4, len(bind))
		copy(out, bind)
		return out
	}

	cur := min(max(p.CurrentFrame, 0), n-1)
	if !p.Relative && !p.Loop && cur == n-1 {
		out := make([]mgl32.Mat4, len(p.Transformed[cur]))
		copy(out, p.Transformed[cur])
		return out
	}

	next := (cur + 1) % n
	f := p.blendFactor(cur, next)

	a, b := p.Transformed[cur], p.Transformed[next]
	out := make([]mgl32.Mat4, len(a))
	for j := range a {
		out[j] = math.LerpMat4(a[j], b[j], f)
	}

	if p.Relative {
		div := opts.RelativeOffsetDivisor
		if div == 0 {
			div = DefaultRelativeOffsetDivisor
		}
		for j := range out {
			if j >= len(bind) || j >= len(p.Animated) || !p.Animated[j] {
				continue
			}
			off := math.Translation(bind[j]).Mul(1 / div)
			out[j] = bind[j].Mul4(mgl32.Translate3D(off[0], off[1], off[2])).Mul4(out[j])
		}
	}
	return out
}

func (p *Playback) blendFactor(cur, next int) float32 {
	if len(p.Times) != p.FrameCount() {
		return 0
	}
	t0, t1 := p.Times[cur], p.Times[next]
	if t1 <= t0 {
		return 0
	}
	f := float32(p.CurrentTime-t0) / float32(t1-t0)
	return min(max(f, 0), 1)
}

// Defaults for motion capture display.
const (
	DefaultMocapScale    = 0.02
	DefaultMocapNodeSize = 0.5
)

// MocapPlayback is a motion capture bound to an entity.
type MocapPlayback struct {
	Clock
	MotionCaptureID uuid.UUID
	Scale           float32
	NodeSize        float32
}

// NewMocapPlayback returns a stopped playback with default display scale.
func NewMocapPlayback(id uuid.UUID) *MocapPlayback {
	return &MocapPlayback{MotionCaptureID: id, Scale: DefaultMocapScale, NodeSize: DefaultMocapNodeSize}
}

// Advance moves playback forward by dt.
func (p *MocapPlayback) Advance(dt time.Duration, mc *MotionCapture) {
	p.Clock.Advance(dt, mc.FrameRate, mc.FrameCount())
}

// Points returns the scaled points of the current frame.
func (p *MocapPlayback) Points(mc *MotionCapture) []mgl32.Vec3 {
	src := mc.Frame(p.CurrentFrame)
	out := make([]mgl32.Vec3, len(src))
	for i, v := range src {
		out[i] = v.Mul(p.Scale)
	}
	return out
}
