package animation

import (
	"fmt"
	gomath "math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/animviewer/pkg/formats"
	"github.com/Faultbox/animviewer/pkg/math"
)

// BuildANM converts an ANM file. Frames are index-aligned absolute joint
// matrices.
func BuildANM(anm *formats.ANM) (*Animation, error) {
	if len(anm.Frames) == 0 {
		return nil, ErrEmptyAnimation
	}

	a := &Animation{
		Name:       anm.Name,
		FrameCount: len(anm.Frames),
		Duration:   time.Duration(anm.DurationMs) * time.Millisecond,
		Frames:     make([]Frame, len(anm.Frames)),
	}
	for i, f := range anm.Frames {
		frame := Frame{
			Time:   time.Duration(f.TimeMs) * time.Millisecond,
			Joints: make([]mgl32.Mat4, len(f.Joints)),
		}
		for j, m := range f.Joints {
			frame.Joints[j] = math.FromMat3x4(m)
		}
		a.Frames[i] = frame
	}
	if a.Duration <= 0 {
		a.Duration = a.Frames[len(a.Frames)-1].Time
	}
	a.FrameRate = frameRate(a.FrameCount, a.Duration)
	return a, nil
}

// BuildBVH converts a BVH recording. Joints are taken depth-first with End
// Site markers dropped; each frame stores parent-local matrices built from
// the joint offset and its rotation channels in declared order. Translation
// channels are not applied.
func BuildBVH(bvh *formats.BVH) (*Animation, error) {
	if bvh.FrameCount() == 0 {
		return nil, ErrEmptyAnimation
	}

	var joints []int
	a := &Animation{Relative: true, FrameCount: bvh.FrameCount()}
	for i := range bvh.Joints {
		if bvh.Joints[i].IsEndSite() {
			continue
		}
		joints = append(joints, i)
		a.JointNames = append(a.JointNames, bvh.Joints[i].Name)
	}
	if len(joints) > 0 {
		a.Name = a.JointNames[0]
	}

	frameTime := time.Duration(gomath.Round(float64(bvh.FrameTime) * float64(time.Second)))
	a.Frames = make([]Frame, bvh.FrameCount())
	for f, values := range bvh.Motion {
		frame := Frame{Time: time.Duration(f) * frameTime, Joints: make([]mgl32.Mat4, len(joints))}
		for k, ji := range joints {
			j := &bvh.Joints[ji]
			local := mgl32.Translate3D(j.Offset[0], j.Offset[1], j.Offset[2])
			for c, ch := range j.Channels {
				axis, ok := bvhAxis(ch)
				if !ok {
					continue
				}
				local = local.Mul4(math.RotateAxis(axis, values[j.ChannelStart+c]))
			}
			frame.Joints[k] = local
		}
		a.Frames[f] = frame
	}

	a.Duration = time.Duration(a.FrameCount) * frameTime
	a.FrameRate = 1 / float64(bvh.FrameTime)
	return a, nil
}

func bvhAxis(ch formats.BVHChannel) (math.Axis, bool) {
	switch ch {
	case formats.BVHXRotation:
		return math.AxisX, true
	case formats.BVHYRotation:
		return math.AxisY, true
	case formats.BVHZRotation:
		return math.AxisZ, true
	}
	return 0, false
}

// BuildMotionCapture converts a point cloud recording, swapping the Y and Z
// axes into the engine's up-axis convention.
func BuildMotionCapture(mc *formats.MotionCapture) (*MotionCapture, error) {
	if mc.PointCount == 0 {
		return nil, ErrNoPoints
	}
	if len(mc.Points)%int(mc.PointCount) != 0 {
		return nil, fmt.Errorf("%w: %d points not a multiple of %d", ErrNoPoints, len(mc.Points), mc.PointCount)
	}

	out := &MotionCapture{
		Name:       mc.Name,
		FrameRate:  float64(mc.FrameRate),
		PointCount: int(mc.PointCount),
		Points:     make([]mgl32.Vec3, len(mc.Points)),
	}
	if out.FrameRate <= 0 {
		out.FrameRate = DefaultFrameRate
	}
	for i, p := range mc.Points {
		out.Points[i] = mgl32.Vec3{p[0], p[2], p[1]}
	}
	return out, nil
}
