package animation

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/animviewer/internal/engine/model"
)

// Retarget maps an animation onto a mesh skeleton and returns a stopped
// playback holding one transformed pose per frame.
//
// Index-aligned animations whose joint count equals the bone count have each
// joint composed with its mesh ancestors. All other animations start from the
// bind pose and overwrite the joints whose names match a mesh bone; the rest
// stay at the bind pose for every frame.
func Retarget(mesh *model.Mesh, bind []mgl32.Mat4, anim *Animation) (*Playback, error) {
	if len(anim.Frames) == 0 {
		return nil, ErrEmptyAnimation
	}
	if len(bind) != len(mesh.Bones) {
		return nil, fmt.Errorf("bind pose has %d joints for %d bones", len(bind), len(mesh.Bones))
	}

	p := &Playback{
		Transformed: make([][]mgl32.Mat4, len(anim.Frames)),
		Animated:    make([]bool, len(mesh.Bones)),
		Times:       make([]time.Duration, len(anim.Frames)),
		FrameRate:   anim.FrameRate,
		Relative:    anim.Relative,
	}
	for f := range anim.Frames {
		p.Times[f] = anim.Frames[f].Time
	}

	if anim.IndexAligned() && anim.JointCount() == len(mesh.Bones) {
		for j := range p.Animated {
			p.Animated[j] = true
		}
		for f, frame := range anim.Frames {
			p.Transformed[f] = composeParents(mesh, frame.Joints)
		}
		return p, nil
	}

	// Joint slot -> mesh bone, -1 when unmatched.
	target := make([]int, anim.JointCount())
	for k := range target {
		target[k] = -1
		if k < len(anim.JointNames) {
			if b, ok := mesh.BoneIndex[anim.JointNames[k]]; ok {
				target[k] = b
				p.Animated[b] = true
			}
		}
	}

	for f, frame := range anim.Frames {
		pose := make([]mgl32.Mat4, len(bind))
		copy(pose, bind)
		for k, b := range target {
			if b >= 0 && k < len(frame.Joints) {
				pose[b] = frame.Joints[k]
			}
		}
		p.Transformed[f] = pose
	}
	return p, nil
}

// composeParents returns frame[root] * ... * frame[parent] * frame[j] for
// every joint, following mesh parent links.
func composeParents(mesh *model.Mesh, joints []mgl32.Mat4) []mgl32.Mat4 {
	out := make([]mgl32.Mat4, len(joints))
	done := make([]bool, len(joints))

	var resolve func(j int, depth int) mgl32.Mat4
	resolve = func(j int, depth int) mgl32.Mat4 {
		if done[j] {
			return out[j]
		}
		m := joints[j]
		if p := mesh.Bones[j].Parent; p != model.NoBone && int(p) < len(joints) && depth < len(joints) {
			m = resolve(int(p), depth+1).Mul4(m)
		}
		out[j], done[j] = m, true
		return m
	}
	for j := range joints {
		resolve(j, 0)
	}
	return out
}
