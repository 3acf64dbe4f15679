package animation

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/animviewer/internal/engine/model"
	"github.com/Faultbox/animviewer/pkg/math"
)

// testMesh builds a mesh from parent links and bone names.
func testMesh(parents []uint32, names ...string) *model.Mesh {
	bones := make([]model.Bone, len(parents))
	index := make(map[string]int)
	for i, p := range parents {
		bones[i] = model.Bone{Parent: p, Orientation: mgl32.Ident3(), Position: mgl32.Vec3{0, float32(i + 1), 0}}
		if i < len(names) {
			bones[i].Name = names[i]
			index[names[i]] = i
		}
	}
	model.LinkSiblings(bones)
	return &model.Mesh{Bones: bones, BoneIndex: index}
}

// translations builds an animation whose joint j in frame f is T(f, j, 0).
func translations(frames, joints int, names ...string) *Animation {
	a := &Animation{FrameCount: frames, FrameRate: 10, JointNames: names, Frames: make([]Frame, frames)}
	for f := range a.Frames {
		a.Frames[f].Time = time.Duration(f) * 100 * time.Millisecond
		for j := 0; j < joints; j++ {
			a.Frames[f].Joints = append(a.Frames[f].Joints, mgl32.Translate3D(float32(f), float32(j), 0))
		}
	}
	a.Duration = time.Duration(frames) * 100 * time.Millisecond
	return a
}

func TestRetarget_FlatSkeletonKeepsFrames(t *testing.T) {
	mesh := testMesh([]uint32{model.NoBone, model.NoBone, model.NoBone})
	anim := translations(4, 3)

	p, err := Retarget(mesh, model.BindPose(mesh), anim)
	if err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}
	for f := range anim.Frames {
		for j := range mesh.Bones {
			if p.Transformed[f][j] != anim.Frames[f].Joints[j] {
				t.Errorf("frame %d joint %d changed on a flat skeleton", f, j)
			}
		}
	}
	if p.State != Stopped {
		t.Errorf("expected a stopped playback, got %v", p.State)
	}
}

func TestRetarget_ComposesParents(t *testing.T) {
	mesh := testMesh([]uint32{model.NoBone, 0, 1})
	p, err := Retarget(mesh, model.BindPose(mesh), translations(2, 3))
	if err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}
	// Frame 1: T(1,0,0) * T(1,1,0) * T(1,2,0).
	got := math.Translation(p.Transformed[1][2])
	if got != (mgl32.Vec3{3, 3, 0}) {
		t.Errorf("expected composed translation [3 3 0], got %v", got)
	}
}

func TestRetarget_UnmatchedBonesHoldBindPose(t *testing.T) {
	mesh := testMesh([]uint32{model.NoBone, 0, 1}, "A", "B", "C")
	bind := model.BindPose(mesh)
	anim := translations(5, 2, "A", "C")

	p, err := Retarget(mesh, bind, anim)
	if err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}
	for f := range anim.Frames {
		if p.Transformed[f][1] != bind[1] {
			t.Errorf("frame %d: unmatched bone B moved", f)
		}
		if p.Transformed[f][2] != anim.Frames[f].Joints[1] {
			t.Errorf("frame %d: bone C not driven by joint C", f)
		}
	}
	if !p.Animated[0] || p.Animated[1] || !p.Animated[2] {
		t.Errorf("unexpected animated mask %v", p.Animated)
	}
}

func TestRetarget_Errors(t *testing.T) {
	mesh := testMesh([]uint32{model.NoBone})
	if _, err := Retarget(mesh, model.BindPose(mesh), &Animation{}); err != ErrEmptyAnimation {
		t.Errorf("expected ErrEmptyAnimation, got %v", err)
	}
	if _, err := Retarget(mesh, nil, translations(1, 1)); err == nil {
		t.Error("expected bind pose size error")
	}
}

func playback(t *testing.T, frames int, loop bool) *Playback {
	t.Helper()
	mesh := testMesh([]uint32{model.NoBone})
	p, err := Retarget(mesh, model.BindPose(mesh), translations(frames, 1))
	if err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}
	p.SetLoop(loop)
	p.Play()
	return p
}

func TestPlayback_LoopWraps(t *testing.T) {
	p := playback(t, 10, true)

	p.Advance(950 * time.Millisecond)
	if p.CurrentFrame != 9 {
		t.Fatalf("expected frame 9, got %d", p.CurrentFrame)
	}
	p.Advance(100 * time.Millisecond)
	if p.CurrentFrame != 0 || p.CurrentTime != 0 {
		t.Errorf("expected wrap to frame 0 at time 0, got frame %d at %v", p.CurrentFrame, p.CurrentTime)
	}
	if p.State != Playing {
		t.Errorf("expected playing after wrap, got %v", p.State)
	}
}

func TestPlayback_StopsOnLastFrame(t *testing.T) {
	p := playback(t, 10, false)

	p.Advance(2 * time.Second)
	if p.CurrentFrame != 9 || p.State != Stopped {
		t.Fatalf("expected stopped on frame 9, got frame %d %v", p.CurrentFrame, p.State)
	}
	pose := p.Pose(nil, PoseOptions{})
	if pose[0] != p.Transformed[9][0] {
		t.Errorf("expected the final frame, got %v", pose[0])
	}

	// Further ticks change nothing.
	p.Advance(time.Second)
	if p.CurrentFrame != 9 {
		t.Errorf("stopped playback advanced to %d", p.CurrentFrame)
	}
}

func TestPlayback_Controls(t *testing.T) {
	p := playback(t, 10, true)
	p.Advance(250 * time.Millisecond)

	p.Pause()
	p.Advance(time.Second)
	if p.CurrentFrame != 2 || p.State != Paused {
		t.Errorf("paused playback moved: frame %d %v", p.CurrentFrame, p.State)
	}

	p.Resume()
	p.Advance(100 * time.Millisecond)
	if p.CurrentFrame != 3 {
		t.Errorf("expected frame 3 after resume, got %d", p.CurrentFrame)
	}

	p.Stop()
	if p.CurrentFrame != 0 || p.CurrentTime != 0 || p.State != Stopped {
		t.Errorf("stop did not rewind: %+v", p.Clock)
	}
}

func TestPlayback_PoseBlends(t *testing.T) {
	p := playback(t, 4, true)
	p.Advance(150 * time.Millisecond)

	pose := p.Pose(nil, PoseOptions{})
	got := math.Translation(pose[0])
	if !got.ApproxEqualThreshold(mgl32.Vec3{1.5, 0, 0}, 1e-5) {
		t.Errorf("expected halfway translation [1.5 0 0], got %v", got)
	}
}

func TestPlayback_RelativeOffset(t *testing.T) {
	mesh := testMesh([]uint32{model.NoBone, model.NoBone}, "A", "B")
	bind := model.BindPose(mesh)
	anim := &Animation{
		FrameCount: 1, FrameRate: 30, Relative: true, JointNames: []string{"B"},
		Frames: []Frame{{Joints: []mgl32.Mat4{mgl32.Ident4()}}},
	}
	p, err := Retarget(mesh, bind, anim)
	if err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}

	pose := p.Pose(bind, PoseOptions{})
	// Bone B binds at y=2; a third of that is added on top.
	if got := math.Translation(pose[1]); !got.ApproxEqualThreshold(mgl32.Vec3{0, 2 + 2.0/3, 0}, 1e-5) {
		t.Errorf("unexpected relative translation %v", got)
	}
	if pose[0] != bind[0] {
		t.Errorf("unanimated bone should keep its bind pose")
	}

	pose = p.Pose(bind, PoseOptions{RelativeOffsetDivisor: 1})
	if got := math.Translation(pose[1]); !got.ApproxEqualThreshold(mgl32.Vec3{0, 4, 0}, 1e-5) {
		t.Errorf("divisor not applied: %v", got)
	}
}

func TestMocapPlayback_Points(t *testing.T) {
	mc := &MotionCapture{FrameRate: 10, PointCount: 2, Points: []mgl32.Vec3{
		{0, 0, 0}, {50, 0, 0},
		{100, 0, 0}, {150, 0, 0},
	}}
	p := NewMocapPlayback([16]byte{1})
	p.Play()
	p.Advance(120*time.Millisecond, mc)

	pts := p.Points(mc)
	if len(pts) != 2 || !pts[1].ApproxEqualThreshold(mgl32.Vec3{3, 0, 0}, 1e-5) {
		t.Errorf("unexpected frame 1 points %v", pts)
	}

	p.Advance(100*time.Millisecond, mc)
	if p.State != Stopped || p.CurrentFrame != 1 {
		t.Errorf("expected stop on last frame, got %d %v", p.CurrentFrame, p.State)
	}
}
