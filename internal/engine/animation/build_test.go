package animation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/animviewer/pkg/formats"
	"github.com/Faultbox/animviewer/pkg/formats/fbxtest"
	"github.com/Faultbox/animviewer/pkg/math"
)

func TestBuildANM(t *testing.T) {
	src := &formats.ANM{Name: "wave", DurationMs: 400}
	for f := 0; f < 4; f++ {
		src.Frames = append(src.Frames, formats.ANMFrame{
			TimeMs: uint32(f * 100),
			Joints: [][12]float32{{1, 0, 0, 0, 1, 0, 0, 0, 1, float32(f), 0, 0}},
		})
	}

	anm, err := formats.ParseANM(formats.EncodeANM(src))
	if err != nil {
		t.Fatalf("ParseANM failed: %v", err)
	}
	a, err := BuildANM(anm)
	if err != nil {
		t.Fatalf("BuildANM failed: %v", err)
	}

	if a.Name != "wave" || a.FrameCount != 4 || a.Relative || !a.IndexAligned() {
		t.Errorf("unexpected animation header %+v", a)
	}
	if a.Duration != 400*time.Millisecond || a.FrameRate != 10 {
		t.Errorf("expected 400ms at 10fps, got %v at %v", a.Duration, a.FrameRate)
	}
	if a.Frames[3].Time != 300*time.Millisecond {
		t.Errorf("expected frame 3 at 300ms, got %v", a.Frames[3].Time)
	}
	if got := math.Translation(a.Frames[3].Joints[0]); got != (mgl32.Vec3{3, 0, 0}) {
		t.Errorf("unexpected joint translation %v", got)
	}

	if _, err := BuildANM(&formats.ANM{}); !errors.Is(err, ErrEmptyAnimation) {
		t.Errorf("expected ErrEmptyAnimation, got %v", err)
	}
}

const walkBVH = `HIERARCHY
ROOT Hips
{
	OFFSET 0 0 0
	CHANNELS 6 Xposition Yposition Zposition Zrotation Xrotation Yrotation
	JOINT Spine
	{
		OFFSET 0 5 0
		CHANNELS 3 Zrotation Xrotation Yrotation
		End Site
		{
			OFFSET 0 3 0
		}
	}
	JOINT Leg
	{
		OFFSET 1 -4 0
		CHANNELS 3 Zrotation Xrotation Yrotation
	}
}
MOTION
Frames: 2
Frame Time: 0.04
0 0 0 0 0 0  10 0 0  0 0 0
1 2 3 0 0 90  20 0 0  0 45 0
`

func TestBuildBVH(t *testing.T) {
	bvh, err := formats.ParseBVH([]byte(walkBVH))
	if err != nil {
		t.Fatalf("ParseBVH failed: %v", err)
	}
	a, err := BuildBVH(bvh)
	if err != nil {
		t.Fatalf("BuildBVH failed: %v", err)
	}

	if got := strings.Join(a.JointNames, ","); got != "Hips,Spine,Leg" {
		t.Errorf("expected end sites dropped, got %s", got)
	}
	if !a.Relative || a.FrameCount != 2 || a.JointCount() != 3 {
		t.Errorf("unexpected animation header %+v", a)
	}
	if a.Frames[1].Time != 40*time.Millisecond || a.Duration != 80*time.Millisecond {
		t.Errorf("unexpected timing: frame 1 at %v, duration %v", a.Frames[1].Time, a.Duration)
	}
	if a.FrameRate < 24.99 || a.FrameRate > 25.01 {
		t.Errorf("expected 25fps, got %v", a.FrameRate)
	}

	// Root translation channels are not applied.
	if !math.ApproxEqual(a.Frames[1].Joints[0], math.RotateAxis(math.AxisY, 90)) {
		t.Errorf("unexpected root matrix %v", a.Frames[1].Joints[0])
	}
	want := mgl32.Translate3D(0, 5, 0).Mul4(math.RotateAxis(math.AxisZ, 20))
	if !math.ApproxEqual(a.Frames[1].Joints[1], want) {
		t.Errorf("unexpected spine matrix %v", a.Frames[1].Joints[1])
	}
	want = mgl32.Translate3D(1, -4, 0).Mul4(math.RotateAxis(math.AxisY, 45))
	if !math.ApproxEqual(a.Frames[1].Joints[2], want) {
		t.Errorf("unexpected leg matrix %v", a.Frames[1].Joints[2])
	}
}

func TestBuildMotionCapture(t *testing.T) {
	mc, err := BuildMotionCapture(&formats.MotionCapture{
		Name: "jump", FrameRate: 60, PointCount: 2, FrameCount: 2,
		Points: [][3]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {10, 11, 12}},
	})
	if err != nil {
		t.Fatalf("BuildMotionCapture failed: %v", err)
	}
	if mc.FrameCount() != 2 || mc.FrameRate != 60 {
		t.Errorf("unexpected header %+v", mc)
	}
	if got := mc.Frame(1)[0]; got != (mgl32.Vec3{7, 9, 8}) {
		t.Errorf("expected Y and Z swapped, got %v", got)
	}
	if mc.Frame(2) != nil {
		t.Error("expected nil for a frame past the end")
	}

	if _, err := BuildMotionCapture(&formats.MotionCapture{}); !errors.Is(err, ErrNoPoints) {
		t.Errorf("expected ErrNoPoints, got %v", err)
	}
}

func fbxScene(t *testing.T, nodes ...*fbxtest.Node) *formats.FBXScene {
	t.Helper()
	scene, err := formats.ParseFBXSceneFile(fbxtest.WriteFile(t, nodes...))
	if err != nil {
		t.Fatalf("ParseFBXSceneFile failed: %v", err)
	}
	return scene
}

func fbxAnimatedScene(t *testing.T, withCurves bool) *formats.FBXScene {
	model := func(id int64, name string, y float64) *fbxtest.Node {
		return fbxtest.N("Model", id, name+"\x00\x01Model", "LimbNode").With(
			fbxtest.N("Properties70").With(
				fbxtest.N("P", "Lcl Translation", "Lcl Translation", "", "A", 0.0, y, 0.0),
			),
		)
	}
	second := int64(formats.FBXTicksPerSecond)

	objects := fbxtest.N("Objects").With(
		model(1, "Hips", 1),
		model(2, "Spine", 2),
		fbxtest.N("AnimationStack", int64(100), "Take\x00\x01AnimStack", ""),
		fbxtest.N("AnimationLayer", int64(101), "Base\x00\x01AnimLayer", ""),
		fbxtest.N("AnimationCurveNode", int64(102), "T\x00\x01AnimCurveNode", ""),
	)
	conns := fbxtest.N("Connections").With(
		fbxtest.N("C", "OO", int64(1), int64(0)),
		fbxtest.N("C", "OO", int64(2), int64(1)),
		fbxtest.N("C", "OO", int64(101), int64(100)),
		fbxtest.N("C", "OO", int64(102), int64(101)),
		fbxtest.N("C", "OP", int64(102), int64(2), "Lcl Translation"),
	)
	if withCurves {
		objects.Children = append(objects.Children,
			fbxtest.N("AnimationCurve", int64(103), "\x00\x01AnimCurve", "").With(
				fbxtest.N("KeyTime", []int64{0, second / 2, second}),
				fbxtest.N("KeyValueFloat", []float64{0, 4, 10}),
			),
			fbxtest.N("AnimationCurve", int64(104), "\x00\x01AnimCurve", "").With(
				fbxtest.N("KeyTime", []int64{0}),
				fbxtest.N("KeyValueFloat", []float64{2}),
			),
		)
		conns.Children = append(conns.Children,
			fbxtest.N("C", "OP", int64(103), int64(102), "d|X"),
			fbxtest.N("C", "OP", int64(104), int64(102), "d|Y"),
		)
	}
	return fbxScene(t, objects, conns)
}

func TestBuildFBX(t *testing.T) {
	anims, err := BuildFBX(fbxAnimatedScene(t, true))
	if err != nil {
		t.Fatalf("BuildFBX failed: %v", err)
	}
	if len(anims) != 1 {
		t.Fatalf("expected 1 animation, got %d", len(anims))
	}
	a := anims[0]

	if a.Name != "Take" || a.FrameCount != 3 || a.Relative {
		t.Errorf("unexpected animation header %+v", a)
	}
	if got := strings.Join(a.JointNames, ","); got != "Hips,Spine" {
		t.Errorf("unexpected joint names %s", got)
	}
	if a.Duration != time.Second || a.Frames[1].Time != 500*time.Millisecond {
		t.Errorf("unexpected timing: duration %v, frame 1 at %v", a.Duration, a.Frames[1].Time)
	}

	// Spine is absolute: hips at y=1 plus the held y=2 key and the keyed x.
	for f, wantX := range []float32{0, 4, 10} {
		got := math.Translation(a.Frames[f].Joints[1])
		if !got.ApproxEqualThreshold(mgl32.Vec3{wantX, 3, 0}, 1e-4) {
			t.Errorf("frame %d: expected spine at [%v 3 0], got %v", f, wantX, got)
		}
		if hips := math.Translation(a.Frames[f].Joints[0]); hips != (mgl32.Vec3{0, 1, 0}) {
			t.Errorf("frame %d: static hips moved to %v", f, hips)
		}
	}
}

func TestBuildFBX_Errors(t *testing.T) {
	if _, err := BuildFBX(fbxAnimatedScene(t, false)); !errors.Is(err, ErrEmptyAnimation) {
		t.Errorf("expected ErrEmptyAnimation for keyless stacks, got %v", err)
	}
	empty := fbxScene(t)
	if _, err := BuildFBX(empty); !errors.Is(err, ErrNoSkeleton) {
		t.Errorf("expected ErrNoSkeleton, got %v", err)
	}
}

func TestEvalCurve(t *testing.T) {
	c := &formats.FBXAnimationCurve{Default: 7, KeyTime: []int64{10, 20}, KeyValue: []float64{1, 3}}
	tests := []struct {
		tick int64
		want float64
	}{
		{0, 1},
		{10, 1},
		{15, 2},
		{20, 3},
		{99, 3},
	}
	for _, tt := range tests {
		if got := evalCurve(c, tt.tick); got != tt.want {
			t.Errorf("evalCurve(%d) = %v, want %v", tt.tick, got, tt.want)
		}
	}
	if got := evalCurve(&formats.FBXAnimationCurve{Default: 7}, 5); got != 7 {
		t.Errorf("expected default for keyless curve, got %v", got)
	}
}
