package animation

import (
	gomath "math"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/animviewer/internal/engine/model"
	"github.com/Faultbox/animviewer/pkg/formats"
)

// fbxChannel holds the curves driving one transform property of a model.
type fbxChannel struct {
	curves [3]*formats.FBXAnimationCurve
	value  [3]float64 // used for axes without a curve
}

// fbxTrack is the animated state of one model.
type fbxTrack struct {
	translation, rotation, scaling *fbxChannel
}

var fbxChannelProps = map[string]int{
	"Lcl Translation": 0,
	"Lcl Rotation":    1,
	"Lcl Scaling":     2,
}

// BuildFBX converts every animation stack of an FBX scene. Joints follow the
// skeleton order of model.BuildFBXSkeleton and hold absolute matrices.
// Stacks without keys are skipped.
func BuildFBX(scene *formats.FBXScene) ([]*Animation, error) {
	sk := model.BuildFBXSkeleton(scene)
	if len(sk.Bones) == 0 {
		return nil, ErrNoSkeleton
	}

	names := make([]string, len(sk.Bones))
	for i, b := range sk.Bones {
		names[i] = b.Name
	}

	var out []*Animation
	for _, stack := range scene.Stacks {
		tracks := fbxStackTracks(scene, stack.ID)
		times := fbxKeyTimes(tracks)
		if len(times) == 0 {
			continue
		}

		a := &Animation{
			Name:       stack.Name,
			FrameCount: len(times),
			JointNames: names,
			Frames:     make([]Frame, len(times)),
		}
		start := times[0]
		for f, tick := range times {
			world := make(map[int64]mgl32.Mat4)
			frame := Frame{
				Time:   fbxDuration(tick - start),
				Joints: make([]mgl32.Mat4, len(sk.Models)),
			}
			for j, id := range sk.Models {
				frame.Joints[j] = fbxAbsolute(scene, tracks, world, id, tick)
			}
			a.Frames[f] = frame
		}

		a.Duration = a.Frames[len(a.Frames)-1].Time
		if stack.LocalStop > start {
			a.Duration = fbxDuration(stack.LocalStop - start)
		}
		a.FrameRate = frameRate(a.FrameCount, a.Duration)
		out = append(out, a)
	}

	if len(out) == 0 {
		return nil, ErrEmptyAnimation
	}
	return out, nil
}

func fbxDuration(ticks int64) time.Duration {
	return time.Duration(gomath.Round(float64(ticks) / formats.FBXTicksPerSecond * float64(time.Second)))
}

// fbxStackTracks gathers the animated channels of every model under a stack:
// stack -> layers -> curve nodes -> (model property, curves).
func fbxStackTracks(scene *formats.FBXScene, stackID int64) map[int64]*fbxTrack {
	layers := make(map[int64]bool, len(scene.Layers))
	for _, l := range scene.Layers {
		layers[l.ID] = true
	}

	tracks := make(map[int64]*fbxTrack)
	for _, lc := range scene.ChildrenOf(stackID) {
		if !layers[lc.Child] {
			continue
		}
		for _, nc := range scene.ChildrenOf(lc.Child) {
			cn, ok := scene.CurveNode(nc.Child)
			if !ok {
				continue
			}
			for _, pc := range scene.ParentsOf(cn.ID) {
				prop, ok := fbxChannelProps[pc.Property]
				if pc.Kind != "OP" || !ok {
					continue
				}
				if _, ok := scene.Model(pc.Parent); !ok {
					continue
				}
				t := tracks[pc.Parent]
				if t == nil {
					t = &fbxTrack{}
					tracks[pc.Parent] = t
				}
				ch := fbxCurveNodeChannel(scene, cn)
				switch prop {
				case 0:
					t.translation = ch
				case 1:
					t.rotation = ch
				case 2:
					t.scaling = ch
				}
			}
		}
	}
	return tracks
}

func fbxCurveNodeChannel(scene *formats.FBXScene, cn *formats.FBXAnimationCurveNode) *fbxChannel {
	ch := &fbxChannel{value: cn.Default}
	for _, cc := range scene.ChildrenOf(cn.ID) {
		if cc.Kind != "OP" {
			continue
		}
		c, ok := scene.Curve(cc.Child)
		if !ok {
			continue
		}
		switch cc.Property {
		case "d|X":
			ch.curves[0] = c
		case "d|Y":
			ch.curves[1] = c
		case "d|Z":
			ch.curves[2] = c
		}
	}
	return ch
}

// fbxKeyTimes returns the key times of the curve with the most keys.
func fbxKeyTimes(tracks map[int64]*fbxTrack) []int64 {
	var longest []int64
	for _, t := range tracks {
		for _, ch := range [3]*fbxChannel{t.translation, t.rotation, t.scaling} {
			if ch == nil {
				continue
			}
			for _, c := range ch.curves {
				if c != nil && len(c.KeyTime) > len(longest) {
					longest = c.KeyTime
				}
			}
		}
	}
	return longest
}

// sample evaluates a channel at tick. A missing channel yields the model's
// static value; an axis without a curve yields the curve node default.
func (ch *fbxChannel) sample(tick int64, static [3]float64) mgl32.Vec3 {
	if ch == nil {
		return mgl32.Vec3{float32(static[0]), float32(static[1]), float32(static[2])}
	}
	var v mgl32.Vec3
	for i, c := range ch.curves {
		if c == nil {
			v[i] = float32(ch.value[i])
			continue
		}
		v[i] = float32(evalCurve(c, tick))
	}
	return v
}

// evalCurve interpolates linearly between keys and clamps outside the keyed
// range.
func evalCurve(c *formats.FBXAnimationCurve, tick int64) float64 {
	n := min(len(c.KeyTime), len(c.KeyValue))
	switch {
	case n == 0:
		return c.Default
	case n == 1 || tick <= c.KeyTime[0]:
		return c.KeyValue[0]
	case tick >= c.KeyTime[n-1]:
		return c.KeyValue[n-1]
	}
	i := sort.Search(n, func(i int) bool { return c.KeyTime[i] >= tick })
	if c.KeyTime[i] == tick {
		return c.KeyValue[i]
	}
	t0, t1 := c.KeyTime[i-1], c.KeyTime[i]
	f := float64(tick-t0) / float64(t1-t0)
	return c.KeyValue[i-1] + f*(c.KeyValue[i]-c.KeyValue[i-1])
}

func fbxLocal(m *formats.FBXModel, t *fbxTrack, tick int64) mgl32.Mat4 {
	if t == nil {
		return model.FBXModelMatrix(m)
	}
	pre := mgl32.Vec3{float32(m.PreRotation[0]), float32(m.PreRotation[1]), float32(m.PreRotation[2])}
	return model.FBXLocalMatrix(
		t.translation.sample(tick, m.Translation),
		t.rotation.sample(tick, m.Rotation),
		pre,
		t.scaling.sample(tick, m.Scaling),
	)
}

// fbxAbsolute composes a model's animated local transform with its parents,
// memoized in world for the current frame.
func fbxAbsolute(scene *formats.FBXScene, tracks map[int64]*fbxTrack, world map[int64]mgl32.Mat4, id int64, tick int64) mgl32.Mat4 {
	if w, ok := world[id]; ok {
		return w
	}
	m, ok := scene.Model(id)
	if !ok {
		return mgl32.Ident4()
	}
	// Seed before recursing so a connection cycle terminates.
	world[id] = mgl32.Ident4()
	w := fbxLocal(m, tracks[id], tick)
	if p, ok := scene.ParentModel(id); ok {
		w = fbxAbsolute(scene, tracks, world, p.ID, tick).Mul4(w)
	}
	world[id] = w
	return w
}
