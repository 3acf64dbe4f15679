package model

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/animviewer/pkg/math"
)

// Validate checks that the parent / first-child / right-sibling links form a
// forest: every link is in range, parent chains end at a root, and walking
// each bone's child chain reaches every non-root bone exactly once with a
// matching Parent.
func (m *Mesh) Validate() error {
	n := uint32(len(m.Bones))
	for i, b := range m.Bones {
		for _, link := range [3]uint32{b.Parent, b.FirstChild, b.RightSibling} {
			if link != NoBone && link >= n {
				return fmt.Errorf("%w: bone %d links to %d of %d", ErrInvalidHierarchy, i, link, n)
			}
		}
		if b.Parent == uint32(i) {
			return fmt.Errorf("%w: bone %d is its own parent", ErrInvalidHierarchy, i)
		}
	}

	// Parent chains must terminate.
	for i := range m.Bones {
		p := m.Bones[i].Parent
		for steps := uint32(0); p != NoBone; steps++ {
			if steps >= n {
				return fmt.Errorf("%w: parent cycle through bone %d", ErrInvalidHierarchy, i)
			}
			p = m.Bones[p].Parent
		}
	}

	claimed := make([]bool, n)
	for p := range m.Bones {
		c := m.Bones[p].FirstChild
		for c != NoBone {
			if claimed[c] {
				return fmt.Errorf("%w: bone %d reached twice", ErrInvalidHierarchy, c)
			}
			if m.Bones[c].Parent != uint32(p) {
				return fmt.Errorf("%w: bone %d listed under %d but its parent is %d", ErrInvalidHierarchy, c, p, m.Bones[c].Parent)
			}
			claimed[c] = true
			c = m.Bones[c].RightSibling
		}
	}
	for i, b := range m.Bones {
		if b.Parent != NoBone && !claimed[i] {
			return fmt.Errorf("%w: bone %d missing from the child list of %d", ErrInvalidHierarchy, i, b.Parent)
		}
	}
	return nil
}

// LinkSiblings rebuilds FirstChild and RightSibling from the Parent links.
// Children keep their relative order in bones.
func LinkSiblings(bones []Bone) {
	last := make([]uint32, len(bones))
	for i := range bones {
		bones[i].FirstChild = NoBone
		bones[i].RightSibling = NoBone
		last[i] = NoBone
	}
	for i := range bones {
		p := bones[i].Parent
		if p == NoBone || int(p) >= len(bones) {
			continue
		}
		if last[p] == NoBone {
			bones[p].FirstChild = uint32(i)
		} else {
			bones[last[p]].RightSibling = uint32(i)
		}
		last[p] = uint32(i)
	}
}

// LocalMatrix returns T(Position) * R(Orientation) for a bone.
func (b *Bone) LocalMatrix() mgl32.Mat4 {
	return math.FromMat3Translation(b.Orientation, b.Position)
}

// BindPose returns the absolute bind-pose matrix of every bone, composing
// local matrices down from the roots. Parents may appear after their
// children in Bones.
func BindPose(m *Mesh) []mgl32.Mat4 {
	out := make([]mgl32.Mat4, len(m.Bones))
	done := make([]bool, len(m.Bones))

	var resolve func(i int, depth int) mgl32.Mat4
	resolve = func(i int, depth int) mgl32.Mat4 {
		if done[i] {
			return out[i]
		}
		local := m.Bones[i].LocalMatrix()
		p := m.Bones[i].Parent
		if p != NoBone && int(p) < len(m.Bones) && depth < len(m.Bones) {
			local = resolve(int(p), depth+1).Mul4(local)
		}
		out[i], done[i] = local, true
		return local
	}

	for i := range m.Bones {
		resolve(i, 0)
	}
	return out
}

// ComputeBounds returns the bounding box of the vertices in bind pose.
func ComputeBounds(m *Mesh, bind []mgl32.Mat4) Bounds {
	if len(m.Vertices) == 0 {
		return Bounds{}
	}
	b := Bounds{
		Min: mgl32.Vec3{1e10, 1e10, 1e10},
		Max: mgl32.Vec3{-1e10, -1e10, -1e10},
	}
	for _, v := range m.Vertices {
		p := v.Position
		if int(v.BoneID) < len(bind) {
			p = mgl32.TransformCoordinate(p, bind[v.BoneID])
		}
		updateBounds(&b, p)
	}
	return b
}
