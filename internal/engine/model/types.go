// Package model builds skinned meshes with their bone hierarchies from the
// parsed file formats.
package model

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// NoBone marks an absent parent, first child or right sibling.
const NoBone = ^uint32(0)

// Builder errors.
var (
	ErrNoMeshes          = errors.New("file contains no meshes")
	ErrInvalidHierarchy  = errors.New("invalid bone hierarchy")
	ErrGroupTableDesync  = errors.New("vertex group table does not match vertex count")
	ErrInvalidBoneIndex  = errors.New("vertex references a missing bone")
	ErrIndexOutOfRange   = errors.New("triangle index out of range")
	ErrTooManyVertices   = errors.New("mesh exceeds 65535 vertices")
	ErrMalformedGeometry = errors.New("malformed geometry")
)

// Bone is a skeleton node. Position and Orientation are relative to the
// parent bone.
type Bone struct {
	Name         string
	Parent       uint32
	FirstChild   uint32
	RightSibling uint32
	Position     mgl32.Vec3
	Orientation  mgl32.Mat3
}

// Vertex is a skinned vertex. Position and Normal are in the space of the
// bone named by BoneID. A non-zero BlendWeight blends BoneID with BlendBoneID.
type Vertex struct {
	Position    mgl32.Vec3
	Normal      mgl32.Vec3
	TexCoord    mgl32.Vec2
	BoneID      uint16
	BlendBoneID uint16
	BlendWeight float32
}

// Bounds holds the axis-aligned bounding box of a mesh in bind pose.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Mesh is a skinned triangle mesh with its own skeleton. It is immutable
// once built.
type Mesh struct {
	Name          string
	Bones         []Bone
	Vertices      []Vertex
	Indices       []uint16
	DefaultMatrix *mgl32.Mat4 // object-to-world pose baked into the source file
	Bounds        Bounds

	// BoneIndex maps non-empty bone names to their index in Bones.
	BoneIndex map[string]int
}

// indexBones rebuilds the name lookup table. The first bone with a given
// name wins.
func (m *Mesh) indexBones() {
	m.BoneIndex = make(map[string]int, len(m.Bones))
	for i, b := range m.Bones {
		if b.Name == "" {
			continue
		}
		if _, dup := m.BoneIndex[b.Name]; !dup {
			m.BoneIndex[b.Name] = i
		}
	}
}

// Roots returns the indices of bones without a parent.
func (m *Mesh) Roots() []int {
	var roots []int
	for i, b := range m.Bones {
		if b.Parent == NoBone {
			roots = append(roots, i)
		}
	}
	return roots
}

// Children returns the child indices of bone i by following the
// first-child / right-sibling chain. The walk stops after len(Bones) steps
// so a corrupt chain cannot loop forever.
func (m *Mesh) Children(i int) []int {
	var out []int
	c := m.Bones[i].FirstChild
	for steps := 0; c != NoBone && int(c) < len(m.Bones) && steps < len(m.Bones); steps++ {
		out = append(out, int(c))
		c = m.Bones[c].RightSibling
	}
	return out
}

// TriangleCount returns the number of triangles in the index buffer.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}
