package model

import (
	"fmt"
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/animviewer/pkg/formats"
)

// BuildL3D creates a mesh from the first mesh of an L3D file.
//
// Each primitive's vertices are bound positionally: its vertex groups cover
// the leading vertices in order, and the blend table, when present, covers
// the trailing ones. Triangle indices are primitive-local and are offset by
// the vertex count of all preceding primitives.
func BuildL3D(l3d *formats.L3D) (*Mesh, error) {
	if len(l3d.Meshes) == 0 {
		return nil, ErrNoMeshes
	}
	src := &l3d.Meshes[0]

	mesh := &Mesh{Bones: make([]Bone, len(src.Bones))}
	for i, b := range src.Bones {
		mesh.Bones[i] = Bone{
			Parent:       b.Parent,
			FirstChild:   b.FirstChild,
			RightSibling: b.RightSibling,
			Position:     mgl32.Vec3(b.Position),
			Orientation:  mgl32.Mat3(b.Orientation),
		}
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	mesh.indexBones()

	for pi := range src.Primitives {
		prim := &src.Primitives[pi]
		offset := len(mesh.Vertices)
		if offset+len(prim.Vertices) > gomath.MaxUint16+1 {
			return nil, ErrTooManyVertices
		}

		bones, err := bindPrimitive(prim, len(mesh.Bones))
		if err != nil {
			return nil, fmt.Errorf("primitive %d: %w", pi, err)
		}
		for vi, v := range prim.Vertices {
			vert := bones[vi]
			vert.Position = mgl32.Vec3(v.Position)
			vert.Normal = mgl32.Vec3(v.Normal)
			vert.TexCoord = mgl32.Vec2(v.TexCoord)
			mesh.Vertices = append(mesh.Vertices, vert)
		}

		for _, tri := range prim.Triangles {
			for _, idx := range tri {
				if int(idx) >= len(prim.Vertices) {
					return nil, fmt.Errorf("primitive %d: %w: %d of %d vertices", pi, ErrIndexOutOfRange, idx, len(prim.Vertices))
				}
				mesh.Indices = append(mesh.Indices, uint16(offset+int(idx)))
			}
		}
	}

	if l3d.DefaultMatrix != nil {
		m := mgl32.Mat4(*l3d.DefaultMatrix)
		mesh.DefaultMatrix = &m
	}
	mesh.Bounds = ComputeBounds(mesh, BindPose(mesh))

	return mesh, nil
}

// bindPrimitive assigns a bone to every vertex of a primitive. Only the bone
// fields of the returned vertices are set.
func bindPrimitive(prim *formats.L3DPrimitive, boneCount int) ([]Vertex, error) {
	out := make([]Vertex, len(prim.Vertices))
	if len(prim.Groups) == 0 && len(prim.Blends) == 0 {
		return out, nil
	}

	grouped := len(prim.Vertices) - len(prim.Blends)
	if grouped < 0 {
		return nil, fmt.Errorf("%w: %d blends for %d vertices", ErrGroupTableDesync, len(prim.Blends), len(prim.Vertices))
	}

	checkBone := func(b uint16) error {
		if int(b) >= boneCount && !(boneCount == 0 && b == 0) {
			return fmt.Errorf("%w: bone %d of %d", ErrInvalidBoneIndex, b, boneCount)
		}
		return nil
	}

	// Two cursors: v walks the vertex stream, g walks the group table, and
	// remaining counts the vertices left in group g.
	g, remaining := -1, 0
	for v := 0; v < grouped; v++ {
		for remaining == 0 {
			g++
			if g >= len(prim.Groups) {
				return nil, fmt.Errorf("%w: groups end at vertex %d of %d", ErrGroupTableDesync, v, grouped)
			}
			remaining = int(prim.Groups[g].VertexCount)
		}
		bone := prim.Groups[g].BoneIndex
		if err := checkBone(bone); err != nil {
			return nil, err
		}
		out[v].BoneID = bone
		remaining--
	}
	if remaining != 0 {
		return nil, fmt.Errorf("%w: group %d has %d vertices left over", ErrGroupTableDesync, g, remaining)
	}
	for g++; g < len(prim.Groups); g++ {
		if prim.Groups[g].VertexCount != 0 {
			return nil, fmt.Errorf("%w: group %d covers vertices past the end", ErrGroupTableDesync, g)
		}
	}

	for i, b := range prim.Blends {
		for _, bone := range b.Indices {
			if err := checkBone(bone); err != nil {
				return nil, err
			}
		}
		v := &out[grouped+i]
		v.BoneID, v.BlendBoneID, v.BlendWeight = b.Indices[0], b.Indices[1], b.Weight
	}
	return out, nil
}
