// L3D format parser for skinned, bone-hierarchy meshes.
package formats

import (
	"errors"
	"fmt"
	"os"
)

// L3D format errors.
var (
	ErrInvalidL3DMagic  = errors.New("invalid L3D magic: expected 'L3D'")
	ErrTruncatedL3DData = errors.New("truncated L3D data")
	ErrInvalidL3DCount  = errors.New("invalid L3D element count")
)

// L3D header flags.
const (
	L3DFlagHasDefaultMatrix uint32 = 0x1000
)

// L3DNoBone marks an absent parent, child or sibling link.
const L3DNoBone = ^uint32(0)

// On-disk record sizes.
const (
	L3DHeaderSize    = 32
	L3DMeshSize      = 20
	L3DBoneSize      = 60
	L3DPrimitiveSize = 36
	L3DVertexSize    = 32
	L3DTriangleSize  = 6
	L3DGroupSize     = 4
	L3DBlendSize     = 8
)

// L3DHeader is the fixed file header.
type L3DHeader struct {
	Magic               [4]byte
	Flags               uint32
	Size                uint32
	MeshCount           uint32
	MeshListOffset      uint32
	SkinCount           uint32
	SkinListOffset      uint32
	DefaultMatrixOffset uint32
}

// L3DBone is a skeleton node. Orientation is column-major and relative to
// the parent bone.
type L3DBone struct {
	Parent       uint32
	FirstChild   uint32
	RightSibling uint32
	Orientation  [9]float32
	Position     [3]float32
}

// L3DVertex is a primitive vertex.
type L3DVertex struct {
	Position [3]float32
	TexCoord [2]float32
	Normal   [3]float32
}

// L3DVertexGroup binds the next VertexCount vertices of a primitive to one bone.
type L3DVertexGroup struct {
	VertexCount uint16
	BoneIndex   uint16
}

// L3DVertexBlend blends a vertex between two bones.
type L3DVertexBlend struct {
	Indices [2]uint16
	Weight  float32
}

// L3DPrimitive is one material group of a mesh. Triangle indices are local
// to the primitive's own vertex list.
type L3DPrimitive struct {
	MaterialIndex uint32
	Vertices      []L3DVertex
	Triangles     [][3]uint16
	Groups        []L3DVertexGroup
	Blends        []L3DVertexBlend
}

// L3DMesh is one level of detail with its own skeleton.
type L3DMesh struct {
	Flags      uint32
	Primitives []L3DPrimitive
	Bones      []L3DBone
}

// L3D represents a parsed L3D file.
type L3D struct {
	Header        L3DHeader
	Meshes        []L3DMesh
	DefaultMatrix *[16]float32 // Present when L3DFlagHasDefaultMatrix is set
}

// ParseL3D parses L3D data from a byte slice.
func ParseL3D(data []byte) (*L3D, error) {
	if len(data) < L3DHeaderSize {
		return nil, ErrTruncatedL3DData
	}
	if string(data[:3]) != L3DMagic {
		return nil, ErrInvalidL3DMagic
	}

	r := newReader(data)
	l3d := &L3D{}
	h := &l3d.Header
	copy(h.Magic[:], r.take(4))
	h.Flags = r.u32()
	h.Size = r.u32()
	h.MeshCount = r.u32()
	h.MeshListOffset = r.u32()
	h.SkinCount = r.u32()
	h.SkinListOffset = r.u32()
	h.DefaultMatrixOffset = r.u32()

	if int(h.MeshCount) > len(data)/4 {
		return nil, fmt.Errorf("%w: %d meshes", ErrInvalidL3DCount, h.MeshCount)
	}

	if h.Flags&L3DFlagHasDefaultMatrix != 0 {
		r.seek(int(h.DefaultMatrixOffset))
		var m [16]float32
		for i := range m {
			m[i] = r.f32()
		}
		if r.short {
			return nil, fmt.Errorf("default matrix: %w", ErrTruncatedL3DData)
		}
		l3d.DefaultMatrix = &m
	}

	meshOffsets := make([]uint32, h.MeshCount)
	r.seek(int(h.MeshListOffset))
	for i := range meshOffsets {
		meshOffsets[i] = r.u32()
	}
	if r.short {
		return nil, fmt.Errorf("mesh list: %w", ErrTruncatedL3DData)
	}

	l3d.Meshes = make([]L3DMesh, 0, len(meshOffsets))
	for i, off := range meshOffsets {
		mesh, err := parseL3DMesh(data, int(off))
		if err != nil {
			return nil, fmt.Errorf("parsing mesh %d: %w", i, err)
		}
		l3d.Meshes = append(l3d.Meshes, *mesh)
	}

	return l3d, nil
}

func parseL3DMesh(data []byte, offset int) (*L3DMesh, error) {
	r := newReader(data)
	r.seek(offset)

	mesh := &L3DMesh{}
	mesh.Flags = r.u32()
	primitiveCount := r.u32()
	primitiveListOffset := r.u32()
	boneCount := r.u32()
	boneOffset := r.u32()
	if r.short {
		return nil, ErrTruncatedL3DData
	}
	if int(primitiveCount) > len(data)/4 || int(boneCount) > len(data)/L3DBoneSize {
		return nil, ErrInvalidL3DCount
	}

	// Bones
	mesh.Bones = make([]L3DBone, boneCount)
	r.seek(int(boneOffset))
	for i := range mesh.Bones {
		b := &mesh.Bones[i]
		b.Parent = r.u32()
		b.FirstChild = r.u32()
		b.RightSibling = r.u32()
		for j := range b.Orientation {
			b.Orientation[j] = r.f32()
		}
		b.Position = r.vec3()
	}
	if r.short {
		return nil, fmt.Errorf("bones: %w", ErrTruncatedL3DData)
	}

	// Primitives
	primOffsets := make([]uint32, primitiveCount)
	r.seek(int(primitiveListOffset))
	for i := range primOffsets {
		primOffsets[i] = r.u32()
	}
	if r.short {
		return nil, fmt.Errorf("primitive list: %w", ErrTruncatedL3DData)
	}

	mesh.Primitives = make([]L3DPrimitive, 0, primitiveCount)
	for i, off := range primOffsets {
		prim, err := parseL3DPrimitive(data, int(off))
		if err != nil {
			return nil, fmt.Errorf("primitive %d: %w", i, err)
		}
		mesh.Primitives = append(mesh.Primitives, *prim)
	}

	return mesh, nil
}

func parseL3DPrimitive(data []byte, offset int) (*L3DPrimitive, error) {
	r := newReader(data)
	r.seek(offset)

	prim := &L3DPrimitive{}
	prim.MaterialIndex = r.u32()
	vertexCount, verticesOffset := r.u32(), r.u32()
	triangleCount, trianglesOffset := r.u32(), r.u32()
	groupCount, groupsOffset := r.u32(), r.u32()
	blendCount, blendsOffset := r.u32(), r.u32()
	if r.short {
		return nil, ErrTruncatedL3DData
	}
	if int(vertexCount) > len(data)/L3DVertexSize ||
		int(triangleCount) > len(data)/L3DTriangleSize ||
		int(groupCount) > len(data)/L3DGroupSize ||
		int(blendCount) > len(data)/L3DBlendSize {
		return nil, ErrInvalidL3DCount
	}

	prim.Vertices = make([]L3DVertex, vertexCount)
	r.seek(int(verticesOffset))
	for i := range prim.Vertices {
		v := &prim.Vertices[i]
		v.Position = r.vec3()
		v.TexCoord = [2]float32{r.f32(), r.f32()}
		v.Normal = r.vec3()
	}

	prim.Triangles = make([][3]uint16, triangleCount)
	r.seek(int(trianglesOffset))
	for i := range prim.Triangles {
		prim.Triangles[i] = [3]uint16{r.u16(), r.u16(), r.u16()}
	}

	prim.Groups = make([]L3DVertexGroup, groupCount)
	r.seek(int(groupsOffset))
	for i := range prim.Groups {
		prim.Groups[i] = L3DVertexGroup{VertexCount: r.u16(), BoneIndex: r.u16()}
	}

	if blendCount > 0 {
		prim.Blends = make([]L3DVertexBlend, blendCount)
		r.seek(int(blendsOffset))
		for i := range prim.Blends {
			b := &prim.Blends[i]
			b.Indices = [2]uint16{r.u16(), r.u16()}
			b.Weight = r.f32()
		}
	}

	if r.short {
		return nil, ErrTruncatedL3DData
	}
	return prim, nil
}

// ParseL3DFile parses an L3D file from disk.
func ParseL3DFile(path string) (*L3D, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading L3D file: %w", err)
	}
	return ParseL3D(data)
}

// IsSkinned reports whether the mesh carries a skeleton.
func (m *L3DMesh) IsSkinned() bool {
	return len(m.Bones) > 0
}

// GetTotalVertexCount returns the number of vertices across all primitives.
func (m *L3DMesh) GetTotalVertexCount() int {
	total := 0
	for i := range m.Primitives {
		total += len(m.Primitives[i].Vertices)
	}
	return total
}

// GetTotalTriangleCount returns the number of triangles across all primitives.
func (m *L3DMesh) GetTotalTriangleCount() int {
	total := 0
	for i := range m.Primitives {
		total += len(m.Primitives[i].Triangles)
	}
	return total
}
