package model

import (
	"fmt"
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/animviewer/pkg/formats"
	"github.com/Faultbox/animviewer/pkg/math"
)

// FBXLocalMatrix composes an FBX node transform from its components:
// T * R(pre) * R(rot) * S, with Euler angles in degrees.
func FBXLocalMatrix(translation, rotation, preRotation, scaling mgl32.Vec3) mgl32.Mat4 {
	return math.TRS(translation, FBXOrientation(rotation, preRotation), scaling)
}

// FBXOrientation returns R(pre) * R(rot) as a 3x3 rotation.
func FBXOrientation(rotation, preRotation mgl32.Vec3) mgl32.Mat3 {
	return math.EulerXYZ(preRotation).Mul3(math.EulerXYZ(rotation))
}

// FBXModelMatrix returns the static local transform of a model.
func FBXModelMatrix(m *formats.FBXModel) mgl32.Mat4 {
	return FBXLocalMatrix(vec3(m.Translation), vec3(m.Rotation), vec3(m.PreRotation), vec3(m.Scaling))
}

// FBXWorldMatrix composes a model's static transform with those of all its
// parent models.
func FBXWorldMatrix(scene *formats.FBXScene, m *formats.FBXModel) mgl32.Mat4 {
	world := FBXModelMatrix(m)
	seen := map[int64]bool{m.ID: true}
	for p, ok := scene.ParentModel(m.ID); ok && !seen[p.ID]; p, ok = scene.ParentModel(p.ID) {
		seen[p.ID] = true
		world = FBXModelMatrix(p).Mul4(world)
	}
	return world
}

func vec3(v [3]float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

// FBXSkeleton is the bone list shared by every mesh of an FBX scene.
type FBXSkeleton struct {
	Bones   []Bone
	Models  []int64       // bone index -> model id
	ByModel map[int64]int // model id -> bone index
}

// BuildFBXSkeleton collects the skeleton models reachable from the scene root
// in depth-first discovery order. A bone's parent is its nearest skeleton
// ancestor; orientation is stored parent-local.
func BuildFBXSkeleton(scene *formats.FBXScene) *FBXSkeleton {
	sk := &FBXSkeleton{ByModel: make(map[int64]int)}
	visited := make(map[int64]bool)

	var walk func(id int64, parent uint32)
	walk = func(id int64, parent uint32) {
		for _, c := range scene.ChildrenOf(id) {
			if c.Kind != "OO" || visited[c.Child] {
				continue
			}
			m, ok := scene.Model(c.Child)
			if !ok {
				continue
			}
			visited[m.ID] = true

			next := parent
			if m.IsSkeleton() {
				next = uint32(len(sk.Bones))
				sk.ByModel[m.ID] = len(sk.Bones)
				sk.Models = append(sk.Models, m.ID)
				sk.Bones = append(sk.Bones, Bone{
					Name:        m.Name,
					Parent:      parent,
					Position:    vec3(m.Translation),
					Orientation: FBXOrientation(vec3(m.Rotation), vec3(m.PreRotation)),
				})
			}
			walk(m.ID, next)
		}
	}
	walk(formats.FBXRootID, NoBone)

	LinkSiblings(sk.Bones)
	return sk
}

// BuildFBX creates one mesh per Mesh model with a geometry. Every mesh carries
// a copy of the scene skeleton. Each vertex is bound to its single
// highest-weight cluster bone and moved into that bone's local space.
func BuildFBX(scene *formats.FBXScene) ([]*Mesh, error) {
	sk := BuildFBXSkeleton(scene)

	var meshes []*Mesh
	for _, m := range scene.Models {
		if m.Type != "Mesh" {
			continue
		}
		var geom *formats.FBXGeometry
		for _, c := range scene.ChildrenOf(m.ID) {
			if g, ok := scene.Geometry(c.Child); ok && c.Kind == "OO" {
				geom = g
				break
			}
		}
		if geom == nil {
			continue
		}

		mesh, err := buildFBXMesh(scene, sk, geom)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		mesh.Name = m.Name
		world := FBXWorldMatrix(scene, m)
		mesh.DefaultMatrix = &world
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

func buildFBXMesh(scene *formats.FBXScene, sk *FBXSkeleton, geom *formats.FBXGeometry) (*Mesh, error) {
	mesh := &Mesh{Bones: append([]Bone(nil), sk.Bones...)}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	mesh.indexBones()

	if len(geom.Vertices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d vertex components", ErrMalformedGeometry, len(geom.Vertices))
	}
	cpCount := len(geom.Vertices) / 3
	bones := fbxVertexBones(scene, sk, geom, cpCount)

	bind := BindPose(mesh)
	inv := make([]mgl32.Mat4, len(bind))
	for i := range bind {
		inv[i] = bind[i].Inv()
	}

	normal := func(pv, cp int) mgl32.Vec3 {
		i := pv
		if geom.NormalMapping == "ByVertice" || geom.NormalMapping == "ByControlPoint" {
			i = cp
		}
		if geom.NormalReference == "IndexToDirect" {
			if i >= len(geom.NormalsIndex) {
				return mgl32.Vec3{}
			}
			i = int(geom.NormalsIndex[i])
		}
		if i < 0 || 3*i+2 >= len(geom.Normals) {
			return mgl32.Vec3{}
		}
		return mgl32.Vec3{float32(geom.Normals[3*i]), float32(geom.Normals[3*i+1]), float32(geom.Normals[3*i+2])}
	}

	var poly []Vertex
	for pv, raw := range geom.PolygonVertexIndex {
		cp, last := int(raw), false
		if raw < 0 {
			cp, last = int(^raw), true
		}
		if cp >= cpCount {
			return nil, fmt.Errorf("%w: control point %d of %d", ErrMalformedGeometry, cp, cpCount)
		}

		v := Vertex{
			Position: mgl32.Vec3{float32(geom.Vertices[3*cp]), float32(geom.Vertices[3*cp+1]), float32(geom.Vertices[3*cp+2])},
			Normal:   normal(pv, cp),
			BoneID:   bones[cp],
		}
		if len(inv) > 0 {
			to := inv[v.BoneID]
			v.Position = mgl32.TransformCoordinate(v.Position, to)
			if v.Normal.Len() > 0 {
				v.Normal = normalize(to.Mat3().Mul3x1(v.Normal))
			}
		}
		poly = append(poly, v)

		if !last {
			continue
		}
		if len(poly) >= 3 {
			base := len(mesh.Vertices)
			if base+len(poly) > gomath.MaxUint16+1 {
				return nil, ErrTooManyVertices
			}
			mesh.Vertices = append(mesh.Vertices, poly...)
			// Fan triangulation around the first polygon vertex.
			for i := 1; i+1 < len(poly); i++ {
				mesh.Indices = append(mesh.Indices, uint16(base), uint16(base+i), uint16(base+i+1))
			}
		}
		poly = poly[:0]
	}
	if len(poly) > 0 {
		return nil, fmt.Errorf("%w: unterminated polygon", ErrMalformedGeometry)
	}

	mesh.Bounds = ComputeBounds(mesh, bind)
	return mesh, nil
}

// fbxVertexBones picks the highest-weight cluster bone for every control
// point. Points without weights bind to bone 0.
func fbxVertexBones(scene *formats.FBXScene, sk *FBXSkeleton, geom *formats.FBXGeometry, cpCount int) []uint16 {
	bones := make([]uint16, cpCount)
	weights := make([]float64, cpCount)

	for _, sc := range scene.ChildrenOf(geom.ID) {
		skin, ok := scene.Deformer(sc.Child)
		if !ok || skin.Type != "Skin" {
			continue
		}
		for _, cc := range scene.ChildrenOf(skin.ID) {
			cluster, ok := scene.Deformer(cc.Child)
			if !ok || cluster.Type != "Cluster" {
				continue
			}
			bone, ok := clusterBone(scene, sk, cluster.ID)
			if !ok {
				continue
			}
			for i, cp := range cluster.Indexes {
				if i >= len(cluster.Weights) || cp < 0 || int(cp) >= cpCount {
					continue
				}
				if w := cluster.Weights[i]; w > weights[cp] {
					weights[cp] = w
					bones[cp] = uint16(bone)
				}
			}
		}
	}
	return bones
}

// clusterBone finds the skeleton model linked under a cluster.
func clusterBone(scene *formats.FBXScene, sk *FBXSkeleton, clusterID int64) (int, bool) {
	for _, c := range scene.ChildrenOf(clusterID) {
		if b, ok := sk.ByModel[c.Child]; ok && b <= gomath.MaxUint16 {
			return b, true
		}
	}
	return 0, false
}
