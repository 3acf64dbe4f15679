// Package export writes loaded meshes to glTF 2.0.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/animviewer/internal/engine/model"
)

// ErrEmptyMesh is returned when a mesh has no triangles to export.
var ErrEmptyMesh = errors.New("mesh has no triangles")

// GLTF converts a mesh in bind pose to a glTF document. Vertices are moved
// from bone space to model space, and every bone becomes a joint node of
// one skin.
func GLTF(m *model.Mesh, bind []mgl32.Mat4) (*gltf.Document, error) {
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return nil, fmt.Errorf("%s: %w", m.Name, ErrEmptyMesh)
	}
	if len(bind) != len(m.Bones) {
		return nil, fmt.Errorf("%s: bind pose has %d joints for %d bones", m.Name, len(bind), len(m.Bones))
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "animviewer"

	positions := make([][3]float32, len(m.Vertices))
	normals := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		p, n := bindVertex(v, bind)
		positions[i], normals[i] = p, n
	}

	attrs := map[string]int{
		gltf.POSITION: modeler.WritePosition(doc, positions),
		gltf.NORMAL:   modeler.WriteNormal(doc, normals),
	}
	if len(m.Bones) > 0 {
		joints := make([][4]uint16, len(m.Vertices))
		weights := make([][4]float32, len(m.Vertices))
		for i, v := range m.Vertices {
			joints[i], weights[i] = skinWeights(v)
		}
		attrs[gltf.JOINTS_0] = modeler.WriteJoints(doc, joints)
		attrs[gltf.WEIGHTS_0] = modeler.WriteWeights(doc, weights)
	}

	doc.Meshes = []*gltf.Mesh{{
		Name: m.Name,
		Primitives: []*gltf.Primitive{{
			Attributes: attrs,
			Indices:    gltf.Index(modeler.WriteIndices(doc, m.Indices)),
			Mode:       gltf.PrimitiveTriangles,
		}},
	}}

	// Bone nodes come first so node i is bone i.
	for i := range m.Bones {
		b := &m.Bones[i]
		q := mgl32.Mat4ToQuat(b.Orientation.Mat4()).Normalize()
		node := &gltf.Node{
			Name:        boneName(b, i),
			Translation: [3]float64{float64(b.Position[0]), float64(b.Position[1]), float64(b.Position[2])},
			Rotation:    [4]float64{float64(q.V[0]), float64(q.V[1]), float64(q.V[2]), float64(q.W)},
			Scale:       [3]float64{1, 1, 1},
		}
		node.Children = append(node.Children, m.Children(i)...)
		doc.Nodes = append(doc.Nodes, node)
	}

	meshNode := &gltf.Node{Name: m.Name, Mesh: gltf.Index(0)}
	if len(m.Bones) > 0 {
		inverse := make([][4][4]float32, len(bind))
		jointIdx := make([]int, len(bind))
		for i, j := range bind {
			inv := j.Inv()
			for c := 0; c < 4; c++ {
				inverse[i][c] = [4]float32(inv.Col(c))
			}
			jointIdx[i] = i
		}
		skin := &gltf.Skin{
			Name:                m.Name,
			Joints:              jointIdx,
			InverseBindMatrices: gltf.Index(modeler.WriteAccessor(doc, gltf.TargetNone, inverse)),
		}
		if roots := m.Roots(); len(roots) > 0 {
			skin.Skeleton = gltf.Index(roots[0])
		}
		doc.Skins = []*gltf.Skin{skin}
		meshNode.Skin = gltf.Index(0)
	}
	doc.Nodes = append(doc.Nodes, meshNode)

	scene := doc.Scenes[0]
	scene.Name = m.Name
	scene.Nodes = append(scene.Nodes, len(doc.Nodes)-1)
	scene.Nodes = append(scene.Nodes, m.Roots()...)
	return doc, nil
}

// bindVertex returns a vertex position and normal in model space.
func bindVertex(v model.Vertex, bind []mgl32.Mat4) ([3]float32, [3]float32) {
	if int(v.BoneID) >= len(bind) {
		return v.Position, v.Normal
	}
	skin := bind[v.BoneID]
	if v.BlendWeight > 0 && int(v.BlendBoneID) < len(bind) {
		w := v.BlendWeight
		blend := bind[v.BlendBoneID]
		for k := range skin {
			skin[k] = skin[k]*(1-w) + blend[k]*w
		}
	}
	p := mgl32.TransformCoordinate(v.Position, skin)
	n := mgl32.TransformNormal(v.Normal, skin)
	if l := n.Len(); l > 0 {
		n = n.Mul(1 / l)
	}
	return p, n
}

// skinWeights returns the JOINTS_0 and WEIGHTS_0 entries of a vertex.
func skinWeights(v model.Vertex) ([4]uint16, [4]float32) {
	if v.BlendWeight <= 0 || v.BlendBoneID == v.BoneID {
		return [4]uint16{v.BoneID}, [4]float32{1}
	}
	return [4]uint16{v.BoneID, v.BlendBoneID}, [4]float32{1 - v.BlendWeight, v.BlendWeight}
}

func boneName(b *model.Bone, i int) string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("bone%d", i)
}

// Save writes doc to path, as binary glTF when the extension is .glb.
func Save(doc *gltf.Document, path string) error {
	var err error
	if strings.EqualFold(filepath.Ext(path), ".glb") {
		err = gltf.SaveBinary(doc, path)
	} else {
		// A text document carries its buffers as data URIs.
		for _, b := range doc.Buffers {
			if b.URI == "" {
				b.EmbeddedResource()
			}
		}
		err = gltf.Save(doc, path)
	}
	if err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
