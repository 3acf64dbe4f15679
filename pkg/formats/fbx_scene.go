package formats

import (
	"fmt"

	"github.com/binzume/modelconv/fbx"
)

// FBXRootID is the implicit scene root object.
const FBXRootID int64 = 0

// FBXModel is a scene node: mesh holder, skeleton limb or null.
type FBXModel struct {
	ID          int64
	Name        string
	Type        string // "Mesh", "LimbNode", "Null", "Root", ...
	Translation [3]float64
	Rotation    [3]float64 // Euler degrees, XYZ order
	Scaling     [3]float64
	PreRotation [3]float64
}

// IsSkeleton reports whether the model is a bone candidate.
func (m *FBXModel) IsSkeleton() bool {
	switch m.Type {
	case "LimbNode", "Limb", "Root", "Null":
		return true
	}
	return false
}

// FBXGeometry holds polygon data. PolygonVertexIndex marks the last index of
// each polygon by storing it as ^index (negative).
type FBXGeometry struct {
	ID                 int64
	Name               string
	Vertices           []float64
	PolygonVertexIndex []int32
	Normals            []float64
	NormalsIndex       []int32
	NormalMapping      string // "ByPolygonVertex", "ByVertice", ...
	NormalReference    string // "Direct" or "IndexToDirect"
}

// FBXDeformer is a skin or a cluster binding vertices to one bone.
type FBXDeformer struct {
	ID            int64
	Name          string
	Type          string // "Skin" or "Cluster"
	Indexes       []int32
	Weights       []float64
	Transform     []float64
	TransformLink []float64
}

// FBXAnimationStack is a named take.
type FBXAnimationStack struct {
	ID        int64
	Name      string
	LocalStop int64 // ticks
}

// FBXAnimationLayer groups curve nodes of a stack.
type FBXAnimationLayer struct {
	ID   int64
	Name string
}

// FBXAnimationCurveNode drives one transform property ("T", "R" or "S") of a
// model through up to three curves.
type FBXAnimationCurveNode struct {
	ID      int64
	Name    string
	Default [3]float64
}

// FBXAnimationCurve is a keyed scalar channel.
type FBXAnimationCurve struct {
	ID       int64
	Default  float64
	KeyTime  []int64 // ticks
	KeyValue []float64
}

// FBXConnection links a child object to a parent object ("OO") or to a
// parent property ("OP").
type FBXConnection struct {
	Kind     string
	Child    int64
	Parent   int64
	Property string
}

// FBXScene is the object graph of an FBX document in document order.
type FBXScene struct {
	Version     uint32
	Models      []*FBXModel
	Geometries  []*FBXGeometry
	Deformers   []*FBXDeformer
	Stacks      []*FBXAnimationStack
	Layers      []*FBXAnimationLayer
	CurveNodes  []*FBXAnimationCurveNode
	Curves      []*FBXAnimationCurve
	Connections []FBXConnection

	models     map[int64]*FBXModel
	geometries map[int64]*FBXGeometry
	deformers  map[int64]*FBXDeformer
	curveNodes map[int64]*FBXAnimationCurveNode
	curves     map[int64]*FBXAnimationCurve
	children   map[int64][]FBXConnection
	parents    map[int64][]FBXConnection
}

// NewFBXScene extracts the object graph from the root of an FBX node tree.
func NewFBXScene(root *fbx.Node) *FBXScene {
	s := &FBXScene{
		Version:    uint32(fbxInt(fbxAttr(fbxChild(fbxChild(root, "FBXHeaderExtension"), "FBXVersion"), 0))),
		models:     make(map[int64]*FBXModel),
		geometries: make(map[int64]*FBXGeometry),
		deformers:  make(map[int64]*FBXDeformer),
		curveNodes: make(map[int64]*FBXAnimationCurveNode),
		curves:     make(map[int64]*FBXAnimationCurve),
		children:   make(map[int64][]FBXConnection),
		parents:    make(map[int64][]FBXConnection),
	}

	var objects []*fbx.Node
	if n := fbxChild(root, "Objects"); n != nil {
		objects = n.GetChildren()
	}
	for _, obj := range objects {
		id := fbxInt(fbxAttr(obj, 0))
		name := fbxString(fbxAttr(obj, 1))
		switch obj.Name {
		case "Model":
			m := &FBXModel{ID: id, Name: name, Type: fbxString(fbxAttr(obj, 2)), Scaling: [3]float64{1, 1, 1}}
			props := fbxProperties70(obj)
			if v, ok := props["Lcl Translation"]; ok {
				m.Translation = v
			}
			if v, ok := props["Lcl Rotation"]; ok {
				m.Rotation = v
			}
			if v, ok := props["Lcl Scaling"]; ok {
				m.Scaling = v
			}
			if v, ok := props["PreRotation"]; ok {
				m.PreRotation = v
			}
			s.Models = append(s.Models, m)
			s.models[id] = m
		case "Geometry":
			g := &FBXGeometry{
				ID:                 id,
				Name:               name,
				Vertices:           fbxFloats(fbxAttr(fbxChild(obj, "Vertices"), 0)),
				PolygonVertexIndex: fbxInt32s(fbxAttr(fbxChild(obj, "PolygonVertexIndex"), 0)),
			}
			if ln := fbxChild(obj, "LayerElementNormal"); ln != nil {
				g.Normals = fbxFloats(fbxAttr(fbxChild(ln, "Normals"), 0))
				g.NormalsIndex = fbxInt32s(fbxAttr(fbxChild(ln, "NormalsIndex"), 0))
				g.NormalMapping = fbxString(fbxAttr(fbxChild(ln, "MappingInformationType"), 0))
				g.NormalReference = fbxString(fbxAttr(fbxChild(ln, "ReferenceInformationType"), 0))
			}
			s.Geometries = append(s.Geometries, g)
			s.geometries[id] = g
		case "Deformer":
			d := &FBXDeformer{
				ID:            id,
				Name:          name,
				Type:          fbxString(fbxAttr(obj, 2)),
				Indexes:       fbxInt32s(fbxAttr(fbxChild(obj, "Indexes"), 0)),
				Weights:       fbxFloats(fbxAttr(fbxChild(obj, "Weights"), 0)),
				Transform:     fbxFloats(fbxAttr(fbxChild(obj, "Transform"), 0)),
				TransformLink: fbxFloats(fbxAttr(fbxChild(obj, "TransformLink"), 0)),
			}
			s.Deformers = append(s.Deformers, d)
			s.deformers[id] = d
		case "AnimationStack":
			st := &FBXAnimationStack{ID: id, Name: name}
			if p := fbxProperty70(obj, "LocalStop"); p != nil {
				st.LocalStop = fbxInt(fbxAttr(p, 4))
			}
			s.Stacks = append(s.Stacks, st)
		case "AnimationLayer":
			s.Layers = append(s.Layers, &FBXAnimationLayer{ID: id, Name: name})
		case "AnimationCurveNode":
			cn := &FBXAnimationCurveNode{ID: id, Name: name}
			for i, key := range [3]string{"d|X", "d|Y", "d|Z"} {
				if p := fbxProperty70(obj, key); p != nil {
					cn.Default[i] = fbxFloat(fbxAttr(p, 4))
				}
			}
			s.CurveNodes = append(s.CurveNodes, cn)
			s.curveNodes[id] = cn
		case "AnimationCurve":
			c := &FBXAnimationCurve{
				ID:       id,
				Default:  fbxFloat(fbxAttr(fbxChild(obj, "Default"), 0)),
				KeyTime:  fbxInt64s(fbxAttr(fbxChild(obj, "KeyTime"), 0)),
				KeyValue: fbxFloats(fbxAttr(fbxChild(obj, "KeyValueFloat"), 0)),
			}
			s.Curves = append(s.Curves, c)
			s.curves[id] = c
		}
	}

	for _, c := range fbxChildren(fbxChild(root, "Connections"), "C") {
		conn := FBXConnection{
			Kind:   fbxString(fbxAttr(c, 0)),
			Child:  fbxInt(fbxAttr(c, 1)),
			Parent: fbxInt(fbxAttr(c, 2)),
		}
		if conn.Kind == "OP" {
			conn.Property = fbxString(fbxAttr(c, 3))
		}
		s.Connections = append(s.Connections, conn)
		s.children[conn.Parent] = append(s.children[conn.Parent], conn)
		s.parents[conn.Child] = append(s.parents[conn.Child], conn)
	}

	return s
}

// ParseFBXSceneFile reads an FBX file from disk into a scene.
func ParseFBXSceneFile(path string) (scene *FBXScene, err error) {
	// The reader trusts declared lengths; a corrupt file must only fail this
	// load.
	defer func() {
		if r := recover(); r != nil {
			scene, err = nil, fmt.Errorf("%w: %s: %v", ErrInvalidFBX, path, r)
		}
	}()

	doc, err := fbx.Load(path)
	if err != nil {
		return nil, fmt.Errorf("reading FBX file: %w", err)
	}
	if doc == nil || doc.RawNode == nil {
		return nil, fmt.Errorf("%w: %s: empty document", ErrInvalidFBX, path)
	}
	return NewFBXScene(doc.RawNode), nil
}

// fbxProperty70 finds the P record with the given name under Properties70.
func fbxProperty70(obj *fbx.Node, name string) *fbx.Node {
	for _, p := range fbxChildren(fbxChild(obj, "Properties70"), "P") {
		if fbxString(fbxAttr(p, 0)) == name {
			return p
		}
	}
	return nil
}

// fbxProperties70 collects the vector-valued P records of an object.
func fbxProperties70(obj *fbx.Node) map[string][3]float64 {
	out := make(map[string][3]float64)
	for _, p := range fbxChildren(fbxChild(obj, "Properties70"), "P") {
		if fbxAttr(p, 6) == nil {
			continue
		}
		out[fbxString(fbxAttr(p, 0))] = [3]float64{fbxFloat(fbxAttr(p, 4)), fbxFloat(fbxAttr(p, 5)), fbxFloat(fbxAttr(p, 6))}
	}
	return out
}

// Model returns the model with the given id.
func (s *FBXScene) Model(id int64) (*FBXModel, bool) {
	m, ok := s.models[id]
	return m, ok
}

// Geometry returns the geometry with the given id.
func (s *FBXScene) Geometry(id int64) (*FBXGeometry, bool) {
	g, ok := s.geometries[id]
	return g, ok
}

// Deformer returns the deformer with the given id.
func (s *FBXScene) Deformer(id int64) (*FBXDeformer, bool) {
	d, ok := s.deformers[id]
	return d, ok
}

// CurveNode returns the curve node with the given id.
func (s *FBXScene) CurveNode(id int64) (*FBXAnimationCurveNode, bool) {
	n, ok := s.curveNodes[id]
	return n, ok
}

// Curve returns the curve with the given id.
func (s *FBXScene) Curve(id int64) (*FBXAnimationCurve, bool) {
	c, ok := s.curves[id]
	return c, ok
}

// ChildrenOf returns the connections whose parent is id, in document order.
func (s *FBXScene) ChildrenOf(id int64) []FBXConnection {
	return s.children[id]
}

// ParentsOf returns the connections whose child is id, in document order.
func (s *FBXScene) ParentsOf(id int64) []FBXConnection {
	return s.parents[id]
}

// ParentModel returns the model an object is attached to through an OO link.
// Objects attached to the scene root, or to nothing, report false.
func (s *FBXScene) ParentModel(id int64) (*FBXModel, bool) {
	for _, c := range s.parents[id] {
		if c.Kind != "OO" {
			continue
		}
		if m, ok := s.models[c.Parent]; ok {
			return m, true
		}
	}
	return nil, false
}
