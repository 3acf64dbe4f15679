package assets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/animviewer/internal/engine/model"
	"github.com/Faultbox/animviewer/pkg/formats"
	"github.com/Faultbox/animviewer/pkg/formats/fbxtest"
)

var identity3 = [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func l3dBytes() []byte {
	return formats.EncodeL3D(&formats.L3D{Meshes: []formats.L3DMesh{{
		Bones: []formats.L3DBone{
			{Parent: formats.L3DNoBone, FirstChild: formats.L3DNoBone, RightSibling: formats.L3DNoBone, Orientation: identity3},
		},
		Primitives: []formats.L3DPrimitive{{
			Vertices: []formats.L3DVertex{
				{Position: [3]float32{0, 0, 0}}, {Position: [3]float32{1, 0, 0}}, {Position: [3]float32{0, 1, 0}},
			},
			Triangles: [][3]uint16{{0, 1, 2}},
			Groups:    []formats.L3DVertexGroup{{VertexCount: 3, BoneIndex: 0}},
		}},
	}}})
}

func anmBytes() []byte {
	return formats.EncodeANM(&formats.ANM{Version: 1, Name: "wave", DurationMs: 200, Frames: []formats.ANMFrame{
		{TimeMs: 0, Joints: [][12]float32{{1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0}}},
		{TimeMs: 100, Joints: [][12]float32{{1, 0, 0, 0, 1, 0, 0, 0, 1, 1, 0, 0}}},
	}})
}

func mocapBytes() []byte {
	return formats.EncodeMotionCapture(&formats.MotionCapture{
		Version: 1, Name: "jump", FrameRate: 60, PointCount: 2,
		Points: [][3]float32{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}, {3, 3, 3}},
	})
}

const bvhText = `HIERARCHY
ROOT Hips
{
	OFFSET 0 0 0
	CHANNELS 3 Zrotation Xrotation Yrotation
}
MOTION
Frames: 2
Frame Time: 0.05
0 0 0
0 10 0
`

// fbxBytes holds a skinned triangle and one animated take.
func fbxBytes() []byte {
	n := fbxtest.N
	return fbxtest.Encode(fbxtest.Version, true,
		n("Objects").With(
			n("Model", int64(1), "Hips\x00\x01Model", "LimbNode"),
			n("Model", int64(2), "Body\x00\x01Model", "Mesh"),
			n("Geometry", int64(3), "Body\x00\x01Geometry", "Mesh").With(
				n("Vertices", []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}),
				n("PolygonVertexIndex", []int32{0, 1, ^2}),
			),
			n("Deformer", int64(4), "\x00\x01Deformer", "Skin"),
			n("Deformer", int64(5), "Hips\x00\x01SubDeformer", "Cluster").With(
				n("Indexes", []int32{0, 1, 2}),
				n("Weights", []float64{1, 1, 1}),
			),
			n("AnimationStack", int64(10), "Idle\x00\x01AnimStack", ""),
			n("AnimationLayer", int64(11), "Base\x00\x01AnimLayer", ""),
			n("AnimationCurveNode", int64(12), "R\x00\x01AnimCurveNode", ""),
			n("AnimationCurve", int64(13), "\x00\x01AnimCurve", "").With(
				n("KeyTime", []int64{0, formats.FBXTicksPerSecond}),
				n("KeyValueFloat", []float64{0, 90}),
			),
		),
		n("Connections").With(
			n("C", "OO", int64(1), int64(0)),
			n("C", "OO", int64(2), int64(0)),
			n("C", "OO", int64(3), int64(2)),
			n("C", "OO", int64(4), int64(3)),
			n("C", "OO", int64(5), int64(4)),
			n("C", "OO", int64(1), int64(5)),
			n("C", "OO", int64(11), int64(10)),
			n("C", "OO", int64(12), int64(11)),
			n("C", "OP", int64(12), int64(1), "Lcl Rotation"),
			n("C", "OP", int64(13), int64(12), "d|Y"),
		),
	)
}

func TestStore_LoadFormats(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		file  string
		data  []byte
		kinds []Kind
		names []string
	}{
		{"l3d mesh", "crate.l3d", l3dBytes(), []Kind{KindMesh}, []string{"crate"}},
		{"anm animation", "wave.anm", anmBytes(), []Kind{KindAnimation}, []string{"wave"}},
		{"motion capture", "jump.anm", mocapBytes(), []Kind{KindMotionCapture}, []string{"jump"}},
		{"bvh animation", "walk.bvh", []byte(bvhText), []Kind{KindAnimation}, []string{"walk"}},
		{"fbx scene", "hero.fbx", fbxBytes(), []Kind{KindMesh, KindAnimation}, []string{"Body", "Idle"}},
	}

	store := NewStore()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.Load(writeFile(t, dir, tt.file, tt.data))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if len(entries) != len(tt.kinds) {
				t.Fatalf("expected %d entries, got %d", len(tt.kinds), len(entries))
			}
			for i, e := range entries {
				if e.Kind != tt.kinds[i] || e.Name != tt.names[i] {
					t.Errorf("entry %d: expected %v %q, got %v %q", i, tt.kinds[i], tt.names[i], e.Kind, e.Name)
				}
			}
		})
	}

	stats := store.Stats()
	if stats.Meshes != 2 || stats.Animations != 3 || stats.MotionCaptures != 1 {
		t.Errorf("unexpected counts %+v", stats)
	}
}

func TestStore_LoadCached(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wave.anm", anmBytes())
	store := NewStore()

	first, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// Changing the file does not matter once loaded.
	writeFile(t, filepath.Dir(path), "wave.anm", []byte("garbage"))
	second, err := store.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if len(second) != 1 || second[0] != first[0] {
		t.Errorf("expected cached entries %v, got %v", first, second)
	}
	if s := store.Stats(); s.Hits != 1 || s.Misses != 1 || s.Animations != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestStore_StableIDs(t *testing.T) {
	dir := t.TempDir()
	l3d := writeFile(t, dir, "crate.l3d", l3dBytes())
	fbx := writeFile(t, dir, "hero.fbx", fbxBytes())

	a, b := NewStore(), NewStore()
	for _, path := range []string{l3d, fbx} {
		ea, err := a.Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		eb, err := b.Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		for i := range ea {
			if ea[i].ID != eb[i].ID {
				t.Errorf("%s entry %d: ids differ across stores", path, i)
			}
		}
	}

	entries, _ := a.Load(fbx)
	if entries[0].ID == entries[1].ID {
		t.Error("resources of one file share an id")
	}
}

func TestStore_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	truncated := l3dBytes()[:20]

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"unknown extension", writeFile(t, dir, "notes.txt", []byte("hello")), formats.ErrUnknownFormat},
		{"wrong magic", writeFile(t, dir, "fake.fbx", []byte("not an fbx file at all, sorry")), formats.ErrUnknownFormat},
		{"truncated l3d", writeFile(t, dir, "broken.l3d", truncated), nil},
		{"bvh frame count overflow", writeFile(t, dir, "huge.bvh",
			[]byte(strings.Replace(bvhText, "Frames: 2", "Frames: 4611686018427387904", 1))), formats.ErrTruncatedBVHData},
		{"bvh nan frame time", writeFile(t, dir, "nan.bvh",
			[]byte(strings.Replace(bvhText, "0.05", "nan", 1))), formats.ErrMalformedBVH},
		{"missing file", filepath.Join(dir, "missing.bvh"), os.ErrNotExist},
	}

	store := NewStore()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.Load(tt.path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if entries != nil {
				t.Errorf("expected no entries, got %v", entries)
			}
		})
	}
	if s := store.Stats(); s.Meshes+s.Animations+s.MotionCaptures != 0 {
		t.Errorf("failed loads registered resources: %+v", s)
	}

	// The store keeps working after rejecting bad files.
	if _, err := store.Load(writeFile(t, dir, "walk.bvh", []byte(bvhText))); err != nil {
		t.Errorf("Load after failures: %v", err)
	}
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore()
	path := writeFile(t, t.TempDir(), "crate.l3d", l3dBytes())
	entries, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := store.Mesh(entries[0].ID); err != nil {
		t.Errorf("Mesh failed: %v", err)
	}
	if _, err := store.Animation(entries[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a mesh id used as animation, got %v", err)
	}
	if _, err := store.MotionCapture(entries[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

type fakeGPU struct{ released *int }

func (g fakeGPU) Release() { *g.released++ }

type fakeUploader struct {
	uploads  int
	released int
	fail     bool
}

func (u *fakeUploader) UploadMesh(vertices []model.Vertex, indices []uint16) (GPUMesh, error) {
	if u.fail {
		return nil, errors.New("out of memory")
	}
	u.uploads++
	return fakeGPU{released: &u.released}, nil
}

func TestStore_UploadDirty(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()
	for _, name := range []string{"a.l3d", "b.l3d"} {
		if _, err := store.Load(writeFile(t, dir, name, l3dBytes())); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}

	failing := &fakeUploader{fail: true}
	if err := store.UploadDirty(failing); err == nil {
		t.Error("expected upload error")
	}

	up := &fakeUploader{}
	if err := store.UploadDirty(up); err != nil {
		t.Fatalf("UploadDirty failed: %v", err)
	}
	if err := store.UploadDirty(up); err != nil {
		t.Fatalf("UploadDirty failed: %v", err)
	}
	if up.uploads != 2 {
		t.Errorf("expected each mesh uploaded once, got %d uploads", up.uploads)
	}

	var order []string
	store.EachMesh(func(r *MeshResource) { order = append(order, r.Mesh.Name) })
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("unexpected load order %v", order)
	}

	store.Close()
	if up.released != 2 {
		t.Errorf("expected 2 releases, got %d", up.released)
	}
	if s := store.Stats(); s.Meshes != 0 {
		t.Errorf("close left %d meshes", s.Meshes)
	}
}
