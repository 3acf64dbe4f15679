package formats

import (
	"os"
	"path/filepath"
	"testing"
)

func padded(prefix string, size int) []byte {
	b := make([]byte, size)
	copy(b, prefix)
	return b
}

func TestSniff(t *testing.T) {
	mocap := make([]byte, MotionCaptureHeaderSize)
	mocap[1] = MotionCaptureTag

	tests := []struct {
		name string
		path string
		head []byte
		want Kind
	}{
		{"l3d", "hero.l3d", padded("L3D0", 32), KindL3D},
		{"l3d upper case extension", "HERO.L3D", padded("L3D0", 32), KindL3D},
		{"l3d mixed case extension", "hero.L3d", padded("L3D0", 32), KindL3D},
		{"l3d wrong magic", "hero.l3d", padded("L3X0", 32), KindUnknown},
		{"l3d truncated", "hero.l3d", []byte("L3"), KindUnknown},
		{"anm", "walk.anm", make([]byte, ANMHeaderSize), KindANM},
		{"anm truncated", "walk.anm", make([]byte, ANMHeaderSize-1), KindUnknown},
		{"mocap shares anm extension", "dance.anm", mocap, KindMotionCapture},
		{"mocap tag on two bytes", "dance.ANM", []byte{0x01, 0x50}, KindMotionCapture},
		{"fbx", "rig.fbx", padded(FBXMagic, 27), KindFBX},
		{"fbx single space", "rig.fbx", padded("Kaydara FBX Binary \x00", 27), KindUnknown},
		{"fbx truncated", "rig.fbx", []byte("Kaydara FBX"), KindUnknown},
		{"fbx ascii", "rig.fbx", []byte("; FBX 7.4.0 project file"), KindUnknown},
		{"bvh", "run.bvh", []byte("HIERARCHY\nROOT Hips\n"), KindBVH},
		{"bvh wrong magic", "run.bvh", []byte("HIERARCHX\n"), KindUnknown},
		{"bvh truncated", "run.bvh", []byte("HIER"), KindUnknown},
		{"magic under wrong extension", "hero.fbx", padded("L3D0", 32), KindUnknown},
		{"unsupported extension", "hero.obj", padded("L3D0", 32), KindUnknown},
		{"no extension", "hero", padded("L3D0", 32), KindUnknown},
		{"empty head", "hero.l3d", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.path, tt.head); got != tt.want {
				t.Errorf("Sniff(%q) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}

func TestSniffFile(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name string
		path string
		want Kind
	}{
		{"bvh", write("a.bvh", []byte("HIERARCHY\n")), KindBVH},
		{"empty file", write("b.l3d", nil), KindUnknown},
		{"long file", write("c.fbx", padded(FBXMagic, 4096)), KindFBX},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SniffFile(tt.path)
			if err != nil {
				t.Fatalf("SniffFile failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := SniffFile(filepath.Join(dir, "missing.l3d")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnknown, "Unknown"},
		{KindL3D, "L3D"},
		{KindANM, "ANM"},
		{KindMotionCapture, "MotionCapture"},
		{KindFBX, "FBX"},
		{KindBVH, "BVH"},
		{Kind(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
