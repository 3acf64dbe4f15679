package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/animviewer/pkg/formats"
)

var identity3 = [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}

// writeFixtures writes a one-bone triangle and a three-frame animation.
func writeFixtures(t *testing.T) (mesh, anim string) {
	t.Helper()
	dir := t.TempDir()

	mesh = filepath.Join(dir, "tri.l3d")
	l3d := formats.EncodeL3D(&formats.L3D{Meshes: []formats.L3DMesh{{
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
	if err := os.WriteFile(mesh, l3d, 0o644); err != nil {
		t.Fatal(err)
	}

	anim = filepath.Join(dir, "nod.anm")
	a := &formats.ANM{Version: 1, Name: "nod", DurationMs: 300}
	for i := 0; i < 3; i++ {
		a.Frames = append(a.Frames, formats.ANMFrame{
			TimeMs: uint32(i * 100),
			Joints: [][12]float32{{1, 0, 0, 0, 1, 0, 0, 0, 1, float32(i), 0, 0}},
		})
	}
	if err := os.WriteFile(anim, formats.EncodeANM(a), 0o644); err != nil {
		t.Fatal(err)
	}
	return mesh, anim
}

func TestSniff(t *testing.T) {
	mesh, anim := writeFixtures(t)
	var out bytes.Buffer
	if err := run(&out, "sniff", []string{mesh, anim}); err != nil {
		t.Fatalf("sniff failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "L3D") || !strings.HasPrefix(lines[1], "ANM") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	if err := run(&out, "sniff", []string{filepath.Join(t.TempDir(), "missing.l3d")}); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestInfo(t *testing.T) {
	mesh, anim := writeFixtures(t)
	var out bytes.Buffer
	if err := run(&out, "info", []string{mesh, anim}); err != nil {
		t.Fatalf("info failed: %v", err)
	}
	for _, want := range []string{"bones 1, vertices 3, triangles 1", "frames 3", "1 meshes, 1 animations"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestPlay(t *testing.T) {
	mesh, anim := writeFixtures(t)

	tests := []struct {
		name string
		args []string
		last string
	}{
		{"looping", []string{"-ticks", "3", "-dt", "100ms", mesh, anim}, "frame   0"},
		{"once", []string{"-ticks", "5", "-dt", "100ms", "-loop=false", mesh, anim}, "frame   2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run(&out, "play", tt.args); err != nil {
				t.Fatalf("play failed: %v", err)
			}
			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			last := lines[len(lines)-1]
			if !strings.Contains(last, tt.last) {
				t.Errorf("expected last tick at %q, got %q", tt.last, last)
			}
		})
	}

	var out bytes.Buffer
	if err := run(&out, "play", []string{"-name", "wave", mesh, anim}); err == nil {
		t.Error("expected an error for a missing animation name")
	}
}

func TestExport(t *testing.T) {
	mesh, _ := writeFixtures(t)
	output := filepath.Join(t.TempDir(), "tri.gltf")

	var out bytes.Buffer
	if err := run(&out, "export", []string{"-o", output, mesh}); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("no output written: %v", err)
	}
}

func TestUsage(t *testing.T) {
	var out bytes.Buffer
	for _, cmd := range []string{"frobnicate", "sniff", "play", "export"} {
		if err := run(&out, cmd, nil); !errors.Is(err, errUsage) {
			t.Errorf("%s: expected a usage error, got %v", cmd, err)
		}
	}
}
