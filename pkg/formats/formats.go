// Package formats provides parsers for the skeletal mesh, animation and motion
// capture file formats the viewer loads, plus magic-byte format detection.
package formats

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Kind classifies a file by extension and magic bytes.
type Kind int

const (
	KindUnknown       Kind = iota
	KindL3D                // Proprietary skinned mesh
	KindANM                // Proprietary keyframe animation
	KindMotionCapture      // Point-cloud motion capture
	KindFBX                // Binary FBX scene interchange
	KindBVH                // Biovision hierarchical motion capture text
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindL3D:
		return "L3D"
	case KindANM:
		return "ANM"
	case KindMotionCapture:
		return "MotionCapture"
	case KindFBX:
		return "FBX"
	case KindBVH:
		return "BVH"
	default:
		return "Unknown"
	}
}

// Magic bytes.
const (
	L3DMagic         = "L3D"                  // offset 0
	MotionCaptureTag = byte(0x50)             // offset 1
	FBXMagic         = "Kaydara FBX Binary  " // offset 0, two trailing spaces
	BVHMagic         = "HIERARCHY"            // offset 0
)

// SniffSize is the number of leading bytes Sniff needs to decide.
const SniffSize = 64

// ErrUnknownFormat is returned when a file matches no supported format.
var ErrUnknownFormat = errors.New("unknown file format")

// Extensions lists the supported file extensions, without the dot.
var Extensions = []string{"l3d", "anm", "fbx", "bvh"}

// Sniff classifies a file from its path and leading bytes. The extension
// selects the candidates and the magic bytes confirm one of them. A head
// shorter than the magic it is checked against never matches.
func Sniff(path string, head []byte) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".l3d":
		if hasPrefix(head, L3DMagic) {
			return KindL3D
		}
	case ".anm":
		// Motion capture and ANM animations share the extension.
		if len(head) >= 2 && head[1] == MotionCaptureTag {
			return KindMotionCapture
		}
		if len(head) >= ANMHeaderSize {
			return KindANM
		}
	case ".fbx":
		if hasPrefix(head, FBXMagic) {
			return KindFBX
		}
	case ".bvh":
		if hasPrefix(head, BVHMagic) {
			return KindBVH
		}
	}
	return KindUnknown
}

// SniffFile reads the head of a file and classifies it.
func SniffFile(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, SniffSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return KindUnknown, fmt.Errorf("reading %s: %w", path, err)
	}
	return Sniff(path, head[:n]), nil
}

func hasPrefix(head []byte, magic string) bool {
	return len(head) >= len(magic) && string(head[:len(magic)]) == magic
}
