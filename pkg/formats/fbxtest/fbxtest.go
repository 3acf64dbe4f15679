// Package fbxtest writes small binary FBX files for tests.
package fbxtest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Version is the file version written by WriteFile.
const Version = 7400

const magic = "Kaydara FBX Binary  "

var (
	footerID    = []byte{0xfa, 0xbc, 0xab, 0x09, 0xd0, 0xc8, 0xd4, 0x66, 0xb1, 0x76, 0xfb, 0x83, 0x1c, 0xf7, 0x26, 0x7e}
	footerMagic = []byte{0xf8, 0x5a, 0x8c, 0x6a, 0xde, 0xf5, 0xd9, 0x7e, 0xec, 0xe9, 0x0c, 0xe3, 0x75, 0x8f, 0x29, 0x0b}
)

// Node is one record of the tree to encode. Property types follow their Go
// type: int16, bool, int32, float32, float64, int64, string, []byte and
// slices of float32, float64, int64, int32 or bool.
type Node struct {
	Name     string
	Props    []any
	Children []*Node
}

// N builds a node.
func N(name string, props ...any) *Node {
	return &Node{Name: name, Props: props}
}

// With appends children and returns the node, for building trees inline.
func (n *Node) With(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Encode serializes nodes as a binary FBX document. A header extension
// carrying the version is written first. Arrays are zlib-compressed when
// compress is set.
func Encode(version uint32, compress bool, nodes ...*Node) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write([]byte{0x00, 0x1A, 0x00})
	binary.Write(&buf, binary.LittleEndian, version)

	header := N("FBXHeaderExtension").With(N("FBXVersion", int32(version)))
	for _, n := range append([]*Node{header}, nodes...) {
		writeNode(&buf, n, version, compress)
	}
	buf.Write(make([]byte, recordHeaderSize(version)))

	buf.Write(footerID)
	buf.Write(make([]byte, 4))
	pad := 16 - buf.Len()%16
	buf.Write(make([]byte, pad))
	binary.Write(&buf, binary.LittleEndian, version)
	buf.Write(make([]byte, 120))
	buf.Write(footerMagic)
	return buf.Bytes()
}

// WriteFile encodes nodes at Version with compressed arrays into a file
// under the test's temp dir and returns its path.
func WriteFile(t testing.TB, nodes ...*Node) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.fbx")
	if err := os.WriteFile(path, Encode(Version, true, nodes...), 0o644); err != nil {
		t.Fatalf("writing FBX fixture: %v", err)
	}
	return path
}

func recordHeaderSize(version uint32) int {
	if version >= 7500 {
		return 25
	}
	return 13
}

func writeNode(buf *bytes.Buffer, n *Node, version uint32, compress bool) {
	var props bytes.Buffer
	for _, p := range n.Props {
		writeProperty(&props, p, compress)
	}

	start := buf.Len()
	headerSize := recordHeaderSize(version)
	buf.Write(make([]byte, headerSize))
	buf.WriteString(n.Name)
	buf.Write(props.Bytes())
	if len(n.Children) > 0 {
		for _, c := range n.Children {
			writeNode(buf, c, version, compress)
		}
		buf.Write(make([]byte, headerSize))
	}

	hdr := buf.Bytes()[start:]
	if version >= 7500 {
		binary.LittleEndian.PutUint64(hdr[0:], uint64(buf.Len()))
		binary.LittleEndian.PutUint64(hdr[8:], uint64(len(n.Props)))
		binary.LittleEndian.PutUint64(hdr[16:], uint64(props.Len()))
		hdr[24] = byte(len(n.Name))
	} else {
		binary.LittleEndian.PutUint32(hdr[0:], uint32(buf.Len()))
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(n.Props)))
		binary.LittleEndian.PutUint32(hdr[8:], uint32(props.Len()))
		hdr[12] = byte(len(n.Name))
	}
}

func writeProperty(buf *bytes.Buffer, v any, compress bool) {
	code, size := typeCode(v)
	buf.WriteByte(code)
	switch v := v.(type) {
	case bool:
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case string:
		binary.Write(buf, binary.LittleEndian, uint32(len(v)))
		buf.WriteString(v)
	case []byte:
		binary.Write(buf, binary.LittleEndian, uint32(len(v)))
		buf.Write(v)
	case []float32, []float64, []int64, []int32, []bool:
		var raw bytes.Buffer
		binary.Write(&raw, binary.LittleEndian, v)
		count := raw.Len() / size
		data, enc := raw.Bytes(), uint32(0)
		if compress {
			var z bytes.Buffer
			zw := zlib.NewWriter(&z)
			zw.Write(data)
			zw.Close()
			data, enc = z.Bytes(), 1
		}
		binary.Write(buf, binary.LittleEndian, [3]uint32{uint32(count), enc, uint32(len(data))})
		buf.Write(data)
	default:
		binary.Write(buf, binary.LittleEndian, v)
	}
}

// typeCode returns the FBX type code and array element size of v. It panics
// on an unsupported type, as that is a mistake in the fixture.
func typeCode(v any) (byte, int) {
	switch v.(type) {
	case int16:
		return 'Y', 0
	case bool:
		return 'C', 0
	case int32:
		return 'I', 0
	case float32:
		return 'F', 0
	case float64:
		return 'D', 0
	case int64:
		return 'L', 0
	case string:
		return 'S', 0
	case []byte:
		return 'R', 0
	case []float32:
		return 'f', 4
	case []float64:
		return 'd', 8
	case []int64:
		return 'l', 8
	case []int32:
		return 'i', 4
	case []bool:
		return 'b', 1
	}
	panic(fmt.Sprintf("fbxtest: unsupported property type %T", v))
}
