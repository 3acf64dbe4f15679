// Encoders for the binary formats. Nothing in the viewer writes these
// formats; they produce the fixture files tests across the module load.
package formats

import (
	"bytes"
	"encoding/binary"

	"github.com/Faultbox/animviewer/pkg/encoding"
)

// EncodeL3D serializes an L3D in the layout ParseL3D reads. Offsets and the
// size field in the header are recomputed; the header magic is always "L3D0".
func EncodeL3D(l3d *L3D) []byte {
	var body bytes.Buffer
	put := func(v any) { binary.Write(&body, binary.LittleEndian, v) }
	pos := func() uint32 { return uint32(L3DHeaderSize + body.Len()) }

	flags := l3d.Header.Flags &^ L3DFlagHasDefaultMatrix
	var matrixOffset uint32
	if l3d.DefaultMatrix != nil {
		flags |= L3DFlagHasDefaultMatrix
		matrixOffset = pos()
		put(*l3d.DefaultMatrix)
	}

	// Reserve the mesh list and patch it once mesh offsets are known.
	meshListOffset := pos()
	meshListAt := body.Len()
	body.Write(make([]byte, 4*len(l3d.Meshes)))

	for mi := range l3d.Meshes {
		mesh := &l3d.Meshes[mi]
		binary.LittleEndian.PutUint32(body.Bytes()[meshListAt+4*mi:], pos())

		headerAt := body.Len()
		body.Write(make([]byte, L3DMeshSize))

		boneOffset := pos()
		for _, b := range mesh.Bones {
			put(b.Parent)
			put(b.FirstChild)
			put(b.RightSibling)
			put(b.Orientation)
			put(b.Position)
		}

		primListOffset := pos()
		primListAt := body.Len()
		body.Write(make([]byte, 4*len(mesh.Primitives)))

		for pi := range mesh.Primitives {
			prim := &mesh.Primitives[pi]
			binary.LittleEndian.PutUint32(body.Bytes()[primListAt+4*pi:], pos())

			primAt := body.Len()
			body.Write(make([]byte, L3DPrimitiveSize))

			verticesOffset := pos()
			for _, v := range prim.Vertices {
				put(v.Position)
				put(v.TexCoord)
				put(v.Normal)
			}
			trianglesOffset := pos()
			for _, t := range prim.Triangles {
				put(t)
			}
			for body.Len()%4 != 0 {
				body.WriteByte(0)
			}
			groupsOffset := pos()
			for _, g := range prim.Groups {
				put(g.VertexCount)
				put(g.BoneIndex)
			}
			blendsOffset := pos()
			for _, b := range prim.Blends {
				put(b.Indices)
				put(b.Weight)
			}

			hdr := [9]uint32{
				prim.MaterialIndex,
				uint32(len(prim.Vertices)), verticesOffset,
				uint32(len(prim.Triangles)), trianglesOffset,
				uint32(len(prim.Groups)), groupsOffset,
				uint32(len(prim.Blends)), blendsOffset,
			}
			for i, v := range hdr {
				binary.LittleEndian.PutUint32(body.Bytes()[primAt+4*i:], v)
			}
		}

		hdr := [5]uint32{
			mesh.Flags,
			uint32(len(mesh.Primitives)), primListOffset,
			uint32(len(mesh.Bones)), boneOffset,
		}
		for i, v := range hdr {
			binary.LittleEndian.PutUint32(body.Bytes()[headerAt+4*i:], v)
		}
	}

	var out bytes.Buffer
	out.WriteString("L3D0")
	binary.Write(&out, binary.LittleEndian, [7]uint32{
		flags,
		uint32(L3DHeaderSize + body.Len()),
		uint32(len(l3d.Meshes)),
		meshListOffset,
		l3d.Header.SkinCount,
		l3d.Header.SkinListOffset,
		matrixOffset,
	})
	out.Write(body.Bytes())
	return out.Bytes()
}

// EncodeANM serializes an ANM. FrameCount and JointCount are taken from the
// frame data rather than the struct fields.
func EncodeANM(anm *ANM) []byte {
	var buf bytes.Buffer
	jointCount := 0
	if len(anm.Frames) > 0 {
		jointCount = len(anm.Frames[0].Joints)
	}
	binary.Write(&buf, binary.LittleEndian, anm.Version)
	buf.Write(encoding.PutFixedString(anm.Name, ANMNameSize))
	binary.Write(&buf, binary.LittleEndian, [4]uint32{
		uint32(len(anm.Frames)), anm.Flags, anm.DurationMs, uint32(jointCount),
	})
	for _, f := range anm.Frames {
		binary.Write(&buf, binary.LittleEndian, f.TimeMs)
		for j := 0; j < jointCount; j++ {
			var m [12]float32
			if j < len(f.Joints) {
				m = f.Joints[j]
			}
			binary.Write(&buf, binary.LittleEndian, m)
		}
	}
	return buf.Bytes()
}

// EncodeMotionCapture serializes a motion capture recording. FrameCount is
// derived from the point data.
func EncodeMotionCapture(mc *MotionCapture) []byte {
	var buf bytes.Buffer
	frames := uint32(0)
	if mc.PointCount > 0 {
		frames = uint32(len(mc.Points)) / mc.PointCount
	}
	buf.WriteByte(mc.Version)
	buf.WriteByte(MotionCaptureTag)
	binary.Write(&buf, binary.LittleEndian, mc.Flags)
	buf.Write(encoding.PutFixedString(mc.Name, MotionCaptureNameSize))
	binary.Write(&buf, binary.LittleEndian, mc.FrameRate)
	binary.Write(&buf, binary.LittleEndian, [2]uint32{mc.PointCount, frames})
	binary.Write(&buf, binary.LittleEndian, mc.Points[:frames*mc.PointCount])
	return buf.Bytes()
}
