// Package math provides the matrix helpers shared by the mesh builders and the
// animation engine. Types come from mgl32; matrices are column-major
// (OpenGL compatible), the same layout the file formats store.
package math

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Epsilon is the default tolerance for matrix comparisons.
const Epsilon = 1e-4

// FromMat3Translation builds T(pos) * R(rot).
func FromMat3Translation(rot mgl32.Mat3, pos mgl32.Vec3) mgl32.Mat4 {
	m := rot.Mat4()
	m[12], m[13], m[14] = pos[0], pos[1], pos[2]
	return m
}

// FromMat3x4 expands a 3x4 trans-rot matrix (bottom row omitted, column-major)
// into a full 4x4 matrix.
func FromMat3x4(v [12]float32) mgl32.Mat4 {
	return mgl32.Mat4{
		v[0], v[1], v[2], 0,
		v[3], v[4], v[5], 0,
		v[6], v[7], v[8], 0,
		v[9], v[10], v[11], 1,
	}
}

// FromFloat64 converts a column-major float64 matrix (FBX storage) to Mat4.
func FromFloat64(v []float64) mgl32.Mat4 {
	m := mgl32.Ident4()
	for i := 0; i < 16 && i < len(v); i++ {
		m[i] = float32(v[i])
	}
	return m
}

// Translation returns the translation column of m.
func Translation(m mgl32.Mat4) mgl32.Vec3 {
	return m.Col(3).Vec3()
}

// WithTranslation returns m with its translation column replaced.
func WithTranslation(m mgl32.Mat4, t mgl32.Vec3) mgl32.Mat4 {
	m[12], m[13], m[14] = t[0], t[1], t[2]
	return m
}

// LerpMat4 blends every component of a and b linearly. Rotations are not
// renormalized.
func LerpMat4(a, b mgl32.Mat4, t float32) mgl32.Mat4 {
	var out mgl32.Mat4
	for i := range out {
		out[i] = a[i] + t*(b[i]-a[i])
	}
	return out
}

// Decompose splits an affine matrix into translation, rotation and scale.
// Shear and perspective are discarded.
func Decompose(m mgl32.Mat4) (pos mgl32.Vec3, rot mgl32.Quat, scale mgl32.Vec3) {
	pos = Translation(m)

	c0, c1, c2 := m.Col(0).Vec3(), m.Col(1).Vec3(), m.Col(2).Vec3()
	scale = mgl32.Vec3{
		math32.Sqrt(c0.Dot(c0)),
		math32.Sqrt(c1.Dot(c1)),
		math32.Sqrt(c2.Dot(c2)),
	}
	if c0.Cross(c1).Dot(c2) < 0 {
		scale[0] = -scale[0]
	}

	var r mgl32.Mat3
	for col, c := range [3]mgl32.Vec3{c0, c1, c2} {
		s := scale[col]
		if math32.Abs(s) < 1e-8 {
			s = 1
		}
		r[col*3+0] = c[0] / s
		r[col*3+1] = c[1] / s
		r[col*3+2] = c[2] / s
	}
	rot = mgl32.Mat4ToQuat(r.Mat4()).Normalize()
	return pos, rot, scale
}

// ApproxEqual reports whether a and b match within Epsilon per component.
func ApproxEqual(a, b mgl32.Mat4) bool {
	return a.ApproxEqualThreshold(b, Epsilon)
}
