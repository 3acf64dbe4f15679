package math

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Axis selects a rotation axis.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Radians converts degrees to radians.
func Radians(deg float32) float32 {
	return deg * math32.Pi / 180
}

// RotateAxis returns a homogeneous rotation of deg degrees around a basis axis.
func RotateAxis(axis Axis, deg float32) mgl32.Mat4 {
	switch axis {
	case AxisX:
		return mgl32.HomogRotate3DX(Radians(deg))
	case AxisY:
		return mgl32.HomogRotate3DY(Radians(deg))
	default:
		return mgl32.HomogRotate3DZ(Radians(deg))
	}
}

// EulerXYZ builds the rotation for Euler angles in degrees applied X first,
// then Y, then Z (R = Rz * Ry * Rx). This is the FBX default rotation order.
func EulerXYZ(deg mgl32.Vec3) mgl32.Mat3 {
	rx := mgl32.Rotate3DX(Radians(deg[0]))
	ry := mgl32.Rotate3DY(Radians(deg[1]))
	rz := mgl32.Rotate3DZ(Radians(deg[2]))
	return rz.Mul3(ry).Mul3(rx)
}

// TRS composes T * R * S.
func TRS(t mgl32.Vec3, r mgl32.Mat3, s mgl32.Vec3) mgl32.Mat4 {
	return FromMat3Translation(r, t).Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}
