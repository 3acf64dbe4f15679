package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Center returns the midpoint of the box.
func (b Bounds) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the extent of the box on each axis.
func (b Bounds) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

func updateBounds(b *Bounds, p mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// normalize returns v scaled to unit length, or +Y for a degenerate vector.
func normalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() < 0.0001 {
		return mgl32.Vec3{0, 1, 0}
	}
	return v.Normalize()
}
