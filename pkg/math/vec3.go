// Package math provides the small vector type shared by vertex buffers,
// morph deltas and spatial queries.
package math

import "math"

// Vec3 is a 3D vector.
type Vec3 struct {
	X, Y, Z float32
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Scale returns v * scalar.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Length returns the magnitude.
func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// Distance returns the distance to another point.
func (v Vec3) Distance(other Vec3) float32 {
	return v.Sub(other).Length()
}

// Abs returns the component-wise absolute value.
func (v Vec3) Abs() Vec3 {
	return Vec3{abs32(v.X), abs32(v.Y), abs32(v.Z)}
}

// Axis returns the component selected by axis (0 = X, 1 = Y, 2 = Z).
func (v Vec3) Axis(axis int) float32 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// NearlyEqual reports whether every component of v and other differs by
// less than eps.
func (v Vec3) NearlyEqual(other Vec3, eps float32) bool {
	d := v.Sub(other).Abs()
	return d.X < eps && d.Y < eps && d.Z < eps
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
