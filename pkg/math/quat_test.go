package math

import (
	"math"
	"testing"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
	if !q.ToMat4().IsIdentity() {
		t.Error("Identity quaternion should give identity matrix")
	}
}

func TestQuatNormalize(t *testing.T) {
	q := Quat{X: 1, Y: 2, Z: 3, W: 4}
	n := q.Normalize()

	length := float32(math.Sqrt(float64(n.X*n.X + n.Y*n.Y + n.Z*n.Z + n.W*n.W)))
	if math.Abs(float64(length-1.0)) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}

	if z := (Quat{}).Normalize(); z != QuatIdentity() {
		t.Errorf("Zero quaternion should normalize to identity, got %+v", z)
	}
}

// quarterTurnZ rotates 90 degrees about +Z.
var quarterTurnZ = Quat{Z: float32(math.Sin(math.Pi / 4)), W: float32(math.Cos(math.Pi / 4))}

func TestQuatToMat4(t *testing.T) {
	// 90 degrees about +Y maps +X onto -Z.
	q := Quat{Y: float32(math.Sin(math.Pi / 4)), W: float32(math.Cos(math.Pi / 4))}
	want := Mat4{
		0, 0, -1, 0,
		0, 1, 0, 0,
		1, 0, 0, 0,
		0, 0, 0, 1,
	}
	if !q.ToMat4().ApproxEqual(want, 1e-5) {
		t.Errorf("Quaternion matrix %v, want %v", q.ToMat4(), want)
	}

	// Scaled quaternions describe the same rotation.
	scaled := Quat{Y: 2 * q.Y, W: 2 * q.W}
	if !scaled.ToMat4().ApproxEqual(want, 1e-5) {
		t.Errorf("Unnormalized quaternion matrix %v, want %v", scaled.ToMat4(), want)
	}
}

func TestQuatMul(t *testing.T) {
	half := quarterTurnZ.Mul(quarterTurnZ)

	p := half.ToMat4().TransformPoint([3]float32{1, 0, 0})
	if math.Abs(float64(p[0]+1)) > 1e-5 || math.Abs(float64(p[1])) > 1e-5 {
		t.Errorf("Two quarter turns about Z should map (1,0,0) to (-1,0,0), got %v", p)
	}
}

func TestCompose(t *testing.T) {
	m := Compose([3]float32{10, 0, 0}, quarterTurnZ, [3]float32{2, 2, 2})

	// Scale first, then rotate (1,0,0) -> (0,1,0), then translate
	p := m.TransformPoint([3]float32{1, 0, 0})
	want := [3]float32{10, 2, 0}
	for i := range want {
		if math.Abs(float64(p[i]-want[i])) > 1e-5 {
			t.Fatalf("Compose point = %v, want %v", p, want)
		}
	}

	if !Compose([3]float32{}, QuatIdentity(), [3]float32{1, 1, 1}).IsIdentity() {
		t.Error("Compose of neutral parts should be identity")
	}
}
