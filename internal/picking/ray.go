// Package picking provides ray casting against flattened scene views.
package picking

import (
	gomath "math"

	"github.com/Faultbox/bimscene/pkg/math"
	"github.com/Faultbox/bimscene/pkg/scene"
)

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    [3]float32
	Direction [3]float32 // Normalized direction
}

// NewRay creates a ray, normalizing dir. ok is false for a zero direction.
func NewRay(origin, dir [3]float32) (r Ray, ok bool) {
	d := math.V3(dir)
	if d.Length() == 0 {
		return Ray{}, false
	}
	return Ray{Origin: origin, Direction: d.Normalize().Array()}, true
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) [3]float32 {
	return math.V3(r.Origin).Add(math.V3(r.Direction).Scale(t)).Array()
}

// IntersectBox tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectBox(box math.Box3) (t float32, hit bool) {
	if box.IsEmpty() {
		return 0, false
	}

	tmin := float32(-gomath.MaxFloat32)
	tmax := float32(gomath.MaxFloat32)

	for axis := 0; axis < 3; axis++ {
		if r.Direction[axis] == 0 {
			// Parallel to the slab: must already lie between its planes
			if r.Origin[axis] < box.Min[axis] || r.Origin[axis] > box.Max[axis] {
				return 0, false
			}
			continue
		}
		t1 := (box.Min[axis] - r.Origin[axis]) / r.Direction[axis]
		t2 := (box.Max[axis] - r.Origin[axis]) / r.Direction[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}

	// Entry point, or exit point if starting inside
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// Hit is the result of a successful pick.
type Hit struct {
	View     scene.RenderView
	Index    int // position of View in the picked slice
	Distance float32
	Point    [3]float32
}

// Pick returns the view whose world bound the ray hits nearest to its
// origin. Ties go to the earlier view.
func Pick(views []scene.RenderView, r Ray) (Hit, bool) {
	best := Hit{Index: -1}
	for i := range views {
		t, ok := r.IntersectBox(views[i].Bounds)
		if !ok {
			continue
		}
		if best.Index < 0 || t < best.Distance {
			best = Hit{View: views[i], Index: i, Distance: t}
		}
	}
	if best.Index < 0 {
		return Hit{}, false
	}
	best.Point = r.At(best.Distance)
	return best, true
}
