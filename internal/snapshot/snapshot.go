// Package snapshot combines a flattened scene with its phase index and
// publishes the result for presentation queries.
package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/Faultbox/bimscene/pkg/math"
	"github.com/Faultbox/bimscene/pkg/phase"
	"github.com/Faultbox/bimscene/pkg/scene"
)

// Snapshot is an immutable loaded model.
type Snapshot struct {
	ModelID        string
	Views          []scene.RenderView
	Phases         *phase.Tree
	SceneAnomalies []scene.Anomaly
	Bounds         math.Box3 // union of all view bounds
	LoadedAt       time.Time
}

// Visible returns the views of elements active in phase p.
func (s *Snapshot) Visible(p phase.ID) []scene.RenderView {
	return s.filter(s.Phases.Active(p))
}

// Context returns the views of elements that existed before phase p and are
// still standing, typically drawn greyed out.
func (s *Snapshot) Context(p phase.ID) []scene.RenderView {
	return s.filter(s.Phases.Existing(p))
}

// New returns the views of elements created in phase p.
func (s *Snapshot) New(p phase.ID) []scene.RenderView {
	return s.filter(s.Phases.Created(p))
}

// Demolished returns the views of elements demolished in phase p.
func (s *Snapshot) Demolished(p phase.ID) []scene.RenderView {
	return s.filter(s.Phases.Demolished(p))
}

// filter keeps view order.
func (s *Snapshot) filter(set phase.Set) []scene.RenderView {
	if set.Len() == 0 {
		return nil
	}
	out := make([]scene.RenderView, 0, set.Len())
	for _, v := range s.Views {
		if set.Has(v.NodeID) {
			out = append(out, v)
		}
	}
	return out
}

func boundsOf(views []scene.RenderView) math.Box3 {
	b := math.EmptyBox()
	for _, v := range views {
		b = b.Union(v.Bounds)
	}
	return b
}

// Store holds the current snapshot. Publishing swaps the pointer; readers
// holding an older snapshot keep using it undisturbed.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// Current returns the latest published snapshot, or nil.
func (st *Store) Current() *Snapshot {
	return st.current.Load()
}

// Publish replaces the current snapshot and returns the previous one.
func (st *Store) Publish(s *Snapshot) *Snapshot {
	return st.current.Swap(s)
}
