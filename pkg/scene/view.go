package scene

import "github.com/Faultbox/bimscene/pkg/math"

// RenderView is one world-positioned mesh produced by flattening.
// Views are values; Mesh and Props are shared with the input tree and must
// be treated as read-only.
type RenderView struct {
	NodeID  string    // owning node
	Type    string    // owning node's type tag
	Mesh    *Mesh     // local geometry, untouched
	World   math.Mat4 // root-to-node composed transform
	Bounds  math.Box3 // world-space bound
	MeshKey string    // mesh identifier, or NodeID when the mesh has none
	Props   *Object   // owning node's property bag
}

func newRenderView(n *Node, m *Mesh, world math.Mat4) RenderView {
	key := m.ID
	if key == "" {
		key = n.ID
	}
	return RenderView{
		NodeID:  n.ID,
		Type:    n.Type,
		Mesh:    m,
		World:   world,
		Bounds:  worldBounds(m, world),
		MeshKey: key,
		Props:   n.Props,
	}
}

// worldBounds transforms the cached local bound when present, otherwise
// every vertex.
func worldBounds(m *Mesh, world math.Mat4) math.Box3 {
	if m.Bounds != nil {
		return m.Bounds.Transform(world)
	}
	b := math.EmptyBox()
	v := m.Vertices
	for i := 0; i+2 < len(v); i += 3 {
		b = b.ExpandByPoint(world.TransformPoint([3]float32{v[i], v[i+1], v[i+2]}))
	}
	return b
}
