// Package scene flattens hierarchical BIM model trees into world-space render views.
package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/bimscene/pkg/math"
)

// Scene errors.
var (
	ErrMissingID   = errors.New("node has no identifier")
	ErrInvalidRoot = errors.New("invalid root node")
)

// Schema names the keys a node object declares for its well-known fields.
type Schema struct {
	ID        string `yaml:"id"`
	Type      string `yaml:"type"`
	Transform string `yaml:"transform"`
	Meshes    string `yaml:"meshes"`
	Children  string `yaml:"children"`

	// Mesh payload keys.
	Vertices string `yaml:"vertices"`
	Indices  string `yaml:"indices"`
	Bounds   string `yaml:"bounds"`
}

// DefaultSchema returns the key names used by the model repository export.
func DefaultSchema() Schema {
	return Schema{
		ID:        "id",
		Type:      "speckle_type",
		Transform: "transform",
		Meshes:    "displayValue",
		Children:  "elements",
		Vertices:  "vertices",
		Indices:   "faces",
		Bounds:    "bbox",
	}
}

// declared reports whether key is one of the node-level keys the schema owns.
func (s Schema) declared(key string) bool {
	switch key {
	case s.ID, s.Type, s.Transform, s.Meshes, s.Children:
		return true
	}
	return false
}

// Mesh is a displayable geometry payload embedded in a node.
type Mesh struct {
	ID       string
	Vertices []float32 // flat xyz
	Indices  []uint32
	Bounds   *math.Box3 // cached local bound, nil when not authored
}

// VertexCount returns the number of complete xyz triples.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// Node is one entry of the model hierarchy.
type Node struct {
	ID   string
	Type string

	// Transform is the local matrix as authored; nil means identity.
	// Anything other than 16 elements is treated as identity during flattening.
	Transform []float32

	Meshes []*Mesh

	// Children is the explicit ordered child list for trees built in code.
	// Decoded nodes keep their raw child objects in Props and are resolved
	// lazily by the flattener.
	Children []*Node

	// Props is the authored property bag, passed through untouched.
	Props *Object

	// issues are decode problems reported when the node is flattened.
	issues []Anomaly
}

// DecodeNode converts a generic object into a Node. It is shallow: child
// objects stay in Props and are decoded when the traversal reaches them.
// Mesh entries that cannot be decoded without loss are dropped and reported
// as AnomalyMalformedMesh when the node is flattened.
func DecodeNode(obj *Object, schema Schema) (*Node, error) {
	id, ok := identifier(obj, schema.ID)
	if !ok {
		return nil, fmt.Errorf("%w: key %q", ErrMissingID, schema.ID)
	}

	n := &Node{
		ID:    id,
		Type:  stringField(obj, schema.Type),
		Props: obj,
	}

	if raw, ok := lookup(obj, schema.Transform); ok && raw != nil {
		n.Transform = decodeTransform(raw)
	}

	if raw, ok := lookup(obj, schema.Meshes); ok {
		n.Meshes, n.issues = decodeMeshes(n.ID, raw, schema)
	}

	return n, nil
}

// decodeTransform accepts a flat numeric array, an object wrapping one
// under "matrix" or "value", or a decomposed object with any of
// "translation", "rotation" (quaternion x, y, z, w) and "scale". A malformed
// value decodes to an empty, non-nil slice so the flattener reports it
// instead of silently using identity.
func decodeTransform(raw any) []float32 {
	if obj, ok := raw.(*Object); ok {
		if m, isTRS, ok := decodeTRS(obj); isTRS {
			if !ok {
				return []float32{}
			}
			return m[:]
		}
		for _, key := range []string{"matrix", "value"} {
			if inner, found := obj.Get(key); found {
				raw = inner
				break
			}
		}
	}
	values, ok := floats(raw)
	if !ok {
		return []float32{}
	}
	return values
}

// decodeTRS composes a decomposed transform. isTRS is false when obj has
// none of the decomposed keys.
func decodeTRS(obj *Object) (m math.Mat4, isTRS, ok bool) {
	translation := [3]float32{0, 0, 0}
	rotation := math.QuatIdentity()
	scale := [3]float32{1, 1, 1}

	if raw, found := obj.Get("translation"); found {
		isTRS = true
		if !triple(raw, &translation) {
			return m, true, false
		}
	}
	if raw, found := obj.Get("rotation"); found {
		isTRS = true
		q, isNum := floats(raw)
		if !isNum || len(q) != 4 {
			return m, true, false
		}
		rotation = math.Quat{X: q[0], Y: q[1], Z: q[2], W: q[3]}
	}
	if raw, found := obj.Get("scale"); found {
		isTRS = true
		if !triple(raw, &scale) {
			return m, true, false
		}
	}
	if !isTRS {
		return m, false, false
	}
	return math.Compose(translation, rotation, scale), true, true
}

func triple(raw any, dst *[3]float32) bool {
	v, ok := floats(raw)
	if !ok || len(v) != 3 {
		return false
	}
	copy(dst[:], v)
	return true
}

func decodeMeshes(nodeID string, raw any, schema Schema) ([]*Mesh, []Anomaly) {
	var items []any
	switch v := raw.(type) {
	case *Object:
		items = []any{v}
	case []any:
		items = v
	case nil:
		return nil, nil
	default:
		return nil, []Anomaly{{
			Kind:   AnomalyMalformedMesh,
			NodeID: nodeID,
			Detail: fmt.Sprintf("%s is a %T, not a mesh list", schema.Meshes, raw),
		}}
	}

	var issues []Anomaly
	meshes := make([]*Mesh, 0, len(items))
	for i, item := range items {
		obj, ok := item.(*Object)
		if !ok || obj == nil {
			issues = append(issues, Anomaly{
				Kind:   AnomalyMalformedMesh,
				NodeID: nodeID,
				Detail: fmt.Sprintf("%s[%d] is not an object", schema.Meshes, i),
			})
			continue
		}
		m, err := decodeMesh(obj, schema)
		if err != nil {
			issues = append(issues, Anomaly{
				Kind:   AnomalyMalformedMesh,
				NodeID: nodeID,
				Detail: fmt.Sprintf("%s[%d]: %v", schema.Meshes, i, err),
			})
			continue
		}
		meshes = append(meshes, m)
	}
	return meshes, issues
}

// decodeMesh fails rather than keep a truncated or rounded payload.
func decodeMesh(obj *Object, schema Schema) (*Mesh, error) {
	m := &Mesh{}
	m.ID, _ = identifier(obj, schema.ID)
	if raw, ok := lookup(obj, schema.Vertices); ok && raw != nil {
		v, isNum := floats(raw)
		if !isNum {
			return nil, fmt.Errorf("%s is not a numeric array", schema.Vertices)
		}
		m.Vertices = v
	}
	if raw, ok := lookup(obj, schema.Indices); ok && raw != nil {
		idx, isIndex := uints(raw)
		if !isIndex {
			return nil, fmt.Errorf("%s holds a value that is not a uint32 index", schema.Indices)
		}
		m.Indices = idx
	}
	if raw, ok := lookup(obj, schema.Bounds); ok {
		m.Bounds = decodeBox(raw)
	}
	return m, nil
}

// decodeBox reads {"min": [x,y,z], "max": [x,y,z]}.
func decodeBox(raw any) *math.Box3 {
	obj, ok := raw.(*Object)
	if !ok {
		return nil
	}
	minRaw, _ := obj.Get("min")
	maxRaw, _ := obj.Get("max")
	lo, okMin := floats(minRaw)
	hi, okMax := floats(maxRaw)
	if !okMin || !okMax || len(lo) != 3 || len(hi) != 3 {
		return nil
	}
	return &math.Box3{
		Min: [3]float32{lo[0], lo[1], lo[2]},
		Max: [3]float32{hi[0], hi[1], hi[2]},
	}
}
