package scene

import "fmt"

// AnomalyKind classifies a recoverable structural problem found while flattening.
type AnomalyKind int

const (
	AnomalyMalformedTransform AnomalyKind = iota // local transform without 16 elements
	AnomalyCycleAvoided                          // child already on the ancestor path
	AnomalyAmbiguousChildren                     // explicit list won over matching properties
	AnomalyMalformedChild                        // child entry that is not a usable node
	AnomalyDepthLimit                            // subtree cut at the configured depth
	AnomalyMalformedMesh                         // mesh payload dropped as undecodable
)

// String returns a short name for the anomaly kind.
func (k AnomalyKind) String() string {
	switch k {
	case AnomalyMalformedTransform:
		return "malformed_transform"
	case AnomalyCycleAvoided:
		return "cycle_avoided"
	case AnomalyAmbiguousChildren:
		return "ambiguous_children"
	case AnomalyMalformedChild:
		return "malformed_child"
	case AnomalyDepthLimit:
		return "depth_limit"
	case AnomalyMalformedMesh:
		return "malformed_mesh"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Anomaly is a warning surfaced alongside the flattened views. Traversal
// continues past every anomaly.
type Anomaly struct {
	Kind   AnomalyKind
	NodeID string // node the anomaly was found on
	Detail string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s at %s: %s", a.Kind, a.NodeID, a.Detail)
}
