package scene

import (
	"fmt"
	"strings"
)

// IsNodeLike reports whether v is an object exposing an identifier field.
// It is the predicate used to recognise child collections among arbitrary
// properties.
func IsNodeLike(v any, schema Schema) bool {
	obj, ok := v.(*Object)
	if !ok || obj == nil {
		return false
	}
	_, ok = identifier(obj, schema.ID)
	return ok
}

// childCollection returns v as an array when its first element is node-like.
func childCollection(v any, schema Schema) ([]any, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	return arr, IsNodeLike(arr[0], schema)
}

// ResolveChildren determines a node's children in two steps:
//
//  1. the explicit child list: n.Children, else the array under the
//     schema's children key, when non-empty;
//  2. otherwise every other property, in authored key order, whose value is
//     an array starting with a node-like object.
//
// When step 1 applies, step 2 is not also applied; if it would have matched,
// an AnomalyAmbiguousChildren is returned. Entries that cannot be decoded as
// nodes are skipped and reported.
func ResolveChildren(n *Node, schema Schema) ([]*Node, []Anomaly) {
	var anomalies []Anomaly

	explicit, explicitAnomalies := explicitChildren(n, schema)
	if explicit != nil {
		anomalies = append(anomalies, explicitAnomalies...)
		if extra := scanChildProperties(n.Props, schema); len(extra) > 0 {
			anomalies = append(anomalies, Anomaly{
				Kind:   AnomalyAmbiguousChildren,
				NodeID: n.ID,
				Detail: fmt.Sprintf("explicit children used, ignored node arrays in %s", strings.Join(extra, ", ")),
			})
		}
		return explicit, anomalies
	}

	var children []*Node
	for _, key := range scanChildProperties(n.Props, schema) {
		raw, _ := n.Props.Get(key)
		decoded, bad := decodeChildren(n.ID, key, raw.([]any), schema)
		children = append(children, decoded...)
		anomalies = append(anomalies, bad...)
	}
	return children, anomalies
}

// explicitChildren returns nil when the node has no non-empty explicit list.
func explicitChildren(n *Node, schema Schema) ([]*Node, []Anomaly) {
	if len(n.Children) > 0 {
		var anomalies []Anomaly
		children := make([]*Node, 0, len(n.Children))
		for i, c := range n.Children {
			if c == nil || c.ID == "" {
				anomalies = append(anomalies, Anomaly{
					Kind:   AnomalyMalformedChild,
					NodeID: n.ID,
					Detail: fmt.Sprintf("child %d has no identifier", i),
				})
				continue
			}
			children = append(children, c)
		}
		return children, anomalies
	}

	raw, ok := lookup(n.Props, schema.Children)
	if !ok {
		return nil, nil
	}
	arr, ok := raw.([]any)
	if !ok || len(arr) == 0 {
		return nil, nil
	}
	children, anomalies := decodeChildren(n.ID, schema.Children, arr, schema)
	if children == nil {
		children = []*Node{}
	}
	return children, anomalies
}

// scanChildProperties lists the non-declared keys holding child collections.
func scanChildProperties(props *Object, schema Schema) []string {
	if props == nil {
		return nil
	}
	var keys []string
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		if schema.declared(pair.Key) {
			continue
		}
		if _, ok := childCollection(pair.Value, schema); ok {
			keys = append(keys, pair.Key)
		}
	}
	return keys
}

func decodeChildren(parentID, key string, arr []any, schema Schema) ([]*Node, []Anomaly) {
	var (
		children  []*Node
		anomalies []Anomaly
	)
	for i, item := range arr {
		obj, ok := item.(*Object)
		if !ok {
			anomalies = append(anomalies, Anomaly{
				Kind:   AnomalyMalformedChild,
				NodeID: parentID,
				Detail: fmt.Sprintf("%s[%d] is not an object", key, i),
			})
			continue
		}
		child, err := DecodeNode(obj, schema)
		if err != nil {
			anomalies = append(anomalies, Anomaly{
				Kind:   AnomalyMalformedChild,
				NodeID: parentID,
				Detail: fmt.Sprintf("%s[%d]: %v", key, i, err),
			})
			continue
		}
		children = append(children, child)
	}
	return children, anomalies
}
