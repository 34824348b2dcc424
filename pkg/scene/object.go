package scene

import (
	gomath "math"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is a node's authored key/value bag. Iteration follows the order the
// keys were written in the source document.
//
// Values are nil, bool, float64, string, []any or *Object. Hand-built trees
// may also use other numeric kinds and []float32 for numeric arrays.
type Object = orderedmap.OrderedMap[string, any]

// NewObject returns an empty Object.
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

// ObjectOf builds an Object from alternating key/value pairs, preserving the
// argument order. It panics on an odd argument count or a non-string key and
// is meant for fixtures and literals.
func ObjectOf(kv ...any) *Object {
	if len(kv)%2 != 0 {
		panic("scene.ObjectOf: odd number of arguments")
	}
	obj := NewObject()
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic("scene.ObjectOf: key must be a string")
		}
		obj.Set(key, kv[i+1])
	}
	return obj
}

// Keys returns the object's keys in authored order.
func Keys(obj *Object) []string {
	if obj == nil {
		return nil
	}
	keys := make([]string, 0, obj.Len())
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func lookup(obj *Object, key string) (any, bool) {
	if obj == nil || key == "" {
		return nil, false
	}
	return obj.Get(key)
}

// identifier returns the value of an identifier-shaped field: a non-empty
// string, or a number rendered in its shortest decimal form.
func identifier(obj *Object, key string) (string, bool) {
	v, ok := lookup(obj, key)
	if !ok {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	}
	return "", false
}

func stringField(obj *Object, key string) string {
	v, _ := lookup(obj, key)
	s, _ := v.(string)
	return s
}

func toFloat32(v any) (float32, bool) {
	switch n := v.(type) {
	case float64:
		return float32(n), true
	case float32:
		return n, true
	case int:
		return float32(n), true
	case int64:
		return float32(n), true
	case uint32:
		return float32(n), true
	}
	return 0, false
}

// floats converts a numeric array. ok is false when v is not an array or any
// element is not a number.
func floats(v any) (out []float32, ok bool) {
	switch arr := v.(type) {
	case []float32:
		return arr, true
	case []any:
		out = make([]float32, 0, len(arr))
		for _, e := range arr {
			f, isNum := toFloat32(e)
			if !isNum {
				return out, false
			}
			out = append(out, f)
		}
		return out, true
	}
	return nil, false
}

// uints converts an index array. ok is false when v is not an array or any
// element is not a whole number within uint32 range.
func uints(v any) (out []uint32, ok bool) {
	switch arr := v.(type) {
	case []uint32:
		return arr, true
	case []any:
		out = make([]uint32, 0, len(arr))
		for _, e := range arr {
			u, isIndex := toUint32(e)
			if !isIndex {
				return nil, false
			}
			out = append(out, u)
		}
		return out, true
	}
	return nil, false
}

func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n > gomath.MaxUint32 || n != gomath.Trunc(n) {
			return 0, false
		}
		return uint32(n), true
	case int:
		if n < 0 || int64(n) > gomath.MaxUint32 {
			return 0, false
		}
		return uint32(n), true
	case int64:
		if n < 0 || n > gomath.MaxUint32 {
			return 0, false
		}
		return uint32(n), true
	case uint32:
		return n, true
	}
	return 0, false
}
