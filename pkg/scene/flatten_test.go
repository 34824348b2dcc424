package scene

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/bimscene/pkg/math"
)

func translate(x, y, z float32) []float32 {
	m := math.Translate(x, y, z)
	return m[:]
}

func pointMesh(id string) *Mesh {
	return &Mesh{ID: id, Vertices: []float32{0, 0, 0}}
}

func TestFlatten_TransformComposition(t *testing.T) {
	grandchild := &Node{ID: "gc", Transform: translate(0, 1, 0), Meshes: []*Mesh{pointMesh("m")}}
	child := &Node{ID: "c", Transform: translate(1, 0, 0), Children: []*Node{grandchild}}
	root := &Node{ID: "root", Children: []*Node{child}}

	res, err := Flatten(root)
	require.NoError(t, err)
	require.Len(t, res.Views, 1)

	v := res.Views[0]
	assert.Equal(t, "gc", v.NodeID)
	assert.Equal(t, [3]float32{1, 1, 0}, v.World.TransformPoint([3]float32{0, 0, 0}))
	assert.Equal(t, [3]float32{1, 1, 0}, v.Bounds.Min)
	assert.Equal(t, [3]float32{1, 1, 0}, v.Bounds.Max)
	assert.Empty(t, res.Anomalies)
}

func TestFlatten_MeshFanOut(t *testing.T) {
	child := &Node{ID: "child", Transform: translate(0, 0, 5), Meshes: []*Mesh{pointMesh("c1")}}
	root := &Node{
		ID:        "root",
		Transform: translate(2, 0, 0),
		Meshes:    []*Mesh{pointMesh("a"), pointMesh("b")},
		Children:  []*Node{child},
	}

	res, err := Flatten(root)
	require.NoError(t, err)
	require.Len(t, res.Views, 3)

	assert.Equal(t, "root", res.Views[0].NodeID)
	assert.Equal(t, "root", res.Views[1].NodeID)
	assert.Equal(t, res.Views[0].World, res.Views[1].World)
	assert.Equal(t, []string{"a", "b", "c1"}, meshKeys(res.Views))

	assert.Equal(t, "child", res.Views[2].NodeID)
	assert.Equal(t, [3]float32{2, 0, 5}, res.Views[2].World.TransformPoint([3]float32{}))
}

func TestFlatten_PreOrderSourceOrder(t *testing.T) {
	leaf := func(id string) *Node { return &Node{ID: id, Meshes: []*Mesh{pointMesh(id)}} }
	a := &Node{ID: "a", Meshes: []*Mesh{pointMesh("a")}, Children: []*Node{leaf("a1"), leaf("a2")}}
	b := &Node{ID: "b", Meshes: []*Mesh{pointMesh("b")}, Children: []*Node{leaf("b1")}}
	root := &Node{ID: "root", Children: []*Node{a, b, leaf("c")}}

	res, err := Flatten(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a1", "a2", "b", "b1", "c"}, meshKeys(res.Views))
	assert.Equal(t, 7, res.NodesVisited)
}

func TestFlatten_CycleSafety(t *testing.T) {
	x := &Node{ID: "x", Meshes: []*Mesh{pointMesh("mx")}}
	y := &Node{ID: "y", Meshes: []*Mesh{pointMesh("my")}, Children: []*Node{x}}
	x.Children = []*Node{y}
	root := &Node{ID: "root", Children: []*Node{x}}

	res, err := Flatten(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"mx", "my"}, meshKeys(res.Views))
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, AnomalyCycleAvoided, res.Anomalies[0].Kind)
	assert.Equal(t, "y", res.Anomalies[0].NodeID)
}

func TestFlatten_SelfLoop(t *testing.T) {
	root := &Node{ID: "root"}
	root.Children = []*Node{root}

	res, err := Flatten(root)
	require.NoError(t, err)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, AnomalyCycleAvoided, res.Anomalies[0].Kind)
	assert.Equal(t, 1, res.NodesVisited)
}

func TestFlatten_SiblingsMayShareID(t *testing.T) {
	// Only ancestors count as cycles; a repeated id across branches is visited twice.
	shared := &Node{ID: "shared", Meshes: []*Mesh{{}}}
	a := &Node{ID: "a", Children: []*Node{shared}}
	b := &Node{ID: "b", Children: []*Node{shared}}
	root := &Node{ID: "root", Children: []*Node{a, b}}

	res, err := Flatten(root)
	require.NoError(t, err)
	assert.Len(t, res.Views, 2)
	assert.Empty(t, res.Anomalies)
}

func TestFlatten_MalformedTransform(t *testing.T) {
	child := &Node{ID: "child", Transform: []float32{1, 2, 3}, Meshes: []*Mesh{pointMesh("m")}}
	root := &Node{ID: "root", Transform: translate(1, 0, 0), Children: []*Node{child}}

	res, err := Flatten(root)
	require.NoError(t, err)
	require.Len(t, res.Views, 1)
	assert.Equal(t, math.Translate(1, 0, 0), res.Views[0].World)

	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, AnomalyMalformedTransform, res.Anomalies[0].Kind)
	assert.Equal(t, "child", res.Anomalies[0].NodeID)
}

func TestFlatten_RowMajorTransforms(t *testing.T) {
	rowMajor := []float32{
		1, 0, 0, 4,
		0, 1, 0, 5,
		0, 0, 1, 6,
		0, 0, 0, 1,
	}
	root := &Node{ID: "root", Transform: rowMajor, Meshes: []*Mesh{pointMesh("m")}}

	res, err := NewFlattener(WithRowMajor(true)).Flatten(root)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{4, 5, 6}, res.Views[0].Bounds.Min)
}

func TestFlatten_InvalidRoot(t *testing.T) {
	_, err := Flatten(nil)
	assert.ErrorIs(t, err, ErrInvalidRoot)

	_, err = Flatten(&Node{})
	assert.ErrorIs(t, err, ErrInvalidRoot)
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestFlatten_EmptyNodeStillVisited(t *testing.T) {
	res, err := Flatten(&Node{ID: "lonely"})
	require.NoError(t, err)
	assert.Empty(t, res.Views)
	assert.Equal(t, 1, res.NodesVisited)
}

func TestFlatten_MeshKeyFallback(t *testing.T) {
	root := &Node{ID: "wall-1", Type: "Objects.BuiltElements.Wall", Meshes: []*Mesh{{}, {ID: "mesh-9"}}}

	res, err := Flatten(root)
	require.NoError(t, err)
	require.Len(t, res.Views, 2)
	assert.Equal(t, "wall-1", res.Views[0].MeshKey)
	assert.Equal(t, "mesh-9", res.Views[1].MeshKey)
	assert.Equal(t, "Objects.BuiltElements.Wall", res.Views[0].Type)
	assert.True(t, res.Views[0].Bounds.IsEmpty())
}

func TestFlatten_BoundsFromCachedBox(t *testing.T) {
	cached := math.Box3{Min: [3]float32{0, 0, 0}, Max: [3]float32{1, 2, 3}}
	mesh := &Mesh{
		// Vertices disagree with the cached bound on purpose: the cache wins.
		Vertices: []float32{100, 100, 100},
		Bounds:   &cached,
	}
	root := &Node{ID: "root", Transform: translate(10, 0, 0), Meshes: []*Mesh{mesh}}

	res, err := Flatten(root)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{10, 0, 0}, res.Views[0].Bounds.Min)
	assert.Equal(t, [3]float32{11, 2, 3}, res.Views[0].Bounds.Max)
}

func TestFlatten_BoundsFromVertices(t *testing.T) {
	mesh := &Mesh{Vertices: []float32{0, 0, 0, 1, 1, 1, -1, 2, 0}}
	root := &Node{ID: "root", Transform: translate(0, 0, 1), Meshes: []*Mesh{mesh}}

	res, err := Flatten(root)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{-1, 0, 1}, res.Views[0].Bounds.Min)
	assert.Equal(t, [3]float32{1, 2, 2}, res.Views[0].Bounds.Max)
}

func TestFlatten_Idempotent(t *testing.T) {
	root := decodedFixture(t)

	first, err := Flatten(root)
	require.NoError(t, err)
	second, err := Flatten(root)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, meshKeys(first.Views), meshKeys(second.Views))
}

func TestFlatten_DecodedTree(t *testing.T) {
	res, err := Flatten(decodedFixture(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"floor-mesh", "wall-a", "wall-b-mesh", "door-mesh"}, meshKeys(res.Views))
	door := res.Views[3]
	assert.Equal(t, "door", door.NodeID)
	assert.Equal(t, [3]float32{1, 1, 0}, door.Bounds.Min)
	assert.Empty(t, res.Anomalies)
}

func TestFlatten_ParallelMatchesSequential(t *testing.T) {
	root := wideTree(8, 4)
	root.Children[3].Transform = []float32{1}
	root.Children[5].Children[0].Children = []*Node{root.Children[5]}

	seq, err := NewFlattener().Flatten(root)
	require.NoError(t, err)
	par, err := NewFlattener(WithParallel(4)).Flatten(root)
	require.NoError(t, err)

	assert.Equal(t, seq, par)
	assert.Len(t, seq.Anomalies, 2)
}

func TestFlatten_MaxDepth(t *testing.T) {
	root := chain(10)

	res, err := NewFlattener(WithMaxDepth(3)).Flatten(root)
	require.NoError(t, err)
	assert.Equal(t, 4, res.NodesVisited)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, AnomalyDepthLimit, res.Anomalies[0].Kind)
	assert.Equal(t, "n3", res.Anomalies[0].NodeID)
}

func TestFlatten_DeepHierarchy(t *testing.T) {
	const depth = 200000
	res, err := Flatten(chain(depth))
	require.NoError(t, err)
	assert.Equal(t, depth, res.NodesVisited)
	assert.Len(t, res.Views, depth)

	last := res.Views[len(res.Views)-1]
	assert.Equal(t, fmt.Sprintf("n%d", depth-1), last.NodeID)
}

func TestFlatten_ReportsMalformedMeshes(t *testing.T) {
	root, err := DecodeNode(ObjectOf(
		"id", "slab",
		"displayValue", []any{
			ObjectOf("id", "bad", "vertices", []any{0.0, 0.0, 0.0}, "faces", []any{0.0, 1.5, 2.0}),
			ObjectOf("id", "good", "vertices", []any{0.0, 0.0, 0.0}, "faces", []any{16777217.0}),
			"not a mesh",
		},
	), DefaultSchema())
	require.NoError(t, err)

	res, err := Flatten(root)
	require.NoError(t, err)

	require.Len(t, res.Views, 1)
	assert.Equal(t, "good", res.Views[0].MeshKey)
	assert.Equal(t, []uint32{16777217}, res.Views[0].Mesh.Indices)

	require.Len(t, res.Anomalies, 2)
	for _, a := range res.Anomalies {
		assert.Equal(t, AnomalyMalformedMesh, a.Kind)
		assert.Equal(t, "slab", a.NodeID)
		assert.Equal(t, "malformed_mesh", a.Kind.String())
	}
}

func TestFlatten_LogsAnomalies(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := NewFlattener(WithLogger(zap.New(core)))

	root := &Node{ID: "root", Transform: []float32{}}
	_, err := f.Flatten(root)
	require.NoError(t, err)

	entries := logs.FilterMessage("scene anomaly").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "malformed_transform", entries[0].ContextMap()["kind"])
}

func meshKeys(views []RenderView) []string {
	keys := make([]string, len(views))
	for i, v := range views {
		keys[i] = v.MeshKey
	}
	return keys
}

// chain builds n0 -> n1 -> ... each translated by one unit on X with one mesh.
func chain(n int) *Node {
	root := &Node{ID: "n0", Meshes: []*Mesh{pointMesh("")}}
	cur := root
	for i := 1; i < n; i++ {
		next := &Node{ID: fmt.Sprintf("n%d", i), Transform: translate(1, 0, 0), Meshes: []*Mesh{pointMesh("")}}
		cur.Children = []*Node{next}
		cur = next
	}
	return root
}

func wideTree(width, depth int) *Node {
	var build func(prefix string, level int) *Node
	build = func(prefix string, level int) *Node {
		n := &Node{ID: prefix, Transform: translate(float32(level), 0, 0), Meshes: []*Mesh{pointMesh(prefix + "/m")}}
		if level == depth {
			return n
		}
		for i := 0; i < width; i++ {
			n.Children = append(n.Children, build(fmt.Sprintf("%s.%d", prefix, i), level+1))
		}
		return n
	}
	return build("r", 1)
}

// decodedFixture mirrors a repository export: explicit "elements" on the root,
// and a level whose children hang off an arbitrary property.
func decodedFixture(t *testing.T) *Node {
	t.Helper()

	door := ObjectOf(
		"id", "door",
		"transform", []any{1.0, 0.0, 0.0, 0.0, 0.0, 1.0, 0.0, 0.0, 0.0, 0.0, 1.0, 0.0, 0.0, 1.0, 0.0, 1.0},
		"displayValue", ObjectOf("id", "door-mesh", "vertices", []any{0.0, 0.0, 0.0}),
	)
	wallB := ObjectOf(
		"id", "wall-b",
		"displayValue", []any{ObjectOf("id", "wall-b-mesh", "vertices", []any{0.0, 0.0, 0.0})},
		"hostedElements", []any{door},
	)
	wallA := ObjectOf(
		"id", "wall-a",
		"displayValue", []any{ObjectOf("vertices", []any{0.0, 0.0, 0.0})},
	)
	level := ObjectOf(
		"id", "level-1",
		"transform", ObjectOf("matrix", []any{1.0, 0.0, 0.0, 0.0, 0.0, 1.0, 0.0, 0.0, 0.0, 0.0, 1.0, 0.0, 1.0, 0.0, 0.0, 1.0}),
		"name", "Level 1",
		"walls", []any{wallA, wallB},
	)
	root := ObjectOf(
		"id", "model",
		"displayValue", ObjectOf("id", "floor-mesh", "vertices", []any{0.0, 0.0, 0.0}),
		"elements", []any{level},
	)

	n, err := DecodeNode(root, DefaultSchema())
	require.NoError(t, err)
	return n
}
