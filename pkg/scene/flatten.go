package scene

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/bimscene/pkg/math"
)

// Result is the output of one flatten call.
type Result struct {
	Views        []RenderView
	Anomalies    []Anomaly
	NodesVisited int
}

// Flattener walks a node tree and emits one RenderView per mesh.
// A Flattener holds only configuration and is safe for concurrent use.
type Flattener struct {
	log      *zap.Logger
	schema   Schema
	rowMajor bool
	workers  int
	maxDepth int
}

// Option configures a Flattener.
type Option func(*Flattener)

// WithLogger sets the logger anomalies are reported to.
func WithLogger(log *zap.Logger) Option {
	return func(f *Flattener) {
		if log != nil {
			f.log = log
		}
	}
}

// WithSchema sets the node key names used for child and mesh discovery.
func WithSchema(s Schema) Option {
	return func(f *Flattener) { f.schema = s }
}

// WithRowMajor interprets authored transforms as row-major.
func WithRowMajor(rowMajor bool) Option {
	return func(f *Flattener) { f.rowMajor = rowMajor }
}

// WithParallel flattens the root's subtrees on up to workers goroutines.
// Output is identical to the sequential walk.
func WithParallel(workers int) Option {
	return func(f *Flattener) { f.workers = workers }
}

// WithMaxDepth truncates the walk below the given depth (root is depth 0).
// Zero means unlimited.
func WithMaxDepth(depth int) Option {
	return func(f *Flattener) { f.maxDepth = depth }
}

// NewFlattener creates a Flattener with the default schema, column-major
// transforms and a sequential walk.
func NewFlattener(opts ...Option) *Flattener {
	f := &Flattener{
		log:    zap.NewNop(),
		schema: DefaultSchema(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Schema returns the schema the flattener resolves nodes with.
func (f *Flattener) Schema() Schema {
	return f.schema
}

// Flatten flattens root with a default Flattener.
func Flatten(root *Node) (*Result, error) {
	return NewFlattener().Flatten(root)
}

// Flatten resolves every mesh in the tree to world space, depth-first and
// pre-order with children in source order. Structural problems are returned
// as anomalies; only an unusable root is an error.
func (f *Flattener) Flatten(root *Node) (*Result, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalidRoot)
	}
	if root.ID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, ErrMissingID)
	}

	seed := frame{node: root, parent: math.Identity()}

	var res *Result
	if f.workers > 1 {
		res = f.flattenParallel(seed)
	} else {
		w := f.newWalker(nil)
		w.run(seed)
		res = w.result()
	}

	f.log.Debug("flattened model",
		zap.String("root", root.ID),
		zap.Int("nodes", res.NodesVisited),
		zap.Int("views", len(res.Views)),
		zap.Int("anomalies", len(res.Anomalies)))
	return res, nil
}

// flattenParallel visits the root on the calling goroutine, then walks each
// child subtree on its own walker with a private copy of the ancestor path.
func (f *Flattener) flattenParallel(seed frame) *Result {
	rootWalker := f.newWalker(nil)
	children := rootWalker.visit(seed)
	res := rootWalker.result()
	if len(children) == 0 {
		return res
	}

	branches := make([]*walker, len(children))
	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, child := range children {
		branches[i] = f.newWalker([]string{seed.node.ID})
		w := branches[i]
		g.Go(func() error {
			w.run(child)
			return nil
		})
	}
	_ = g.Wait()

	for _, w := range branches {
		res.Views = append(res.Views, w.views...)
		res.Anomalies = append(res.Anomalies, w.anomalies...)
		res.NodesVisited += w.visited
	}
	return res
}

// frame is one pending step of the explicit traversal stack. Exit frames pop
// their node off the ancestor path once its subtree is done.
type frame struct {
	node   *Node
	parent math.Mat4
	depth  int
	exit   bool
}

type walker struct {
	f         *Flattener
	onPath    map[string]struct{}
	views     []RenderView
	anomalies []Anomaly
	visited   int
}

func (f *Flattener) newWalker(ancestors []string) *walker {
	w := &walker{f: f, onPath: make(map[string]struct{}, len(ancestors)+16)}
	for _, id := range ancestors {
		w.onPath[id] = struct{}{}
	}
	return w
}

func (w *walker) result() *Result {
	return &Result{Views: w.views, Anomalies: w.anomalies, NodesVisited: w.visited}
}

// run walks the subtree under seed without native recursion.
func (w *walker) run(seed frame) {
	stack := []frame{seed}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fr.exit {
			delete(w.onPath, fr.node.ID)
			continue
		}

		children := w.visit(fr)
		stack = append(stack, frame{node: fr.node, exit: true})
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// visit emits the node's views and returns its child frames in source order.
// The node stays on the ancestor path until its exit frame is popped.
func (w *walker) visit(fr frame) []frame {
	n := fr.node
	w.visited++
	w.onPath[n.ID] = struct{}{}

	for _, a := range n.issues {
		w.report(a)
	}

	world := fr.parent
	if local := w.localTransform(n); !local.IsIdentity() {
		world = world.Mul(local)
	}
	for _, m := range n.Meshes {
		if m == nil {
			continue
		}
		w.views = append(w.views, newRenderView(n, m, world))
	}

	children, anomalies := ResolveChildren(n, w.f.schema)
	for _, a := range anomalies {
		w.report(a)
	}
	if len(children) == 0 {
		return nil
	}

	if w.f.maxDepth > 0 && fr.depth >= w.f.maxDepth {
		w.report(Anomaly{
			Kind:   AnomalyDepthLimit,
			NodeID: n.ID,
			Detail: fmt.Sprintf("%d children below depth %d skipped", len(children), w.f.maxDepth),
		})
		return nil
	}

	frames := make([]frame, 0, len(children))
	for _, c := range children {
		if _, cyclic := w.onPath[c.ID]; cyclic {
			w.report(Anomaly{
				Kind:   AnomalyCycleAvoided,
				NodeID: n.ID,
				Detail: fmt.Sprintf("child %s is already an ancestor", c.ID),
			})
			continue
		}
		frames = append(frames, frame{node: c, parent: world, depth: fr.depth + 1})
	}
	return frames
}

func (w *walker) localTransform(n *Node) math.Mat4 {
	if n.Transform == nil {
		return math.Identity()
	}
	m, err := math.Mat4FromSlice(n.Transform, w.f.rowMajor)
	if err != nil {
		w.report(Anomaly{
			Kind:   AnomalyMalformedTransform,
			NodeID: n.ID,
			Detail: err.Error(),
		})
		return math.Identity()
	}
	return m
}

func (w *walker) report(a Anomaly) {
	w.anomalies = append(w.anomalies, a)
	w.f.log.Warn("scene anomaly",
		zap.String("kind", a.Kind.String()),
		zap.String("node", a.NodeID),
		zap.String("detail", a.Detail))
}
