package phase

import (
	"errors"
	"fmt"
	"maps"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Build errors. No partial Tree is returned with any of them.
var (
	ErrEmptyOrder   = errors.New("phase ordering is empty but elements carry phase tags")
	ErrInvalidOrder = errors.New("invalid phase ordering")
)

// minPartition is the smallest element slice worth indexing on its own goroutine.
const minPartition = 4096

// Builder builds phase Trees. It holds only configuration and is safe for
// concurrent use.
type Builder struct {
	log     *zap.Logger
	workers int
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger anomalies are reported to.
func WithLogger(log *zap.Logger) Option {
	return func(b *Builder) {
		if log != nil {
			b.log = log
		}
	}
}

// WithWorkers indexes large inputs on up to n goroutines.
func WithWorkers(n int) Option {
	return func(b *Builder) { b.workers = n }
}

// NewBuilder creates a Builder that indexes sequentially.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{log: zap.NewNop(), workers: 1}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build builds a Tree with a default Builder.
func Build(elements []ElementMeta, order []ID) (*Tree, error) {
	return NewBuilder().Build(elements, order)
}

// placed is an element whose tags resolved to positions in the ordering;
// -1 means the tag is absent.
type placed struct {
	id         string
	created    int
	demolished int
}

// Build indexes elements against the phase ordering in one pass over the
// elements and one pass over the phases.
func (b *Builder) Build(elements []ElementMeta, order []ID) (*Tree, error) {
	pos, err := indexOrder(order)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		for _, e := range elements {
			if e.HasTags() {
				return nil, fmt.Errorf("%w: element %q", ErrEmptyOrder, e.ID)
			}
		}
	}

	t := &Tree{
		order:    append([]ID(nil), order...),
		pos:      pos,
		sets:     make([]Sets, len(order)),
		elements: make(map[string]Element, len(elements)),
	}

	valid := b.resolve(t, elements)
	createdAt, demolishedAt, seed := b.index(valid)
	t.walk(createdAt, demolishedAt, seed)

	b.log.Debug("built phase index",
		zap.Int("phases", len(order)),
		zap.Int("elements", t.all.Len()),
		zap.Int("anomalies", len(t.anomalies)))
	return t, nil
}

func indexOrder(order []ID) (map[ID]int, error) {
	pos := make(map[ID]int, len(order))
	for i, p := range order {
		if p == "" {
			return nil, fmt.Errorf("%w: empty phase id at position %d", ErrInvalidOrder, i)
		}
		if prev, dup := pos[p]; dup {
			return nil, fmt.Errorf("%w: phase %q at positions %d and %d", ErrInvalidOrder, p, prev, i)
		}
		pos[p] = i
	}
	return pos, nil
}

// resolve records every element in t, derives ActivePhases, and returns the
// elements that can be placed in the ordering, in input order.
func (b *Builder) resolve(t *Tree, elements []ElementMeta) []placed {
	all := make(map[string]struct{}, len(elements))
	valid := make([]placed, 0, len(elements))

	for _, meta := range elements {
		if meta.ID == "" {
			b.report(t, Anomaly{Kind: AnomalyMissingElementID, Detail: "element skipped"})
			continue
		}
		if _, dup := all[meta.ID]; dup {
			b.report(t, Anomaly{Kind: AnomalyDuplicateElement, ElementID: meta.ID, Detail: "later entry ignored"})
			continue
		}
		all[meta.ID] = struct{}{}

		p, anomaly := t.place(meta)
		if anomaly != nil {
			b.report(t, *anomaly)
			t.elements[meta.ID] = Element{Meta: meta, Excluded: true}
			continue
		}

		start, end := 0, len(t.order)
		if p.created >= 0 {
			start = p.created
		}
		if p.demolished >= 0 {
			end = p.demolished
		}
		var span []ID
		if end > start {
			span = t.order[start:end:end]
		}
		t.elements[meta.ID] = Element{Meta: meta, ActivePhases: span}
		valid = append(valid, p)
	}

	t.all = newSet(all)
	return valid
}

// place resolves an element's tags to positions, or explains why it cannot.
func (t *Tree) place(meta ElementMeta) (placed, *Anomaly) {
	p := placed{id: meta.ID, created: -1, demolished: -1}

	var unknown []string
	if meta.Created != "" {
		if i, ok := t.pos[meta.Created]; ok {
			p.created = i
		} else {
			unknown = append(unknown, fmt.Sprintf("created in %q", meta.Created))
		}
	}
	if meta.Demolished != "" {
		if i, ok := t.pos[meta.Demolished]; ok {
			p.demolished = i
		} else {
			unknown = append(unknown, fmt.Sprintf("demolished in %q", meta.Demolished))
		}
	}

	if len(unknown) > 0 {
		return p, &Anomaly{
			Kind:      AnomalyUnknownPhase,
			ElementID: meta.ID,
			Detail:    fmt.Sprintf("%v not in ordering", unknown),
		}
	}
	if p.created >= 0 && p.demolished >= 0 && p.demolished < p.created {
		return p, &Anomaly{
			Kind:      AnomalyInvertedSpan,
			ElementID: meta.ID,
			Detail:    fmt.Sprintf("demolished in %q before created in %q", meta.Demolished, meta.Created),
		}
	}
	return p, nil
}

// bucket maps a phase position to the element ids tagged with it.
type bucket map[int][]string

// partial is one partition's share of the creation/demolition index.
type partial struct {
	createdAt    bucket
	demolishedAt bucket
	seed         []string
}

func indexPartition(elems []placed) partial {
	p := partial{createdAt: bucket{}, demolishedAt: bucket{}}
	for _, e := range elems {
		if e.created >= 0 {
			p.createdAt[e.created] = append(p.createdAt[e.created], e.id)
		} else {
			p.seed = append(p.seed, e.id)
		}
		if e.demolished >= 0 {
			p.demolishedAt[e.demolished] = append(p.demolishedAt[e.demolished], e.id)
		}
	}
	return p
}

// index groups elements by creation and demolition phase. Large inputs are
// split into partitions indexed concurrently and merged in partition order,
// so every bucket keeps input order.
func (b *Builder) index(elems []placed) (createdAt, demolishedAt bucket, seed []string) {
	parts := b.workers
	if limit := len(elems) / minPartition; parts > limit {
		parts = limit
	}
	if parts <= 1 {
		p := indexPartition(elems)
		return p.createdAt, p.demolishedAt, p.seed
	}

	partials := make([]partial, parts)
	size := (len(elems) + parts - 1) / parts
	var g errgroup.Group
	for i := 0; i < parts; i++ {
		lo := i * size
		hi := min(lo+size, len(elems))
		g.Go(func() error {
			partials[i] = indexPartition(elems[lo:hi])
			return nil
		})
	}
	_ = g.Wait()

	createdAt, demolishedAt = bucket{}, bucket{}
	for _, p := range partials {
		for k, ids := range p.createdAt {
			createdAt[k] = append(createdAt[k], ids...)
		}
		for k, ids := range p.demolishedAt {
			demolishedAt[k] = append(demolishedAt[k], ids...)
		}
		seed = append(seed, p.seed...)
	}
	return createdAt, demolishedAt, seed
}

// walk carries the working set across the ordering and snapshots each
// phase's sets as independent values.
func (t *Tree) walk(createdAt, demolishedAt bucket, seed []string) {
	working := make(map[string]struct{}, len(seed))
	for _, id := range seed {
		working[id] = struct{}{}
	}

	for i := range t.order {
		created := make(map[string]struct{}, len(createdAt[i]))
		for _, id := range createdAt[i] {
			created[id] = struct{}{}
			working[id] = struct{}{}
		}
		demolished := make(map[string]struct{}, len(demolishedAt[i]))
		for _, id := range demolishedAt[i] {
			demolished[id] = struct{}{}
			delete(working, id)
		}

		active := maps.Clone(working)
		existing := maps.Clone(working)
		for id := range created {
			delete(existing, id)
		}

		t.sets[i] = Sets{
			Created:    newSet(created),
			Demolished: newSet(demolished),
			Active:     newSet(active),
			Existing:   newSet(existing),
		}
	}
}

func (b *Builder) report(t *Tree, a Anomaly) {
	t.anomalies = append(t.anomalies, a)
	b.log.Warn("phase anomaly",
		zap.String("kind", a.Kind.String()),
		zap.String("element", a.ElementID),
		zap.String("detail", a.Detail))
}
