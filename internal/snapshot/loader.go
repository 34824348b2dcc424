package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/bimscene/internal/elements"
	"github.com/Faultbox/bimscene/internal/metrics"
	"github.com/Faultbox/bimscene/internal/source"
	"github.com/Faultbox/bimscene/pkg/phase"
	"github.com/Faultbox/bimscene/pkg/scene"
)

// ErrNoRepository is returned by Load when the loader has no repository.
var ErrNoRepository = errors.New("no model repository")

// Loader runs fetch, flatten, extract and build, then publishes the snapshot.
type Loader struct {
	repo      source.Repository
	order     []phase.ID
	flattener *scene.Flattener
	builder   *phase.Builder
	extractor *elements.Extractor
	store     *Store
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithFlattener sets the scene flattener.
func WithFlattener(f *scene.Flattener) Option {
	return func(l *Loader) { l.flattener = f }
}

// WithBuilder sets the phase index builder.
func WithBuilder(b *phase.Builder) Option {
	return func(l *Loader) { l.builder = b }
}

// WithExtractor sets the phase tag extractor.
func WithExtractor(e *elements.Extractor) Option {
	return func(l *Loader) { l.extractor = e }
}

// WithStore publishes into st instead of a private store.
func WithStore(st *Store) Option {
	return func(l *Loader) { l.store = st }
}

// WithMetrics records loads in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoader creates a loader for models in repo indexed against order.
func NewLoader(repo source.Repository, order []phase.ID, opts ...Option) *Loader {
	l := &Loader{
		repo:  repo,
		order: order,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.flattener == nil {
		l.flattener = scene.NewFlattener(scene.WithLogger(l.log))
	}
	if l.builder == nil {
		l.builder = phase.NewBuilder(phase.WithLogger(l.log))
	}
	if l.extractor == nil {
		l.extractor = elements.NewExtractor("phaseCreated", "phaseDemolished", l.log)
	}
	if l.store == nil {
		l.store = &Store{}
	}
	return l
}

// Store returns the store snapshots are published to.
func (l *Loader) Store() *Store {
	return l.store
}

// Load builds a snapshot of modelID and publishes it. On error the current
// snapshot is left in place.
func (l *Loader) Load(ctx context.Context, modelID string) (*Snapshot, error) {
	snap, err := l.load(ctx, modelID)
	l.metrics.CountLoad(err)
	if err != nil {
		l.log.Error("snapshot load failed", zap.String("model", modelID), zap.Error(err))
		return nil, err
	}

	l.store.Publish(snap)
	l.log.Info("snapshot published",
		zap.String("model", modelID),
		zap.Int("views", len(snap.Views)),
		zap.Int("elements", snap.Phases.All().Len()),
		zap.Int("phases", snap.Phases.Len()),
		zap.Int("scene_anomalies", len(snap.SceneAnomalies)),
		zap.Int("phase_anomalies", len(snap.Phases.Anomalies())))
	return snap, nil
}

func (l *Loader) load(ctx context.Context, modelID string) (*Snapshot, error) {
	if l.repo == nil {
		return nil, ErrNoRepository
	}

	root, err := l.repo.Fetch(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("fetching model: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	flat, err := l.flattener.Flatten(root)
	if err != nil {
		return nil, fmt.Errorf("flattening model: %w", err)
	}
	l.metrics.ObserveFlatten(modelID, len(flat.Views), time.Since(start))
	for _, a := range flat.Anomalies {
		l.metrics.CountAnomaly(metrics.ComponentScene, a.Kind.String())
	}

	metas := l.extractor.FromViews(flat.Views)

	start = time.Now()
	tree, err := l.builder.Build(metas, l.order)
	if err != nil {
		return nil, fmt.Errorf("building phase index: %w", err)
	}
	l.metrics.ObserveBuild(tree.Len(), time.Since(start))
	for _, a := range tree.Anomalies() {
		l.metrics.CountAnomaly(metrics.ComponentPhase, a.Kind.String())
	}

	return &Snapshot{
		ModelID:        modelID,
		Views:          flat.Views,
		Phases:         tree,
		SceneAnomalies: flat.Anomalies,
		Bounds:         boundsOf(flat.Views),
		LoadedAt:       l.now(),
	}, nil
}
