package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/bimscene/internal/config"
	"github.com/Faultbox/bimscene/internal/elements"
	"github.com/Faultbox/bimscene/internal/logger"
	"github.com/Faultbox/bimscene/internal/metrics"
	"github.com/Faultbox/bimscene/internal/snapshot"
	"github.com/Faultbox/bimscene/internal/source"
	"github.com/Faultbox/bimscene/pkg/phase"
	"github.com/Faultbox/bimscene/pkg/scene"
)

var errNoPhaseOrder = errors.New("no phase order file configured (use --phases or source.phase_order_file)")

// app carries the state shared by all subcommands of one invocation.
type app struct {
	overrides  config.Overrides
	metricsOut string
	quiet      bool

	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "scenetool",
		Short:         "Flatten BIM model trees and query construction phases",
		Long:          `scenetool reads model exports from a repository directory, flattens them into world-space render views and indexes their elements by construction phase.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	// Persistent flags (available to all commands)
	flags := root.PersistentFlags()
	flags.StringVar(&a.overrides.ConfigPath, "config", "", "Path to config file")
	flags.StringVar(&a.overrides.DataDir, "data-dir", "", "Directory containing <model>.json exports")
	flags.StringVar(&a.overrides.PhaseOrderFile, "phases", "", "YAML file listing the phase ordering")
	flags.IntVar(&a.overrides.Workers, "workers", 0, "Parallel workers for flattening and indexing (0 = config)")
	flags.BoolVar(&a.overrides.Debug, "debug", false, "Enable debug logging")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "Disable console logging")
	flags.StringVar(&a.metricsOut, "metrics-out", "", "Write Prometheus metrics to this file on exit")

	root.AddCommand(
		newFlattenCmd(a),
		newPhasesCmd(a),
		newVisibleCmd(a),
		newPickCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.overrides)
	if err != nil {
		return err
	}
	a.cfg = cfg

	fileCfg := logger.FileConfig{}
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.FileConfig{
			Path:       cfg.Logging.LogFile,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   true,
		}
	}
	if err := logger.InitWithFileConfig(cfg.Logging.Level, fileCfg, !a.quiet); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	a.log = logger.Named("scenetool")
	logger.Sugar.Debugf("config: %+v", cfg)

	if cfg.Metrics.Enabled || a.metricsOut != "" {
		a.metrics = metrics.New(cfg.Metrics.Namespace)
	}
	return nil
}

func (a *app) teardown() error {
	if a.metricsOut == "" || a.metrics == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.metricsOut, a.metrics.Registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	a.log.Debug("metrics written", zap.String("path", a.metricsOut))
	return nil
}

func (a *app) repository() source.Repository {
	var repo source.Repository = source.NewFileRepository(
		a.cfg.Source.DataDir, a.cfg.SceneSchema(), logger.Named("source"))
	if a.cfg.Source.CacheModels {
		repo = source.NewCachedRepository(repo, a.cfg.Source.FetchTimeout)
	}
	return repo
}

func (a *app) flattener() *scene.Flattener {
	return scene.NewFlattener(
		scene.WithLogger(logger.Named("scene")),
		scene.WithSchema(a.cfg.SceneSchema()),
		scene.WithRowMajor(a.cfg.RowMajor()),
		scene.WithParallel(a.cfg.Scene.Workers),
		scene.WithMaxDepth(a.cfg.Scene.MaxDepth),
	)
}

func (a *app) phaseOrder() ([]phase.ID, error) {
	if a.cfg.Source.PhaseOrderFile == "" {
		return nil, errNoPhaseOrder
	}
	return source.LoadPhaseOrder(a.cfg.Source.PhaseOrderFile)
}

// fetchContext applies the configured fetch timeout.
func (a *app) fetchContext(parent context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Source.FetchTimeout > 0 {
		return context.WithTimeout(parent, a.cfg.Source.FetchTimeout)
	}
	return context.WithCancel(parent)
}

// loadSnapshot runs the full pipeline for one model.
func (a *app) loadSnapshot(ctx context.Context, modelID string) (*snapshot.Snapshot, error) {
	order, err := a.phaseOrder()
	if err != nil {
		return nil, err
	}

	loader := snapshot.NewLoader(a.repository(), order,
		snapshot.WithFlattener(a.flattener()),
		snapshot.WithBuilder(phase.NewBuilder(
			phase.WithLogger(logger.Named("phase")),
			phase.WithWorkers(a.cfg.Phases.Workers),
		)),
		snapshot.WithExtractor(elements.NewExtractor(
			a.cfg.Phases.CreatedKey, a.cfg.Phases.DemolishedKey, logger.Named("elements"))),
		snapshot.WithMetrics(a.metrics),
		snapshot.WithLogger(logger.Named("snapshot")),
	)

	ctx, cancel := a.fetchContext(ctx)
	defer cancel()
	return loader.Load(ctx, modelID)
}
