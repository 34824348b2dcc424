// Package config handles scenetool configuration loading and management.
package config

import (
	"time"

	"github.com/Faultbox/bimscene/pkg/scene"
)

// Transform layouts accepted by SceneConfig.TransformLayout.
const (
	LayoutColumnMajor = "column-major"
	LayoutRowMajor    = "row-major"
)

// Config holds all settings.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Scene   SceneConfig   `yaml:"scene"`
	Phases  PhasesConfig  `yaml:"phases"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// SourceConfig holds model repository settings.
type SourceConfig struct {
	DataDir        string        `yaml:"data_dir" validate:"required"`   // directory of <model>.json exports
	PhaseOrderFile string        `yaml:"phase_order_file"`               // YAML list of phase ids
	CacheModels    bool          `yaml:"cache_models"`                   // keep fetched trees in memory
	FetchTimeout   time.Duration `yaml:"fetch_timeout" validate:"gte=0"` // 0 disables the timeout
}

// SceneConfig holds flattening settings.
type SceneConfig struct {
	Schema          SchemaConfig `yaml:"schema"`
	TransformLayout string       `yaml:"transform_layout" validate:"oneof=column-major row-major"`
	Workers         int          `yaml:"workers" validate:"gte=0"`
	MaxDepth        int          `yaml:"max_depth" validate:"gte=0"`
}

// SchemaConfig names the node keys of the model export.
type SchemaConfig struct {
	ID        string `yaml:"id" validate:"required"`
	Type      string `yaml:"type"`
	Transform string `yaml:"transform" validate:"required"`
	Meshes    string `yaml:"meshes" validate:"required"`
	Children  string `yaml:"children" validate:"required"`
	Vertices  string `yaml:"vertices" validate:"required"`
	Indices   string `yaml:"indices"`
	Bounds    string `yaml:"bounds"`
}

// PhasesConfig holds phase-index settings.
type PhasesConfig struct {
	CreatedKey    string `yaml:"created_key" validate:"required"`
	DemolishedKey string `yaml:"demolished_key" validate:"required,nefield=CreatedKey"`
	Workers       int    `yaml:"workers" validate:"gte=0"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required_if=Enabled true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	schema := scene.DefaultSchema()
	return &Config{
		Source: SourceConfig{
			DataDir:      "./models",
			CacheModels:  true,
			FetchTimeout: 30 * time.Second,
		},
		Scene: SceneConfig{
			Schema: SchemaConfig{
				ID:        schema.ID,
				Type:      schema.Type,
				Transform: schema.Transform,
				Meshes:    schema.Meshes,
				Children:  schema.Children,
				Vertices:  schema.Vertices,
				Indices:   schema.Indices,
				Bounds:    schema.Bounds,
			},
			TransformLayout: LayoutColumnMajor,
			Workers:         0,
			MaxDepth:        0,
		},
		Phases: PhasesConfig{
			CreatedKey:    "phaseCreated",
			DemolishedKey: "phaseDemolished",
			Workers:       1,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "bimscene",
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogFile:    "",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// SceneSchema converts the configured key names to a scene.Schema.
func (c *Config) SceneSchema() scene.Schema {
	s := c.Scene.Schema
	return scene.Schema{
		ID:        s.ID,
		Type:      s.Type,
		Transform: s.Transform,
		Meshes:    s.Meshes,
		Children:  s.Children,
		Vertices:  s.Vertices,
		Indices:   s.Indices,
		Bounds:    s.Bounds,
	}
}

// RowMajor reports whether authored transforms are row-major.
func (c *Config) RowMajor() bool {
	return c.Scene.TransformLayout == LayoutRowMajor
}
