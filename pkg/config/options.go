package config

import (
	"fmt"
	"time"

	"github.com/fluxorio/filerepo/pkg/concurrency"
	"github.com/fluxorio/filerepo/pkg/fileio"
	"github.com/fluxorio/filerepo/pkg/filerepo"
	"github.com/fluxorio/filerepo/pkg/logging"
)

// Options is the full configuration of a filerepo process.
type Options struct {
	Store   StoreSection   `yaml:"store" json:"store"`
	IO      IOSection      `yaml:"io" json:"io"`
	Loop    LoopSection    `yaml:"loop" json:"loop"`
	Metrics MetricsSection `yaml:"metrics" json:"metrics"`
	Trace   TraceSection   `yaml:"trace" json:"trace"`
}

// StoreSection describes the record file.
type StoreSection struct {
	Path       string                  `yaml:"path" json:"path"`
	Name       string                  `yaml:"name" json:"name"`
	RecordSize int                     `yaml:"record_size" json:"record_size"`
	Offset     int                     `yaml:"offset" json:"offset"`
	Field      *filerepo.FieldSelector `yaml:"field,omitempty" json:"field,omitempty"`
}

// IOSection sizes the worker pool running file syscalls.
type IOSection struct {
	Workers        int           `yaml:"workers" json:"workers"`
	QueueSize      int           `yaml:"queue_size" json:"queue_size"`
	SyncRetries    int           `yaml:"sync_retries" json:"sync_retries"`
	SyncRetryPause time.Duration `yaml:"sync_retry_pause" json:"sync_retry_pause"`
}

type LoopSection struct {
	Name      string `yaml:"name" json:"name"`
	QueueSize int    `yaml:"queue_size" json:"queue_size"`
}

type MetricsSection struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

type TraceSection struct {
	Stdout bool `yaml:"stdout" json:"stdout"`
}

// Default returns usable settings for everything but Store.Path.
func Default() Options {
	return Options{
		Store: StoreSection{RecordSize: 100},
		IO: IOSection{
			Workers:        4,
			QueueSize:      1024,
			SyncRetries:    100,
			SyncRetryPause: time.Microsecond,
		},
		Loop:    LoopSection{Name: "filerepo", QueueSize: 1024},
		Metrics: MetricsSection{Addr: ":9090", Path: "/metrics"},
	}
}

// Load reads path over the defaults, applies FILEREPO_* overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Options, error) {
	return LoadWithEnv(path, DefaultEnvPrefix)
}

// LoadWithEnv is Load with a custom environment prefix.
func LoadWithEnv(path, prefix string) (Options, error) {
	opts := Default()
	if path != "" {
		if err := LoadFile(path, &opts); err != nil {
			return Options{}, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	if err := opts.ApplyEnv(prefix); err != nil {
		return Options{}, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// ApplyEnv applies environment overrides in place.
func (o *Options) ApplyEnv(prefix string) error {
	return ApplyEnvOverrides(prefix, o)
}

func (o *Options) Validate() error {
	err := Validate(o,
		RequiredFields("Store.Path"),
		RangeValidator("IO.Workers", 1, 1024),
		RangeValidator("IO.QueueSize", 1, 1<<20),
		RangeValidator("IO.SyncRetries", 1, 10000),
		RangeValidator("Loop.QueueSize", 1, 1<<20),
	)
	if err != nil {
		return err
	}
	if err := o.RepoConfig().Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// RepoConfig is the record layout described by the store section.
func (o *Options) RepoConfig() filerepo.Config {
	cfg := filerepo.Config{RecordSize: o.Store.RecordSize, Offset: o.Store.Offset}
	if o.Store.Field != nil {
		sel := *o.Store.Field
		cfg.FieldSelector = &sel
	}
	return cfg
}

func (o *Options) PoolConfig(logger logging.Logger) concurrency.WorkerPoolConfig {
	return concurrency.WorkerPoolConfig{
		Workers:   o.IO.Workers,
		QueueSize: o.IO.QueueSize,
		Logger:    logger,
	}
}

func (o *Options) IOOptions(logger logging.Logger, observer fileio.Observer) fileio.Options {
	return fileio.Options{
		SyncRetries:    o.IO.SyncRetries,
		SyncRetryPause: o.IO.SyncRetryPause,
		Observer:       observer,
		Logger:         logger,
	}
}
