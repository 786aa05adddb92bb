// Package config loads the runtime configuration of an instancecore process
// from YAML and builds its logger.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/samber/oops"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration. Instance content itself comes from
// Lua; this only says where to find it and how to run it.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Tick     TickConfig     `yaml:"tick"`
	Log      LogConfig      `yaml:"log"`
	Feed     FeedConfig     `yaml:"feed"`
}

type InstanceConfig struct {
	Dir         string `yaml:"dir"`
	SaveDir     string `yaml:"save_dir"`
	Affiliation string `yaml:"affiliation"` // overrides the instance default
	RaidSize    int    `yaml:"raid_size"`
}

type TickConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LogConfig selects the zap encoder and level. An empty File logs to stderr.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
	File   string `yaml:"file"`
}

// FeedConfig configures the websocket observer feed. An empty Addr disables
// it.
type FeedConfig struct {
	Addr   string `yaml:"addr"`
	Buffer int    `yaml:"buffer"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Instance: InstanceConfig{SaveDir: ".", RaidSize: 10},
		Tick:     TickConfig{Interval: 250 * time.Millisecond},
		Log:      LogConfig{Level: "info", Format: "console"},
		Feed:     FeedConfig{Buffer: 64},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	errs := oops.In("config").With("path", path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errs.Wrapf(err, "reading config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errs.Wrapf(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errs.Wrap(err)
	}
	return cfg, nil
}

// Validate rejects values the runtime cannot use.
func (c Config) Validate() error {
	switch {
	case c.Tick.Interval <= 0:
		return oops.Errorf("tick.interval must be positive, got %s", c.Tick.Interval)
	case c.Instance.RaidSize < 1:
		return oops.Errorf("instance.raid_size must be at least 1, got %d", c.Instance.RaidSize)
	case c.Feed.Buffer < 1:
		return oops.Errorf("feed.buffer must be at least 1, got %d", c.Feed.Buffer)
	case c.Log.Format != "console" && c.Log.Format != "json":
		return oops.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// NewLogger builds a zap logger: a compact console encoder for interactive
// use, the production JSON encoder otherwise. Unknown levels fall back to
// info.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.File != "" {
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.ErrorOutputPaths = []string{cfg.File}
	}

	return zapCfg.Build()
}
