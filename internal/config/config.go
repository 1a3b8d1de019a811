package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// EnvPrefix prefixes every environment override, e.g.
// PERFOVERLAY_COLLECTOR_INTERVAL=500ms.
const EnvPrefix = "PERFOVERLAY"

// Sampler sources and surface kinds accepted by the configuration.
var (
	SamplerSources = []string{"auto", "procfs", "gopsutil", "cgroup"}
	SurfaceKinds   = []string{"tui", "text"}
)

// Config holds every configurable value of perfoverlay.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Collector CollectorConfig `mapstructure:"collector"`
	Frames    FramesConfig    `mapstructure:"frames"`
	Sampler   SamplerConfig   `mapstructure:"sampler"`
	Surface   SurfaceConfig   `mapstructure:"surface"`
	Overlay   OverlayConfig   `mapstructure:"overlay"`
	Probe     ProbeConfig     `mapstructure:"probe"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File receives log output. Empty means stderr, or nothing while the
	// terminal UI owns the screen.
	File string `mapstructure:"file"`
}

type CollectorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type FramesConfig struct {
	Window      int `mapstructure:"window"`
	Ceiling     int `mapstructure:"ceiling"`
	RefreshRate int `mapstructure:"refresh_rate"`
}

type SamplerConfig struct {
	Source string `mapstructure:"source"`
}

type SurfaceConfig struct {
	Kind string `mapstructure:"kind"`
}

type OverlayConfig struct {
	ShowFPS     bool `mapstructure:"show_fps"`
	ShowMemory  bool `mapstructure:"show_memory"`
	ShowCPU     bool `mapstructure:"show_cpu"`
	ShowNetwork bool `mapstructure:"show_network"`
	ShowLog     bool `mapstructure:"show_log"`
	LogCapacity int  `mapstructure:"log_capacity"`
	X           int  `mapstructure:"x"`
	Y           int  `mapstructure:"y"`
}

type ProbeConfig struct {
	URLs        []string      `mapstructure:"urls"`
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"log-level":         "log.level",
	"log-format":        "log.format",
	"log-file":          "log.file",
	"interval":          "collector.interval",
	"frame-window":      "frames.window",
	"fps-ceiling":       "frames.ceiling",
	"refresh-rate":      "frames.refresh_rate",
	"source":            "sampler.source",
	"surface":           "surface.kind",
	"show-log":          "overlay.show_log",
	"probe-url":         "probe.urls",
	"probe-interval":    "probe.interval",
	"probe-concurrency": "probe.concurrency",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("collector.interval", "1s")
	v.SetDefault("frames.window", 30)
	v.SetDefault("frames.ceiling", 60)
	v.SetDefault("frames.refresh_rate", 60)
	v.SetDefault("sampler.source", "auto")
	v.SetDefault("surface.kind", "tui")
	v.SetDefault("overlay.show_fps", true)
	v.SetDefault("overlay.show_memory", true)
	v.SetDefault("overlay.show_cpu", true)
	v.SetDefault("overlay.show_network", true)
	v.SetDefault("overlay.show_log", false)
	v.SetDefault("overlay.log_capacity", 50)
	v.SetDefault("overlay.x", 0)
	v.SetDefault("overlay.y", 2)
	v.SetDefault("probe.urls", []string{})
	v.SetDefault("probe.interval", "2s")
	v.SetDefault("probe.concurrency", 4)
	v.SetDefault("probe.timeout", "10s")
}

// Load reads configuration from, in decreasing priority: command line flags
// that were set, PERFOVERLAY_* environment variables, a perfoverlay.yaml
// file and the defaults. An explicit file must exist; the searched ones are
// optional. Flags may be nil.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", file)
		}
	} else {
		v.SetConfigName("perfoverlay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "perfoverlay"))
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.Wrap(err, "read config file")
			}
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag --%s", name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var err error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			err = multierr.Append(err, errors.Errorf(format, args...))
		}
	}

	check(c.Collector.Interval > 0, "collector.interval must be positive, got %s", c.Collector.Interval)
	check(c.Frames.Window >= 1, "frames.window must be at least 1, got %d", c.Frames.Window)
	check(c.Frames.Ceiling >= 1, "frames.ceiling must be at least 1, got %d", c.Frames.Ceiling)
	check(c.Frames.RefreshRate > 0, "frames.refresh_rate must be positive, got %d", c.Frames.RefreshRate)
	check(c.Overlay.LogCapacity >= 1, "overlay.log_capacity must be at least 1, got %d", c.Overlay.LogCapacity)
	check(c.Probe.Concurrency >= 1, "probe.concurrency must be at least 1, got %d", c.Probe.Concurrency)
	check(len(c.Probe.URLs) == 0 || c.Probe.Interval > 0, "probe.interval must be positive, got %s", c.Probe.Interval)
	check(oneOf(c.Sampler.Source, SamplerSources), "sampler.source must be one of %v, got %q", SamplerSources, c.Sampler.Source)
	check(oneOf(c.Surface.Kind, SurfaceKinds), "surface.kind must be one of %v, got %q", SurfaceKinds, c.Surface.Kind)

	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
