package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/presage/api/schemas"
)

// Config is the full application configuration: logging, engine defaults,
// and the per-command blocks. Engine numerics pass through the settings
// store's clamping on their way in, so a config file cannot smuggle an
// out-of-range value past the same policy runtime updates obey.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Replay ReplayConfig `mapstructure:"replay" yaml:"replay"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig carries the prediction engine's initial settings. The hit
// slop is a uniform per-side value here; per-element overrides come in
// through registration options instead.
type EngineConfig struct {
	EnableMousePrediction    bool          `mapstructure:"enable_mouse_prediction" yaml:"enable_mouse_prediction"`
	EnableTabPrediction      bool          `mapstructure:"enable_tab_prediction" yaml:"enable_tab_prediction"`
	EnableScrollPrediction   bool          `mapstructure:"enable_scroll_prediction" yaml:"enable_scroll_prediction"`
	PositionHistorySize      int           `mapstructure:"position_history_size" yaml:"position_history_size"`
	TrajectoryPredictionTime time.Duration `mapstructure:"trajectory_prediction_time" yaml:"trajectory_prediction_time"`
	ScrollMargin             float64       `mapstructure:"scroll_margin" yaml:"scroll_margin"`
	TabOffset                int           `mapstructure:"tab_offset" yaml:"tab_offset"`
	DefaultHitSlop           float64       `mapstructure:"default_hit_slop" yaml:"default_hit_slop"`
}

// Settings converts the config block into an engine settings snapshot.
// Values are not clamped here; the settings store owns that.
func (e EngineConfig) Settings() schemas.Settings {
	return schemas.Settings{
		EnableMousePrediction:    e.EnableMousePrediction,
		EnableTabPrediction:      e.EnableTabPrediction,
		EnableScrollPrediction:   e.EnableScrollPrediction,
		PositionHistorySize:      e.PositionHistorySize,
		TrajectoryPredictionTime: e.TrajectoryPredictionTime,
		ScrollMargin:             e.ScrollMargin,
		TabOffset:                e.TabOffset,
		DefaultHitSlop:           schemas.UniformHitSlop(e.DefaultHitSlop),
	}
}

// WatchConfig configures the live browser session command.
type WatchConfig struct {
	URL               string        `mapstructure:"url" yaml:"url"`
	Selectors         []string      `mapstructure:"selectors" yaml:"selectors"`
	TracePath         string        `mapstructure:"trace_path" yaml:"trace_path"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// ReplayConfig configures trace replay.
type ReplayConfig struct {
	TracePath    string  `mapstructure:"trace_path" yaml:"trace_path"`
	Speed        float64 `mapstructure:"speed" yaml:"speed"`
	Follow       bool    `mapstructure:"follow" yaml:"follow"`
	MaxEventRate float64 `mapstructure:"max_event_rate" yaml:"max_event_rate"`
}

// SetDefaults registers every default on the given viper instance. Called
// before any config file or environment variables are read in, so explicit
// values always win.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "presage")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "red")
	v.SetDefault("logger.colors.panic", "red")
	v.SetDefault("logger.colors.fatal", "red")

	// -- Engine --
	v.SetDefault("engine.enable_mouse_prediction", true)
	v.SetDefault("engine.enable_tab_prediction", true)
	v.SetDefault("engine.enable_scroll_prediction", true)
	v.SetDefault("engine.position_history_size", schemas.DefaultPositionHistorySize)
	v.SetDefault("engine.trajectory_prediction_time", schemas.DefaultTrajectoryPredictionTime)
	v.SetDefault("engine.scroll_margin", schemas.DefaultScrollMargin)
	v.SetDefault("engine.tab_offset", schemas.DefaultTabOffset)
	v.SetDefault("engine.default_hit_slop", 0.0)

	// -- Watch --
	v.SetDefault("watch.url", "")
	v.SetDefault("watch.selectors", []string{})
	v.SetDefault("watch.trace_path", "")
	v.SetDefault("watch.headless", true)
	v.SetDefault("watch.user_agent", "")
	v.SetDefault("watch.navigation_timeout", "45s")

	// -- Replay --
	v.SetDefault("replay.trace_path", "")
	v.SetDefault("replay.speed", 1.0)
	v.SetDefault("replay.follow", false)
	v.SetDefault("replay.max_event_rate", 0.0)
}

// NewConfigFromViper unmarshals and validates the full configuration.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefault builds a Config carrying only the defaults. Used by tests and
// by callers embedding the engine as a library.
func NewDefault() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults failing validation is a programming error.
		panic(fmt.Sprintf("config: defaults invalid: %v", err))
	}
	return cfg
}

// Validate checks the configuration for sane values. Engine numerics are
// deliberately not range-checked here; the settings store clamps them.
func (c *Config) Validate() error {
	if c.Replay.Speed <= 0 {
		return fmt.Errorf("replay.speed must be positive, got %v", c.Replay.Speed)
	}
	if c.Replay.MaxEventRate < 0 {
		return fmt.Errorf("replay.max_event_rate must not be negative, got %v", c.Replay.MaxEventRate)
	}
	if c.Watch.NavigationTimeout <= 0 {
		return fmt.Errorf("watch.navigation_timeout must be positive, got %v", c.Watch.NavigationTimeout)
	}
	if c.Engine.PositionHistorySize < 0 {
		return fmt.Errorf("engine.position_history_size must not be negative, got %d", c.Engine.PositionHistorySize)
	}
	return nil
}
