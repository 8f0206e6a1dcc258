package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string        `mapstructure:"environment"`
	Engine      EngineConfig  `mapstructure:"engine"`
	Dataset     DatasetConfig `mapstructure:"dataset"`
	Watch       WatchConfig   `mapstructure:"watch"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// EngineConfig tunes the derivation rules. The trend threshold and the
// severity cutoffs apply uniformly to every query served by one engine.
type EngineConfig struct {
	TrendThreshold float64 `mapstructure:"trend_threshold"`
	SeverityHigh   float64 `mapstructure:"severity_high"`
	SeverityMedium float64 `mapstructure:"severity_medium"`
	Timezone       string  `mapstructure:"timezone"`
	CacheSize      int     `mapstructure:"cache_size"` // 0 disables memoization
}

// DatasetConfig locates the study fixture the CLI host loads at startup.
type DatasetConfig struct {
	Path string `mapstructure:"path"`
}

// WatchConfig throttles recomputation when the store changes in bursts.
type WatchConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
	Burst       int           `mapstructure:"burst"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
	Output string `mapstructure:"output"` // "stdout", "stderr" or a file path
}

// DefaultEngineConfig mirrors the defaults registered with the config manager.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TrendThreshold: 10,
		SeverityHigh:   85,
		SeverityMedium: 70,
		Timezone:       "UTC",
		CacheSize:      256,
	}
}
