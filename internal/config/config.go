package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/study-analytics-engine/internal/domain"
)

// EnvPrefix namespaces environment overrides, e.g. STUDY_ANALYTICS_ENGINE_TREND_THRESHOLD.
const EnvPrefix = "STUDY_ANALYTICS"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	file   string
	config *domain.Config
}

// NewManager creates a new configuration manager. An empty file searches the
// default locations for study-analytics.yaml; a missing file is not an error
// unless one was named explicitly.
func NewManager(file string) (*Manager, error) {
	m := &Manager{file: file}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.file != "" {
		v.SetConfigFile(m.file)
	} else {
		v.SetConfigName("study-analytics")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/study-analytics/")
	}

	// Set environment variable prefix and enable automatic env binding
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.file != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Engine defaults
	def := domain.DefaultEngineConfig()
	v.SetDefault("engine.trend_threshold", def.TrendThreshold)
	v.SetDefault("engine.severity_high", def.SeverityHigh)
	v.SetDefault("engine.severity_medium", def.SeverityMedium)
	v.SetDefault("engine.timezone", def.Timezone)
	v.SetDefault("engine.cache_size", def.CacheSize)

	v.SetDefault("dataset.path", "")

	// Watch defaults
	v.SetDefault("watch.min_interval", "1s")
	v.SetDefault("watch.burst", 1)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetEngineConfig returns engine configuration
func (m *Manager) GetEngineConfig() *domain.EngineConfig {
	return &m.config.Engine
}

// GetLoggingConfig returns logging configuration
func (m *Manager) GetLoggingConfig() *domain.LoggingConfig {
	return &m.config.Logging
}

// ConfigFileUsed returns the path of the file read, or "" when running on
// defaults and environment alone.
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate engine configuration
	if config.Engine.TrendThreshold < 0 {
		return fmt.Errorf("trend threshold must not be negative: %v", config.Engine.TrendThreshold)
	}
	if config.Engine.SeverityHigh > domain.MaxScore || config.Engine.SeverityMedium < domain.MinScore {
		return fmt.Errorf("severity cutoffs must lie within [%v,%v]", domain.MinScore, domain.MaxScore)
	}
	if config.Engine.SeverityMedium >= config.Engine.SeverityHigh {
		return fmt.Errorf("severity medium cutoff %v must be below high cutoff %v",
			config.Engine.SeverityMedium, config.Engine.SeverityHigh)
	}
	if config.Engine.CacheSize < 0 {
		return fmt.Errorf("invalid cache size: %d", config.Engine.CacheSize)
	}
	if _, err := time.LoadLocation(config.Engine.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", config.Engine.Timezone, err)
	}

	// Validate watch configuration
	if config.Watch.MinInterval < 0 {
		return fmt.Errorf("invalid watch interval: %s", config.Watch.MinInterval)
	}
	if config.Watch.Burst < 1 {
		return fmt.Errorf("watch burst must be at least 1: %d", config.Watch.Burst)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}

var _ domain.ConfigManager = (*Manager)(nil)
