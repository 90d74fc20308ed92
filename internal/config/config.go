package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Model      ModelConfig      `mapstructure:"model"`
	Thresholds ThresholdConfig  `mapstructure:"thresholds"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

// AppConfig holds application configuration
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds telemetry data source configuration
type TelemetryConfig struct {
	MetricsPath string        `mapstructure:"metrics_path"`
	Interval    time.Duration `mapstructure:"interval"`
	SeedSamples int           `mapstructure:"seed_samples"`
	SeedCost    float64       `mapstructure:"seed_cost"`
}

// ModelConfig holds usage forecaster configuration
type ModelConfig struct {
	Trees           int   `mapstructure:"trees"`
	Seed            int64 `mapstructure:"seed"`
	MinSamplesSplit int   `mapstructure:"min_samples_split"`
	MaxDepth        int   `mapstructure:"max_depth"`
}

// ThresholdConfig holds allocation decision thresholds.
// All values are percentages of the metric range.
type ThresholdConfig struct {
	UpperThreshold float64 `mapstructure:"upper_threshold"`
	LowerThreshold float64 `mapstructure:"lower_threshold"`
	StepSizePct    float64 `mapstructure:"step_size_pct"`
}

// SimulationConfig holds savings simulation parameters
type SimulationConfig struct {
	MinCapacityPct    float64 `mapstructure:"min_capacity_pct"`
	MaxCapacityPct    float64 `mapstructure:"max_capacity_pct"`
	IdleCoefficient   float64 `mapstructure:"idle_coefficient"`
	PowerPerCapacityW float64 `mapstructure:"power_per_capacity_watt"`
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// Load loads configuration from file and environment variables.
// If configPath is provided, it will be used to load the configuration from that specific file.
// Otherwise, it will look for config.yaml in standard locations.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("CLOUDOPT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	err := v.ReadInConfig()
	if err != nil {
		// If we have a specific config path and it doesn't exist, return error
		if configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// For default config paths, it's okay if no config file is found
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that threshold, simulation, model and telemetry
// parameters are internally consistent. Violations are *ConfigError.
func (c *Config) Validate() error {
	t := c.Thresholds
	if t.UpperThreshold <= 0 || t.UpperThreshold > 100 {
		return &ConfigError{Field: "thresholds.upper_threshold", Reason: "must be in (0, 100]"}
	}
	if t.LowerThreshold <= 0 || t.LowerThreshold > 100 {
		return &ConfigError{Field: "thresholds.lower_threshold", Reason: "must be in (0, 100]"}
	}
	if t.LowerThreshold >= t.UpperThreshold {
		return &ConfigError{Field: "thresholds.lower_threshold", Reason: "must be below upper_threshold"}
	}
	if t.StepSizePct <= 0 {
		return &ConfigError{Field: "thresholds.step_size_pct", Reason: "must be positive"}
	}

	s := c.Simulation
	if s.MinCapacityPct < 0 {
		return &ConfigError{Field: "simulation.min_capacity_pct", Reason: "must be non-negative"}
	}
	if s.MaxCapacityPct <= s.MinCapacityPct {
		return &ConfigError{Field: "simulation.max_capacity_pct", Reason: "must be above min_capacity_pct"}
	}
	if s.IdleCoefficient < 0 || s.IdleCoefficient > 1 {
		return &ConfigError{Field: "simulation.idle_coefficient", Reason: "must be in [0, 1]"}
	}
	if s.PowerPerCapacityW <= 0 {
		return &ConfigError{Field: "simulation.power_per_capacity_watt", Reason: "must be positive"}
	}

	m := c.Model
	if m.Trees <= 0 {
		return &ConfigError{Field: "model.trees", Reason: "must be positive"}
	}
	if m.MinSamplesSplit < 2 {
		return &ConfigError{Field: "model.min_samples_split", Reason: "must be at least 2"}
	}
	if m.MaxDepth <= 0 {
		return &ConfigError{Field: "model.max_depth", Reason: "must be positive"}
	}

	if c.Telemetry.Interval <= 0 {
		return &ConfigError{Field: "telemetry.interval", Reason: "must be positive"}
	}
	if c.Telemetry.SeedSamples < 25 {
		// A generated dataset must cover at least one full day plus the
		// history window the feature builder consumes.
		return &ConfigError{Field: "telemetry.seed_samples", Reason: "must be at least 25"}
	}
	if c.Telemetry.SeedCost < 0 {
		return &ConfigError{Field: "telemetry.seed_cost", Reason: "must be non-negative"}
	}

	return nil
}

// setDefaults sets default values for the configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cloudopt")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "0.1.0")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "json")

	// Telemetry defaults: one week of hourly samples at a flat
	// 0.60 currency units per provisioned interval
	v.SetDefault("telemetry.metrics_path", "./data/sample_metrics.csv")
	v.SetDefault("telemetry.interval", time.Hour)
	v.SetDefault("telemetry.seed_samples", 168)
	v.SetDefault("telemetry.seed_cost", 0.60)

	// Model defaults
	v.SetDefault("model.trees", 50)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.min_samples_split", 10)
	v.SetDefault("model.max_depth", 12)

	// Threshold defaults
	v.SetDefault("thresholds.upper_threshold", 75.0)
	v.SetDefault("thresholds.lower_threshold", 30.0)
	v.SetDefault("thresholds.step_size_pct", 10.0)

	// Simulation defaults
	v.SetDefault("simulation.min_capacity_pct", 10.0)
	v.SetDefault("simulation.max_capacity_pct", 200.0)
	v.SetDefault("simulation.idle_coefficient", 0.35)
	v.SetDefault("simulation.power_per_capacity_watt", 4.5)
}
