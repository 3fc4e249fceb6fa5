// Package config loads simulation settings from a YAML file with
// environment overrides, viper-backed like the rest of the tooling.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full `greensched run` configuration
type Config struct {
	Platform  string          `mapstructure:"platform"`  // platform YAML (nodes, power model)
	Workload  string          `mapstructure:"workload"`  // workload YAML; empty means generated
	StartTime string          `mapstructure:"start_time"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Output    OutputConfig    `mapstructure:"output"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
}

// SchedulerConfig holds the control-loop cadences in simulation seconds
type SchedulerConfig struct {
	PowerCheckInterval float64 `mapstructure:"power_check_interval"`
	RecordInterval     float64 `mapstructure:"record_interval"`
}

// PolicyConfig parameterizes the power policy
type PolicyConfig struct {
	Name        string `mapstructure:"name"` // "queue_depth" or "noop"
	SpareNodes  int    `mapstructure:"spare_nodes"`
	MaxSleeping int    `mapstructure:"max_sleeping"`
}

// ForecastConfig points at the external demand predictor
type ForecastConfig struct {
	URL     string        `mapstructure:"url"` // empty disables forecasting
	Window  int           `mapstructure:"window"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OutputConfig names the run artifacts
type OutputConfig struct {
	RecordFile string `mapstructure:"record_file"`
	Database   string `mapstructure:"database"` // empty disables SQLite persistence
}

// HTTPConfig configures the status/metrics endpoint during a run
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LogConfig configures the structured logger
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("platform", "platform.yaml")
	v.SetDefault("start_time", "2023-01-01T00:00:00Z")
	v.SetDefault("scheduler.power_check_interval", 1800.0)
	v.SetDefault("scheduler.record_interval", 60.0)
	v.SetDefault("policy.name", "queue_depth")
	v.SetDefault("policy.spare_nodes", 2)
	v.SetDefault("policy.max_sleeping", 0)
	v.SetDefault("forecast.window", 60)
	v.SetDefault("forecast.timeout", 2*time.Second)
	v.SetDefault("output.record_file", "power_control_record.csv")
	v.SetDefault("http.enabled", false)
	v.SetDefault("http.listen", ":9090")
	v.SetDefault("log.level", "info")
}

// Load reads the config file at path, or defaults when path is empty.
// Environment variables prefixed GREENSCHED_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GREENSCHED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the simulator cannot run with
func (c *Config) Validate() error {
	if c.Scheduler.PowerCheckInterval <= 0 {
		return fmt.Errorf("scheduler.power_check_interval must be positive")
	}
	if c.Scheduler.RecordInterval <= 0 {
		return fmt.Errorf("scheduler.record_interval must be positive")
	}
	if c.Policy.Name != "queue_depth" && c.Policy.Name != "noop" {
		return fmt.Errorf("unknown policy %q", c.Policy.Name)
	}
	if _, err := c.Start(); err != nil {
		return err
	}
	return nil
}

// Start parses the configured simulation start time
func (c *Config) Start() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse start_time: %w", err)
	}
	return t, nil
}
