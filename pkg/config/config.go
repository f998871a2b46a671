// Package config provides configuration management for the matching engine.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for a matching run.
type Config struct {
	Run       RunConfig       `mapstructure:"run"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// RunConfig holds the parameters of a single matching run, mirroring the
// CLI surface of `matchctl run`.
type RunConfig struct {
	Input         string   `mapstructure:"input"`         // edge-list path (required unless HTTP source is set)
	InputURL      string   `mapstructure:"input_url"`     // alternative HTTP edge source
	N             int64    `mapstructure:"n"`             // vertex count n, used to derive S and R; 0 = unknown
	Alpha         float64  `mapstructure:"alpha"`         // memory exponent, S = ceil(n^alpha * 1000)
	MemGB         float64  `mapstructure:"mem_gb"`        // per-machine memory budget in GiB, 0 = unset
	MetricsOutDir string   `mapstructure:"metrics_out"`   // directory (key prefix in the artifact store) for metrics_run.json/.csv
	SafetyFactor  float64  `mapstructure:"safety_factor"` // throttles the driver's adaptive sampling probability p; does not affect S
	Seed          int64    `mapstructure:"seed"`          // hash salt
	MaxPhases     int      `mapstructure:"max_phases"`    // Driver termination bound
	MemFloor      int      `mapstructure:"mem_floor"`     // minimum S regardless of n^alpha
	Rounds        int      `mapstructure:"rounds"`        // R, exponentiation rounds per phase; 0 = derive from n
	Ranks         int      `mapstructure:"ranks"`         // P for the in-process transport
	Peers         []string `mapstructure:"peers"`         // rank addresses for the gRPC transport
	Summary       bool     `mapstructure:"summary"`       // print the human-readable report after the run
	PprofDir      string   `mapstructure:"pprof_dir"`     // if set, collect CPU/heap/goroutine profiles here during the run
}

// DatabaseConfig holds the optional run-repository connection configuration.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Type     string `mapstructure:"type"` // sqlite, postgres, or mysql
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds artifact storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
	LocalPath string `mapstructure:"local_path"`
	Compress  bool   `mapstructure:"compress"` // zstd-compress metrics_run.json/.csv before upload
}

// TelemetryConfig holds OpenTelemetry tracing configuration.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
	Protocol    string `mapstructure:"protocol"` // grpc or http
	Insecure    bool   `mapstructure:"insecure"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path, falling back to
// standard locations and defaults when no file is found.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("matchctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/matchctl")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("MATCHCTL")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw bytes (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Run defaults
	v.SetDefault("run.alpha", 0.2)
	v.SetDefault("run.safety_factor", 1.0)
	v.SetDefault("run.max_phases", 64)
	v.SetDefault("run.mem_floor", 2000)
	v.SetDefault("run.ranks", 4)
	v.SetDefault("run.metrics_out", "./metrics")
	v.SetDefault("run.seed", 1)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.database", "./matchctl.db")
	v.SetDefault("database.max_conns", 10)

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./metrics")
	v.SetDefault("storage.compress", false)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "mpc-matching")
	v.SetDefault("telemetry.protocol", "grpc")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Run.Input == "" && c.Run.InputURL == "" {
		return fmt.Errorf("one of run.input or run.input_url is required")
	}
	if c.Run.Alpha <= 0 || c.Run.Alpha >= 1 {
		return fmt.Errorf("run.alpha must be in (0, 1), got %v", c.Run.Alpha)
	}
	if c.Run.SafetyFactor <= 0 {
		return fmt.Errorf("run.safety_factor must be positive")
	}
	if c.Run.MemFloor < 1 {
		return fmt.Errorf("run.mem_floor must be at least 1")
	}
	if c.Run.Rounds < 0 {
		return fmt.Errorf("run.rounds must be non-negative (0 derives R from n)")
	}
	if len(c.Run.Peers) == 0 && c.Run.Ranks < 1 {
		return fmt.Errorf("run.ranks must be at least 1 when no peers are configured")
	}

	if c.Database.Enabled {
		switch c.Database.Type {
		case "sqlite", "postgres", "mysql":
		default:
			return fmt.Errorf("unsupported database type: %s", c.Database.Type)
		}
	}

	// Storage config validation is delegated to the storage package.

	return nil
}

// EnsureMetricsDir creates the metrics output directory if it doesn't exist
// and storage is local.
func (c *Config) EnsureMetricsDir() error {
	if c.Storage.Type != "local" || c.Run.MetricsOutDir == "" {
		return nil
	}
	return os.MkdirAll(c.Run.MetricsOutDir, 0755)
}
