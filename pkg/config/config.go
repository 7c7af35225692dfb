package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Algorithm modes select the meta-path selection strategy.
const (
	ModeResearch = "research"
	ModeBaseline = "baseline"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Datasets configuration
	Datasets DatasetsConfig `mapstructure:"datasets"`

	// Persistence configuration
	Persistence PersistenceConfig `mapstructure:"persistence"`

	// Session configuration
	Session SessionConfig `mapstructure:"session"`

	// Learning configuration
	Learning LearningConfig `mapstructure:"learning"`

	// Explanation configuration
	Explanation ExplanationConfig `mapstructure:"explanation"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
	DbURL       string `mapstructure:"db_url"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json, color
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds the Neo4j connection used to enumerate meta-paths
// between ad-hoc node sets. An empty URI disables it.
type DatabaseConfig struct {
	URI           string `mapstructure:"uri"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	MaxPathLength int    `mapstructure:"max_path_length"`
}

// DatasetsConfig holds the location of file-based datasets
type DatasetsConfig struct {
	Dir string `mapstructure:"dir"`
}

// PersistenceConfig selects where finished rating sessions are stored
type PersistenceConfig struct {
	Backend string `mapstructure:"backend"` // json, parquet, badger
	Dir     string `mapstructure:"dir"`
}

// SessionConfig bounds the number of live sessions
type SessionConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// LearningConfig holds active-learning parameters
type LearningConfig struct {
	Mode           string  `mapstructure:"mode"` // research, baseline
	Seed           int64   `mapstructure:"seed"`
	LengthScale    float64 `mapstructure:"length_scale"`
	SignalVariance float64 `mapstructure:"signal_variance"`
	NoiseVariance  float64 `mapstructure:"noise_variance"`
	LearningRate   float64 `mapstructure:"learning_rate"`
	Epochs         int     `mapstructure:"epochs"`
	L2             float64 `mapstructure:"l2"`
}

// ExplanationConfig holds similarity explanation parameters
type ExplanationConfig struct {
	TopK          int   `mapstructure:"top_k"`
	InstanceLimit int   `mapstructure:"instance_limit"`
	ColorSeed     int64 `mapstructure:"color_seed"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Learning.Mode {
	case ModeResearch, ModeBaseline:
	default:
		return fmt.Errorf("invalid learning mode %q: must be %q or %q", c.Learning.Mode, ModeResearch, ModeBaseline)
	}
	switch c.Persistence.Backend {
	case "json", "parquet", "badger":
	default:
		return fmt.Errorf("invalid persistence backend %q", c.Persistence.Backend)
	}
	if c.Session.Capacity < 1 {
		return fmt.Errorf("session capacity must be at least 1, got %d", c.Session.Capacity)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.uri", "")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "neo4j")
	viper.SetDefault("database.max_path_length", 4)

	viper.SetDefault("datasets.dir", "testdata/datasets")

	viper.SetDefault("persistence.backend", "json")
	viper.SetDefault("persistence.dir", "rated_datasets")

	viper.SetDefault("session.capacity", 500)

	viper.SetDefault("learning.mode", ModeResearch)
	viper.SetDefault("learning.seed", 42)
	viper.SetDefault("learning.length_scale", 1.5)
	viper.SetDefault("learning.signal_variance", 0.25)
	viper.SetDefault("learning.noise_variance", 0.01)
	viper.SetDefault("learning.learning_rate", 0.5)
	viper.SetDefault("learning.epochs", 500)
	viper.SetDefault("learning.l2", 0.001)

	viper.SetDefault("explanation.top_k", 5)
	viper.SetDefault("explanation.instance_limit", 5)
	viper.SetDefault("explanation.color_seed", 1)

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		defaultPath := fmt.Sprintf("%s/.metaexp/telemetry", home)
		viper.SetDefault("telemetry.parquet_path", defaultPath)
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Database credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}

	if dir := os.Getenv("METAEXP_DATASETS_DIR"); dir != "" {
		config.Datasets.Dir = dir
	}
	if dir := os.Getenv("METAEXP_RATED_DIR"); dir != "" {
		config.Persistence.Dir = dir
	}
	if mode := os.Getenv("METAEXP_MODE"); mode != "" {
		config.Learning.Mode = mode
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
	if url := os.Getenv("TELEMETRY_DB_URL"); url != "" {
		config.Telemetry.DbURL = url
	}
}
