package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides
const EnvPrefix = "CLINICAL"

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Model    ModelConfig    `mapstructure:"model"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ModelConfig holds model runtime settings
type ModelConfig struct {
	ID             string        `mapstructure:"id"`
	Revision       string        `mapstructure:"revision"`
	CacheDir       string        `mapstructure:"cache_dir"`
	AuthToken      string        `mapstructure:"auth_token"`
	Backend        string        `mapstructure:"backend"`
	Device         string        `mapstructure:"device"`
	MaxLength      int           `mapstructure:"max_length"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	LoadTimeout    time.Duration `mapstructure:"load_timeout"`
	ONNX           ONNXConfig    `mapstructure:"onnx"`
	KServe         KServeConfig  `mapstructure:"kserve"`
}

// ONNXConfig holds ONNX Runtime settings
type ONNXConfig struct {
	// File is downloaded from the model repository unless Path is set
	File string `mapstructure:"file"`
	// Path is a local ONNX export used instead of File
	Path string `mapstructure:"path"`

	SharedLibrary string `mapstructure:"shared_library"`
	IntraThreads  int    `mapstructure:"intra_threads"`
}

// KServeConfig holds settings for a remote Open Inference Protocol server
type KServeConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	ModelName    string        `mapstructure:"model_name"`
	ModelVersion string        `mapstructure:"model_version"`
	OutputName   string        `mapstructure:"output_name"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig holds PostgreSQL settings for the prediction log
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds Redis settings for the prediction cache
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Supported model backends
const (
	BackendONNX   = "onnx"
	BackendKServe = "kserve"
)

// Load reads configuration from defaults, an optional config file and the environment
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
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

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Model
	v.SetDefault("model.id", "bvanaken/clinical-assertion-negation-bert")
	v.SetDefault("model.revision", "main")
	v.SetDefault("model.cache_dir", "")
	v.SetDefault("model.auth_token", "")
	v.SetDefault("model.backend", BackendONNX)
	v.SetDefault("model.device", "auto")
	v.SetDefault("model.max_length", 512)
	v.SetDefault("model.max_concurrency", 0)
	v.SetDefault("model.load_timeout", 10*time.Minute)
	v.SetDefault("model.onnx.file", "model.onnx")
	v.SetDefault("model.onnx.path", "")
	v.SetDefault("model.onnx.shared_library", "")
	v.SetDefault("model.onnx.intra_threads", 0)
	v.SetDefault("model.kserve.endpoint", "http://localhost:8080")
	v.SetDefault("model.kserve.model_name", "clinical-assertion")
	v.SetDefault("model.kserve.model_version", "")
	v.SetDefault("model.kserve.output_name", "logits")
	v.SetDefault("model.kserve.timeout", 30*time.Second)

	// Database
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "clinical")
	v.SetDefault("database.password", "clinical")
	v.SetDefault("database.dbname", "clinical")
	v.SetDefault("database.sslmode", "disable")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Model.ID) == "" {
		return errors.New("model id is required")
	}
	if c.Model.MaxLength <= 0 {
		return fmt.Errorf("invalid model max_length: %d", c.Model.MaxLength)
	}
	switch c.Model.Backend {
	case BackendONNX, BackendKServe:
	default:
		return fmt.Errorf("unknown model backend: %q", c.Model.Backend)
	}
	switch c.Model.Device {
	case "auto", "cpu", "cuda":
	default:
		return fmt.Errorf("unknown model device: %q", c.Model.Device)
	}
	return nil
}

// Addr returns the listen address for the HTTP server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
