package config

import (
	"fmt"
	"time"

	"github.com/turtacn/ccs/pkg/constants"
)

// Config holds the application's configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Generation GenerationConfig `mapstructure:"generation"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxConns        int    `mapstructure:"max_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime"` // in minutes
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`   // per-query timeout
}

// GetDSN builds the postgres connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Timeout returns the per-query timeout as a duration.
func (c *DatabaseConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return constants.DefaultDatastoreTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type RedisConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Addresses    []string `mapstructure:"addresses"`
	Password     string   `mapstructure:"password"`
	DB           int      `mapstructure:"db"`
	PoolSize     int      `mapstructure:"pool_size"`
	MinIdleConns int      `mapstructure:"min_idle_conns"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	AuditTopic   string        `mapstructure:"audit_topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// GenerationConfig configures the external completion backend. The credential
// is a construction-time requirement: the service refuses to start without it.
type GenerationConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"` // empty means the provider default
	Model          string `mapstructure:"model"`
	JudgeModel     string `mapstructure:"judge_model"` // cheaper model for risk judgments
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the generation call timeout as a duration.
func (c *GenerationConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return constants.DefaultGenerationTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type RateLimitConfig struct {
	Enabled       bool                       `mapstructure:"enabled"`
	Backend       constants.RateLimitBackend `mapstructure:"backend"`
	WindowMillis  int                        `mapstructure:"window_millis"`
	MaxRequests   int                        `mapstructure:"max_requests"`
	SweepInterval time.Duration              `mapstructure:"sweep_interval"`
}

// Window returns the sliding-window duration.
func (c *RateLimitConfig) Window() time.Duration {
	if c.WindowMillis <= 0 {
		return constants.DefaultRateLimitWindow
	}
	return time.Duration(c.WindowMillis) * time.Millisecond
}

type RiskConfig struct {
	HighThreshold  int `mapstructure:"high_threshold"`  // >= blocks the turn
	LogThreshold   int `mapstructure:"log_threshold"`   // >= records on session
	MinJudgeLength int `mapstructure:"min_judge_length"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// JudgeTimeout returns the semantic judgment timeout as a duration.
func (c *RiskConfig) JudgeTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return constants.DefaultJudgeTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

type MonitoringConfig struct {
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if c.Generation.APIKey == "" {
		return fmt.Errorf("generation.api_key is required")
	}
	if c.RateLimit.MaxRequests < 0 {
		return fmt.Errorf("rate_limit.max_requests must not be negative")
	}
	if c.Risk.HighThreshold < constants.RiskLevelMin || c.Risk.HighThreshold > constants.RiskLevelMax {
		return fmt.Errorf("risk.high_threshold must be within [%d,%d]",
			constants.RiskLevelMin, constants.RiskLevelMax)
	}
	if c.Risk.LogThreshold > c.Risk.HighThreshold {
		return fmt.Errorf("risk.log_threshold must not exceed risk.high_threshold")
	}
	return nil
}
