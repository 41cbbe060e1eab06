package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/turtacn/ccs/pkg/constants"
)

// LoadConfig loads the configuration from file and environment variables.
// Environment variables use the CCS_ prefix with underscores, e.g.
// CCS_GENERATION_API_KEY, CCS_DATABASE_HOST.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigLenient()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigLenient loads configuration without cross-field validation.
// Used by provisioning tools that do not need the generation credential.
func LoadConfigLenient() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/ccs/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("CCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 180)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_conn_lifetime", 30)
	v.SetDefault("database.timeout_seconds", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.audit_topic", "ccs.audit")
	v.SetDefault("kafka.write_timeout", "5s")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "500ms")

	v.SetDefault("generation.model", constants.DefaultGenerationModel)
	v.SetDefault("generation.judge_model", constants.DefaultGenerationModel)
	v.SetDefault("generation.timeout_seconds", 120)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", string(constants.RateLimitBackendMemory))
	v.SetDefault("rate_limit.window_millis", int(constants.DefaultRateLimitWindow.Milliseconds()))
	v.SetDefault("rate_limit.max_requests", constants.DefaultRateLimitMaxRequests)
	v.SetDefault("rate_limit.sweep_interval", constants.DefaultRateLimitSweepInterval.String())

	v.SetDefault("risk.high_threshold", constants.DefaultHighRiskThreshold)
	v.SetDefault("risk.log_threshold", constants.DefaultLogRiskThreshold)
	v.SetDefault("risk.min_judge_length", constants.DefaultMinJudgeLength)
	v.SetDefault("risk.timeout_seconds", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "ccs-chat-service")

	v.SetDefault("monitoring.pprof_enabled", false)
}
