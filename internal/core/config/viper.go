package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/solatis/x12keeper/internal/types"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*SegmentAPIConfig, error) {
	v := viper.New()

	// Defaults matching DefaultSegmentAPIConfig
	v.SetDefault("segment_api.host", "0.0.0.0")
	v.SetDefault("segment_api.port", 50061)
	v.SetDefault("segment_api.metrics_port", 9090)
	v.SetDefault("segment_api.request_timeout", "30s")
	v.SetDefault("segment_api.max_segments", types.MaxSegmentsPerDocument)
	v.SetDefault("segment_api.schema_file", "")
	v.SetDefault("segment_api.rate_limit", 0)
	v.SetDefault("segment_api.rate_burst", 20)
	v.SetDefault("logging.env", "prod")
	v.SetDefault("logging.level", "info")

	// X12_SEGMENT_API_PORT overrides segment_api.port
	v.SetEnvPrefix("X12")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &SegmentAPIConfig{
		Host:           v.GetString("segment_api.host"),
		Port:           v.GetInt("segment_api.port"),
		MetricsPort:    v.GetInt("segment_api.metrics_port"),
		RequestTimeout: v.GetDuration("segment_api.request_timeout"),
		MaxSegments:    v.GetInt("segment_api.max_segments"),
		SchemaFile:     v.GetString("segment_api.schema_file"),
		RateLimit:      v.GetFloat64("segment_api.rate_limit"),
		RateBurst:      v.GetInt("segment_api.rate_burst"),
		LogEnv:         v.GetString("logging.env"),
		LogLevel:       v.GetString("logging.level"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port ranges and positive limits.
func validateConfig(cfg *SegmentAPIConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port must be between 0 and 65535, got %d", cfg.MetricsPort)
	}
	if cfg.MetricsPort != 0 && cfg.MetricsPort == cfg.Port {
		return fmt.Errorf("metrics_port must differ from port %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxSegments <= 0 || cfg.MaxSegments > types.MaxSegmentsPerDocument {
		return fmt.Errorf("max_segments must be between 1 and %d, got %d", types.MaxSegmentsPerDocument, cfg.MaxSegments)
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %v", cfg.RateLimit)
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate_limit is set, got %d", cfg.RateBurst)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
// InConfig rather than IsSet: AutomaticEnv makes IsSet true for X12_HMAC_SECRET.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("segment_api.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use X12_HMAC_SECRET environment variable)")
	}
	return nil
}
