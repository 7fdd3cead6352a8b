// Package config provides configuration management for x12keeper services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/solatis/x12keeper/internal/types"
)

// SegmentAPIConfig holds configuration for the gRPC segment API service.
type SegmentAPIConfig struct {
	Host           string
	Port           int
	MetricsPort    int // 0 disables the metrics endpoint
	RequestTimeout time.Duration
	MaxSegments    int     // per stored document
	SchemaFile     string  // optional YAML overlay on the built-in envelope schema
	RateLimit      float64 // requests/second per partner, 0 disables
	RateBurst      int
	LogEnv         string
	LogLevel       string
}

// DefaultSegmentAPIConfig returns configuration with default values.
func DefaultSegmentAPIConfig() *SegmentAPIConfig {
	return &SegmentAPIConfig{
		Host:           "0.0.0.0",
		Port:           50061,
		MetricsPort:    9090,
		RequestTimeout: 30 * time.Second,
		MaxSegments:    types.MaxSegmentsPerDocument,
		RateBurst:      20,
		LogEnv:         "prod",
		LogLevel:       "info",
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports X12_HMAC_SECRET (single) and X12_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("X12_HMAC_SECRET"); val != "" {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("X12_HMAC_SECRET: %w", err)
		}
		secrets[secretID] = decoded
	}

	// Old and new keys stay valid together during rotation
	for i := 1; ; i++ {
		key := fmt.Sprintf("X12_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return nil, fmt.Errorf("duplicate secret_id '%s' found in environment variables (check X12_HMAC_SECRET and X12_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
	}

	return secrets, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUID without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUID without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return secretID, secret, nil
}
