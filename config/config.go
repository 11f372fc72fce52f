package config

import (
	"os"
	"strings"
	"time"
)

// UnmatchPolicy values. "retain" keeps the action history after an unmatch
// so the pair can never auto-rematch; "purge" clears both direction slots so
// a later mutual re-like can match again.
const (
	UnmatchRetain = "retain"
	UnmatchPurge  = "purge"
)

// Config holds application configuration
type Config struct {
	ServerPort     string
	AWSRegion      string
	S3Bucket       string
	JWTSecret      string
	JWTTTL         time.Duration
	UnmatchPolicy  string
	AllowedOrigins []string
}

// Load loads configuration from environment variables
func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-do-not-use-in-prod"
	}

	jwtTTL := 24 * time.Hour
	if v := os.Getenv("JWT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			jwtTTL = d
		}
	}

	unmatchPolicy := os.Getenv("UNMATCH_POLICY")
	if unmatchPolicy != UnmatchPurge {
		unmatchPolicy = UnmatchRetain
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")

	cfg := Config{
		ServerPort:    port,
		AWSRegion:     os.Getenv("AWS_REGION"),
		S3Bucket:      os.Getenv("S3_BUCKET_NAME"),
		JWTSecret:     jwtSecret,
		JWTTTL:        jwtTTL,
		UnmatchPolicy: unmatchPolicy,
	}

	if allowedOrigins != "" {
		cfg.AllowedOrigins = strings.Split(allowedOrigins, ",")
		for i := range cfg.AllowedOrigins {
			cfg.AllowedOrigins[i] = strings.TrimSpace(cfg.AllowedOrigins[i])
		}
	}

	return cfg
}
