package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	LogDir       string
	JWTSecret    string

	// Decision thresholds (0-100 threat score scale).
	BlockThreshold     int
	ChallengeThreshold int
	LogScoreThreshold  int

	// Evaluator tuning.
	ReputationThreshold  int
	ReputationPath       string
	RateLimit            int
	RateLimitWindow      time.Duration
	GeoBlockedCountries  []string
	GeoAllowedCountries  []string
	GeoDBPath            string
	TrustedCountryHeader string
	EvaluatorTimeout     time.Duration

	// Rule snapshot and event pipeline.
	SnapshotRefresh time.Duration
	EventQueueSize  int

	// Deployment pipeline gates.
	CanaryPercent      int
	PromoteSuccessRate float64
	PromoteMaxFPR      float64
	PromoteMinSamples  int
	ReviewTimeout      time.Duration

	// Adaptive rule generation.
	AdaptiveConfidence float64
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:  getEnv("AEGIS_ENV", "development"),
		HTTPPort:     getEnv("AEGIS_HTTP_PORT", "8080"),
		DatabasePath: getEnv("AEGIS_DB_PATH", filepath.Join("data", "aegis.db")),
		LogDir:       getEnv("AEGIS_LOG_DIR", filepath.Join("data", "logs")),
		JWTSecret:    getEnv("AEGIS_JWT_SECRET", ""),

		BlockThreshold:     getEnvInt("AEGIS_BLOCK_THRESHOLD", 80),
		ChallengeThreshold: getEnvInt("AEGIS_CHALLENGE_THRESHOLD", 40),
		LogScoreThreshold:  getEnvInt("AEGIS_LOG_SCORE_THRESHOLD", 30),

		ReputationThreshold:  getEnvInt("AEGIS_REPUTATION_THRESHOLD", 30),
		ReputationPath:       getEnv("AEGIS_REPUTATION_PATH", ""),
		RateLimit:            getEnvInt("AEGIS_RATE_LIMIT", 100),
		RateLimitWindow:      getEnvDuration("AEGIS_RATE_WINDOW", 60*time.Second),
		GeoBlockedCountries:  getEnvList("AEGIS_GEO_BLOCKED", ""),
		GeoAllowedCountries:  getEnvList("AEGIS_GEO_ALLOWED", ""),
		GeoDBPath:            getEnv("AEGIS_GEOIP_DB", ""),
		TrustedCountryHeader: getEnv("AEGIS_COUNTRY_HEADER", "X-Country-Code"),
		EvaluatorTimeout:     getEnvDuration("AEGIS_EVALUATOR_TIMEOUT", 500*time.Millisecond),

		SnapshotRefresh: getEnvDuration("AEGIS_SNAPSHOT_REFRESH", 30*time.Second),
		EventQueueSize:  getEnvInt("AEGIS_EVENT_QUEUE", 1024),

		CanaryPercent:      getEnvInt("AEGIS_CANARY_PERCENT", 10),
		PromoteSuccessRate: getEnvFloat("AEGIS_PROMOTE_SUCCESS_RATE", 0.9),
		PromoteMaxFPR:      getEnvFloat("AEGIS_PROMOTE_MAX_FPR", 0.05),
		PromoteMinSamples:  getEnvInt("AEGIS_PROMOTE_MIN_SAMPLES", 20),
		ReviewTimeout:      getEnvDuration("AEGIS_REVIEW_TIMEOUT", 24*time.Hour),

		AdaptiveConfidence: getEnvFloat("AEGIS_ADAPTIVE_CONFIDENCE", 0.8),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}

	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}

	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}

	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
