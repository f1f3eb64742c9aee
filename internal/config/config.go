package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// APIConfig holds everything the HTTP server needs. Google and Twilio
// settings may be blank; the matching features then degrade (no OAuth
// login, local phone codes).
type APIConfig struct {
	Addr         string
	DatabaseURL  string
	SessionTTL   time.Duration
	CookieSecure bool

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioVerifySID  string

	// JobAuthToken guards the job trigger endpoints. Blank leaves
	// them open, which is only sensible in development.
	JobAuthToken string

	ModelConfigPath string
	FeedURL         string
	IngestLimit     int
	CurationMinAge  time.Duration
	CurationCurve   []int64
}

// WorkerConfig drives the background loop.
type WorkerConfig struct {
	DatabaseURL     string
	Interval        time.Duration
	RunOnce         bool
	ModelConfigPath string
	FeedURL         string
	IngestLimit     int
	CurationMinAge  time.Duration
	CurationCurve   []int64
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() (APIConfig, error) {
	cfg := APIConfig{
		Addr:               envDefault("LM_API_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SessionTTL:         envDurationDefault("LM_SESSION_TTL", 14*24*time.Hour),
		CookieSecure:       envBoolDefault("LM_COOKIE_SECURE", false),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioVerifySID:    os.Getenv("TWILIO_VERIFY_SERVICE_SID"),
		JobAuthToken:       os.Getenv("JOB_AUTH_TOKEN"),
		ModelConfigPath:    envDefault("LM_MODEL_CONFIG", "config/model_agents.yaml"),
		FeedURL:            envDefault("LM_FEED_URL", "https://marginalrevolution.com/feed"),
		IngestLimit:        envIntDefault("LM_INGEST_LIMIT", 10),
		CurationMinAge:     envDurationDefault("LM_CURATION_MIN_AGE", 24*time.Hour),
		CurationCurve:      envCurveDefault("LM_CURATION_CURVE", []int64{40, 20, 10}),
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		Interval:        envDurationDefault("LM_WORKER_INTERVAL", 15*time.Minute),
		RunOnce:         envBoolDefault("LM_WORKER_RUN_ONCE", false),
		ModelConfigPath: envDefault("LM_MODEL_CONFIG", "config/model_agents.yaml"),
		FeedURL:         envDefault("LM_FEED_URL", "https://marginalrevolution.com/feed"),
		IngestLimit:     envIntDefault("LM_INGEST_LIMIT", 10),
		CurationMinAge:  envDurationDefault("LM_CURATION_MIN_AGE", 24*time.Hour),
		CurationCurve:   envCurveDefault("LM_CURATION_CURVE", []int64{40, 20, 10}),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: envDefault("LM_API_BASE_URL", "http://localhost:8080"),
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envIntDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envCurveDefault parses a comma-separated payout curve like
// "40,20,10". Malformed or rising curves fall back.
func envCurveDefault(key string, fallback []int64) []int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	curve := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || n < 0 {
			return fallback
		}
		curve = append(curve, n)
	}
	for i := 1; i < len(curve); i++ {
		if curve[i] > curve[i-1] {
			return fallback
		}
	}
	if len(curve) == 0 {
		return fallback
	}
	return curve
}
