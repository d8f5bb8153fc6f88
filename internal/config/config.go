package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string

	SettingsPath string
	MaxFileSize  int64

	OCRTimeout         time.Duration
	OCRMaxResponseSize int64
	OCROnLocalError    bool

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIBackpressureWait time.Duration
	APIAuthToken        string

	UpdateManifestURL  string
	UpdateTimeout      time.Duration
	UpdateRestartGrace time.Duration

	SubmitTimeout time.Duration

	WatchDir      string
	WatchDebounce time.Duration
	LedgerDSN     string

	NATSURL     string
	NATSSubject string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8765"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		SettingsPath: mustEnv("SETTINGS_PATH", defaultDataPath("store.yaml")),
		MaxFileSize:  int64(mustEnvInt("MAX_FILE_SIZE_BYTES", 10*1024*1024)),

		OCRTimeout:         mustEnvDuration("OCR_TIMEOUT", 120*time.Second),
		OCRMaxResponseSize: int64(mustEnvInt("OCR_MAX_RESPONSE_BYTES", 32*1024*1024)),
		OCROnLocalError:    mustEnvBool("OCR_ON_LOCAL_ERROR", true),

		BreakerEnabled:          mustEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:      uint32(mustEnvInt("BREAKER_MIN_REQUESTS", 5)),
		BreakerFailureRatio:     mustEnvFloat("BREAKER_FAILURE_RATIO", 0.6),
		BreakerOpenTimeout:      mustEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		BreakerHalfOpenMaxCalls: uint32(mustEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 1)),

		APIRateLimitRPS:     mustEnvFloat("API_RATE_LIMIT_RPS", 10),
		APIRateLimitBurst:   mustEnvInt("API_RATE_LIMIT_BURST", 20),
		APIMaxInFlight:      mustEnvInt("API_MAX_IN_FLIGHT", 4),
		APIBackpressureWait: mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),
		APIAuthToken:        mustEnv("API_AUTH_TOKEN", ""),

		UpdateManifestURL:  mustEnv("UPDATE_MANIFEST_URL", ""),
		UpdateTimeout:      mustEnvDuration("UPDATE_HTTP_TIMEOUT", 10*time.Minute),
		UpdateRestartGrace: mustEnvDuration("UPDATE_RESTART_GRACE", 500*time.Millisecond),

		SubmitTimeout: mustEnvDuration("SUBMIT_TIMEOUT", 60*time.Second),

		WatchDir:      mustEnv("WATCH_DIR", defaultWatchDir()),
		WatchDebounce: mustEnvDuration("WATCH_DEBOUNCE", 2*time.Second),
		LedgerDSN:     mustEnv("LEDGER_DSN", "file:"+defaultDataPath("ledger.db")),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "invoices.processing"),
	}
}

func defaultDataPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".", "data", name)
	}
	return filepath.Join(dir, "invoice-agent", name)
}

func defaultWatchDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", "invoices")
	}
	return filepath.Join(home, "Downloads", "invoices")
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
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

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
