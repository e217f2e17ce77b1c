package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string

	OCRMode         string
	OCRBaseURL      string
	OCRSyncPath     string
	OCRStartPath    string
	OCRStatusPath   string
	OCRPollInterval time.Duration
	OCRPollTimeout  time.Duration
	OCRPDFTextLayer bool
	OCRPDFMinChars  int

	InterpretURL      string
	InterpretMaxChars int
	TranslateURL      string

	UILang            string
	DefaultTargetLang string
	FileTypesPath     string
	JPEGQuality       int

	NATSURL         string
	NATSChatSubject string

	RedisURL      string
	CacheTTL      time.Duration
	CacheMaxItems int

	PostgresDSN string
	FreeRuns    int

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	MaxUploadBytes    int64

	BreakerEnabled          bool
	BreakerMinRequests      int
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls int
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		OCRMode:         mustEnv("OCR_MODE", "async"),
		OCRBaseURL:      mustEnv("OCR_BASE_URL", "http://localhost:8000"),
		OCRSyncPath:     mustEnv("OCR_SYNC_PATH", "/api/ocr"),
		OCRStartPath:    mustEnv("OCR_START_PATH", "/api/ocr/start"),
		OCRStatusPath:   mustEnv("OCR_STATUS_PATH", "/api/ocr/status"),
		OCRPollInterval: mustEnvDuration("OCR_POLL_INTERVAL", 1500*time.Millisecond),
		OCRPollTimeout:  mustEnvDuration("OCR_POLL_TIMEOUT", 240*time.Second),
		OCRPDFTextLayer: mustEnvBool("OCR_PDF_TEXT_LAYER", false),
		OCRPDFMinChars:  mustEnvInt("OCR_PDF_MIN_CHARS", 40),

		InterpretURL:      mustEnv("INTERPRET_URL", "http://localhost:8000/api/interpret"),
		InterpretMaxChars: mustEnvInt("INTERPRET_MAX_CHARS", 12000),
		TranslateURL:      mustEnv("TRANSLATE_URL", "http://localhost:8000/api/translate"),

		UILang:            mustEnv("UI_LANG", "en"),
		DefaultTargetLang: mustEnv("DEFAULT_TARGET_LANG", "en"),
		FileTypesPath:     mustEnv("FILE_TYPES_PATH", ""),
		JPEGQuality:       mustEnvInt("JPEG_QUALITY", 92),

		NATSURL:         mustEnv("NATS_URL", ""),
		NATSChatSubject: mustEnv("NATS_CHAT_SUBJECT", "mailbills.chat"),

		RedisURL:      mustEnv("REDIS_URL", ""),
		CacheTTL:      mustEnvDuration("CACHE_TTL", time.Hour),
		CacheMaxItems: mustEnvInt("CACHE_MAX_ITEMS", 256),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),
		FreeRuns:    mustEnvInt("FREE_RUNS", 3),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 2),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 5),
		MaxUploadBytes:    int64(mustEnvInt("MAX_UPLOAD_BYTES", 25<<20)),

		BreakerEnabled:          mustEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:      mustEnvInt("BREAKER_MIN_REQUESTS", 5),
		BreakerFailureRatio:     mustEnvFloat("BREAKER_FAILURE_RATIO", 0.6),
		BreakerOpenTimeout:      mustEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		BreakerHalfOpenMaxCalls: mustEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 1),
	}
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
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
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

// mustEnvDuration accepts Go durations ("1.5s") or bare milliseconds ("1500").
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
