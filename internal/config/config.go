package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meeyouu/skiniveAPI/internal/relay"
	"github.com/meeyouu/skiniveAPI/internal/repository"
)

// Config holds the process settings read from the environment.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	SessionSecret   string
	SessionTTL      time.Duration
	RedisAddr       string
	MaxSessions     int
	RelayTimeout    time.Duration
	ShutdownTimeout time.Duration
	PreviewMaxWidth uint
	Defaults        relay.Config

	// GeneratedSecret is set when SESSION_SECRET was empty and a random
	// secret was created for this process.
	GeneratedSecret bool
}

// Load reads the configuration, falling back to defaults for unset or
// unparsable values.
func Load() Config {
	cfg := Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		SessionSecret:   strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		SessionTTL:      getDuration("SESSION_TTL", 30*time.Minute),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		MaxSessions:     int(getUint("MAX_SESSIONS", repository.DefaultMaxSessions)),
		RelayTimeout:    getDuration("RELAY_TIMEOUT", relay.DefaultTimeout),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		PreviewMaxWidth: getUint("PREVIEW_MAX_WIDTH", 640),
		Defaults: relay.Config{
			ValidateURL: getEnv("SKINIVE_VALIDATE_URL", relay.DefaultValidateURL),
			PredictURL:  getEnv("SKINIVE_PREDICT_URL", relay.DefaultPredictURL),
			ClassesURL:  getEnv("SKINIVE_CLASSES_URL", relay.DefaultClassesURL),
			Locale:      getEnv("SKINIVE_LOCALE", relay.LocaleEN),
		},
	}

	if cfg.Defaults.Locale != relay.LocaleEN && cfg.Defaults.Locale != relay.LocaleRU {
		cfg.Defaults.Locale = relay.LocaleEN
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = uuid.NewString() + uuid.NewString()
		cfg.GeneratedSecret = true
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func getUint(key string, fallback uint) uint {
	value, err := strconv.ParseUint(os.Getenv(key), 10, 32)
	if err != nil {
		return fallback
	}
	return uint(value)
}
