package logger

import (
	"io"
	"os"
	"strconv"
)

// EnvConfig holds logger configuration loaded from environment variables.
type EnvConfig struct {
	Level       string    // LOG_LEVEL
	Format      string    // LOG_FORMAT: json or text
	Output      io.Writer // overrides every file/stdout setting when set
	ServiceName string    // SERVICE_NAME
	Environment string    // APP_ENV: local, dev, prod

	LogFile     string // LOG_FILE, ignored in the local environment
	LogFileOnly bool   // LOG_FILE_ONLY

	// Rotation
	MaxSize    int  // LOG_MAX_SIZE in MB
	MaxBackups int  // LOG_MAX_BACKUPS
	MaxAge     int  // LOG_MAX_AGE in days
	Compress   bool // LOG_COMPRESS
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *EnvConfig {
	return &EnvConfig{
		Level:       envOr("LOG_LEVEL", "info"),
		Format:      envOr("LOG_FORMAT", "json"),
		ServiceName: envOr("SERVICE_NAME", "pokedex"),
		Environment: envOr("APP_ENV", "local"),
		LogFile:     envOr("LOG_FILE", "/var/log/pokedex/app.log"),
		LogFileOnly: envParsed("LOG_FILE_ONLY", false, strconv.ParseBool),
		MaxSize:     envParsed("LOG_MAX_SIZE", 100, strconv.Atoi),
		MaxBackups:  envParsed("LOG_MAX_BACKUPS", 7, strconv.Atoi),
		MaxAge:      envParsed("LOG_MAX_AGE", 30, strconv.Atoi),
		Compress:    envParsed("LOG_COMPRESS", true, strconv.ParseBool),
	}
}

func envOr(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// envParsed returns def when the variable is unset or does not parse.
func envParsed[T any](key string, def T, parse func(string) (T, error)) T {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	v, err := parse(val)
	if err != nil {
		return def
	}
	return v
}
