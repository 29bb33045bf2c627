package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal/kv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const DefaultSecret = "default-secret"

var (
	ErrDatabaseURLRequired   = errors.New("database_url is required for the postgres kv backend")
	ErrRedisURLRequired      = errors.New("redis_url is required for the redis kv backend")
	ErrInvalidKVBackend      = errors.New("kv_backend must be one of memory, redis, postgres")
	ErrCatalogURLRequired    = errors.New("catalog_api_url is required")
	ErrSubmissionURLRequired = errors.New("submission_api_url is required")
	ErrInvalidTimeZone       = errors.New("reference_time_zone is not a known IANA zone")
)

type Config struct {
	Debug bool   `yaml:"debug"`
	Dev   bool   `yaml:"dev"`
	Host  string `yaml:"host"`
	Port  string `yaml:"port"`

	Secret            string        `yaml:"secret"`
	SessionExpiration time.Duration `yaml:"session_expiration"`
	SecureCookie      bool          `yaml:"secure_cookie"`

	KVBackend       string        `yaml:"kv_backend"`
	KVTTL           time.Duration `yaml:"kv_ttl"`
	KVPruneInterval time.Duration `yaml:"kv_prune_interval"`
	RedisURL        string        `yaml:"redis_url"`
	DatabaseURL     string        `yaml:"database_url"`
	MigrationSource string        `yaml:"migration_source"`

	CatalogAPIURL    string        `yaml:"catalog_api_url"`
	SubmissionAPIURL string        `yaml:"submission_api_url"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`

	ReferenceTimeZone string   `yaml:"reference_time_zone"`
	AllowOrigins      []string `yaml:"allow_origins"`

	OtelCollectorUrl string `yaml:"otel_collector_url"`
	LogFile          string `yaml:"log_file"`
}

// LogBuffer collects what happened while loading the config, before a logger exists.
type LogBuffer struct {
	entries []logEntry
}

type logEntry struct {
	level   string
	message string
	fields  []zap.Field
}

func (b *LogBuffer) Info(message string, fields ...zap.Field) {
	b.entries = append(b.entries, logEntry{level: "info", message: message, fields: fields})
}

func (b *LogBuffer) Warn(message string, fields ...zap.Field) {
	b.entries = append(b.entries, logEntry{level: "warn", message: message, fields: fields})
}

func (b *LogBuffer) FlushToZap(logger *zap.Logger) {
	for _, entry := range b.entries {
		switch entry.level {
		case "warn":
			logger.Warn(entry.message, entry.fields...)
		default:
			logger.Info(entry.message, entry.fields...)
		}
	}
	b.entries = nil
}

func (c Config) Validate() error {
	backend, ok := kv.ParseBackend(c.KVBackend)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKVBackend, c.KVBackend)
	}

	switch backend {
	case kv.BackendPostgres:
		if c.DatabaseURL == "" {
			return ErrDatabaseURLRequired
		}
	case kv.BackendRedis:
		if c.RedisURL == "" {
			return ErrRedisURLRequired
		}
	}

	if c.CatalogAPIURL == "" {
		return ErrCatalogURLRequired
	}
	if c.SubmissionAPIURL == "" {
		return ErrSubmissionURLRequired
	}

	if _, err := time.LoadLocation(c.ReferenceTimeZone); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimeZone, err)
	}

	return nil
}

// Location resolves the reference zone. Validate has already rejected unknown names.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReferenceTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func defaults() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              "8080",
		Secret:            DefaultSecret,
		SessionExpiration: 30 * 24 * time.Hour,
		KVBackend:         string(kv.BackendMemory),
		KVPruneInterval:   time.Hour,
		MigrationSource:   "file://internal/database/migrations",
		HTTPTimeout:       15 * time.Second,
		ReferenceTimeZone: "Asia/Bangkok",
	}
}

// Load builds the config from defaults, then the YAML file named by CONFIG_FILE,
// then a .env file, then environment variables. Later sources win.
func Load() (Config, *LogBuffer) {
	logBuffer := &LogBuffer{}
	config := defaults()

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	fileConfig, err := FromFile(configFile, config, logBuffer)
	if err == nil {
		config = fileConfig
	}

	err = godotenv.Load()
	if err != nil {
		logBuffer.Info("No .env file loaded", zap.String("reason", err.Error()))
	}

	config = FromEnv(config, logBuffer)
	return config, logBuffer
}

// FromFile overlays the YAML file onto base. A missing file is not an error for
// Load, so it is only reported through the log buffer.
func FromFile(path string, base Config, logBuffer *LogBuffer) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		logBuffer.Info("Config file not loaded", zap.String("path", path), zap.String("reason", err.Error()))
		return base, err
	}

	config := base
	err = yaml.Unmarshal(content, &config)
	if err != nil {
		logBuffer.Warn("Failed to parse config file, ignoring it", zap.String("path", path), zap.Error(err))
		return base, err
	}

	logBuffer.Info("Loaded config file", zap.String("path", path))
	return config, nil
}

func FromEnv(config Config, logBuffer *LogBuffer) Config {
	setString := func(key string, target *string) {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			*target = value
		}
	}
	setBool := func(key string, target *bool) {
		value, ok := os.LookupEnv(key)
		if !ok || value == "" {
			return
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			logBuffer.Warn("Ignoring invalid boolean environment variable", zap.String("key", key), zap.String("value", value))
			return
		}
		*target = parsed
	}
	setDuration := func(key string, target *time.Duration) {
		value, ok := os.LookupEnv(key)
		if !ok || value == "" {
			return
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			logBuffer.Warn("Ignoring invalid duration environment variable", zap.String("key", key), zap.String("value", value))
			return
		}
		*target = parsed
	}

	setBool("DEBUG", &config.Debug)
	setBool("DEV", &config.Dev)
	setString("HOST", &config.Host)
	setString("PORT", &config.Port)

	setString("SECRET", &config.Secret)
	setDuration("SESSION_EXPIRATION", &config.SessionExpiration)
	setBool("SECURE_COOKIE", &config.SecureCookie)

	setString("KV_BACKEND", &config.KVBackend)
	setDuration("KV_TTL", &config.KVTTL)
	setDuration("KV_PRUNE_INTERVAL", &config.KVPruneInterval)
	setString("REDIS_URL", &config.RedisURL)
	setString("DATABASE_URL", &config.DatabaseURL)
	setString("MIGRATION_SOURCE", &config.MigrationSource)

	setString("CATALOG_API_URL", &config.CatalogAPIURL)
	setString("SUBMISSION_API_URL", &config.SubmissionAPIURL)
	setDuration("HTTP_TIMEOUT", &config.HTTPTimeout)

	setString("REFERENCE_TIME_ZONE", &config.ReferenceTimeZone)
	if value, ok := os.LookupEnv("ALLOW_ORIGINS"); ok && value != "" {
		config.AllowOrigins = strings.Split(value, ",")
	}

	setString("OTEL_COLLECTOR_URL", &config.OtelCollectorUrl)
	setString("LOG_FILE", &config.LogFile)

	return config
}
