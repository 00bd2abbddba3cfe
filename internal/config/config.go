package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string // memory | sqlite
	SQLiteDBPath string
	DataDir      string // seed files for the memory backend

	// Uploads
	UploadBackend  string // local | azblob
	UploadDir      string
	BlobServiceURL string
	BlobContainer  string
	MaxUploadBytes int64

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Import
	ImportMode      string // sync | async
	ImportRateLimit int    // imports per minute per client

	// Category cache
	CategoryCacheSize int
	CategoryCacheTTL  time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	validDataBackends   = []string{"memory", "sqlite"}
	validUploadBackends = []string{"local", "azblob"}
	validImportModes    = []string{"sync", "async"}
	validLogFormats     = []string{"text", "json"}
)

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finances.db"),
		DataDir:      getEnv("DATA_DIR", "./data"),

		UploadBackend:  getEnv("UPLOAD_BACKEND", "local"),
		UploadDir:      getEnv("UPLOAD_DIR", "./data/uploads"),
		BlobServiceURL: getEnv("BLOB_SERVICE_URL", ""),
		BlobContainer:  getEnv("BLOB_CONTAINER", "uploads"),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finances"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "import_requests"),

		ImportMode:      getEnv("IMPORT_MODE", "sync"),
		ImportRateLimit: getEnvInt("IMPORT_RATE_LIMIT", 10),

		CategoryCacheSize: getEnvInt("CATEGORY_CACHE_SIZE", 1000),
		CategoryCacheTTL:  getEnvDuration("CATEGORY_CACHE_TTL", 0),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns all problems at once
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validDataBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validDataBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(filepath.Dir(c.SQLiteDBPath)); msg != "" {
			errors = append(errors, "cannot create SQLite database directory "+msg)
		}
	}

	switch c.UploadBackend {
	case "local":
		if c.UploadDir == "" {
			errors = append(errors, "upload directory cannot be empty when using local uploads")
		}
	case "azblob":
		if c.BlobServiceURL == "" {
			errors = append(errors, "BLOB_SERVICE_URL is required when using azblob uploads")
		} else if u, err := url.Parse(c.BlobServiceURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid blob service URL '%s': must be http or https", c.BlobServiceURL))
		}
		if c.BlobContainer == "" {
			errors = append(errors, "blob container cannot be empty when using azblob uploads")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid upload backend '%s': must be one of %v", c.UploadBackend, validUploadBackends))
	}

	if c.MaxUploadBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if !slices.Contains(validImportModes, c.ImportMode) {
		errors = append(errors, fmt.Sprintf("invalid import mode '%s': must be one of %v", c.ImportMode, validImportModes))
	} else if c.ImportMode == "async" && c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required when IMPORT_MODE is async")
	}

	if c.ImportRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid import rate limit %d: must be at least 1 per minute", c.ImportRateLimit))
	}

	if c.CategoryCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid category cache size %d: must not be negative", c.CategoryCacheSize))
	}
	if c.CategoryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid category cache TTL %v: must not be negative", c.CategoryCacheTTL))
	}

	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RequireAMQP reports a configuration error when no broker is configured.
// Binaries that always consume jobs call it after Validate.
func (c *Config) RequireAMQP() error {
	if c.AMQPURL == "" {
		return fmt.Errorf("configuration validation failed:\n- AMQP_URL is required")
	}
	return nil
}

func ensureDir(dir string) string {
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Sprintf("'%s': %v", dir, err)
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
