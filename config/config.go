package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service
type Config struct {
	Port string

	// Database
	DBDriver      string // "sqlite3" or "pgx"
	DBDSN         string
	MigrationsDir string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	// Cache backing the session store
	CacheType     string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Uploads
	UploadBackend  string // "disk" or "s3"
	UploadDir      string
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	NatsURL   string
	PublicDir string
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	// A missing .env is fine; the environment may be provided by the container
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "3000"),
		DBDriver:      getEnv("DB_DRIVER", "sqlite3"),
		DBDSN:         getEnv("DB_DSN", "./DB/journal.db"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./database/migrations"),
		SessionSecret: getEnv("SESSION_SECRET", "dev-secret"),
		CacheType:     getEnv("CACHE_TYPE", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		UploadBackend: getEnv("UPLOAD_BACKEND", "disk"),
		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3Region:      os.Getenv("AWS_REGION"),
		S3Bucket:      os.Getenv("S3_BUCKET_NAME"),
		S3AccessKey:   os.Getenv("AWS_ACCESS_KEY_ID"),
		S3SecretKey:   os.Getenv("AWS_SECRET_ACCESS_KEY"),
		NatsURL:       os.Getenv("NATS_URL"),
		PublicDir:     getEnv("PUBLIC_DIR", "./public"),
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		cfg.UploadDir = filepath.Join(dataDir, "images")
	} else {
		cfg.UploadDir = filepath.Join(".", "DB", "images")
	}

	var err error
	if cfg.SessionTTL, err = time.ParseDuration(getEnv("SESSION_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}
	if cfg.CookieSecure, err = getBool("COOKIE_SECURE"); err != nil {
		return nil, err
	}
	if cfg.S3UsePathStyle, err = getBool("S3_USE_PATH_STYLE"); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	switch cfg.DBDriver {
	case "sqlite3", "pgx":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	switch cfg.CacheType {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unsupported CACHE_TYPE %q", cfg.CacheType)
	}
	switch cfg.UploadBackend {
	case "disk":
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME is required when UPLOAD_BACKEND=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported UPLOAD_BACKEND %q", cfg.UploadBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
