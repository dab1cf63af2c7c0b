// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/radif/uploader/internal/storage"
)

// Storage drivers.
const (
	DriverGCS   = "gcs"
	DriverMinio = "minio"
)

const defaultMaxUploadBytes = 10 << 20

// Config holds all runtime configuration for the service.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	// JWTSecret protects the upload routes when set.
	JWTSecret      string
	MaxUploadBytes int64

	// Object storage. GCS by default; "minio" selects any S3-compatible endpoint.
	StorageDriver             string
	StorageBucket             string
	StoragePredefinedACL      string
	StorageBaseURI            string // public base URL of the default bucket, e.g. a CDN
	StoragePublicEndpoint     string // serves any bucket as /<bucket>/<key>; empty means GCS
	StorageCacheControl       string
	StorageContentDisposition string

	// StorageAllowedBuckets are the buckets a caller may pick per request,
	// always including StorageBucket.
	StorageAllowedBuckets []string

	// GCS credentials. Both empty means application default credentials;
	// STORAGE_EMULATOR_HOST is honoured by the client library.
	GCSKeyFilename     string
	GCSCredentialsJSON string

	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioUseSSL     bool
	MinioPublicBase string // browser-accessible endpoint root, e.g. "http://localhost:9000"
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, reading from environment")
	}

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		StorageDriver:             getEnv("STORAGE_DRIVER", DriverGCS),
		StorageBucket:             os.Getenv("STORAGE_BUCKET"),
		StoragePredefinedACL:      os.Getenv("STORAGE_PREDEFINED_ACL"),
		StorageBaseURI:            os.Getenv("STORAGE_BASE_URI"),
		StorageCacheControl:       os.Getenv("STORAGE_CACHE_CONTROL"),
		StorageContentDisposition: os.Getenv("STORAGE_CONTENT_DISPOSITION"),

		GCSKeyFilename:     os.Getenv("GCS_KEY_FILENAME"),
		GCSCredentialsJSON: os.Getenv("GCS_CREDENTIALS_JSON"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinioUseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",

		MinioPublicBase: strings.TrimRight(os.Getenv("MINIO_PUBLIC_BASE"), "/"),
	}

	cfg.StorageAllowedBuckets = allowedBuckets(cfg.StorageBucket, os.Getenv("STORAGE_ALLOWED_BUCKETS"))

	cfg.MaxUploadBytes = defaultMaxUploadBytes
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			log.Warn().Str("value", v).Msg("invalid MAX_UPLOAD_BYTES, using default")
		} else {
			cfg.MaxUploadBytes = n
		}
	}

	// MinIO serves buckets path-style under its own endpoint.
	if cfg.StorageDriver == DriverMinio {
		cfg.StoragePublicEndpoint = cfg.MinioPublicBase
		if cfg.StoragePublicEndpoint == "" {
			scheme := "http"
			if cfg.MinioUseSSL {
				scheme = "https"
			}
			cfg.StoragePublicEndpoint = fmt.Sprintf("%s://%s", scheme, cfg.MinioEndpoint)
		}
	}

	return cfg
}

// Validate reports configuration that cannot produce a working uploader.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverGCS, DriverMinio:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.StorageBucket == "" {
		return errors.New("STORAGE_BUCKET is not set")
	}
	if c.StoragePredefinedACL != "" && !storage.ValidACL(c.StoragePredefinedACL) {
		return fmt.Errorf("STORAGE_PREDEFINED_ACL: %w: %q", storage.ErrInvalidACL, c.StoragePredefinedACL)
	}
	return nil
}

// StorageOptions returns the process-wide uploader defaults.
func (c *Config) StorageOptions() storage.Options {
	opts := storage.Options{
		KeyFilename:     c.GCSKeyFilename,
		CredentialsJSON: c.GCSCredentialsJSON,
		DefaultBucket:   c.StorageBucket,
		PredefinedACL:   c.StoragePredefinedACL,
		StorageBaseURI:  c.StorageBaseURI,
		PublicEndpoint:  c.StoragePublicEndpoint,
	}
	if c.StorageCacheControl != "" || c.StorageContentDisposition != "" {
		opts.WriteStream = &storage.WriteStreamOptions{
			CacheControl:       c.StorageCacheControl,
			ContentDisposition: c.StorageContentDisposition,
		}
	}
	return opts
}

// MinioConfig returns the S3-compatible endpoint settings.
func (c *Config) MinioConfig() storage.MinioConfig {
	return storage.MinioConfig{
		Endpoint:  c.MinioEndpoint,
		AccessKey: c.MinioAccessKey,
		SecretKey: c.MinioSecretKey,
		UseSSL:    c.MinioUseSSL,
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// allowedBuckets parses a comma-separated bucket list and adds the default.
func allowedBuckets(defaultBucket, list string) []string {
	var buckets []string
	if defaultBucket != "" {
		buckets = append(buckets, defaultBucket)
	}
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" && b != defaultBucket {
			buckets = append(buckets, b)
		}
	}
	return buckets
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
