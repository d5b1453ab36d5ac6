package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Blob     BlobConfig
	Scanner  ScannerConfig
	Uploads  UploadsConfig
	Shares   SharesConfig
	Events   EventsConfig
	Cache    CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BlobConfig selects and parameterises the blob store backend. The adapter
// receives this struct explicitly at construction time; nothing is read from
// the environment past config load.
type BlobConfig struct {
	Driver    string // "local" or "minio"
	LocalDir  string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ScannerConfig parameterises the external antivirus scanner. An empty
// endpoint disables scanning entirely: new content is then admitted as
// SKIPPED instead of PENDING.
type ScannerConfig struct {
	Endpoint    string
	Timeout     time.Duration
	Concurrency int
	MaxRetries  int
}

// Enabled reports whether a scanner endpoint is configured.
func (c ScannerConfig) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// UploadsConfig bounds accepted file uploads.
type UploadsConfig struct {
	MaxFileSizeBytes  int64
	AllowedExtensions []string
}

// SharesConfig governs share link minting.
type SharesConfig struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// EventsConfig points at the NATS notification sink. An empty URL disables
// event publication.
type EventsConfig struct {
	URL        string
	StreamName string
}

// CacheConfig tunes the listing cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Blob = BlobConfig{
		Driver:    v.GetString("BLOB_DRIVER"),
		LocalDir:  v.GetString("BLOB_LOCAL_DIR"),
		Endpoint:  v.GetString("MINIO_ENDPOINT"),
		AccessKey: v.GetString("MINIO_ACCESS_KEY"),
		SecretKey: v.GetString("MINIO_SECRET_KEY"),
		Bucket:    v.GetString("MINIO_BUCKET"),
		UseSSL:    v.GetBool("MINIO_USE_SSL"),
	}

	cfg.Scanner = ScannerConfig{
		Endpoint:    v.GetString("CLAMAV_URL"),
		Timeout:     parseDuration(v.GetString("SCAN_TIMEOUT"), 30*time.Second),
		Concurrency: v.GetInt("SCAN_CONCURRENCY"),
		MaxRetries:  v.GetInt("SCAN_MAX_RETRIES"),
	}

	maxUpload := v.GetInt64("UPLOAD_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 50 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		MaxFileSizeBytes:  maxUpload,
		AllowedExtensions: splitAndTrim(v.GetString("UPLOAD_ALLOWED_EXTENSIONS")),
	}

	cfg.Shares = SharesConfig{
		DefaultTTL: parseDuration(v.GetString("SHARE_DEFAULT_TTL"), 7*24*time.Hour),
		MaxTTL:     parseDuration(v.GetString("SHARE_MAX_TTL"), 90*24*time.Hour),
	}

	cfg.Events = EventsConfig{
		URL:        v.GetString("NATS_URL"),
		StreamName: v.GetString("NATS_STREAM"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_LISTING_CACHE"),
		TTL:     parseDuration(v.GetString("LISTING_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enit_connect_docs")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BLOB_DRIVER", "local")
	v.SetDefault("BLOB_LOCAL_DIR", "./blobs")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_BUCKET", "documents")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("CLAMAV_URL", "")
	v.SetDefault("SCAN_TIMEOUT", "30s")
	v.SetDefault("SCAN_CONCURRENCY", 2)
	v.SetDefault("SCAN_MAX_RETRIES", 1)

	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 50*1024*1024)
	v.SetDefault("UPLOAD_ALLOWED_EXTENSIONS", "")

	v.SetDefault("SHARE_DEFAULT_TTL", "168h")
	v.SetDefault("SHARE_MAX_TTL", "2160h")

	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_STREAM", "document-events")

	v.SetDefault("ENABLE_LISTING_CACHE", false)
	v.SetDefault("LISTING_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
