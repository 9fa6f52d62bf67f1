package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"

	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

type Config struct {
	Env            string
	Port           int
	APIPrefix      string
	RequestTimeout time.Duration

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Storage     StorageConfig
	Uploads     UploadsConfig
	BulkUploads BulkUploadsConfig
	Cache       CacheConfig
	Pagination  PaginationConfig
	Shares      SharesConfig
	Preview     PreviewConfig
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects and configures the blob backend.
type StorageConfig struct {
	Backend string
	Dir     string
	S3      S3Config
}

// S3Config points the blob store at AWS S3 or an S3 compatible endpoint such as MinIO.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// UploadsConfig bounds single file ingestion.
type UploadsConfig struct {
	MaxFileSizeBytes  int64
	AllowedExtensions []string
	HashChunkSize     int
	Timeout           time.Duration
}

// BulkUploadsConfig tunes the background bulk ingestion queue.
type BulkUploadsConfig struct {
	MaxFiles          int
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
	ItemTimeout       time.Duration
	StagingTTL        time.Duration
	CleanupInterval   time.Duration
}

// CacheConfig governs the list/search page cache.
type CacheConfig struct {
	Enabled    bool
	Backend    string
	TTL        time.Duration
	MemorySize int
}

// PaginationConfig controls cursor page sizes and token signing.
type PaginationConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	CursorSecret    string
}

// SharesConfig toggles public share links.
type SharesConfig struct {
	Enabled       bool
	SigningSecret string
	DefaultTTL    time.Duration
	MaxTTL        time.Duration
}

// PreviewConfig limits inline previews.
type PreviewConfig struct {
	MaxSizeBytes int64
	MaxTextChars int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.RequestTimeout = parseDuration(v.GetString("REQUEST_TIMEOUT"), 30*time.Second)

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Backend: strings.ToLower(v.GetString("STORAGE_BACKEND")),
		Dir:     v.GetString("STORAGE_DIR"),
		S3: S3Config{
			Bucket:       v.GetString("S3_BUCKET"),
			Region:       v.GetString("S3_REGION"),
			Endpoint:     v.GetString("S3_ENDPOINT"),
			AccessKey:    v.GetString("S3_ACCESS_KEY"),
			SecretKey:    v.GetString("S3_SECRET_KEY"),
			UsePathStyle: v.GetBool("S3_USE_PATH_STYLE"),
		},
	}

	maxUploadSize := v.GetInt64("UPLOAD_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 10 * 1024 * 1024
	}
	chunkSize := v.GetInt("UPLOAD_HASH_CHUNK_SIZE")
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	cfg.Uploads = UploadsConfig{
		MaxFileSizeBytes:  maxUploadSize,
		AllowedExtensions: lowerAll(splitAndTrim(v.GetString("UPLOAD_ALLOWED_TYPES"))),
		HashChunkSize:     chunkSize,
		Timeout:           parseDuration(v.GetString("UPLOAD_TIMEOUT"), 2*time.Minute),
	}

	cfg.BulkUploads = BulkUploadsConfig{
		MaxFiles:          v.GetInt("BULK_UPLOAD_MAX_FILES"),
		WorkerConcurrency: v.GetInt("BULK_UPLOAD_WORKERS"),
		WorkerRetries:     v.GetInt("BULK_UPLOAD_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("BULK_UPLOAD_RETRY_DELAY"), 5*time.Second),
		ItemTimeout:       parseDuration(v.GetString("BULK_UPLOAD_ITEM_TIMEOUT"), 2*time.Minute),
		StagingTTL:        parseDuration(v.GetString("BULK_UPLOAD_STAGING_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("BULK_UPLOAD_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("CACHE_ENABLED"),
		Backend:    strings.ToLower(v.GetString("CACHE_BACKEND")),
		TTL:        parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
		MemorySize: v.GetInt("CACHE_MEMORY_SIZE"),
	}

	cfg.Pagination = PaginationConfig{
		DefaultPageSize: v.GetInt("PAGINATION_DEFAULT_SIZE"),
		MaxPageSize:     v.GetInt("PAGINATION_MAX_SIZE"),
		CursorSecret:    v.GetString("CURSOR_SECRET"),
	}

	cfg.Shares = SharesConfig{
		Enabled:       v.GetBool("ENABLE_SHARES"),
		SigningSecret: v.GetString("SHARE_SIGNING_SECRET"),
		DefaultTTL:    parseDuration(v.GetString("SHARE_DEFAULT_TTL"), 24*time.Hour),
		MaxTTL:        parseDuration(v.GetString("SHARE_MAX_TTL"), 30*24*time.Hour),
	}

	cfg.Preview = PreviewConfig{
		MaxSizeBytes: v.GetInt64("PREVIEW_MAX_SIZE"),
		MaxTextChars: v.GetInt("PREVIEW_MAX_TEXT_CHARS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "file_manager")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_BACKEND", StorageBackendLocal)
	v.SetDefault("STORAGE_DIR", "./media")
	v.SetDefault("S3_BUCKET", "files")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_USE_PATH_STYLE", true)

	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("UPLOAD_ALLOWED_TYPES", "pdf,doc,docx,txt,jpg,jpeg,png,gif,mp4,avi,mov,zip,rar,csv,xlsx,xls")
	v.SetDefault("UPLOAD_HASH_CHUNK_SIZE", 64*1024)
	v.SetDefault("UPLOAD_TIMEOUT", "2m")

	v.SetDefault("BULK_UPLOAD_MAX_FILES", 20)
	v.SetDefault("BULK_UPLOAD_WORKERS", 2)
	v.SetDefault("BULK_UPLOAD_RETRIES", 3)
	v.SetDefault("BULK_UPLOAD_RETRY_DELAY", "5s")
	v.SetDefault("BULK_UPLOAD_ITEM_TIMEOUT", "2m")
	v.SetDefault("BULK_UPLOAD_STAGING_TTL", "24h")
	v.SetDefault("BULK_UPLOAD_CLEANUP_INTERVAL", "1h")

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_BACKEND", CacheBackendRedis)
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CACHE_MEMORY_SIZE", 1024)

	v.SetDefault("PAGINATION_DEFAULT_SIZE", 20)
	v.SetDefault("PAGINATION_MAX_SIZE", 100)
	v.SetDefault("CURSOR_SECRET", "dev_cursor_secret")

	v.SetDefault("ENABLE_SHARES", true)
	v.SetDefault("SHARE_SIGNING_SECRET", "dev_share_secret")
	v.SetDefault("SHARE_DEFAULT_TTL", "24h")
	v.SetDefault("SHARE_MAX_TTL", "720h")

	v.SetDefault("PREVIEW_MAX_SIZE", 10*1024*1024)
	v.SetDefault("PREVIEW_MAX_TEXT_CHARS", 50000)
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

func lowerAll(values []string) []string {
	for i, value := range values {
		values[i] = strings.ToLower(strings.TrimPrefix(value, "."))
	}
	return values
}

// viper reports a missing explicit config file as an os error rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
