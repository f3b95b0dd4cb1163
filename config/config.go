package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	CoverModeUpload = "upload"
	CoverModeSecret = "secret"
)

// Config stores the application configuration. It is built once at start and
// passed by pointer; pipeline stages never read the environment themselves.
type Config struct {
	Addr           string `env:"ADDR, default=:8080"`
	StaticDir      string `env:"STATIC_DIR, default=static"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES, default=209715200"`
	MaxConcurrent  int64  `env:"MAX_CONCURRENT_CONVERSIONS, default=4"`

	FFmpegPath       string        `env:"FFMPEG_PATH, default=ffmpeg"`
	TranscodeTimeout time.Duration `env:"TRANSCODE_TIMEOUT, default=60s"`
	WorkDir          string        `env:"WORK_DIR"` // parent of request workspaces, OS temp dir when empty

	CoverMode        string `env:"COVER_MODE, default=upload"`
	DefaultCoverPath string `env:"DEFAULT_COVER_PATH, default=./media/default_cover.jpg"`
	CoverSecretGlob  string `env:"COVER_SECRET_GLOB, default=/run/secrets/cover*"`

	Preset Preset
	Log    LogConfig
	Minio  MinioConfig
	Redis  RedisConfig
}

// Preset holds the deployment-wide values used by preset (episode) requests.
type Preset struct {
	Album       string `env:"ALBUM"`
	Genre       string `env:"GENRE"`
	TitleSuffix string `env:"TITLE_SUFFIX"`
	Org         string `env:"ORG"`
}

type LogConfig struct {
	Level      string `env:"LOG_LEVEL, default=debug"`
	OutputPath string `env:"LOG_FILE"`
	MaxSize    int    `env:"LOG_MAX_SIZE, default=100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS, default=3"`
	MaxAge     int    `env:"LOG_MAX_AGE, default=28"`
	Compress   bool   `env:"LOG_COMPRESS, default=false"`
}

// MinioConfig configures the optional archive of produced files.
type MinioConfig struct {
	ArchiveEnabled bool   `env:"ARCHIVE_ENABLED, default=false"`
	Endpoint       string `env:"MINIO_ENDPOINT"`
	AccessKey      string `env:"MINIO_ACCESS_KEY"`
	SecretKey      string `env:"MINIO_SECRET_KEY"`
	Bucket         string `env:"MINIO_BUCKET, default=audio-producer"`
	Region         string `env:"MINIO_REGION"`
	UseSSL         bool   `env:"MINIO_USE_SSL, default=false"`
	Prefix         string `env:"ARCHIVE_PREFIX, default=episodes/"`
}

// RedisConfig configures the optional per-client rate limiter.
type RedisConfig struct {
	Addr      string        `env:"REDIS_ADDR"`
	Password  string        `env:"REDIS_PASSWORD"`
	DB        int           `env:"REDIS_DB, default=0"`
	RateLimit int64         `env:"RATE_LIMIT, default=30"`
	Window    time.Duration `env:"RATE_LIMIT_WINDOW, default=1m"`
}

// Load builds the configuration from the process environment and the
// key=value file at envFile. Environment values take precedence; a missing
// file is not an error.
func Load(envFile string) (*Config, error) {
	fileValues, err := readEnvFile(envFile)
	if err != nil {
		return nil, err
	}
	return load(envconfig.MultiLookuper(
		envconfig.OsLookuper(),
		envconfig.MapLookuper(fileValues),
	))
}

func load(lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("env file not found at %s, relying on environment variables and defaults", path)
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return values, nil
}

func (c *Config) validate() error {
	c.CoverMode = strings.ToLower(strings.TrimSpace(c.CoverMode))
	switch c.CoverMode {
	case CoverModeUpload, CoverModeSecret:
	default:
		return fmt.Errorf("COVER_MODE must be %q or %q, got %q", CoverModeUpload, CoverModeSecret, c.CoverMode)
	}
	if c.TranscodeTimeout <= 0 {
		return fmt.Errorf("TRANSCODE_TIMEOUT must be positive, got %s", c.TranscodeTimeout)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT_CONVERSIONS must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.Redis.Addr != "" {
		if c.Redis.Window <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.Redis.Window)
		}
		if c.Redis.RateLimit < 1 {
			return fmt.Errorf("RATE_LIMIT must be at least 1, got %d", c.Redis.RateLimit)
		}
	}
	if c.Minio.ArchiveEnabled && c.Minio.Endpoint == "" {
		return fmt.Errorf("ARCHIVE_ENABLED requires MINIO_ENDPOINT")
	}
	return nil
}
