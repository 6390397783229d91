package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	StoragePath    string
	StorageBaseURL string

	FFmpegPath  string
	FFprobePath string

	WorkerCount       int
	JobPollInterval   time.Duration
	RenderTimeout     time.Duration
	MaxRenderAttempts int
	RetryBase         time.Duration
	RetryCap          time.Duration

	TransitionTolerance   float64
	TransitionMaxDuration float64

	AssetCacheDir string
	AssetTTL      time.Duration

	WebhookSecret string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
	S3PublicURL string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	AllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		WorkerCount:       getEnvInt("WORKER_COUNT", 4),
		JobPollInterval:   time.Second * time.Duration(getEnvInt("JOB_POLL_INTERVAL_SECONDS", 2)),
		RenderTimeout:     time.Second * time.Duration(getEnvInt("RENDER_TIMEOUT_SECONDS", 900)),
		MaxRenderAttempts: getEnvInt("MAX_RENDER_ATTEMPTS", 5),
		RetryBase:         time.Second * time.Duration(getEnvInt("RETRY_BASE_SECONDS", 2)),
		RetryCap:          time.Second * time.Duration(getEnvInt("RETRY_CAP_SECONDS", 32)),

		TransitionTolerance:   getEnvFloat("TRANSITION_TOLERANCE", 0.5),
		TransitionMaxDuration: getEnvFloat("TRANSITION_MAX_SECONDS", 2.0),

		AssetCacheDir: getEnv("ASSET_CACHE_DIR", os.TempDir()+"/vidforge-assets"),
		AssetTTL:      time.Second * time.Duration(getEnvInt("ASSET_TTL_SECONDS", 3600)),

		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    getEnv("S3_BUCKET", "renders"),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),
		S3PublicURL: os.Getenv("S3_PUBLIC_URL"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	return cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
