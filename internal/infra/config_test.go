package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "")
	t.Setenv("WORKER_COUNT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.WorkerCount != 4 {
		t.Fatalf("WorkerCount = %d, want 4", cfg.WorkerCount)
	}
	if cfg.MaxRenderAttempts != 5 {
		t.Fatalf("MaxRenderAttempts = %d, want 5", cfg.MaxRenderAttempts)
	}
	if cfg.RetryBase != 2*time.Second || cfg.RetryCap != 32*time.Second {
		t.Fatalf("retry window = %v/%v, want 2s/32s", cfg.RetryBase, cfg.RetryCap)
	}
	if cfg.TransitionTolerance != 0.5 || cfg.TransitionMaxDuration != 2.0 {
		t.Fatalf("transition opts = %v/%v, want 0.5/2.0", cfg.TransitionTolerance, cfg.TransitionMaxDuration)
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Fatalf("FFmpegPath = %q", cfg.FFmpegPath)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig accepted empty DATABASE_URL")
	}
}

func TestLoadConfigWorkerCountFloor(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("WORKER_COUNT", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WorkerCount != 1 {
		t.Fatalf("WorkerCount = %d, want floor of 1", cfg.WorkerCount)
	}
}

func TestLoadConfigSplitsOrigins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://a.example" || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %#v", cfg.AllowedOrigins)
	}
}
