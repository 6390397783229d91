package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"vidforge/internal/domain"
)

// JobStore is the queue surface the API needs; *queue.Queue satisfies it.
type JobStore interface {
	Enqueue(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	Cancel(ctx context.Context, jobID string) error
}

// App carries the dependencies the HTTP handlers need.
type App struct {
	Queue       JobStore
	Logger      zerolog.Logger
	MaxAttempts int
}

func NewApp(q JobStore, maxAttempts int, logger zerolog.Logger) *App {
	return &App{Queue: q, Logger: logger, MaxAttempts: maxAttempts}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
