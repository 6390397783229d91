package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"vidforge/internal/domain"
	"vidforge/internal/mergefield"
	"vidforge/internal/timeline"
)

// CreateRenderRequest is the body of POST /v1/renders.
type CreateRenderRequest struct {
	Timeline    domain.Timeline   `json:"timeline"`
	Output      domain.OutputSpec `json:"output"`
	MergeFields map[string]any    `json:"mergeFields,omitempty"`
	WebhookURL  string            `json:"webhook,omitempty"`
	Priority    int               `json:"priority,omitempty"`
}

// RenderResponse is the job view returned by every render endpoint.
type RenderResponse struct {
	ID        string          `json:"id"`
	State     domain.JobState `json:"state"`
	Progress  int             `json:"progress"`
	Attempts  int             `json:"attempts"`
	Result    *domain.Result  `json:"result,omitempty"`
	Failure   *domain.Failure `json:"failure,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CreateRender validates the submitted timeline and queues a render job.
// Structural and contract problems are rejected synchronously; everything
// downstream is asynchronous.
func (a *App) CreateRender(w http.ResponseWriter, r *http.Request) {
	var req CreateRenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, domain.CodeInvalidTimeline, "request body is not valid JSON")
		return
	}

	normalized, _, err := timeline.Normalize(req.Timeline, a.Logger)
	if err != nil {
		a.error(w, http.StatusBadRequest, domain.CodeInvalidTimeline, err.Error())
		return
	}

	values, err := mergefield.Validate(normalized.MergeFields, req.MergeFields)
	if err != nil {
		var contract *mergefield.ContractError
		if errors.As(err, &contract) && contract.First() != nil {
			a.error(w, http.StatusBadRequest, contract.First().Code, contract.First().Message)
			return
		}
		a.error(w, http.StatusBadRequest, domain.CodeInvalidTimeline, err.Error())
		return
	}
	if _, _, err := mergefield.Resolve(normalized, values); err != nil {
		a.error(w, http.StatusBadRequest, domain.CodeInvalidTimeline, err.Error())
		return
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		State:       domain.JobQueued,
		MaxAttempts: a.MaxAttempts,
		Priority:    req.Priority,
		Payload: domain.Payload{
			Timeline:    req.Timeline,
			Output:      req.Output,
			MergeFields: req.MergeFields,
			WebhookURL:  req.WebhookURL,
			Priority:    req.Priority,
		},
	}
	if err := a.Queue.Enqueue(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Msg("http: enqueue render")
		a.error(w, http.StatusInternalServerError, domain.CodeExecutionFailed, "could not queue render")
		return
	}

	a.json(w, http.StatusAccepted, RenderResponse{
		ID:        job.ID,
		State:     domain.JobQueued,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	})
}

// GetRender returns the current state of one render job.
func (a *App) GetRender(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Queue.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "NOT_FOUND", "render job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("http: get render")
		a.error(w, http.StatusInternalServerError, domain.CodeExecutionFailed, "could not load render")
		return
	}

	a.json(w, http.StatusOK, RenderResponse{
		ID:        job.ID,
		State:     job.State,
		Progress:  job.Progress,
		Attempts:  job.AttemptsMade,
		Result:    job.Result,
		Failure:   job.Failure,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	})
}

// CancelRender cancels a queued or processing job. Terminal jobs conflict.
func (a *App) CancelRender(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := a.Queue.Cancel(r.Context(), id)
	switch {
	case err == nil:
		a.json(w, http.StatusOK, map[string]string{"id": id, "state": string(domain.JobCancelled)})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "NOT_FOUND", "render job not found")
	case errors.Is(err, domain.ErrJobTerminal):
		a.error(w, http.StatusConflict, "ALREADY_FINISHED", "render job already reached a terminal state")
	default:
		a.Logger.Error().Err(err).Str("job_id", id).Msg("http: cancel render")
		a.error(w, http.StatusInternalServerError, domain.CodeExecutionFailed, "could not cancel render")
	}
}
