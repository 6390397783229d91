package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"vidforge/internal/domain"
)

type fakeStore struct {
	enqueued  []*domain.Job
	jobs      map[string]*domain.Job
	cancelErr error
}

func (f *fakeStore) Enqueue(_ context.Context, job *domain.Job) error {
	f.enqueued = append(f.enqueued, job)
	return nil
}

func (f *fakeStore) Get(_ context.Context, jobID string) (*domain.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (f *fakeStore) Cancel(_ context.Context, jobID string) error {
	return f.cancelErr
}

func newTestApp(store *fakeStore) *App {
	return NewApp(store, 5, zerolog.Nop())
}

const validBody = `{
	"timeline": {
		"tracks": [
			{"type": "video", "clips": [
				{"id": "c1", "type": "video", "src": "https://cdn/a.mp4", "start": 0, "duration": 5}
			]}
		]
	},
	"output": {"format": "mp4"}
}`

func TestCreateRenderQueuesJob(t *testing.T) {
	store := &fakeStore{}
	app := newTestApp(store)

	req := httptest.NewRequest(http.MethodPost, "/v1/renders", strings.NewReader(validBody))
	rec := httptest.NewRecorder()
	app.CreateRender(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(store.enqueued) != 1 {
		t.Fatalf("enqueued = %d jobs, want 1", len(store.enqueued))
	}
	job := store.enqueued[0]
	if job.MaxAttempts != 5 || job.State != domain.JobQueued {
		t.Fatalf("job = %+v", job)
	}

	var resp RenderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != job.ID || resp.State != domain.JobQueued {
		t.Fatalf("response = %+v", resp)
	}
}

func TestCreateRenderRejectsBadJSON(t *testing.T) {
	app := newTestApp(&fakeStore{})
	req := httptest.NewRequest(http.MethodPost, "/v1/renders", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	app.CreateRender(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateRenderRejectsInvalidTimeline(t *testing.T) {
	app := newTestApp(&fakeStore{})
	body := `{"timeline": {"tracks": []}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/renders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	app.CreateRender(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), domain.CodeInvalidTimeline) {
		t.Fatalf("body = %s, want %s", rec.Body.String(), domain.CodeInvalidTimeline)
	}
}

func TestCreateRenderRejectsContractViolation(t *testing.T) {
	app := newTestApp(&fakeStore{})
	body := `{
		"timeline": {
			"mergeFields": [{"name": "NAME", "required": true, "type": "string"}],
			"tracks": [
				{"type": "text", "clips": [
					{"id": "t1", "type": "text", "text": "Hi {{NAME}}", "start": 0, "duration": 3}
				]}
			]
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/renders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	app.CreateRender(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), domain.CodeMissingRequiredField) {
		t.Fatalf("body = %s, want %s", rec.Body.String(), domain.CodeMissingRequiredField)
	}
}

func getWithID(t *testing.T, app *App, handler http.HandlerFunc, method, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/v1/renders/"+id, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestGetRenderReturnsJob(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{jobs: map[string]*domain.Job{
		"job-1": {
			ID: "job-1", State: domain.JobCompleted, Progress: 100, AttemptsMade: 1,
			Result:    &domain.Result{URL: "http://store/out.mp4", Format: "mp4"},
			CreatedAt: now, UpdatedAt: now,
		},
	}}
	app := newTestApp(store)

	rec := getWithID(t, app, app.GetRender, http.MethodGet, "job-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp RenderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != domain.JobCompleted || resp.Result == nil || resp.Result.URL != "http://store/out.mp4" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestGetRenderNotFound(t *testing.T) {
	app := newTestApp(&fakeStore{jobs: map[string]*domain.Job{}})
	rec := getWithID(t, app, app.GetRender, http.MethodGet, "missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCancelRenderConflictWhenTerminal(t *testing.T) {
	app := newTestApp(&fakeStore{cancelErr: domain.ErrJobTerminal})
	rec := getWithID(t, app, app.CancelRender, http.MethodDelete, "job-1")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCancelRenderOK(t *testing.T) {
	app := newTestApp(&fakeStore{})
	rec := getWithID(t, app, app.CancelRender, http.MethodDelete, "job-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), string(domain.JobCancelled)) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
