package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vidforge/internal/domain"
)

func TestNotifySignsPayload(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(2*time.Second, "topsecret", zerolog.Nop())
	d.Notify(context.Background(), srv.URL, Event{
		JobID: "job-1",
		State: domain.JobCompleted,
		Result: &domain.Result{
			URL: "http://store/out.mp4", DurationSeconds: 12, SizeBytes: 1024, Format: "mp4",
		},
		FinishedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})

	if gotSig == "" {
		t.Fatalf("no signature header")
	}
	if !strings.HasPrefix(gotSig, "sha256=") {
		t.Fatalf("signature %q missing sha256= prefix", gotSig)
	}
	if want := Sign("topsecret", gotBody); gotSig != want {
		t.Fatalf("signature = %q, want %q", gotSig, want)
	}

	var event Event
	if err := json.Unmarshal(gotBody, &event); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if event.JobID != "job-1" || event.State != domain.JobCompleted {
		t.Fatalf("event = %+v", event)
	}
}

func TestNotifyRetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "try again", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(2*time.Second, "", zerolog.Nop())
	d.Notify(context.Background(), srv.URL, Event{JobID: "job-2", State: domain.JobFailed})

	if hits.Load() != 2 {
		t.Fatalf("hits = %d, want 2", hits.Load())
	}
}

func TestNotifyEmptyURLIsNoop(t *testing.T) {
	d := NewDispatcher(time.Second, "x", zerolog.Nop())
	d.Notify(context.Background(), "", Event{JobID: "job-3"})
}
