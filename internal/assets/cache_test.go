package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vidforge/internal/domain"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return NewCache(t.TempDir(), 5*time.Second, time.Hour, zerolog.Nop())
}

func TestGetDownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("media-bytes"))
	}))
	defer srv.Close()

	c := newTestCache(t)
	url := srv.URL + "/clip.mp4"

	first, err := c.Get(context.Background(), url)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := c.Get(context.Background(), url)
	if err != nil {
		t.Fatalf("Get again: %v", err)
	}
	if first != second {
		t.Fatalf("paths differ: %q vs %q", first, second)
	}
	if hits.Load() != 1 {
		t.Fatalf("server hits = %d, want 1", hits.Load())
	}
	data, err := os.ReadFile(first)
	if err != nil || string(data) != "media-bytes" {
		t.Fatalf("cached content = %q, err %v", data, err)
	}
	if filepath.Ext(first) != ".mp4" {
		t.Fatalf("cached name %q lost extension", first)
	}
}

func TestGetFailsWithAssetUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestCache(t)
	_, err := c.Get(context.Background(), srv.URL+"/missing.png")
	if !errors.Is(err, domain.ErrAssetUnavailable) {
		t.Fatalf("err = %v, want ErrAssetUnavailable", err)
	}
}

func TestPrefetchPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestCache(t)
	good := srv.URL + "/good.png"
	bad := srv.URL + "/bad"

	index, err := c.Prefetch(context.Background(), []string{good, bad})
	if err == nil {
		t.Fatalf("want error for failed URL")
	}
	if _, ok := index[good]; !ok {
		t.Fatalf("good URL missing from index despite partial failure: %v", index)
	}
	if _, ok := index[bad]; ok {
		t.Fatalf("bad URL should not be indexed")
	}
}

func TestSweepRemovesStaleEntries(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, time.Second, time.Minute, zerolog.Nop())

	stale := filepath.Join(dir, "stale.bin")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Minute)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	fresh := filepath.Join(dir, "fresh.bin")
	if err := os.WriteFile(fresh, []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := c.Sweep(); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale entry survived sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh entry removed: %v", err)
	}
}

func TestCollectSourcesDedupes(t *testing.T) {
	tl := domain.Timeline{
		Background: domain.Background{Image: "https://cdn/bg.png"},
		Soundtrack: &domain.Soundtrack{Src: "https://cdn/music.mp3"},
		Tracks: []domain.Track{
			{Type: domain.TrackVideo, Clips: []domain.Clip{
				{Type: domain.ClipVideo, Src: "https://cdn/a.mp4"},
				{Type: domain.ClipVideo, Src: "https://cdn/a.mp4"},
				{Type: domain.ClipText, Text: "hi"},
			}},
		},
	}
	urls := CollectSources(tl)
	want := map[string]bool{
		"https://cdn/bg.png":    true,
		"https://cdn/music.mp3": true,
		"https://cdn/a.mp4":     true,
	}
	if len(urls) != len(want) {
		t.Fatalf("urls = %v, want 3 unique", urls)
	}
	for _, u := range urls {
		if !want[u] {
			t.Fatalf("unexpected url %q", u)
		}
	}
}
