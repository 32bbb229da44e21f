package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/imalyk/go-audio-mashup/pkg/job"
	"github.com/imalyk/go-audio-mashup/pkg/pipeline"
)

// createdStore remembers every id it hands out.
type createdStore struct {
	*job.MemoryStore
	ids []string
}

func (s *createdStore) Create(ctx context.Context) (job.Job, error) {
	j, err := s.MemoryStore.Create(ctx)
	if err == nil {
		s.ids = append(s.ids, j.ID)
	}
	return j, err
}

type fakeQueue struct {
	tasks []pipeline.Task
	err   error
}

func (q *fakeQueue) Submit(t pipeline.Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *fakeQueue) Len() int {
	return len(q.tasks)
}

func setupTestServer(t *testing.T) (http.Handler, *createdStore, *fakeQueue, string) {
	t.Helper()

	outputDir := t.TempDir()
	store := &createdStore{MemoryStore: job.NewMemoryStore()}
	queue := &fakeQueue{}
	s := &server{
		store:     store,
		queue:     queue,
		outputDir: outputDir,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return newRouter(s, []string{"http://localhost:3000", "http://localhost:3003"}), store, queue, outputDir
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRootHandler(t *testing.T) {
	h, _, _, _ := setupTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := decodeBody(t, rec)["message"]; !ok {
		t.Fatalf("expected message, body=%s", rec.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	h, _, _, _ := setupTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ok, _ := decodeBody(t, rec)["ok"].(bool); !ok {
		t.Fatalf("expected ok=true, body=%s", rec.Body.String())
	}
}

func TestGenerateQueuesPendingJob(t *testing.T) {
	h, store, queue, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt":"mix the chorus of song A with the intro of song B"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	id, _ := decodeBody(t, rec)["job_id"].(string)
	if id == "" {
		t.Fatalf("missing job_id, body=%s", rec.Body.String())
	}

	if len(queue.tasks) != 1 || queue.tasks[0].JobID != id {
		t.Fatalf("queued tasks = %+v", queue.tasks)
	}
	if !strings.Contains(queue.tasks[0].Prompt, "song A") {
		t.Fatalf("prompt not forwarded: %q", queue.tasks[0].Prompt)
	}

	j, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if j.Status != job.StatusPending {
		t.Fatalf("status = %s, want pending", j.Status)
	}
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"prompt":`},
		{"missing prompt", `{}`},
		{"blank prompt", `{"prompt":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, queue, _ := setupTestServer(t)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(tt.body)))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if len(queue.tasks) != 0 {
				t.Fatalf("expected nothing queued, got %+v", queue.tasks)
			}
		})
	}
}

func TestGenerateQueueFull(t *testing.T) {
	h, store, queue, _ := setupTestServer(t)
	queue.err = pipeline.ErrQueueFull

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt":"anything"}`)))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	// the rejected job is still recorded, as failed
	var failed int
	for _, id := range store.ids {
		j, _ := store.Get(context.Background(), id)
		if j.Status == job.StatusFailed && j.Stage == job.StageInternal {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("failed jobs = %d, want 1", failed)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	h, _, _, _ := setupTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/does-not-exist", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if detail := decodeBody(t, rec)["detail"]; detail != "Job not found" {
		t.Fatalf("detail = %v", detail)
	}
}

func TestStatusReportsProgress(t *testing.T) {
	h, store, _, _ := setupTestServer(t)
	ctx := context.Background()
	j, _ := store.Create(ctx)

	get := func() map[string]any {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/"+j.ID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		return decodeBody(t, rec)
	}

	body := get()
	if body["status"] != string(job.StatusPending) {
		t.Fatalf("status = %v, want pending", body["status"])
	}
	if v, ok := body["file_url"]; !ok || v != nil {
		t.Fatalf("file_url = %v (present %v), want null", v, ok)
	}

	_ = store.SetStatus(ctx, j.ID, job.StatusProcessing)
	if body = get(); body["status"] != string(job.StatusProcessing) {
		t.Fatalf("status = %v, want processing_audio", body["status"])
	}

	_ = store.SetOutput(ctx, j.ID, "/output/"+j.ID+".mp3")
	_ = store.SetStatus(ctx, j.ID, job.StatusComplete)
	body = get()
	if body["status"] != string(job.StatusComplete) || body["file_url"] != "/output/"+j.ID+".mp3" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestOutputIsServed(t *testing.T) {
	h, _, _, outputDir := setupTestServer(t)
	if err := os.WriteFile(filepath.Join(outputDir, "abc.mp3"), []byte("ID3"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/output/abc.mp3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ID3" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestOutputDirectoryIsNotListed(t *testing.T) {
	h, _, _, outputDir := setupTestServer(t)
	if err := os.WriteFile(filepath.Join(outputDir, "abc.mp3"), []byte("ID3"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(outputDir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	for _, path := range []string{"/output/", "/output/nested/"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "abc.mp3") {
			t.Errorf("%s: listing exposed output files", path)
		}
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	h, _, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3003")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3003" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q for foreign origin", got)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" http://a , ,http://b")
	if len(got) != 2 || got[0] != "http://a" || got[1] != "http://b" {
		t.Fatalf("splitList = %v", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "WORKERS", "QUEUE_SIZE", "CROSSFADE_MS", "JOB_STORE", "LLM_PROVIDER", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg := loadConfig()
	if cfg.Port != "8000" || cfg.Workers != 2 || cfg.QueueSize != 100 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Crossfade.Milliseconds() != 1500 {
		t.Fatalf("crossfade = %v", cfg.Crossfade)
	}
	if cfg.JobStore != "memory" || cfg.LLMProvider != "openai" {
		t.Fatalf("unexpected backends: store=%s llm=%s", cfg.JobStore, cfg.LLMProvider)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("cors origins = %v", cfg.CORSOrigins)
	}

	t.Setenv("WORKERS", "not-a-number")
	if cfg := loadConfig(); cfg.Workers != 2 {
		t.Fatalf("workers = %d, want fallback 2", cfg.Workers)
	}
}
