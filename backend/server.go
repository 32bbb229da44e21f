package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/imalyk/go-audio-mashup/pkg/job"
	"github.com/imalyk/go-audio-mashup/pkg/pipeline"
)

const maxRequestBytes = 1 << 20

type submitter interface {
	Submit(t pipeline.Task) error
	Len() int
}

type server struct {
	store     job.Store
	queue     submitter
	outputDir string
	logger    *slog.Logger
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type statusResponse struct {
	Status  job.Status `json:"status"`
	FileURL *string    `json:"file_url"`
}

func newRouter(s *server, origins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodPost)
	r.HandleFunc("/status/{job_id}", s.handleStatus).Methods(http.MethodGet)
	r.PathPrefix("/output/").Handler(
		http.StripPrefix("/output/", http.FileServer(filesOnly{http.Dir(s.outputDir)})),
	).Methods(http.MethodGet, http.MethodHead)

	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)(r)
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "mashup generator is running"})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeDetail(w, http.StatusBadRequest, "prompt is required")
		return
	}

	j, err := s.store.Create(r.Context())
	if err != nil {
		s.logger.Error("failed to create job", "error", err)
		writeDetail(w, http.StatusInternalServerError, "could not create job")
		return
	}

	if err := s.queue.Submit(pipeline.Task{JobID: j.ID, Prompt: req.Prompt}); err != nil {
		s.logger.Warn("rejecting job", "job_id", j.ID, "error", err)
		if ferr := s.store.SetFailure(r.Context(), j.ID, job.StageInternal, err.Error()); ferr != nil {
			s.logger.Error("failed to mark job failure", "job_id", j.ID, "error", ferr)
		}
		if errors.Is(err, pipeline.ErrQueueFull) {
			writeDetail(w, http.StatusServiceUnavailable, "server busy, try again later")
			return
		}
		writeDetail(w, http.StatusInternalServerError, "could not queue job")
		return
	}

	s.logger.Info("job accepted", "job_id", j.ID, "queued", s.queue.Len())
	writeJSON(w, http.StatusOK, map[string]string{"job_id": j.ID})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["job_id"]

	j, err := s.store.Get(r.Context(), id)
	if errors.Is(err, job.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load job", "job_id", id, "error", err)
		writeDetail(w, http.StatusInternalServerError, "could not load job")
		return
	}

	resp := statusResponse{Status: j.Status}
	if j.FileURL != "" {
		resp.FileURL = &j.FileURL
	}
	writeJSON(w, http.StatusOK, resp)
}

// filesOnly hides directories so the output folder cannot be listed.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start).String())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
