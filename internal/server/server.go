// Package server exposes the document enhancement workflow over HTTP: accept
// a converted document with per-task options, track the asynchronous task,
// and prepare the enhanced response. Enhancement remains best-effort at this
// layer too: if applying it fails, the original conversion content is
// returned rather than failing the request.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/docrefine/internal/ocr"
	"github.com/MeKo-Tech/docrefine/internal/taskstore"
)

// NewServer creates a server around an OCR adapter and a fresh options store.
func NewServer(cfg Config, engine ocr.Recognizer) *Server {
	return &Server{
		cfg:     cfg,
		engine:  engine,
		options: taskstore.New(),
		tasks:   make(map[string]*Task),
	}
}

// Handler returns the server's HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/v1/enhance", s.enhanceHandler)
	mux.HandleFunc("/v1/status/poll/", s.statusHandler)
	mux.HandleFunc("/v1/result/", s.resultHandler)
	mux.HandleFunc("/ws/", s.taskWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

func (s *Server) getTask(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

func (s *Server) putTask(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
}

func (s *Server) removeTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

func (s *Server) setTaskStatus(id string, status TaskStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Status = status
		t.Err = errMsg
		t.UpdatedAt = nowUTC()
	}
}
