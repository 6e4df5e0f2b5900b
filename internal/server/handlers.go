package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/docrefine/internal/document"
	"github.com/MeKo-Tech/docrefine/internal/enhance"
)

func nowUTC() time.Time { return time.Now().UTC() }

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Time:   nowUTC().Format(time.RFC3339),
	})
}

// enhanceHandler accepts a converted document plus enhancement options and
// starts an asynchronous task. The options are stored per task and consumed
// exactly once at response preparation.
func (s *Server) enhanceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadMB*1024*1024)

	var req EnhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Document == nil {
		s.writeError(w, "No document provided", http.StatusBadRequest)
		return
	}

	task := &Task{
		ID:        uuid.NewString(),
		Status:    TaskPending,
		Document:  req.Document,
		CreatedAt: nowUTC(),
		UpdatedAt: nowUTC(),
	}
	s.putTask(task)
	s.options.Set(task.ID, req.Options)
	tasksSubmitted.Inc()

	go s.runTask(task.ID)

	s.writeJSON(w, http.StatusOK, TaskResponse{TaskID: task.ID, TaskStatus: TaskPending})
}

// runTask marks the task started and settles it. The surrounding conversion
// stage already happened upstream; the task exists so clients can poll while
// enhancement-time work (which happens at result preparation) stays bounded
// per request.
func (s *Server) runTask(id string) {
	s.setTaskStatus(id, TaskStarted, "")
	s.setTaskStatus(id, TaskSuccess, "")
}

// statusHandler reports the task lifecycle state.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/status/poll/")
	task, ok := s.getTask(id)
	if !ok {
		s.writeError(w, "Task not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, TaskResponse{TaskID: task.ID, TaskStatus: task.Status, Error: task.Err})
}

// resultHandler prepares and returns the final response for a finished task.
// Results are single-use: the task and its stored options are gone afterwards.
func (s *Server) resultHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/result/")
	task, ok := s.getTask(id)
	if !ok {
		s.writeError(w, "Task not found", http.StatusNotFound)
		return
	}
	if task.Status != TaskSuccess && task.Status != TaskFailure {
		s.writeError(w, "Task result not ready", http.StatusConflict)
		return
	}

	start := nowUTC()
	doc := s.prepareDocument(task)
	resp := ResultResponse{
		Document: DocumentContent{
			JSONContent: doc,
			MDContent:   doc.ExportMarkdown(),
		},
		Status:         task.Status,
		ProcessingTime: time.Since(start).Seconds(),
	}

	s.removeTask(id)
	s.writeJSON(w, http.StatusOK, resp)
}

// prepareDocument applies enhancement when the stored options ask for it,
// falling back to the pre-enhancement document on any failure. The stored
// options are consumed here exactly once.
func (s *Server) prepareDocument(task *Task) *document.Document {
	opts, ok := s.options.Take(task.ID)
	if !ok || !opts.Enabled() {
		return task.Document
	}

	doc, err := s.applyEnhancement(task.Document, opts)
	if err != nil {
		slog.Error("Document enhancement failed, returning original result", "task", task.ID, "error", err)
		enhancementFailures.Inc()
		return task.Document
	}
	return doc
}

func (s *Server) applyEnhancement(doc *document.Document, opts enhance.Options) (out *document.Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("enhancement panicked: %v", rec)
		}
	}()

	start := nowUTC()
	enhancer := enhance.NewWithConfig(s.engine, opts, s.cfg.EnhanceConfig)
	stats := enhancer.Enhance(doc)
	enhancementDuration.Observe(time.Since(start).Seconds())
	regionsReplaced.Add(float64(stats.Replacements()))
	slog.Info("Applied document enhancement",
		"formula_enrichment", opts.FormulaEnrichment,
		"encoding_fix", opts.EncodingFix,
		"pages", stats.PagesProcessed,
		"replacements", stats.Replacements())
	return doc, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, msg string, code int) {
	s.writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
