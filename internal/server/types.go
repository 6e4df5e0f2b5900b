package server

import (
	"sync"
	"time"

	"github.com/MeKo-Tech/docrefine/internal/document"
	"github.com/MeKo-Tech/docrefine/internal/enhance"
	"github.com/MeKo-Tech/docrefine/internal/ocr"
	"github.com/MeKo-Tech/docrefine/internal/taskstore"
)

// TaskStatus is the lifecycle state of an asynchronous enhancement task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskStarted TaskStatus = "started"
	TaskSuccess TaskStatus = "success"
	TaskFailure TaskStatus = "failure"
)

// Task tracks one accepted request through the asynchronous workflow.
type Task struct {
	ID        string
	Status    TaskStatus
	Document  *document.Document
	Err       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Config holds server configuration.
type Config struct {
	Host          string
	Port          int
	CORSOrigin    string
	MaxUploadMB   int64
	TimeoutSec    int
	EnhanceConfig enhance.Config
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	cfg     Config
	engine  ocr.Recognizer
	options *taskstore.Store

	mu    sync.Mutex
	tasks map[string]*Task
}

// EnhanceRequest is the POST /v1/enhance payload: a converted document plus
// the per-task enhancement flags.
type EnhanceRequest struct {
	Options  enhance.Options    `json:"options"`
	Document *document.Document `json:"document"`
}

// TaskResponse reports the id and state of a task.
type TaskResponse struct {
	TaskID     string     `json:"task_id"`
	TaskStatus TaskStatus `json:"task_status"`
	Error      string     `json:"error,omitempty"`
}

// DocumentContent carries the enhanced conversion content.
type DocumentContent struct {
	JSONContent *document.Document `json:"json_content,omitempty"`
	MDContent   string             `json:"md_content,omitempty"`
}

// ResultResponse is the final payload returned for a finished task.
type ResultResponse struct {
	Document       DocumentContent `json:"document"`
	Status         TaskStatus      `json:"status"`
	ProcessingTime float64         `json:"processing_time"`
}

// HealthResponse reports server liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ErrorResponse is the error payload for failed API calls.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
