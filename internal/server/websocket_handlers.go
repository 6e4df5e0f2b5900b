package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		return true
	},
}

// taskStatusInterval is how often the task state is pushed to the client.
const taskStatusInterval = 500 * time.Millisecond

// taskWebSocketHandler streams task status updates to the client until the
// task settles or disappears.
func (s *Server) taskWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/ws/")
	if id == "" {
		s.writeError(w, "Task id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "task", id, "remote_addr", r.RemoteAddr)

	ticker := time.NewTicker(taskStatusInterval)
	defer ticker.Stop()

	var last TaskStatus
	for range ticker.C {
		task, ok := s.getTask(id)
		if !ok {
			_ = conn.WriteJSON(TaskResponse{TaskID: id, TaskStatus: TaskFailure, Error: "task not found"})
			return
		}

		if task.Status != last {
			last = task.Status
			if err := conn.WriteJSON(TaskResponse{TaskID: id, TaskStatus: task.Status, Error: task.Err}); err != nil {
				slog.Warn("Failed to write WebSocket message", "task", id, "error", err)
				return
			}
		}
		if task.Status == TaskSuccess || task.Status == TaskFailure {
			return
		}
	}
}
