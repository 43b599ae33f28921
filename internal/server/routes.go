package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/zyrian-nova/todo-app/internal/todo"
)

// StatusMessage is returned by the root endpoint.
const StatusMessage = "The todo application is running..."

// createRequest is the body of POST /api/.
type createRequest struct {
	Task *string `json:"task" validate:"required,notblank,max=100"`
	Done *bool   `json:"done" validate:"required"`
}

// updateRequest is the body of PUT /api/{id}. Absent fields are left unchanged.
type updateRequest struct {
	Task *string `json:"task" validate:"omitempty,notblank,max=100"`
	Done *bool   `json:"done"`
}

// GeneratedSubtasks is the response of POST /api/{id}/generate-subtasks.
type GeneratedSubtasks struct {
	MainTaskID int64       `json:"main_task_id"`
	MainTask   string      `json:"main_task"`
	Subtasks   []todo.Todo `json:"subtasks"`
	Count      int         `json:"count"`
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	for _, prefix := range []string{"/api", "/api/{$}"} {
		mux.HandleFunc("GET "+prefix, s.handleList)
		mux.HandleFunc("POST "+prefix, s.handleCreate)
	}
	mux.HandleFunc("PUT /api/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/{id}/generate-subtasks", s.handleGenerateSubtasks)
	mux.HandleFunc("GET /api/{id}/subtasks", s.handleSubtasks)

	var h http.Handler = mux
	h = s.withRecover(h)
	h = s.withAccessLog(h)
	h = s.withCORS(h)
	h = s.withRequestID(h)
	return h
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": StatusMessage})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		requestLogger(r.Context(), s.logger).Error("store ping failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	todos, err := s.store.List(r.Context())
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.store.Create(r.Context(), todo.Todo{Task: *req.Task, Done: *req.Done})
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	requestLogger(r.Context(), s.logger).WithTask(created.ID).Info("todo created")
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	updated, err := s.store.Update(r.Context(), id, todo.Patch{Task: req.Task, Done: req.Done})
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.storeError(w, r, err)
		return
	}
	requestLogger(r.Context(), s.logger).WithTask(id).Info("todo deleted")
	writeJSON(w, http.StatusOK, "Todo deleted successfully")
}

// handleGenerateSubtasks decomposes the task and stores each subtask as a
// child. Diagnostic outcomes are reported as 502 and never persisted.
func (s *Server) handleGenerateSubtasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	logger := requestLogger(r.Context(), s.logger).WithTask(id)

	parent, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if strings.TrimSpace(parent.Task) == "" {
		writeError(w, http.StatusUnprocessableEntity, "task must not be blank")
		return
	}

	out := s.decomposer.Run(r.Context(), parent.Task)
	if !out.OK() {
		logger.Warn("subtask generation failed", "outcome", out.Kind.String())
		writeError(w, http.StatusBadGateway, out.Diagnostic())
		return
	}

	texts := make([]string, 0, len(out.Subtasks))
	for _, text := range out.Subtasks {
		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}

	created, err := s.store.AddSubtasks(r.Context(), id, texts)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	logger.Info("subtasks generated", "count", len(created))

	writeJSON(w, http.StatusOK, GeneratedSubtasks{
		MainTaskID: parent.ID,
		MainTask:   parent.Task,
		Subtasks:   created,
		Count:      len(created),
	})
}

func (s *Server) handleSubtasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	children, err := s.store.Children(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

// pathID parses the {id} path segment, writing a 422 when it is not an integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "id must be an integer")
		return 0, false
	}
	return id, true
}

// storeError maps store failures to responses.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, todo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Todo not found")
		return
	}
	requestLogger(r.Context(), s.logger).Error("store operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
