package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/spa-auth/internal/server/auth"
	"github.com/dmitrijs2005/spa-auth/internal/server/services"
)

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
}

// updateTaskRequest carries only the fields present in the body.
type updateTaskRequest struct {
	Title       *string        `json:"title"`
	Description nullableString `json:"description"`
	Completed   *bool          `json:"completed"`
}

// nullableString tells an absent field from an explicit null.
type nullableString struct {
	Present bool
	Value   *string
}

func (n *nullableString) UnmarshalJSON(data []byte) error {
	n.Present = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	return json.Unmarshal(data, &n.Value)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.Tasks.List(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	resp := make([]*taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, newTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	task, err := s.svc.Tasks.Create(r.Context(), auth.FromContext(r.Context()), services.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusCreated, newTaskResponse(task))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.Tasks.Get(r.Context(), auth.FromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	task, err := s.svc.Tasks.Update(r.Context(), auth.FromContext(r.Context()), r.PathValue("id"), services.TaskPatch{
		Title:            req.Title,
		Description:      req.Description.Value,
		ClearDescription: req.Description.Present && req.Description.Value == nil,
		Completed:        req.Completed,
	})
	if err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Tasks.Delete(r.Context(), auth.FromContext(r.Context()), r.PathValue("id")); err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
