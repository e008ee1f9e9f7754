package tasks

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tasklight/tasklight/internal/auth"
	"github.com/tasklight/tasklight/internal/platform/httpx"
)

// ServicePort is the task service surface consumed by the HTTP layer.
type ServicePort interface {
	List(ctx context.Context, userID string) ([]Task, error)
	Get(ctx context.Context, userID, id string) (*Task, error)
	Create(ctx context.Context, userID, title string) (*Task, error)
	Update(ctx context.Context, userID, id string, patch UpdateTaskRequest) (*Task, error)
	Delete(ctx context.Context, userID, id string) error
	ClearCompleted(ctx context.Context, userID string) (int64, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)
	ToggleAll(ctx context.Context, userID string, completed bool) (int64, error)
}

// Handler wires HTTP endpoints for tasks. All routes are mounted behind the
// auth gate, so the user in context is the scoping identity.
type Handler struct {
	logger  *slog.Logger
	service ServicePort
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service ServicePort) *Handler {
	return &Handler{logger: logger, service: service}
}

type taskEnvelope struct {
	Task *Task `json:"task"`
}

type taskListEnvelope struct {
	Tasks []Task `json:"tasks"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	list, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.fail(w, "list tasks", err)
		return
	}
	httpx.JSON(w, http.StatusOK, taskListEnvelope{Tasks: list})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req CreateTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid request body")
		return
	}
	task, err := h.service.Create(r.Context(), userID, req.Title)
	if err != nil {
		h.fail(w, "create task", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, taskEnvelope{Task: task})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	task, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, taskEnvelope{Task: task})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	var patch UpdateTaskRequest
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid request body")
		return
	}
	task, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, "update task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, taskEnvelope{Task: task})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) toggleAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req ToggleAllRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid request body")
		return
	}
	n, err := h.service.ToggleAll(r.Context(), userID, req.Completed)
	if err != nil {
		h.fail(w, "toggle all tasks", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *Handler) clearCompleted(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	n, err := h.service.ClearCompleted(r.Context(), userID)
	if err != nil {
		h.fail(w, "clear completed tasks", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) deleteAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	n, err := h.service.DeleteAll(r.Context(), userID)
	if err != nil {
		h.fail(w, "delete all tasks", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	list, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.fail(w, "export tasks", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.csv"`)
	if err := WriteCSV(w, list); err != nil {
		h.logger.Error("write csv", slog.Any("error", err))
	}
}

// scope extracts the authenticated user id. The gate middleware guarantees a
// user is present; the guard covers handlers exercised outside the router.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return "", false
	}
	return user.ID, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, httpx.ErrNotFound) && !errors.Is(err, httpx.ErrValidation) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
