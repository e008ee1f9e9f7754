package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tasklight/tasklight/internal/platform/httpx"
	"github.com/tasklight/tasklight/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type userEnvelope struct {
	User userResponse `json:"user"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid request body")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, msg)
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, httpx.ErrDuplicate) {
			h.logger.Error("register user", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}

	if err := h.issueSession(w, r, user); err != nil {
		return
	}

	h.logger.Info("user registered", slog.String("user_id", user.ID))
	httpx.JSON(w, http.StatusCreated, userEnvelope{User: toUserResponse(user)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid request body")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, msg)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, httpx.ErrInvalidCredentials) {
			h.logger.Error("authenticate user", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}

	if err := h.issueSession(w, r, user); err != nil {
		return
	}

	h.logger.Info("user logged in", slog.String("user_id", user.ID))
	httpx.JSON(w, http.StatusOK, userEnvelope{User: toUserResponse(user)})
}

// handleLogout destroys the current session, if any, and always reports
// success. A second logout in a row is a no-op.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := h.sessionManager.ReadCookie(r); id != "" {
		if err := h.sessionManager.Destroy(r.Context(), id); err != nil {
			h.logger.Warn("destroy session", slog.Any("error", err))
		}
	}
	h.sessionManager.ClearCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) issueSession(w http.ResponseWriter, r *http.Request, user *User) error {
	sess, err := h.sessionManager.Create(r.Context(), user.ID, r.RemoteAddr, r.UserAgent())
	if err != nil {
		h.logger.Error("create session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return err
	}
	h.sessionManager.SetCookie(w, sess)
	return nil
}

// validate runs struct validation and renders the first violation as a
// message naming the offending field.
func (h *Handler) validate(req any) (string, bool) {
	err := h.validator.Struct(req)
	if err == nil {
		return "", true
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request", false
	}
	switch fieldErrs[0].Field() {
	case "Name":
		return "name must be 1-50 characters", false
	case "Email":
		return "email format is invalid", false
	case "Password":
		return "password must be at least 6 characters", false
	default:
		return "invalid request", false
	}
}

func toUserResponse(user *User) userResponse {
	return userResponse{ID: user.ID, Name: user.Name, Email: user.Email}
}
