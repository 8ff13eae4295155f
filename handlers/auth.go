package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"

	"journal-service/metrics"
	"journal-service/models"
	"journal-service/services"
	"journal-service/session"
	"journal-service/uploads"
)

// AuthHandler serves registration, login, logout and the account routes
type AuthHandler struct {
	users    *services.UserService
	sessions *session.Manager
	metrics  *metrics.Metrics
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *services.UserService, sessions *session.Manager, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		metrics:  m,
	}
}

// Register handles POST /register - multipart form with an optional profile image
func (h *AuthHandler) Register(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	logRequest(ctx, "info", "Register request")

	r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxImageSize+1<<20)
	var profile io.Reader
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			logRequest(ctx, "error", "Invalid multipart body", zap.Error(err))
			writeJSON(w, http.StatusBadRequest, &errs.AppError{Code: http.StatusBadRequest, Message: "Invalid form"})
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, _, err := r.FormFile("profile")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			logRequest(ctx, "error", "Invalid profile upload", zap.Error(err))
			writeJSON(w, http.StatusBadRequest, &errs.AppError{Code: http.StatusBadRequest, Message: "Invalid profile image"})
			return
		default:
			defer file.Close()
			profile = file
		}
	} else if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, &errs.AppError{Code: http.StatusBadRequest, Message: "Invalid form"})
		return
	}

	req := models.RegisterRequest{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	user, err := h.users.Register(ctx, req, profile)
	if err != nil {
		logRequest(ctx, "error", "Registration rejected", zap.Error(err))
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "User registered", zap.String("user_id", user.ID))
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Login handles POST /login - verifies the form credentials and starts a session
func (h *AuthHandler) Login(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	logRequest(ctx, "info", "Login request")

	var req models.LoginRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logRequest(ctx, "error", "Invalid login body", zap.Error(err))
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
	} else {
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
	}

	user, err := h.users.Login(ctx, req.Email, req.Password)
	if errors.Is(err, services.ErrAuthFailure) {
		h.metrics.LoginResult("rejected")
		logRequest(ctx, "info", "Invalid credentials", zap.String("email", req.Email))
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if err != nil {
		h.metrics.LoginResult("error")
		writeError(ctx, w, err)
		return
	}

	if err := h.sessions.Create(w, session.Identity{UserID: user.ID, Email: user.Email}); err != nil {
		h.metrics.LoginResult("error")
		logRequest(ctx, "error", "Failed to create session", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError(err.Error()))
		return
	}

	h.metrics.LoginResult("success")
	logRequest(ctx, "info", "Login successful", zap.String("user_id", user.ID))
	http.Redirect(w, r, "/Notes", http.StatusFound)
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(w, r); err != nil {
		logRequest(ctx, "error", "Logout failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, statusResponse{Success: false, Message: "logout failed"})
		return
	}

	logRequest(ctx, "info", "Logged out")
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "logout successful"})
}

// GetUser handles GET /getUser - the logged-in user's profile
func (h *AuthHandler) GetUser(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := session.FromContext(ctx)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Not logged in"))
		return
	}

	user, err := h.users.CurrentUser(ctx, identity.UserID)
	if err != nil {
		logRequest(ctx, "error", "User lookup failed", zap.Error(err))
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.ToResponse())
}

// ChangePassword handles POST /changeP. Refusals are reported with 200 and
// success=false so the page can show the message.
func (h *AuthHandler) ChangePassword(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := session.FromContext(ctx)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Not logged in"))
		return
	}

	var req models.ChangePasswordRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, &errs.AppError{Code: http.StatusBadRequest, Message: "Invalid JSON"})
			return
		}
	} else {
		req.OldPassword = r.PostFormValue("Opass")
		req.NewPassword = r.PostFormValue("Npass")
	}

	err := h.users.ChangePassword(ctx, identity.UserID, req.OldPassword, req.NewPassword)
	var rejected *services.RejectedError
	if errors.As(err, &rejected) {
		logRequest(ctx, "info", "Password change rejected", zap.String("reason", rejected.Reason))
		writeJSON(w, http.StatusOK, statusResponse{Success: false, Message: rejected.Reason})
		return
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "Password changed")
	writeJSON(w, http.StatusOK, statusResponse{Success: true})
}
