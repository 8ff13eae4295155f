package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/umakantv/go-utils/errs"
	"github.com/umakantv/go-utils/httpserver"
	"go.uber.org/zap"

	"journal-service/uploads"
)

const serviceName = "journal-service"

// PageHandler serves the static web client, uploaded images and health
type PageHandler struct {
	publicDir string
	images    uploads.Storage
}

// NewPageHandler creates a new page handler
func NewPageHandler(publicDir string, images uploads.Storage) *PageHandler {
	return &PageHandler{
		publicDir: publicDir,
		images:    images,
	}
}

// Page returns a handler serving one HTML file from the public directory
func (h *PageHandler) Page(file string) httpserver.HandlerFunc {
	path := filepath.Join(h.publicDir, file)
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}
}

// Static handles GET /{file} for stylesheets, scripts and other assets
func (h *PageHandler) Static(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(filepath.Clean("/" + mux.Vars(r)["file"]))
	http.ServeFile(w, r, filepath.Join(h.publicDir, name))
}

// Done handles GET /done
func (h *PageHandler) Done(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "password changed successfully")
}

// Health handles GET /health
func (h *PageHandler) Health(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

// Image handles GET /user/image/{name}
func (h *PageHandler) Image(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	body, contentType, err := h.images.Open(ctx, name)
	if errors.Is(err, uploads.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errs.NewNotFoundError("Image not found"))
		return
	}
	if err != nil {
		logRequest(ctx, "error", "Failed to open image", zap.String("image", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError(err.Error()))
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, body); err != nil {
		logRequest(ctx, "error", "Failed to stream image", zap.String("image", name), zap.Error(err))
	}
}
