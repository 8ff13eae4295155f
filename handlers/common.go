package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/umakantv/go-utils/errs"
	"github.com/umakantv/go-utils/httpserver"
	logger "github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"

	"journal-service/services"
)

// logRequest logs with the route details httpserver put in ctx.
// Message format: timestamp - route - method - path [- client] - message
func logRequest(ctx context.Context, level string, message string, fields ...zap.Field) {
	routeName := httpserver.GetRouteName(ctx)
	method := httpserver.GetRouteMethod(ctx)
	path := httpserver.GetRoutePath(ctx)
	auth := httpserver.GetRequestAuth(ctx)

	logMsg := time.Now().Format("2006-01-02 15:04:05") + " - " + routeName + " - " + method + " - " + path
	if auth != nil {
		logMsg += " - client:" + auth.Client
	}
	if message != "" {
		logMsg += " - " + message
	}

	allFields := append([]zap.Field{
		zap.String("route", routeName),
		zap.String("method", method),
		zap.String("path", path),
	}, fields...)

	switch level {
	case "info":
		logger.Info(logMsg, allFields...)
	case "error":
		logger.Error(logMsg, allFields...)
	case "debug":
		logger.Debug(logMsg, allFields...)
	}
}

// statusResponse is the {success, Message} body the web client expects
type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"Message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps a service error onto an errs.AppError response. Anything
// unclassified is a 500 carrying the underlying error text.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var appErr *errs.AppError
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrDuplicateEmail):
		appErr = errs.NewValidationError(err.Error())
		appErr.Code = http.StatusBadRequest
	case errors.Is(err, services.ErrAuthFailure):
		appErr = errs.NewAuthenticationError("Invalid credentials")
	case errors.Is(err, services.ErrForbidden):
		appErr = errs.NewAuthorizationError("Not allowed to access this note")
	case errors.Is(err, services.ErrNotFound):
		appErr = errs.NewNotFoundError("Not found")
	default:
		logRequest(ctx, "error", "Request failed", zap.Error(err))
		appErr = errs.NewInternalServerError(err.Error())
	}
	writeJSON(w, appErr.Code, appErr)
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
