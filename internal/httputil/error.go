package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	http.Error(w, msg, http.StatusBadRequest)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	http.Error(w, msg, http.StatusNotFound)
}

func Conflict(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("conflict", "message", msg, "error", err)
	} else {
		slog.Warn("conflict", "message", msg)
	}
	http.Error(w, msg, http.StatusConflict)
}

func Unauthorized(w http.ResponseWriter, msg string) {
	slog.Warn("unauthorized", "message", msg)
	http.Error(w, msg, http.StatusUnauthorized)
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
