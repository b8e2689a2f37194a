package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"mealody/internal/gourmet"
	"mealody/internal/logger"
	"mealody/internal/metrics"
	"mealody/internal/query"
	"mealody/internal/session"
	"mealody/internal/store"
)

var errSessionNotFound = errors.New("session not found")

// statusOf：错误类别 → HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, gourmet.ErrValidation), errors.Is(err, query.ErrBadParam), errors.Is(err, query.ErrNoAnchor),
		errors.Is(err, query.ErrLimit), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, gourmet.ErrNotFound), errors.Is(err, store.ErrNoteNotFound),
		errors.Is(err, errSessionNotFound), errors.Is(err, session.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, gourmet.ErrInvalidState), errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrReset), errors.Is(err, store.ErrNoteNotDeletable):
		return http.StatusConflict
	case errors.Is(err, gourmet.ErrNetwork), errors.Is(err, gourmet.ErrDecode):
		return http.StatusBadGateway
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var (
	errBadRequest  = errors.New("bad request")
	errUnavailable = errors.New("feature not configured")
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		logger.L().Warn("api_error", "status", code, "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// instrument：按路由记录请求数与耗时
func instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &codeWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		h(sw, r)
		metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(sw.code)).Inc()
		metrics.RequestDurationMs.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

type codeWriter struct {
	http.ResponseWriter
	code int
}

func (w *codeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
