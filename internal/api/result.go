// Package api exposes the engine over HTTP. Every response body is a
// Result envelope; the agent work endpoint answers 204 when the agent has
// no job.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rndsolutions/HawkCD/internal/domain"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the typed response envelope. Entity is set on success; Message
// and Kind describe a failure.
type Result[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Entity  T      `json:"entity"`
}

// Succeeded reports whether r carries a success status.
func (r Result[T]) Succeeded() bool {
	return r.Status == StatusSuccess
}

var errBadRequest = errors.New("bad request")

// badRequest marks a malformed request; it maps to 400.
func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Is(target error) bool { return target == errBadRequest }

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyExists, domain.KindConflict:
		return http.StatusConflict
	case domain.KindInvalidState:
		return http.StatusUnprocessableEntity
	case domain.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON[T any](w http.ResponseWriter, status int, result Result[T]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}

func ok[T any](w http.ResponseWriter, status int, entity T) {
	writeJSON(w, status, Result[T]{Status: StatusSuccess, Entity: entity})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		"method", r.Method, "path", r.URL.Path, "status", status, "error", err)

	result := Result[any]{Status: StatusError, Message: err.Error()}
	if kind := domain.KindOf(err); kind != domain.KindUnknown {
		result.Kind = kind.String()
	}
	writeJSON(w, status, result)
}

func decode[T any](r *http.Request) (T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, badRequest("invalid request body: " + err.Error())
	}
	return v, nil
}
