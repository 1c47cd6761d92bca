// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"
)

// Sentinel errors for domain layer. Domain packages wrap these so the
// boundary can choose a status without importing them.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
)

// ErrorMapper turns domain errors into problem responses.
//
// With Strict unset, duplicates and validation failures are reported as 500,
// which is what existing clients of the companies API observe.
type ErrorMapper struct {
	Strict bool
	Logger *slog.Logger
}

// StatusFor returns the HTTP status code for err.
func (m ErrorMapper) StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		if m.Strict {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	case errors.Is(err, ErrValidation):
		if m.Strict {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as an RFC7807 problem. Details of unclassified
// errors are logged and withheld from the client.
func (m ErrorMapper) RespondError(w http.ResponseWriter, r *http.Request, err error) {
	status := m.StatusFor(err)
	classified := errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrValidation)

	if m.Logger != nil {
		level := slog.LevelWarn
		if !classified {
			level = slog.LevelError
		}
		m.Logger.Log(r.Context(), level, "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("error", err))
	}

	detail := ""
	if classified {
		detail = err.Error()
	}
	Problem(w, status, http.StatusText(status), detail)
}
