package http

import (
	"context"
	"errors"
	"net/http"

	applog "despesas/internal/log"
	"despesas/internal/middleware/auth"
	"despesas/internal/services"
	"despesas/internal/storage"
)

// statusFor maps a service or store error to the HTTP status it answers
// with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateName), errors.Is(err, storage.ErrInUse), errors.Is(err, storage.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status mapped from err. Client errors carry
// the error text; server errors are logged and answered generically.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	logger := applog.FromContext(r.Context())

	switch {
	case status >= http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "Request failed",
			applog.FieldOperation, op,
			applog.FieldError, err.Error(),
			applog.FieldStatusCode, status)
		msg := "internal server error"
		if status == http.StatusServiceUnavailable {
			msg = "request timed out"
		}
		ErrorResponse(status, msg).Write(w)
	default:
		logger.WarnContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldError, err.Error(),
			applog.FieldStatusCode, status)
		ErrorResponse(status, err.Error()).Write(w)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady pings the store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
