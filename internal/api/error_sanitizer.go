package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/ignite/member-mailer/internal/pkg/httputil"
	"github.com/ignite/member-mailer/internal/pkg/validation"
	"github.com/ignite/member-mailer/internal/service/bulk"
	"github.com/ignite/member-mailer/internal/service/queue"
	"github.com/ignite/member-mailer/internal/service/schedule"
	"github.com/ignite/member-mailer/internal/service/token"
)

// =============================================================================
// ERROR MAPPING
// Service errors become status codes here. 5xx responses never carry the
// internal error; it is logged server-side instead.
// =============================================================================

// respondError maps a service error onto the response envelope.
func respondError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		httputil.Fail(w, http.StatusBadRequest, "validation_failed", "validation failed", verr.Fields)
	case errors.Is(err, bulk.ErrQuotaExceeded):
		httputil.Fail(w, http.StatusUnprocessableEntity, "quota_exceeded", err.Error(), nil)
	case errors.Is(err, bulk.ErrInvalidTransition):
		httputil.Conflict(w, "invalid_transition", err.Error())
	case errors.Is(err, schedule.ErrDuplicateJob):
		httputil.Conflict(w, "duplicate_job", err.Error())
	case errors.Is(err, token.ErrTokenAlreadyUsed):
		httputil.Conflict(w, "token_used", err.Error())
	case errors.Is(err, token.ErrTokenExpired):
		httputil.Fail(w, http.StatusGone, "token_expired", err.Error(), nil)
	case errors.Is(err, queue.ErrNotFound),
		errors.Is(err, queue.ErrCampaignNotFound),
		errors.Is(err, bulk.ErrNotFound),
		errors.Is(err, schedule.ErrNotFound),
		errors.Is(err, token.ErrTokenNotFound),
		errors.Is(err, errEventNotFound):
		httputil.NotFound(w, err.Error())
	default:
		respondSafeError(w, http.StatusInternalServerError, err)
	}
}

// respondSafeError logs the full internal error and sends a public-safe message.
func respondSafeError(w http.ResponseWriter, code int, internalErr error) {
	msg := safeErrorMessage(code, internalErr)
	if internalErr != nil {
		log.Printf("ERROR [%d]: %s: %v", code, msg, internalErr)
	}
	httputil.Error(w, code, msg)
}

// safeErrorMessage maps common internal error patterns to public-safe messages.
func safeErrorMessage(code int, internalErr error) string {
	if code < 500 {
		if internalErr != nil {
			return internalErr.Error()
		}
		return "Bad request"
	}
	if internalErr == nil {
		return "An internal error occurred"
	}

	errStr := strings.ToLower(internalErr.Error())
	switch {
	case strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp"):
		return "Service temporarily unavailable"
	case strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled"):
		return "Request timed out"
	case strings.Contains(errStr, "sql") ||
		strings.Contains(errStr, "pq:") ||
		strings.Contains(errStr, "database"):
		return "A database error occurred"
	}
	return "An internal error occurred"
}
