package bulk

import "errors"

// Sentinel errors for the bulk job service layer.
var (
	ErrNotFound          = errors.New("email job not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrQuotaExceeded     = errors.New("recipient count exceeds remaining daily quota")
)
