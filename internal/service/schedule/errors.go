package schedule

import "errors"

// Sentinel errors for the scheduled job service.
var (
	ErrNotFound     = errors.New("scheduled job not found")
	ErrDuplicateJob = errors.New("an active job already exists for this entity")
)

// errMissingEntity marks a run whose event no longer exists. The run counts
// as a success so the job completes instead of retrying forever.
var errMissingEntity = errors.New("referenced entity not found")
