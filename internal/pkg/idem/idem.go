// Package idem holds the single "find active or create" primitive shared by
// RSVP tokens (keyed by user and event) and scheduled jobs (keyed by job type
// and entity).
package idem

import (
	"context"
	"errors"
)

// ErrConflict is returned by Store.Insert when a concurrent writer created
// an active record for the same key first (a unique index violation).
var ErrConflict = errors.New("active record already exists for key")

// Store is the persistence a keyed entity needs to take part in FindOrCreate.
type Store[K, T any] interface {
	// FindActive returns the active record for key. found is false when none exists.
	FindActive(ctx context.Context, key K) (v T, found bool, err error)

	// Insert persists v. Returns ErrConflict if another active record for the
	// same key won a race.
	Insert(ctx context.Context, v T) error
}

// FindOrCreate returns the active record for key, building and inserting a
// new one only when none exists. created reports which path was taken.
//
// When Insert loses a race it looks the key up again and returns the winner.
func FindOrCreate[K, T any](ctx context.Context, s Store[K, T], key K, build func() (T, error)) (v T, created bool, err error) {
	var zero T

	v, found, err := s.FindActive(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if found {
		return v, false, nil
	}

	v, err = build()
	if err != nil {
		return zero, false, err
	}
	err = s.Insert(ctx, v)
	if err == nil {
		return v, true, nil
	}
	if !errors.Is(err, ErrConflict) {
		return zero, false, err
	}

	v, found, err = s.FindActive(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if !found {
		return zero, false, ErrConflict
	}
	return v, false, nil
}
