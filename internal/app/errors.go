package app

import (
	"errors"
	"fmt"

	"textrpg/internal/domain"
)

// Caller-visible error kinds. Cache and event failures never surface here.
var (
	ErrNotFound     = errors.New("character not found")
	ErrNameConflict = errors.New("character name already taken")
	// ErrConflict reports a lost optimistic-concurrency race. Callers may
	// retry the operation.
	ErrConflict    = errors.New("character was modified concurrently")
	ErrPersistence = errors.New("persistence failure")
	ErrForbidden   = errors.New("character belongs to another owner")
	// ErrInvalidInput is the domain sentinel, re-exported for adapters.
	ErrInvalidInput = domain.ErrInvalidInput
)

// storeError classifies an error returned by the repository.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrDuplicateName):
		return fmt.Errorf("%s: %w", op, ErrNameConflict)
	case errors.Is(err, domain.ErrStaleVersion):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}
}
