package domain

import "errors"

var (
	// ErrInvalidInput is wrapped by every invariant violation raised while
	// constructing or mutating a character.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateName is returned by repositories when a save would violate
	// the unique character name constraint.
	ErrDuplicateName = errors.New("duplicate character name")
	// ErrStaleVersion is returned by repositories when the saved character's
	// version no longer matches the stored row.
	ErrStaleVersion = errors.New("stale character version")
	// ErrUnknownEventKind is returned when dispatching an event whose kind is
	// not part of the lifecycle kind set.
	ErrUnknownEventKind = errors.New("unknown event kind")
)
