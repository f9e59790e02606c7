package models

import "errors"

// Shared error vocabulary for Database implementations. These live next to
// the models so the implementations can return them without importing the
// database package itself.
var (
	// ErrNotFound means no share matches the lookup.
	ErrNotFound = errors.New("share not found")

	// ErrCodeTaken means another live share already holds the code. The
	// caller is expected to retry the insert with a fresh code.
	ErrCodeTaken = errors.New("code already in use by a live share")

	// ErrConflict means a conditional update lost its race: the redemption
	// count moved between read and write. The caller must re-read before
	// retrying.
	ErrConflict = errors.New("redemption count changed concurrently")
)
