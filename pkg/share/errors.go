package share

import "errors"

// Terminal outcomes of the upload and redemption paths. The API layer maps
// these to status codes; anything else coming out of the service is a
// transient store failure and surfaces as a generic internal error.
var (
	ErrNotFound     = errors.New("no file matches that code")
	ErrExpired      = errors.New("file has expired")
	ErrLimitReached = errors.New("download limit reached")

	ErrNoFile          = errors.New("no file uploaded")
	ErrTooLarge        = errors.New("file exceeds the maximum upload size")
	ErrInvalidExpiry   = errors.New("invalid expiry time")
	ErrInvalidLimit    = errors.New("invalid download limit")
	ErrMalformedUpload = errors.New("malformed upload request")

	// ErrCodeSpaceExhausted means repeated draws from the code space all
	// collided with live shares. With 900k codes this only happens when
	// the deployment has far outgrown the 6-digit alphabet.
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique share code")
)
