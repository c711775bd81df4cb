package nvs

import "errors"

// Errors surfaced by the public operations. Torn entries encountered
// while scanning are never surfaced: the log format tolerates holes
// from interrupted writes, so they are skipped where they are found.
var (
	// ErrNotReady means no device is bound to the filesystem.
	ErrNotReady = errors.New("nvs: filesystem not ready")

	// ErrInvalidArg covers oversized records, reserved id misuse and
	// bad geometry.
	ErrInvalidArg = errors.New("nvs: invalid argument")

	// ErrNotFound means the id, or the requested history depth for it,
	// is absent.
	ErrNotFound = errors.New("nvs: id not found")

	// ErrNoSpace means no sector can accept the pending write even
	// after compacting the whole ring.
	ErrNoSpace = errors.New("nvs: no space left")

	// ErrCorrupt means a structural invariant of the media is violated
	// beyond what mount-time recovery can repair.
	ErrCorrupt = errors.New("nvs: media corrupt")
)
