// Package bfferr defines the sentinel error kinds bff's components report,
// matching the error-handling design in spec §7.
package bfferr

import "errors"

// Sentinel error kinds. Components wrap these with fmt.Errorf("...: %w", ...)
// so callers can classify failures with errors.Is while still getting
// context in the message.
var (
	// ErrInvalidFile marks a bloom filter file with a bad magic or version.
	// Fatal at startup.
	ErrInvalidFile = errors.New("invalid file")

	// ErrIO marks a transient I/O failure, retried with backoff up to a cap.
	ErrIO = errors.New("io error")

	// ErrParse marks a malformed JSON line. Fails the current task.
	ErrParse = errors.New("parse error")

	// ErrContention marks a lock that was not acquired within its deadline.
	ErrContention = errors.New("lock contention")

	// ErrTaskAbsent marks an Acquire that found no assignable task within its
	// timeout. Tasks may still be in flight; callers check AllFinished to
	// tell that apart from a queue with no work left.
	ErrTaskAbsent = errors.New("no task available")
)
