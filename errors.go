package dumpdir

import (
	"errors"
	"fmt"
)

var (
	// ErrNotProblemDir is returned when a directory exists but never
	// accumulates a parseable "time" file within the retry budget — it is
	// either not a problem directory, not yet initialized, or being deleted.
	ErrNotProblemDir = errors.New("not a problem directory")

	// ErrDoesNotExist is returned when the requested path or item is absent.
	ErrDoesNotExist = errors.New("does not exist")

	// ErrPermissionDenied is returned when the caller lacks access and no
	// read-only fallback was requested or possible.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrCorruptItem is returned when an item fails validation: an
	// unparseable time file, a non-regular file, or a file with more than
	// one hard link.
	ErrCorruptItem = errors.New("corrupt item")

	// ErrInvalidName is returned on read paths when an item name fails the
	// filename-validity rule. On write paths the same condition is a
	// programming error and panics instead (see programmingErrorf).
	ErrInvalidName = errors.New("invalid item name")

	// ErrDeleteFailed is returned when rmdir did not succeed within the
	// retry budget during Delete.
	ErrDeleteFailed = errors.New("failed to remove directory")
)

// programmingErrorf panics with a dumpdir-prefixed message. It is used for
// writing without the lock and for invalid item names on write paths,
// which are caller bugs (kind 7, "fatal: log + abort"); Go's idiom for an
// unrecoverable contract violation is a panic, not a returned error.
func programmingErrorf(format string, args ...any) {
	panic(fmt.Sprintf("dumpdir: "+format, args...))
}
