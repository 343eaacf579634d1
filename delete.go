package dumpdir

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Delete removes the directory and all its items. The handle must hold the
// lock. On success the directory no longer exists on disk; the handle is
// left closed either way.
func (h *Handle) Delete() error {
	h.requireLocked("Delete")
	defer h.Close()

	if err := deleteTree(h.dirFd, true); err != nil {
		return fmt.Errorf("delete contents of %q: %w", h.dirname, err)
	}
	h.locked = false

	var lastErr error
	for i := 0; i < rmdirMaxRetries; i++ {
		err := unix.Rmdir(h.dirname)
		if err == nil || errors.Is(err, unix.ENOENT) {
			return nil
		}
		lastErr = err
		// A concurrent locker may have recreated .lock between our
		// unlink and this rmdir; it will itself observe a missing
		// "time" and back off, so we only need to outlast its retries.
		time.Sleep(rmdirRetryInterval)
	}
	return fmt.Errorf("%w: %q: %v", ErrDeleteFailed, h.dirname, lastErr)
}

// deleteTree removes every entry reachable from dirFd. When skipLock is
// set, ".lock" is left for last and unlinked only after every other entry
// is gone. It duplicates dirFd because directory iteration consumes
// the descriptor's position, and the caller still needs dirFd afterward.
func deleteTree(dirFd int, skipLock bool) error {
	dupFd, err := unix.Dup(dirFd)
	if err != nil {
		return fmt.Errorf("dup: %w", err)
	}

	f := os.NewFile(uintptr(dupFd), "")
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENOTDIR) {
			// The directory vanished under us — a concurrent actor
			// already removed it. That satisfies deleteTree's purpose.
			return nil
		}
		return fmt.Errorf("readdir: %w", err)
	}

	lockPending := false
	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}
		if skipLock && name == lockFileName {
			lockPending = true
			continue
		}

		if err := unlinkEntry(dirFd, name); err != nil {
			return err
		}
	}

	if lockPending {
		if err := unix.Unlinkat(dirFd, lockFileName, 0); err != nil && !errors.Is(err, unix.ENOENT) {
			return fmt.Errorf("unlink %s: %w", lockFileName, err)
		}
	}
	return nil
}

// unlinkEntry removes a single entry relative to dirFd, recursing into it
// first if it turns out to be a directory.
func unlinkEntry(dirFd int, name string) error {
	err := unix.Unlinkat(dirFd, name, 0)
	if err == nil || errors.Is(err, unix.ENOENT) {
		return nil
	}
	if !errors.Is(err, unix.EISDIR) {
		return fmt.Errorf("unlink %q: %w", name, err)
	}

	subFd, operr := unix.Openat(dirFd, name, unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if operr != nil {
		if errors.Is(operr, unix.ENOENT) || errors.Is(operr, unix.ENOTDIR) {
			return nil
		}
		return fmt.Errorf("open %q: %w", name, operr)
	}
	if err := deleteTree(subFd, false); err != nil {
		unix.Close(subFd)
		return err
	}
	unix.Close(subFd)

	if err := unix.Unlinkat(dirFd, name, unix.AT_REMOVEDIR); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("rmdir %q: %w", name, err)
	}
	return nil
}
