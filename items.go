package dumpdir

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// legacyItemAliases maps item names that predate a rename to their current
// name, so old reporter plugins and old problem directories keep working.
var legacyItemAliases = map[string]string{
	"release": "os_release",
}

// SaveText writes data as a text item. The handle must hold the lock.
func (h *Handle) SaveText(name, data string) error {
	return h.writeItem(name, []byte(data))
}

// SaveBinary writes data as a binary item. The handle must hold the lock.
func (h *Handle) SaveBinary(name string, data []byte) error {
	return h.writeItem(name, data)
}

// writeItem implements the common save path: validate the name, remove any
// existing file (never a directory), create exclusively without following
// symlinks, chown/chmod, then write the full payload.
func (h *Handle) writeItem(name string, data []byte) error {
	h.requireLocked("save " + name)

	if err := validItemName(name); err != nil {
		// A write-path naming violation is a caller bug, not a runtime
		// condition: the names used for item writes are always
		// compile-time constants or otherwise fully controlled by the
		// program, never untrusted input.
		programmingErrorf("%v", err)
	}

	if err := unix.Unlinkat(h.dirFd, name, 0); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("unlink %q: %w", name, err)
	}

	fd, err := unix.Openat(h.dirFd, name, unix.O_WRONLY|unix.O_EXCL|unix.O_CREAT|unix.O_NOFOLLOW|unix.O_CLOEXEC, uint32(h.mode))
	if err != nil {
		return fmt.Errorf("create %q: %w", name, err)
	}

	if h.uid != -1 {
		if err := unix.Fchown(fd, h.uid, h.gid); err != nil {
			logWarn("fchown of item failed", "item", name, "error", err)
		}
	}
	// fchmod again: O_CREAT's mode argument is subject to umask, and we
	// need the exact bits the handle was configured with.
	if err := unix.Fchmod(fd, uint32(h.mode)); err != nil {
		logWarn("fchmod of item failed", "item", name, "error", err)
	}

	f := os.NewFile(uintptr(fd), name)
	defer f.Close()

	written := 0
	for written < len(data) {
		n, werr := f.Write(data[written:])
		written += n
		if werr != nil {
			return fmt.Errorf("write %q: %w", name, werr)
		}
	}
	if written != len(data) {
		return fmt.Errorf("write %q: %w: partial write", name, ErrCorruptItem)
	}
	return nil
}

// LoadText reads a text item and sanitizes its content. Without
// FlagReturnNullOnFailure, any failure (missing, invalid name, corrupt)
// yields ("", nil); with it, the failure is returned as an error and ok is
// false.
func (h *Handle) LoadText(name string, flags Flag) (content string, ok bool, err error) {
	if alias, known := legacyItemAliases[name]; known {
		name = alias
	}

	if verr := validItemName(name); verr != nil {
		return h.loadFailure(verr, flags)
	}

	openFlags := unix.O_RDONLY
	var fd int
	var oerr error
	if flags&FlagFollowSymlinks != 0 {
		fd, oerr = unix.Openat(h.dirFd, name, openFlags|unix.O_CLOEXEC, 0)
	} else {
		fd, oerr = secureOpenAt(h.dirFd, name, openFlags, 0)
	}
	if oerr != nil {
		if errors.Is(oerr, unix.ENOENT) && flags&FlagFailQuietlyOnMissing == 0 {
			logError("item not found", "item", name, "error", oerr)
		} else if errors.Is(oerr, unix.EACCES) && flags&FlagFailQuietlyOnPermission == 0 {
			logError("permission denied reading item", "item", name, "error", oerr)
		}
		wrapped := oerr
		if errors.Is(oerr, unix.ENOENT) {
			wrapped = fmt.Errorf("%w: %q", ErrDoesNotExist, name)
		}
		return h.loadFailure(wrapped, flags)
	}

	f := os.NewFile(uintptr(fd), name)
	defer f.Close()

	data, rerr := io.ReadAll(bufio.NewReader(f))
	if rerr != nil {
		return h.loadFailure(fmt.Errorf("read %q: %w", name, rerr), flags)
	}

	return sanitizeText(data), true, nil
}

func (h *Handle) loadFailure(err error, flags Flag) (string, bool, error) {
	if flags&FlagReturnNullOnFailure != 0 {
		return "", false, err
	}
	return "", false, nil
}

// sanitizeText applies the item-read sanitization pass: embedded NUL
// becomes a space, other control bytes (besides \t, \r, \n) are dropped,
// and the trailing-newline heuristic keeps single-line items ergonomic
// (LoadText("x") after SaveText("x", "foo") yields "foo", not "foo\n")
// while still newline-terminating every line of a multi-line item.
func sanitizeText(data []byte) string {
	out := make([]byte, 0, len(data))
	newlines := 0
	for _, b := range data {
		switch {
		case b == 0:
			out = append(out, ' ')
		case b == '\n':
			newlines++
			out = append(out, b)
		case b == '\t' || b == '\r' || b >= 0x20:
			out = append(out, b)
		// else: drop other control bytes
		}
	}

	endsInNewline := len(out) > 0 && out[len(out)-1] == '\n'
	hasTrailingContent := len(out) > 0 && !endsInNewline
	lines := newlines
	if hasTrailingContent {
		lines++
	}

	switch {
	case endsInNewline && lines == 1:
		return string(out[:len(out)-1])
	case !endsInNewline && lines > 1:
		return string(append(out, '\n'))
	default:
		return string(out)
	}
}
