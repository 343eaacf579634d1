package dumpdir

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// itemCursor holds the state of an in-progress directory iteration: a
// dup'd fd wrapped as an *os.File so we get buffered Readdirnames, plus the
// remaining names from the last batch read.
type itemCursor struct {
	f       *os.File
	pending []string
}

// initNextFile begins (or restarts) iteration over the handle's items.
func (h *Handle) initNextFile() error {
	if h.cursor != nil {
		_ = h.CloseIteration()
	}
	dupFd, err := unix.Dup(h.dirFd)
	if err != nil {
		return fmt.Errorf("dup: %w", err)
	}
	h.cursor = &itemCursor{f: os.NewFile(uintptr(dupFd), h.dirname)}
	return nil
}

// NextItem advances to the next regular-file item, skipping "." and ".."
// and any non-regular entries (subdirectories, the ".lock" symlink). It
// returns ("", false, nil) at the end of iteration, closing the cursor.
func (h *Handle) NextItem() (name string, ok bool, err error) {
	if h.cursor == nil {
		if err := h.initNextFile(); err != nil {
			return "", false, err
		}
	}

	for {
		if len(h.cursor.pending) == 0 {
			names, rerr := h.cursor.f.Readdirnames(64)
			if rerr != nil {
				_ = h.CloseIteration()
				return "", false, nil
			}
			h.cursor.pending = names
		}

		name := h.cursor.pending[0]
		h.cursor.pending = h.cursor.pending[1:]

		if name == "." || name == ".." || name == lockFileName {
			continue
		}

		var st unix.Stat_t
		if err := unix.Fstatat(h.dirFd, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			continue
		}
		if st.Mode&unix.S_IFMT != unix.S_IFREG {
			continue
		}
		return name, true, nil
	}
}

// CloseIteration ends an in-progress iteration early. It is safe to call
// when no iteration is open.
func (h *Handle) CloseIteration() error {
	if h.cursor == nil {
		return nil
	}
	err := h.cursor.f.Close()
	h.cursor = nil
	return err
}

// SanitizeModeAndOwner reapplies the handle's configured mode and
// uid:gid to every regular-file item. It is used after operations that
// might have created items under the wrong identity, such as a child
// process redirecting its output into the directory. Items it cannot open
// securely (see secureOpenAt) are skipped rather than treated as a hard
// failure: a single adversarial or corrupt item should not abort sanitizing
// the rest.
func (h *Handle) SanitizeModeAndOwner() error {
	h.requireLocked("SanitizeModeAndOwner")

	if err := h.initNextFile(); err != nil {
		return err
	}
	defer h.CloseIteration()

	for {
		name, ok, err := h.NextItem()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		fd, err := secureOpenAt(h.dirFd, name, unix.O_RDONLY, 0)
		if err != nil {
			logWarn("skipping item during sanitize", "item", name, "error", err)
			continue
		}

		if h.uid != -1 {
			if err := unix.Fchown(fd, h.uid, h.gid); err != nil {
				logWarn("fchown during sanitize failed", "item", name, "error", err)
			}
		}
		if err := unix.Fchmod(fd, uint32(h.mode)); err != nil {
			logWarn("fchmod during sanitize failed", "item", name, "error", err)
		}
		unix.Close(fd)
	}
}
