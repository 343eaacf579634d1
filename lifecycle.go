package dumpdir

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// canonicalizePath strips trailing slashes and rejects a last component of
// "." or "..", per the directory-name invariant.
func canonicalizePath(path string) (string, error) {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		trimmed = "/"
	}
	base := filepath.Base(trimmed)
	if base == "." || base == ".." {
		return "", fmt.Errorf("%w: %q ends in . or ..", ErrInvalidName, path)
	}
	return trimmed, nil
}

// Open opens an existing problem directory. The returned handle is locked
// and writable unless FlagOpenReadOnly permitted a read-only fallback, in
// which case IsLocked reports false and write operations panic.
func Open(path string, flags Flag) (*Handle, error) {
	dirname, err := canonicalizePath(path)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Open(dirname, unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return openFailure(dirname, flags, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stat %q: %w", dirname, err)
	}

	h := &Handle{
		dirname:   dirname,
		dirFd:     fd,
		mode:      os.FileMode(st.Mode & 0o666),
		uid:       -1,
		gid:       -1,
		timestamp: -1,
	}

	if err := h.lock(intentOpen, flags); err != nil {
		if errors.Is(err, unix.EACCES) && flags&FlagOpenReadOnly != 0 {
			ro, rerr := h.openReadOnlyFallback(flags)
			if rerr == nil {
				return ro, nil
			}
			// openReadOnlyFallback already closed fd on failure.
			return nil, rerr
		}
		unix.Close(fd)
		if errors.Is(err, ErrNotProblemDir) {
			return nil, fmt.Errorf("%w: %q", ErrNotProblemDir, dirname)
		}
		if !errors.Is(err, unix.EACCES) || flags&FlagFailQuietlyOnPermission == 0 {
			logError("open failed", "path", dirname, "error", err)
		}
		if errors.Is(err, unix.EACCES) {
			return nil, fmt.Errorf("%w: %q: %w", ErrPermissionDenied, dirname, err)
		}
		return nil, err
	}

	if os.Geteuid() == 0 {
		var st2 unix.Stat_t
		if err := unix.Fstat(fd, &st2); err == nil {
			h.uid = int(st2.Uid)
			h.gid = int(st2.Gid)
		}
	}

	return h, nil
}

// openFailure classifies the error from the initial directory open,
// applying the quiet-logging flags and mapping errno families onto the
// package's sentinel errors.
func openFailure(dirname string, flags Flag, err error) (*Handle, error) {
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENOTDIR):
		if flags&FlagFailQuietlyOnMissing == 0 {
			logError("path does not exist", "path", dirname, "error", err)
		}
		return nil, fmt.Errorf("%w: %q", ErrDoesNotExist, dirname)
	case errors.Is(err, unix.EACCES):
		if flags&FlagFailQuietlyOnPermission == 0 {
			logError("permission denied", "path", dirname, "error", err)
		}
		return nil, fmt.Errorf("%w: %q", ErrPermissionDenied, dirname)
	default:
		logError("open failed", "path", dirname, "error", err)
		return nil, fmt.Errorf("open %q: %w", dirname, err)
	}
}

// openReadOnlyFallback is reached when an EACCES on locking leaves a
// readable-but-not-writable directory. It never takes the lock; the
// returned handle permits reads only.
func (h *Handle) openReadOnlyFallback(flags Flag) (*Handle, error) {
	if _, err := parseTimeFile(h.dirFd); err != nil {
		unix.Close(h.dirFd)
		if errors.Is(err, unix.EACCES) {
			return nil, fmt.Errorf("%w: %q: %w", ErrPermissionDenied, h.dirname, err)
		}
		return nil, fmt.Errorf("%w: %q", ErrNotProblemDir, h.dirname)
	}
	return h, nil
}

// CreateSkeleton creates a brand new problem directory, locks it, and
// applies the directory mode. uid, when not -1, is used to resolve the
// item ownership recorded on the handle for later writes; it does not by
// itself chown the directory (see ResetOwnership).
func CreateSkeleton(path string, uid int, mode os.FileMode, flags Flag) (*Handle, error) {
	dirname, err := canonicalizePath(path)
	if err != nil {
		return nil, err
	}

	dirMode := mode | ((mode & 0o444) >> 2)

	mkdirErr := unix.Mkdir(dirname, uint32(dirMode))
	if mkdirErr != nil && errors.Is(mkdirErr, unix.ENOENT) && flags&FlagCreateParents != 0 {
		if err := os.MkdirAll(filepath.Dir(dirname), dirMode|0o100); err != nil {
			return nil, fmt.Errorf("create parents of %q: %w", dirname, err)
		}
		mkdirErr = unix.Mkdir(dirname, uint32(dirMode))
	}
	if mkdirErr != nil {
		logError("mkdir failed", "path", dirname, "error", mkdirErr)
		return nil, fmt.Errorf("mkdir %q: %w", dirname, mkdirErr)
	}

	fd, err := unix.Open(dirname, unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		_ = unix.Rmdir(dirname)
		return nil, fmt.Errorf("open %q: %w", dirname, err)
	}

	h := &Handle{
		dirname:   dirname,
		dirFd:     fd,
		mode:      mode & 0o666,
		uid:       -1,
		gid:       -1,
		timestamp: -1,
	}

	if err := h.lock(intentCreate, flags); err != nil {
		unix.Close(fd)
		_ = unix.Rmdir(dirname)
		return nil, err
	}

	if err := unix.Fchmod(fd, uint32(dirMode)); err != nil {
		logWarn("fchmod of new directory failed", "path", dirname, "error", err)
	}

	if uid != -1 {
		h.uid = resolveDDUID()
		h.gid = resolveTargetGID(uid)
	}

	return h, nil
}

// resolveDDUID looks up the system "abrt" user and returns its uid, falling
// back to 0 (root) with a warning if the lookup fails.
func resolveDDUID() int {
	u, err := user.Lookup("abrt")
	if err != nil {
		logWarn("user \"abrt\" not found, falling back to uid 0", "error", err)
		return 0
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		logWarn("unparseable uid for \"abrt\", falling back to uid 0", "error", err)
		return 0
	}
	return uid
}

// resolveTargetGID looks up the primary group of uid, falling back to 0
// with a warning if the lookup fails.
func resolveTargetGID(uid int) int {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		logWarn("uid lookup failed, falling back to gid 0", "uid", uid, "error", err)
		return 0
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		logWarn("unparseable gid, falling back to gid 0", "uid", uid, "error", err)
		return 0
	}
	return gid
}

// ResetOwnership chowns the directory itself to the uid:gid recorded on the
// handle by CreateSkeleton.
func (h *Handle) ResetOwnership() error {
	if h.uid == -1 {
		return nil
	}
	if err := unix.Fchown(h.dirFd, h.uid, h.gid); err != nil {
		logError("fchown of directory failed", "path", h.dirname, "error", err)
		return fmt.Errorf("fchown %q: %w", h.dirname, err)
	}
	return nil
}

// Create is CreateSkeleton with parent creation enabled, followed
// immediately by ResetOwnership.
func Create(path string, uid int, mode os.FileMode, flags Flag) (*Handle, error) {
	h, err := CreateSkeleton(path, uid, mode, flags|FlagCreateParents)
	if err != nil {
		return nil, err
	}
	if err := h.ResetOwnership(); err != nil {
		// Ownership failure is logged but not fatal to creation: the
		// directory is still usable, just under the wrong owner.
		_ = err
	}
	return h, nil
}

func (h *Handle) hasItem(name string) bool {
	var st unix.Stat_t
	err := unix.Fstatat(h.dirFd, name, &st, unix.AT_SYMLINK_NOFOLLOW)
	return err == nil
}

// CreateBasicFiles populates the well-known items that describe the
// environment the crash was captured in: timestamps, the reporting uid,
// kernel/arch/hostname, and the host's OS release string. chrootPath, when
// non-empty, additionally captures the OS release as seen from inside that
// root.
func (h *Handle) CreateBasicFiles(uid int, chrootPath string) error {
	h.requireLocked("CreateBasicFiles")

	if !h.hasItem(timeFileName) {
		now := strconv.FormatInt(time.Now().Unix(), 10)
		if err := h.SaveText(timeFileName, now); err != nil {
			return fmt.Errorf("write time: %w", err)
		}
		if err := h.SaveText("last_occurrence", now); err != nil {
			return fmt.Errorf("write last_occurrence: %w", err)
		}
	}

	if uid != -1 {
		if err := h.SaveText("uid", strconv.Itoa(uid)); err != nil {
			return fmt.Errorf("write uid: %w", err)
		}
	}

	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		logWarn("uname failed", "error", err)
	} else {
		if err := h.SaveText("kernel", unameField(uts.Release)); err != nil {
			return fmt.Errorf("write kernel: %w", err)
		}
		if err := h.SaveText("architecture", unameField(uts.Machine)); err != nil {
			return fmt.Errorf("write architecture: %w", err)
		}
		if err := h.SaveText("hostname", unameField(uts.Nodename)); err != nil {
			return fmt.Errorf("write hostname: %w", err)
		}
	}

	if !h.hasItem("os_release") {
		if release, ok := loadSystemRelease(""); ok {
			if err := h.SaveText("os_release", release); err != nil {
				return fmt.Errorf("write os_release: %w", err)
			}
		}
	}

	if chrootPath != "" {
		if release, ok := loadSystemRelease(chrootPath); ok {
			if err := h.SaveText("os_release_in_rootdir", release); err != nil {
				return fmt.Errorf("write os_release_in_rootdir: %w", err)
			}
		}
	}

	return nil
}

// unameField trims the NUL padding from a fixed-size Utsname field.
func unameField(field [65]byte) string {
	if i := bytes.IndexByte(field[:], 0); i >= 0 {
		return string(field[:i])
	}
	return string(field[:])
}

// loadSystemRelease reads /etc/system-release, falling back to
// /etc/redhat-release, optionally rooted at chrootPath.
func loadSystemRelease(chrootPath string) (string, bool) {
	for _, candidate := range []string{"/etc/system-release", "/etc/redhat-release"} {
		data, err := os.ReadFile(filepath.Join(chrootPath, candidate))
		if err == nil {
			return sanitizeText(data), true
		}
	}
	return "", false
}

// Close unlocks (if held), closes the directory fd, and closes any open
// iteration cursor. Close is idempotent and safe to call multiple times.
func (h *Handle) Close() error {
	if h.closed() {
		return nil
	}

	if h.cursor != nil {
		_ = h.CloseIteration()
	}

	var unlockErr error
	if h.locked {
		unlockErr = h.unlock()
	}

	closeErr := unix.Close(h.dirFd)
	h.dirFd = -1

	if unlockErr != nil {
		return unlockErr
	}
	if closeErr != nil {
		return fmt.Errorf("close %q: %w", h.dirname, closeErr)
	}
	return nil
}
