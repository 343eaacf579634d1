package dumpdir

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

// lockOutcome is the result of a single attempt to create the ".lock"
// symlink.
type lockOutcome int

const (
	lockAcquired lockOutcome = iota
	lockBusy
)

// tryCreateLock attempts to atomically create ".lock" relative to dirFd
// with a target of the decimal pid. It loops internally to absorb benign
// races (a vanished or stale competing lock) without involving the
// caller's retry policy; it returns to the caller only on success, on
// contention from a live peer (including a ".lock" that already names pid),
// or on error.
func tryCreateLock(dirFd, pid int) (lockOutcome, error) {
	pidStr := strconv.Itoa(pid)

	for {
		err := unix.Symlinkat(pidStr, dirFd, lockFileName)
		if err == nil {
			return lockAcquired, nil
		}
		if !errors.Is(err, unix.EEXIST) {
			if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENOTDIR) || errors.Is(err, unix.EACCES) {
				return lockBusy, err
			}
			logError("creating lock symlink failed", "error", err)
			return lockBusy, err
		}

		buf := make([]byte, lockSymlinkBufSize)
		n, rerr := unix.Readlinkat(dirFd, lockFileName, buf)
		if rerr != nil {
			if errors.Is(rerr, unix.ENOENT) {
				// Someone removed the lock between our symlink and this
				// readlink. Not contention, just a race with a fellow
				// locker; retry without counting it as a failure.
				time.Sleep(symlinkRetryInterval)
				continue
			}
			return lockBusy, rerr
		}
		target := string(buf[:n])

		if target == pidStr {
			// Another handle in this process holds it. Report busy so
			// the caller waits for that handle to release it.
			return lockBusy, nil
		}

		if targetPID, convErr := strconv.Atoi(target); convErr == nil {
			if alive, _ := process.PidExists(int32(targetPID)); alive {
				return lockBusy, nil
			}
		}

		// The lock is stale: its target is not a live PID (or not a PID
		// at all — corruption, or a leftover from an unrelated tool).
		// Reclaim it and retry from the top.
		if uerr := unix.Unlinkat(dirFd, lockFileName, 0); uerr != nil && !errors.Is(uerr, unix.ENOENT) {
			return lockBusy, uerr
		}
	}
}

// lock repeatedly attempts to acquire the directory lock, sleeping between
// busy responses at the interval appropriate to intent. When intent is
// intentOpen, a successful acquisition is only final once the "time" item
// is confirmed present and parseable; otherwise the lock is released and
// retried, bounded by noTimeFileMaxRetries.
func (h *Handle) lock(intent lockIntent, flags Flag) error {
	interval := createLockInterval
	if intent == intentOpen {
		interval = OpenPollInterval
	}

	noTimeRetries := 0
	for {
		outcome, err := tryCreateLock(h.dirFd, os.Getpid())
		if err != nil {
			return err
		}
		if outcome == lockBusy {
			time.Sleep(interval)
			continue
		}

		h.locked = true
		if intent != intentOpen {
			return nil
		}

		if ts, terr := parseTimeFile(h.dirFd); terr == nil {
			h.timestamp = ts
			return nil
		}

		// We raced with a creator who hasn't written "time" yet, or with
		// a deleter who has removed it but not yet rmdir'd. Back off and
		// let them finish.
		_ = unix.Unlinkat(h.dirFd, lockFileName, 0)
		h.locked = false
		noTimeRetries++
		if flags&FlagDontWaitForLock != 0 || noTimeRetries >= noTimeFileMaxRetries {
			return ErrNotProblemDir
		}
		time.Sleep(noTimeFileRetryInterval)
	}
}

// unlock releases the lock if held. It is idempotent.
func (h *Handle) unlock() error {
	if !h.locked {
		return nil
	}
	if err := unix.Unlinkat(h.dirFd, lockFileName, 0); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("unlink %s: %w", lockFileName, err)
	}
	h.locked = false
	return nil
}
