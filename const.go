package dumpdir

import "time"

const (
	lockFileName = ".lock"
	timeFileName = "time"

	// symlinkRetryInterval is how long to wait when the lock symlink we
	// just tried to read vanished between the failed create and the
	// readlink — a benign race with whoever removed it, not contention.
	symlinkRetryInterval = 10 * time.Millisecond

	// defaultOpenPollInterval is how long Open waits between polls when a
	// live peer holds the lock, absent an OpenPollInterval override. The
	// peer is presumably doing real work, so this polls slowly.
	defaultOpenPollInterval = 500 * time.Millisecond

	// createLockInterval is how long CreateSkeleton waits between polls
	// when something else has locked the directory we just created. We
	// have priority here (nobody else should know about this directory
	// yet), so this spins tightly.
	createLockInterval = 10 * time.Millisecond

	// noTimeFileRetryInterval and noTimeFileMaxRetries bound how long Open
	// will wait for a concurrent creator to finish writing the "time" item
	// before giving up with ErrNotProblemDir.
	noTimeFileRetryInterval = 50 * time.Millisecond
	noTimeFileMaxRetries    = 10

	// rmdirMaxRetries and rmdirRetryInterval bound how long Delete retries
	// rmdir against a concurrent locker that recreated ".lock" between our
	// unlink and our rmdir attempt.
	rmdirMaxRetries    = 50
	rmdirRetryInterval = 10 * time.Millisecond

	// lockSymlinkBufSize comfortably fits a decimal PID (max int32 is 10
	// digits) plus headroom for a corrupt/oversized target.
	lockSymlinkBufSize = 32

	// maxTimeValue rejects timestamps at or beyond this value, mirroring
	// the spec's "platform time range" check for a 64-bit time_t.
	maxTimeValue = 1<<63 - 2
)

// OpenPollInterval is how long Open waits between polls when a live peer
// holds the lock. It defaults to defaultOpenPollInterval; callers that
// expose lock-contention tuning as configuration (see cmd/dumpdirctl) may
// override it at startup, matching the spec's note that such retry
// constants "may be made injectable."
var OpenPollInterval = time.Duration(defaultOpenPollInterval)
