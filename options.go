package dumpdir

// Flag is a bit mask accepted by Open, CreateSkeleton, Create, and LoadText
// to tune logging verbosity and retry behavior.
type Flag uint32

const (
	// FlagFailQuietlyOnMissing suppresses the error log when the target
	// does not exist.
	FlagFailQuietlyOnMissing Flag = 1 << iota

	// FlagFailQuietlyOnPermission suppresses the error log on a permission
	// failure.
	FlagFailQuietlyOnPermission

	// FlagOpenReadOnly allows Open to return a read-only, unlocked handle
	// when the directory is readable but not writable.
	FlagOpenReadOnly

	// FlagCreateParents makes CreateSkeleton create intermediate
	// directories.
	FlagCreateParents

	// FlagDontWaitForLock makes Open fail immediately with
	// ErrNotProblemDir instead of retrying when "time" is missing, rather
	// than retrying up to noTimeFileMaxRetries times.
	FlagDontWaitForLock

	// FlagReturnNullOnFailure makes LoadText distinguish an absent or
	// invalid item (returned as an error) from legitimately empty content
	// (returned as ""). Without this flag, any load failure yields "" and
	// no error.
	FlagReturnNullOnFailure

	// FlagFollowSymlinks makes LoadText open the item without O_NOFOLLOW
	// and without the regular-file and single-link checks of secureOpenAt,
	// so a symlinked item is followed. Without it, LoadText refuses
	// symlinks.
	FlagFollowSymlinks
)

// lockIntent distinguishes why a handle is locking: a clearer replacement
// for overloading the retry-sleep value to signal caller intent, per the
// spec's own design note. Each intent still carries its own sleep interval
// (createLockInterval, or OpenPollInterval for intentOpen; see const.go);
// the intent only selects which interval applies
// and whether the "time file must already exist" check runs afterward.
type lockIntent int

const (
	// intentCreate is used by CreateSkeleton: the directory was just
	// created by this process, so any competing locker is unexpected and
	// we poll tightly. The time-file existence check does not apply — the
	// caller is about to write it.
	intentCreate lockIntent = iota

	// intentOpen is used by Open: the directory is presumed to already be
	// a valid problem directory. After acquiring the lock, Open verifies
	// that "time" exists and parses, backing off and retrying if not.
	intentOpen
)
