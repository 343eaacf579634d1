package dumpdir

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestTryCreateLockAcquiresFreeLock(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fd := openDirFd(t, dir)

	outcome, err := tryCreateLock(fd, os.Getpid())
	require.NoError(t, err)
	require.Equal(t, lockAcquired, outcome)

	target, err := os.Readlink(dir + "/" + lockFileName)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), target)
}

func TestTryCreateLockBusyAgainstSelf(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fd := openDirFd(t, dir)

	outcome, err := tryCreateLock(fd, os.Getpid())
	require.NoError(t, err)
	require.Equal(t, lockAcquired, outcome)

	outcome, err = tryCreateLock(fd, os.Getpid())
	require.NoError(t, err)
	require.Equal(t, lockBusy, outcome)
}

func TestTryCreateLockReclaimsStale(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.Symlink("999999999", dir+"/"+lockFileName))
	fd := openDirFd(t, dir)

	outcome, err := tryCreateLock(fd, os.Getpid())
	require.NoError(t, err)
	require.Equal(t, lockAcquired, outcome)
}

func TestUnlockIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	h := &Handle{dirname: dir, dirFd: openDirFd(t, dir)}

	require.NoError(t, h.unlock())

	_, err := tryCreateLock(h.dirFd, os.Getpid())
	require.NoError(t, err)
	h.locked = true

	require.NoError(t, h.unlock())
	_, err = unix.Readlinkat(h.dirFd, lockFileName, make([]byte, 8))
	require.ErrorIs(t, err, unix.ENOENT)
}

// TestConcurrentOpenMutualExclusion races two goroutines calling Open
// against the same problem directory and asserts the lock actually
// excludes them: at most one holds it at a time, and the second only
// succeeds once the first has closed. OpenPollInterval is lowered for
// the duration of the test so the losing goroutine's busy-wait doesn't
// make this test slow.
func TestConcurrentOpenMutualExclusion(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pd-race")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, timeFileName), []byte("1700000000"), 0o644))

	prev := OpenPollInterval
	OpenPollInterval = time.Millisecond
	defer func() { OpenPollInterval = prev }()

	var holders int32
	var maxHolders int32
	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := Open(dir, 0)
			if err != nil {
				errs[i] = err
				return
			}
			n := atomic.AddInt32(&holders, 1)
			for {
				cur := atomic.LoadInt32(&maxHolders)
				if n <= cur || atomic.CompareAndSwapInt32(&maxHolders, cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&holders, -1)
			errs[i] = h.Close()
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), maxHolders, "both goroutines held the lock concurrently")
}
