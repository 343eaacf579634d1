package dumpdir

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestCreateThenRead(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "pd1")

	h, err := Create(dir, -1, 0o640, 0)
	require.NoError(t, err)
	require.True(t, h.IsLocked())

	require.NoError(t, h.SaveText("time", "1700000000"))
	require.NoError(t, h.SaveText("analyzer", "ccpp"))
	require.NoError(t, h.Close())

	h2, err := Open(dir, 0)
	require.NoError(t, err)
	defer h2.Close()

	content, ok, err := h2.LoadText("analyzer", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ccpp", content)

	content, ok, err = h2.LoadText("time", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1700000000", content)
}

func TestOpenNonExistentPath(t *testing.T) {
	t.Parallel()
	_, err := Open(filepath.Join(t.TempDir(), "nope"), FlagFailQuietlyOnMissing)
	require.ErrorIs(t, err, ErrDoesNotExist)
}

func TestOpenPlainDirectoryFailsFast(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.Mkdir(dir, 0o755))

	_, err := Open(dir, FlagDontWaitForLock)
	require.ErrorIs(t, err, ErrNotProblemDir)
}

func TestOpenStaleLockReclaimed(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "pd-stale")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "time"), []byte("1700000000"), 0o644))
	require.NoError(t, os.Symlink("999999999", filepath.Join(dir, ".lock")))

	h, err := Open(dir, 0)
	require.NoError(t, err)
	defer h.Close()
	require.True(t, h.IsLocked())

	target, err := os.Readlink(filepath.Join(dir, ".lock"))
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), target)
}

func TestDeleteRemovesDirectory(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "pd-del")

	h, err := Create(dir, -1, 0o640, 0)
	require.NoError(t, err)
	require.NoError(t, h.SaveText("time", "1700000000"))
	require.NoError(t, h.SaveBinary("blob", []byte{0x01, 0x02, 0x03}))
	require.NoError(t, h.Delete())

	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}

// TestConcurrentCreateSkeletonRace races two goroutines creating the same
// skeleton path simultaneously. mkdir is atomic, so exactly one must win;
// the loser gets an error rather than silently clobbering the winner's
// directory or blocking forever.
func TestConcurrentCreateSkeletonRace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pd-create-race")

	var wg sync.WaitGroup
	handles := make([]*Handle, 2)
	errs := make([]error, 2)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := CreateSkeleton(dir, -1, 0o640, 0)
			handles[i] = h
			errs[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range errs {
		if err == nil {
			successes++
			require.NoError(t, handles[i].SaveText("time", "1700000000"))
			require.NoError(t, handles[i].Close())
		} else {
			require.ErrorIs(t, err, unix.EEXIST)
		}
	}
	require.Equal(t, 1, successes, "exactly one goroutine should win the mkdir race")
}

func TestSanitizeModeAndOwner(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "pd-sanitize")

	h, err := Create(dir, -1, 0o640, 0)
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.SaveText("time", "1700000000"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra"), []byte("x"), 0o777))
	require.NoError(t, h.SanitizeModeAndOwner())

	st, err := os.Stat(filepath.Join(dir, "extra"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o640), st.Mode().Perm())
}
