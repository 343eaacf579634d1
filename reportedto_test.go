package dumpdir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddReportedToIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir() + "/pd"

	h, err := Create(dir, -1, 0o640, 0)
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.AddReportedTo("Bugzilla: URL=http://x/1"))
	require.NoError(t, h.AddReportedTo("Bugzilla: URL=http://x/1"))

	content, ok, err := h.LoadText(reportedToItemName, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Bugzilla: URL=http://x/1\n", content)
}

func TestFindInReportedTo(t *testing.T) {
	t.Parallel()
	dir := t.TempDir() + "/pd"

	h, err := Create(dir, -1, 0o640, 0)
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.AddReportedTo("Bugzilla: URL=http://x/1"))
	require.NoError(t, h.AddReportedTo("Bugzilla: URL=http://x/2 MSG=all good here"))

	entry, ok, err := h.FindInReportedTo("Bugzilla: ")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "http://x/2", entry.URL)
	require.Equal(t, "all good here", entry.Msg)
}

func TestFindInReportedToNoMatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir() + "/pd"

	h, err := Create(dir, -1, 0o640, 0)
	require.NoError(t, err)
	defer h.Close()

	_, ok, err := h.FindInReportedTo("Bugzilla: ")
	require.NoError(t, err)
	require.False(t, ok)
}
