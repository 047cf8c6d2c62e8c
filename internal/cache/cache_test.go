package cache

import (
	"io"
	"testing"

	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/system"
	"github.com/rulerbuild/ruler/internal/ticket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticketOf(content string) ticket.Ticket {
	f := ticket.NewFactory()
	f.AbsorbString(content)
	return f.Result()
}

func kindOf(t *testing.T, err error) rulererrors.Kind {
	t.Helper()
	e, ok := err.(*rulererrors.Error)
	require.True(t, ok, "expected *errors.Error, got %T (%v)", err, err)
	return e.Kind
}

func TestBackUpThenRestoreFile(t *testing.T) {
	sys := system.NewFake()
	sys.WriteFile("workspace/a.txt", "hello world")

	c, err := Open(sys, "cache")
	require.NoError(t, err)

	ticket, err := c.BackUpFile("workspace/a.txt")
	require.NoError(t, err)
	assert.False(t, sys.IsFile("workspace/a.txt"))

	outcome, err := c.RestoreFile(ticket, "workspace/restored.txt")
	require.NoError(t, err)
	assert.Equal(t, Done, outcome)
	assert.True(t, sys.IsFile("workspace/restored.txt"))

	f, err := sys.Open("workspace/restored.txt")
	require.NoError(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
}

func TestRestoreMissingEntryIsNotThere(t *testing.T) {
	sys := system.NewFake()
	c, err := Open(sys, "cache")
	require.NoError(t, err)

	f := ticketOf("nonexistent content")
	outcome, err := c.RestoreFile(f, "workspace/out.txt")
	require.NoError(t, err)
	assert.Equal(t, NotThere, outcome)
}

func TestOpenMissingEntryIsNotThere(t *testing.T) {
	sys := system.NewFake()
	c, err := Open(sys, "cache")
	require.NoError(t, err)

	_, err = c.Open(ticketOf("nope"))
	require.Error(t, err)
	assert.Equal(t, rulererrors.KindNotThere, kindOf(t, err))
}

func TestOpenCacheDirectoryMissingIsFatal(t *testing.T) {
	sys := system.NewFake()
	c, err := Open(sys, "cache")
	require.NoError(t, err)

	require.NoError(t, sys.RemoveAll("cache/files"))

	_, err = c.Open(ticketOf("anything"))
	require.Error(t, err)
	assert.Equal(t, rulererrors.KindCacheDirectoryMissing, kindOf(t, err))
}

func TestInboxWriterComputesTicketAndRenamesIntoFiles(t *testing.T) {
	sys := system.NewFake()
	c, err := Open(sys, "cache")
	require.NoError(t, err)

	w, err := c.OpenInboxFile()
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed content"))
	require.NoError(t, err)

	resultTicket, err := w.Finish()
	require.NoError(t, err)

	rc, err := c.Open(resultTicket)
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "streamed content", string(content))
}

func TestInboxFilenamesAreDistinct(t *testing.T) {
	sys := system.NewFake()
	c, err := Open(sys, "cache")
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		name := c.randomName()
		assert.Len(t, name, inboxNameLength)
		assert.False(t, seen[name], "duplicate inbox name %q", name)
		seen[name] = true
	}
}

func TestListOrdersEntriesLexicographically(t *testing.T) {
	sys := system.NewFake()
	c, err := Open(sys, "cache")
	require.NoError(t, err)

	sys.WriteFile("workspace/x.txt", "xxx")
	sys.WriteFile("workspace/y.txt", "yyy")
	_, err = c.BackUpFile("workspace/x.txt")
	require.NoError(t, err)
	_, err = c.BackUpFile("workspace/y.txt")
	require.NoError(t, err)

	all, err := c.List(0, 100)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.True(t, all[0] < all[1])
}
