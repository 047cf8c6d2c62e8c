package resolve

import (
	"testing"

	"github.com/rulerbuild/ruler/internal/cache"
	"github.com/rulerbuild/ruler/internal/state"
	"github.com/rulerbuild/ruler/internal/system"
	"github.com/rulerbuild/ruler/internal/ticket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tick(s string) ticket.Ticket {
	f := ticket.NewFactory()
	f.AbsorbString(s)
	return f.Result()
}

func newCache(t *testing.T, sys *system.Fake) *cache.Cache {
	t.Helper()
	c, err := cache.Open(sys, "cache")
	require.NoError(t, err)
	return c
}

func TestTargetAlreadyCorrectWhenMtimeMatches(t *testing.T) {
	sys := system.NewFake()
	sys.WriteFile("out.txt", "content")
	mtime, err := sys.ModTime("out.txt")
	require.NoError(t, err)

	remembered := state.FileState{Ticket: tick("stale-ticket-reused-via-mtime"), MtimeMicro: mtime.UnixMicro()}
	c := newCache(t, sys)

	// the blob baseline and the remembered baseline coincide here, which
	// is the common case right after a build recorded both.
	result, err := Target(sys, c, nil, "out.txt", remembered, remembered, true)
	require.NoError(t, err)
	assert.Equal(t, AlreadyCorrect, result.Outcome)
	assert.True(t, result.State.Ticket.Equal(remembered.Ticket))
}

func TestTargetNeedsRebuildWhenNoRemembranceAndNoSource(t *testing.T) {
	sys := system.NewFake()
	c := newCache(t, sys)

	result, err := Target(sys, c, nil, "missing.txt", state.FileState{}, state.FileState{}, false)
	require.NoError(t, err)
	assert.Equal(t, NeedsRebuild, result.Outcome)
}

func TestTargetRecoversFromCache(t *testing.T) {
	sys := system.NewFake()
	c := newCache(t, sys)

	sys.WriteFile("staged.txt", "expected content")
	contentTicket, err := c.BackUpFile("staged.txt")
	require.NoError(t, err)

	remembered := state.FileState{Ticket: contentTicket, MtimeMicro: 999}
	result, err := Target(sys, c, nil, "out.txt", state.Empty(), remembered, true)
	require.NoError(t, err)
	assert.Equal(t, Recovered, result.Outcome)
	assert.True(t, sys.IsFile("out.txt"))
}

func TestTargetBacksUpChangedFileBeforeRebuild(t *testing.T) {
	sys := system.NewFake()
	c := newCache(t, sys)

	sys.WriteFile("out.txt", "new unrecognized content")
	remembered := state.FileState{Ticket: tick("something else entirely"), MtimeMicro: 1}

	result, err := Target(sys, c, nil, "out.txt", state.Empty(), remembered, true)
	require.NoError(t, err)
	assert.Equal(t, NeedsRebuild, result.Outcome)

	// the changed file's content must have been preserved in the cache
	// under its own ticket before resolution gave up on recovery.
	entries, listErr := c.List(0, 10)
	require.NoError(t, listErr)
	assert.Len(t, entries, 1)
}

func TestTargetBacksUpFileBeforeRebuildWithNoHistory(t *testing.T) {
	sys := system.NewFake()
	c := newCache(t, sys)

	sys.WriteFile("out.txt", "a file left over from an earlier build")

	// no rule history exists for this sources-ticket, but the blob
	// still carries the target's last-known state, and a rebuild with
	// no remembered baseline to compare against must still preserve
	// the file before it gets overwritten.
	result, err := Target(sys, c, nil, "out.txt", state.Empty(), state.FileState{}, false)
	require.NoError(t, err)
	assert.Equal(t, NeedsRebuild, result.Outcome)

	entries, listErr := c.List(0, 10)
	require.NoError(t, listErr)
	assert.Len(t, entries, 1)
}

func TestTargetDownloadsWhenCacheMisses(t *testing.T) {
	sys := system.NewFake()
	c := newCache(t, sys)

	wantTicket := tick("downloaded content")
	downloader := &recordingDownloader{sys: sys, ticket: wantTicket, content: "downloaded content"}

	remembered := state.FileState{Ticket: wantTicket, MtimeMicro: 5}
	result, err := Target(sys, c, downloader, "out.txt", state.Empty(), remembered, true)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, result.Outcome)
	assert.True(t, sys.IsFile("out.txt"))
}

type recordingDownloader struct {
	sys     *system.Fake
	ticket  ticket.Ticket
	content string
}

func (d *recordingDownloader) RestoreFile(t ticket.Ticket, destPath string) (bool, error) {
	if !t.Equal(d.ticket) {
		return false, nil
	}
	d.sys.WriteFile(destPath, d.content)
	return true, nil
}
