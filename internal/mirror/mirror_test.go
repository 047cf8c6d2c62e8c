package mirror

import (
	"net/http/httptest"
	"testing"

	"github.com/rulerbuild/ruler/internal/cache"
	"github.com/rulerbuild/ruler/internal/history"
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

func TestServerServesFileByTicket(t *testing.T) {
	sys := system.NewFake()
	c, err := cache.Open(sys, "cache")
	require.NoError(t, err)
	sys.WriteFile("staged.txt", "mirror payload")
	payloadTicket, err := c.BackUpFile("staged.txt")
	require.NoError(t, err)

	h, err := history.Open(sys, "history")
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(c, h, nil).Handler())
	defer srv.Close()

	client := NewClient(sys, []string{srv.URL})
	ok, err := client.RestoreFile(payloadTicket, "workspace/restored.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, sys.IsFile("workspace/restored.txt"))
}

func TestServerReturnsNotFoundForUnknownTicket(t *testing.T) {
	sys := system.NewFake()
	c, err := cache.Open(sys, "cache")
	require.NoError(t, err)
	h, err := history.Open(sys, "history")
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(c, h, nil).Handler())
	defer srv.Close()

	client := NewClient(sys, []string{srv.URL})
	ok, err := client.RestoreFile(tick("nonexistent"), "workspace/out.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServerServesRuleTargetTickets(t *testing.T) {
	sys := system.NewFake()
	c, err := cache.Open(sys, "cache")
	require.NoError(t, err)
	h, err := history.Open(sys, "history")
	require.NoError(t, err)

	ruleTicket := tick("rule")
	sourceTicket := tick("sources")
	targets := state.FileStateVec{{Ticket: tick("target1")}, {Ticket: tick("target2")}}

	rh := history.New()
	require.NoError(t, rh.Insert(sourceTicket, targets))
	require.NoError(t, h.Write(ruleTicket, rh))

	srv := httptest.NewServer(NewServer(c, h, nil).Handler())
	defer srv.Close()

	client := NewClient(sys, []string{srv.URL})
	got, ok := client.GetTargetTickets(ruleTicket, sourceTicket)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.True(t, got[0].Ticket.Equal(tick("target1")))
	assert.True(t, got[1].Ticket.Equal(tick("target2")))
}

func TestClientTriesEachBaseURLInOrder(t *testing.T) {
	sys := system.NewFake()
	c, err := cache.Open(sys, "cache")
	require.NoError(t, err)
	sys.WriteFile("staged.txt", "on the second mirror")
	payloadTicket, err := c.BackUpFile("staged.txt")
	require.NoError(t, err)
	h, err := history.Open(sys, "history")
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(c, h, nil).Handler())
	defer srv.Close()

	client := NewClient(sys, []string{"http://127.0.0.1:0/unreachable", srv.URL})
	ok, err := client.RestoreFile(payloadTicket, "workspace/restored.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUploaderPushesEveryCacheEntry(t *testing.T) {
	sourceSys := system.NewFake()
	sourceCache, err := cache.Open(sourceSys, "cache")
	require.NoError(t, err)
	sourceSys.WriteFile("a.txt", "alpha")
	sourceSys.WriteFile("b.txt", "beta")
	_, err = sourceCache.BackUpFile("a.txt")
	require.NoError(t, err)
	_, err = sourceCache.BackUpFile("b.txt")
	require.NoError(t, err)

	destSys := system.NewFake()
	destCache, err := cache.Open(destSys, "cache")
	require.NoError(t, err)
	destHistory, err := history.Open(destSys, "history")
	require.NoError(t, err)

	destServer := NewServer(destCache, destHistory, nil)
	destServer.AllowUploads = true
	srv := httptest.NewServer(destServer.Handler())
	defer srv.Close()

	uploader := NewUploader(sourceCache, srv.URL)
	pushed, err := uploader.PushAll()
	require.NoError(t, err)
	assert.Equal(t, 2, pushed)

	entries, err := destCache.List(0, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUploadRejectedWhenDisabled(t *testing.T) {
	destSys := system.NewFake()
	destCache, err := cache.Open(destSys, "cache")
	require.NoError(t, err)
	destHistory, err := history.Open(destSys, "history")
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(destCache, destHistory, nil).Handler())
	defer srv.Close()

	sourceSys := system.NewFake()
	sourceCache, err := cache.Open(sourceSys, "cache")
	require.NoError(t, err)
	sourceSys.WriteFile("a.txt", "alpha")
	_, err = sourceCache.BackUpFile("a.txt")
	require.NoError(t, err)

	uploader := NewUploader(sourceCache, srv.URL)
	_, err = uploader.PushAll()
	assert.Error(t, err)
}
