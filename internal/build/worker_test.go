package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulerbuild/ruler/internal/cache"
	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/graph"
	"github.com/rulerbuild/ruler/internal/history"
	"github.com/rulerbuild/ruler/internal/state"
	"github.com/rulerbuild/ruler/internal/system"
	"github.com/rulerbuild/ruler/internal/ticket"
)

func TestLeafWorkerSendsTicketAndReturnsState(t *testing.T) {
	sys := system.NewFake()
	sys.WriteFile("in.txt", "hello")
	want, err := ticket.FromFile(sys, "in.txt")
	require.NoError(t, err)

	out := make(chan Signal, 1)
	res, err := LeafWorker(sys, "in.txt", []chan Signal{out})
	require.NoError(t, err)
	assert.True(t, res.State.Ticket.Equal(want))
	assert.Equal(t, "in.txt", res.Path)

	sig := <-out
	assert.False(t, sig.Canceled)
	assert.True(t, sig.Ticket.Equal(want))
}

func TestLeafWorkerCancelsOnMissingFile(t *testing.T) {
	sys := system.NewFake()
	out := make(chan Signal, 1)

	_, err := LeafWorker(sys, "missing.txt", []chan Signal{out})
	require.Error(t, err)
	assert.True(t, rulererrors.Is(err, rulererrors.KindFileNotFound))

	sig := <-out
	assert.True(t, sig.Canceled)
}

func TestRuleWorkerRunsCommandOnFirstBuild(t *testing.T) {
	sys := system.NewFake()
	sys.RegisterScript("gen", func(args []string) (system.CommandLineOutput, error) {
		sys.WriteFile("out.txt", "generated")
		return system.CommandLineOutput{Success: true, HasCode: true, Code: 0}, nil
	})
	c, err := cache.Open(sys, "cache")
	require.NoError(t, err)

	node := graph.Node{
		Targets: []string{"out.txt"},
		Command: []string{"gen"},
		Sources: []graph.SourceIndex{{Kind: graph.Leaf, LeafIndex: 0}},
	}

	inbound := make(chan Signal, 1)
	inbound <- Signal{Ticket: ticket.Empty()}

	h := history.New()
	blob := state.Blob{{Path: "out.txt", State: state.Empty()}}
	res, err := RuleWorker(sys, c, nil, node, []chan Signal{inbound}, nil, h, blob)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, Rebuilt, res.Outcomes[0])
	assert.True(t, res.HistoryChanged)
	assert.Equal(t, "out.txt", res.Blob[0].Path)
}

func TestRuleWorkerResolvesAlreadyCorrectFromHistoryWithoutRunningCommand(t *testing.T) {
	sys := system.NewFake()
	sys.WriteFile("out.txt", "same content")
	tk, err := ticket.FromFile(sys, "out.txt")
	require.NoError(t, err)
	mtime, err := sys.ModTime("out.txt")
	require.NoError(t, err)

	c, err := cache.Open(sys, "cache")
	require.NoError(t, err)

	sourceSig := Signal{Ticket: ticket.Empty()}
	sourcesTicket := ticket.OfTickets([]ticket.Ticket{sourceSig.Ticket})

	h := history.New()
	require.NoError(t, h.Insert(sourcesTicket, state.FileStateVec{{Ticket: tk, MtimeMicro: mtime.UnixMicro()}}))

	node := graph.Node{
		Targets: []string{"out.txt"},
		Command: []string{"should-not-run"},
		Sources: []graph.SourceIndex{{Kind: graph.Leaf, LeafIndex: 0}},
	}

	ran := false
	sys.RegisterScript("should-not-run", func(args []string) (system.CommandLineOutput, error) {
		ran = true
		return system.CommandLineOutput{Success: true, HasCode: true, Code: 0}, nil
	})

	inbound := make(chan Signal, 1)
	inbound <- sourceSig

	blob := state.Blob{{Path: "out.txt", State: state.Empty()}}
	res, err := RuleWorker(sys, c, nil, node, []chan Signal{inbound}, nil, h, blob)
	require.NoError(t, err)
	assert.False(t, ran, "command must not run when the resolution engine resolves every target")
	assert.Equal(t, AlreadyCorrect, res.Outcomes[0])
	assert.False(t, res.HistoryChanged)
}

func TestRuleWorkerPropagatesCancelOnCanceledInbound(t *testing.T) {
	sys := system.NewFake()
	c, err := cache.Open(sys, "cache")
	require.NoError(t, err)

	node := graph.Node{
		Targets: []string{"out.txt"},
		Command: []string{"gen"},
		Sources: []graph.SourceIndex{{Kind: graph.Leaf, LeafIndex: 0}},
	}

	inbound := make(chan Signal, 1)
	inbound <- Signal{Canceled: true}
	outEdge := outboundEdge{subIndex: 0, ch: make(chan Signal, 1)}

	blob := state.Blob{{Path: "out.txt", State: state.Empty()}}
	_, err = RuleWorker(sys, c, nil, node, []chan Signal{inbound}, []outboundEdge{outEdge}, history.New(), blob)
	require.Error(t, err)
	assert.True(t, rulererrors.Is(err, rulererrors.KindCanceled))

	sig := <-outEdge.ch
	assert.True(t, sig.Canceled)
}

func TestRuleWorkerContradictionWhenRebuildDisagreesWithHistory(t *testing.T) {
	sys := system.NewFake()
	sys.RegisterScript("gen", func(args []string) (system.CommandLineOutput, error) {
		sys.WriteFile("out.txt", "new content, not what history expects")
		return system.CommandLineOutput{Success: true, HasCode: true, Code: 0}, nil
	})
	c, err := cache.Open(sys, "cache")
	require.NoError(t, err)

	sourceSig := Signal{Ticket: ticket.Empty()}
	sourcesTicket := ticket.OfTickets([]ticket.Ticket{sourceSig.Ticket})

	h := history.New()
	staleTicket := ticket.NewFactory().AbsorbString("stale expectation").Result()
	require.NoError(t, h.Insert(sourcesTicket, state.FileStateVec{{Ticket: staleTicket, MtimeMicro: 999999}}))

	node := graph.Node{
		Targets: []string{"out.txt"},
		Command: []string{"gen"},
		Sources: []graph.SourceIndex{{Kind: graph.Leaf, LeafIndex: 0}},
	}

	inbound := make(chan Signal, 1)
	inbound <- sourceSig
	outEdge := outboundEdge{subIndex: 0, ch: make(chan Signal, 1)}

	blob := state.Blob{{Path: "out.txt", State: state.Empty()}}
	_, err = RuleWorker(sys, c, nil, node, []chan Signal{inbound}, []outboundEdge{outEdge}, h, blob)
	require.Error(t, err)
	assert.True(t, rulererrors.Is(err, rulererrors.KindContradiction))

	sig := <-outEdge.ch
	assert.True(t, sig.Canceled)
}
