package build

import (
	"github.com/rulerbuild/ruler/internal/cache"
	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/graph"
	"github.com/rulerbuild/ruler/internal/history"
	"github.com/rulerbuild/ruler/internal/resolve"
	"github.com/rulerbuild/ruler/internal/state"
	"github.com/rulerbuild/ruler/internal/system"
	"github.com/rulerbuild/ruler/internal/ticket"
)

// Outcome is the per-target result a worker reports to the scheduler
// for banner printing and metrics — the resolution engine's closed
// set (spec §4.I) plus Rebuilt (command ran) and Canceled (upstream
// failure).
type Outcome int

const (
	AlreadyCorrect Outcome = iota
	Recovered
	Downloaded
	Rebuilt
	Canceled
)

func fromResolveOutcome(o resolve.Outcome) Outcome {
	switch o {
	case resolve.AlreadyCorrect:
		return AlreadyCorrect
	case resolve.Recovered:
		return Recovered
	case resolve.Downloaded:
		return Downloaded
	default:
		return Rebuilt
	}
}

// LeafResult is what a leaf worker reports for reinsertion into the
// current-file-state store.
type LeafResult struct {
	Path  string
	State state.FileState
}

// LeafWorker resolves path with no remembered state (spec §4.J: "the
// path must exist"), always rehashing — a leaf source is never
// tracked across builds via the mtime optimization, only targets are.
// It sends the resulting ticket on every outbound channel, or the
// Cancel sentinel on I/O failure.
func LeafWorker(sys system.System, path string, outbound []chan Signal) (LeafResult, error) {
	if !sys.IsFile(path) {
		cancelAll(outbound)
		return LeafResult{}, rulererrors.New("build.LeafWorker", rulererrors.KindFileNotFound).WithPath(path)
	}

	t, err := ticket.FromFile(sys, path)
	if err != nil {
		cancelAll(outbound)
		return LeafResult{}, err
	}
	mtime, err := sys.ModTime(path)
	if err != nil {
		cancelAll(outbound)
		return LeafResult{}, rulererrors.Wrap("build.LeafWorker", rulererrors.KindSystemError, err).WithPath(path)
	}
	executable, err := sys.IsExecutable(path)
	if err != nil {
		cancelAll(outbound)
		return LeafResult{}, rulererrors.Wrap("build.LeafWorker", rulererrors.KindSystemError, err).WithPath(path)
	}

	st := state.FileState{Ticket: t, MtimeMicro: mtime.UnixMicro(), Executable: executable}
	sendToAll(outbound, Signal{Ticket: t})
	return LeafResult{Path: path, State: st}, nil
}

// RuleResult is what a rule-node worker reports: the new Blob to
// reinsert into the current-file-state store, the per-target
// outcomes for banner printing, and the rule history if it changed.
type RuleResult struct {
	Blob           state.Blob
	Outcomes       []Outcome
	RuleTicket     ticket.Ticket
	History        *history.RuleHistory
	HistoryChanged bool
}

// RuleWorker implements the rule-node worker contract (spec §4.J,
// §4.K): receive one ticket per inbound channel in declared source
// order, combine them into a sources-ticket, consult the rule's
// history, and either accept the resolution engine's verdict or run
// the command and record a fresh history entry. targetBlob carries
// each target's own FileState from the current-file-state store and is
// always consulted, independent of whether ruleHistory has an entry
// for this sources-ticket: it is what lets a target be backed up to
// the cache before a rebuild overwrites it even the first time a given
// combination of sources is built.
func RuleWorker(
	sys system.System,
	c *cache.Cache,
	downloader resolve.Downloader,
	node graph.Node,
	inbound []chan Signal,
	outbound []outboundEdge,
	ruleHistory *history.RuleHistory,
	targetBlob state.Blob,
) (RuleResult, error) {
	sourceTickets := make([]ticket.Ticket, len(inbound))
	for i, ch := range inbound {
		sig := <-ch
		if sig.Canceled {
			cancelEdges(outbound)
			return RuleResult{}, rulererrors.New("build.RuleWorker", rulererrors.KindCanceled).WithPath(firstTarget(node))
		}
		sourceTickets[i] = sig.Ticket
	}
	sourcesTicket := ticket.OfTickets(sourceTickets)

	remembered, hasHistory := ruleHistory.Get(sourcesTicket)
	results := make([]resolve.Result, len(node.Targets))
	allResolved := hasHistory
	for i, target := range node.Targets {
		var rememberedState state.FileState
		if hasHistory {
			rememberedState = remembered[i]
		}
		// targetBlob[i].State is the mtime baseline for target regardless
		// of whether a history entry exists; a target with no prior
		// recorded state still gets backed up to the cache before being
		// overwritten, it just can't be recovered or compared against.
		r, err := resolve.Target(sys, c, downloader, target, targetBlob[i].State, rememberedState, hasHistory)
		if err != nil {
			cancelEdges(outbound)
			return RuleResult{}, err
		}
		results[i] = r
		if r.Outcome == resolve.NeedsRebuild {
			allResolved = false
		}
	}

	var newStates state.FileStateVec
	outcomes := make([]Outcome, len(node.Targets))

	if allResolved {
		newStates = make(state.FileStateVec, len(node.Targets))
		for i, r := range results {
			newStates[i] = r.State
			outcomes[i] = fromResolveOutcome(r.Outcome)
		}
	} else {
		out, err := sys.Execute(node.Command)
		if err != nil || !out.Success {
			cancelEdges(outbound)
			return RuleResult{}, commandFailedError(node, out)
		}

		newStates = make(state.FileStateVec, len(node.Targets))
		for i, target := range node.Targets {
			if !sys.IsFile(target) {
				cancelEdges(outbound)
				return RuleResult{}, rulererrors.New("build.RuleWorker", rulererrors.KindTargetFileNotGenerated).WithPath(target)
			}
			t, err := ticket.FromFile(sys, target)
			if err != nil {
				cancelEdges(outbound)
				return RuleResult{}, err
			}
			mtime, err := sys.ModTime(target)
			if err != nil {
				cancelEdges(outbound)
				return RuleResult{}, rulererrors.Wrap("build.RuleWorker", rulererrors.KindSystemError, err).WithPath(target)
			}
			executable, err := sys.IsExecutable(target)
			if err != nil {
				cancelEdges(outbound)
				return RuleResult{}, rulererrors.Wrap("build.RuleWorker", rulererrors.KindSystemError, err).WithPath(target)
			}
			newStates[i] = state.FileState{Ticket: t, MtimeMicro: mtime.UnixMicro(), Executable: executable}
			outcomes[i] = Rebuilt
		}

		if hasHistory {
			agreement, mismatches := state.Compare(remembered, newStates)
			if agreement != state.Agree {
				cancelEdges(outbound)
				return RuleResult{}, rulererrors.New("build.RuleWorker", rulererrors.KindContradiction).
					WithPaths(node.Targets).WithIndices(mismatches)
			}
		}
	}

	if err := ruleHistory.Insert(sourcesTicket, newStates); err != nil {
		cancelEdges(outbound)
		return RuleResult{}, err
	}

	signals := make([]Signal, len(newStates))
	for i, st := range newStates {
		signals[i] = Signal{Ticket: st.Ticket}
	}
	sendPerTarget(outbound, signals)

	blob := make(state.Blob, len(node.Targets))
	for i, target := range node.Targets {
		blob[i] = state.FileInfo{Path: target, State: newStates[i]}
	}

	return RuleResult{
		Blob:           blob,
		Outcomes:       outcomes,
		RuleTicket:     node.RuleTicket,
		History:        ruleHistory,
		HistoryChanged: !allResolved,
	}, nil
}

func commandFailedError(node graph.Node, out system.CommandLineOutput) *rulererrors.Error {
	return &rulererrors.Error{
		Op:       "build.RuleWorker",
		Kind:     rulererrors.KindCommandFailed,
		Path:     firstTarget(node),
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		ExitCode: out.Code,
	}
}

func firstTarget(node graph.Node) string {
	if len(node.Targets) == 0 {
		return ""
	}
	return node.Targets[0]
}
