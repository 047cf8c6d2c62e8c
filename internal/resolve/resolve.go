// Package resolve implements the resolution engine (spec §4.I): given
// a target Blob (the always-present mtime baseline) and an optional
// remembered FileStateVec from rule history (the comparison/recovery
// baseline), it decides per-target whether the on-disk file is already
// correct, can be recovered from the local cache, can be downloaded
// from a mirror, or must be rebuilt.
package resolve

import (
	"github.com/rulerbuild/ruler/internal/cache"
	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/state"
	"github.com/rulerbuild/ruler/internal/system"
	"github.com/rulerbuild/ruler/internal/ticket"
)

// Outcome is the closed set of per-target resolution results.
type Outcome int

const (
	AlreadyCorrect Outcome = iota
	Recovered
	Downloaded
	NeedsRebuild
)

// Downloader is the subset of the mirror client the resolution engine
// needs: best-effort recovery of a single file by ticket.
type Downloader interface {
	RestoreFile(t ticket.Ticket, destPath string) (bool, error)
}

// Result is one target's resolution outcome plus its resulting state,
// ready to write back into the current-file-state store.
type Result struct {
	Outcome Outcome
	State   state.FileState
}

// Target resolves a single target path against two independent
// baselines: blob is the Blob's own FileState for this path (the
// mtime-optimization baseline, always present, even on a first-ever
// build where it is state.Empty()), and remembered is the rule
// history's FileState for this path, present only when history exists
// for the current sources-ticket. The two must not be collapsed into
// one: blob drives the "believe-the-timestamp" shortcut when deciding
// whether the on-disk file still matches its last-known content, while
// remembered is the separate baseline compared against for
// AlreadyCorrect and used to drive cache recovery or download.
func Target(sys system.System, c *cache.Cache, downloader Downloader, path string, blob state.FileState, remembered state.FileState, hasRemembered bool) (Result, error) {
	current, hasCurrent, err := currentTicket(sys, path, blob)
	if err != nil {
		return Result{}, err
	}

	if hasRemembered && hasCurrent && remembered.Ticket.Equal(current) {
		return Result{Outcome: AlreadyCorrect, State: remembered}, nil
	}

	if hasCurrent {
		if err := c.BackUpFileWithTicket(current, path); err != nil {
			return Result{}, err
		}
	}

	if hasRemembered {
		outcome, err := c.RestoreFile(remembered.Ticket, path)
		if err != nil {
			return Result{}, err
		}
		if outcome == cache.Done {
			if err := sys.SetExecutable(path, remembered.Executable); err != nil {
				return Result{}, rulererrors.Wrap("resolve.Target", rulererrors.KindSystemError, err).WithPath(path)
			}
			mtime, err := statMicros(sys, path)
			if err != nil {
				return Result{}, err
			}
			return Result{Outcome: Recovered, State: state.FileState{Ticket: remembered.Ticket, MtimeMicro: mtime, Executable: remembered.Executable}}, nil
		}

		if downloader != nil {
			done, err := downloader.RestoreFile(remembered.Ticket, path)
			if err != nil {
				return Result{}, err
			}
			if done {
				if err := sys.SetExecutable(path, remembered.Executable); err != nil {
					return Result{}, rulererrors.Wrap("resolve.Target", rulererrors.KindSystemError, err).WithPath(path)
				}
				mtime, err := statMicros(sys, path)
				if err != nil {
					return Result{}, err
				}
				return Result{Outcome: Downloaded, State: state.FileState{Ticket: remembered.Ticket, MtimeMicro: mtime, Executable: remembered.Executable}}, nil
			}
		}
	}

	return Result{Outcome: NeedsRebuild}, nil
}

// currentTicket computes path's current ticket, reusing blob's ticket
// if the on-disk mtime still matches blob's mtime. A missing file
// yields hasCurrent = false, not an error.
func currentTicket(sys system.System, path string, blob state.FileState) (ticket.Ticket, bool, error) {
	if !sys.IsFile(path) {
		return ticket.Ticket{}, false, nil
	}

	mtime, err := statMicros(sys, path)
	if err != nil {
		return ticket.Ticket{}, false, err
	}
	if mtime == blob.MtimeMicro {
		return blob.Ticket, true, nil
	}

	t, err := ticket.FromFile(sys, path)
	if err != nil {
		return ticket.Ticket{}, false, err
	}
	return t, true, nil
}

func statMicros(sys system.System, path string) (int64, error) {
	mtime, err := sys.ModTime(path)
	if err != nil {
		return 0, rulererrors.Wrap("resolve.statMicros", rulererrors.KindSystemError, err).WithPath(path)
	}
	return mtime.UnixMicro(), nil
}
