// Package history stores, per rule-ticket, the RuleHistory mapping a
// rule's sources-ticket to the FileStateVec it last produced (spec
// §4.H). One file per rule-ticket lives under a history directory.
package history

import (
	"bytes"
	"encoding/gob"
	"path"

	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/state"
	"github.com/rulerbuild/ruler/internal/system"
	"github.com/rulerbuild/ruler/internal/ticket"
)

// RuleHistory maps a sources-ticket to the FileStateVec it produced
// the last time that exact combination of sources was built.
type RuleHistory struct {
	entries map[ticket.Ticket]state.FileStateVec
}

// New returns an empty RuleHistory.
func New() *RuleHistory {
	return &RuleHistory{entries: make(map[ticket.Ticket]state.FileStateVec)}
}

// Get returns the remembered FileStateVec for src, if any.
func (h *RuleHistory) Get(src ticket.Ticket) (state.FileStateVec, bool) {
	v, ok := h.entries[src]
	return v, ok
}

// Insert records (src, targets). If an entry already exists for src,
// it must agree with targets (same length, pointwise-equal tickets);
// agreement is an idempotent success. Disagreement at equal length is
// Contradiction carrying the mismatching indices; differing length is
// TargetSizesDiffer.
func (h *RuleHistory) Insert(src ticket.Ticket, targets state.FileStateVec) error {
	existing, ok := h.entries[src]
	if !ok {
		h.entries[src] = targets
		return nil
	}

	agreement, mismatches := state.Compare(existing, targets)
	switch agreement {
	case state.Agree:
		return nil
	case state.SizesDiffer:
		return rulererrors.New("history.Insert", rulererrors.KindTargetSizesDiffer)
	default:
		return rulererrors.New("history.Insert", rulererrors.KindContradiction).WithIndices(mismatches)
	}
}

// Store is the directory of per-rule-ticket history files (spec
// §4.H).
type Store struct {
	sys system.System
	dir string
}

// Open returns a Store rooted at dir, creating dir if necessary.
func Open(sys system.System, dir string) (*Store, error) {
	if err := sys.MkdirAll(dir); err != nil {
		return nil, rulererrors.Wrap("history.Open", rulererrors.KindSystemError, err).WithPath(dir)
	}
	return &Store{sys: sys, dir: dir}, nil
}

func (s *Store) filePath(ruleTicket ticket.Ticket) string {
	return path.Join(s.dir, ruleTicket.ToText())
}

// Read returns the RuleHistory for ruleTicket. A missing file yields
// an empty history; a corrupt file is fatal.
func (s *Store) Read(ruleTicket ticket.Ticket) (*RuleHistory, error) {
	p := s.filePath(ruleTicket)
	if !s.sys.IsFile(p) {
		return New(), nil
	}

	f, err := s.sys.Open(p)
	if err != nil {
		return nil, rulererrors.Wrap("history.Store.Read", rulererrors.KindCannotReadRuleHistory, err).WithPath(p)
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, rulererrors.Wrap("history.Store.Read", rulererrors.KindCannotReadRuleHistory, err).WithPath(p)
	}

	entries := make(map[ticket.Ticket]state.FileStateVec)
	if buf.Len() > 0 {
		if err := gob.NewDecoder(&buf).Decode(&entries); err != nil {
			return nil, rulererrors.Wrap("history.Store.Read", rulererrors.KindCannotInterpretRuleHistory, err).WithPath(p)
		}
	}
	return &RuleHistory{entries: entries}, nil
}

// Write overwrites the on-disk history for ruleTicket.
func (s *Store) Write(ruleTicket ticket.Ticket, h *RuleHistory) error {
	p := s.filePath(ruleTicket)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(h.entries); err != nil {
		return rulererrors.Wrap("history.Store.Write", rulererrors.KindCannotWriteRuleHistory, err).WithPath(p)
	}

	w, err := s.sys.Create(p)
	if err != nil {
		return rulererrors.Wrap("history.Store.Write", rulererrors.KindCannotWriteRuleHistory, err).WithPath(p)
	}
	defer w.Close()
	if _, err := w.Write(buf.Bytes()); err != nil {
		return rulererrors.Wrap("history.Store.Write", rulererrors.KindCannotWriteRuleHistory, err).WithPath(p)
	}
	return nil
}
