// Package state defines the value types shared by the resolution
// engine and the build scheduler (spec §3: FileState, FileInfo, Blob,
// FileStateVec) and the persistent current-file-state store (spec
// §4.G) backing them.
package state

import (
	"bytes"
	"encoding/gob"

	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/system"
	"github.com/rulerbuild/ruler/internal/ticket"
)

// FileState is the most recently observed snapshot of one path: its
// content ticket, the mtime (microseconds since epoch) that ticket
// was computed under, and whether the file was executable.
type FileState struct {
	Ticket     ticket.Ticket
	MtimeMicro int64
	Executable bool
}

// Empty is the zero FileState used for paths with no recorded
// history: an empty-hash ticket, mtime zero, not executable.
func Empty() FileState {
	return FileState{Ticket: ticket.Empty()}
}

// FileInfo pairs a path with its FileState.
type FileInfo struct {
	Path  string
	State FileState
}

// Blob is an ordered sequence of FileInfo, one per target of a rule
// (or a single entry for a leaf source). Order is the rule's declared
// target order and must be preserved end-to-end for index-based
// channel routing to stay unambiguous.
type Blob []FileInfo

// Vec projects a Blob down to its FileStates, discarding paths.
func (b Blob) Vec() FileStateVec {
	v := make(FileStateVec, len(b))
	for i, fi := range b {
		v[i] = fi.State
	}
	return v
}

// FileStateVec is an ordered sequence of FileState, persisted as a
// rule-history value and compared against a freshly observed Blob.
type FileStateVec []FileState

// Agreement is the outcome of comparing two FileStateVecs.
type Agreement int

const (
	Agree Agreement = iota
	Contradiction
	SizesDiffer
)

// Compare reports whether want and got agree: same length and
// pointwise-equal tickets. Disagreement at equal length returns
// Contradiction along with every mismatching index; differing length
// returns SizesDiffer.
func Compare(want, got FileStateVec) (Agreement, []int) {
	if len(want) != len(got) {
		return SizesDiffer, nil
	}
	var mismatches []int
	for i := range want {
		if !want[i].Ticket.Equal(got[i].Ticket) {
			mismatches = append(mismatches, i)
		}
	}
	if len(mismatches) > 0 {
		return Contradiction, mismatches
	}
	return Agree, nil
}

// Current is the persistent map path → FileState at a single file
// (spec §4.G). Created on first use by writing an empty serialization.
type Current struct {
	sys   system.System
	path  string
	table map[string]FileState
}

// OpenCurrent loads the current-file-state store at path, creating it
// (empty) if it does not yet exist.
func OpenCurrent(sys system.System, path string) (*Current, error) {
	c := &Current{sys: sys, path: path, table: make(map[string]FileState)}
	if !sys.IsFile(path) {
		if err := c.toFile(); err != nil {
			return nil, err
		}
		return c, nil
	}

	f, err := sys.Open(path)
	if err != nil {
		return nil, rulererrors.Wrap("state.OpenCurrent", rulererrors.KindCannotReadCurrentStates, err).WithPath(path)
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, rulererrors.Wrap("state.OpenCurrent", rulererrors.KindCannotReadCurrentStates, err).WithPath(path)
	}
	if buf.Len() > 0 {
		if err := gob.NewDecoder(&buf).Decode(&c.table); err != nil {
			return nil, rulererrors.Wrap("state.OpenCurrent", rulererrors.KindCannotInterpretCurrentStates, err).WithPath(path)
		}
	}
	return c, nil
}

// TakeBlob atomically removes the entries for paths and returns a
// Blob carrying the stored state for each, or Empty() for any path
// with no recorded entry.
func (c *Current) TakeBlob(paths []string) Blob {
	blob := make(Blob, len(paths))
	for i, p := range paths {
		st, ok := c.table[p]
		if !ok {
			st = Empty()
		}
		delete(c.table, p)
		blob[i] = FileInfo{Path: p, State: st}
	}
	return blob
}

// InsertBlob reinserts every FileInfo in blob, overwriting any prior
// entry for that path.
func (c *Current) InsertBlob(blob Blob) {
	for _, fi := range blob {
		c.table[fi.Path] = fi.State
	}
}

// ToFile serializes the entire map to disk.
func (c *Current) ToFile() error {
	return c.toFile()
}

func (c *Current) toFile() error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c.table); err != nil {
		return rulererrors.Wrap("state.Current.ToFile", rulererrors.KindCannotWriteCurrentStates, err).WithPath(c.path)
	}
	w, err := c.sys.Create(c.path)
	if err != nil {
		return rulererrors.Wrap("state.Current.ToFile", rulererrors.KindCannotWriteCurrentStates, err).WithPath(c.path)
	}
	defer w.Close()
	if _, err := w.Write(buf.Bytes()); err != nil {
		return rulererrors.Wrap("state.Current.ToFile", rulererrors.KindCannotWriteCurrentStates, err).WithPath(c.path)
	}
	return nil
}
