// Package rulerconfig reads and writes the build engine's two TOML
// disk surfaces (spec §6): the mirror URL list passed via --urls, and
// the persisted last-invocation record `again` replays. Structured the
// way the teacher's internal/config structures its Config: plain
// exported structs, a New* constructor filling defaults, and a
// Validate() error method.
package rulerconfig

import (
	"bytes"

	"github.com/pelletier/go-toml/v2"

	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/system"
)

// DefaultDirectory is the state directory used when --directory is
// not given.
const DefaultDirectory = ".ruler"

// Mirrors is the --urls file: an ordered list of mirror base URLs,
// tried in this order by the downloader (spec §4.F).
type Mirrors struct {
	URLs []string `toml:"urls"`
}

// NewMirrors builds an empty Mirrors list.
func NewMirrors() *Mirrors {
	return &Mirrors{}
}

// Validate rejects an empty URL among a non-empty list; an empty list
// itself is valid (no mirror configured).
func (m *Mirrors) Validate() error {
	for _, u := range m.URLs {
		if u == "" {
			return rulererrors.New("rulerconfig.Mirrors.Validate", rulererrors.KindSystemError)
		}
	}
	return nil
}

// LoadMirrors reads and parses a mirror-url TOML file.
func LoadMirrors(sys system.System, path string) (*Mirrors, error) {
	f, err := sys.Open(path)
	if err != nil {
		return nil, rulererrors.Wrap("rulerconfig.LoadMirrors", rulererrors.KindSystemError, err).WithPath(path)
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, rulererrors.Wrap("rulerconfig.LoadMirrors", rulererrors.KindSystemError, err).WithPath(path)
	}

	m := NewMirrors()
	if err := toml.Unmarshal(buf.Bytes(), m); err != nil {
		return nil, rulererrors.Wrap("rulerconfig.LoadMirrors", rulererrors.KindSystemError, err).WithPath(path)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Invocation is the `<dir>/config.toml` record (spec §6) that `again`
// replays verbatim: the rule files, the directory the invocation ran
// against, and the goal target passed to `build` (empty for a whole-
// graph build). The mirror url file is deliberately not part of this
// record — `again` never contacts a mirror, only rebuilds from the
// rule files and local state exactly as the prior invocation did.
type Invocation struct {
	RuleFiles []string `toml:"rule_files"`
	Directory string   `toml:"directory"`
	Goal      string   `toml:"goal"`
}

// NewInvocation builds an Invocation with Directory defaulted.
func NewInvocation(ruleFiles []string, goal string) *Invocation {
	return &Invocation{RuleFiles: ruleFiles, Directory: DefaultDirectory, Goal: goal}
}

// Validate rejects an Invocation with no rule files or an empty
// directory; Goal may be empty (whole-graph build).
func (inv *Invocation) Validate() error {
	if len(inv.RuleFiles) == 0 {
		return rulererrors.New("rulerconfig.Invocation.Validate", rulererrors.KindSystemError)
	}
	if inv.Directory == "" {
		return rulererrors.New("rulerconfig.Invocation.Validate", rulererrors.KindSystemError)
	}
	return nil
}

// LoadInvocation reads the last-invocation record at path.
func LoadInvocation(sys system.System, path string) (*Invocation, error) {
	f, err := sys.Open(path)
	if err != nil {
		return nil, rulererrors.Wrap("rulerconfig.LoadInvocation", rulererrors.KindSystemError, err).WithPath(path)
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, rulererrors.Wrap("rulerconfig.LoadInvocation", rulererrors.KindSystemError, err).WithPath(path)
	}

	var inv Invocation
	if err := toml.Unmarshal(buf.Bytes(), &inv); err != nil {
		return nil, rulererrors.Wrap("rulerconfig.LoadInvocation", rulererrors.KindSystemError, err).WithPath(path)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Save persists inv to path as TOML, overwriting any prior record.
func (inv *Invocation) Save(sys system.System, path string) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	data, err := toml.Marshal(inv)
	if err != nil {
		return rulererrors.Wrap("rulerconfig.Invocation.Save", rulererrors.KindSystemError, err).WithPath(path)
	}
	w, err := sys.Create(path)
	if err != nil {
		return rulererrors.Wrap("rulerconfig.Invocation.Save", rulererrors.KindSystemError, err).WithPath(path)
	}
	defer w.Close()
	if _, err := w.Write(data); err != nil {
		return rulererrors.Wrap("rulerconfig.Invocation.Save", rulererrors.KindSystemError, err).WithPath(path)
	}
	return nil
}
