// Package errors defines the typed error taxonomy raised by the build
// engine's core packages (ticket, bundle, rule, graph, state, cache,
// resolve, build). Every error the core raises is a *Error carrying a
// Kind so callers can switch on failure category instead of matching
// strings.
package errors

import (
	"fmt"
	"strings"
)

// Kind categorizes an Error. Values are grouped by the sub-taxonomy in
// spec §7: parse, graph, state, cache, work, build.
type Kind string

const (
	// Parse errors (bundle + rule file grammar)
	KindUnexpectedEmptyLine            Kind = "unexpected_empty_line"
	KindUnexpectedExtraColon           Kind = "unexpected_extra_colon"
	KindUnexpectedEOFMidTargets        Kind = "unexpected_eof_mid_targets"
	KindUnexpectedEOFMidSources        Kind = "unexpected_eof_mid_sources"
	KindUnexpectedEOFMidCommand        Kind = "unexpected_eof_mid_command"
	KindBundleEmpty                    Kind = "bundle_empty"
	KindBundleContainsEmptyLines       Kind = "bundle_contains_empty_lines"
	KindBundleDoesNotEndWithNewline    Kind = "bundle_does_not_end_with_newline"
	KindBundleContradiction            Kind = "bundle_contradiction"
	KindBundleWrongIndent              Kind = "bundle_wrong_indent"
	KindRuleFileNotUTF8                Kind = "rule_file_not_utf8"

	// Graph errors
	KindCycleDetected  Kind = "cycle_detected"
	KindTargetNotFound Kind = "target_not_found"

	// State errors
	KindCannotReadCurrentStates      Kind = "cannot_read_current_states"
	KindCannotInterpretCurrentStates Kind = "cannot_interpret_current_states"
	KindCannotWriteCurrentStates     Kind = "cannot_write_current_states"
	KindCannotReadRuleHistory        Kind = "cannot_read_rule_history"
	KindCannotInterpretRuleHistory   Kind = "cannot_interpret_rule_history"
	KindCannotWriteRuleHistory       Kind = "cannot_write_rule_history"

	// Cache errors
	KindNotThere             Kind = "not_there"
	KindCacheDirectoryMissing Kind = "cache_directory_missing"
	KindSystemError          Kind = "system_error"

	// Work errors (per-node, aggregated by the scheduler)
	KindFileNotFound           Kind = "file_not_found"
	KindTargetFileNotGenerated Kind = "target_file_not_generated"
	KindContradiction          Kind = "contradiction"
	KindTargetSizesDiffer      Kind = "target_sizes_differ_weird"
	KindCommandFailed          Kind = "command_failed"

	// Build-level
	KindCanceled Kind = "canceled"
)

// Error is the concrete error type raised throughout the engine.
type Error struct {
	Kind       Kind
	Op         string   // operation that failed, e.g. "cache.RestoreFile"
	Path       string   // single-path errors (FileNotFound, TargetFileNotGenerated)
	Line       int      // 1-indexed source line, for rule-file parse errors
	Paths      []string // multi-path errors (Contradiction at the work level)
	Indices    []int    // mismatching indices (blob/history Contradiction)
	Stdout     string   // CommandFailed payload
	Stderr     string   // CommandFailed payload
	ExitCode   int      // CommandFailed payload
	Underlying error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		fmt.Fprintf(&b, "%s: ", e.Op)
	}
	fmt.Fprintf(&b, "%s", e.Kind)
	switch e.Kind {
	case KindUnexpectedEmptyLine, KindUnexpectedExtraColon,
		KindUnexpectedEOFMidTargets, KindUnexpectedEOFMidSources, KindUnexpectedEOFMidCommand:
		fmt.Fprintf(&b, " %s:%d", e.Path, e.Line)
	case KindFileNotFound, KindTargetFileNotGenerated:
		fmt.Fprintf(&b, " (%s)", e.Path)
	case KindContradiction:
		if len(e.Paths) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(e.Paths, ", "))
		}
		if len(e.Indices) > 0 {
			fmt.Fprintf(&b, " at indices %v", e.Indices)
		}
	case KindCommandFailed:
		fmt.Fprintf(&b, " exit=%d stderr=%q", e.ExitCode, truncate(e.Stderr, 200))
	case KindTargetNotFound:
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Underlying }

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// New builds a bare Error of the given kind.
func New(op string, kind Kind) *Error {
	return &Error{Op: op, Kind: kind}
}

// Wrap builds an Error of the given kind wrapping an underlying error.
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Underlying: err}
}

// WithPath attaches a single path to an Error and returns it.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithPaths attaches multiple paths to an Error and returns it.
func (e *Error) WithPaths(paths []string) *Error {
	e.Paths = paths
	return e
}

// WithLine attaches a 1-indexed source line to an Error and returns it.
func (e *Error) WithLine(line int) *Error {
	e.Line = line
	return e
}

// WithIndices attaches mismatching indices to an Error and returns it.
func (e *Error) WithIndices(indices []int) *Error {
	e.Indices = indices
	return e
}

// WorkErrors aggregates the per-node failures a build run collects at
// join time (spec §7: "Build-level: aggregate WorkErrors(list)").
type WorkErrors []*Error

func (w WorkErrors) Error() string {
	parts := make([]string, len(w))
	for i, e := range w {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Empty reports whether the aggregate carries no errors, i.e. the
// build succeeded.
func (w WorkErrors) Empty() bool { return len(w) == 0 }
