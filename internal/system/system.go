// Package system isolates every interaction the build engine has with
// the operating system — file I/O, directory tests, renames, mtimes
// and command execution — behind a single interface so the core
// packages (cache, ticket, build) can be driven against a fake in
// tests without touching a real filesystem or spawning processes.
package system

import (
	"io"
	"time"
)

// CommandLineOutput is the result of executing a rule's command.
type CommandLineOutput struct {
	Stdout   string
	Stderr   string
	Code     int
	HasCode  bool
	Success  bool
}

// System is the operating-system abstraction every core component is
// written against. Real is the production implementation; Fake is an
// in-memory stand-in used throughout the test suite.
type System interface {
	Open(path string) (io.ReadCloser, error)
	Create(path string) (io.WriteCloser, error)
	MkdirAll(path string) error
	IsDir(path string) bool
	IsFile(path string) bool
	Remove(path string) error
	RemoveAll(path string) error
	Rename(from, to string) error
	ModTime(path string) (time.Time, error)
	IsExecutable(path string) (bool, error)
	SetExecutable(path string, executable bool) error

	// ListDir returns the base names of dir's immediate entries, in no
	// particular order. Used by the cache to enumerate files/.
	ListDir(dir string) ([]string, error)

	// Execute runs commandLine[0] with commandLine[1:] as arguments,
	// exactly as the rule's command lines were declared (§4.C) — no
	// shell is involved, so no shell metacharacter in a rule's
	// command lines is ever special.
	Execute(commandLine []string) (CommandLineOutput, error)
}
