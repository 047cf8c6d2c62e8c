// Package printer wraps the standard library's log.Logger with the
// per-resolution colored banners the build scheduler emits (spec
// §4.J, §4.K): a short prefix colored by outcome, then the target
// path. Grounded on the teacher's own plain-text log.Printf logging
// (e.g. internal/config/kdl_config.go, internal/search/engine.go) —
// the corpus never reaches for a structured logging library, so
// neither does this.
package printer

import (
	"io"
	"log"

	"github.com/fatih/color"
)

// Printer writes resolution banners and plain status lines to an
// underlying log.Logger.
type Printer struct {
	log *log.Logger

	green  *color.Color
	yellow *color.Color
	red    *color.Color
}

// New builds a Printer writing to w, with no log.Logger prefix or
// timestamp flags (the banners carry their own context).
func New(w io.Writer) *Printer {
	return &Printer{
		log:    log.New(w, "", 0),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed),
	}
}

// AlreadyCorrect reports a target that needed no work.
func (p *Printer) AlreadyCorrect(path string) {
	p.log.Println(p.green.Sprintf("[already correct]"), path)
}

// Recovered reports a target restored from a local cache entry.
func (p *Printer) Recovered(path string) {
	p.log.Println(p.green.Sprintf("[recovered]"), path)
}

// Downloaded reports a target restored from a mirror.
func (p *Printer) Downloaded(path string) {
	p.log.Println(p.green.Sprintf("[downloaded]"), path)
}

// Building reports a target whose rule's command was run because it
// needed rebuilding.
func (p *Printer) Building(path string) {
	p.log.Println(p.yellow.Sprintf("[building]"), path)
}

// CommandFailed reports a rule's command exiting with a failure.
func (p *Printer) CommandFailed(path string, exitCode int) {
	p.log.Println(p.red.Sprintf("[command failed, exit=%d]", exitCode), path)
}

// Canceled reports a target skipped because an upstream dependency
// failed.
func (p *Printer) Canceled(path string) {
	p.log.Println(p.red.Sprintf("[canceled]"), path)
}

// Line writes a plain, uncolored status line, for invocation-level
// messages ("build starting", "N targets up to date") that aren't
// per-target banners.
func (p *Printer) Line(format string, args ...interface{}) {
	p.log.Printf(format, args...)
}
