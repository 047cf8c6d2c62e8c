// Package rule parses rule files (spec §4.C) into Rule values and
// computes each rule's content-addressing rule-ticket (spec §4.A).
package rule

import (
	"sort"
	"strings"

	"github.com/rulerbuild/ruler/internal/bundle"
	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/ticket"
)

// Rule is the parsed (targets, sources, command) triple from one rule
// block.
type Rule struct {
	Targets []string
	Sources []string
	Command []string
}

func isSorted(data []string) bool {
	for i := 1; i < len(data); i++ {
		if data[i-1] > data[i] {
			return false
		}
	}
	return true
}

// Ticket computes the rule-ticket: SHA-512 over targets (sorted),
// sources (sorted) and command (original order), each list separated
// by "\n:\n" (spec §4.A). Sorting targets and sources makes the
// ticket insensitive to their declared order; the command is hashed
// as declared because argument order is meaningful.
func (r Rule) Ticket() ticket.Ticket {
	targets := r.Targets
	sources := r.Sources
	if !isSorted(targets) {
		targets = append([]string(nil), targets...)
		sort.Strings(targets)
	}
	if !isSorted(sources) {
		sources = append([]string(nil), sources...)
		sort.Strings(sources)
	}

	f := ticket.NewFactory()
	absorbList(f, targets)
	absorbList(f, sources)
	absorbList(f, r.Command)
	return f.Result()
}

func absorbList(f *ticket.Factory, items []string) {
	for _, item := range items {
		f.AbsorbString(item)
		f.AbsorbString("\n")
	}
	f.AbsorbString("\n:\n")
}

type parseMode int

const (
	modePending parseMode = iota
	modeTargets
	modeSources
	modeCommand
)

// Parse parses one rule file's content into the Rules it declares.
// filename is used only for error messages (line numbers are
// 1-indexed).
func Parse(filename, content string) ([]Rule, error) {
	var rules []Rule
	var targetLines, sourceLines, command []string
	mode := modePending
	lineNumber := 1

	lines := strings.Split(content, "\n")
	// A trailing newline ends the last line; it does not open an empty
	// one, so a block cut short after it reports end-of-file.
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	for _, line := range lines {
		switch mode {
		case modePending:
			switch line {
			case "":
				// skip blank separator lines between rule blocks
			case ":":
				return nil, parseErr(rulererrors.KindUnexpectedExtraColon, filename, lineNumber)
			default:
				mode = modeTargets
				targetLines = append(targetLines, line)
			}

		case modeTargets:
			switch line {
			case "":
				return nil, parseErr(rulererrors.KindUnexpectedEmptyLine, filename, lineNumber)
			case ":":
				mode = modeSources
			default:
				targetLines = append(targetLines, line)
			}

		case modeSources:
			switch line {
			case "":
				return nil, parseErr(rulererrors.KindUnexpectedEmptyLine, filename, lineNumber)
			case ":":
				mode = modeCommand
			default:
				sourceLines = append(sourceLines, line)
			}

		case modeCommand:
			switch line {
			case "":
				return nil, parseErr(rulererrors.KindUnexpectedEmptyLine, filename, lineNumber)
			case ":":
				mode = modePending

				targetBundle, err := bundle.ParseLines(targetLines)
				if err != nil {
					return nil, wrapBundleErr(filename, err)
				}
				sourceBundle, err := bundle.ParseLines(sourceLines)
				if err != nil {
					return nil, wrapBundleErr(filename, err)
				}

				rules = append(rules, Rule{
					Targets: targetBundle.PathStrings(),
					Sources: sourceBundle.PathStrings(),
					Command: append([]string(nil), command...),
				})

				targetLines, sourceLines, command = nil, nil, nil
			default:
				command = append(command, line)
			}
		}

		lineNumber++
	}

	switch mode {
	case modePending:
		return rules, nil
	case modeTargets:
		return nil, parseErr(rulererrors.KindUnexpectedEOFMidTargets, filename, lineNumber)
	case modeSources:
		return nil, parseErr(rulererrors.KindUnexpectedEOFMidSources, filename, lineNumber)
	default:
		return nil, parseErr(rulererrors.KindUnexpectedEOFMidCommand, filename, lineNumber)
	}
}

// ParseAll parses several rule files (name, content pairs) and
// concatenates their rules, failing on the first bad file.
func ParseAll(files []FileContent) ([]Rule, error) {
	var all []Rule
	for _, f := range files {
		rules, err := Parse(f.Filename, f.Content)
		if err != nil {
			return nil, err
		}
		all = append(all, rules...)
	}
	return all, nil
}

// FileContent pairs a rule file's name with its already-read content.
type FileContent struct {
	Filename string
	Content  string
}

func parseErr(kind rulererrors.Kind, filename string, line int) error {
	return rulererrors.New("rule.Parse", kind).WithPath(filename).WithLine(line)
}

func wrapBundleErr(filename string, err error) error {
	if e, ok := err.(*rulererrors.Error); ok {
		return e.WithPath(filename)
	}
	return err
}
