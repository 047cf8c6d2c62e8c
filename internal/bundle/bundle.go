// Package bundle parses the tab-indented path trees used inside rule
// files to declare a rule's targets and sources (spec §4.B).
package bundle

import (
	"sort"
	"strings"

	rulererrors "github.com/rulerbuild/ruler/internal/errors"
)

const indentChar = '\t'
const fileSeparator = "/"

// nodeKind distinguishes a leaf path from a parent directory carrying
// its own sub-bundle.
type nodeKind int

const (
	kindLeaf nodeKind = iota
	kindParent
)

type node struct {
	kind     nodeKind
	children Bundle // only meaningful when kind == kindParent
}

// Bundle is a parsed path tree: an unordered set of named nodes, each
// either a leaf path or a directory with its own children.
type Bundle struct {
	nodes map[string]node
}

func indented(line string) (string, bool) {
	if len(line) == 0 || line[0] != indentChar {
		return "", false
	}
	return line[1:], true
}

func isOnlyIndentation(s string) bool {
	for _, c := range s {
		if c != indentChar {
			return false
		}
	}
	return true
}

func addNode(nodes map[string]node, name string, n node) error {
	existing, ok := nodes[name]
	if !ok {
		nodes[name] = n
		return nil
	}
	if existing.kind != n.kind {
		return rulererrors.New("bundle.Parse", rulererrors.KindBundleContradiction)
	}
	if existing.kind == kindParent && !sameBundle(existing.children, n.children) {
		return rulererrors.New("bundle.Parse", rulererrors.KindBundleContradiction)
	}
	return nil
}

func sameBundle(a, b Bundle) bool {
	if len(a.nodes) != len(b.nodes) {
		return false
	}
	aPaths := a.flattenSorted("")
	bPaths := b.flattenSorted("")
	if len(aPaths) != len(bPaths) {
		return false
	}
	for i := range aPaths {
		if aPaths[i] != bPaths[i] {
			return false
		}
	}
	return true
}

func (b Bundle) flattenSorted(prefix string) []string {
	paths := b.pathsWithPrefix(prefix)
	sort.Strings(paths)
	return paths
}

// fromLines recursively parses the tree starting at one nesting
// depth, mirroring the reference grammar's line-driven state machine.
func fromLines(lines []string) (Bundle, error) {
	if len(lines) == 0 {
		return Bundle{nodes: map[string]node{}}, nil
	}

	if _, ok := indented(lines[0]); ok {
		return Bundle{}, rulererrors.New("bundle.Parse", rulererrors.KindBundleWrongIndent)
	}

	nodes := make(map[string]node)
	prevName := lines[0]
	i := 1
	for i < len(lines) {
		line := lines[i]
		rest, isIndented := indented(line)
		if !isIndented {
			if err := addNode(nodes, prevName, node{kind: kindLeaf}); err != nil {
				return Bundle{}, err
			}
			prevName = line
			i++
			continue
		}

		child := []string{rest}
		i++
		for i < len(lines) {
			line := lines[i]
			rest, isIndented := indented(line)
			if !isIndented {
				child = append(child, "")
				children, err := fromLines(child)
				if err != nil {
					return Bundle{}, err
				}
				if err := addNode(nodes, prevName, node{kind: kindParent, children: children}); err != nil {
					return Bundle{}, err
				}
				prevName = line
				i++
				break
			}
			child = append(child, rest)
			i++
		}
	}

	return Bundle{nodes: nodes}, nil
}

// Parse parses the bit-exact grammar from spec §4.B: lines terminated
// by "\n", one leading tab per nesting level. Failure modes are
// Empty, ContainsEmptyLines, DoesNotEndWithNewline, Contradiction and
// WrongIndent.
func Parse(text string) (Bundle, error) {
	if text == "" {
		return Bundle{}, rulererrors.New("bundle.Parse", rulererrors.KindBundleEmpty)
	}

	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] != "" {
		return Bundle{}, rulererrors.New("bundle.Parse", rulererrors.KindBundleDoesNotEndWithNewline)
	}

	for _, line := range lines[:len(lines)-1] {
		if isOnlyIndentation(line) {
			return Bundle{}, rulererrors.New("bundle.Parse", rulererrors.KindBundleContainsEmptyLines)
		}
	}

	return fromLines(lines)
}

// ParseLines parses an already-split, already-validated list of lines
// (no trailing sentinel, no embedded empty lines) directly into a
// Bundle. The rule parser (§4.C) uses this: by the time its Targets
// or Sources mode hands lines over, it has already rejected blank
// lines itself, so the remaining failure modes are Empty (no lines at
// all), WrongIndent and Contradiction.
func ParseLines(lines []string) (Bundle, error) {
	if len(lines) == 0 {
		return Bundle{}, rulererrors.New("bundle.ParseLines", rulererrors.KindBundleEmpty)
	}
	return fromLines(append(append([]string{}, lines...), ""))
}

// pathsWithPrefix visits this level's nodes in sorted-name order (the
// reference grammar keeps nodes in a BTreeMap keyed by name), so a
// parent's whole subtree is emitted contiguously before its next
// sorted sibling.
func (b Bundle) pathsWithPrefix(prefix string) []string {
	names := make([]string, 0, len(b.nodes))
	for name := range b.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(b.nodes))
	for _, name := range names {
		n := b.nodes[name]
		switch n.kind {
		case kindLeaf:
			paths = append(paths, prefix+name)
		case kindParent:
			paths = append(paths, n.children.pathsWithPrefix(prefix+name+fileSeparator)...)
		}
	}
	return paths
}

// PathStrings flattens the bundle into the ordered, slash-joined list
// of leaf paths spec §4.B describes, siblings in name order at every
// nesting level.
func (b Bundle) PathStrings() []string {
	return b.pathsWithPrefix("")
}
