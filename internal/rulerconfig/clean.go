package rulerconfig

import (
	"github.com/bmatcuk/doublestar/v4"

	rulererrors "github.com/rulerbuild/ruler/internal/errors"
)

// CleanExclusions is the set of glob patterns `ruler clean` skips: a
// target path matching any pattern is left on disk instead of being
// backed up into the cache. This is a clean-command convenience, not
// part of the rule grammar — the grammar itself has no globbing
// (spec §9).
type CleanExclusions struct {
	Patterns []string
}

// NewCleanExclusions builds a CleanExclusions from a literal pattern
// list, e.g. parsed from repeated --exclude flags.
func NewCleanExclusions(patterns []string) *CleanExclusions {
	return &CleanExclusions{Patterns: patterns}
}

// Validate rejects any pattern doublestar cannot compile.
func (c *CleanExclusions) Validate() error {
	for _, p := range c.Patterns {
		if !doublestar.ValidatePattern(p) {
			return rulererrors.New("rulerconfig.CleanExclusions.Validate", rulererrors.KindSystemError).WithPath(p)
		}
	}
	return nil
}

// Match reports whether path matches any configured exclusion
// pattern.
func (c *CleanExclusions) Match(path string) bool {
	for _, p := range c.Patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
