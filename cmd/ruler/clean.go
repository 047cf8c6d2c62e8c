package main

import (
	"fmt"
	"io"
	"path"

	"github.com/rulerbuild/ruler/internal/build"
	"github.com/rulerbuild/ruler/internal/cache"
	"github.com/rulerbuild/ruler/internal/graph"
	"github.com/rulerbuild/ruler/internal/rule"
	"github.com/rulerbuild/ruler/internal/rulerconfig"
	"github.com/rulerbuild/ruler/internal/system"
)

// runClean backs up every targeted rule's outputs into the local
// cache and removes them from the tree, skipping any target matched
// by exclusions. Cache entries are never removed once written — a
// clean is always a conservative move, never a delete.
func runClean(sys system.System, opts build.Options, exclusions *rulerconfig.CleanExclusions) error {
	if err := exclusions.Validate(); err != nil {
		return err
	}

	files := make([]rule.FileContent, 0, len(opts.RuleFiles))
	for _, rf := range opts.RuleFiles {
		f, err := sys.Open(rf)
		if err != nil {
			return err
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return err
		}
		files = append(files, rule.FileContent{Filename: rf, Content: string(content)})
	}

	rules, err := rule.ParseAll(files)
	if err != nil {
		return err
	}

	pack, err := graph.Sort(rules, opts.Goal)
	if err != nil {
		return err
	}

	c, err := cache.Open(sys, path.Join(opts.Directory, "cache"))
	if err != nil {
		return err
	}

	for _, node := range pack.Nodes {
		for _, target := range node.Targets {
			if exclusions.Match(target) {
				continue
			}
			if !sys.IsFile(target) {
				continue
			}
			if _, err := c.BackUpFile(target); err != nil {
				return err
			}
			fmt.Printf("cleaned %s\n", target)
		}
	}
	return nil
}
