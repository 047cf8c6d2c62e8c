// Package graph topologically sorts parsed rules into a NodePack: a
// dependency-ordered list of Nodes plus the leaf source paths that no
// rule produces (spec §4.D).
package graph

import (
	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/rule"
	"github.com/rulerbuild/ruler/internal/ticket"
)

// SourceIndexKind distinguishes a leaf reference from a reference
// into another rule node's target list.
type SourceIndexKind int

const (
	Leaf SourceIndexKind = iota
	Pair
)

// SourceIndex resolves one of a node's declared sources to either a
// leaf (by index into NodePack.Leaves) or a producing node's target
// slot (by node index and sub-index into that node's Targets).
type SourceIndex struct {
	Kind      SourceIndexKind
	LeafIndex int
	NodeIndex int
	SubIndex  int
}

// Node is one rule, post-sort: its targets, command, rule-ticket and
// resolved source references, in the rule's declared source order.
type Node struct {
	Targets    []string
	Command    []string
	RuleTicket ticket.Ticket
	Sources    []SourceIndex
}

// NodePack is the topologically-sorted graph: every producer appears
// in Nodes before every consumer.
type NodePack struct {
	Leaves []string
	Nodes  []Node
}

type color int

const (
	white color = iota
	grey
	black
)

// Sort builds a NodePack from a flat list of rules. If goal is
// non-empty, only the sub-DAG rooted at the rule producing goal is
// traversed; an empty goal traverses every rule.
func Sort(rules []rule.Rule, goal string) (NodePack, error) {
	targetToRule := make(map[string]int, len(rules))
	for i, r := range rules {
		for _, t := range r.Targets {
			targetToRule[t] = i
		}
	}

	var roots []int
	if goal != "" {
		idx, ok := targetToRule[goal]
		if !ok {
			return NodePack{}, rulererrors.New("graph.Sort", rulererrors.KindTargetNotFound).WithPath(goal)
		}
		roots = []int{idx}
	} else {
		roots = make([]int, len(rules))
		for i := range rules {
			roots[i] = i
		}
	}

	s := &sorter{
		rules:        rules,
		targetToRule: targetToRule,
		colors:       make([]color, len(rules)),
		ruleToNode:   make(map[int]int, len(rules)),
		leafIndex:    make(map[string]int),
	}

	for _, root := range roots {
		if s.colors[root] == white {
			if err := s.visit(root); err != nil {
				return NodePack{}, err
			}
		}
	}

	return NodePack{Leaves: s.leaves, Nodes: s.nodes}, nil
}

type sorter struct {
	rules        []rule.Rule
	targetToRule map[string]int
	colors       []color
	stack        []int // rule indices currently on the DFS path, for cycle reporting

	leaves    []string
	leafIndex map[string]int

	nodes      []Node
	ruleToNode map[int]int
}

func (s *sorter) visit(ruleIndex int) error {
	s.colors[ruleIndex] = grey
	s.stack = append(s.stack, ruleIndex)

	r := s.rules[ruleIndex]
	sources := make([]SourceIndex, len(r.Sources))
	for i, src := range r.Sources {
		producerIndex, isTarget := s.targetToRule[src]
		if !isTarget {
			sources[i] = SourceIndex{Kind: Leaf, LeafIndex: s.leafOf(src)}
			continue
		}

		switch s.colors[producerIndex] {
		case grey:
			return rulererrors.New("graph.Sort", rulererrors.KindCycleDetected).WithPaths(s.cyclePaths(producerIndex))
		case white:
			if err := s.visit(producerIndex); err != nil {
				return err
			}
		}

		nodeIndex := s.ruleToNode[producerIndex]
		sources[i] = SourceIndex{Kind: Pair, NodeIndex: nodeIndex, SubIndex: subIndexOf(s.rules[producerIndex], src)}
	}

	s.nodes = append(s.nodes, Node{
		Targets:    r.Targets,
		Command:    r.Command,
		RuleTicket: r.Ticket(),
		Sources:    sources,
	})
	s.ruleToNode[ruleIndex] = len(s.nodes) - 1

	s.stack = s.stack[:len(s.stack)-1]
	s.colors[ruleIndex] = black
	return nil
}

func (s *sorter) leafOf(path string) int {
	if idx, ok := s.leafIndex[path]; ok {
		return idx
	}
	idx := len(s.leaves)
	s.leaves = append(s.leaves, path)
	s.leafIndex[path] = idx
	return idx
}

func subIndexOf(producer rule.Rule, target string) int {
	for i, t := range producer.Targets {
		if t == target {
			return i
		}
	}
	return -1
}

// cyclePaths renders one cycle as its member rules' first targets,
// starting from where the cycle closes.
func (s *sorter) cyclePaths(closesAt int) []string {
	start := 0
	for i, idx := range s.stack {
		if idx == closesAt {
			start = i
			break
		}
	}
	paths := make([]string, 0, len(s.stack)-start+1)
	for _, idx := range s.stack[start:] {
		if len(s.rules[idx].Targets) > 0 {
			paths = append(paths, s.rules[idx].Targets[0])
		}
	}
	if len(s.rules[closesAt].Targets) > 0 {
		paths = append(paths, s.rules[closesAt].Targets[0])
	}
	return paths
}
