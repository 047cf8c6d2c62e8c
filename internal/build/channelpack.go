// Package build implements the scheduler, worker and channel-pack
// construction (spec §4.J–§4.L): it drives a topologically-sorted
// NodePack to completion by spawning one goroutine per leaf and per
// rule node, wired together by single-producer single-consumer
// channels, and joins them with golang.org/x/sync/errgroup (teacher
// grounding: internal/mcp/integration_test.go).
package build

import (
	"github.com/rulerbuild/ruler/internal/graph"
	"github.com/rulerbuild/ruler/internal/ticket"
)

// Signal is what travels on every edge channel: a produced ticket, or
// the Cancel sentinel propagated downstream when an upstream worker
// fails (spec §5: "all outbound senders must be notified").
type Signal struct {
	Ticket   ticket.Ticket
	Canceled bool
}

// outboundEdge is one channel a rule node must send on when its
// target at SubIndex completes.
type outboundEdge struct {
	subIndex int
	ch       chan Signal
}

// ChannelPack is the fully wired set of edge channels for one
// NodePack (spec §4.L). Every channel has exactly one sender and one
// receiver.
type ChannelPack struct {
	LeafOutbound [][]chan Signal
	NodeOutbound [][]outboundEdge
	NodeInbound  [][]chan Signal
}

// BuildChannelPack allocates one buffered (capacity 1, so a sender
// never blocks on a not-yet-listening receiver) channel per
// dependency edge and files it into both endpoints' lists.
func BuildChannelPack(pack graph.NodePack) ChannelPack {
	cp := ChannelPack{
		LeafOutbound: make([][]chan Signal, len(pack.Leaves)),
		NodeOutbound: make([][]outboundEdge, len(pack.Nodes)),
		NodeInbound:  make([][]chan Signal, len(pack.Nodes)),
	}

	for nodeIndex, node := range pack.Nodes {
		inbound := make([]chan Signal, len(node.Sources))
		for srcIndex, src := range node.Sources {
			ch := make(chan Signal, 1)
			inbound[srcIndex] = ch
			switch src.Kind {
			case graph.Leaf:
				cp.LeafOutbound[src.LeafIndex] = append(cp.LeafOutbound[src.LeafIndex], ch)
			case graph.Pair:
				cp.NodeOutbound[src.NodeIndex] = append(cp.NodeOutbound[src.NodeIndex], outboundEdge{subIndex: src.SubIndex, ch: ch})
			}
		}
		cp.NodeInbound[nodeIndex] = inbound
	}

	return cp
}

// sendToAll sends sig on every channel in chans, for the leaf
// outbound case where every edge carries the same single ticket.
func sendToAll(chans []chan Signal, sig Signal) {
	for _, ch := range chans {
		ch <- sig
	}
}

// sendPerTarget sends, for each outbound edge, the signal for that
// edge's target sub-index.
func sendPerTarget(edges []outboundEdge, sigs []Signal) {
	for _, e := range edges {
		e.ch <- sigs[e.subIndex]
	}
}

// cancelAll sends the Cancel sentinel on every channel in chans.
func cancelAll(chans []chan Signal) {
	sendToAll(chans, Signal{Canceled: true})
}

// cancelEdges sends the Cancel sentinel on every outbound edge
// regardless of sub-index.
func cancelEdges(edges []outboundEdge) {
	for _, e := range edges {
		e.ch <- Signal{Canceled: true}
	}
}
