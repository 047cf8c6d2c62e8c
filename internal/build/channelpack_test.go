package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulerbuild/ruler/internal/graph"
	"github.com/rulerbuild/ruler/internal/rule"
)

func TestBuildChannelPackWiresLeafToNode(t *testing.T) {
	rules := []rule.Rule{
		{Targets: []string{"out.txt"}, Sources: []string{"in.txt"}, Command: []string{"cp", "in.txt", "out.txt"}},
	}
	pack, err := graph.Sort(rules, "")
	require.NoError(t, err)

	cp := BuildChannelPack(pack)
	require.Len(t, cp.LeafOutbound, 1)
	require.Len(t, cp.NodeInbound, 1)
	assert.Len(t, cp.LeafOutbound[0], 1, "leaf's one consumer got exactly one outbound channel")
	assert.Len(t, cp.NodeInbound[0], 1, "node's one source got exactly one inbound channel")
	assert.True(t, cp.LeafOutbound[0][0] == cp.NodeInbound[0][0], "the edge's sender and receiver are the same channel")
}

func TestBuildChannelPackWiresProducerToConsumerBySubIndex(t *testing.T) {
	rules := []rule.Rule{
		{Targets: []string{"a.txt", "b.txt"}, Sources: []string{"in.txt"}, Command: []string{"gen"}},
		{Targets: []string{"out.txt"}, Sources: []string{"b.txt"}, Command: []string{"cp", "b.txt", "out.txt"}},
	}
	pack, err := graph.Sort(rules, "")
	require.NoError(t, err)

	cp := BuildChannelPack(pack)
	require.Len(t, cp.NodeOutbound[0], 1)
	assert.Equal(t, 1, cp.NodeOutbound[0][0].subIndex, "out.txt depends on producer's second target (index 1)")
	assert.True(t, cp.NodeOutbound[0][0].ch == cp.NodeInbound[1][0])
}
