package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnionFind_Basics(t *testing.T) {
	u := NewUnionFind("A", "B", "C", "D")
	assert.Equal(t, 4, u.Len())
	assert.False(t, u.Connected("A", "B"))

	assert.True(t, u.Union("A", "B"))
	assert.False(t, u.Union("B", "A"), "already joined")
	assert.True(t, u.Connected("A", "B"))
	assert.False(t, u.Connected("A", "C"))

	assert.True(t, u.Union("C", "D"))
	assert.True(t, u.Union("B", "D"))
	assert.True(t, u.Connected("A", "C"))
}

func TestUnionFind_FindAddsUnknown(t *testing.T) {
	u := NewUnionFind()
	assert.Equal(t, "X", u.Find("X"))
	assert.Equal(t, 1, u.Len())
}

func TestUnionFind_GroupsSortedAndFiltered(t *testing.T) {
	u := NewUnionFind("solo")
	u.Union("C", "B")
	u.Union("Z", "A")
	u.Union("Y", "Z")

	assert.Equal(t, [][]string{
		{"A", "Y", "Z"},
		{"B", "C"},
	}, u.Groups(2))

	assert.Len(t, u.Groups(1), 3)
}

func TestUnionFind_GroupsIndependentOfUnionOrder(t *testing.T) {
	edges := [][2]string{{"A", "B"}, {"C", "D"}, {"B", "C"}, {"E", "F"}, {"G", "E"}}

	forward := NewUnionFind()
	for _, e := range edges {
		forward.Union(e[0], e[1])
	}

	backward := NewUnionFind()
	for i := len(edges) - 1; i >= 0; i-- {
		backward.Union(edges[i][1], edges[i][0])
	}

	assert.Equal(t, forward.Groups(2), backward.Groups(2))
	assert.Equal(t, [][]string{{"A", "B", "C", "D"}, {"E", "F", "G"}}, forward.Groups(2))
}
