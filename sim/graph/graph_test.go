package graph

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diamond() (*Graph, int, int, int, int) {
	g := New()
	a, b, c, d := g.AddNode("A"), g.AddNode("B"), g.AddNode("C"), g.AddNode("D")
	g.AddChild(a, b)
	g.AddChild(a, c)
	g.AddChild(b, d)
	g.AddChild(c, d)
	return g, a, b, c, d
}

func TestAddNode_IDsArePositions(t *testing.T) {
	g := New()
	assert.Equal(t, 0, g.AddNode("x"))
	assert.Equal(t, 1, g.AddNode("y"))
	assert.Equal(t, 0, g.AddNode("x"), "re-adding a name returns the existing id")
	assert.Equal(t, 2, g.Len())

	id, ok := g.Lookup("y")
	require.True(t, ok)
	assert.Equal(t, "y", g.Node(id).Name)
	assert.Nil(t, g.Node(7))
}

func TestAddChild_SymmetricAndIdempotent(t *testing.T) {
	g := New()
	a, b := g.AddNode("A"), g.AddNode("B")

	g.AddChild(a, b)
	g.AddChild(a, b)
	g.AddParent(b, a)

	assert.True(t, g.HasChild(a, b))
	assert.True(t, g.HasParent(b, a))
	assert.Equal(t, 1, g.NrChildren(a))
	assert.Equal(t, 1, g.NrParents(b))
	assert.False(t, g.HasChild(b, a))
}

func TestRemoveChild_RemovesBothDirections(t *testing.T) {
	g, a, b, _, _ := diamond()

	g.RemoveParent(b, a)

	assert.False(t, g.HasChild(a, b))
	assert.False(t, g.HasParent(b, a))
	assert.Equal(t, 0, g.NrParents(b))
}

func TestReplaceChild_RewiresEndpoint(t *testing.T) {
	g := New()
	a, b, c := g.AddNode("A"), g.AddNode("B"), g.AddNode("C")
	g.AddChild(a, b)

	g.ReplaceChild(a, b, c)

	assert.False(t, g.HasChild(a, b))
	assert.False(t, g.HasParent(b, a))
	assert.True(t, g.HasChild(a, c))
	assert.True(t, g.HasParent(c, a))
}

func TestReplaceParent_RewiresEndpoint(t *testing.T) {
	g := New()
	a, b, c := g.AddNode("A"), g.AddNode("B"), g.AddNode("C")
	g.AddChild(a, c)

	g.ReplaceParent(c, a, b)

	assert.Equal(t, []int{b}, g.Parents(c))
	assert.Empty(t, g.Children(a))
}

func TestMissingNodes_ReturnEmptyResults(t *testing.T) {
	g := New()
	g.AddChild(3, 4)
	g.ReplaceChild(0, 1, 2)

	assert.Nil(t, g.Children(9))
	assert.Nil(t, g.Parents(-1))
	assert.Nil(t, g.AllNodes(2))
	assert.Equal(t, 0, g.NrParents(5))
	assert.False(t, g.HasParent(5, 1))
}

func TestAllNodes_ReachesThroughEitherDirection(t *testing.T) {
	g, _, _, _, d := diamond()
	lonely := g.AddNode("E")

	got := g.AllNodes(d)
	sort.Ints(got)

	assert.Equal(t, []int{0, 1, 2, 3}, got)
	assert.Equal(t, []int{lonely}, g.AllNodes(lonely))
	assert.True(t, g.IsOrphan(lonely))
}

func TestAncestors_NodesWithoutParents(t *testing.T) {
	g, a, _, _, _ := diamond()
	e := g.AddNode("E")

	assert.Equal(t, []int{a, e}, g.Ancestors())
}

func TestStronglyConnectedComponents_ReportsLoops(t *testing.T) {
	// GIVEN a chain A -> B <-> C -> D and a self loop on E
	g := New()
	a, b, c, d, e := g.AddNode("A"), g.AddNode("B"), g.AddNode("C"), g.AddNode("D"), g.AddNode("E")
	g.AddChild(a, b)
	g.AddChild(b, c)
	g.AddChild(c, b)
	g.AddChild(c, d)
	g.AddChild(e, e)

	// WHEN components are computed
	sccs := g.StronglyConnectedComponents()
	loops := g.AlgebraicLoops()

	// THEN every node is in exactly one component and only B/C and E are loops
	total := 0
	for _, c := range sccs {
		total += len(c)
	}
	assert.Equal(t, g.Len(), total)
	require.Len(t, loops, 2)
	var sizes []int
	for _, l := range loops {
		sizes = append(sizes, len(l))
	}
	sort.Ints(sizes)
	assert.Equal(t, []int{1, 2}, sizes)
	assert.Contains(t, g.FormatComponents(loops), "E")
}

func TestDOT_ListsEdges(t *testing.T) {
	g, _, _, _, _ := diamond()
	dot := g.DOT()
	assert.Contains(t, dot, "\"A\" -> \"B\"")
	assert.Contains(t, dot, "\"C\" -> \"D\"")
}
