// Package graph holds the dependency graph between co-simulated nodes.
//
// Nodes live in an arena and are addressed by their stable integer id, which is
// the position at which they were added. Links are bidirectional: adding a child
// to A also records A as a parent of the child. Cycles are legal; they describe
// algebraic loops and are only reported, never rejected.
package graph

import (
	"fmt"
	"slices"
	"strings"
)

// Node is a vertex of the dependency graph.
type Node struct {
	ID       int
	Name     string
	children []int
	parents  []int
}

// Graph is an arena of nodes with symmetric parent/child links.
type Graph struct {
	nodes  []*Node
	byName map[string]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{byName: make(map[string]int)}
}

// AddNode appends a node and returns its id. Adding a name twice returns the
// existing id.
func (g *Graph) AddNode(name string) int {
	if id, ok := g.byName[name]; ok {
		return id
	}
	id := len(g.nodes)
	g.nodes = append(g.nodes, &Node{ID: id, Name: name})
	g.byName[name] = id
	return id
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node with the given id, or nil when it does not exist.
func (g *Graph) Node(id int) *Node {
	if !g.valid(id) {
		return nil
	}
	return g.nodes[id]
}

// Lookup returns the id of the named node.
func (g *Graph) Lookup(name string) (int, bool) {
	id, ok := g.byName[name]
	return id, ok
}

// Nodes returns all node ids in insertion order.
func (g *Graph) Nodes() []int {
	ids := make([]int, len(g.nodes))
	for i := range g.nodes {
		ids[i] = i
	}
	return ids
}

func (g *Graph) valid(id int) bool {
	return id >= 0 && id < len(g.nodes)
}

// AddChild links parent -> child. Idempotent.
func (g *Graph) AddChild(parent, child int) {
	if !g.valid(parent) || !g.valid(child) {
		return
	}
	p, c := g.nodes[parent], g.nodes[child]
	if !slices.Contains(p.children, child) {
		p.children = append(p.children, child)
	}
	if !slices.Contains(c.parents, parent) {
		c.parents = append(c.parents, parent)
	}
}

// AddParent links parent -> child seen from the child. Idempotent.
func (g *Graph) AddParent(child, parent int) {
	g.AddChild(parent, child)
}

// RemoveChild removes the parent -> child link in both directions.
func (g *Graph) RemoveChild(parent, child int) {
	if !g.valid(parent) || !g.valid(child) {
		return
	}
	p, c := g.nodes[parent], g.nodes[child]
	p.children = remove(p.children, child)
	c.parents = remove(c.parents, parent)
}

// RemoveParent removes the parent -> child link in both directions.
func (g *Graph) RemoveParent(child, parent int) {
	g.RemoveChild(parent, child)
}

// ReplaceChild rewires the edge id -> from into id -> to.
func (g *Graph) ReplaceChild(id, from, to int) {
	if !g.HasChild(id, from) || !g.valid(to) {
		return
	}
	g.RemoveChild(id, from)
	g.AddChild(id, to)
}

// ReplaceParent rewires the edge from -> id into to -> id.
func (g *Graph) ReplaceParent(id, from, to int) {
	if !g.HasParent(id, from) || !g.valid(to) {
		return
	}
	g.RemoveChild(from, id)
	g.AddChild(to, id)
}

// Replace rewires every edge of id that points at from so it points at to.
func (g *Graph) Replace(id, from, to int) {
	g.ReplaceChild(id, from, to)
	g.ReplaceParent(id, from, to)
}

// HasChild reports whether parent -> child exists.
func (g *Graph) HasChild(parent, child int) bool {
	return g.valid(parent) && slices.Contains(g.nodes[parent].children, child)
}

// HasParent reports whether parent -> child exists, asked from the child.
func (g *Graph) HasParent(child, parent int) bool {
	return g.valid(child) && slices.Contains(g.nodes[child].parents, parent)
}

// Children returns a copy of the child ids of id.
func (g *Graph) Children(id int) []int {
	if !g.valid(id) {
		return nil
	}
	return slices.Clone(g.nodes[id].children)
}

// Parents returns a copy of the parent ids of id.
func (g *Graph) Parents(id int) []int {
	if !g.valid(id) {
		return nil
	}
	return slices.Clone(g.nodes[id].parents)
}

func (g *Graph) NrChildren(id int) int {
	if !g.valid(id) {
		return 0
	}
	return len(g.nodes[id].children)
}

func (g *Graph) NrParents(id int) int {
	if !g.valid(id) {
		return 0
	}
	return len(g.nodes[id].parents)
}

// IsOrphan reports whether id has neither parents nor children.
func (g *Graph) IsOrphan(id int) bool {
	return g.NrChildren(id) == 0 && g.NrParents(id) == 0
}

// AllNodes returns every node reachable from id through child or parent links,
// including id itself, in breadth-first order.
func (g *Graph) AllNodes(id int) []int {
	if !g.valid(id) {
		return nil
	}
	seen := map[int]bool{id: true}
	queue := []int{id}
	var out []int
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		node := g.nodes[n]
		for _, next := range append(slices.Clone(node.children), node.parents...) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return out
}

// Ancestors returns the nodes without parents, the sources of a step.
func (g *Graph) Ancestors() []int {
	var out []int
	for _, n := range g.nodes {
		if len(n.parents) == 0 {
			out = append(out, n.ID)
		}
	}
	return out
}

// DOT renders the graph in Graphviz format.
func (g *Graph) DOT() string {
	var sb strings.Builder
	sb.WriteString("digraph{\n")
	for _, n := range g.nodes {
		for _, c := range n.children {
			fmt.Fprintf(&sb, "%q -> %q\n", n.Name, g.nodes[c].Name)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func remove(ids []int, id int) []int {
	return slices.DeleteFunc(ids, func(x int) bool { return x == id })
}
