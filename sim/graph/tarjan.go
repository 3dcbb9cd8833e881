package graph

import (
	"fmt"
	"strings"
)

type tarjan struct {
	g       *Graph
	index   []int
	lowlink []int
	onStack []bool
	stack   []int
	next    int
	result  [][]int
}

// StronglyConnectedComponents runs Tarjan's algorithm over every node. Each
// component lists node ids; singletons are included. The result is a diagnostic
// and is never used to change scheduling.
func (g *Graph) StronglyConnectedComponents() [][]int {
	t := &tarjan{
		g:       g,
		index:   make([]int, len(g.nodes)),
		lowlink: make([]int, len(g.nodes)),
		onStack: make([]bool, len(g.nodes)),
	}
	for i := range t.index {
		t.index[i] = -1
	}
	for id := range g.nodes {
		if t.index[id] == -1 {
			t.connect(id)
		}
	}
	return t.result
}

func (t *tarjan) connect(v int) {
	t.index[v] = t.next
	t.lowlink[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.g.nodes[v].children {
		if t.index[w] == -1 {
			t.connect(w)
			t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
		} else if t.onStack[w] {
			t.lowlink[v] = min(t.lowlink[v], t.index[w])
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}
	var component []int
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		component = append(component, w)
		if w == v {
			break
		}
	}
	t.result = append(t.result, component)
}

// AlgebraicLoops returns the components that form a cycle: more than one node,
// or a single node linked to itself.
func (g *Graph) AlgebraicLoops() [][]int {
	var loops [][]int
	for _, c := range g.StronglyConnectedComponents() {
		if len(c) > 1 || g.HasChild(c[0], c[0]) {
			loops = append(loops, c)
		}
	}
	return loops
}

// FormatComponents renders components with node names for log output.
func (g *Graph) FormatComponents(components [][]int) string {
	var sb strings.Builder
	for i, c := range components {
		names := make([]string, len(c))
		for j, id := range c {
			names[j] = g.nodes[id].Name
		}
		fmt.Fprintf(&sb, "loop %d: %s\n", i, strings.Join(names, ", "))
	}
	return sb.String()
}
