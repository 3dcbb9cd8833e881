package trace

import (
	"sort"
	"time"
)

// NodeSummary aggregates the invocations of one node.
type NodeSummary struct {
	Node        string
	Invocations int
	Walltime    time.Duration
	MaxWalltime time.Duration
	// MeanWalltime is Walltime / Invocations.
	MeanWalltime time.Duration
}

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalInvocations int
	TotalWaves       int
	WaveWalltime     time.Duration
	Nodes            []NodeSummary // sorted by node name
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{}
	if st == nil {
		return summary
	}

	byNode := make(map[string]*NodeSummary)
	for _, r := range st.Invocations() {
		summary.TotalInvocations++
		ns, ok := byNode[r.Node]
		if !ok {
			ns = &NodeSummary{Node: r.Node}
			byNode[r.Node] = ns
		}
		ns.Invocations++
		ns.Walltime += r.Walltime
		if r.Walltime > ns.MaxWalltime {
			ns.MaxWalltime = r.Walltime
		}
	}
	for _, w := range st.Waves() {
		summary.TotalWaves++
		summary.WaveWalltime += w.Walltime
	}

	for _, ns := range byNode {
		ns.MeanWalltime = ns.Walltime / time.Duration(ns.Invocations)
		summary.Nodes = append(summary.Nodes, *ns)
	}
	sort.Slice(summary.Nodes, func(i, j int) bool { return summary.Nodes[i].Node < summary.Nodes[j].Node })
	return summary
}
