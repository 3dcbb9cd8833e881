package trace

import (
	"testing"
	"time"
)

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalInvocations != 0 || summary.TotalWaves != 0 || len(summary.Nodes) != 0 {
		t.Errorf("expected zero summary, got %+v", summary)
	}
}

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceLevelInvocations)

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalInvocations != 0 {
		t.Errorf("expected 0 invocations, got %d", summary.TotalInvocations)
	}
	if len(summary.Nodes) != 0 {
		t.Error("expected no node summaries")
	}
}

func TestSummarize_PopulatedTrace_PerNodeStatistics(t *testing.T) {
	// GIVEN a trace with invocations of two nodes and two waves
	st := NewSimulationTrace(TraceLevelInvocations)
	st.RecordInvocation(InvocationRecord{Node: "b", Walltime: 2 * time.Millisecond})
	st.RecordInvocation(InvocationRecord{Node: "a", Walltime: 1 * time.Millisecond})
	st.RecordInvocation(InvocationRecord{Node: "a", Walltime: 3 * time.Millisecond})
	st.RecordWave(WaveRecord{Method: "seidel-serial", Walltime: 4 * time.Millisecond})
	st.RecordWave(WaveRecord{Method: "seidel-serial", Walltime: 6 * time.Millisecond})

	// WHEN summarized
	summary := Summarize(st)

	// THEN totals and per-node aggregates are correct and sorted by name
	if summary.TotalInvocations != 3 {
		t.Errorf("expected 3 invocations, got %d", summary.TotalInvocations)
	}
	if summary.TotalWaves != 2 || summary.WaveWalltime != 10*time.Millisecond {
		t.Errorf("unexpected wave totals: %d, %v", summary.TotalWaves, summary.WaveWalltime)
	}
	if len(summary.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(summary.Nodes))
	}
	a := summary.Nodes[0]
	if a.Node != "a" || a.Invocations != 2 {
		t.Errorf("unexpected first node %+v", a)
	}
	if a.MeanWalltime != 2*time.Millisecond || a.MaxWalltime != 3*time.Millisecond {
		t.Errorf("expected mean 2ms and max 3ms, got %v and %v", a.MeanWalltime, a.MaxWalltime)
	}
	if summary.Nodes[1].Node != "b" {
		t.Errorf("expected b second, got %s", summary.Nodes[1].Node)
	}
}
