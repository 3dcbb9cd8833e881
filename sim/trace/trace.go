package trace

import "sync"

// TraceLevel controls the verbosity of invocation tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelWaves captures one record per executor step.
	TraceLevelWaves TraceLevel = "waves"
	// TraceLevelInvocations additionally captures every node invocation.
	TraceLevelInvocations TraceLevel = "invocations"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:        true,
	TraceLevelWaves:       true,
	TraceLevelInvocations: true,
	"":                    true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// SimulationTrace collects records during a run. Nodes invoked from worker
// goroutines record concurrently, so appends are serialized.
type SimulationTrace struct {
	Level TraceLevel

	mu          sync.Mutex
	invocations []InvocationRecord
	waves       []WaveRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(level TraceLevel) *SimulationTrace {
	return &SimulationTrace{Level: level}
}

// RecordInvocation appends an invocation record when the level includes invocations.
func (st *SimulationTrace) RecordInvocation(r InvocationRecord) {
	if st.Level != TraceLevelInvocations {
		return
	}
	st.mu.Lock()
	st.invocations = append(st.invocations, r)
	st.mu.Unlock()
}

// RecordWave appends a wave record unless tracing is disabled.
func (st *SimulationTrace) RecordWave(r WaveRecord) {
	if st.Level == TraceLevelNone || st.Level == "" {
		return
	}
	st.mu.Lock()
	st.waves = append(st.waves, r)
	st.mu.Unlock()
}

// Invocations returns a copy of the invocation records in arrival order.
func (st *SimulationTrace) Invocations() []InvocationRecord {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]InvocationRecord(nil), st.invocations...)
}

// Waves returns a copy of the wave records.
func (st *SimulationTrace) Waves() []WaveRecord {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]WaveRecord(nil), st.waves...)
}
