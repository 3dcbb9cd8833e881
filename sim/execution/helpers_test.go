package execution

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cosim-dev/cosim/sim"
	"github.com/cosim-dev/cosim/sim/component"
	"github.com/cosim-dev/cosim/sim/graph"
	"github.com/cosim-dev/cosim/sim/model"
)

// callLog records invocation order across goroutines.
type callLog struct {
	mu    sync.Mutex
	names []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	l.names = append(l.names, name)
	l.mu.Unlock()
}

func (l *callLog) position(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, n := range l.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (l *callLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.names)
}

// spy is a Steppable that records what it was asked to do.
type spy struct {
	sim.Invocable
	calls *callLog
	fail  error
	stuck bool

	mu    sync.Mutex
	steps []sim.StepData
	inits int
}

func newSpy(name string, delay uint64, calls *callLog) *spy {
	p := &spy{calls: calls}
	p.Setup(name, delay)
	return p
}

func (p *spy) EnterInit() error { p.inits++; return nil }
func (p *spy) ExitInit() error  { p.inits++; return nil }

func (p *spy) Invoke(step sim.StepData) (uint64, error) {
	if p.calls != nil {
		p.calls.add(p.Name())
	}
	p.mu.Lock()
	p.steps = append(p.steps, step)
	p.mu.Unlock()
	if !p.stuck {
		p.SetCurrentTime(step.End)
	}
	return step.OutputTime, p.fail
}

func (p *spy) recorded() []sim.StepData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sim.StepData(nil), p.steps...)
}

// spies creates named spies, a graph over them and the edges parent->child.
func spies(calls *callLog, names []string, edges [][2]string) ([]*spy, []sim.Steppable, *graph.Graph) {
	g := graph.New()
	var ps []*spy
	var nodes []sim.Steppable
	for _, n := range names {
		g.AddNode(n)
		p := newSpy(n, 0, calls)
		ps = append(ps, p)
		nodes = append(nodes, p)
	}
	for _, e := range edges {
		parent, _ := g.Lookup(e[0])
		child, _ := g.Lookup(e[1])
		g.AddChild(parent, child)
	}
	return ps, nodes, g
}

type wire struct {
	from, output, to, input string
}

type part struct {
	name, kind string
	starts     map[string]string
}

// buildSystem wires component models and returns them with their graph.
func buildSystem(t *testing.T, seed int64, parts []part, wires []wire) ([]*model.Model, []sim.Steppable, *graph.Graph) {
	t.Helper()
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
	g := graph.New()
	byName := map[string]*model.Model{}
	var models []*model.Model
	var nodes []sim.Steppable
	for _, p := range parts {
		m, err := component.NewModel(p.name, p.kind, p.starts, model.Config{}, rng)
		require.NoError(t, err)
		g.AddNode(p.name)
		byName[p.name] = m
		models = append(models, m)
		nodes = append(nodes, m)
	}
	for _, w := range wires {
		require.NoError(t, byName[w.to].ConnectFrom(byName[w.from], w.output, w.input, 0))
		parent, _ := g.Lookup(w.from)
		child, _ := g.Lookup(w.to)
		g.AddChild(parent, child)
	}
	return models, nodes, g
}

// loopSystem has an algebraic loop (sum -> gain -> integrator -> sum), a
// stochastic source and non-real signals.
func loopSystem(t *testing.T, seed int64) ([]*model.Model, []sim.Steppable, *graph.Graph) {
	return buildSystem(t, seed,
		[]part{
			{"sine", "sine", map[string]string{"frequency": "2"}},
			{"sum", "sum", nil},
			{"gain", "gain", map[string]string{"k": "-0.5"}},
			{"integrator", "integrator", map[string]string{"x0": "1"}},
			{"noise", "noise", map[string]string{"stddev": "0.1"}},
			{"threshold", "threshold", map[string]string{"level": "0.05"}},
			{"counter", "counter", nil},
		},
		[]wire{
			{"sine", "y", "sum", "u1"},
			{"integrator", "y", "sum", "u2"},
			{"sum", "y", "gain", "u"},
			{"gain", "y", "integrator", "u"},
			{"noise", "y", "threshold", "u"},
		})
}

// snapshot serializes every output area of models.
func snapshot(models []*model.Model) []byte {
	var buf bytes.Buffer
	for _, m := range models {
		out := m.OutputStorage()
		fmt.Fprintf(&buf, "%s:%d\n", out.Name(), out.Size())
		for a := 0; a < out.Size(); a++ {
			_ = binary.Write(&buf, binary.LittleEndian, out.Time(a))
			for _, sig := range out.Signals() {
				if sig.Type.Size() == 0 {
					buf.WriteString(out.StringValue(a, sig.Index))
					continue
				}
				buf.Write(out.Item(a, sig.Index))
			}
		}
	}
	return buf.Bytes()
}

type countingCollector struct {
	mu    sync.Mutex
	waits int
}

func (c *countingCollector) WaitUntilDone() {
	c.mu.Lock()
	c.waits++
	c.mu.Unlock()
}
