// Package execution implements the scheduling strategies that advance a set of
// nodes through one macro step.
//
// Every strategy is itself a sim.Steppable, so an executor can be nested inside
// another one. Jacobi methods hand every node the same window and read inputs
// from the previous step; Gauss-Seidel methods follow the dependency graph and
// let a node read what its parents produced in the same step; the delay-group
// method runs configured groups concurrently and their members serially.
package execution

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cosim-dev/cosim/sim"
	"github.com/cosim-dev/cosim/sim/graph"
	"github.com/cosim-dev/cosim/sim/trace"
)

// Collector is the result recorder an executor can wait on after each step.
type Collector interface {
	WaitUntilDone()
}

// WaveTracer receives one record per executed macro step.
type WaveTracer interface {
	RecordWave(r trace.WaveRecord)
}

// FeedThrougher is implemented by nodes that can propagate inputs to outputs
// at the start time without stepping.
type FeedThrougher interface {
	DirectFeedthrough(start uint64) error
}

// Executor is a configured strategy.
type Executor interface {
	sim.Steppable
	Method() Method
	Nodes() []sim.Steppable
	// Init runs EnterInit and ExitInit.
	Init() error
	SetRecorder(c Collector)
	SetTracer(t WaveTracer)
	// Close releases worker pools. The executor cannot be invoked afterwards.
	Close()
}

// base holds the node set and the state shared by every strategy. Nodes get
// contiguous ids 0..N-1 in registration order.
type base struct {
	sim.Invocable

	opts     Options
	nodes    []sim.Steppable
	index    map[string]int
	parents  [][]int
	children [][]int

	recorder Collector
	tracer   WaveTracer
	log      *logrus.Entry
}

// setup captures nodes and translates the edges of g between them into node
// indices. Nodes missing from g have no edges; g may be nil.
func (b *base) setup(nodes []sim.Steppable, g *graph.Graph, opts Options) error {
	b.Setup(string(opts.Method), 0)
	b.opts = opts
	b.nodes = nodes
	b.log = logrus.WithField("executor", string(opts.Method))
	b.index = make(map[string]int, len(nodes))
	b.parents = make([][]int, len(nodes))
	b.children = make([][]int, len(nodes))

	for i, n := range nodes {
		if _, dup := b.index[n.Name()]; dup {
			return fmt.Errorf("%s: node %q registered twice", opts.Method, n.Name())
		}
		n.SetID(i)
		b.index[n.Name()] = i
	}
	if g == nil {
		return nil
	}
	for i, n := range nodes {
		gid, ok := g.Lookup(n.Name())
		if !ok {
			continue
		}
		for _, c := range g.Children(gid) {
			if j, ok := b.index[g.Node(c).Name]; ok {
				b.children[i] = append(b.children[i], j)
				b.parents[j] = append(b.parents[j], i)
			}
		}
	}
	b.log.Debugf("%d nodes", len(nodes))
	return nil
}

func (b *base) Method() Method { return b.opts.Method }

func (b *base) Nodes() []sim.Steppable { return b.nodes }

func (b *base) SetRecorder(c Collector) { b.recorder = c }

func (b *base) SetTracer(t WaveTracer) { b.tracer = t }

func (b *base) Close() {}

func (b *base) lookup(name string) (int, error) {
	i, ok := b.index[name]
	if !ok {
		return -1, fmt.Errorf("%s: %w: %q", b.opts.Method, ErrNodeNotFound, name)
	}
	return i, nil
}

// EnterInit enters initialization on every node in registration order.
func (b *base) EnterInit() error {
	for _, n := range b.nodes {
		if err := n.EnterInit(); err != nil {
			return err
		}
	}
	b.SetCurrentTime(b.opts.StartTime)
	return nil
}

// ExitInit runs the optional direct feed-through, then leaves initialization on
// every node.
func (b *base) ExitInit() error {
	if b.opts.FeedThrough {
		if err := b.feedThrough(); err != nil {
			return err
		}
	}
	for _, n := range b.nodes {
		if err := n.ExitInit(); err != nil {
			return err
		}
	}
	return nil
}

func (b *base) Init() error {
	if err := b.EnterInit(); err != nil {
		return err
	}
	return b.ExitInit()
}

// feedThrough evaluates nodes parents first so each sees the start outputs of
// its producers. Nodes on a cycle are evaluated last in registration order.
func (b *base) feedThrough() error {
	for _, i := range b.dependencyOrder() {
		ft, ok := b.nodes[i].(FeedThrougher)
		if !ok {
			continue
		}
		if err := ft.DirectFeedthrough(b.opts.StartTime); err != nil {
			return err
		}
	}
	return nil
}

func (b *base) dependencyOrder() []int {
	remaining := make([]int, len(b.nodes))
	var queue, order []int
	for i := range b.nodes {
		remaining[i] = len(b.parents[i])
		if remaining[i] == 0 {
			queue = append(queue, i)
		}
	}
	done := make([]bool, len(b.nodes))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		done[i] = true
		order = append(order, i)
		for _, c := range b.children[i] {
			remaining[c]--
			if remaining[c] == 0 {
				queue = append(queue, c)
			}
		}
	}
	for i := range b.nodes {
		if !done[i] {
			order = append(order, i)
		}
	}
	return order
}

// subStep is the timestep handed to nodes for step.
func (b *base) subStep(step sim.StepData) uint64 {
	if b.opts.SubStep > 0 {
		return b.opts.SubStep
	}
	if step.Timestep > 0 {
		return step.Timestep
	}
	return step.End - step.Start
}

// finish waits for the recorder if configured and books the step.
func (b *base) finish(step sim.StepData, began time.Time) uint64 {
	if b.opts.WaitForRecorder && b.recorder != nil {
		b.recorder.WaitUntilDone()
	}
	spent := time.Since(began)
	b.AddWalltime(spent)
	b.SetCurrentTime(step.End)
	if b.tracer != nil {
		b.tracer.RecordWave(trace.WaveRecord{
			Method:   string(b.opts.Method),
			Start:    step.Start,
			End:      step.End,
			Walltime: spent,
		})
	}
	return step.End
}

func (b *base) debugStep(step sim.StepData) {
	if b.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		b.log.Debugf("Invoke %s", step)
	}
}

// firstError returns the error with the lowest node index.
func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
