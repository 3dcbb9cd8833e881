package execution

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cosim-dev/cosim/sim"
	"github.com/cosim-dev/cosim/sim/graph"
	"github.com/cosim-dev/cosim/sim/pool"
)

// Seidel invokes a node only after all of its parents were invoked in the same
// step, and hands out input_time = end so consumers read what their producers
// just computed. Cycles must be broken before scheduling: a step in which no
// further node becomes eligible fails with ErrUnresolvedCycle.
type Seidel struct {
	base

	remaining []int
	invoked   []bool
	pool      *pool.FuturePool
}

type completion struct {
	index int
	err   error
}

// NewSeidel builds seidel-serial or seidel-parallel.
func NewSeidel(nodes []sim.Steppable, g *graph.Graph, opts Options) (*Seidel, error) {
	s := &Seidel{}
	if err := s.setup(nodes, g, opts); err != nil {
		return nil, err
	}
	s.remaining = make([]int, len(nodes))
	s.invoked = make([]bool, len(nodes))

	switch opts.Method {
	case SeidelSerial:
	case SeidelParallel:
		s.pool = pool.NewFuturePool(opts.Workers)
	default:
		return nil, fmt.Errorf("%w: %q is not a seidel method", ErrUnknownMethod, opts.Method)
	}

	var sources []string
	for i, n := range nodes {
		if len(s.parents[i]) == 0 {
			sources = append(sources, n.Name())
		}
	}
	s.log.Infof("%d nodes, start nodes %v", len(nodes), sources)
	return s, nil
}

func (s *Seidel) reset() {
	for i := range s.nodes {
		s.remaining[i] = len(s.parents[i])
		s.invoked[i] = false
	}
}

func (s *Seidel) eligible(i int) bool {
	return !s.invoked[i] && s.remaining[i] == 0
}

// release marks i invoked and decrements its children.
func (s *Seidel) release(i int) {
	s.invoked[i] = true
	for _, c := range s.children[i] {
		s.remaining[c]--
	}
}

func (s *Seidel) cycleError(completed int) error {
	var stuck []string
	for i, n := range s.nodes {
		if !s.invoked[i] {
			stuck = append(stuck, n.Name())
		}
	}
	return fmt.Errorf("%s: %w: %d of %d nodes invoked, blocked: %s",
		s.opts.Method, ErrUnresolvedCycle, completed, len(s.nodes), strings.Join(stuck, ", "))
}

// Invoke advances every node through [step.Start, step.End] in dependency order.
func (s *Seidel) Invoke(step sim.StepData) (uint64, error) {
	began := time.Now()
	s.debugStep(step)
	st := sim.NewStepDataWithTimes(step.Start, step.End, s.subStep(step), step.End, step.End)
	s.reset()

	var err error
	if s.pool == nil {
		err = s.sweep(st)
	} else {
		err = s.fanOut(st)
	}
	if err != nil {
		return 0, err
	}
	return s.finish(step, began), nil
}

// sweep repeats passes over the node list until every node ran. A node can
// become eligible after the pass went over its position, so one pass is not
// enough.
func (s *Seidel) sweep(st sim.StepData) error {
	completed := 0
	for completed < len(s.nodes) {
		progress := false
		for i, n := range s.nodes {
			if !s.eligible(i) {
				continue
			}
			if s.log.Logger.IsLevelEnabled(logrus.TraceLevel) {
				s.log.Tracef("Starting %d:%s", i, n.Name())
			}
			if _, err := n.Invoke(st); err != nil {
				return err
			}
			s.release(i)
			completed++
			progress = true
		}
		if !progress {
			return s.cycleError(completed)
		}
	}
	return nil
}

// fanOut launches every eligible node on the pool and reacts to completions:
// children whose last parent finished are launched next. After the first
// failure nothing new is launched; in-flight nodes are drained and the first
// error is returned. Panics arrive as pool.ErrTaskPanic naming the worker.
func (s *Seidel) fanOut(st sim.StepData) error {
	inbox := make(chan completion, len(s.nodes))
	inflight, completed := 0, 0
	var failure error

	launch := func(i int) {
		// claimed before it runs so it is not launched twice
		s.invoked[i] = true
		inflight++
		n := s.nodes[i]
		f := s.pool.Submit(func() error {
			_, err := n.Invoke(st)
			return err
		})
		// the future also settles when the pool is closed and never ran the task
		go func() { inbox <- completion{index: i, err: f.Wait()} }()
	}

	for i := range s.nodes {
		if s.eligible(i) {
			launch(i)
		}
	}
	for inflight > 0 {
		c := <-inbox
		inflight--
		if c.err != nil {
			if failure == nil {
				failure = c.err
			}
			continue
		}
		completed++
		for _, child := range s.children[c.index] {
			s.remaining[child]--
			if failure == nil && s.eligible(child) {
				launch(child)
			}
		}
	}
	if failure != nil {
		return failure
	}
	if completed < len(s.nodes) {
		return s.cycleError(completed)
	}
	return nil
}

// Close stops the worker pool of seidel-parallel.
func (s *Seidel) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
