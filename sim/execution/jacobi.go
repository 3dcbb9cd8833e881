package execution

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cosim-dev/cosim/sim"
	"github.com/cosim-dev/cosim/sim/graph"
	"github.com/cosim-dev/cosim/sim/pool"
)

// Jacobi invokes every node once per step with the same window: inputs are read
// at the step start, so nodes only see data from the previous step and may run
// in any order. The four methods differ only in how the invocations are spread
// over goroutines; all of them let every node finish before reporting the
// failure of the lowest-index node.
type Jacobi struct {
	base

	run    func(step sim.StepData) error
	future *pool.FuturePool
	spin   *pool.SpinPool
	tasks  []pool.Task
	errs   []error
}

// NewJacobi builds one of the jacobi-* methods.
func NewJacobi(nodes []sim.Steppable, g *graph.Graph, opts Options) (*Jacobi, error) {
	j := &Jacobi{}
	if err := j.setup(nodes, g, opts); err != nil {
		return nil, err
	}
	j.errs = make([]error, len(nodes))

	switch opts.Method {
	case JacobiSerial:
		j.run = j.serial
	case JacobiParallelStructured:
		j.run = j.structured
	case JacobiParallelFutures:
		j.future = pool.NewFuturePool(opts.Workers)
		j.run = j.futures
	case JacobiParallelSpin:
		j.spin = pool.NewSpinPool(opts.Workers)
		j.tasks = make([]pool.Task, len(nodes))
		j.run = j.spinning
	default:
		return nil, fmt.Errorf("%w: %q is not a jacobi method", ErrUnknownMethod, opts.Method)
	}
	j.log.Infof("%d nodes, %d workers", len(nodes), opts.Workers)
	return j, nil
}

// Invoke advances every node through [step.Start, step.End].
func (j *Jacobi) Invoke(step sim.StepData) (uint64, error) {
	began := time.Now()
	j.debugStep(step)
	s := sim.NewStepDataWithTimes(step.Start, step.End, j.subStep(step), step.Start, step.End)
	if err := j.run(s); err != nil {
		return 0, err
	}
	return j.finish(step, began), nil
}

func (j *Jacobi) serial(s sim.StepData) error {
	for _, n := range j.nodes {
		if _, err := n.Invoke(s); err != nil {
			return err
		}
	}
	return nil
}

func (j *Jacobi) structured(s sim.StepData) error {
	clear(j.errs)
	var g errgroup.Group
	if j.opts.Workers > 0 {
		g.SetLimit(j.opts.Workers)
	}
	for i, n := range j.nodes {
		i, n := i, n
		g.Go(func() error {
			_, j.errs[i] = n.Invoke(s)
			return nil
		})
	}
	_ = g.Wait()
	return firstError(j.errs)
}

func (j *Jacobi) futures(s sim.StepData) error {
	futures := make([]*pool.Future, len(j.nodes))
	for i, n := range j.nodes {
		n := n
		futures[i] = j.future.Submit(func() error {
			_, err := n.Invoke(s)
			return err
		})
	}
	for i, f := range futures {
		j.errs[i] = f.Wait()
	}
	return firstError(j.errs)
}

func (j *Jacobi) spinning(s sim.StepData) error {
	for i, n := range j.nodes {
		j.tasks[i] = pool.Task{Node: n, Step: s}
	}
	return j.spin.Run(j.tasks)
}

// Close stops the worker pool of pooled methods.
func (j *Jacobi) Close() {
	if j.future != nil {
		j.future.Close()
	}
	if j.spin != nil {
		j.spin.Close()
	}
}
