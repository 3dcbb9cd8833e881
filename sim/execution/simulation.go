package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cosim-dev/cosim/sim"
)

// Simulation drives an executor from start to stop in macro steps.
type Simulation struct {
	exec     Executor
	start    uint64
	stop     uint64
	timestep uint64
	steps    int
}

// NewSimulation checks the time frame. The last step is shortened to end at stop.
func NewSimulation(exec Executor, start, stop, timestep uint64) (*Simulation, error) {
	if timestep == 0 {
		return nil, ErrZeroTimestep
	}
	if stop < start {
		return nil, fmt.Errorf("%w: stop %d before start %d", sim.ErrInvalidStep, stop, start)
	}
	return &Simulation{exec: exec, start: start, stop: stop, timestep: timestep}, nil
}

// Steps returns the number of completed macro steps.
func (s *Simulation) Steps() int { return s.steps }

// Run initializes the executor and steps until stop. ctx is checked between
// macro steps; a step in progress always completes.
func (s *Simulation) Run(ctx context.Context) error {
	began := time.Now()
	if err := s.exec.Init(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	logrus.Infof("Simulating [%d, %d] ns in steps of %d ns with %s", s.start, s.stop, s.timestep, s.exec.Method())

	total := (s.stop - s.start + s.timestep - 1) / s.timestep
	reportEvery := max(total/10, 1)
	for t := s.start; t < s.stop; {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stopped at %d: %w", t, err)
		}
		end := min(t+s.timestep, s.stop)
		if _, err := s.exec.Invoke(sim.NewStepData(t, end, end-t)); err != nil {
			return fmt.Errorf("step [%d, %d]: %w", t, end, err)
		}
		t = end
		s.steps++
		if uint64(s.steps)%reportEvery == 0 {
			logrus.Debugf("Progress %d/%d steps, t=%d", s.steps, total, t)
		}
	}
	logrus.Infof("Simulation done: %d steps in %v (executor %v)", s.steps, time.Since(began), s.exec.Walltime())
	return nil
}
