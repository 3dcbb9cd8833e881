package sim

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrInvalidStep is returned by StepData.Validate for windows that cannot be executed.
var ErrInvalidStep = errors.New("invalid step window")

// StepData describes one invocation window. All times are in nanoseconds of simulation time.
type StepData struct {
	Start    uint64 // start of the macro step
	End      uint64 // end of the macro step
	Timestep uint64 // granularity at which a model sub-steps internally
	// InputTime is the time from which inputs are considered valid.
	InputTime uint64
	// OutputTime is the timestamp given to the outputs produced by the invocation.
	OutputTime uint64
}

// NewStepData creates a window whose inputs are read at start and outputs tagged at end.
func NewStepData(start, end, timestep uint64) StepData {
	return StepData{
		Start:      start,
		End:        end,
		Timestep:   timestep,
		InputTime:  start,
		OutputTime: end,
	}
}

// NewStepDataWithTimes creates a window with explicit input and output times.
func NewStepDataWithTimes(start, end, timestep, inputTime, outputTime uint64) StepData {
	return StepData{
		Start:      start,
		End:        end,
		Timestep:   timestep,
		InputTime:  inputTime,
		OutputTime: outputTime,
	}
}

// Validate checks start <= end and a positive timestep.
func (s StepData) Validate() error {
	if s.Start > s.End {
		return fmt.Errorf("%w: start %d after end %d", ErrInvalidStep, s.Start, s.End)
	}
	if s.Timestep == 0 {
		return fmt.Errorf("%w: zero timestep", ErrInvalidStep)
	}
	return nil
}

func (s StepData) String() string {
	return fmt.Sprintf("StepData{start: %d, end: %d, timestep: %d, input: %d, output: %d}",
		s.Start, s.End, s.Timestep, s.InputTime, s.OutputTime)
}

// Steppable is the unit of work advanced by every scheduling strategy.
// Models implement it, and so do the strategies themselves, so executors can be nested.
//
// Invoke advances the node through step and returns the time at which its newest
// output is valid. For nodes with an internal delay this can lag step.End.
type Steppable interface {
	Name() string
	ID() int
	SetID(id int)
	Delay() uint64
	CurrentTime() uint64
	Walltime() time.Duration

	EnterInit() error
	ExitInit() error
	Invoke(step StepData) (uint64, error)
}

// Invocable holds the bookkeeping shared by every Steppable. Embed it and implement
// EnterInit, ExitInit and Invoke.
type Invocable struct {
	name     string
	id       int
	delay    uint64
	current  atomic.Uint64
	walltime atomic.Int64
}

// Setup names the node and sets its intrinsic delay. Call it once from the constructor
// of the embedding type.
func (i *Invocable) Setup(name string, delay uint64) {
	i.name = name
	i.delay = delay
}

func (i *Invocable) Name() string { return i.name }

func (i *Invocable) ID() int { return i.id }

func (i *Invocable) SetID(id int) { i.id = id }

// Delay is the intrinsic latency of the node; zero when the node has none.
func (i *Invocable) Delay() uint64 { return i.delay }

func (i *Invocable) CurrentTime() uint64 { return i.current.Load() }

func (i *Invocable) SetCurrentTime(t uint64) { i.current.Store(t) }

// Walltime is the accumulated real time spent inside the node.
func (i *Invocable) Walltime() time.Duration { return time.Duration(i.walltime.Load()) }

func (i *Invocable) AddWalltime(d time.Duration) { i.walltime.Add(int64(d)) }
