package execution

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMethod   = errors.New("unknown execution method")
	ErrNodeNotFound    = errors.New("node not found")
	ErrUnresolvedCycle = errors.New("dependency cycle without an entry point")
	ErrNoProgress      = errors.New("node did not advance its current time")
	ErrInvalidGroups   = errors.New("invalid delay groups")
	ErrZeroTimestep    = errors.New("timestep must be positive")
	ErrInvalidWorkers  = errors.New("worker count must be positive")
)

// Method selects a scheduling strategy.
type Method string

const (
	JacobiSerial             Method = "jacobi-serial"
	JacobiParallelStructured Method = "jacobi-parallel-structured"
	JacobiParallelFutures    Method = "jacobi-parallel-futures"
	JacobiParallelSpin       Method = "jacobi-parallel-spin"
	SeidelSerial             Method = "seidel-serial"
	SeidelParallel           Method = "seidel-parallel"
	StaticDelayGrouped       Method = "static-delay-grouped"
)

var methodDescriptions = map[Method]string{
	JacobiSerial:             "every node once per step in registration order, inputs from the previous step",
	JacobiParallelStructured: "jacobi with one goroutine per node (errgroup fan-out)",
	JacobiParallelFutures:    "jacobi on a fixed future-based worker pool",
	JacobiParallelSpin:       "jacobi on a fixed epoch/spin worker pool, submitter busy-waits",
	SeidelSerial:             "dependency-ordered fixed-point sweep, inputs from the same step",
	SeidelParallel:           "dependency-ordered fan-out of eligible nodes on a future-based pool",
	StaticDelayGrouped:       "configured groups in parallel, members serially with accumulated delay",
}

// Methods returns every method in a stable order.
func Methods() []Method {
	return []Method{
		JacobiSerial, JacobiParallelStructured, JacobiParallelFutures, JacobiParallelSpin,
		SeidelSerial, SeidelParallel, StaticDelayGrouped,
	}
}

// Describe returns a one-line description of m.
func Describe(m Method) string { return methodDescriptions[m] }

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if _, ok := methodDescriptions[m]; !ok {
		return "", fmt.Errorf("%w %q (valid: %v)", ErrUnknownMethod, s, Methods())
	}
	return m, nil
}

// IsPooled reports whether m runs on a worker pool and consumes Options.Workers.
func (m Method) IsPooled() bool {
	return m == JacobiParallelFutures || m == JacobiParallelSpin || m == SeidelParallel
}

// GroupSpec is one statically configured group of the delay executor. Members
// are invoked serially in order; Offset delays the whole group.
type GroupSpec struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
	Offset  uint64   `yaml:"offset"`
}

// Options enumerates everything a strategy consumes.
type Options struct {
	Method Method
	// Workers sizes the pool of pooled methods and bounds the structured fan-out (0 = unbounded).
	Workers int
	// SubStep is the timestep handed to nodes; 0 uses the macro step size.
	SubStep uint64
	// StartTime is the time at which direct feed-through evaluates.
	StartTime uint64
	// FeedThrough propagates inputs to outputs during initialization.
	FeedThrough bool
	// ForwardDerivatives is passed on to the models by the system builder.
	ForwardDerivatives bool
	// WaitForRecorder blocks after each step until the recorder drained.
	WaitForRecorder bool
	Groups          []GroupSpec
}

// Validate checks the options that do not depend on the node set.
func (o Options) Validate() error {
	if _, err := ParseMethod(string(o.Method)); err != nil {
		return err
	}
	if o.Method.IsPooled() && o.Workers < 1 {
		return fmt.Errorf("%s: %w, got %d", o.Method, ErrInvalidWorkers, o.Workers)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidWorkers, o.Workers)
	}
	if o.Method == StaticDelayGrouped && len(o.Groups) == 0 {
		return fmt.Errorf("%w: %s needs at least one group", ErrInvalidGroups, o.Method)
	}
	return nil
}
