package execution

import (
	"fmt"

	"github.com/cosim-dev/cosim/sim"
	"github.com/cosim-dev/cosim/sim/graph"
)

// Build validates opts and constructs the selected strategy over nodes. Any
// configuration error is returned here, before a single step runs.
func Build(nodes []sim.Steppable, g *graph.Graph, opts Options) (Executor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch opts.Method {
	case JacobiSerial, JacobiParallelStructured, JacobiParallelFutures, JacobiParallelSpin:
		return NewJacobi(nodes, g, opts)
	case SeidelSerial, SeidelParallel:
		return NewSeidel(nodes, g, opts)
	case StaticDelayGrouped:
		return NewDelayGroups(nodes, g, opts)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownMethod, opts.Method)
}
