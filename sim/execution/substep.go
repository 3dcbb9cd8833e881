package execution

import (
	"fmt"

	"github.com/cosim-dev/cosim/sim"
)

// InvokeSubSteps advances node from its current time to step.End in windows of
// step.Timestep. The output of a window is tagged at its end unless the node's
// delay reaches past it, in which case it is tagged at start + delay: an output
// is never stamped before the latency elapsed or the window ended. With
// continuousInput each window reads inputs at its own start, otherwise every
// window reads at step.InputTime.
func InvokeSubSteps(node sim.Steppable, step sim.StepData, continuousInput bool) error {
	if step.Timestep == 0 {
		return fmt.Errorf("%s: %w", node.Name(), ErrZeroTimestep)
	}
	delay := node.Delay()
	for node.CurrentTime() < step.End {
		start := node.CurrentTime()
		end := start + step.Timestep

		output := end
		if delay != 0 && start+delay > end {
			output = start + delay
		}
		input := step.InputTime
		if continuousInput {
			input = start
		}

		if _, err := node.Invoke(sim.NewStepDataWithTimes(start, end, step.Timestep, input, output)); err != nil {
			return err
		}
		if node.CurrentTime() <= start {
			return fmt.Errorf("%s: %w: still at %d", node.Name(), ErrNoProgress, start)
		}
	}
	return nil
}
