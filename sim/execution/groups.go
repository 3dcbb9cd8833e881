package execution

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cosim-dev/cosim/sim"
	"github.com/cosim-dev/cosim/sim/graph"
)

type group struct {
	name    string
	members []int
	offset  uint64
}

// DelayGroups runs hand-configured groups concurrently. Members of a group run
// serially; each member's window starts after the accumulated delay of the
// members before it and is advanced through InvokeSubSteps. No dependency
// inference takes place.
type DelayGroups struct {
	base

	groups []group
	errs   []error
}

// NewDelayGroups resolves opts.Groups against nodes. Unknown names fail with
// ErrNodeNotFound; a node may belong to one group only.
func NewDelayGroups(nodes []sim.Steppable, g *graph.Graph, opts Options) (*DelayGroups, error) {
	d := &DelayGroups{}
	if err := d.setup(nodes, g, opts); err != nil {
		return nil, err
	}
	if len(opts.Groups) == 0 {
		return nil, fmt.Errorf("%w: no groups configured", ErrInvalidGroups)
	}

	owner := make(map[int]string)
	for gi, spec := range opts.Groups {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("group-%d", gi)
		}
		if len(spec.Members) == 0 {
			return nil, fmt.Errorf("%w: group %s is empty", ErrInvalidGroups, name)
		}
		grp := group{name: name, offset: spec.Offset}
		for _, m := range spec.Members {
			i, err := d.lookup(m)
			if err != nil {
				return nil, fmt.Errorf("group %s: %w", name, err)
			}
			if other, taken := owner[i]; taken {
				return nil, fmt.Errorf("%w: node %s is in groups %s and %s", ErrInvalidGroups, m, other, name)
			}
			owner[i] = name
			grp.members = append(grp.members, i)
		}
		d.groups = append(d.groups, grp)
	}
	for i, n := range nodes {
		if _, ok := owner[i]; !ok {
			d.log.Warnf("node %s is in no group and will not be stepped", n.Name())
		}
	}
	d.errs = make([]error, len(d.groups))
	d.log.Infof("%d groups over %d nodes", len(d.groups), len(nodes))
	return d, nil
}

// Invoke runs every group over the step and returns once all of them finished.
func (d *DelayGroups) Invoke(step sim.StepData) (uint64, error) {
	began := time.Now()
	d.debugStep(step)
	macro := step.Timestep
	if macro == 0 {
		macro = step.End - step.Start
	}
	sub := d.subStep(step)

	clear(d.errs)
	var eg errgroup.Group
	for gi := range d.groups {
		gi := gi
		eg.Go(func() error {
			d.errs[gi] = d.runGroup(d.groups[gi], step.Start, macro, sub)
			return nil
		})
	}
	_ = eg.Wait()
	if err := firstError(d.errs); err != nil {
		return 0, err
	}
	return d.finish(step, began), nil
}

func (d *DelayGroups) runGroup(g group, start, macro, sub uint64) error {
	acc := g.offset
	for _, i := range g.members {
		n := d.nodes[i]
		macroStart := start + acc
		macroEnd := macroStart + macro
		s := sim.NewStepDataWithTimes(macroStart, macroEnd, sub, macroEnd, macroEnd)
		if d.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			d.log.Debugf("group %s: invoking %s, %s", g.name, n.Name(), s)
		}
		if err := InvokeSubSteps(n, s, true); err != nil {
			return fmt.Errorf("group %s: %w", g.name, err)
		}
		acc += n.Delay()
	}
	return nil
}
