package component

import (
	"fmt"
	"sort"

	"github.com/cosim-dev/cosim/sim"
	"github.com/cosim-dev/cosim/sim/model"
)

// NewModel builds a component of kind and wraps it in an allocated model.Model.
// starts overrides the default start values of parameters and inputs by name.
func NewModel(name, kind string, starts map[string]string, cfg model.Config, rng *sim.PartitionedRNG) (*model.Model, error) {
	c, err := New(kind, name, rng)
	if err != nil {
		return nil, err
	}
	m, err := model.New(name, c, cfg)
	if err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(starts))
	for _, v := range c.Variables() {
		start := v.Start
		if s, ok := starts[v.Name]; ok {
			if v.Causality == model.Output {
				return nil, fmt.Errorf("component %s: output %q has no start value", name, v.Name)
			}
			start = s
			used[v.Name] = true
		}
		switch v.Causality {
		case model.Input:
			_, err = m.AddInput(v.Name, v.Type, v.ValueRef, v.DerivativeOrder, start)
		case model.Output:
			_, err = m.AddOutput(v.Name, v.Type, v.ValueRef, v.DerivativeOrder)
		default:
			_, err = m.AddParameter(v.Name, v.Type, v.ValueRef, start)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(used) != len(starts) {
		var unknown []string
		for k := range starts {
			if !used[k] {
				unknown = append(unknown, k)
			}
		}
		sort.Strings(unknown)
		return nil, fmt.Errorf("component %s (%s): %w: %v", name, kind, ErrUnknownVariable, unknown)
	}
	if err := m.Allocate(); err != nil {
		return nil, err
	}
	return m, nil
}
