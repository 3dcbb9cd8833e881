package component

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/cosim-dev/cosim/sim"
	"github.com/cosim-dev/cosim/sim/model"
	"github.com/cosim-dev/cosim/sim/storage"
)

func realVar(name string, c model.Causality, start float64, order int) Variable {
	return Variable{Name: name, Type: storage.Real, Causality: c, Start: strconv.FormatFloat(start, 'g', -1, 64), DerivativeOrder: order}
}

func output(name string, t storage.DataType, order int) Variable {
	return Variable{Name: name, Type: t, Causality: model.Output, DerivativeOrder: order}
}

type factory func(name string, rng *sim.PartitionedRNG) *block

var registry = map[string]factory{
	"constant":   newConstant,
	"sine":       newSine,
	"gain":       newGain,
	"sum":        newSum,
	"integrator": newIntegrator,
	"noise":      newNoise,
	"counter":    newCounter,
	"threshold":  newThreshold,
}

// Kinds lists the built-in component kinds in alphabetical order.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New creates a component of kind. rng seeds stochastic kinds; it may be nil
// for deterministic ones.
func New(kind, name string, rng *sim.PartitionedRNG) (Component, error) {
	f, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q (valid: %v)", ErrUnknownKind, kind, Kinds())
	}
	if rng == nil {
		rng = sim.NewPartitionedRNG(sim.NewSimulationKey(0))
	}
	return f(name, rng), nil
}

// constant: y = value
func newConstant(string, *sim.PartitionedRNG) *block {
	return newBlock("constant", []Variable{
		realVar("value", model.Parameter, 1, 0),
		output("y", storage.Real, 0),
	}, func(b *block, _, _ uint64) {
		b.setReal("y", b.real("value"))
	})
}

// sine: y = offset + amplitude * sin(2 pi frequency t + phase), with dy/dt.
func newSine(string, *sim.PartitionedRNG) *block {
	return newBlock("sine", []Variable{
		realVar("amplitude", model.Parameter, 1, 0),
		realVar("frequency", model.Parameter, 1, 0),
		realVar("phase", model.Parameter, 0, 0),
		realVar("offset", model.Parameter, 0, 0),
		output("y", storage.Real, 1),
	}, func(b *block, _, to uint64) {
		w := 2 * math.Pi * b.real("frequency")
		arg := w*seconds(to) + b.real("phase")
		b.setReal("y", b.real("offset")+b.real("amplitude")*math.Sin(arg))
		b.setDerivative("y", b.real("amplitude")*w*math.Cos(arg))
	})
}

// gain: y = k * u. The input derivative, when forwarded, is scaled the same way.
func newGain(string, *sim.PartitionedRNG) *block {
	return newBlock("gain", []Variable{
		realVar("k", model.Parameter, 1, 0),
		realVar("u", model.Input, 0, 1),
		output("y", storage.Real, 1),
	}, func(b *block, _, _ uint64) {
		k := b.real("k")
		b.setReal("y", k*b.real("u"))
		b.setDerivative("y", k*b.derivative("u"))
	})
}

// sum: y = u1 + u2
func newSum(string, *sim.PartitionedRNG) *block {
	return newBlock("sum", []Variable{
		realVar("u1", model.Input, 0, 1),
		realVar("u2", model.Input, 0, 1),
		output("y", storage.Real, 1),
	}, func(b *block, _, _ uint64) {
		b.setReal("y", b.real("u1")+b.real("u2"))
		b.setDerivative("y", b.derivative("u1")+b.derivative("u2"))
	})
}

// integrator: forward Euler, x += u * dt; y = x and dy/dt = u. Until the first
// step, y follows x0.
func newIntegrator(string, *sim.PartitionedRNG) *block {
	stepped := false
	return newBlock("integrator", []Variable{
		realVar("x0", model.Parameter, 0, 0),
		realVar("u", model.Input, 0, 1),
		output("y", storage.Real, 1),
	}, func(b *block, from, to uint64) {
		u := b.real("u")
		b.setDerivative("y", u)
		if from == to {
			if !stepped {
				b.setReal("y", b.real("x0"))
			}
			return
		}
		stepped = true
		b.setReal("y", b.real("y")+u*seconds(to-from))
	})
}

// noise: y = mean + stddev * N(0,1), one draw per step from the component's own stream.
func newNoise(name string, rng *sim.PartitionedRNG) *block {
	r := rng.ForSubsystem(sim.SubsystemComponent(name))
	return newBlock("noise", []Variable{
		realVar("mean", model.Parameter, 0, 0),
		realVar("stddev", model.Parameter, 1, 0),
		output("y", storage.Real, 0),
	}, func(b *block, from, to uint64) {
		if from == to {
			b.setReal("y", b.real("mean"))
			return
		}
		b.setReal("y", b.real("mean")+b.real("stddev")*r.NormFloat64())
	})
}

// counter: n counts completed steps.
func newCounter(string, *sim.PartitionedRNG) *block {
	return newBlock("counter", []Variable{
		output("n", storage.Integer, 0),
	}, func(b *block, from, to uint64) {
		if from == to {
			return
		}
		vr := b.byName["n"]
		b.values[vr] = b.values[vr].(int32) + 1
	})
}

// threshold: y = u > level, with a text state for logs and result files.
func newThreshold(string, *sim.PartitionedRNG) *block {
	return newBlock("threshold", []Variable{
		realVar("level", model.Parameter, 0, 0),
		realVar("u", model.Input, 0, 0),
		output("y", storage.Boolean, 0),
		output("state", storage.String, 0),
	}, func(b *block, _, _ uint64) {
		above := b.real("u") > b.real("level")
		b.values[b.byName["y"]] = above
		state := "below"
		if above {
			state = "above"
		}
		b.values[b.byName["state"]] = state
	})
}
