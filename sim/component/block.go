// Package component provides built-in step-based models. Each component is a
// model.Adapter with a fixed variable table, so systems can be assembled and
// exercised without an external model runtime.
package component

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cosim-dev/cosim/sim/model"
	"github.com/cosim-dev/cosim/sim/storage"
)

var (
	ErrUnknownKind     = errors.New("unknown component kind")
	ErrUnknownVariable = errors.New("unknown variable reference")
	ErrTimeReversal    = errors.New("step target before current time")
)

// Variable describes one variable a component exposes. ValueRef is its position
// in the component's variable table.
type Variable struct {
	Name            string
	Type            storage.DataType
	Causality       model.Causality
	ValueRef        uint64
	Start           string
	DerivativeOrder int
}

// Component is a built-in adapter that also describes its variables.
type Component interface {
	model.Adapter
	model.DerivativeAdapter
	Kind() string
	Variables() []Variable
}

// block is the shared runtime behind every built-in kind. compute evaluates the
// outputs for the window [from, to]; it is also called once with from == to when
// initialization ends so outputs are valid for direct feed-through.
type block struct {
	kind    string
	vars    []Variable
	byName  map[string]uint64
	values  []any
	inDer   map[uint64]float64
	outDer  map[uint64]float64
	now     uint64
	inInit  bool
	compute func(b *block, from, to uint64)
}

func newBlock(kind string, vars []Variable, compute func(b *block, from, to uint64)) *block {
	b := &block{
		kind:    kind,
		vars:    vars,
		byName:  make(map[string]uint64, len(vars)),
		values:  make([]any, len(vars)),
		inDer:   make(map[uint64]float64),
		outDer:  make(map[uint64]float64),
		compute: compute,
	}
	for i := range b.vars {
		v := &b.vars[i]
		v.ValueRef = uint64(i)
		b.byName[v.Name] = v.ValueRef
		switch v.Type {
		case storage.Real:
			x, _ := strconv.ParseFloat(v.Start, 64)
			b.values[i] = x
		case storage.Integer, storage.Enumeration:
			b.values[i] = int32(0)
		case storage.Boolean:
			b.values[i] = false
		default:
			b.values[i] = ""
		}
	}
	return b
}

func (b *block) Kind() string { return b.kind }

func (b *block) Variables() []Variable { return append([]Variable(nil), b.vars...) }

func (b *block) SetupExperiment(start, _ uint64, _ float64) error {
	b.now = start
	return nil
}

func (b *block) EnterInitializationMode() error {
	b.inInit = true
	return nil
}

func (b *block) ExitInitializationMode() error {
	b.inInit = false
	b.compute(b, b.now, b.now)
	return nil
}

// refresh re-evaluates the outputs at the current time while initializing, so
// reads during direct feed-through see the values just written.
func (b *block) refresh() {
	if b.inInit {
		b.compute(b, b.now, b.now)
	}
}

func (b *block) StepUntil(t uint64) (uint64, error) {
	if t < b.now {
		return b.now, fmt.Errorf("%s: %w: %d < %d", b.kind, ErrTimeReversal, t, b.now)
	}
	b.compute(b, b.now, t)
	b.now = t
	return t, nil
}

func (b *block) Terminate() error { return nil }

func (b *block) check(vr uint64, want ...storage.DataType) error {
	if vr >= uint64(len(b.vars)) {
		return fmt.Errorf("%s: %w %d", b.kind, ErrUnknownVariable, vr)
	}
	for _, t := range want {
		if b.vars[vr].Type == t {
			return nil
		}
	}
	return fmt.Errorf("%s: variable %s is %s", b.kind, b.vars[vr].Name, b.vars[vr].Type)
}

func (b *block) ReadReal(vr uint64) (float64, error) {
	if err := b.check(vr, storage.Real); err != nil {
		return 0, err
	}
	b.refresh()
	return b.values[vr].(float64), nil
}

func (b *block) WriteReal(vr uint64, v float64) error {
	if err := b.check(vr, storage.Real); err != nil {
		return err
	}
	b.values[vr] = v
	return nil
}

func (b *block) ReadInteger(vr uint64) (int32, error) {
	if err := b.check(vr, storage.Integer, storage.Enumeration); err != nil {
		return 0, err
	}
	b.refresh()
	return b.values[vr].(int32), nil
}

func (b *block) WriteInteger(vr uint64, v int32) error {
	if err := b.check(vr, storage.Integer, storage.Enumeration); err != nil {
		return err
	}
	b.values[vr] = v
	return nil
}

func (b *block) ReadBoolean(vr uint64) (bool, error) {
	if err := b.check(vr, storage.Boolean); err != nil {
		return false, err
	}
	b.refresh()
	return b.values[vr].(bool), nil
}

func (b *block) WriteBoolean(vr uint64, v bool) error {
	if err := b.check(vr, storage.Boolean); err != nil {
		return err
	}
	b.values[vr] = v
	return nil
}

func (b *block) ReadString(vr uint64) (string, error) {
	if err := b.check(vr, storage.String); err != nil {
		return "", err
	}
	b.refresh()
	return b.values[vr].(string), nil
}

func (b *block) WriteString(vr uint64, v string) error {
	if err := b.check(vr, storage.String); err != nil {
		return err
	}
	b.values[vr] = v
	return nil
}

// Only first-order derivatives are modelled; higher orders read as zero.
func (b *block) SetRealInputDerivative(vr uint64, order int, v float64) error {
	if err := b.check(vr, storage.Real); err != nil {
		return err
	}
	if order == 1 {
		b.inDer[vr] = v
	}
	return nil
}

func (b *block) RealOutputDerivative(vr uint64, order int) (float64, error) {
	if err := b.check(vr, storage.Real); err != nil {
		return 0, err
	}
	if order != 1 {
		return 0, nil
	}
	return b.outDer[vr], nil
}

func (b *block) real(name string) float64 { return b.values[b.byName[name]].(float64) }

func (b *block) setReal(name string, v float64) { b.values[b.byName[name]] = v }

func (b *block) derivative(name string) float64 { return b.inDer[b.byName[name]] }

func (b *block) setDerivative(name string, v float64) { b.outDer[b.byName[name]] = v }

// seconds converts a simulation time in nanoseconds.
func seconds(ns uint64) float64 { return float64(ns) / 1e9 }
