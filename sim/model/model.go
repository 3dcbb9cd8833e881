// Package model wraps an external step-based model as a sim.Steppable.
//
// A Model owns an input and an output ring storage. Every invocation:
//  1. pushes an input area at the step's input time and pulls every connection into it,
//  2. writes the inputs (and their derivatives) to the adapter,
//  3. steps the adapter to the end of the window,
//  4. pushes an output area at the step's output time and reads the outputs into it.
//
// Both areas are flagged as new data for the recorder.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cosim-dev/cosim/sim"
	"github.com/cosim-dev/cosim/sim/storage"
	"github.com/cosim-dev/cosim/sim/trace"
)

// ErrUnknownConnector is returned when a connection names a connector the model lacks.
var ErrUnknownConnector = errors.New("unknown connector")

const (
	DefaultInputCapacity  = 10
	DefaultOutputCapacity = 40
)

// Config holds the per-model settings.
type Config struct {
	InputCapacity  int
	OutputCapacity int
	// Delay is the intrinsic latency of the model.
	Delay uint64
	// ForwardDerivatives exchanges input/output derivatives with the adapter.
	ForwardDerivatives bool
	// Grace is the input time up to which missing connection data is not reported.
	Grace uint64

	StartTime uint64
	StopTime  uint64
	Tolerance float64
}

// Tracer receives one record per invocation.
type Tracer interface {
	RecordInvocation(r trace.InvocationRecord)
}

// Model is a Steppable backed by an Adapter.
type Model struct {
	sim.Invocable

	adapter Adapter
	cfg     Config
	log     *logrus.Entry
	tracer  Tracer

	input  *storage.RingStorage
	output *storage.RingStorage

	inputs      []*Connector
	outputs     []*Connector
	parameters  []*Connector
	byName      map[string]*Connector
	connections []Connection
}

// New creates a model. Storage capacities default to DefaultInputCapacity and
// DefaultOutputCapacity.
func New(name string, adapter Adapter, cfg Config) (*Model, error) {
	if adapter == nil {
		return nil, fmt.Errorf("model %s: nil adapter", name)
	}
	if cfg.InputCapacity == 0 {
		cfg.InputCapacity = DefaultInputCapacity
	}
	if cfg.OutputCapacity == 0 {
		cfg.OutputCapacity = DefaultOutputCapacity
	}
	in, err := storage.New(cfg.InputCapacity, name+".input")
	if err != nil {
		return nil, err
	}
	out, err := storage.New(cfg.OutputCapacity, name+".output")
	if err != nil {
		return nil, err
	}
	m := &Model{
		adapter: adapter,
		cfg:     cfg,
		log:     logrus.WithField("model", name),
		input:   in,
		output:  out,
		byName:  make(map[string]*Connector),
	}
	m.Setup(name, cfg.Delay)
	return m, nil
}

func (m *Model) InputStorage() *storage.RingStorage { return m.input }

func (m *Model) OutputStorage() *storage.RingStorage { return m.output }

func (m *Model) Connections() []Connection { return m.connections }

func (m *Model) Connector(name string) (*Connector, bool) {
	c, ok := m.byName[name]
	return c, ok
}

// SetTracer enables per-invocation tracing.
func (m *Model) SetTracer(t Tracer) { m.tracer = t }

func (m *Model) addConnector(name string, t storage.DataType, causality Causality, vr uint64, order int, start string) (*Connector, error) {
	if _, ok := m.byName[name]; ok {
		return nil, fmt.Errorf("model %s: connector %q registered twice", m.Name(), name)
	}
	c := &Connector{
		Name:       name,
		Type:       t,
		Causality:  causality,
		ValueRef:   vr,
		Index:      -1,
		StartValue: start,
	}
	if t != storage.Real {
		order = 0
	}
	c.DerivativeOrder = order

	var s *storage.RingStorage
	switch causality {
	case Input:
		s = m.input
		m.inputs = append(m.inputs, c)
	case Output:
		s = m.output
		m.outputs = append(m.outputs, c)
	default:
		m.parameters = append(m.parameters, c)
	}
	if s != nil {
		idx, err := s.Add(name, t, order)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name(), err)
		}
		c.Index = idx
		c.Storage = s
	}
	m.byName[name] = c
	return c, nil
}

// AddInput registers an input variable.
func (m *Model) AddInput(name string, t storage.DataType, vr uint64, order int, start string) (*Connector, error) {
	return m.addConnector(name, t, Input, vr, order, start)
}

// AddOutput registers an output variable.
func (m *Model) AddOutput(name string, t storage.DataType, vr uint64, order int) (*Connector, error) {
	return m.addConnector(name, t, Output, vr, order, "")
}

// AddParameter registers a parameter; it only carries a start value.
func (m *Model) AddParameter(name string, t storage.DataType, vr uint64, start string) (*Connector, error) {
	return m.addConnector(name, t, Parameter, vr, 0, start)
}

// Allocate freezes both storages. Call it after every connector is registered.
func (m *Model) Allocate() error {
	if err := m.input.Allocate(); err != nil {
		return err
	}
	return m.output.Allocate()
}

// ConnectFrom wires output of producer into input of m with a transport delay.
func (m *Model) ConnectFrom(producer *Model, output, input string, delay uint64) error {
	out, ok := producer.byName[output]
	if !ok || out.Causality != Output {
		return fmt.Errorf("%w: %s.%s is not an output", ErrUnknownConnector, producer.Name(), output)
	}
	in, ok := m.byName[input]
	if !ok || in.Causality != Input {
		return fmt.Errorf("%w: %s.%s is not an input", ErrUnknownConnector, m.Name(), input)
	}
	order := 0
	if m.cfg.ForwardDerivatives {
		order = min(out.DerivativeOrder, in.DerivativeOrder)
	}
	c, err := NewConnection(producer.output, out.Index, m.input, in.Index, delay, order)
	if err != nil {
		return err
	}
	m.connections = append(m.connections, c)
	return nil
}

// EnterInit sets up the experiment, enters initialization mode and writes start values.
func (m *Model) EnterInit() error {
	m.log.Debugf("setup_experiment [%d, %d]", m.cfg.StartTime, m.cfg.StopTime)
	if err := m.adapter.SetupExperiment(m.cfg.StartTime, m.cfg.StopTime, m.cfg.Tolerance); err != nil {
		return fmt.Errorf("model %s: setup experiment: %w", m.Name(), err)
	}
	if err := m.adapter.EnterInitializationMode(); err != nil {
		return fmt.Errorf("model %s: enter initialization mode: %w", m.Name(), err)
	}

	area := m.input.GetOrPush(m.cfg.StartTime)
	for _, c := range m.inputs {
		if err := c.storeStart(area); err != nil {
			return fmt.Errorf("model %s: start value of %s: %w", m.Name(), c.Name, err)
		}
	}
	for _, group := range [][]*Connector{m.parameters, m.inputs} {
		for _, c := range group {
			if err := c.writeStart(m.adapter); err != nil {
				return fmt.Errorf("model %s: %w", m.Name(), err)
			}
		}
	}
	m.SetCurrentTime(m.cfg.StartTime)
	return nil
}

// ExitInit leaves initialization mode.
func (m *Model) ExitInit() error {
	if err := m.adapter.ExitInitializationMode(); err != nil {
		return fmt.Errorf("model %s: exit initialization mode: %w", m.Name(), err)
	}
	return nil
}

// DirectFeedthrough propagates inputs to outputs at start without stepping.
// It reuses areas already stamped at start.
func (m *Model) DirectFeedthrough(start uint64) error {
	in := m.input.GetOrPush(start)
	RetrieveInputs(m.connections, in, start, m.cfg.Grace, m.log)
	for _, c := range m.inputs {
		if err := c.writeToModel(m.adapter, in); err != nil {
			return fmt.Errorf("model %s: write %s: %w", m.Name(), c.Name, err)
		}
	}
	out := m.output.GetOrPush(start)
	for _, c := range m.outputs {
		if err := c.readFromModel(m.adapter, out); err != nil {
			return fmt.Errorf("model %s: read %s: %w", m.Name(), c.Name, err)
		}
	}
	return nil
}

func (m *Model) pre(inputTime uint64) error {
	prev, ok := m.input.Newest()
	area := m.input.Push(inputTime)
	// unconnected inputs and wires without data keep their last value
	if ok {
		m.input.CopyArea(area, prev)
	}
	RetrieveInputs(m.connections, area, inputTime, m.cfg.Grace, m.log)
	m.input.FlagNewData(area)

	for _, c := range m.inputs {
		if err := c.writeToModel(m.adapter, area); err != nil {
			return fmt.Errorf("write %s: %w", c.Name, err)
		}
	}
	if da, ok := m.adapter.(DerivativeAdapter); ok && m.cfg.ForwardDerivatives {
		for _, c := range m.inputs {
			if err := c.applyInputDerivatives(da, area); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Model) post(outputTime uint64) error {
	area := m.output.Push(outputTime)
	for _, c := range m.outputs {
		if err := c.readFromModel(m.adapter, area); err != nil {
			return fmt.Errorf("read %s: %w", c.Name, err)
		}
	}
	if da, ok := m.adapter.(DerivativeAdapter); ok && m.cfg.ForwardDerivatives && m.CurrentTime() != 0 {
		for _, c := range m.outputs {
			if err := c.fetchOutputDerivatives(da, area); err != nil {
				return err
			}
		}
	}
	m.output.FlagNewData(area)
	return nil
}

// Invoke runs one window and returns the time at which the new outputs are valid.
func (m *Model) Invoke(step sim.StepData) (uint64, error) {
	began := time.Now()
	if m.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		m.log.Debugf("Invoke, current_time %d, %s", m.CurrentTime(), step)
	}

	if err := m.pre(step.InputTime); err != nil {
		return 0, fmt.Errorf("model %s: %w", m.Name(), err)
	}
	reached, err := m.adapter.StepUntil(step.End)
	if err != nil {
		return 0, fmt.Errorf("model %s: step until %d: %w", m.Name(), step.End, err)
	}
	m.SetCurrentTime(reached)
	if err := m.post(step.OutputTime); err != nil {
		return 0, fmt.Errorf("model %s: %w", m.Name(), err)
	}

	spent := time.Since(began)
	m.AddWalltime(spent)
	if m.tracer != nil {
		m.tracer.RecordInvocation(trace.InvocationRecord{
			Node:       m.Name(),
			Start:      step.Start,
			End:        step.End,
			InputTime:  step.InputTime,
			OutputTime: step.OutputTime,
			Walltime:   spent,
		})
	}
	return step.OutputTime, nil
}

// Close terminates the adapter.
func (m *Model) Close() error {
	return m.adapter.Terminate()
}
