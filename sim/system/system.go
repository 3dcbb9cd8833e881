// Package system loads a YAML system description and builds the models, the
// dependency graph and the executor options from it.
package system

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/cosim-dev/cosim/sim"
	"github.com/cosim-dev/cosim/sim/component"
	"github.com/cosim-dev/cosim/sim/execution"
	"github.com/cosim-dev/cosim/sim/graph"
	"github.com/cosim-dev/cosim/sim/model"
)

// Description is the root of a system file.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Description struct {
	Simulation  SimulationSpec   `yaml:"simulation"`
	Executor    ExecutorSpec     `yaml:"executor"`
	Components  []ComponentSpec  `yaml:"components"`
	Connections []ConnectionSpec `yaml:"connections"`
}

type SimulationSpec struct {
	Start     Nanos   `yaml:"start"`
	Stop      Nanos   `yaml:"stop"`
	Timestep  Nanos   `yaml:"timestep"`
	Seed      int64   `yaml:"seed"`
	Tolerance float64 `yaml:"tolerance"`
}

type ExecutorSpec struct {
	Method             string      `yaml:"method"`
	Workers            int         `yaml:"workers"`
	SubStep            Nanos       `yaml:"substep"`
	FeedThrough        bool        `yaml:"feedthrough"`
	ForwardDerivatives bool        `yaml:"forward_derivatives"`
	WaitForRecorder    bool        `yaml:"wait_for_recorder"`
	Groups             []GroupSpec `yaml:"groups"`
}

type GroupSpec struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
	Offset  Nanos    `yaml:"offset"`
}

type ComponentSpec struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	// Delay is the intrinsic latency used by the delay-group method.
	Delay Nanos `yaml:"delay"`
	// Start overrides start values of parameters and inputs.
	Start          map[string]string `yaml:"start"`
	InputCapacity  int               `yaml:"input_capacity"`
	OutputCapacity int               `yaml:"output_capacity"`
	Grace          Nanos             `yaml:"grace"`
}

// ConnectionSpec wires From ("node.output") into To ("node.input").
type ConnectionSpec struct {
	From  string `yaml:"from"`
	To    string `yaml:"to"`
	Delay Nanos  `yaml:"delay"`
}

// Load reads and parses a system file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading system description: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a system description.
func Parse(data []byte) (*Description, error) {
	var d Description
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&d); err != nil {
		return nil, fmt.Errorf("parsing system description: %w", err)
	}
	if d.Executor.Method == "" {
		d.Executor.Method = string(execution.JacobiSerial)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks everything that does not need the models themselves.
func (d *Description) Validate() error {
	s := d.Simulation
	if s.Timestep == 0 {
		return fmt.Errorf("simulation.timestep must be positive")
	}
	if s.Stop < s.Start {
		return fmt.Errorf("simulation.stop %d before simulation.start %d", s.Stop, s.Start)
	}
	if len(d.Components) == 0 {
		return fmt.Errorf("at least one component required")
	}
	kinds := component.Kinds()
	seen := make(map[string]bool, len(d.Components))
	for i, c := range d.Components {
		if c.Name == "" {
			return fmt.Errorf("components[%d]: name required", i)
		}
		if strings.Contains(c.Name, ".") {
			return fmt.Errorf("components[%d]: name %q must not contain '.'", i, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("components[%d]: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true
		if !slices.Contains(kinds, c.Kind) {
			return fmt.Errorf("components[%d]: unknown kind %q; valid: %s", i, c.Kind, strings.Join(kinds, ", "))
		}
		if c.InputCapacity < 0 || c.OutputCapacity < 0 {
			return fmt.Errorf("components[%d]: capacities must be non-negative", i)
		}
	}
	for i, c := range d.Connections {
		if _, _, err := splitEndpoint(c.From); err != nil {
			return fmt.Errorf("connections[%d].from: %w", i, err)
		}
		if _, _, err := splitEndpoint(c.To); err != nil {
			return fmt.Errorf("connections[%d].to: %w", i, err)
		}
	}
	return d.options().Validate()
}

func splitEndpoint(s string) (node, connector string, err error) {
	node, connector, ok := strings.Cut(s, ".")
	if !ok || node == "" || connector == "" {
		return "", "", fmt.Errorf("endpoint %q must be node.connector", s)
	}
	return node, connector, nil
}

func (d *Description) options() execution.Options {
	e := d.Executor
	opts := execution.Options{
		Method:             execution.Method(e.Method),
		Workers:            e.Workers,
		SubStep:            uint64(e.SubStep),
		StartTime:          uint64(d.Simulation.Start),
		FeedThrough:        e.FeedThrough,
		ForwardDerivatives: e.ForwardDerivatives,
		WaitForRecorder:    e.WaitForRecorder,
	}
	for _, g := range e.Groups {
		opts.Groups = append(opts.Groups, execution.GroupSpec{Name: g.Name, Members: g.Members, Offset: uint64(g.Offset)})
	}
	return opts
}

// System is a built, allocated set of models ready for an executor.
type System struct {
	Graph   *graph.Graph
	Models  []*model.Model
	Options execution.Options
	RNG     *sim.PartitionedRNG

	Start    uint64
	Stop     uint64
	Timestep uint64
}

// Build instantiates every component and wires every connection. Connections
// naming an unknown node or connector are rejected here.
func (d *Description) Build() (*System, error) {
	s := &System{
		Graph:    graph.New(),
		Options:  d.options(),
		RNG:      sim.NewPartitionedRNG(sim.NewSimulationKey(d.Simulation.Seed)),
		Start:    uint64(d.Simulation.Start),
		Stop:     uint64(d.Simulation.Stop),
		Timestep: uint64(d.Simulation.Timestep),
	}
	byName := make(map[string]*model.Model, len(d.Components))
	for _, c := range d.Components {
		cfg := model.Config{
			InputCapacity:      c.InputCapacity,
			OutputCapacity:     c.OutputCapacity,
			Delay:              uint64(c.Delay),
			ForwardDerivatives: d.Executor.ForwardDerivatives,
			Grace:              uint64(c.Grace),
			StartTime:          s.Start,
			StopTime:           s.Stop,
			Tolerance:          d.Simulation.Tolerance,
		}
		m, err := component.NewModel(c.Name, c.Kind, c.Start, cfg, s.RNG)
		if err != nil {
			return nil, err
		}
		s.Graph.AddNode(c.Name)
		s.Models = append(s.Models, m)
		byName[c.Name] = m
	}

	for i, c := range d.Connections {
		srcName, out, _ := splitEndpoint(c.From)
		dstName, in, _ := splitEndpoint(c.To)
		src, ok := byName[srcName]
		if !ok {
			return nil, fmt.Errorf("connections[%d]: %w: %q", i, execution.ErrNodeNotFound, srcName)
		}
		dst, ok := byName[dstName]
		if !ok {
			return nil, fmt.Errorf("connections[%d]: %w: %q", i, execution.ErrNodeNotFound, dstName)
		}
		if err := dst.ConnectFrom(src, out, in, uint64(c.Delay)); err != nil {
			return nil, fmt.Errorf("connections[%d]: %w", i, err)
		}
		from, _ := s.Graph.Lookup(srcName)
		to, _ := s.Graph.Lookup(dstName)
		s.Graph.AddChild(from, to)
	}

	if loops := s.Graph.AlgebraicLoops(); len(loops) > 0 {
		logrus.Warnf("system has %d algebraic loop(s): %s", len(loops), s.Graph.FormatComponents(loops))
	}
	logrus.Infof("built system: %d components, %d connections", len(s.Models), len(d.Connections))
	return s, nil
}

// Nodes returns the models as Steppables in declaration order.
func (s *System) Nodes() []sim.Steppable {
	nodes := make([]sim.Steppable, len(s.Models))
	for i, m := range s.Models {
		nodes[i] = m
	}
	return nodes
}

// Executor builds the configured strategy over the system's models.
func (s *System) Executor() (execution.Executor, error) {
	return execution.Build(s.Nodes(), s.Graph, s.Options)
}

// Close terminates every model and returns the first error.
func (s *System) Close() error {
	var first error
	for _, m := range s.Models {
		if err := m.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
