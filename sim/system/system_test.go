package system

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosim-dev/cosim/sim/execution"
	"github.com/cosim-dev/cosim/sim/internal/testutil"
	"github.com/cosim-dev/cosim/sim/model"
)

const chain = `
simulation:
  start: 0
  stop: 30ms
  timestep: 10ms
  seed: 7
executor:
  method: seidel-serial
  feedthrough: true
components:
  - name: src
    kind: constant
    start:
      value: "2"
  - name: amp
    kind: gain
    start:
      k: "3"
connections:
  - from: src.y
    to: amp.u
`

func TestParse_Chain(t *testing.T) {
	d, err := Parse([]byte(chain))
	require.NoError(t, err)
	assert.Equal(t, Nanos(30_000_000), d.Simulation.Stop)
	assert.Equal(t, "seidel-serial", d.Executor.Method)
	require.Len(t, d.Components, 2)
	assert.Equal(t, "2", d.Components[0].Start["value"])
}

func TestParse_DefaultsToJacobiSerial(t *testing.T) {
	d, err := Parse([]byte("simulation: {stop: 10, timestep: 1}\ncomponents: [{name: a, kind: constant}]\n"))
	require.NoError(t, err)
	assert.Equal(t, string(execution.JacobiSerial), d.Executor.Method)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "simulation: {stop: 10, timestep: 1, stpo: 3}\ncomponents: [{name: a, kind: constant}]\n"},
		{"zero timestep", "simulation: {stop: 10}\ncomponents: [{name: a, kind: constant}]\n"},
		{"stop before start", "simulation: {start: 10, stop: 5, timestep: 1}\ncomponents: [{name: a, kind: constant}]\n"},
		{"no components", "simulation: {stop: 10, timestep: 1}\n"},
		{"unknown kind", "simulation: {stop: 10, timestep: 1}\ncomponents: [{name: a, kind: fmu}]\n"},
		{"duplicate name", "simulation: {stop: 10, timestep: 1}\ncomponents: [{name: a, kind: constant}, {name: a, kind: gain}]\n"},
		{"dotted name", "simulation: {stop: 10, timestep: 1}\ncomponents: [{name: a.b, kind: constant}]\n"},
		{"bad endpoint", "simulation: {stop: 10, timestep: 1}\ncomponents: [{name: a, kind: constant}]\nconnections: [{from: a, to: a.u}]\n"},
		{"bad time", "simulation: {stop: soon, timestep: 1}\ncomponents: [{name: a, kind: constant}]\n"},
		{"negative time", "simulation: {stop: -5ms, timestep: 1}\ncomponents: [{name: a, kind: constant}]\n"},
		{"unknown method", "simulation: {stop: 10, timestep: 1}\nexecutor: {method: magic}\ncomponents: [{name: a, kind: constant}]\n"},
		{"pooled without workers", "simulation: {stop: 10, timestep: 1}\nexecutor: {method: seidel-parallel}\ncomponents: [{name: a, kind: constant}]\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestBuild_UnknownEndpoints(t *testing.T) {
	base := "simulation: {stop: 10, timestep: 1}\ncomponents: [{name: a, kind: constant}, {name: b, kind: gain}]\n"

	d, err := Parse([]byte(base + "connections: [{from: x.y, to: b.u}]\n"))
	require.NoError(t, err)
	_, err = d.Build()
	assert.ErrorIs(t, err, execution.ErrNodeNotFound)

	d, err = Parse([]byte(base + "connections: [{from: a.y, to: b.v}]\n"))
	require.NoError(t, err)
	_, err = d.Build()
	assert.ErrorIs(t, err, model.ErrUnknownConnector)

	d, err = Parse([]byte("simulation: {stop: 10, timestep: 1}\ncomponents: [{name: a, kind: constant, start: {y: \"1\"}}]\n"))
	require.NoError(t, err)
	_, err = d.Build()
	assert.Error(t, err, "outputs have no start value")
}

func TestBuild_GraphAndOptions(t *testing.T) {
	d, err := Parse([]byte(chain))
	require.NoError(t, err)
	s, err := d.Build()
	require.NoError(t, err)
	defer s.Close()

	src, _ := s.Graph.Lookup("src")
	amp, _ := s.Graph.Lookup("amp")
	assert.True(t, s.Graph.HasChild(src, amp))
	assert.Equal(t, execution.SeidelSerial, s.Options.Method)
	assert.True(t, s.Options.FeedThrough)
	assert.Equal(t, uint64(10_000_000), s.Timestep)
	require.Len(t, s.Nodes(), 2)
	assert.Equal(t, "amp", s.Nodes()[1].Name())
	assert.Len(t, s.Models[1].Connections(), 1)
}

func TestSystem_RunsEndToEnd(t *testing.T) {
	// GIVEN a constant feeding a gain under Gauss-Seidel
	d, err := Parse([]byte(chain))
	require.NoError(t, err)
	s, err := d.Build()
	require.NoError(t, err)
	defer s.Close()
	exec, err := s.Executor()
	require.NoError(t, err)
	defer exec.Close()

	// WHEN the simulation runs to stop
	run, err := execution.NewSimulation(exec, s.Start, s.Stop, s.Timestep)
	require.NoError(t, err)
	require.NoError(t, run.Run(context.Background()))

	// THEN the gain output carries k * value at the final time
	out := s.Models[1].OutputStorage()
	area, ok := out.Newest()
	require.True(t, ok)
	assert.Equal(t, s.Stop, out.Time(area))
	testutil.AssertFloat64Equal(t, "amp.y", 6.0, out.Real(area, 0), 1e-12)
	assert.Equal(t, 3, run.Steps())
}

func TestLoad(t *testing.T) {
	d, err := Load(testutil.WriteFile(t, "system.yaml", chain))
	require.NoError(t, err)
	assert.Len(t, d.Connections, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Groups(t *testing.T) {
	y := `
simulation: {stop: 100, timestep: 10}
executor:
  method: static-delay-grouped
  groups:
    - name: fast
      members: [a, b]
      offset: 5ns
components:
  - {name: a, kind: constant, delay: 2}
  - {name: b, kind: gain}
`
	d, err := Parse([]byte(y))
	require.NoError(t, err)
	s, err := d.Build()
	require.NoError(t, err)
	require.Len(t, s.Options.Groups, 1)
	assert.Equal(t, uint64(5), s.Options.Groups[0].Offset)
	assert.Equal(t, uint64(2), s.Models[0].Delay())
	exec, err := s.Executor()
	require.NoError(t, err)
	exec.Close()
}
