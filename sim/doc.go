// Package sim provides the core contract of the co-simulation engine.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - step.go: StepData (the invocation window) and the Steppable contract
//   - execution/jacobi.go and execution/seidel.go: how a macro step is scheduled
//   - model/model.go: how a Steppable exchanges data through ring storages
//
// # Architecture
//
// The sim package defines the contract; implementations live in sub-packages:
//   - sim/graph/: dependency graph between nodes, SCC report, DOT export
//   - sim/storage/: time-indexed ring storage holding typed signal values
//   - sim/model/: connectors, connections and the Model wrapping an Adapter
//   - sim/component/: built-in Adapters (constant, sine, gain, integrator, ...)
//   - sim/pool/: the future-based and the epoch/spin worker pools
//   - sim/execution/: scheduling strategies, sub-step decomposition, Simulation driver
//   - sim/recorder/: background CSV recorder
//   - sim/trace/: invocation and wave tracing
//   - sim/system/: YAML system descriptions
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Steppable: anything that can be advanced through a StepData window
//   - model.Adapter: an external step-based model driven by a Model
//   - execution.Collector: a recorder an executor can wait on after each step
//
// # Determinism
//
// Stochastic components draw from a PartitionedRNG keyed by the SimulationKey.
// Jacobi methods produce identical results regardless of the backend because
// every node reads data stamped at or before the start of the step.
package sim
