// Package trace records per-invocation timing of simulation nodes for offline analysis.
// This package has no dependencies on sim/ or its subpackages; it stores pure data types.
package trace

import "time"

// InvocationRecord captures a single Invoke call of a node.
type InvocationRecord struct {
	Node       string
	Start      uint64
	End        uint64
	InputTime  uint64
	OutputTime uint64
	Walltime   time.Duration
}

// WaveRecord captures one executor step: which method ran and how long the whole wave took.
type WaveRecord struct {
	Method   string
	Start    uint64
	End      uint64
	Walltime time.Duration
}
