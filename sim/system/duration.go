package system

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Nanos is a simulation time in nanoseconds. In YAML it is either a plain
// integer (nanoseconds) or a Go duration string such as "10ms".
type Nanos uint64

// UnmarshalYAML accepts integers and non-negative duration strings.
func (n *Nanos) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: time must be a scalar", node.Line)
	}
	if v, err := strconv.ParseUint(node.Value, 10, 64); err == nil {
		*n = Nanos(v)
		return nil
	}
	d, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid time %q: expected nanoseconds or a duration like 10ms", node.Line, node.Value)
	}
	if d < 0 {
		return fmt.Errorf("line %d: negative time %q", node.Line, node.Value)
	}
	*n = Nanos(d)
	return nil
}

func (n Nanos) String() string { return time.Duration(n).String() }
