package storage

import (
	"fmt"
	"strings"
)

// DataType is the type of a registered signal.
type DataType int

const (
	Unknown DataType = iota
	Real
	Integer
	Boolean
	Enumeration
	String
)

// DerivativeSize is the byte size of one derivative slot (a float64).
const DerivativeSize = 8

var dataTypeNames = map[DataType]string{
	Unknown:     "unknown",
	Real:        "real",
	Integer:     "integer",
	Boolean:     "boolean",
	Enumeration: "enumeration",
	String:      "string",
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// Size is the fixed byte size of a value in the area arena. Strings are kept in a
// separate table and take no arena bytes.
func (t DataType) Size() int {
	switch t {
	case Real:
		return 8
	case Integer, Boolean, Enumeration:
		return 4
	default:
		return 0
	}
}

// ParseDataType maps a config name ("real", "integer", ...) to a DataType.
func ParseDataType(s string) (DataType, error) {
	for t, name := range dataTypeNames {
		if t != Unknown && strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return Unknown, fmt.Errorf("unknown data type %q", s)
}

// SignalInfo is the static registration record of one signal. It never changes
// after Allocate.
type SignalInfo struct {
	Index    int
	Name     string
	Type     DataType
	Size     int
	MaxOrder int // number of derivative slots
	// Offset is the byte offset of the value inside one area, or the string slot
	// for string signals.
	Offset           int
	DerivativeOffset int
}
