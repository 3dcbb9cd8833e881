package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cosim-dev/cosim/sim/storage"
)

// Causality tells whether a connector is an input, output or parameter of its model.
type Causality int

const (
	Input Causality = iota
	Output
	Parameter
)

func (c Causality) String() string {
	switch c {
	case Input:
		return "input"
	case Output:
		return "output"
	case Parameter:
		return "parameter"
	}
	return fmt.Sprintf("Causality(%d)", int(c))
}

// ParseCausality maps a config name to a Causality.
func ParseCausality(s string) (Causality, error) {
	switch strings.ToLower(s) {
	case "input":
		return Input, nil
	case "output":
		return Output, nil
	case "parameter":
		return Parameter, nil
	}
	return Input, fmt.Errorf("unknown causality %q", s)
}

// Connector binds one model variable to a signal of the model's storage.
type Connector struct {
	Name      string
	Type      storage.DataType
	Causality Causality
	ValueRef  uint64
	Index     int
	Storage   *storage.RingStorage

	// StartValue is the serialized initial value, empty when none is configured.
	StartValue string

	// DerivativeOrder is the number of derivative orders exchanged with the model.
	DerivativeOrder int
}

func (c *Connector) String() string {
	return fmt.Sprintf("%s (%s %s, vr %d, index %d)", c.Name, c.Causality, c.Type, c.ValueRef, c.Index)
}

// writeStart writes the start value to the model.
func (c *Connector) writeStart(a Adapter) error {
	if c.StartValue == "" {
		return nil
	}
	switch c.Type {
	case storage.Real:
		v, err := strconv.ParseFloat(c.StartValue, 64)
		if err != nil {
			return fmt.Errorf("start value of %s: %w", c.Name, err)
		}
		return a.WriteReal(c.ValueRef, v)
	case storage.Integer, storage.Enumeration:
		v, err := strconv.ParseInt(c.StartValue, 10, 32)
		if err != nil {
			return fmt.Errorf("start value of %s: %w", c.Name, err)
		}
		return a.WriteInteger(c.ValueRef, int32(v))
	case storage.Boolean:
		v, err := strconv.ParseBool(c.StartValue)
		if err != nil {
			return fmt.Errorf("start value of %s: %w", c.Name, err)
		}
		return a.WriteBoolean(c.ValueRef, v)
	case storage.String:
		return a.WriteString(c.ValueRef, c.StartValue)
	}
	return fmt.Errorf("start value of %s: unsupported type %s", c.Name, c.Type)
}

// storeStart writes the start value into area of the connector's storage.
func (c *Connector) storeStart(area int) error {
	if c.StartValue == "" {
		return nil
	}
	s := c.Storage
	switch c.Type {
	case storage.Real:
		v, err := strconv.ParseFloat(c.StartValue, 64)
		if err != nil {
			return err
		}
		s.SetReal(area, c.Index, v)
	case storage.Integer:
		v, err := strconv.ParseInt(c.StartValue, 10, 32)
		if err != nil {
			return err
		}
		s.SetInteger(area, c.Index, int32(v))
	case storage.Enumeration:
		v, err := strconv.ParseInt(c.StartValue, 10, 32)
		if err != nil {
			return err
		}
		s.SetEnumeration(area, c.Index, int32(v))
	case storage.Boolean:
		v, err := strconv.ParseBool(c.StartValue)
		if err != nil {
			return err
		}
		s.SetBoolean(area, c.Index, v)
	case storage.String:
		s.SetStringValue(area, c.Index, c.StartValue)
	}
	return nil
}

// writeToModel copies the stored value in area to the model variable.
func (c *Connector) writeToModel(a Adapter, area int) error {
	s := c.Storage
	switch c.Type {
	case storage.Real:
		return a.WriteReal(c.ValueRef, s.Real(area, c.Index))
	case storage.Integer:
		return a.WriteInteger(c.ValueRef, s.Integer(area, c.Index))
	case storage.Enumeration:
		return a.WriteInteger(c.ValueRef, s.Enumeration(area, c.Index))
	case storage.Boolean:
		return a.WriteBoolean(c.ValueRef, s.Boolean(area, c.Index))
	case storage.String:
		return a.WriteString(c.ValueRef, s.StringValue(area, c.Index))
	}
	return nil
}

// readFromModel copies the model variable into area.
func (c *Connector) readFromModel(a Adapter, area int) error {
	s := c.Storage
	switch c.Type {
	case storage.Real:
		v, err := a.ReadReal(c.ValueRef)
		if err != nil {
			return err
		}
		s.SetReal(area, c.Index, v)
	case storage.Integer:
		v, err := a.ReadInteger(c.ValueRef)
		if err != nil {
			return err
		}
		s.SetInteger(area, c.Index, v)
	case storage.Enumeration:
		v, err := a.ReadInteger(c.ValueRef)
		if err != nil {
			return err
		}
		s.SetEnumeration(area, c.Index, v)
	case storage.Boolean:
		v, err := a.ReadBoolean(c.ValueRef)
		if err != nil {
			return err
		}
		s.SetBoolean(area, c.Index, v)
	case storage.String:
		v, err := a.ReadString(c.ValueRef)
		if err != nil {
			return err
		}
		s.SetStringValue(area, c.Index, v)
	}
	return nil
}

func (c *Connector) applyInputDerivatives(a DerivativeAdapter, area int) error {
	for order := 1; order <= c.DerivativeOrder; order++ {
		v, ok := c.Storage.DerivativeValue(area, c.Index, order)
		if !ok {
			return nil
		}
		if err := a.SetRealInputDerivative(c.ValueRef, order, v); err != nil {
			return fmt.Errorf("input derivative %d of %s: %w", order, c.Name, err)
		}
	}
	return nil
}

func (c *Connector) fetchOutputDerivatives(a DerivativeAdapter, area int) error {
	for order := 1; order <= c.DerivativeOrder; order++ {
		v, err := a.RealOutputDerivative(c.ValueRef, order)
		if err != nil {
			return fmt.Errorf("output derivative %d of %s: %w", order, c.Name, err)
		}
		c.Storage.SetDerivative(area, c.Index, order, v)
	}
	return nil
}
