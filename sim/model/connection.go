package model

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cosim-dev/cosim/sim/storage"
)

// ErrConnection reports a wire that cannot be built: missing signal or type mismatch.
var ErrConnection = errors.New("invalid connection")

// Connection is one producer -> consumer wire. The consumer owns it and pulls
// data through it; producers never know their consumers.
type Connection struct {
	Type storage.DataType
	Size int

	Source      *storage.RingStorage
	Target      *storage.RingStorage
	SourceIndex int
	TargetIndex int

	// Delay is the transport delay: a pull at input time t reads the producer
	// area valid at t - Delay.
	Delay uint64

	// DerivativeOrder is the number of derivative orders forwarded, 0 for none.
	DerivativeOrder int
}

// NewConnection validates both endpoints and returns the wire.
func NewConnection(source *storage.RingStorage, sourceIndex int, target *storage.RingStorage, targetIndex int, delay uint64, derivativeOrder int) (Connection, error) {
	if source == nil || target == nil {
		return Connection{}, fmt.Errorf("%w: nil storage", ErrConnection)
	}
	src, ok := source.Signal(sourceIndex)
	if !ok {
		return Connection{}, fmt.Errorf("%w: %s has no signal %d", ErrConnection, source.Name(), sourceIndex)
	}
	dst, ok := target.Signal(targetIndex)
	if !ok {
		return Connection{}, fmt.Errorf("%w: %s has no signal %d", ErrConnection, target.Name(), targetIndex)
	}
	if src.Type != dst.Type {
		return Connection{}, fmt.Errorf("%w: %s.%s is %s but %s.%s is %s", ErrConnection,
			source.Name(), src.Name, src.Type, target.Name(), dst.Name, dst.Type)
	}
	order := min(derivativeOrder, src.MaxOrder, dst.MaxOrder)
	return Connection{
		Type:            src.Type,
		Size:            src.Size,
		Source:          source,
		Target:          target,
		SourceIndex:     sourceIndex,
		TargetIndex:     targetIndex,
		Delay:           delay,
		DerivativeOrder: max(order, 0),
	}, nil
}

func (c Connection) String() string {
	src, _ := c.Source.Signal(c.SourceIndex)
	dst, _ := c.Target.Signal(c.TargetIndex)
	return fmt.Sprintf("%s.%s -> %s.%s (%s, delay %d, derivatives %d)",
		c.Source.Name(), src.Name, c.Target.Name(), dst.Name, c.Type, c.Delay, c.DerivativeOrder)
}

// RetrieveInputs pulls every wire into targetArea of the consumer storage. For each
// wire it looks up the newest producer area stamped at or before inputTime - Delay.
// A wire with no such area is left untouched; once inputTime is past grace it is
// logged as a warning. The number of wires without data is returned.
func RetrieveInputs(conns []Connection, targetArea int, inputTime, grace uint64, log *logrus.Entry) int {
	missing := 0
	for i := range conns {
		c := &conns[i]
		sourceArea, ok := -1, false
		if inputTime >= c.Delay {
			sourceArea, ok = c.Source.FindLatestValidArea(inputTime - c.Delay)
		}
		if !ok {
			missing++
			if inputTime > grace && log != nil {
				log.Warnf("No valid data for t %d, connection: %s", inputTime, c)
			}
			continue
		}

		storage.CopyItem(c.Target, targetArea, c.TargetIndex, c.Source, sourceArea, c.SourceIndex)
		for order := 1; order <= c.DerivativeOrder; order++ {
			storage.CopyDerivative(c.Target, targetArea, c.TargetIndex, c.Source, sourceArea, c.SourceIndex, order)
		}
		if log != nil && log.Logger.IsLevelEnabled(logrus.TraceLevel) {
			log.Tracef("Copied %s from area %d (t %d) to area %d", c, sourceArea, c.Source.Time(sourceArea), targetArea)
		}
	}
	return missing
}
