// Package storage provides the time-indexed ring storage that models read inputs
// from and write outputs to.
//
// A RingStorage keeps a fixed number of areas. Each area is a snapshot of every
// registered signal stamped with a simulation time, plus a derivative block for
// signals registered with an interpolation order. Pushing onto a full ring
// recycles the oldest area.
//
// Only the owning model pushes and writes. Other goroutines may look up areas and
// read values concurrently; head, size and timestamps are published atomically so
// those lookups never observe a half-pushed area.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

var (
	ErrZeroCapacity  = errors.New("ring storage capacity must be at least 1")
	ErrAllocated     = errors.New("ring storage already allocated")
	ErrDuplicate     = errors.New("signal already registered")
	ErrDerivativeUse = errors.New("derivatives are only supported for real signals")
)

var byteOrder = binary.LittleEndian

// RingStorage is a bounded, time-stamped history of signal values.
type RingStorage struct {
	name     string
	capacity int

	signals []SignalInfo
	byName  map[string]int

	areaSize   int // value bytes per area
	derSize    int // derivative bytes per area
	stringSlot int // string slots per area

	data      []byte
	der       []byte
	strs      []string
	times     []atomic.Uint64
	flags     []atomic.Bool
	head      atomic.Int64
	size      atomic.Int64
	allocated bool

	overwrites atomic.Uint64
}

// New creates an unallocated storage with room for capacity areas.
func New(capacity int, name string) (*RingStorage, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%s: %w", name, ErrZeroCapacity)
	}
	return &RingStorage{
		name:     name,
		capacity: capacity,
		byName:   make(map[string]int),
	}, nil
}

func (r *RingStorage) Name() string { return r.name }

func (r *RingStorage) Capacity() int { return r.capacity }

// Size is the number of areas pushed so far, capped at the capacity.
func (r *RingStorage) Size() int { return int(r.size.Load()) }

func (r *RingStorage) IsEmpty() bool { return r.Size() == 0 }

func (r *RingStorage) IsFull() bool { return r.Size() == r.capacity }

func (r *RingStorage) Allocated() bool { return r.allocated }

// Overwrites counts pushes that recycled an area still flagged as new data,
// i.e. data the recorder never saw. It is not a push counter: a push onto an
// unflagged or consumed area is not counted.
func (r *RingStorage) Overwrites() uint64 { return r.overwrites.Load() }

// Add registers a signal and returns its index. order is the number of
// derivative slots to reserve.
func (r *RingStorage) Add(name string, t DataType, order int) (int, error) {
	if r.allocated {
		return -1, fmt.Errorf("%s: add %q: %w", r.name, name, ErrAllocated)
	}
	if _, ok := r.byName[name]; ok {
		return -1, fmt.Errorf("%s: add %q: %w", r.name, name, ErrDuplicate)
	}
	if t == Unknown {
		return -1, fmt.Errorf("%s: add %q: unknown data type", r.name, name)
	}
	if order < 0 {
		order = 0
	}
	if order > 0 && t != Real {
		return -1, fmt.Errorf("%s: add %q: %w", r.name, name, ErrDerivativeUse)
	}

	info := SignalInfo{
		Index:            len(r.signals),
		Name:             name,
		Type:             t,
		Size:             t.Size(),
		MaxOrder:         order,
		DerivativeOffset: r.derSize,
	}
	if t == String {
		info.Offset = r.stringSlot
		r.stringSlot++
	} else {
		info.Offset = r.areaSize
		r.areaSize += info.Size
	}
	r.derSize += order * DerivativeSize

	r.signals = append(r.signals, info)
	r.byName[name] = info.Index
	return info.Index, nil
}

// Allocate materializes every area, zero-initialized. The signal layout is frozen
// afterwards.
func (r *RingStorage) Allocate() error {
	if r.allocated {
		return fmt.Errorf("%s: %w", r.name, ErrAllocated)
	}
	r.data = make([]byte, r.areaSize*r.capacity)
	r.der = make([]byte, r.derSize*r.capacity)
	r.strs = make([]string, r.stringSlot*r.capacity)
	r.times = make([]atomic.Uint64, r.capacity)
	r.flags = make([]atomic.Bool, r.capacity)
	r.head.Store(int64(r.capacity - 1))
	r.allocated = true
	return nil
}

func (r *RingStorage) mustAllocated() {
	if !r.allocated {
		panic(fmt.Sprintf("ring storage %s used before Allocate", r.name))
	}
}

// Push advances the ring by one area stamped with time and returns the area.
// On a full ring the oldest area is recycled.
func (r *RingStorage) Push(time uint64) int {
	r.mustAllocated()
	area := (int(r.head.Load()) + 1) % r.capacity
	if r.flags[area].Swap(false) {
		r.overwrites.Add(1)
	}
	r.times[area].Store(time)
	// head is published before size so a reader that sees the new size also
	// sees the new head.
	r.head.Store(int64(area))
	if int(r.size.Load()) < r.capacity {
		r.size.Add(1)
	}
	return area
}

// CopyArea copies every value and derivative of area src into area dst.
func (r *RingStorage) CopyArea(dst, src int) {
	r.mustAllocated()
	if dst == src {
		return
	}
	copy(r.data[dst*r.areaSize:(dst+1)*r.areaSize], r.data[src*r.areaSize:(src+1)*r.areaSize])
	copy(r.der[dst*r.derSize:(dst+1)*r.derSize], r.der[src*r.derSize:(src+1)*r.derSize])
	copy(r.strs[dst*r.stringSlot:(dst+1)*r.stringSlot], r.strs[src*r.stringSlot:(src+1)*r.stringSlot])
}

// GetOrPush returns the area stamped exactly at time, pushing a new one if none exists.
func (r *RingStorage) GetOrPush(time uint64) int {
	if area, ok := r.FindArea(time); ok {
		return area
	}
	return r.Push(time)
}

// FindArea returns the newest area stamped exactly at time.
func (r *RingStorage) FindArea(time uint64) (int, bool) {
	return r.scan(func(t uint64) bool { return t == time })
}

// FindLatestValidArea returns the newest area stamped at or before time. No
// qualifying area is a normal outcome during start-up.
func (r *RingStorage) FindLatestValidArea(time uint64) (int, bool) {
	return r.scan(func(t uint64) bool { return t <= time })
}

func (r *RingStorage) scan(match func(uint64) bool) (int, bool) {
	if !r.allocated {
		return -1, false
	}
	n := int(r.size.Load())
	head := int(r.head.Load())
	for i := 0; i < n; i++ {
		area := (head - i + r.capacity) % r.capacity
		if match(r.times[area].Load()) {
			return area, true
		}
	}
	return -1, false
}

// Newest returns the most recently pushed area.
func (r *RingStorage) Newest() (int, bool) {
	if r.Size() == 0 {
		return -1, false
	}
	return int(r.head.Load()), true
}

// Time returns the timestamp of area.
func (r *RingStorage) Time(area int) uint64 {
	r.mustAllocated()
	return r.times[area].Load()
}

// FlagNewData marks area as updated for observers such as the recorder.
func (r *RingStorage) FlagNewData(area int) {
	r.mustAllocated()
	r.flags[area].Store(true)
}

func (r *RingStorage) HasNewData(area int) bool {
	r.mustAllocated()
	return r.flags[area].Load()
}

// ConsumeNewData clears the new-data flag and reports whether it was set.
func (r *RingStorage) ConsumeNewData(area int) bool {
	r.mustAllocated()
	return r.flags[area].CompareAndSwap(true, false)
}

// Signals returns the registered signals in index order.
func (r *RingStorage) Signals() []SignalInfo {
	out := make([]SignalInfo, len(r.signals))
	copy(out, r.signals)
	return out
}

// Signal returns the registration record of index.
func (r *RingStorage) Signal(index int) (SignalInfo, bool) {
	if index < 0 || index >= len(r.signals) {
		return SignalInfo{}, false
	}
	return r.signals[index], true
}

// IndexByName returns the index of the named signal.
func (r *RingStorage) IndexByName(name string) (int, bool) {
	idx, ok := r.byName[name]
	return idx, ok
}

// Item returns the raw bytes of a fixed-size value. String signals have no arena
// bytes and return nil.
func (r *RingStorage) Item(area, index int) []byte {
	r.mustAllocated()
	s := r.signals[index]
	if s.Type == String {
		return nil
	}
	start := area*r.areaSize + s.Offset
	return r.data[start : start+s.Size : start+s.Size]
}

// Derivative returns the raw bytes of derivative order (1-based) of a signal, or
// false when the signal was not registered with that many orders.
func (r *RingStorage) Derivative(area, index, order int) ([]byte, bool) {
	r.mustAllocated()
	s := r.signals[index]
	if order < 1 || order > s.MaxOrder {
		return nil, false
	}
	start := area*r.derSize + s.DerivativeOffset + (order-1)*DerivativeSize
	return r.der[start : start+DerivativeSize : start+DerivativeSize], true
}

func (r *RingStorage) expect(index int, t DataType) SignalInfo {
	s := r.signals[index]
	if s.Type != t {
		panic(fmt.Sprintf("%s: signal %q is %s, accessed as %s", r.name, s.Name, s.Type, t))
	}
	return s
}

func (r *RingStorage) Real(area, index int) float64 {
	r.expect(index, Real)
	return math.Float64frombits(byteOrder.Uint64(r.Item(area, index)))
}

func (r *RingStorage) SetReal(area, index int, v float64) {
	r.expect(index, Real)
	byteOrder.PutUint64(r.Item(area, index), math.Float64bits(v))
}

func (r *RingStorage) Integer(area, index int) int32 {
	r.expect(index, Integer)
	return int32(byteOrder.Uint32(r.Item(area, index)))
}

func (r *RingStorage) SetInteger(area, index int, v int32) {
	r.expect(index, Integer)
	byteOrder.PutUint32(r.Item(area, index), uint32(v))
}

func (r *RingStorage) Enumeration(area, index int) int32 {
	r.expect(index, Enumeration)
	return int32(byteOrder.Uint32(r.Item(area, index)))
}

func (r *RingStorage) SetEnumeration(area, index int, v int32) {
	r.expect(index, Enumeration)
	byteOrder.PutUint32(r.Item(area, index), uint32(v))
}

func (r *RingStorage) Boolean(area, index int) bool {
	r.expect(index, Boolean)
	return byteOrder.Uint32(r.Item(area, index)) != 0
}

func (r *RingStorage) SetBoolean(area, index int, v bool) {
	r.expect(index, Boolean)
	var b uint32
	if v {
		b = 1
	}
	byteOrder.PutUint32(r.Item(area, index), b)
}

func (r *RingStorage) StringValue(area, index int) string {
	r.mustAllocated()
	s := r.expect(index, String)
	return r.strs[area*r.stringSlot+s.Offset]
}

func (r *RingStorage) SetStringValue(area, index int, v string) {
	r.mustAllocated()
	s := r.expect(index, String)
	r.strs[area*r.stringSlot+s.Offset] = v
}

// DerivativeValue reads derivative order of a real signal.
func (r *RingStorage) DerivativeValue(area, index, order int) (float64, bool) {
	b, ok := r.Derivative(area, index, order)
	if !ok {
		return 0, false
	}
	return math.Float64frombits(byteOrder.Uint64(b)), true
}

// SetDerivative writes derivative order of a real signal. It reports false when
// the order was not registered.
func (r *RingStorage) SetDerivative(area, index, order int, v float64) bool {
	b, ok := r.Derivative(area, index, order)
	if !ok {
		return false
	}
	byteOrder.PutUint64(b, math.Float64bits(v))
	return true
}

// CopyItem copies one value between storages. Both signals must have the same type.
func CopyItem(dst *RingStorage, dstArea, dstIndex int, src *RingStorage, srcArea, srcIndex int) {
	t := src.signals[srcIndex].Type
	dst.expect(dstIndex, t)
	if t == String {
		dst.SetStringValue(dstArea, dstIndex, src.StringValue(srcArea, srcIndex))
		return
	}
	copy(dst.Item(dstArea, dstIndex), src.Item(srcArea, srcIndex))
}

// CopyDerivative copies one derivative order between storages. It reports false
// when either side lacks the order.
func CopyDerivative(dst *RingStorage, dstArea, dstIndex int, src *RingStorage, srcArea, srcIndex, order int) bool {
	from, ok := src.Derivative(srcArea, srcIndex, order)
	if !ok {
		return false
	}
	to, ok := dst.Derivative(dstArea, dstIndex, order)
	if !ok {
		return false
	}
	copy(to, from)
	return true
}

// FormatItem renders a value for logs and result files.
func (r *RingStorage) FormatItem(area, index int) string {
	switch r.signals[index].Type {
	case Real:
		return fmt.Sprintf("%g", r.Real(area, index))
	case Integer:
		return fmt.Sprintf("%d", r.Integer(area, index))
	case Enumeration:
		return fmt.Sprintf("%d", r.Enumeration(area, index))
	case Boolean:
		if r.Boolean(area, index) {
			return "1"
		}
		return "0"
	case String:
		return r.StringValue(area, index)
	}
	return ""
}

// ExportArea dumps every signal of area for debugging.
func (r *RingStorage) ExportArea(area int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s area %d time %d\n", r.name, area, r.Time(area))
	for _, s := range r.signals {
		fmt.Fprintf(&sb, "  %s (%s, offset %d, orders %d) = %s\n",
			s.Name, s.Type, s.Offset, s.MaxOrder, r.FormatItem(area, s.Index))
	}
	return sb.String()
}
