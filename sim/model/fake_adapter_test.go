package model

import "fmt"

// fakeAdapter is an in-memory Adapter. step is applied on every StepUntil.
type fakeAdapter struct {
	reals   map[uint64]float64
	ints    map[uint64]int32
	bools   map[uint64]bool
	strs    map[uint64]string
	inDer   map[[2]uint64]float64
	outDer  map[[2]uint64]float64
	now     uint64
	calls   []string
	step    func(f *fakeAdapter)
	stepErr error
}

func newFakeAdapter(step func(f *fakeAdapter)) *fakeAdapter {
	return &fakeAdapter{
		reals:  make(map[uint64]float64),
		ints:   make(map[uint64]int32),
		bools:  make(map[uint64]bool),
		strs:   make(map[uint64]string),
		inDer:  make(map[[2]uint64]float64),
		outDer: make(map[[2]uint64]float64),
		step:   step,
	}
}

func (f *fakeAdapter) SetupExperiment(start, stop uint64, _ float64) error {
	f.calls = append(f.calls, fmt.Sprintf("setup %d %d", start, stop))
	f.now = start
	return nil
}

func (f *fakeAdapter) EnterInitializationMode() error {
	f.calls = append(f.calls, "enter")
	return nil
}

func (f *fakeAdapter) ExitInitializationMode() error {
	f.calls = append(f.calls, "exit")
	return nil
}

func (f *fakeAdapter) StepUntil(t uint64) (uint64, error) {
	if f.stepErr != nil {
		return f.now, f.stepErr
	}
	if f.step != nil {
		f.step(f)
	}
	f.now = t
	return t, nil
}

func (f *fakeAdapter) Terminate() error {
	f.calls = append(f.calls, "terminate")
	return nil
}

func (f *fakeAdapter) ReadReal(vr uint64) (float64, error)      { return f.reals[vr], nil }
func (f *fakeAdapter) WriteReal(vr uint64, v float64) error     { f.reals[vr] = v; return nil }
func (f *fakeAdapter) ReadInteger(vr uint64) (int32, error)     { return f.ints[vr], nil }
func (f *fakeAdapter) WriteInteger(vr uint64, v int32) error    { f.ints[vr] = v; return nil }
func (f *fakeAdapter) ReadBoolean(vr uint64) (bool, error)      { return f.bools[vr], nil }
func (f *fakeAdapter) WriteBoolean(vr uint64, v bool) error     { f.bools[vr] = v; return nil }
func (f *fakeAdapter) ReadString(vr uint64) (string, error)     { return f.strs[vr], nil }
func (f *fakeAdapter) WriteString(vr uint64, v string) error    { f.strs[vr] = v; return nil }

func (f *fakeAdapter) SetRealInputDerivative(vr uint64, order int, v float64) error {
	f.inDer[[2]uint64{vr, uint64(order)}] = v
	return nil
}

func (f *fakeAdapter) RealOutputDerivative(vr uint64, order int) (float64, error) {
	return f.outDer[[2]uint64{vr, uint64(order)}], nil
}
