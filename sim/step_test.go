package sim

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewStepData_InputAtStartOutputAtEnd(t *testing.T) {
	s := NewStepData(10, 20, 5)
	if s.InputTime != 10 || s.OutputTime != 20 {
		t.Errorf("input/output = %d/%d, want 10/20", s.InputTime, s.OutputTime)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestStepData_Validate(t *testing.T) {
	tests := []struct {
		name string
		step StepData
		ok   bool
	}{
		{"empty window", NewStepData(10, 10, 1), true},
		{"reversed", NewStepData(20, 10, 1), false},
		{"zero timestep", NewStepData(0, 10, 0), false},
		{"explicit times", NewStepDataWithTimes(0, 10, 10, 10, 15), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.step.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidStep) {
				t.Errorf("got %v, want ErrInvalidStep", err)
			}
		})
	}
}

func TestInvocable_Bookkeeping(t *testing.T) {
	var inv Invocable
	inv.Setup("n", 7)
	inv.SetID(3)
	inv.SetCurrentTime(42)

	if inv.Name() != "n" || inv.ID() != 3 || inv.Delay() != 7 || inv.CurrentTime() != 42 {
		t.Errorf("unexpected state: %q %d %d %d", inv.Name(), inv.ID(), inv.Delay(), inv.CurrentTime())
	}

	// GIVEN concurrent wall-time updates
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv.AddWalltime(time.Millisecond)
		}()
	}
	wg.Wait()

	// THEN none are lost
	if inv.Walltime() != 10*time.Millisecond {
		t.Errorf("Walltime = %v, want 10ms", inv.Walltime())
	}
}
