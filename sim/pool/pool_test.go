package pool

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosim-dev/cosim/sim"
)

// counterNode increments a shared counter on every Invoke and records its own calls.
type counterNode struct {
	sim.Invocable
	shared *atomic.Int64
	calls  atomic.Int64
	fail   error
	panics bool
}

func newCounterNode(id int, shared *atomic.Int64) *counterNode {
	n := &counterNode{shared: shared}
	n.Setup(fmt.Sprintf("n%d", id), 0)
	n.SetID(id)
	return n
}

func (n *counterNode) EnterInit() error { return nil }
func (n *counterNode) ExitInit() error  { return nil }

func (n *counterNode) Invoke(step sim.StepData) (uint64, error) {
	n.calls.Add(1)
	n.shared.Add(1)
	if n.panics {
		panic("boom")
	}
	return step.End, n.fail
}

func TestFuturePool_HundredIncrements(t *testing.T) {
	// GIVEN a pool of 4 workers
	p := NewFuturePool(4)
	defer p.Close()
	var counter atomic.Int64

	// WHEN 100 increment tasks are submitted and awaited, in 3 waves
	for wave := 1; wave <= 3; wave++ {
		futures := make([]*Future, 100)
		for i := range futures {
			futures[i] = p.Submit(func() error {
				counter.Add(1)
				return nil
			})
		}
		for _, f := range futures {
			require.NoError(t, f.Wait())
		}

		// THEN every task ran exactly once
		assert.Equal(t, int64(100*wave), counter.Load())
	}
}

func TestFuturePool_ErrorsAndPanicsReachTheFuture(t *testing.T) {
	p := NewFuturePool(2)
	defer p.Close()
	boom := errors.New("boom")

	assert.ErrorIs(t, p.Submit(func() error { return boom }).Wait(), boom)
	assert.ErrorIs(t, p.Submit(func() error { panic("bad") }).Wait(), ErrTaskPanic)
	assert.NoError(t, p.Submit(func() error { return nil }).Wait(), "workers survive a panic")
}

func TestPools_PanicNamesTheWorkerGoroutine(t *testing.T) {
	// GIVEN single-worker pools, so the panicking task runs on worker 0
	fp := NewFuturePool(1)
	defer fp.Close()
	sp := NewSpinPool(1)
	defer sp.Close()

	// WHEN a task panics on each
	futureErr := fp.Submit(func() error { panic("bad") }).Wait()
	var shared atomic.Int64
	n := newCounterNode(0, &shared)
	n.panics = true
	spinErr := sp.Run([]Task{{Node: n, Step: sim.NewStepData(0, 1, 1)}})

	// THEN the error carries the pool, the worker index and its goroutine id
	for _, tc := range []struct {
		err     error
		pattern string
	}{
		{futureErr, `future worker 0 \(goroutine [1-9][0-9]*\): bad`},
		{spinErr, `spin worker 0 \(goroutine [1-9][0-9]*\): boom`},
	} {
		require.ErrorIs(t, tc.err, ErrTaskPanic)
		assert.Regexp(t, tc.pattern, tc.err.Error())
	}
}

func TestFuturePool_CloseDrainsQueueAndRejectsLateWork(t *testing.T) {
	// GIVEN a single worker blocked on a gate with 10 tasks queued behind it
	p := NewFuturePool(1)
	gate := make(chan struct{})
	var ran atomic.Int64
	first := p.Submit(func() error { <-gate; return nil })
	var queued []*Future
	for i := 0; i < 10; i++ {
		queued = append(queued, p.Submit(func() error { ran.Add(1); return nil }))
	}

	// WHEN Close is called while the worker is busy
	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()
	time.Sleep(10 * time.Millisecond)
	close(gate)
	<-closed

	// THEN every queued task still ran and later submissions are refused
	require.NoError(t, first.Wait())
	for _, f := range queued {
		require.NoError(t, f.Wait())
	}
	assert.Equal(t, int64(10), ran.Load())
	assert.ErrorIs(t, p.Submit(func() error { return nil }).Wait(), ErrClosed)
	p.Close()
}

func TestSpinPool_HundredIncrementsRepeatedWaves(t *testing.T) {
	// GIVEN a spin pool of 4 workers and 100 nodes sharing a counter
	p := NewSpinPool(4)
	defer p.Close()
	var counter atomic.Int64
	tasks := make([]Task, 100)
	nodes := make([]*counterNode, 100)
	for i := range tasks {
		nodes[i] = newCounterNode(i, &counter)
		tasks[i] = Task{Node: nodes[i], Step: sim.NewStepData(0, 10, 10)}
	}

	// WHEN the same wave runs 5 times
	for wave := 1; wave <= 5; wave++ {
		require.NoError(t, p.Run(tasks))
		assert.Equal(t, int64(100*wave), counter.Load())
	}

	// THEN no node ran more than once per wave
	for _, n := range nodes {
		assert.Equal(t, int64(5), n.calls.Load())
	}
}

func TestSpinPool_TasksEnqueuedBeforeReadyAreKept(t *testing.T) {
	p := NewSpinPool(2)
	defer p.Close()
	var counter atomic.Int64

	p.Enqueue(Task{Node: newCounterNode(0, &counter), Step: sim.NewStepData(0, 1, 1)})
	p.Ready(2)
	p.Enqueue(Task{Node: newCounterNode(1, &counter), Step: sim.NewStepData(0, 1, 1)})
	p.Wait()

	assert.Equal(t, int64(2), counter.Load())
	assert.True(t, p.Done())
}

func TestSpinPool_ErrReturnsLowestNodeID(t *testing.T) {
	// GIVEN three failing nodes among healthy ones
	p := NewSpinPool(3)
	defer p.Close()
	var counter atomic.Int64
	var tasks []Task
	for i := 0; i < 8; i++ {
		n := newCounterNode(i, &counter)
		switch i {
		case 2:
			n.panics = true
		case 5, 6:
			n.fail = fmt.Errorf("node %d failed", i)
		}
		tasks = append(tasks, Task{Node: n, Step: sim.NewStepData(0, 1, 1)})
	}

	// WHEN the wave runs
	err := p.Run(tasks)

	// THEN everyone ran and the lowest failing id wins
	assert.Equal(t, int64(8), counter.Load())
	assert.ErrorIs(t, err, ErrTaskPanic)

	// AND the next clean wave reports no error
	assert.NoError(t, p.Run(tasks[:2]))
}

func TestSpinPool_EmptyWave(t *testing.T) {
	p := NewSpinPool(2)
	defer p.Close()
	assert.NoError(t, p.Run(nil))
}

func TestNewPools_RejectZeroWorkers(t *testing.T) {
	assert.Panics(t, func() { NewFuturePool(0) })
	assert.Panics(t, func() { NewSpinPool(0) })
}

func TestSpinPool_RunAfterCloseFails(t *testing.T) {
	p := NewSpinPool(2)
	assert.False(t, p.Closed())
	p.Close()

	assert.True(t, p.Closed())
	assert.ErrorIs(t, p.Run(nil), ErrClosed)
}
