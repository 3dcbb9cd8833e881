package pool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cosim-dev/cosim/sim"
)

// Task is one node invocation handed to a SpinPool. The pool borrows Node.
type Task struct {
	Node sim.Steppable
	Step sim.StepData
}

type taskError struct {
	id  int
	err error
}

// SpinPool runs waves of Tasks. A wave is declared with Ready, filled with
// Enqueue and awaited with Wait, which spins on the per-worker done flags
// instead of blocking.
type SpinPool struct {
	workers int

	mu        sync.Mutex
	cond      *sync.Cond
	epoch     uint64
	stack     []Task
	remaining int
	terminate bool

	done []atomic.Bool

	errMu sync.Mutex
	errs  []taskError

	once sync.Once
	wg   sync.WaitGroup
}

// NewSpinPool starts workers goroutines. It panics when workers < 1.
func NewSpinPool(workers int) *SpinPool {
	mustWorkers(workers)
	p := &SpinPool{
		workers: workers,
		done:    make([]atomic.Bool, workers),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := range p.done {
		p.done[i].Store(true)
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work(i)
	}
	return p
}

func (p *SpinPool) Workers() int { return p.workers }

// Ready declares that the next wave holds n tasks and wakes every worker.
// Tasks enqueued before Ready are kept and count towards n.
func (p *SpinPool) Ready(n int) {
	p.errMu.Lock()
	p.errs = p.errs[:0]
	p.errMu.Unlock()

	p.mu.Lock()
	p.remaining = n
	for i := range p.done {
		p.done[i].Store(false)
	}
	p.epoch++
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Enqueue pushes t onto the shared task stack.
func (p *SpinPool) Enqueue(t Task) {
	p.mu.Lock()
	p.stack = append(p.stack, t)
	p.mu.Unlock()
}

// Done reports whether every worker finished the current wave.
func (p *SpinPool) Done() bool {
	for i := range p.done {
		if !p.done[i].Load() {
			return false
		}
	}
	return true
}

// Wait spins until Done.
func (p *SpinPool) Wait() {
	for !p.Done() {
		runtime.Gosched()
	}
}

// Err returns the error of the failed task with the lowest node id in the last
// wave, or nil.
func (p *SpinPool) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	var first *taskError
	for i := range p.errs {
		if first == nil || p.errs[i].id < first.id {
			first = &p.errs[i]
		}
	}
	if first == nil {
		return nil
	}
	return first.err
}

// Closed reports whether Close was called.
func (p *SpinPool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminate
}

// Run executes tasks as one wave and returns Err. After Close it returns
// ErrClosed without running anything.
func (p *SpinPool) Run(tasks []Task) error {
	if p.Closed() {
		return ErrClosed
	}
	p.Ready(len(tasks))
	for _, t := range tasks {
		p.Enqueue(t)
	}
	p.Wait()
	return p.Err()
}

func (p *SpinPool) next() (Task, bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remaining == 0 || p.terminate {
		return Task{}, false, false
	}
	n := len(p.stack)
	if n == 0 {
		return Task{}, false, true
	}
	t := p.stack[n-1]
	p.stack[n-1] = Task{}
	p.stack = p.stack[:n-1]
	p.remaining--
	return t, true, true
}

func (p *SpinPool) work(index int) {
	defer p.wg.Done()
	w := newWorker("spin", index)
	var seen uint64
	for {
		p.mu.Lock()
		for p.epoch == seen && !p.terminate {
			p.cond.Wait()
		}
		if p.terminate {
			p.mu.Unlock()
			w.log.Trace("worker stopped")
			return
		}
		seen = p.epoch
		p.mu.Unlock()

		for {
			t, ok, more := p.next()
			if !more {
				break
			}
			if !ok {
				// wave declared but not filled yet
				runtime.Gosched()
				continue
			}
			err := w.protect(func() error {
				_, err := t.Node.Invoke(t.Step)
				return err
			})
			if err != nil {
				p.errMu.Lock()
				p.errs = append(p.errs, taskError{id: t.Node.ID(), err: err})
				p.errMu.Unlock()
			}
		}
		p.done[index].Store(true)
	}
}

// Close terminates the workers and joins them. Tasks of an unfinished wave are
// abandoned, so call it only after Wait.
func (p *SpinPool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.terminate = true
		p.mu.Unlock()
		p.cond.Broadcast()
		p.wg.Wait()
	})
}
