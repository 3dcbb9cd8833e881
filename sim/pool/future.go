package pool

import (
	"sync"
	"sync/atomic"
)

// semaphore is a counting signal: release adds permits, acquire blocks until one is available.
type semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

func newSemaphore() *semaphore {
	s := &semaphore{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *semaphore) release(n int) {
	s.mu.Lock()
	s.count += n
	s.mu.Unlock()
	if n == 1 {
		s.cond.Signal()
	} else {
		s.cond.Broadcast()
	}
}

func (s *semaphore) acquire() {
	s.mu.Lock()
	for s.count == 0 {
		s.cond.Wait()
	}
	s.count--
	s.mu.Unlock()
}

// Future is the result handle of a submitted task.
type Future struct {
	done chan struct{}
	err  error
}

// Wait blocks until the task finished and returns its error.
func (f *Future) Wait() error {
	<-f.done
	return f.err
}

func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}

type job struct {
	fn     func() error
	future *Future
}

// FuturePool runs submitted functions on a fixed set of workers.
type FuturePool struct {
	workers int

	mu    sync.Mutex
	queue []job

	sem     *semaphore
	stopped atomic.Bool
	once    sync.Once
	wg      sync.WaitGroup
}

// NewFuturePool starts workers goroutines. It panics when workers < 1.
func NewFuturePool(workers int) *FuturePool {
	mustWorkers(workers)
	p := &FuturePool{workers: workers, sem: newSemaphore()}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work(i)
	}
	return p
}

func (p *FuturePool) Workers() int { return p.workers }

// Closed reports whether Close was called.
func (p *FuturePool) Closed() bool { return p.stopped.Load() }

// Submit queues fn and returns its Future. After Close the Future completes
// immediately with ErrClosed.
func (p *FuturePool) Submit(fn func() error) *Future {
	f := &Future{done: make(chan struct{})}
	p.mu.Lock()
	if p.stopped.Load() {
		p.mu.Unlock()
		f.complete(ErrClosed)
		return f
	}
	p.queue = append(p.queue, job{fn: fn, future: f})
	p.mu.Unlock()
	p.sem.release(1)
	return f
}

func (p *FuturePool) pop() (job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return job{}, false
	}
	j := p.queue[0]
	p.queue[0] = job{}
	p.queue = p.queue[1:]
	return j, true
}

func (p *FuturePool) work(index int) {
	defer p.wg.Done()
	w := newWorker("future", index)
	w.log.Trace("worker started")
	for {
		p.sem.acquire()
		j, ok := p.pop()
		if !ok {
			if p.stopped.Load() {
				w.log.Trace("worker stopped")
				return
			}
			continue
		}
		j.future.complete(w.protect(j.fn))
	}
}

// Close stops accepting tasks, lets the workers drain the queue and joins them.
// It is safe to call more than once.
func (p *FuturePool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.stopped.Store(true)
		p.mu.Unlock()
		// one extra permit per worker so each one leaves its wait
		p.sem.release(p.workers)
		p.wg.Wait()
	})
}
