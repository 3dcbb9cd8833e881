// Package pool provides the two fixed-size worker pools behind the parallel
// scheduling methods.
//
// FuturePool blocks idle workers on a counting semaphore and hands each
// submitter a Future to wait on. SpinPool wakes workers with an epoch counter
// and lets the submitter poll per-worker done flags, trading CPU for wake-up
// latency.
//
// Both pools run every task at most once, keep tasks queued between waves, and
// join every worker on Close.
package pool

import (
	"errors"
	"fmt"

	"github.com/petermattis/goid"
	"github.com/sirupsen/logrus"
)

var (
	ErrClosed    = errors.New("worker pool closed")
	ErrTaskPanic = errors.New("task panicked")
)

// worker identifies the goroutine running tasks for a pool.
type worker struct {
	pool  string
	index int
	goid  int64
	log   *logrus.Entry
}

// newWorker must be called from the worker goroutine itself.
func newWorker(pool string, index int) worker {
	id := goid.Get()
	return worker{
		pool:  pool,
		index: index,
		goid:  id,
		log: logrus.WithFields(logrus.Fields{
			"pool":   pool,
			"worker": index,
			"goid":   id,
		}),
	}
}

func (w worker) String() string {
	return fmt.Sprintf("%s worker %d (goroutine %d)", w.pool, w.index, w.goid)
}

// protect runs fn and converts a panic into an error naming the worker.
func (w worker) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w on %s: %v", ErrTaskPanic, w, r)
			w.log.Warnf("task panicked: %v", r)
		}
	}()
	return fn()
}

func mustWorkers(n int) {
	if n < 1 {
		panic(fmt.Sprintf("worker pool needs at least one worker, got %d", n))
	}
}
