// File: core/concurrency/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across worker goroutines, using lock-free local
// queues with a global channel fallback. Implements api.Executor and is the
// default worker pool behind EmitOn stages. Tasks may run on any worker in
// any order; event-ordering across the pool boundary is the responsibility
// of the submitting stage.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-flow/api"
	"github.com/momentics/hioload-flow/control"
)

const localQueueCapacity = 1024

// Executor manages a pool of worker goroutines.
type Executor struct {
	global  chan func()
	closed  atomic.Bool
	closeCh chan struct{}
	rr      atomic.Uint64

	mu      sync.Mutex
	workers []*worker
	queues  atomic.Value // []*MPMCQueue[func()]

	wg  sync.WaitGroup
	pin bool

	submitted atomic.Uint64
	completed atomic.Uint64
}

// Option configures an Executor.
type Option func(*Executor)

// WithPinnedWorkers pins each worker goroutine to one logical CPU. Only
// effective on platforms with scheduler-affinity support; elsewhere a no-op.
func WithPinnedWorkers() Option {
	return func(e *Executor) { e.pin = true }
}

// NewExecutor creates an Executor with the given number of workers.
// numWorkers <= 0 selects runtime.NumCPU().
func NewExecutor(numWorkers int, opts ...Option) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		global:  make(chan func(), numWorkers*4),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.mu.Lock()
	e.spawnLocked(numWorkers)
	e.mu.Unlock()
	return e
}

// spawnLocked grows the pool to the requested size. Caller holds e.mu.
func (e *Executor) spawnLocked(target int) {
	for len(e.workers) < target {
		w := &worker{
			id:      len(e.workers),
			exec:    e,
			local:   NewMPMCQueue[func()](localQueueCapacity),
			stopCh:  make(chan struct{}),
			stopped: make(chan struct{}),
		}
		e.workers = append(e.workers, w)
		e.wg.Add(1)
		go w.run()
	}
	e.publishQueuesLocked()
}

func (e *Executor) publishQueuesLocked() {
	queues := make([]*MPMCQueue[func()], len(e.workers))
	for i, w := range e.workers {
		queues[i] = w.local
	}
	e.queues.Store(queues)
}

// Submit enqueues a task. Returns api.ErrExecutorClosed once Close ran.
// When every queue is full the call blocks until a worker frees capacity,
// applying backpressure to the submitting producer instead of dropping.
func (e *Executor) Submit(task func()) error {
	if e.closed.Load() {
		return api.ErrExecutorClosed
	}
	e.submitted.Add(1)
	queues := e.queues.Load().([]*MPMCQueue[func()])
	idx := e.rr.Add(1) % uint64(len(queues))
	if queues[idx].Enqueue(task) {
		return nil
	}
	select {
	case e.global <- task:
		return nil
	case <-e.closeCh:
		return api.ErrExecutorClosed
	}
}

// Resize dynamically scales the worker pool. Shrinking waits until the
// removed workers have fully stopped; their queued tasks drain into the
// global channel consumers.
func (e *Executor) Resize(newCount int) {
	if newCount <= 0 {
		newCount = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return
	}
	current := len(e.workers)
	switch {
	case newCount > current:
		e.spawnLocked(newCount)
	case newCount < current:
		doomed := e.workers[newCount:]
		e.workers = e.workers[:newCount]
		e.publishQueuesLocked()
		for _, w := range doomed {
			close(w.stopCh)
		}
		for _, w := range doomed {
			<-w.stopped
			w.drainInto(e.global)
		}
	}
}

// Close shuts down the executor, waiting for workers to finish. Idempotent.
// Tasks still queued at close time are dropped.
func (e *Executor) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	close(e.closeCh)
	e.mu.Lock()
	for _, w := range e.workers {
		close(w.stopCh)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// NumWorkers returns active worker count.
func (e *Executor) NumWorkers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.workers)
}

// SnapshotInto publishes current pool counters into reg.
func (e *Executor) SnapshotInto(reg *control.MetricsRegistry) {
	reg.Set("executor.workers", e.NumWorkers())
	reg.Set("executor.pending_global", len(e.global))
	reg.Set("executor.submitted", e.submitted.Load())
	reg.Set("executor.completed", e.completed.Load())
}

type worker struct {
	id      int
	exec    *Executor
	local   *MPMCQueue[func()]
	stopCh  chan struct{}
	stopped chan struct{}
}

func (w *worker) run() {
	defer func() {
		w.exec.wg.Done()
		close(w.stopped)
	}()
	if w.exec.pin {
		runtime.LockOSThread()
		pinToCPU(w.id)
		defer runtime.UnlockOSThread()
	}
	idle := time.Duration(0)
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}
		if task, ok := w.local.Dequeue(); ok {
			w.execute(task)
			idle = 0
			continue
		}
		select {
		case task := <-w.exec.global:
			w.execute(task)
			idle = 0
		case <-w.stopCh:
			return
		default:
			// Adaptive backoff: spin briefly, then yield, then sleep.
			switch {
			case idle < 50*time.Microsecond:
				idle += time.Microsecond
				runtime.Gosched()
			default:
				time.Sleep(50 * time.Microsecond)
			}
		}
	}
}

func (w *worker) execute(task func()) {
	defer func() {
		w.exec.completed.Add(1)
		recover()
	}()
	task()
}

// drainInto moves tasks left in the local queue after a shrink to the
// global channel so they are not lost.
func (w *worker) drainInto(global chan func()) {
	for {
		task, ok := w.local.Dequeue()
		if !ok {
			return
		}
		select {
		case global <- task:
		default:
			go task()
		}
	}
}
