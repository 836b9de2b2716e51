// Package workers implements the engine's off-RT task pool: a fixed-capacity
// queue of deferred work, drained LIFO by a small set of background
// goroutines and woken with a condition variable, mirroring the engine's
// original ThreadPool (mutex + pthread_cond_wait worker loop, atomic
// pending-task counter, task slab pushed to only by the RT thread).
package workers

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jamieb133/jamcore/internal/interfaces"
)

// Task is a unit of off-RT work: coefficient recomputation, file I/O,
// render chunk writeback. Data is opaque to the pool.
type Task struct {
	Fn   func(data any)
	Data any
}

// Pool is a fixed-capacity task queue drained by a worker goroutine set.
// DeferTask is the only RT-thread-safe entry point: it writes directly into
// the preallocated task slab and bumps pending with a single atomic
// fetch-add, taking no lock, exactly like the original ThreadPool_DeferTask
// (single-producer, not safe to call concurrently from more than one
// thread). The mutex/cond pair guards the consumer side only: workers take
// it to wait for work and to pop, never the producer.
type Pool struct {
	mu         sync.Mutex
	cond       *sync.Cond
	tasks      []Task
	capacity   int
	pending    atomic.Int32
	numThreads int
	running    bool
	started    bool
	wg         sync.WaitGroup
	logger     interfaces.Logger
	observer   interfaces.Observer
	onPanic    func(r any)
}

// SetPanicHandler installs fn to be called with the recovered value whenever
// a task panics, so the pool's owner can route worker-goroutine faults
// through its own fault handler instead of letting a bare panic crash the
// process with an unstructured trace. The handler is looked up when a task
// panics, so it may be installed before or after Start.
func (p *Pool) SetPanicHandler(fn func(r any)) {
	p.mu.Lock()
	p.onPanic = fn
	p.mu.Unlock()
}

// New creates a pool with the given worker count and queue capacity. The
// pool is idle until Start is called.
func New(numThreads int, capacity int, logger interfaces.Logger, observer interfaces.Observer) *Pool {
	if numThreads < 1 {
		numThreads = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	p := &Pool{
		tasks:      make([]Task, capacity),
		capacity:   capacity,
		numThreads: numThreads,
		logger:     logger,
		observer:   observer,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *Pool) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.started = true
	n := p.numThreads
	p.mu.Unlock()

	if p.logger != nil {
		p.logger.Infof("starting worker pool with %d threads, capacity %d", n, p.capacity)
	}

	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.pending.Load() == 0 && p.running {
			p.cond.Wait()
		}
		n := p.pending.Load()
		if n == 0 && !p.running {
			p.mu.Unlock()
			return
		}

		last := n - 1
		task := p.tasks[last]
		p.pending.Store(last)
		p.mu.Unlock()

		p.runTask(task)
	}
}

// runTask executes one task with its own recover so a panicking task
// (coefficient recompute, chunk I/O) takes down neither the worker
// goroutine nor the process with a bare trace; it is routed through
// onPanic instead, same as any other engine fault.
func (p *Pool) runTask(task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.mu.Lock()
			onPanic := p.onPanic
			p.mu.Unlock()
			if onPanic != nil {
				onPanic(r)
			} else if p.logger != nil {
				p.logger.Errorf("worker task panicked: %v", r)
			}
		}
	}()
	task.Fn(task.Data)

	if p.observer != nil {
		p.observer.ObserveTaskExecuted(uint64(time.Since(start).Nanoseconds()))
	}
}

// DeferTask writes a task into the next free slab slot and publishes it with
// a single atomic fetch-add. Called only from the RT thread; never blocks,
// never takes the consumer-side mutex. Panics if the queue is at capacity,
// matching the original engine's hard assertion rather than silently
// dropping work.
func (p *Pool) DeferTask(fn func(data any), data any) {
	idx := p.pending.Load()
	if int(idx) >= p.capacity {
		panic("workers: task queue at capacity")
	}
	p.tasks[idx] = Task{Fn: fn, Data: data}
	p.pending.Add(1)

	if p.observer != nil {
		p.observer.ObserveTaskDeferred(int(idx) + 1)
	}
}

// FlushTasks wakes sleeping workers if there is pending work. Lock-free and
// safe to call from the RT thread at the end of a callback.
func (p *Pool) FlushTasks() {
	if p.pending.Load() > 0 {
		p.cond.Broadcast()
	}
}

// Stop signals all workers to drain remaining tasks and exit, then blocks
// until every worker goroutine has returned.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()

	if p.logger != nil {
		p.logger.Infof("worker pool stopped")
	}
}

// Pending reports the number of tasks currently queued, for telemetry/tests.
func (p *Pool) Pending() int {
	return int(p.pending.Load())
}
