// Package jamcore implements a realtime audio processing engine: a
// directed signal graph driven by a platform audio callback at strict
// deadlines, backed by an off-RT worker pool for latency-tolerant work.
// The design is a Go port of a CoreAudio-based C engine (see
// internal/graph, internal/arena, internal/workers, internal/fault for the
// components it's assembled from); this file wires them into the top-level
// Engine lifecycle: Init -> Start -> Stop -> Deinit.
package jamcore

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jamieb133/jamcore/internal/arena"
	"github.com/jamieb133/jamcore/internal/constants"
	"github.com/jamieb133/jamcore/internal/fault"
	"github.com/jamieb133/jamcore/internal/graph"
	"github.com/jamieb133/jamcore/internal/interfaces"
	"github.com/jamieb133/jamcore/internal/logging"
	"github.com/jamieb133/jamcore/internal/workers"
)

// Lifecycle flag bits, mirroring the engine's original ENGINE_* flags
// register.
const (
	flagInitialized uint32 = 1 << iota
	flagStarted
	flagStopRequested
	flagAudioThreadSilenced
)

// EngineParams configures Init: a plain struct of tunables with a
// constructor supplying sensible defaults.
type EngineParams struct {
	MasterGain     float32
	SampleRate     float64
	MaxFrames      int
	ScratchBytes   int
	WorkerThreads  int
	TaskQueueDepth int
}

// DefaultEngineParams returns the engine's documented default constants.
func DefaultEngineParams() EngineParams {
	return EngineParams{
		MasterGain:     1.0,
		SampleRate:     constants.DefaultSampleRate,
		MaxFrames:      constants.DefaultMaxFramesPerCallback,
		ScratchBytes:   constants.DefaultScratchArenaBytes,
		WorkerThreads:  constants.DefaultWorkerThreads,
		TaskQueueDepth: constants.DefaultTaskQueueCapacity,
	}
}

// Options carries optional collaborators; zero value is valid and uses
// package defaults (a no-op observer, the default logger).
type Options struct {
	Logger   interfaces.Logger
	Observer interfaces.Observer
}

// Engine is the process-wide engine context. One instance corresponds to
// one platform audio unit; nothing requires a single process-wide
// instance, but in practice only one is ever constructed.
type Engine struct {
	flags      atomic.Uint32
	masterGain atomic.Uint32 // float32 bits, via math.Float32bits
	sampleRate float64
	maxFrames  int

	mu   sync.Mutex
	cond *sync.Cond

	scratch *arena.Arena
	table   *graph.Table
	pool    *workers.Pool

	fault    *fault.Handler
	logger   interfaces.Logger
	observer interfaces.Observer
}

// Init allocates the engine's arenas, table, and worker pool, and
// transitions to Initialized. Each call returns a new, independent engine.
func Init(params EngineParams, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = NoOpObserver{}
	}

	e := &Engine{
		sampleRate: params.SampleRate,
		maxFrames:  params.MaxFrames,
		scratch:    arena.New(params.ScratchBytes),
		table:      graph.NewTable(),
		pool:       workers.New(params.WorkerThreads, params.TaskQueueDepth, logger, observer),
		logger:     logger,
		observer:   observer,
	}
	e.cond = sync.NewCond(&e.mu)
	e.setMasterGain(params.MasterGain)
	e.fault = fault.New(func() { e.stopInternal() }, logger)
	e.pool.SetPanicHandler(func(r any) { e.fault.Panic(r) })

	e.flags.Store(flagInitialized)
	logger.Infof("engine initialized: sampleRate=%.0f maxFrames=%d gain=%.2f",
		params.SampleRate, params.MaxFrames, params.MasterGain)
	return e
}

func (e *Engine) hasFlag(bit uint32) bool {
	return e.flags.Load()&bit != 0
}

func (e *Engine) setFlag(bit uint32) {
	for {
		old := e.flags.Load()
		if e.flags.CompareAndSwap(old, old|bit) {
			return
		}
	}
}

func (e *Engine) clearFlag(bit uint32) {
	for {
		old := e.flags.Load()
		if e.flags.CompareAndSwap(old, old&^bit) {
			return
		}
	}
}

func (e *Engine) assertFatal(op string, cond bool, msg string) {
	if !cond {
		e.fault.Panic(fmt.Sprintf("%s: %s", op, msg))
	}
}

// Start opens the platform audio unit and begins producing callbacks.
// Fatal if the engine is not Initialized or is already Started.
func (e *Engine) Start(open func(cb func(numFrames int, output []float32)) error) error {
	e.assertFatal("Start", e.hasFlag(flagInitialized), "engine not initialized")
	e.assertFatal("Start", !e.hasFlag(flagStarted), "engine already started")

	e.fault.WatchSIGINT()
	e.pool.Start()

	if open != nil {
		if err := open(e.RTCallback); err != nil {
			return WrapError("Start", err)
		}
	}

	e.setFlag(flagStarted)
	e.logger.Infof("engine started")
	return nil
}

// Stop requests the RT thread fade out and blocks until it acknowledges by
// setting AudioThreadSilenced. There is no timeout: it waits indefinitely,
// bounded in practice by one RT callback.
func (e *Engine) Stop() {
	e.assertFatal("Stop", e.hasFlag(flagInitialized), "engine not initialized")
	e.assertFatal("Stop", e.hasFlag(flagStarted), "engine not started")
	e.stopInternal()
}

func (e *Engine) stopInternal() {
	if e.hasFlag(flagStopRequested) {
		return
	}
	e.logger.Infof("stop requested")
	e.setFlag(flagStopRequested)

	e.mu.Lock()
	for !e.hasFlag(flagAudioThreadSilenced) {
		e.cond.Wait()
	}
	e.mu.Unlock()

	e.clearFlag(flagStarted)
	e.pool.Stop()
	e.fault.StopWatching()
	e.logger.Infof("engine stopped")
}

// Deinit destroys every live processor, releases arenas, and clears flags.
// Fatal if the engine is still Started.
func (e *Engine) Deinit() {
	e.assertFatal("Deinit", e.hasFlag(flagInitialized), "engine not initialized")
	e.assertFatal("Deinit", !e.hasFlag(flagStarted), "engine still started, must stop first")

	e.table.Destroy()
	e.scratch.Release()
	e.flags.Store(0)
	e.logger.Infof("engine deinitialized")
}

func (e *Engine) setMasterGain(gain float32) {
	e.masterGain.Store(math.Float32bits(gain))
}

// MasterGain returns the current master gain, readable from any thread.
func (e *Engine) MasterGain() float32 {
	return math.Float32frombits(e.masterGain.Load())
}

// SetMasterGain updates the master gain from the control thread.
func (e *Engine) SetMasterGain(gain float32) {
	e.setMasterGain(gain)
}

// CreateProcessor registers a new node and returns its ID.
func (e *Engine) CreateProcessor(process graph.ProcessFunc, destroy graph.DestroyFunc, onCycle graph.OnCycleFunc, data any) uint16 {
	id := e.table.CreateProcessor(process, destroy, onCycle, data)
	e.logger.Debugf("created processor %d", id)
	return uint16(id)
}

// RemoveProcessor clears a processor's occupancy bit.
func (e *Engine) RemoveProcessor(id uint16) {
	e.table.RemoveProcessor(int(id))
	e.logger.Debugf("removed processor %d", id)
}

// Route adds or removes the directed edge src -> dst.
func (e *Engine) Route(src, dst uint16, enable bool) {
	e.table.Route(int(src), int(dst), enable)
	e.logger.Debugf("route %d -> %d enable=%v", src, dst, enable)
}

// AddSource marks id as an additional traversal root.
func (e *Engine) AddSource(id uint16) {
	e.table.AddSource(int(id))
}

// SetSource clears existing roots and marks id as the sole root.
func (e *Engine) SetSource(id uint16) {
	e.table.SetSource(int(id))
}

// SubmitTask defers fn to the worker pool. Safe to call from the RT thread;
// never blocks.
func (e *Engine) SubmitTask(fn func(data any), data any) {
	e.pool.DeferTask(fn, data)
}

// FlushTasks wakes sleeping workers if tasks are pending. Call at the end
// of an RT callback.
func (e *Engine) FlushTasks() {
	e.pool.FlushTasks()
}

// SampleRate returns the sample rate negotiated at Init.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// MaxFrames returns the maximum frames per callback negotiated at Init.
func (e *Engine) MaxFrames() int { return e.maxFrames }

// RTCallback is the engine's RT entry point: the function a platform audio
// driver invokes every callback with a target interleaved-stereo output
// buffer. It must never block, allocate from the general heap outside the
// scratch arena, or take a contended lock.
func (e *Engine) RTCallback(numFrames int, output []float32) {
	// Any panic reaching here (e.g. a graph.FatalError for the traversal
	// recursion-depth cap, or an arena.ExhaustedError) is routed through
	// the fault handler instead of crashing this goroutine with a bare
	// trace.
	defer e.fault.Recover()

	logging.EnterRT()
	defer logging.ExitRT()

	start := time.Now()

	for i := range output {
		output[i] = 0
	}

	e.assertFatal("RTCallback", numFrames <= e.maxFrames, "numFrames exceeds maxFrames")

	if !e.hasFlag(flagStarted) {
		return
	}

	if e.hasFlag(flagStopRequested) {
		e.setMasterGain(0)
		e.setFlag(flagAudioThreadSilenced)
		e.mu.Lock()
		e.cond.Signal()
		e.mu.Unlock()
		return
	}

	expected := numFrames * constants.ChannelsPerFrame
	e.assertFatal("RTCallback", len(output) >= expected, "output buffer too small")

	for _, sourceID := range e.table.Sources() {
		branch := e.scratch.Calloc(expected)
		graph.Traverse(e.table, sourceID, e.sampleRate, numFrames, branch, output, 0, e.scratch)
	}

	gain := e.MasterGain()
	for i := range output {
		output[i] *= gain
	}

	e.table.RunOnCycle()

	used := e.scratch.Used()
	e.scratch.Release()

	e.observer.ObserveArenaUsage(used*4, e.scratch.Capacity()*4)
	e.observer.ObserveCallback(numFrames, uint64(time.Since(start).Nanoseconds()))
}

// Metrics returns a snapshot view if the engine's Options supplied a
// *MetricsObserver, or nil otherwise.
func (e *Engine) Metrics() *Metrics {
	if mo, ok := e.observer.(*MetricsObserver); ok {
		return mo.metrics
	}
	return nil
}
