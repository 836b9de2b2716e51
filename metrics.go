package jamcore

import (
	"sync/atomic"
	"time"

	"github.com/jamieb133/jamcore/internal/interfaces"
)

// LatencyBuckets are the task-execution and callback-duration histogram
// boundaries, in nanoseconds, logarithmically spaced from 1us to 100ms —
// tight enough to resolve RT-callback-scale timings (a 1024-frame callback
// at 48kHz has roughly a 21ms deadline).
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
}

const numLatencyBuckets = 6

// Metrics tracks operational statistics for one engine instance: worker
// task throughput/latency, scratch arena high-water usage, and RT callback
// duration.
type Metrics struct {
	TasksDeferred atomic.Uint64
	TasksExecuted atomic.Uint64

	TaskLatencyNs   atomic.Uint64
	TaskLatencyHist [numLatencyBuckets]atomic.Uint64

	ArenaBytesUsed atomic.Uint64
	ArenaHighWater atomic.Uint64
	ArenaCapacity  atomic.Uint64

	CallbacksProcessed  atomic.Uint64
	FramesProcessed     atomic.Uint64
	CallbackDurationNs  atomic.Uint64
	CallbackDurationMax atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) recordLatency(hist *[numLatencyBuckets]atomic.Uint64, ns uint64) {
	for i, bound := range LatencyBuckets {
		if ns <= bound {
			hist[i].Add(1)
		}
	}
}

// ObserveTaskDeferred records that a task was pushed onto the worker pool
// queue; pending is the queue depth immediately after the push.
func (m *Metrics) ObserveTaskDeferred(pending int) {
	m.TasksDeferred.Add(1)
}

// ObserveTaskExecuted records a completed worker task's latency.
func (m *Metrics) ObserveTaskExecuted(latencyNs uint64) {
	m.TasksExecuted.Add(1)
	m.TaskLatencyNs.Add(latencyNs)
	m.recordLatency(&m.TaskLatencyHist, latencyNs)
}

// ObserveArenaUsage records the scratch arena's usage at Release time and
// tracks the all-time high-water mark.
func (m *Metrics) ObserveArenaUsage(bytesUsed, bytesTotal int) {
	m.ArenaBytesUsed.Store(uint64(bytesUsed))
	m.ArenaCapacity.Store(uint64(bytesTotal))
	for {
		cur := m.ArenaHighWater.Load()
		if uint64(bytesUsed) <= cur {
			break
		}
		if m.ArenaHighWater.CompareAndSwap(cur, uint64(bytesUsed)) {
			break
		}
	}
}

// ObserveCallback records one RT callback's frame count and wall-clock
// duration.
func (m *Metrics) ObserveCallback(framesProcessed int, durationNs uint64) {
	m.CallbacksProcessed.Add(1)
	m.FramesProcessed.Add(uint64(framesProcessed))
	m.CallbackDurationNs.Add(durationNs)
	for {
		cur := m.CallbackDurationMax.Load()
		if durationNs <= cur {
			break
		}
		if m.CallbackDurationMax.CompareAndSwap(cur, durationNs) {
			break
		}
	}
}

// Stop marks the metrics instance as stopped, fixing uptime calculations.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics for
// reporting.
type MetricsSnapshot struct {
	TasksDeferred      uint64
	TasksExecuted      uint64
	AvgTaskLatencyNs   uint64
	TaskLatencyHist    [numLatencyBuckets]uint64
	ArenaBytesUsed     uint64
	ArenaHighWater     uint64
	ArenaCapacity      uint64
	CallbacksProcessed uint64
	FramesProcessed    uint64
	AvgCallbackNs      uint64
	MaxCallbackNs      uint64
	UptimeNs           uint64
}

// Snapshot takes a point-in-time reading of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		TasksDeferred:      m.TasksDeferred.Load(),
		TasksExecuted:      m.TasksExecuted.Load(),
		ArenaBytesUsed:     m.ArenaBytesUsed.Load(),
		ArenaHighWater:     m.ArenaHighWater.Load(),
		ArenaCapacity:      m.ArenaCapacity.Load(),
		CallbacksProcessed: m.CallbacksProcessed.Load(),
		FramesProcessed:    m.FramesProcessed.Load(),
		MaxCallbackNs:      m.CallbackDurationMax.Load(),
	}

	if snap.TasksExecuted > 0 {
		snap.AvgTaskLatencyNs = m.TaskLatencyNs.Load() / snap.TasksExecuted
	}
	if snap.CallbacksProcessed > 0 {
		snap.AvgCallbackNs = m.CallbackDurationNs.Load() / snap.CallbacksProcessed
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.TaskLatencyHist[i] = m.TaskLatencyHist[i].Load()
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}

	return snap
}

// Reset zeroes every counter; useful for tests.
func (m *Metrics) Reset() {
	m.TasksDeferred.Store(0)
	m.TasksExecuted.Store(0)
	m.TaskLatencyNs.Store(0)
	for i := range m.TaskLatencyHist {
		m.TaskLatencyHist[i].Store(0)
	}
	m.ArenaBytesUsed.Store(0)
	m.ArenaHighWater.Store(0)
	m.ArenaCapacity.Store(0)
	m.CallbacksProcessed.Store(0)
	m.FramesProcessed.Store(0)
	m.CallbackDurationNs.Store(0)
	m.CallbackDurationMax.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// NoOpObserver discards every observation; the engine's default when no
// Observer is supplied via Options.
type NoOpObserver struct{}

func (NoOpObserver) ObserveTaskDeferred(pending int)                       {}
func (NoOpObserver) ObserveTaskExecuted(latencyNs uint64)                  {}
func (NoOpObserver) ObserveArenaUsage(bytesUsed, bytesTotal int)           {}
func (NoOpObserver) ObserveCallback(framesProcessed int, durationNs uint64) {}

// MetricsObserver adapts Metrics to interfaces.Observer.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver wraps m as an interfaces.Observer.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveTaskDeferred(pending int) {
	o.metrics.ObserveTaskDeferred(pending)
}

func (o *MetricsObserver) ObserveTaskExecuted(latencyNs uint64) {
	o.metrics.ObserveTaskExecuted(latencyNs)
}

func (o *MetricsObserver) ObserveArenaUsage(bytesUsed, bytesTotal int) {
	o.metrics.ObserveArenaUsage(bytesUsed, bytesTotal)
}

func (o *MetricsObserver) ObserveCallback(framesProcessed int, durationNs uint64) {
	o.metrics.ObserveCallback(framesProcessed, durationNs)
}

var _ interfaces.Observer = (*MetricsObserver)(nil)
var _ interfaces.Observer = (*NoOpObserver)(nil)
