package jamcore

import (
	"bytes"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jamieb133/jamcore/internal/constants"
	"github.com/jamieb133/jamcore/internal/graph"
	"github.com/jamieb133/jamcore/internal/logging"
)

func testParams() EngineParams {
	p := DefaultEngineParams()
	p.MaxFrames = 64
	p.ScratchBytes = 1 << 16
	p.WorkerThreads = 1
	p.TaskQueueDepth = 8
	return p
}

func testOptions() (Options, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logging.New(&logging.Config{Level: logging.LevelDebug, Output: &buf})
	return Options{Logger: logger}, &buf
}

func constantProcess(value float32) graph.ProcessFunc {
	return func(sampleRate float64, numFrames int, buffer []float32, data any) {
		for i := range buffer {
			buffer[i] = value
		}
	}
}

// stopAndDrive drives Stop to completion the way a real platform driver
// thread would: without a live callback source, nothing would ever
// observe StopRequested and set AudioThreadSilenced, so Stop would block
// forever. Tests that don't themselves keep calling RTCallback use this
// to simulate that driver thread for teardown.
func stopAndDrive(t *testing.T, e *Engine, numFrames int) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()
	buf := make([]float32, numFrames*constants.ChannelsPerFrame)
	for {
		select {
		case <-done:
			return
		default:
			e.RTCallback(numFrames, buf)
		}
	}
}

func TestInitStartStopDeinitLifecycle(t *testing.T) {
	opts, _ := testOptions()
	e := Init(testParams(), opts)

	err := e.Start(nil)
	require.NoError(t, err)

	stopAndDrive(t, e, 4)
	e.Deinit()
}

func TestCreateProcessorAddSourceAndCallbackMixesSources(t *testing.T) {
	opts, _ := testOptions()
	params := testParams()
	e := Init(params, opts)
	require.NoError(t, e.Start(nil))

	a := e.CreateProcessor(constantProcess(0.25), nil, nil, nil)
	b := e.CreateProcessor(constantProcess(0.5), nil, nil, nil)
	e.AddSource(a)
	e.AddSource(b)

	numFrames := 4
	output := make([]float32, numFrames*constants.ChannelsPerFrame)
	e.RTCallback(numFrames, output)

	for _, v := range output {
		require.InDelta(t, 0.75, v, 1e-6)
	}

	stopAndDrive(t, e, numFrames)
	e.Deinit()
}

func TestRTCallbackAppliesMasterGain(t *testing.T) {
	opts, _ := testOptions()
	e := Init(testParams(), opts)
	require.NoError(t, e.Start(nil))
	e.SetMasterGain(0.5)

	id := e.CreateProcessor(constantProcess(1.0), nil, nil, nil)
	e.SetSource(id)

	numFrames := 4
	output := make([]float32, numFrames*constants.ChannelsPerFrame)
	e.RTCallback(numFrames, output)

	for _, v := range output {
		require.InDelta(t, 0.5, v, 1e-6)
	}

	stopAndDrive(t, e, numFrames)
	e.Deinit()
}

func TestRTCallbackZeroesBufferWhenNotStarted(t *testing.T) {
	opts, _ := testOptions()
	e := Init(testParams(), opts)

	output := make([]float32, 8)
	for i := range output {
		output[i] = 9
	}
	e.RTCallback(4, output)

	for _, v := range output {
		require.Equal(t, float32(0), v)
	}
}

func TestStopSilencesGainAndUnblocksCaller(t *testing.T) {
	opts, _ := testOptions()
	e := Init(testParams(), opts)
	require.NoError(t, e.Start(nil))

	id := e.CreateProcessor(constantProcess(1.0), nil, nil, nil)
	e.SetSource(id)

	var wg sync.WaitGroup
	wg.Add(1)
	stopped := make(chan struct{})
	go func() {
		defer wg.Done()
		e.Stop()
		close(stopped)
	}()

	numFrames := 4
	output := make([]float32, numFrames*constants.ChannelsPerFrame)
	// Drive callbacks until Stop's fade-out request lands and it returns.
	for driving := true; driving; {
		select {
		case <-stopped:
			driving = false
		default:
			e.RTCallback(numFrames, output)
		}
	}
	wg.Wait()

	require.Equal(t, float32(0), e.MasterGain())
	e.Deinit()
}

func TestOnCycleInvokedEveryCallback(t *testing.T) {
	opts, _ := testOptions()
	e := Init(testParams(), opts)
	require.NoError(t, e.Start(nil))

	var calls int
	var mu sync.Mutex
	onCycle := func(data any) {
		mu.Lock()
		calls++
		mu.Unlock()
	}
	id := e.CreateProcessor(constantProcess(0), nil, onCycle, nil)
	e.SetSource(id)

	output := make([]float32, 8)
	e.RTCallback(4, output)
	e.RTCallback(4, output)

	mu.Lock()
	require.Equal(t, 2, calls)
	mu.Unlock()

	stopAndDrive(t, e, 4)
	e.Deinit()
}

func TestSubmitTaskRunsOnWorkerPool(t *testing.T) {
	opts, _ := testOptions()
	e := Init(testParams(), opts)
	require.NoError(t, e.Start(nil))

	done := make(chan struct{})
	e.SubmitTask(func(data any) { close(done) }, nil)
	e.FlushTasks()
	<-done

	stopAndDrive(t, e, 4)
	e.Deinit()
}

func TestMasterGainRoundTripsThroughFloatBits(t *testing.T) {
	opts, _ := testOptions()
	e := Init(testParams(), opts)
	e.SetMasterGain(0.333)
	require.True(t, math.Abs(float64(e.MasterGain()-0.333)) < 1e-6)
}

func TestMetricsNilWithoutMetricsObserver(t *testing.T) {
	opts, _ := testOptions()
	e := Init(testParams(), opts)
	require.Nil(t, e.Metrics())
}

func TestMetricsPopulatedWithMetricsObserver(t *testing.T) {
	opts, _ := testOptions()
	m := NewMetrics()
	opts.Observer = NewMetricsObserver(m)
	e := Init(testParams(), opts)
	require.NoError(t, e.Start(nil))

	id := e.CreateProcessor(constantProcess(0), nil, nil, nil)
	e.SetSource(id)
	output := make([]float32, 8)
	e.RTCallback(4, output)

	require.NotNil(t, e.Metrics())
	snap := e.Metrics().Snapshot()
	require.Equal(t, uint64(1), snap.CallbacksProcessed)
	require.Equal(t, uint64(4), snap.FramesProcessed)

	stopAndDrive(t, e, 4)
	e.Deinit()
}
