package nodes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	jamcore "github.com/jamieb133/jamcore"
)

func newTestEngine(t *testing.T) *jamcore.Engine {
	t.Helper()
	params := jamcore.DefaultEngineParams()
	params.MaxFrames = 8192
	params.ScratchBytes = 1 << 20
	params.WorkerThreads = 1
	params.TaskQueueDepth = 16
	e := jamcore.Init(params, jamcore.Options{})
	require.NoError(t, e.Start(nil))
	t.Cleanup(func() {
		// Stop blocks until RTCallback observes StopRequested; nothing in
		// these tests keeps driving callbacks after the assertions run, so
		// simulate the platform driver thread here to unblock it.
		done := make(chan struct{})
		go func() {
			e.Stop()
			close(done)
		}()
		buf := make([]float32, params.MaxFrames*2)
		for {
			select {
			case <-done:
				e.Deinit()
				return
			default:
				e.RTCallback(params.MaxFrames, buf)
			}
		}
	})
	return e
}

func TestOscillatorSineFrequencyMatchesTarget(t *testing.T) {
	e := newTestEngine(t)
	osc, id := NewOscillator(e, WaveformSine, 440, 0, 1.0)
	e.SetSource(id)

	const numFrames = 4800
	output := make([]float32, numFrames*2)
	e.RTCallback(numFrames, output)

	zeroCrossings := 0
	for i := 1; i < numFrames; i++ {
		prev := output[(i-1)*2]
		cur := output[i*2]
		if (prev < 0) != (cur < 0) {
			zeroCrossings++
		}
	}
	// 440Hz over 0.1s (4800 frames @ 48kHz) -> 44 cycles -> ~88 zero crossings.
	require.InDelta(t, 88, zeroCrossings, 6)
	require.Greater(t, osc.Phase(), 0.0)
}

func TestOscillatorSquareIsBipolarUnitAmplitude(t *testing.T) {
	e := newTestEngine(t)
	_, id := NewOscillator(e, WaveformSquare, 100, 0, 1.0)
	e.SetSource(id)

	output := make([]float32, 20)
	e.RTCallback(10, output)

	for i := 0; i < 10; i++ {
		v := output[i*2]
		require.True(t, v == 1.0 || v == -1.0)
	}
}

func TestOscillatorSawRampsLinearly(t *testing.T) {
	e := newTestEngine(t)
	_, id := NewOscillator(e, WaveformSaw, 1, 0, 1.0)
	e.SetSource(id)

	output := make([]float32, 8)
	e.RTCallback(4, output)

	require.InDelta(t, -1.0, output[0], 1e-3)
	for i := 1; i < 4; i++ {
		require.Greater(t, output[i*2], output[(i-1)*2])
	}
}

func TestOscillatorSetFrequencyTakesEffectNextCallback(t *testing.T) {
	e := newTestEngine(t)
	osc, id := NewOscillator(e, WaveformSine, 440, 0, 1.0)
	e.SetSource(id)

	osc.SetFrequency(880)
	require.Equal(t, 880.0, osc.Frequency())

	output := make([]float32, 8)
	e.RTCallback(4, output)
	require.Equal(t, 880.0, osc.Frequency())
}

func TestOscillatorPhaseWrapsIntoRange(t *testing.T) {
	e := newTestEngine(t)
	osc, id := NewOscillator(e, WaveformSine, 20000, 0, 1.0)
	e.SetSource(id)

	output := make([]float32, 2000)
	e.RTCallback(1000, output)

	phase := osc.Phase()
	require.GreaterOrEqual(t, phase, 0.0)
	require.Less(t, phase, 2*math.Pi)
}
