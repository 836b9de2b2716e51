package nodes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFaderCenterPanSplitsEqually(t *testing.T) {
	e := newTestEngine(t)
	osc, oscID := NewOscillator(e, WaveformSine, 440, math.Pi/2, 1.0)
	_ = osc
	fader, faderID := NewFader(e, 0, 1.0)
	e.Route(oscID, faderID, true)
	e.SetSource(oscID)

	output := make([]float32, 8)
	e.RTCallback(4, output)

	for i := 0; i < 4; i++ {
		require.InDelta(t, output[i*2], output[i*2+1], 1e-5)
	}
}

func TestFaderHardLeftSilencesRightChannel(t *testing.T) {
	e := newTestEngine(t)
	_, oscID := NewOscillator(e, WaveformSine, 440, math.Pi/2, 1.0)
	_, faderID := NewFader(e, -1.0, 1.0)
	e.Route(oscID, faderID, true)
	e.SetSource(oscID)

	output := make([]float32, 8)
	e.RTCallback(4, output)

	for i := 0; i < 4; i++ {
		require.InDelta(t, 0, output[i*2+1], 1e-5)
	}
}

func TestFaderConstantPowerAcrossPanSweep(t *testing.T) {
	e := newTestEngine(t)
	fader, id := NewFader(e, 0, 1.0)
	e.SetSource(id)

	for _, pan := range []float32{-1, -0.5, 0, 0.5, 1} {
		fader.SetPan(pan)
		vol := fader.Volume()
		angle := (pan + 1) * (math.Pi / 4.0)
		gainL := float32(math.Cos(float64(angle))) * vol
		gainR := float32(math.Sin(float64(angle))) * vol
		power := gainL*gainL + gainR*gainR
		require.InDelta(t, vol*vol, power, 1e-5)
	}
}

func TestFaderClampsOutOfRangeParams(t *testing.T) {
	e := newTestEngine(t)
	_, oscID := NewOscillator(e, WaveformSine, 440, math.Pi/2, 1.0)
	fader, faderID := NewFader(e, 0, 1.0)
	fader.SetPan(5.0)
	fader.SetVolume(3.0)
	e.Route(oscID, faderID, true)
	e.SetSource(oscID)

	output := make([]float32, 8)
	require.NotPanics(t, func() { e.RTCallback(4, output) })
}
