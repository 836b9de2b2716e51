// Package nodes provides the engine's built-in processor implementations:
// passthrough, oscillator, fader, IIR biquad filter, WAV player, and audio
// renderer. Each follows the node protocol (Process, optional OnCycle,
// optional Destroy) and stores its tunable parameters as atomic scalars so
// any thread may write them while the RT thread reads them lock-free.
package nodes

import (
	"math"
	"sync/atomic"

	jamcore "github.com/jamieb133/jamcore"
)

// Waveform selects an Oscillator's generator function.
type Waveform int

const (
	WaveformSine Waveform = iota
	WaveformSquare
	WaveformSaw
)

// Oscillator generates a sine/square/saw tone, accumulating into both
// channels of its input buffer (copy-on-fanout means that buffer is always
// this node's private branch).
type Oscillator struct {
	waveform  atomic.Int32
	frequency atomic.Uint64 // float64 bits
	phase     atomic.Uint64 // float64 bits
	amplitude atomic.Uint64 // float64 bits
}

// NewOscillator creates and registers an oscillator processor.
func NewOscillator(e *jamcore.Engine, waveform Waveform, frequency, phase, amplitude float64) (*Oscillator, uint16) {
	osc := &Oscillator{}
	osc.waveform.Store(int32(waveform))
	osc.frequency.Store(math.Float64bits(frequency))
	osc.phase.Store(math.Float64bits(phase))
	osc.amplitude.Store(math.Float64bits(amplitude))

	id := e.CreateProcessor(osc.process, nil, nil, osc)
	return osc, id
}

func (o *Oscillator) process(sampleRate float64, numFrames int, buffer []float32, data any) {
	waveform := Waveform(o.waveform.Load())
	frequency := math.Float64frombits(o.frequency.Load())
	amplitude := math.Float64frombits(o.amplitude.Load())
	phase := math.Float64frombits(o.phase.Load())

	phaseIncrement := (2.0 * math.Pi * frequency) / sampleRate

	for i := 0; i < numFrames; i++ {
		var sample float64
		switch waveform {
		case WaveformSine:
			sample = math.Sin(phase)
		case WaveformSquare:
			if phase < math.Pi {
				sample = 1.0
			} else {
				sample = -1.0
			}
		case WaveformSaw:
			sample = (phase/(2.0*math.Pi))*2.0 - 1.0
		}

		base := i * 2
		buffer[base] += float32(sample * amplitude)
		buffer[base+1] += float32(sample * amplitude)

		phase += phaseIncrement
		for phase >= 2.0*math.Pi {
			phase -= 2.0 * math.Pi
		}
	}

	o.phase.Store(math.Float64bits(phase))
}

// SetFrequency updates the oscillator's frequency in Hz. Safe from any
// thread.
func (o *Oscillator) SetFrequency(hz float64) {
	o.frequency.Store(math.Float64bits(hz))
}

// SetAmplitude updates the oscillator's amplitude. Safe from any thread.
func (o *Oscillator) SetAmplitude(amp float64) {
	o.amplitude.Store(math.Float64bits(amp))
}

// SetWaveform switches the oscillator's waveform. Safe from any thread.
func (o *Oscillator) SetWaveform(w Waveform) {
	o.waveform.Store(int32(w))
}

// Frequency returns the current frequency in Hz.
func (o *Oscillator) Frequency() float64 {
	return math.Float64frombits(o.frequency.Load())
}

// Phase returns the current phase in radians, in [0, 2π).
func (o *Oscillator) Phase() float64 {
	return math.Float64frombits(o.phase.Load())
}
