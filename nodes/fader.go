package nodes

import (
	"math"
	"sync/atomic"

	jamcore "github.com/jamieb133/jamcore"
)

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Fader applies constant-power pan and volume: gainL^2 + gainR^2 == vol^2
// at every pan position.
type Fader struct {
	pan atomic.Uint32 // float32 bits
	vol atomic.Uint32 // float32 bits
}

// NewFader creates and registers a fader processor with the given default
// pan ([-1, 1]) and volume ([0, 1]).
func NewFader(e *jamcore.Engine, defaultPan, defaultVol float32) (*Fader, uint16) {
	f := &Fader{}
	f.pan.Store(math.Float32bits(defaultPan))
	f.vol.Store(math.Float32bits(defaultVol))
	id := e.CreateProcessor(f.process, nil, nil, f)
	return f, id
}

func (f *Fader) process(sampleRate float64, numFrames int, buffer []float32, data any) {
	vol := clamp32(math.Float32frombits(f.vol.Load()), 0.0, 1.0)
	pan := clamp32(math.Float32frombits(f.pan.Load()), -1.0, 1.0)

	angle := (pan + 1) * (math.Pi / 4.0)
	leftGain := float32(math.Cos(float64(angle))) * vol
	rightGain := float32(math.Sin(float64(angle))) * vol

	for i := 0; i < numFrames; i++ {
		base := i * 2
		buffer[base] *= leftGain
		buffer[base+1] *= rightGain
	}
}

// SetPan updates the pan position. Safe from any thread.
func (f *Fader) SetPan(pan float32) {
	f.pan.Store(math.Float32bits(pan))
}

// SetVolume updates the volume. Safe from any thread.
func (f *Fader) SetVolume(vol float32) {
	f.vol.Store(math.Float32bits(vol))
}

// Pan returns the current pan position.
func (f *Fader) Pan() float32 {
	return math.Float32frombits(f.pan.Load())
}

// Volume returns the current volume.
func (f *Fader) Volume() float32 {
	return math.Float32frombits(f.vol.Load())
}
