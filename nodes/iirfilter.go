package nodes

import (
	"math"
	"sync/atomic"

	jamcore "github.com/jamieb133/jamcore"
)

// FilterType selects an IIRFilter's biquad response.
type FilterType int

const (
	FilterLowPass FilterType = iota
	FilterHighPass
	FilterBandPass
	FilterBandStop
	FilterLowShelf
	FilterHighShelf
)

type biquadCoeffs struct {
	a0, a1, a2, b0, b1, b2 atomic.Uint32 // float32 bits
}

func (c *biquadCoeffs) store(a0, a1, a2, b0, b1, b2 float32) {
	c.a0.Store(math.Float32bits(a0))
	c.a1.Store(math.Float32bits(a1))
	c.a2.Store(math.Float32bits(a2))
	c.b0.Store(math.Float32bits(b0))
	c.b1.Store(math.Float32bits(b1))
	c.b2.Store(math.Float32bits(b2))
}

func (c *biquadCoeffs) load() (a0, a1, a2, b0, b1, b2 float32) {
	return math.Float32frombits(c.a0.Load()),
		math.Float32frombits(c.a1.Load()),
		math.Float32frombits(c.a2.Load()),
		math.Float32frombits(c.b0.Load()),
		math.Float32frombits(c.b1.Load()),
		math.Float32frombits(c.b2.Load())
}

type channelHistory struct {
	inputs  [2]float32
	outputs [2]float32
}

// IIRFilter is a direct-form-I biquad section: low-pass, high-pass,
// band-pass, band-stop, low-shelf, or high-shelf. The initial coefficients
// are computed synchronously at creation; after that they are recomputed
// off the RT thread on the engine's worker pool whenever Recalculate is
// called.
type IIRFilter struct {
	filterType atomic.Int32
	freq       atomic.Uint64 // float64 bits
	q          atomic.Uint64 // float64 bits
	dbGain     atomic.Uint64 // float64 bits
	sampleRate atomic.Uint64 // float64 bits
	recalc     atomic.Bool

	coeffs  biquadCoeffs
	history [2]channelHistory

	engine *jamcore.Engine
}

// NewIIRFilter creates and registers a biquad filter, synchronously
// computing its initial coefficients.
func NewIIRFilter(e *jamcore.Engine, filterType FilterType, freq, q, dbGain float64) (*IIRFilter, uint16) {
	f := &IIRFilter{engine: e}
	f.filterType.Store(int32(filterType))
	f.freq.Store(math.Float64bits(freq))
	f.q.Store(math.Float64bits(q))
	f.dbGain.Store(math.Float64bits(dbGain))
	f.sampleRate.Store(math.Float64bits(e.SampleRate()))

	f.calculateCoeffs()

	id := e.CreateProcessor(f.process, nil, nil, f)
	return f, id
}

// Recalculate requests that Process schedule a coefficient recompute on
// the worker pool in its next invocation, after that invocation has
// filtered its buffer with the current coefficients.
func (f *IIRFilter) Recalculate() {
	f.recalc.Store(true)
}

// SetFrequency updates the cutoff/center frequency in Hz. Does not by
// itself trigger a recalculation; call Recalculate too.
func (f *IIRFilter) SetFrequency(hz float64) {
	f.freq.Store(math.Float64bits(hz))
}

// SetQ updates the filter Q factor.
func (f *IIRFilter) SetQ(q float64) {
	f.q.Store(math.Float64bits(q))
}

// SetGain updates the gain in dB, used by the shelf types and the
// band-pass type (ignored by the others).
func (f *IIRFilter) SetGain(dbGain float64) {
	f.dbGain.Store(math.Float64bits(dbGain))
}

func (f *IIRFilter) calculateCoeffs() {
	filterType := FilterType(f.filterType.Load())
	freq := math.Float64frombits(f.freq.Load())
	q := math.Float64frombits(f.q.Load())
	dbGain := math.Float64frombits(f.dbGain.Load())
	sampleRate := math.Float64frombits(f.sampleRate.Load())

	// A = 10^(dbGain/40): the dimensionally correct shelf-gain amplitude
	// term (the source's A = 10^(dbGain/(40*freq)) divides by frequency,
	// which has no basis in the RBJ cookbook derivation this is modeled
	// on).
	A := math.Pow(10, dbGain/40.0)
	omega := (2 * math.Pi * freq) / sampleRate
	alpha := math.Sin(omega) / (2.0 * q)
	cosOmega := math.Cos(omega)

	var a0, a1, a2, b0, b1, b2 float64

	switch filterType {
	case FilterLowPass:
		a0 = 1 + alpha
		a1 = -2 * cosOmega
		a2 = 1 - alpha
		b0 = (1 - cosOmega) / 2
		b1 = 1 - cosOmega
		b2 = b0
	case FilterHighPass:
		a0 = 1 + alpha
		a1 = -2 * cosOmega
		a2 = 1 - alpha
		b0 = (1 + cosOmega) / 2
		b1 = -(1 + cosOmega)
		b2 = b0
	case FilterBandPass:
		b0 = 1 + (alpha * A)
		b1 = -2 * cosOmega
		b2 = 1 - (alpha * A)
		a0 = 1 + (alpha / A)
		a1 = -2 * cosOmega
		a2 = 1 - (alpha / A)
	case FilterBandStop:
		a0 = 1 + alpha
		a1 = -2 * cosOmega
		a2 = 1 - alpha
		b0 = q * alpha
		b1 = 0
		b2 = -q * alpha
	case FilterLowShelf:
		sqrtA := math.Sqrt(A)
		b0 = A * ((A + 1) - (A-1)*cosOmega + 2*sqrtA*alpha)
		b1 = 2 * A * ((A - 1) - (A+1)*cosOmega)
		b2 = A * ((A + 1) - (A-1)*cosOmega - 2*sqrtA*alpha)
		a0 = (A + 1) + (A-1)*cosOmega + 2*sqrtA*alpha
		a1 = -2 * ((A - 1) + (A+1)*cosOmega)
		a2 = (A + 1) + (A-1)*cosOmega - 2*sqrtA*alpha
	case FilterHighShelf:
		sqrtA := math.Sqrt(A)
		b0 = A * ((A + 1) + (A-1)*cosOmega + 2*sqrtA*alpha)
		b1 = -2 * A * ((A - 1) + (A+1)*cosOmega)
		b2 = A * ((A + 1) + (A-1)*cosOmega - 2*sqrtA*alpha)
		a0 = (A + 1) - (A-1)*cosOmega + 2*sqrtA*alpha
		a1 = 2 * ((A - 1) - (A+1)*cosOmega)
		a2 = (A + 1) - (A-1)*cosOmega - 2*sqrtA*alpha
	}

	f.coeffs.store(float32(a0), float32(a1), float32(a2), float32(b0), float32(b1), float32(b2))
}

func (f *IIRFilter) filterSample(sample float32, channel int, a0, a1, a2, b0, b1, b2 float32) float32 {
	h := &f.history[channel]

	y := (b0 * sample) + (b1 * h.inputs[0]) + (b2 * h.inputs[1]) -
		(a1 * h.outputs[0]) - (a2 * h.outputs[1])
	y /= a0

	h.inputs[1] = h.inputs[0]
	h.inputs[0] = sample
	h.outputs[1] = h.outputs[0]
	h.outputs[0] = y

	return y
}

func (f *IIRFilter) process(sampleRate float64, numFrames int, buffer []float32, data any) {
	a0, a1, a2, b0, b1, b2 := f.coeffs.load()

	for i := 0; i < numFrames; i++ {
		base := i * 2
		buffer[base] = f.filterSample(buffer[base], 0, a0, a1, a2, b0, b1, b2)
		buffer[base+1] = f.filterSample(buffer[base+1], 1, a0, a1, a2, b0, b1, b2)
	}

	if f.recalc.CompareAndSwap(true, false) {
		f.sampleRate.Store(math.Float64bits(sampleRate))
		f.engine.SubmitTask(func(any) { f.calculateCoeffs() }, nil)
	}
}
