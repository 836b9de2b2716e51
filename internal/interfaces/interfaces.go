// Package interfaces provides internal interface definitions for jamcore.
// These are separate from the public package to avoid circular imports
// between the root package and the internal packages that implement it.
package interfaces

// WavStream is the streaming WAV reader/writer contract nodes depend on.
// Decoding/encoding the WAV container itself is out of scope; a concrete
// implementation (see backend.MemWavStream, or a real codec) supplies
// interleaved stereo f32 frames at the engine's sample rate.
type WavStream interface {
	// SetClientFormat negotiates the stream's sample rate; implementations
	// may resample or reject a rate they cannot serve.
	SetClientFormat(sampleRate float64) error

	// Seek repositions the read cursor to the given frame.
	Seek(frame uint64) error

	// Read fills buf (interleaved stereo f32, len(buf)/2 frames) starting at
	// the current cursor. It returns the number of frames read and reports
	// io.EOF once no more frames remain.
	Read(buf []float32) (frames int, err error)

	// Write appends frames worth of interleaved stereo f32 samples.
	Write(buf []float32) (frames int, err error)

	Close() error
}

// Logger is the leveled logging contract the engine and nodes depend on.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Observer receives engine-lifecycle and worker-pool telemetry.
// Implementations must be safe to call concurrently; OnCycle-invoked
// methods may be called from the RT thread and must not block.
type Observer interface {
	ObserveTaskDeferred(pending int)
	ObserveTaskExecuted(latencyNs uint64)
	ObserveArenaUsage(bytesUsed, bytesTotal int)
	ObserveCallback(framesProcessed int, durationNs uint64)
}
