// Package driver provides the platform audio thread stub. A real platform
// backend (CoreAudio, ALSA, WASAPI) would replace this with a callback
// registered on the OS's own audio thread; this stub drives the callback
// itself on a pinned goroutine so the engine can be exercised end to end
// without a real audio device.
package driver

import (
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jamieb133/jamcore/internal/constants"
	"github.com/jamieb133/jamcore/internal/interfaces"
)

// Config controls the stub driver's callback cadence and thread placement.
type Config struct {
	// NumFrames is the frame count delivered on every callback.
	NumFrames int
	// SampleRate is used only to pace the callback loop to real time.
	SampleRate float64
	// CPUAffinity, if non-empty, pins the callback thread to one of these
	// CPUs for consistent scheduling latency.
	CPUAffinity []int
	Logger      interfaces.Logger
}

// DefaultConfig returns a stub driver configuration matching the engine's
// own defaults.
func DefaultConfig() Config {
	return Config{
		NumFrames:  constants.DefaultMaxFramesPerCallback,
		SampleRate: constants.DefaultSampleRate,
	}
}

// Stub drives a callback on a pinned OS thread at a fixed cadence until
// Stop is called. It stands in for a real platform audio unit.
type Stub struct {
	cfg     Config
	stopped atomic.Bool
	done    chan struct{}
}

// NewStub creates a stub driver with the given configuration.
func NewStub(cfg Config) *Stub {
	if cfg.NumFrames <= 0 {
		cfg.NumFrames = constants.DefaultMaxFramesPerCallback
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = constants.DefaultSampleRate
	}
	return &Stub{cfg: cfg, done: make(chan struct{})}
}

// Open matches the Engine.Start open-callback shape: it launches the
// pinned driver goroutine and returns immediately.
func (s *Stub) Open(cb func(numFrames int, output []float32)) error {
	go s.run(cb)
	return nil
}

// Stop signals the driver goroutine to exit after its current callback.
func (s *Stub) Stop() {
	s.stopped.Store(true)
	<-s.done
}

func (s *Stub) run(cb func(numFrames int, output []float32)) {
	defer close(s.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if len(s.cfg.CPUAffinity) > 0 {
		var mask unix.CPUSet
		mask.Set(s.cfg.CPUAffinity[0])
		if err := unix.SchedSetaffinity(0, &mask); err != nil {
			if s.cfg.Logger != nil {
				s.cfg.Logger.Warnf("driver: failed to set CPU affinity: %v", err)
			}
		}
	}

	period := time.Duration(float64(s.cfg.NumFrames) / s.cfg.SampleRate * float64(time.Second))
	output := make([]float32, s.cfg.NumFrames*constants.ChannelsPerFrame)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for range ticker.C {
		cb(s.cfg.NumFrames, output)
		if s.stopped.Load() {
			return
		}
	}
}
