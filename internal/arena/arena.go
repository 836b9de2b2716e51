// Package arena implements the RT thread's per-callback scratch allocator:
// a fixed-capacity bump arena that hands out float32 frame buffers and is
// reset in one O(1) operation at the end of every callback. It is the Go
// analogue of the original engine's ScratchAllocator (a raw byte arena over
// a fixed backing region); this port allocates directly in float32 units
// since every RT-thread allocation is a stereo frame buffer
// (numFrames*channelsPerFrame samples) and never a raw byte count.
//
// The arena is single-producer: only the RT thread may call Alloc/Calloc,
// and only the RT thread calls Release. It must never be shared across
// goroutines.
package arena

import "fmt"

// ExhaustedError is panicked by Alloc/Calloc when the arena has no room
// left for the requested allocation. Per the engine's error-handling
// design, arena exhaustion on the RT thread has no recovery path short of
// the engine's fault handler driving a full Stop; callers at the RT
// boundary are expected to recover this panic and escalate it.
type ExhaustedError struct {
	Requested int
	Remaining int
	Capacity  int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("arena: requested %d floats but only %d of %d remain",
		e.Requested, e.Remaining, e.Capacity)
}

// Arena is a bump allocator over a fixed backing []float32 region.
type Arena struct {
	buf    []float32
	offset int
}

// New allocates a new arena with room for capacityBytes worth of float32
// samples (capacityBytes/4 floats).
func New(capacityBytes int) *Arena {
	n := capacityBytes / 4
	if n < 1 {
		n = 1
	}
	return &Arena{buf: make([]float32, n)}
}

// Alloc returns a region of n float32 samples and advances the bump
// cursor. The returned slice's contents are whatever was left over from a
// prior cycle; callers that need zeroed memory must use Calloc.
func (a *Arena) Alloc(n int) []float32 {
	remaining := len(a.buf) - a.offset
	if remaining < n {
		panic(&ExhaustedError{Requested: n, Remaining: remaining, Capacity: len(a.buf)})
	}
	region := a.buf[a.offset : a.offset+n : a.offset+n]
	a.offset += n
	return region
}

// Calloc is Alloc followed by an explicit zero-fill. The arena's backing
// array is reused cycle over cycle, so unlike a fresh heap allocation its
// contents are not implicitly zero.
func (a *Arena) Calloc(n int) []float32 {
	region := a.Alloc(n)
	for i := range region {
		region[i] = 0
	}
	return region
}

// Release resets the bump cursor to zero. Must be called exactly once at
// the end of every RT callback.
func (a *Arena) Release() {
	a.offset = 0
}

// Used reports the number of float32 samples currently allocated this
// cycle, for telemetry/testing.
func (a *Arena) Used() int {
	return a.offset
}

// Capacity reports the arena's total float32 capacity.
func (a *Arena) Capacity() int {
	return len(a.buf)
}
