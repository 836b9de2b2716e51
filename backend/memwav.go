// Package backend provides in-memory collaborator implementations for the
// engine's streaming I/O contracts — a reference/test backend, not a real
// WAV codec.
package backend

import (
	"fmt"
	"io"
	"sync"

	"github.com/jamieb133/jamcore/internal/interfaces"
)

// ShardFrames is the number of stereo frames covered by each shard lock,
// sized for frames instead of bytes so parallel reads/writes to disjoint
// regions of a long recording don't serialize on one mutex.
const ShardFrames = 16384

// MemWavStream is a RAM-backed interfaces.WavStream: Read/Write operate on
// interleaved stereo f32 frames, with sharded locking so concurrent
// access to disjoint frame ranges doesn't contend.
type MemWavStream struct {
	data       []float32 // interleaved stereo, len == capacityFrames*2
	frameCount int64     // total frames actually written so far
	cursor     int64     // current frame position
	shards     []sync.RWMutex
	sampleRate float64
}

// NewMemWavStream creates a stream with room for capacityFrames stereo
// frames.
func NewMemWavStream(capacityFrames int64) *MemWavStream {
	numShards := (capacityFrames + ShardFrames - 1) / ShardFrames
	if numShards < 1 {
		numShards = 1
	}
	return &MemWavStream{
		data:   make([]float32, capacityFrames*2),
		shards: make([]sync.RWMutex, numShards),
	}
}

func (m *MemWavStream) shardRange(startFrame, numFrames int64) (start, end int) {
	start = int(startFrame / ShardFrames)
	end = int((startFrame + numFrames - 1) / ShardFrames)
	if end >= len(m.shards) {
		end = len(m.shards) - 1
	}
	if end < start {
		end = start
	}
	return start, end
}

// SetClientFormat records the negotiated sample rate; this backend never
// resamples.
func (m *MemWavStream) SetClientFormat(sampleRate float64) error {
	m.sampleRate = sampleRate
	return nil
}

// Seek repositions the read/write cursor.
func (m *MemWavStream) Seek(frame uint64) error {
	capacityFrames := int64(len(m.data)) / 2
	if int64(frame) > capacityFrames {
		return fmt.Errorf("backend: seek frame %d beyond capacity %d", frame, capacityFrames)
	}
	m.cursor = int64(frame)
	return nil
}

// Read fills buf (interleaved stereo) starting at the cursor, returning
// io.EOF once the written region is exhausted.
func (m *MemWavStream) Read(buf []float32) (int, error) {
	framesRequested := int64(len(buf)) / 2
	available := m.frameCount - m.cursor
	if available <= 0 {
		return 0, io.EOF
	}
	if framesRequested > available {
		framesRequested = available
	}

	startShard, endShard := m.shardRange(m.cursor, framesRequested)
	for i := startShard; i <= endShard; i++ {
		m.shards[i].RLock()
	}
	copy(buf, m.data[m.cursor*2:(m.cursor+framesRequested)*2])
	for i := startShard; i <= endShard; i++ {
		m.shards[i].RUnlock()
	}

	m.cursor += framesRequested

	var err error
	if framesRequested < int64(len(buf))/2 {
		err = io.EOF
	}
	return int(framesRequested), err
}

// Write appends len(buf)/2 frames at the cursor, growing frameCount as
// needed; it never grows the backing array beyond its preallocated
// capacity.
func (m *MemWavStream) Write(buf []float32) (int, error) {
	framesToWrite := int64(len(buf)) / 2
	capacityFrames := int64(len(m.data)) / 2
	if m.cursor+framesToWrite > capacityFrames {
		return 0, fmt.Errorf("backend: write beyond stream capacity (%d frames)", capacityFrames)
	}

	startShard, endShard := m.shardRange(m.cursor, framesToWrite)
	for i := startShard; i <= endShard; i++ {
		m.shards[i].Lock()
	}
	copy(m.data[m.cursor*2:(m.cursor+framesToWrite)*2], buf)
	for i := startShard; i <= endShard; i++ {
		m.shards[i].Unlock()
	}

	m.cursor += framesToWrite
	if m.cursor > m.frameCount {
		m.frameCount = m.cursor
	}
	return int(framesToWrite), nil
}

// Close releases the backing buffer.
func (m *MemWavStream) Close() error {
	m.data = nil
	return nil
}

// FrameCount reports the number of frames written so far; test-only
// helper.
func (m *MemWavStream) FrameCount() int64 {
	return m.frameCount
}

var _ interfaces.WavStream = (*MemWavStream)(nil)
