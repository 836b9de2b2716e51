package nodes

import (
	"io"
	"sync/atomic"

	jamcore "github.com/jamieb133/jamcore"
	"github.com/jamieb133/jamcore/internal/constants"
	"github.com/jamieb133/jamcore/internal/interfaces"
)

// WavPlayer streams stereo f32 frames from a WavStream in fixed chunks,
// double-buffered so a worker-thread chunk load never stalls the RT
// thread: one buffer is always being consumed while the other is either
// full or being refilled.
type WavPlayer struct {
	stream  interfaces.WavStream
	buffers [2][]float32

	framesPresent      [2]atomic.Int32
	currentBufferIndex atomic.Int32
	offsetInBuffer     int // RT-thread-owned, no concurrent writer

	currentFrame   atomic.Uint64
	looping        atomic.Bool
	finished       atomic.Bool
	seekRequested  atomic.Bool
	seekTarget     atomic.Uint64
	resetRequested atomic.Bool

	engine *jamcore.Engine
}

// NewWavPlayer creates a player over stream, preloads both chunk buffers
// synchronously, and registers its processor.
func NewWavPlayer(e *jamcore.Engine, stream interfaces.WavStream, looping bool) (*WavPlayer, uint16, error) {
	if err := stream.SetClientFormat(e.SampleRate()); err != nil {
		return nil, 0, jamcore.WrapError("NewWavPlayer", err)
	}

	p := &WavPlayer{
		stream: stream,
		engine: e,
	}
	p.looping.Store(looping)
	chunkSamples := constants.AudioFileChunkFrames * constants.ChannelsPerFrame
	p.buffers[0] = make([]float32, chunkSamples)
	p.buffers[1] = make([]float32, chunkSamples)

	p.loadChunk(0)
	p.loadChunk(1)

	id := e.CreateProcessor(p.process, p.destroy, nil, p)
	return p, id, nil
}

// Seek requests a repositioning to frame, honored by the next chunk load.
func (p *WavPlayer) Seek(frame uint64) {
	p.seekTarget.Store(frame)
	p.seekRequested.Store(true)
}

// Reset requests playback restart from frame 0, honored by the next chunk
// load, and clears Finished.
func (p *WavPlayer) Reset() {
	p.resetRequested.Store(true)
	p.Seek(0)
}

// Finished reports whether playback has reached end-of-stream with
// looping disabled.
func (p *WavPlayer) Finished() bool {
	return p.finished.Load()
}

// CurrentFrame reports the number of frames played, counted from the
// target of the last honored Seek or Reset (from 0 if there was none).
// Looping back to the start of the stream does not reset it.
func (p *WavPlayer) CurrentFrame() uint64 {
	return p.currentFrame.Load()
}

func (p *WavPlayer) loadChunk(bufIndex int) {
	if p.seekRequested.CompareAndSwap(true, false) {
		target := p.seekTarget.Load()
		if err := p.stream.Seek(target); err == nil {
			p.currentFrame.Store(target)
		}
	}

	if p.resetRequested.CompareAndSwap(true, false) {
		p.finished.Store(false)
	}

	buf := p.buffers[bufIndex]
	n, err := p.stream.Read(buf)
	if err == io.EOF && n == 0 {
		if p.looping.Load() {
			if seekErr := p.stream.Seek(0); seekErr == nil {
				n, _ = p.stream.Read(buf)
			}
		}
	}
	p.framesPresent[bufIndex].Store(int32(n))
}

func (p *WavPlayer) process(sampleRate float64, numFrames int, buffer []float32, data any) {
	active := int(p.currentBufferIndex.Load())
	present := int(p.framesPresent[active].Load())

	if present == 0 {
		if !p.looping.Load() {
			p.finished.Store(true)
		}
		return
	}

	framesAvailable := present - p.offsetInBuffer
	framesThisCycle := numFrames
	if framesThisCycle > framesAvailable {
		framesThisCycle = framesAvailable
	}

	buf := p.buffers[active]
	for i := 0; i < framesThisCycle; i++ {
		src := (p.offsetInBuffer + i) * constants.ChannelsPerFrame
		dst := i * constants.ChannelsPerFrame
		buffer[dst] += buf[src]
		buffer[dst+1] += buf[src+1]
	}

	p.offsetInBuffer += framesThisCycle
	p.currentFrame.Add(uint64(framesThisCycle))

	if p.offsetInBuffer >= present {
		p.offsetInBuffer = 0
		next := active ^ 1
		p.currentBufferIndex.Store(int32(next))
		stale := active
		p.engine.SubmitTask(func(any) { p.loadChunk(stale) }, nil)
	}
}

func (p *WavPlayer) destroy(data any) {
	p.stream.Close()
}
