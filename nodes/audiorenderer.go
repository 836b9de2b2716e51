package nodes

import (
	"sync/atomic"

	jamcore "github.com/jamieb133/jamcore"
	"github.com/jamieb133/jamcore/internal/constants"
	"github.com/jamieb133/jamcore/internal/interfaces"
)

// AudioRenderer accumulates (sums, never overwrites) incoming samples into
// one of two chunk-sized buffers, flipping and flushing to a WavStream
// writer as each chunk fills. Process only counts frames seen this cycle;
// OnCycle is what actually advances the write cursor and schedules I/O,
// mirroring the split in the engine this is modeled on so that cursor
// advancement happens exactly once per callback regardless of how many
// upstream branches fed this node.
type AudioRenderer struct {
	stream  interfaces.WavStream
	buffers [2][]float32

	currentBufferIndex atomic.Int32
	writeCursor        atomic.Int32
	recording          atomic.Bool
	mute               atomic.Bool
	framesThisCycle    atomic.Int32

	engine *jamcore.Engine
}

// NewAudioRenderer creates a renderer writing to stream and registers its
// processor.
func NewAudioRenderer(e *jamcore.Engine, stream interfaces.WavStream) (*AudioRenderer, uint16, error) {
	if err := stream.SetClientFormat(e.SampleRate()); err != nil {
		return nil, 0, jamcore.WrapError("NewAudioRenderer", err)
	}

	r := &AudioRenderer{stream: stream, engine: e}
	chunkSamples := constants.AudioFileChunkFrames * constants.ChannelsPerFrame
	r.buffers[0] = make([]float32, chunkSamples)
	r.buffers[1] = make([]float32, chunkSamples)

	id := e.CreateProcessor(r.process, r.destroy, r.onCycle, r)
	return r, id, nil
}

// StartRecord begins accumulating into the active buffer.
func (r *AudioRenderer) StartRecord() {
	r.recording.Store(true)
}

// StopRecord stops accumulating and flushes a partial chunk if one is
// pending.
func (r *AudioRenderer) StopRecord() {
	r.recording.Store(false)
	if r.writeCursor.Load() > 0 {
		r.scheduleWrite()
	}
}

// SetMute silences the node's input, which also silences anything
// downstream in the same branch. While recording, the renderer still
// captures the input as it arrived, before muting.
func (r *AudioRenderer) SetMute(mute bool) {
	r.mute.Store(mute)
}

func (r *AudioRenderer) process(sampleRate float64, numFrames int, buffer []float32, data any) {
	mute := r.mute.Load()
	if !r.recording.Load() {
		if mute {
			clear(buffer[:numFrames*constants.ChannelsPerFrame])
		}
		return
	}

	active := int(r.currentBufferIndex.Load())
	cursor := int(r.writeCursor.Load())
	chunkFrames := constants.AudioFileChunkFrames

	framesToProcess := numFrames
	if remaining := chunkFrames - cursor; framesToProcess > remaining {
		framesToProcess = remaining
	}

	out := r.buffers[active]
	for i := 0; i < framesToProcess; i++ {
		outOffset := (cursor + i) * constants.ChannelsPerFrame
		inOffset := i * constants.ChannelsPerFrame

		out[outOffset] += buffer[inOffset]
		out[outOffset+1] += buffer[inOffset+1]
	}

	if mute {
		clear(buffer[:numFrames*constants.ChannelsPerFrame])
	}

	r.framesThisCycle.Store(int32(framesToProcess))
}

func (r *AudioRenderer) onCycle(data any) {
	framesThisCycle := int(r.framesThisCycle.Swap(0))
	if framesThisCycle == 0 {
		return
	}

	oldCursor := int(r.writeCursor.Add(int32(framesThisCycle))) - framesThisCycle
	newCursor := oldCursor + framesThisCycle

	if newCursor >= constants.AudioFileChunkFrames {
		r.scheduleWrite()
	}
}

func (r *AudioRenderer) scheduleWrite() {
	active := int(r.currentBufferIndex.Load())
	framesToWrite := int(r.writeCursor.Load())

	next := active ^ 1
	r.currentBufferIndex.Store(int32(next))
	r.writeCursor.Store(0)
	for i := range r.buffers[next] {
		r.buffers[next][i] = 0
	}

	stale := active
	r.engine.SubmitTask(func(any) {
		frames := r.buffers[stale][:framesToWrite*constants.ChannelsPerFrame]
		r.stream.Write(frames)
	}, nil)
}

func (r *AudioRenderer) destroy(data any) {
	if r.recording.Load() && r.writeCursor.Load() > 0 {
		framesToWrite := int(r.writeCursor.Load())
		active := int(r.currentBufferIndex.Load())
		frames := r.buffers[active][:framesToWrite*constants.ChannelsPerFrame]
		r.stream.Write(frames)
	}
	r.recording.Store(false)
	r.stream.Close()
}
