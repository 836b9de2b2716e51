package nodes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jamieb133/jamcore/backend"
	"github.com/jamieb133/jamcore/internal/constants"
)

func TestAudioRendererAccumulatesWhileRecording(t *testing.T) {
	e := newTestEngine(t)
	stream := backend.NewMemWavStream(int64(constants.AudioFileChunkFrames) * 4)

	renderer, id, err := NewAudioRenderer(e, stream)
	require.NoError(t, err)
	renderer.StartRecord()

	osc, oscID := NewOscillator(e, WaveformSine, 0, 0, 0)
	_ = osc
	e.Route(oscID, id, true)
	e.SetSource(oscID)

	output := make([]float32, 8)
	e.RTCallback(4, output)

	require.Equal(t, int32(4), renderer.writeCursor.Load())
}

func TestAudioRendererFlushesFullChunkAndFlipsBuffer(t *testing.T) {
	e := newTestEngine(t)
	stream := backend.NewMemWavStream(int64(constants.AudioFileChunkFrames) * 4)

	renderer, id, err := NewAudioRenderer(e, stream)
	require.NoError(t, err)
	renderer.StartRecord()
	e.SetSource(id)

	numFrames := constants.AudioFileChunkFrames
	output := make([]float32, numFrames*2)
	before := renderer.currentBufferIndex.Load()
	e.RTCallback(numFrames, output)
	e.FlushTasks()

	require.NotEqual(t, before, renderer.currentBufferIndex.Load())
	require.Equal(t, int32(0), renderer.writeCursor.Load())
}

func TestAudioRendererMuteZeroesInputBuffer(t *testing.T) {
	e := newTestEngine(t)
	stream := backend.NewMemWavStream(int64(constants.AudioFileChunkFrames) * 2)

	renderer, id, err := NewAudioRenderer(e, stream)
	require.NoError(t, err)
	renderer.StartRecord()
	renderer.SetMute(true)

	osc, oscID := NewOscillator(e, WaveformSine, 440, 1.0, 1.0)
	_ = osc
	e.Route(oscID, id, true)
	e.SetSource(oscID)

	output := make([]float32, 8)
	e.RTCallback(4, output)

	for _, v := range output {
		require.Equal(t, float32(0), v)
	}
}

func TestAudioRendererFlushWritesExactlyOncePerChunkBoundary(t *testing.T) {
	e := newTestEngine(t)
	stream := backend.NewMockWavStream(int64(constants.AudioFileChunkFrames) * 4)

	renderer, id, err := NewAudioRenderer(e, stream)
	require.NoError(t, err)
	renderer.StartRecord()
	e.SetSource(id)

	numFrames := constants.AudioFileChunkFrames
	output := make([]float32, numFrames*2)
	e.RTCallback(numFrames, output)
	e.FlushTasks()

	// The chunk write runs on a worker goroutine after FlushTasks wakes it.
	require.Eventually(t, func() bool {
		return stream.CallCounts()["write"] == 1
	}, time.Second, time.Millisecond)
}

func TestAudioRendererStopRecordFlushesPartialChunk(t *testing.T) {
	e := newTestEngine(t)
	stream := backend.NewMemWavStream(int64(constants.AudioFileChunkFrames) * 2)

	renderer, id, err := NewAudioRenderer(e, stream)
	require.NoError(t, err)
	renderer.StartRecord()

	osc, oscID := NewOscillator(e, WaveformSine, 0, 0, 1.0)
	_ = osc
	e.Route(oscID, id, true)
	e.SetSource(oscID)

	output := make([]float32, 8)
	e.RTCallback(4, output)
	e.FlushTasks()

	renderer.StopRecord()
	e.FlushTasks()

	require.False(t, renderer.recording.Load())
}
