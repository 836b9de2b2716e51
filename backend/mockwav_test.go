package backend

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockWavStreamCountsCalls(t *testing.T) {
	m := NewMockWavStream(1024)

	require.NoError(t, m.SetClientFormat(48000))
	require.NoError(t, m.Seek(0))

	buf := make([]float32, 8)
	n, err := m.Write(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	require.NoError(t, m.Seek(0))
	n, err = m.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	require.NoError(t, m.Close())

	counts := m.CallCounts()
	require.Equal(t, 1, counts["set_format"])
	require.Equal(t, 2, counts["seek"])
	require.Equal(t, 1, counts["read"])
	require.Equal(t, 1, counts["write"])
	require.Equal(t, 1, counts["close"])
	require.True(t, m.IsClosed())
}

func TestMockWavStreamLastSeekTracksMostRecentCall(t *testing.T) {
	m := NewMockWavStream(1024)
	require.NoError(t, m.Seek(10))
	require.NoError(t, m.Seek(20))
	require.Equal(t, uint64(20), m.LastSeek())
}

func TestMockWavStreamResetClearsCountersNotContents(t *testing.T) {
	m := NewMockWavStream(1024)
	buf := make([]float32, 8)
	_, err := m.Write(buf)
	require.NoError(t, err)

	m.Reset()
	counts := m.CallCounts()
	require.Equal(t, 0, counts["write"])
	require.Equal(t, int64(4), m.FrameCount())
}

func TestMockWavStreamDelegatesReadEOF(t *testing.T) {
	m := NewMockWavStream(4)
	buf := make([]float32, 16)
	_, err := m.Read(buf)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 1, m.CallCounts()["read"])
}
