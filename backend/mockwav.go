package backend

import (
	"sync"

	"github.com/jamieb133/jamcore/internal/interfaces"
)

// MockWavStream wraps a MemWavStream with call counting and closed/flag
// tracking: a double for node and end-to-end tests that want to assert how
// many times the stream was touched rather than just its resulting
// contents.
type MockWavStream struct {
	inner *MemWavStream

	mu           sync.RWMutex
	closed       bool
	setFormatN   int
	seekCalls    int
	readCalls    int
	writeCalls   int
	closeCalls   int
	lastSeek     uint64
	lastReadLen  int
	lastWriteLen int
}

// NewMockWavStream creates a call-counting double with room for
// capacityFrames stereo frames.
func NewMockWavStream(capacityFrames int64) *MockWavStream {
	return &MockWavStream{inner: NewMemWavStream(capacityFrames)}
}

func (m *MockWavStream) SetClientFormat(sampleRate float64) error {
	m.mu.Lock()
	m.setFormatN++
	m.mu.Unlock()
	return m.inner.SetClientFormat(sampleRate)
}

func (m *MockWavStream) Seek(frame uint64) error {
	m.mu.Lock()
	m.seekCalls++
	m.lastSeek = frame
	m.mu.Unlock()
	return m.inner.Seek(frame)
}

func (m *MockWavStream) Read(buf []float32) (int, error) {
	m.mu.Lock()
	m.readCalls++
	m.lastReadLen = len(buf)
	m.mu.Unlock()
	return m.inner.Read(buf)
}

func (m *MockWavStream) Write(buf []float32) (int, error) {
	m.mu.Lock()
	m.writeCalls++
	m.lastWriteLen = len(buf)
	m.mu.Unlock()
	return m.inner.Write(buf)
}

func (m *MockWavStream) Close() error {
	m.mu.Lock()
	m.closeCalls++
	m.closed = true
	m.mu.Unlock()
	return m.inner.Close()
}

// FrameCount reports the number of frames written so far.
func (m *MockWavStream) FrameCount() int64 {
	return m.inner.FrameCount()
}

// IsClosed reports whether Close has been called.
func (m *MockWavStream) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// CallCounts returns the number of times each method has been called, for
// assertions like "the renderer flushed exactly once per chunk boundary".
func (m *MockWavStream) CallCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"set_format": m.setFormatN,
		"seek":       m.seekCalls,
		"read":       m.readCalls,
		"write":      m.writeCalls,
		"close":      m.closeCalls,
	}
}

// LastSeek returns the frame passed to the most recent Seek call.
func (m *MockWavStream) LastSeek() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSeek
}

// Reset zeroes every call counter without touching the underlying stream
// contents or cursor.
func (m *MockWavStream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setFormatN = 0
	m.seekCalls = 0
	m.readCalls = 0
	m.writeCalls = 0
	m.closeCalls = 0
}

var _ interfaces.WavStream = (*MockWavStream)(nil)
