package fault

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jamieb133/jamcore/internal/logging"
)

func newTestHandler(t *testing.T) (*Handler, *bytes.Buffer, *int) {
	t.Helper()
	var buf bytes.Buffer
	logger := logging.New(&logging.Config{Level: logging.LevelDebug, Output: &buf})
	h := New(nil, logger)
	exitCode := -1
	h.exit = func(code int) { exitCode = code }
	return h, &buf, &exitCode
}

func TestPanicCallsStopThenExitsZero(t *testing.T) {
	h, buf, exitCode := newTestHandler(t)
	var mu sync.Mutex
	stopCalls := 0
	h.stop = func() {
		mu.Lock()
		stopCalls++
		mu.Unlock()
	}

	h.Panic("synthetic fault")

	mu.Lock()
	require.Equal(t, 1, stopCalls)
	mu.Unlock()
	require.Equal(t, 0, *exitCode)
	require.Contains(t, buf.String(), "synthetic fault")
}

func TestPanicWhileAlreadyStoppingExitsOneWithoutRecursing(t *testing.T) {
	h, buf, exitCode := newTestHandler(t)
	stopCalls := 0
	h.stop = func() { stopCalls++ }
	h.stopping = true

	h.Panic("second fault")

	require.Equal(t, 0, stopCalls)
	require.Equal(t, 1, *exitCode)
	require.Contains(t, buf.String(), "already stopping")
}

func TestRecoverFunnelsPanicIntoHandler(t *testing.T) {
	h, _, exitCode := newTestHandler(t)
	called := false
	h.stop = func() { called = true }

	func() {
		defer h.Recover()
		panic("boom")
	}()

	require.True(t, called)
	require.Equal(t, 0, *exitCode)
}

func TestRecoverIsNoOpWithoutPanic(t *testing.T) {
	h, _, exitCode := newTestHandler(t)
	stopCalls := 0
	h.stop = func() { stopCalls++ }

	func() {
		defer h.Recover()
	}()

	require.Equal(t, 0, stopCalls)
	require.Equal(t, -1, *exitCode)
}
