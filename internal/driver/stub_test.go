package driver

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStubInvokesCallbackRepeatedly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumFrames = 64
	cfg.SampleRate = 48000
	s := NewStub(cfg)

	var calls atomic.Int32
	require.NoError(t, s.Open(func(numFrames int, output []float32) {
		calls.Add(1)
	}))

	require.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, time.Second, time.Millisecond)

	s.Stop()
	require.GreaterOrEqual(t, calls.Load(), int32(2))
}
