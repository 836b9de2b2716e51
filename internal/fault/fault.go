// Package fault implements the engine's panic path: any precondition
// violation (arena exhaustion, invalid processor ID, routing a dead slot,
// a platform driver failure) is fatal, and the original engine drove that
// through a single process-wide instance pointer consulted by a C
// AssertHandler and a SIGINT handler. The source design note calls that out
// as global state that should become a registry explicitly held by the
// engine context instead; Handler here is that registry; every engine
// instance owns one, created at Init and wired into its own SIGINT
// handling, rather than a package-level singleton.
package fault

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jamieb133/jamcore/internal/interfaces"
	"github.com/jamieb133/jamcore/internal/logging"
)

// StopFunc drives the engine to a clean stop when a fault is caught. It is
// supplied by the engine at registration time so this package never
// imports the engine package.
type StopFunc func()

// Handler is the fault registry for one engine instance. Stop is invoked at
// most once; a fault observed while a previous fault is already stopping
// the engine escalates straight to os.Exit(1) rather than recursing.
type Handler struct {
	mu       sync.Mutex
	stopping bool
	stop     StopFunc
	logger   interfaces.Logger
	sigCh    chan os.Signal
	done     chan struct{}
	exit     func(int)
}

// New creates a Handler bound to stop. logger may be nil, in which case
// the package's default logger is used.
func New(stop StopFunc, logger interfaces.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{stop: stop, logger: logger, exit: os.Exit}
}

// Panic runs the fault path: log, then drive Stop to completion unless a
// fault is already in flight, in which case exit immediately to avoid
// recursing through a broken Stop.
func (h *Handler) Panic(reason any) {
	h.mu.Lock()
	if h.stopping {
		h.mu.Unlock()
		h.logger.Errorf("fault while already stopping: %v", reason)
		h.exit(1)
		return
	}
	h.stopping = true
	h.mu.Unlock()

	h.logger.Errorf("fatal fault: %v", reason)

	if h.stop != nil {
		h.stop()
	}
	h.exit(0)
}

// Recover is deferred at the top of the engine's RT callback to funnel
// panics through Panic instead of crashing the whole process with a bare
// stack trace. The worker pool recovers task panics itself and hands them
// to Panic through its own panic hook.
func (h *Handler) Recover() {
	if r := recover(); r != nil {
		h.Panic(r)
	}
}

// WatchSIGINT installs a SIGINT handler that triggers Panic, mirroring the
// original engine's HandleSigInt. Call StopWatching when the engine is
// torn down so the handler doesn't outlive it.
func (h *Handler) WatchSIGINT() {
	h.mu.Lock()
	if h.sigCh != nil {
		h.mu.Unlock()
		return
	}
	h.sigCh = make(chan os.Signal, 1)
	h.done = make(chan struct{})
	signal.Notify(h.sigCh, syscall.SIGINT)
	ch := h.sigCh
	done := h.done
	h.mu.Unlock()

	go func() {
		select {
		case sig := <-ch:
			h.logger.Warnf("caught %v, triggering fault handler", sig)
			h.Panic("SIGINT")
		case <-done:
		}
	}()
}

// StopWatching uninstalls the SIGINT handler without triggering a fault;
// the engine calls it at the end of its Stop handshake.
func (h *Handler) StopWatching() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sigCh == nil {
		return
	}
	signal.Stop(h.sigCh)
	close(h.done)
	h.sigCh = nil
	h.done = nil
}
