package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	jamcore "github.com/jamieb133/jamcore"
	"github.com/jamieb133/jamcore/internal/driver"
	"github.com/jamieb133/jamcore/internal/logging"
	"github.com/jamieb133/jamcore/nodes"
)

func main() {
	var (
		freq    = flag.Float64("freq", 440, "Oscillator frequency in Hz")
		pan     = flag.Float64("pan", 0, "Fader pan, -1 (left) to 1 (right)")
		vol     = flag.Float64("vol", 0.5, "Fader volume, 0 to 1")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.New(logConfig)

	metrics := jamcore.NewMetrics()
	engine := jamcore.Init(jamcore.DefaultEngineParams(), jamcore.Options{
		Logger:   logger,
		Observer: jamcore.NewMetricsObserver(metrics),
	})

	osc, oscID := nodes.NewOscillator(engine, nodes.WaveformSine, *freq, 0, 1.0)
	fader, faderID := nodes.NewFader(engine, float32(clamp(*pan, -1, 1)), float32(clamp(*vol, 0, 1)))
	engine.Route(oscID, faderID, true)
	engine.SetSource(oscID)
	_ = osc
	_ = fader

	stub := driver.NewStub(driver.Config{Logger: logger})
	if err := engine.Start(stub.Open); err != nil {
		logger.Errorf("failed to start engine: %v", err)
		os.Exit(1)
	}

	logger.Info("playing sine oscillator", "freq", *freq, "pan", *pan, "vol", *vol)
	fmt.Printf("playing %.1fHz sine, pan=%.2f vol=%.2f -- press Ctrl+C to stop\n", *freq, *pan, *vol)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("shutdown signal received")
	// Stop waits for a callback to acknowledge the fade-out, so the driver
	// must still be running when it is called.
	engine.Stop()
	stub.Stop()
	engine.Deinit()

	snap := metrics.Snapshot()
	fmt.Printf("processed %d callbacks, %d frames\n", snap.CallbacksProcessed, snap.FramesProcessed)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
