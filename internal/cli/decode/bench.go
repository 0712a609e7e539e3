package decode

import (
	"context"
	"time"

	"github.com/gotrigger/crankdecoder/internal/config"
	"github.com/gotrigger/crankdecoder/internal/hal"
	"github.com/gotrigger/crankdecoder/internal/trigger"
)

// BenchResult summarizes a throughput run: how many edges the decoder
// processed and how long that took, plus where it ended up.
type BenchResult struct {
	Edges                int
	Elapsed              time.Duration
	FinalRPM             uint16
	FinalSyncLossCounter uint16
}

// RunBench feeds synthetic edges from a SimulatorSource running at rpm,
// with no wall-clock pacing, until edgeCount primary edges have been
// processed (secondary and tertiary edges are processed alongside but not
// counted), and reports how long the decoder took to process them — a raw measure of
// decoder overhead, independent of any real edge source's timing.
func RunBench(cfg config.Settings, rpm uint16, edgeCount int) (BenchResult, error) {
	d, err := trigger.New(cfg)
	if err != nil {
		return BenchResult{}, err
	}

	sim := hal.NewSimulatorSource(cfg, rpm)
	sim.Clock = func(now uint32, step time.Duration) uint32 {
		return now + uint32(step.Microseconds())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	primary := make(chan hal.Edge, 1024)
	secondary := make(chan hal.Edge, 1024)
	tertiary := make(chan hal.Edge, 1024)
	go sim.Run(ctx, primary, secondary, tertiary)

	start := time.Now()
	processed := 0
	for processed < edgeCount {
		select {
		case e := <-primary:
			d.Primary(e.TimestampUS, e.Direction)
			processed++
		case e := <-secondary:
			d.Secondary(e.TimestampUS, e.Direction)
		case e := <-tertiary:
			d.Tertiary(e.TimestampUS, e.Direction)
		}
	}
	elapsed := time.Since(start)

	return BenchResult{
		Edges:                processed,
		Elapsed:              elapsed,
		FinalRPM:             d.GetRPM(),
		FinalSyncLossCounter: d.Core().SyncLossCounter,
	}, nil
}
