// cmd/decode.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gotrigger/crankdecoder/internal/cli/decode"
	"github.com/gotrigger/crankdecoder/internal/config"
	"github.com/gotrigger/crankdecoder/internal/hal"
	"github.com/gotrigger/crankdecoder/internal/telemetry"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Run, simulate, replay, or benchmark the trigger decoder",
}

var (
	simRPM      uint16
	simDuration time.Duration

	replayPath string

	liveChip          string
	livePrimaryLine   int
	liveSecondaryLine int
	liveTertiaryLine  int

	benchRPM   uint16
	benchEdges int
)

func init() {
	simulateCmd.Flags().Uint16Var(&simRPM, "rpm", 3000, "simulated engine speed")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 5*time.Second, "how long to run the simulation")

	replayCmd.Flags().StringVar(&replayPath, "file", "", "path to a recorded tooth-log frame stream")
	replayCmd.MarkFlagRequired("file")

	liveCmd.Flags().StringVar(&liveChip, "chip", "gpiochip0", "GPIO chip device name")
	liveCmd.Flags().IntVar(&livePrimaryLine, "primary-line", 17, "GPIO offset for the primary (crank) signal")
	liveCmd.Flags().IntVar(&liveSecondaryLine, "secondary-line", 27, "GPIO offset for the secondary (cam) signal")
	liveCmd.Flags().IntVar(&liveTertiaryLine, "tertiary-line", -1, "GPIO offset for the tertiary (second cam) signal, -1 if unused")

	benchCmd.Flags().Uint16Var(&benchRPM, "rpm", 3000, "simulated engine speed driving the benchmark")
	benchCmd.Flags().IntVar(&benchEdges, "edges", 100_000, "number of primary edges to process")

	decodeCmd.AddCommand(simulateCmd, replayCmd, liveCmd, benchCmd)
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the decoder against a synthetic toothed-wheel generator",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Get()
		if err != nil {
			return err
		}

		sim := hal.NewSimulatorSource(*cfg, simRPM)
		session, err := decode.NewSession(*cfg, sim)
		if err != nil {
			return err
		}
		session.OnStatus = printStatus

		ctx, cancel := context.WithTimeout(cmd.Context(), simDuration)
		defer cancel()
		return session.Run(ctx)
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded tooth-log frame stream through the decoder",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Get()
		if err != nil {
			return err
		}

		f, err := os.Open(replayPath)
		if err != nil {
			return fmt.Errorf("decode replay: %w", err)
		}
		defer f.Close()

		snap, err := decode.RunReplay(*cfg, f)
		if err != nil {
			return err
		}
		printStatus(snap)
		return nil
	},
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Run the decoder against real GPIO edges",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Get()
		if err != nil {
			return err
		}

		lines := []hal.LineConfig{{Channel: hal.Primary, Offset: livePrimaryLine}}
		if liveSecondaryLine >= 0 {
			lines = append(lines, hal.LineConfig{Channel: hal.Secondary, Offset: liveSecondaryLine})
		}
		if liveTertiaryLine >= 0 {
			lines = append(lines, hal.LineConfig{Channel: hal.Tertiary, Offset: liveTertiaryLine})
		}

		source := hal.NewGpiocdevSource(liveChip, lines)
		session, err := decode.NewSession(*cfg, source)
		if err != nil {
			return err
		}
		session.OnStatus = printStatus

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return session.Run(ctx)
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure decoder throughput against a synthetic edge stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Get()
		if err != nil {
			return err
		}

		result, err := decode.RunBench(*cfg, benchRPM, benchEdges)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(),
			"processed %d edges in %s (%.0f edges/s); final RPM=%d syncLoss=%d\n",
			result.Edges, result.Elapsed, float64(result.Edges)/result.Elapsed.Seconds(),
			result.FinalRPM, result.FinalSyncLossCounter)
		return nil
	},
}

func printStatus(snap telemetry.StatusSnapshot) {
	sync := "sync"
	if !snap.HasSync {
		sync = "nosync"
		if snap.HalfSync {
			sync = "halfsync"
		}
	}
	fmt.Printf("rpm=%d %s lossCount=%d rev=%d vvt1=%d vvt2=%d\n",
		snap.RPM, sync, snap.SyncLossCounter, snap.StartRevolutions, snap.VVT1Angle, snap.VVT2Angle)
}
