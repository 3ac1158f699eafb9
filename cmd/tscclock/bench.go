package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/tscclock"
	"github.com/randomizedcoder/tscclock/internal/clockstate"
	"github.com/randomizedcoder/tscclock/internal/coarse"
)

type clockInfo struct {
	name string
	read func() uint64
}

var iterations int

var sink uint64

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure the per-call cost of each clock.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st := clockstate.Init(cfg)
		w := cmd.OutOrStdout()

		fmt.Fprintf(w, "Benchmarking clock reads (%d iterations)\n", iterations)
		fmt.Fprintf(w, "Architecture: %s/%s, level %s\n", runtime.GOOS, runtime.GOARCH, st.Level())
		fmt.Fprintln(w, "─────────────────────────────────────────────────")

		// time.Now first: it is the baseline for the speedup column.
		clocks := []clockInfo{
			{"time.Now", func() uint64 { return uint64(time.Now().UnixNano()) }},
			{"runtime.nanotime", func() uint64 { return uint64(coarse.Monotonic()) }},
			{"CLOCK_MONOTONIC_COARSE", coarse.Now},
			{"NowCycles", tscclock.NowCycles},
			{"Instant.Elapsed", func() uint64 { return uint64(tscclock.Now().Elapsed()) }},
		}

		tk := tscclock.NewTicker(time.Hour)
		clocks = append(clocks, clockInfo{"Ticker.Tick", func() uint64 {
			if tk.Tick() {
				return 1
			}
			return 0
		}})

		results := make([]time.Duration, len(clocks))
		for i, c := range clocks {
			start := time.Now()
			for j := 0; j < iterations; j++ {
				sink += c.read()
			}
			results[i] = time.Since(start)
		}
		tk.Stop()

		fmt.Fprintf(w, "\nResults:\n")
		baseline := float64(results[0].Nanoseconds()) / float64(iterations)

		for i, c := range clocks {
			perOp := float64(results[i].Nanoseconds()) / float64(iterations)
			speedup := baseline / perOp
			throughput := 1000 / perOp // M ops/sec

			fmt.Fprintf(w, "  %-24s %12v  %8.2f ns/op  %6.2fx  %8.2f M/s\n",
				c.name, results[i], perOp, speedup, throughput)
		}
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVarP(&iterations, "iterations", "n", 10_000_000, "number of iterations")
}
