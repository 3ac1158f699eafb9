package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/randomizedcoder/tscclock"
	"github.com/randomizedcoder/tscclock/internal/affinity"
	"github.com/randomizedcoder/tscclock/internal/clockstate"
	"github.com/randomizedcoder/tscclock/internal/stress"
	"github.com/randomizedcoder/tscclock/internal/sysfs"
)

var (
	workers  int
	duration time.Duration
	pin      bool
)

var monotonicCmd = &cobra.Command{
	Use:   "monotonic",
	Short: "Read the clock from many goroutines and fail on any backwards step.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st := clockstate.Init(cfg)

		sc := stress.Config{Workers: workers, Duration: duration, Clock: tscclock.NowCycles}
		if pin {
			cores, err := sysfs.FS{Root: cfg.SysfsRoot}.OnlineCPUs()
			if err != nil {
				return err
			}
			sc.Pinner, sc.Cores = affinity.OS{}, cores
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Checking monotonicity: %d workers for %v (level %s)\n", workers, duration, st.Level())
		fmt.Fprintln(w, "─────────────────────────────────────────────────")

		rep, err := stress.Run(sc)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  readings       %d\n", rep.Readings)
		for i, n := range rep.PerWorker {
			fmt.Fprintf(w, "    worker %-3d   %d\n", i, n)
		}
		fmt.Fprintf(w, "  regressions    %d\n", rep.Regressions)
		fmt.Fprintf(w, "  max regression %d\n", rep.MaxRegression)
		fmt.Fprintf(w, "  after join     %t\n", rep.AfterJoin)
		if !rep.OK() {
			return errors.Errorf("clock went backwards %d times", rep.Regressions)
		}
		return nil
	},
}

func init() {
	fs := monotonicCmd.Flags()
	fs.IntVar(&workers, "workers", runtime.GOMAXPROCS(0), "number of reading goroutines")
	fs.DurationVar(&duration, "duration", 2*time.Second, "how long to read")
	fs.BoolVar(&pin, "pin", false, "pin each worker to an online cpu")
}
