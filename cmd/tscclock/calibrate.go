package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/randomizedcoder/tscclock/internal/calibrate"
	"github.com/randomizedcoder/tscclock/internal/classify"
	"github.com/randomizedcoder/tscclock/internal/clockstate"
	"github.com/randomizedcoder/tscclock/internal/counter"
)

var perCore bool

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Classify the counter and run a fresh calibration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		d := clockstate.HostDeps(cfg)
		if d.Counter == nil {
			return errors.New("no hardware counter on this platform")
		}
		w := cmd.OutOrStdout()

		level := classify.Classify(d.Probe)
		fmt.Fprintf(w, "Level:       %s\n", level)

		params := calibrate.ParamsFrom(cfg)
		anchor := calibrate.NewAnchor(d.Counter, d.Clock)
		start := time.Now()

		if !perCore {
			c := calibrate.Calibrator{Counter: d.Counter, Clock: d.Clock, Params: params}
			res, err := c.Calibrate(anchor)
			if err != nil {
				return errors.Wrap(err, "calibrating")
			}
			fmt.Fprintf(w, "Rate:        %d Hz\n", res.RateHz)
			fmt.Fprintf(w, "Offset:      %d\n", res.Offset)
			fmt.Fprintf(w, "Iterations:  %d\n", res.Iterations)
			fmt.Fprintf(w, "Took:        %v\n", time.Since(start))
			return nil
		}

		cores, err := d.OnlineCPUs()
		if err != nil {
			return err
		}
		b := calibrate.Builder{
			Params: params,
			Pinner: d.Pinner,
			TargetFor: func(counter.CoreID) calibrate.Target {
				return calibrate.Target{Counter: d.Counter, Clock: d.Clock}
			},
		}
		table, err := b.Build(anchor, cores)
		if err != nil {
			return errors.Wrap(err, "per-core calibration")
		}
		fmt.Fprintf(w, "Rate:        %d Hz (mean of %d cores)\n", table.RateHz, len(cores))
		for _, c := range cores {
			fmt.Fprintf(w, "  cpu %-4d   offset %d\n", c, table.Offset(c))
		}
		fmt.Fprintf(w, "Took:        %v\n", time.Since(start))
		return nil
	},
}

func init() {
	calibrateCmd.Flags().BoolVar(&perCore, "per-core", false, "calibrate every online core and print the offset table")
}
