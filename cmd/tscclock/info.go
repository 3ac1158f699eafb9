package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid"
	"github.com/spf13/cobra"

	"github.com/randomizedcoder/tscclock/internal/clockstate"
	"github.com/randomizedcoder/tscclock/internal/sysfs"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the clock classification and calibration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st := clockstate.Init(cfg)
		fs := sysfs.FS{Root: cfg.SysfsRoot}
		w := cmd.OutOrStdout()

		fmt.Fprintf(w, "Architecture:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(w, "CPU:            %s\n", cpuid.CPU.BrandName)
		fmt.Fprintf(w, "RDTSCP:         %t\n", cpuid.CPU.RDTSCP())
		if src, err := fs.ClockSource(); err == nil {
			fmt.Fprintf(w, "Clock source:   %s\n", src)
		} else {
			fmt.Fprintf(w, "Clock source:   unknown (%v)\n", err)
		}
		if cpus, err := fs.OnlineCPUs(); err == nil {
			ids := make([]string, len(cpus))
			for i, c := range cpus {
				ids[i] = fmt.Sprint(c)
			}
			fmt.Fprintf(w, "Online CPUs:    %s\n", strings.Join(ids, ","))
		} else {
			fmt.Fprintf(w, "Online CPUs:    unknown (%v)\n", err)
		}
		fmt.Fprintln(w, "─────────────────────────────────────────────────")
		fmt.Fprintf(w, "Level:          %s\n", st.Level())
		fmt.Fprintf(w, "Nanos/cycle:    %g\n", st.NanosPerCycle())
		if st.HardwareAvailable() {
			fmt.Fprintf(w, "Rate:           %d Hz\n", st.RateHz())
			fmt.Fprintf(w, "Offsets:        %v\n", st.Offsets())
		}
		return nil
	},
}
