package main

import (
	goflag "flag"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/randomizedcoder/tscclock/internal/config"
)

var rootCmd = &cobra.Command{
	Use:          "tscclock",
	Short:        "Inspect and exercise the TSC-backed monotonic clock.",
	SilenceUsage: true,
}

var configPath string

func init() {
	klog.InitFlags(nil)

	pf := rootCmd.PersistentFlags()
	pf.AddGoFlagSet(goflag.CommandLine)
	addConfigFlags(pf)

	rootCmd.AddCommand(infoCmd, calibrateCmd, benchCmd, monotonicCmd)
}

func addConfigFlags(pf *pflag.FlagSet) {
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.Bool("disable", false, "never use the hardware counter")
	pf.Duration("window", config.DefaultWindow, "minimum calibration sample window")
	pf.Float64("tolerance", config.DefaultTolerance, "relative rate change at which calibration converges")
	pf.Float64("cross-core-tolerance", config.DefaultCrossCoreTolerance, "largest accepted spread of per-core rates")
	pf.Int("max-iterations", config.DefaultMaxIterations, "calibration loop bound")
	pf.String("sysfs-root", config.DefaultSysfsRoot, "root under which sys/ and proc/ are read")
}

// loadConfig layers defaults, the config file, TSCCLOCK_* variables and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		return cfg, err
	}

	fs := cmd.Flags()
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "disable":
			cfg.Disable, err = fs.GetBool(f.Name)
		case "window":
			cfg.Window, err = fs.GetDuration(f.Name)
		case "tolerance":
			cfg.Tolerance, err = fs.GetFloat64(f.Name)
		case "cross-core-tolerance":
			cfg.CrossCoreTolerance, err = fs.GetFloat64(f.Name)
		case "max-iterations":
			cfg.MaxIterations, err = fs.GetInt(f.Name)
		case "sysfs-root":
			cfg.SysfsRoot, err = fs.GetString(f.Name)
		}
	})
	if err != nil {
		return cfg, errors.Wrap(err, "reading flags")
	}
	return cfg, cfg.Validate()
}
