// Package config holds the tunables of clock calibration.
//
// Values come from Default, optionally overridden by a YAML file (Load)
// and by TSCCLOCK_* environment variables (FromEnv / ApplyEnv).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config controls how the clock is classified and calibrated.
type Config struct {
	// Disable skips probing and always uses the coarse clock.
	Disable bool `yaml:"disable"`

	// Window is the minimum monotonic interval a calibration sample spans.
	Window time.Duration `yaml:"window"`

	// Tolerance is the relative change between consecutive rate estimates
	// below which single-core calibration has converged.
	Tolerance float64 `yaml:"tolerance"`

	// CrossCoreTolerance is the largest (max-min)/min spread of per-core
	// rates accepted when building the per-core offset table.
	CrossCoreTolerance float64 `yaml:"cross_core_tolerance"`

	// MaxIterations bounds the convergence loop; exhausting it makes the
	// counter unstable.
	MaxIterations int `yaml:"max_iterations"`

	// SysfsRoot is the directory under which sys/ and proc/ are read.
	SysfsRoot string `yaml:"sysfs_root"`
}

// Defaults.
const (
	DefaultWindow             = 10 * time.Millisecond
	DefaultTolerance          = 0.00001 // 0.001%
	DefaultCrossCoreTolerance = 0.0005  // 0.05%
	DefaultMaxIterations      = 200
	DefaultSysfsRoot          = "/"
)

// Environment variables read by ApplyEnv.
const (
	EnvDisable            = "TSCCLOCK_DISABLE"
	EnvWindow             = "TSCCLOCK_WINDOW"
	EnvTolerance          = "TSCCLOCK_TOLERANCE"
	EnvCrossCoreTolerance = "TSCCLOCK_CROSS_CORE_TOLERANCE"
	EnvMaxIterations      = "TSCCLOCK_MAX_ITERATIONS"
	EnvSysfsRoot          = "TSCCLOCK_SYSFS_ROOT"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Window:             DefaultWindow,
		Tolerance:          DefaultTolerance,
		CrossCoreTolerance: DefaultCrossCoreTolerance,
		MaxIterations:      DefaultMaxIterations,
		SysfsRoot:          DefaultSysfsRoot,
	}
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case c.Window <= 0:
		return errors.Errorf("config: window must be positive, got %v", c.Window)
	case c.Tolerance <= 0 || c.Tolerance >= 1:
		return errors.Errorf("config: tolerance must be in (0, 1), got %g", c.Tolerance)
	case c.CrossCoreTolerance <= 0 || c.CrossCoreTolerance >= 1:
		return errors.Errorf("config: cross_core_tolerance must be in (0, 1), got %g", c.CrossCoreTolerance)
	case c.MaxIterations < 2:
		return errors.Errorf("config: max_iterations must be at least 2, got %d", c.MaxIterations)
	case c.SysfsRoot == "":
		return errors.New("config: sysfs_root must not be empty")
	}
	return nil
}

// Load reads a YAML file over Default. Fields missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, cfg.Validate()
}

// FromEnv returns Default with environment overrides applied. Malformed
// values are reported and the default kept.
func FromEnv() (Config, error) {
	cfg := Default()
	err := cfg.ApplyEnv(os.LookupEnv)
	return cfg, err
}

// ApplyEnv overrides fields from lookup, which has the signature of
// os.LookupEnv. All variables are applied; the first error is returned.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var first error
	keep := func(err error, name string) {
		if err != nil && first == nil {
			first = errors.Wrapf(err, "config: %s", name)
		}
	}

	if v, ok := lookup(EnvDisable); ok {
		b, err := strconv.ParseBool(v)
		keep(err, EnvDisable)
		if err == nil {
			c.Disable = b
		}
	}
	if v, ok := lookup(EnvWindow); ok {
		d, err := time.ParseDuration(v)
		keep(err, EnvWindow)
		if err == nil {
			c.Window = d
		}
	}
	if v, ok := lookup(EnvTolerance); ok {
		f, err := strconv.ParseFloat(v, 64)
		keep(err, EnvTolerance)
		if err == nil {
			c.Tolerance = f
		}
	}
	if v, ok := lookup(EnvCrossCoreTolerance); ok {
		f, err := strconv.ParseFloat(v, 64)
		keep(err, EnvCrossCoreTolerance)
		if err == nil {
			c.CrossCoreTolerance = f
		}
	}
	if v, ok := lookup(EnvMaxIterations); ok {
		n, err := strconv.Atoi(v)
		keep(err, EnvMaxIterations)
		if err == nil {
			c.MaxIterations = n
		}
	}
	if v, ok := lookup(EnvSysfsRoot); ok {
		c.SysfsRoot = v
	}

	if first != nil {
		return first
	}
	return c.Validate()
}
