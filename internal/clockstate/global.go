package clockstate

import (
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"

	"github.com/randomizedcoder/tscclock/internal/affinity"
	"github.com/randomizedcoder/tscclock/internal/coarse"
	"github.com/randomizedcoder/tscclock/internal/config"
	"github.com/randomizedcoder/tscclock/internal/counter"
	"github.com/randomizedcoder/tscclock/internal/sysfs"
)

var (
	initOnce sync.Once
	current  atomic.Pointer[State]
)

// Init builds the process-wide state from cfg on the first call. Later
// calls, and calls after Get, return the state already built.
func Init(cfg config.Config) *State {
	initOnce.Do(func() {
		current.Store(Build(HostDeps(cfg)))
	})
	return current.Load()
}

// Get returns the process-wide state, building it from the environment
// on first use. After the first call it is a single atomic load.
func Get() *State {
	if s := current.Load(); s != nil {
		return s
	}
	cfg, err := config.FromEnv()
	if err != nil {
		klog.Warningf("tscclock: ignoring environment: %v", err)
		cfg = config.Default()
	}
	return Init(cfg)
}

// hostProbe reads the classifier's signals from the running system.
type hostProbe struct {
	sysfs.FS
	counter counter.Source
}

func (p hostProbe) CounterSupportsCoreID() bool {
	return p.counter != nil && p.counter.SupportsCoreID()
}

// HostDeps wires the real counter, sysfs, affinity and coarse clock.
func HostDeps(cfg config.Config) Deps {
	fs := sysfs.FS{Root: cfg.SysfsRoot}
	d := Deps{
		Config:     cfg,
		Clock:      coarse.Runtime{},
		Pinner:     affinity.OS{},
		OnlineCPUs: fs.OnlineCPUs,
		Coarse:     coarse.Now,
	}
	if src, ok := counter.Hardware(); ok {
		d.Counter = src
	}
	d.Probe = hostProbe{FS: fs, counter: d.Counter}
	return d
}
