// Package stress reads a clock from many goroutines at once and checks
// that no goroutine ever observes it going backwards.
//
// Readings flow from the workers to a single checker through a sharded
// MPSC ring, one shard per worker, so the checker sees each worker's
// readings in the order they were taken.
package stress

import (
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	ring "github.com/randomizedcoder/go-lock-free-ring"
	"k8s.io/klog/v2"

	"github.com/randomizedcoder/tscclock/internal/affinity"
	"github.com/randomizedcoder/tscclock/internal/counter"
)

// Config controls a stress run.
type Config struct {
	// Workers is the number of reading goroutines.
	Workers int
	// Duration is how long the workers read.
	Duration time.Duration
	// Clock is the clock under test.
	Clock func() uint64

	// Pinner and Cores, when both set, pin worker i to Cores[i%len(Cores)]
	// so that readings are spread over known cores.
	Pinner affinity.Pinner
	Cores  []counter.CoreID
}

// Report summarises a stress run.
type Report struct {
	Readings    uint64
	PerWorker   []uint64
	Regressions uint64
	// MaxRegression is the largest backwards step seen, in clock units.
	MaxRegression uint64
	// AfterJoin reports whether a reading taken after all workers joined
	// was at least every worker's last reading.
	AfterJoin bool
}

// OK reports whether the run took readings and saw no regression.
func (r Report) OK() bool {
	return r.Readings > 0 && r.Regressions == 0 && r.AfterJoin
}

// ErrNoReadings means the run ended before any worker reading reached
// the checker.
var ErrNoReadings = errors.New("stress: no readings taken")

type reading struct {
	worker int
	value  uint64
}

const perShardCapacity = 1024

// Run starts the workers, checks their readings until Duration elapses
// and returns the report. It blocks for about Duration.
func Run(cfg Config) (Report, error) {
	if cfg.Workers < 1 {
		return Report{}, errors.Errorf("stress: need at least one worker, got %d", cfg.Workers)
	}
	if cfg.Clock == nil {
		return Report{}, errors.New("stress: no clock")
	}

	shards := uint64(1)
	for shards < uint64(cfg.Workers) {
		shards <<= 1
	}
	r, err := ring.NewShardedRing(perShardCapacity*shards, shards)
	if err != nil {
		return Report{}, errors.Wrap(err, "stress: creating ring")
	}

	var stop stopFlag
	var wg sync.WaitGroup
	lastByWorker := make([]uint64, cfg.Workers)
	pinErrs := make([]error, cfg.Workers)

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cfg.Pinner != nil && len(cfg.Cores) > 0 {
				if err := cfg.Pinner.Pin(cfg.Cores[w%len(cfg.Cores)]); err != nil {
					pinErrs[w] = err
					return
				}
			}
			// Every worker contributes at least one reading, however
			// late it is scheduled.
			var v uint64
			for {
				v = cfg.Clock()
				for !r.Write(uint64(w), reading{worker: w, value: v}) {
					if stop.done() {
						break
					}
					runtime.Gosched()
				}
				if stop.done() {
					break
				}
			}
			lastByWorker[w] = v
		}()
	}

	timer := time.AfterFunc(cfg.Duration, stop.stop)
	defer timer.Stop()

	rep := Report{PerWorker: make([]uint64, cfg.Workers)}
	last := make([]uint64, cfg.Workers)
	seen := make([]bool, cfg.Workers)
	check := func(item any) {
		rd := item.(reading)
		rep.Readings++
		rep.PerWorker[rd.worker]++
		if seen[rd.worker] && rd.value < last[rd.worker] {
			rep.Regressions++
			rep.MaxRegression = max(rep.MaxRegression, last[rd.worker]-rd.value)
		}
		last[rd.worker], seen[rd.worker] = rd.value, true
	}

	for !stop.done() {
		item, ok := r.TryRead()
		if !ok {
			runtime.Gosched()
			continue
		}
		check(item)
	}

	wg.Wait()
	for {
		item, ok := r.TryRead()
		if !ok {
			break
		}
		check(item)
	}

	for w, err := range pinErrs {
		if err != nil {
			return rep, errors.Wrapf(err, "stress: worker %d", w)
		}
	}
	if rep.Readings == 0 {
		return rep, ErrNoReadings
	}

	after := cfg.Clock()
	rep.AfterJoin = true
	for _, v := range lastByWorker {
		if after < v {
			rep.AfterJoin = false
		}
	}

	if rep.Regressions > 0 {
		klog.Warningf("stress: %d regressions, max %d", rep.Regressions, rep.MaxRegression)
	}
	return rep, nil
}
