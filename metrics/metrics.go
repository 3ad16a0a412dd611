// Package metrics records execution statistics for the VM.
// Defined metrics:
//
//	vm.steps (counter)        instructions executed
//	vm.halt (counter)         engines that reached HALT
//	vm.fault (counter)        engines that reached FAULT
//	vm.gc.runs (counter)      CheckZeroReferred passes that ran a collection
//	vm.gc.freed (counter)     compound items reclaimed
//	vm.refcount (gauge)       reference count of the last finished engine
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/codahale/metrics"
)

const (
	Steps    = "vm.steps"
	Halts    = "vm.halt"
	Faults   = "vm.fault"
	GCRuns   = "vm.gc.runs"
	GCFreed  = "vm.gc.freed"
	RefCount = "vm.refcount"
)

// RecordRun records the outcome of one engine run.
func RecordRun(steps int, halted bool, refCount int) {
	metrics.Counter(Steps).AddN(uint64(steps))
	if halted {
		metrics.Counter(Halts).Add()
	} else {
		metrics.Counter(Faults).Add()
	}
	metrics.Gauge(RefCount).Set(int64(refCount))
}

// RecordCollections records runs collection passes that
// together freed n items.
func RecordCollections(runs, n int) {
	if runs > 0 {
		metrics.Counter(GCRuns).AddN(uint64(runs))
	}
	if n > 0 {
		metrics.Counter(GCFreed).AddN(uint64(n))
	}
}

// Snapshot returns the current values of the counters above.
func Snapshot() map[string]uint64 {
	counters, _ := metrics.Snapshot()
	out := make(map[string]uint64)
	for _, name := range []string{Steps, Halts, Faults, GCRuns, GCFreed} {
		out[name] = counters[name]
	}
	return out
}

// Latency is a concurrency-safe histogram of durations,
// with microsecond resolution.
type Latency struct {
	mu   sync.Mutex
	max  time.Duration
	hist *hdrhistogram.Histogram
	over int64
}

// NewLatency returns a Latency recording durations up to max.
// Longer durations are counted but recorded as max.
func NewLatency(max time.Duration) *Latency {
	return &Latency{
		max:  max,
		hist: hdrhistogram.New(1, int64(max/time.Microsecond), 2),
	}
}

// Record adds d to the histogram.
func (l *Latency) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d > l.max {
		l.over++
		d = l.max
	}
	l.hist.RecordValue(int64(d / time.Microsecond))
}

// RecordSince records the time elapsed since t.
func (l *Latency) RecordSince(t time.Time) {
	l.Record(time.Since(t))
}

// Quantile returns the duration at quantile q, in [0, 100].
func (l *Latency) Quantile(q float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Duration(l.hist.ValueAtQuantile(q)) * time.Microsecond
}

// Count returns the number of recorded durations.
func (l *Latency) Count() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hist.TotalCount()
}

func (l *Latency) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	us := func(q float64) time.Duration {
		return time.Duration(l.hist.ValueAtQuantile(q)) * time.Microsecond
	}
	return fmt.Sprintf("n=%d p50=%s p95=%s p99=%s over=%d",
		l.hist.TotalCount(), us(50), us(95), us(99), l.over)
}
