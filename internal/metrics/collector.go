// Package metrics records per-operation latency and error counts for a
// harness run.
package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// opSeries tracks one operation's latency distribution and outcome
// counts.
type opSeries struct {
	hist         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByType map[string]int64
}

// Collector records operation metrics in a thread-safe manner.
type Collector struct {
	mu    sync.Mutex
	ops   map[string]*opSeries
	start time.Time
}

// OpStats represents aggregated metrics for one operation.
type OpStats struct {
	Op          string        `json:"op"`
	Total       int64         `json:"total"`
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	MinLatency  time.Duration `json:"-"`
	MaxLatency  time.Duration `json:"-"`
	MeanLatency time.Duration `json:"-"`
	P50Latency  time.Duration `json:"-"`
	P99Latency  time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64        `json:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms"`
	Errors        map[string]int `json:"errors,omitempty"`
}

// Snapshot is the full set of operation stats plus run timing.
type Snapshot struct {
	Ops      []OpStats     `json:"ops"`
	Duration time.Duration `json:"-"`

	DurationMs float64 `json:"duration_ms"`
}

func NewCollector() *Collector {
	return &Collector{
		ops:   make(map[string]*opSeries),
		start: time.Now(),
	}
}

func newOpSeries() *opSeries {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &opSeries{
		hist:         hdrhistogram.New(1, 60_000_000, 3),
		errorsByType: make(map[string]int64),
	}
}

// RecordOp records a single operation's latency and error state under
// the given operation name.
func (c *Collector) RecordOp(op string, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.ops[op]
	if !ok {
		s = newOpSeries()
		c.ops[op] = s
	}

	if latency > 0 {
		us := latency.Microseconds()
		if us < s.hist.LowestTrackableValue() {
			us = s.hist.LowestTrackableValue()
		}
		if us > s.hist.HighestTrackableValue() {
			us = s.hist.HighestTrackableValue()
		}
		_ = s.hist.RecordValue(us)
	}
	s.sumLatency += latency

	if s.minLatency == 0 || latency < s.minLatency {
		s.minLatency = latency
	}
	if latency > s.maxLatency {
		s.maxLatency = latency
	}

	if err == nil {
		s.successes++
	} else {
		s.failures++
		errorType := fmt.Sprintf("%T", err)
		if len(errorType) > 30 {
			errorType = errorType[len(errorType)-30:]
		}
		s.errorsByType[errorType]++
	}
}

// Snapshot computes and returns current aggregated statistics, sorted
// by operation name.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.start)
	snap := Snapshot{
		Ops:        make([]OpStats, 0, len(c.ops)),
		Duration:   elapsed,
		DurationMs: float64(elapsed) / float64(time.Millisecond),
	}

	for op, s := range c.ops {
		total := s.successes + s.failures
		stats := OpStats{
			Op:         op,
			Total:      total,
			Successes:  s.successes,
			Failures:   s.failures,
			MinLatency: s.minLatency,
			MaxLatency: s.maxLatency,
		}

		if total > 0 {
			stats.MeanLatency = time.Duration(int64(s.sumLatency) / total)
		}
		if s.hist.TotalCount() > 0 {
			stats.P50Latency = time.Duration(s.hist.ValueAtQuantile(50)) * time.Microsecond
			stats.P99Latency = time.Duration(s.hist.ValueAtQuantile(99)) * time.Microsecond
		}

		stats.MinLatencyMs = float64(stats.MinLatency) / float64(time.Millisecond)
		stats.MaxLatencyMs = float64(stats.MaxLatency) / float64(time.Millisecond)
		stats.MeanLatencyMs = float64(stats.MeanLatency) / float64(time.Millisecond)
		stats.P50LatencyMs = float64(stats.P50Latency) / float64(time.Millisecond)
		stats.P99LatencyMs = float64(stats.P99Latency) / float64(time.Millisecond)

		if len(s.errorsByType) > 0 {
			stats.Errors = make(map[string]int, len(s.errorsByType))
			for k, v := range s.errorsByType {
				stats.Errors[k] = int(v)
			}
		}

		snap.Ops = append(snap.Ops, stats)
	}

	sort.Slice(snap.Ops, func(i, j int) bool { return snap.Ops[i].Op < snap.Ops[j].Op })
	return snap
}

// OpTotals returns total and failure counts for one operation.
func (c *Collector) OpTotals(op string) (total, failures int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.ops[op]
	if !ok {
		return 0, 0
	}
	return s.successes + s.failures, s.failures
}
