// Package metricscollector folds an engine's event stream into commit
// counts, latency quantiles, and throughput. Each Collector owns a
// private prometheus.Registry rather than registering against the global
// default registerer, since a process can host more than one Engine at
// once and package-level collectors would panic on the second
// registration.
package metricscollector

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dapperlabs/hotstuff-sim/model"
)

// Summary is the final rollup produced by Summarize at the end of a run.
type Summary struct {
	BlocksCommitted uint64
	TotalViews      uint64
	TotalTimeouts   uint64
	LatencyAvgMs    float64
	LatencyP50Ms    float64
	LatencyP95Ms    float64
	LatencyP99Ms    float64
	ThroughputBps   float64
	DurationMs      uint64
}

// Collector folds an append-only event stream into running totals.
type Collector struct {
	proposalTimes map[model.Hash]uint64
	committed     map[model.Hash]struct{}
	latencies     []float64

	viewChanges  uint64
	timeouts     uint64
	maxTimestamp uint64

	registry        *prometheus.Registry
	commitsGauge    prometheus.Gauge
	viewChangeCtr   prometheus.Counter
	timeoutCtr      prometheus.Counter
	latencyHist     prometheus.Histogram
}

// New constructs an empty collector with its own private prometheus
// registry — never call prometheus.DefaultRegisterer here.
func New() *Collector {
	reg := prometheus.NewRegistry()

	commitsGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hotstuffsim",
		Subsystem: "consensus",
		Name:      "blocks_committed",
		Help:      "unique blocks committed so far in this run",
	})
	viewChangeCtr := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hotstuffsim",
		Subsystem: "consensus",
		Name:      "view_changes_total",
		Help:      "VIEW_CHANGE events observed so far",
	})
	timeoutCtr := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hotstuffsim",
		Subsystem: "consensus",
		Name:      "timeouts_total",
		Help:      "TIMEOUT events observed so far",
	})
	latencyHist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hotstuffsim",
		Subsystem: "consensus",
		Name:      "commit_latency_ms",
		Help:      "simulated proposal-to-commit latency in milliseconds",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
	})
	reg.MustRegister(commitsGauge, viewChangeCtr, timeoutCtr, latencyHist)

	return &Collector{
		proposalTimes: make(map[model.Hash]uint64),
		committed:     make(map[model.Hash]struct{}),
		registry:      reg,
		commitsGauge:  commitsGauge,
		viewChangeCtr: viewChangeCtr,
		timeoutCtr:    timeoutCtr,
		latencyHist:   latencyHist,
	}
}

// Registry exposes the private prometheus registry for scraping.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Fold folds one event into the running totals.
func (c *Collector) Fold(e model.Event) {
	if ts := e.Timestamp(); ts > c.maxTimestamp {
		c.maxTimestamp = ts
	}

	switch ev := e.(type) {
	case model.ProposalEvent:
		if _, known := c.proposalTimes[ev.BlockHash]; !known {
			c.proposalTimes[ev.BlockHash] = ev.At
		}
	case model.CommitEvent:
		if _, already := c.committed[ev.BlockHash]; !already {
			c.committed[ev.BlockHash] = struct{}{}
			c.commitsGauge.Set(float64(len(c.committed)))
			if proposed, known := c.proposalTimes[ev.BlockHash]; known && ev.At >= proposed {
				latency := float64(ev.At - proposed)
				c.latencies = append(c.latencies, latency)
				c.latencyHist.Observe(latency)
			}
		}
	case model.ViewChangeEvent:
		c.viewChanges++
		c.viewChangeCtr.Inc()
	case model.TimeoutEvent:
		c.timeouts++
		c.timeoutCtr.Inc()
	}
}

// FoldAll folds an ordered slice of events, in order.
func (c *Collector) FoldAll(events []model.Event) {
	for _, e := range events {
		c.Fold(e)
	}
}

// Summarize computes average/P50/P95/P99 commit latency via
// linear-interpolation percentile on sorted latencies, and throughput as
// commits divided by duration in seconds.
func (c *Collector) Summarize() Summary {
	sorted := make([]float64, len(c.latencies))
	copy(sorted, c.latencies)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	avg := 0.0
	if len(sorted) > 0 {
		avg = sum / float64(len(sorted))
	}

	durationSeconds := float64(c.maxTimestamp) / 1000.0
	throughput := 0.0
	if durationSeconds > 0 {
		throughput = float64(len(c.committed)) / durationSeconds
	}

	return Summary{
		BlocksCommitted: uint64(len(c.committed)),
		TotalViews:      c.viewChanges,
		TotalTimeouts:   c.timeouts,
		LatencyAvgMs:    avg,
		LatencyP50Ms:    percentile(sorted, 0.50),
		LatencyP95Ms:    percentile(sorted, 0.95),
		LatencyP99Ms:    percentile(sorted, 0.99),
		ThroughputBps:   throughput,
		DurationMs:      c.maxTimestamp,
	}
}

// percentile computes the p-th percentile of a sorted slice via linear
// interpolation between the two nearest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Reset clears all state behind Summarize and zeroes the commits gauge.
// The Prometheus view-change and timeout counters and the latency
// histogram keep their totals.
func (c *Collector) Reset() {
	c.proposalTimes = make(map[model.Hash]uint64)
	c.committed = make(map[model.Hash]struct{})
	c.latencies = nil
	c.viewChanges = 0
	c.timeouts = 0
	c.maxTimestamp = 0
	c.commitsGauge.Set(0)
}
