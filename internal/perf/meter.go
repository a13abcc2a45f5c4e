// Package perf records the latency of every data-access operation and
// exposes rolling aggregates for the telemetry endpoint.
package perf

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MaxSamples caps the rolling series; the oldest samples are evicted first
// once the cap is exceeded.
const MaxSamples = 1_000_000

// ReportInterval is how often the background reporter logs aggregates.
const ReportInterval = 5 * time.Minute

var lastWindows = []int{1, 10, 100, 1000, 10000}

// Summary is a point-in-time aggregate of the sample series. Averages are
// in seconds.
type Summary struct {
	Count   int     `json:"total_actions"`
	AllTime float64 `json:"all_time"`
	Last1   float64 `json:"last_1"`
	Last10  float64 `json:"last_10"`
	Last100 float64 `json:"last_100"`
	Last1k  float64 `json:"last_1000"`
	Last10k float64 `json:"last_10000"`
}

// Meter is safe for concurrent use by operations finishing in parallel.
type Meter struct {
	mu      sync.Mutex
	samples []float64 // seconds, oldest first
	cap     int

	hist prometheus.Histogram
}

func New() *Meter {
	return newWithCap(MaxSamples)
}

func newWithCap(capacity int) *Meter {
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "db_action_duration_seconds",
		Help:    "Duration of entity store operations",
		Buckets: prometheus.DefBuckets,
	})
	// Duplicate registration only happens in tests with several meters.
	_ = prometheus.Register(hist)

	return &Meter{cap: capacity, hist: hist}
}

// Record appends one sample, evicting the oldest when the series is full.
func (m *Meter) Record(d time.Duration) {
	secs := d.Seconds()
	m.hist.Observe(secs)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, secs)
	if len(m.samples) > m.cap {
		m.samples = m.samples[len(m.samples)-m.cap:]
	}
}

// Summary computes the aggregates over the current series.
func (m *Meter) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{Count: len(m.samples)}
	if s.Count == 0 {
		return s
	}
	s.AllTime = average(m.samples)
	windows := []*float64{&s.Last1, &s.Last10, &s.Last100, &s.Last1k, &s.Last10k}
	for i, n := range lastWindows {
		*windows[i] = average(lastN(m.samples, n))
	}
	return s
}

// Run logs the current aggregates on a fixed interval until the context is
// cancelled. Diagnostics only; failures never reach the request path.
func (m *Meter) Run(ctx context.Context) {
	ticker := time.NewTicker(ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.Summary()
			slog.Info("database delay report",
				"total_actions", s.Count,
				"avg_ms", s.AllTime*1000,
				"avg_last_100_ms", s.Last100*1000,
				"avg_last_1000_ms", s.Last1k*1000,
			)
		}
	}
}

func lastN(samples []float64, n int) []float64 {
	if len(samples) <= n {
		return samples
	}
	return samples[len(samples)-n:]
}

func average(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}
