package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks backtest throughput. Counters are updated from concurrent
// runs with atomics; histograms lock internally.
type Metrics struct {
	RunLatency    *LatencyHistogram
	ExportLatency *LatencyHistogram
	APILatency    *LatencyHistogram

	batches        atomic.Uint64
	runsStarted    atomic.Uint64
	runsCompleted  atomic.Uint64
	runsFailed     atomic.Uint64
	ticks          atomic.Uint64
	decisions      atomic.Uint64
	operations     atomic.Uint64
	exportFailures atomic.Uint64
	apiRequests    atomic.Uint64
	apiErrors      atomic.Uint64

	startedAt time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		RunLatency:    NewLatencyHistogram(1000),
		ExportLatency: NewLatencyHistogram(200),
		APILatency:    NewLatencyHistogram(1000),
		startedAt:     time.Now(),
	}
}

// LatencyHistogram keeps the most recent samples in a sliding window and
// computes stats lazily.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg and percentiles of the window.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}
	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cachedStats
}

// LatencyStats holds computed latency statistics in milliseconds.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

func (m *Metrics) IncrementBatches() { m.batches.Add(1) }
func (m *Metrics) IncrementRunsStarted() { m.runsStarted.Add(1) }
func (m *Metrics) IncrementExportFailures() { m.exportFailures.Add(1) }
func (m *Metrics) IncrementAPI() { m.apiRequests.Add(1) }
func (m *Metrics) IncrementAPIErrors() { m.apiErrors.Add(1) }

// RecordRun closes a run: its wall time, tick, decision and operation counts.
func (m *Metrics) RecordRun(elapsed time.Duration, ticks, decisions, operations int, failed bool) {
	m.RunLatency.RecordDuration(elapsed)
	m.ticks.Add(uint64(ticks))
	m.decisions.Add(uint64(decisions))
	m.operations.Add(uint64(operations))
	if failed {
		m.runsFailed.Add(1)
	} else {
		m.runsCompleted.Add(1)
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	RunLatency     LatencyStats `json:"run_latency"`
	ExportLatency  LatencyStats `json:"export_latency"`
	APILatency     LatencyStats `json:"api_latency"`
	Batches        uint64       `json:"batches"`
	RunsStarted    uint64       `json:"runs_started"`
	RunsCompleted  uint64       `json:"runs_completed"`
	RunsFailed     uint64       `json:"runs_failed"`
	Ticks          uint64       `json:"ticks"`
	Decisions      uint64       `json:"decisions"`
	Operations     uint64       `json:"operations"`
	ExportFailures uint64       `json:"export_failures"`
	APIRequests    uint64       `json:"api_requests"`
	APIErrors      uint64       `json:"api_errors"`
	GoroutineCount int          `json:"goroutine_count"`
	HeapAlloc      uint64       `json:"heap_alloc_bytes"`
	Uptime         string       `json:"uptime"`
	Timestamp      time.Time    `json:"timestamp"`
}

func (m *Metrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return MetricsSnapshot{
		RunLatency:     m.RunLatency.Stats(),
		ExportLatency:  m.ExportLatency.Stats(),
		APILatency:     m.APILatency.Stats(),
		Batches:        m.batches.Load(),
		RunsStarted:    m.runsStarted.Load(),
		RunsCompleted:  m.runsCompleted.Load(),
		RunsFailed:     m.runsFailed.Load(),
		Ticks:          m.ticks.Load(),
		Decisions:      m.decisions.Load(),
		Operations:     m.operations.Load(),
		ExportFailures: m.exportFailures.Load(),
		APIRequests:    m.apiRequests.Load(),
		APIErrors:      m.apiErrors.Load(),
		GoroutineCount: runtime.NumGoroutine(),
		HeapAlloc:      memStats.HeapAlloc,
		Uptime:         time.Since(m.startedAt).Round(time.Second).String(),
		Timestamp:      time.Now(),
	}
}

// Timer measures one operation into a histogram.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{start: time.Now(), histogram: h}
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
