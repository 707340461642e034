package usecase

import (
	"sort"
	"sync"
	"time"
)

// OperationMetrics summarises the calls made for one dashboard action.
type OperationMetrics struct {
	Operation        string  `json:"operation"`
	TotalRequests    int64   `json:"total_requests"`
	FailedRequests   int64   `json:"failed_requests"`
	Warnings         int64   `json:"warnings"`
	FailureRate      float64 `json:"failure_rate"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
}

// MetricsSummary represents aggregated relay insights since process start.
type MetricsSummary struct {
	Operations []OperationMetrics `json:"operations"`
}

type operationCounters struct {
	total    int64
	failed   int64
	warnings int64
	latency  time.Duration
}

type metricsRecorder struct {
	mu         sync.Mutex
	operations map[string]*operationCounters
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{operations: make(map[string]*operationCounters)}
}

func (m *metricsRecorder) counters(operation string) *operationCounters {
	c, ok := m.operations[operation]
	if !ok {
		c = &operationCounters{}
		m.operations[operation] = c
	}
	return c
}

func (m *metricsRecorder) recordCall(operation string, latency time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.counters(operation)
	c.total++
	c.latency += latency
	if failed {
		c.failed++
	}
}

func (m *metricsRecorder) recordWarning(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters(operation).warnings++
}

func (m *metricsRecorder) summary() *MetricsSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := &MetricsSummary{Operations: make([]OperationMetrics, 0, len(m.operations))}
	for operation, c := range m.operations {
		item := OperationMetrics{
			Operation:      operation,
			TotalRequests:  c.total,
			FailedRequests: c.failed,
			Warnings:       c.warnings,
		}
		if c.total > 0 {
			item.FailureRate = float64(c.failed) / float64(c.total)
			item.AverageLatencyMs = float64(c.latency.Microseconds()) / 1000 / float64(c.total)
		}
		summary.Operations = append(summary.Operations, item)
	}
	sort.Slice(summary.Operations, func(i, j int) bool {
		return summary.Operations[i].Operation < summary.Operations[j].Operation
	})
	return summary
}

// GetMetricsSummary reports per action counters.
func (d *Dashboard) GetMetricsSummary() *MetricsSummary {
	return d.metrics.summary()
}
