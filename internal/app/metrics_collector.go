package app

import (
	"sync"
	"time"

	"github.com/mehmetymw/failover-dispatch/internal/domain"
)

type providerCounters struct {
	attempts     int64
	successes    int64
	failures     int64
	totalLatency time.Duration
}

type MetricsCollector struct {
	mu         sync.Mutex
	providers  map[string]*providerCounters
	sent       int64
	failed     int64
	duplicates int64
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{providers: make(map[string]*providerCounters)}
}

func (m *MetricsCollector) RecordSuccess(provider string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pc := m.counters(provider)
	pc.attempts++
	pc.successes++
	pc.totalLatency += latency
}

func (m *MetricsCollector) RecordFailure(provider string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pc := m.counters(provider)
	pc.attempts++
	pc.failures++
	pc.totalLatency += latency
}

func (m *MetricsCollector) RecordOutcome(status domain.DeliveryStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch status {
	case domain.StatusSent:
		m.sent++
	case domain.StatusFailed:
		m.failed++
	}
}

func (m *MetricsCollector) RecordDuplicate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duplicates++
}

// counters must be called with mu held.
func (m *MetricsCollector) counters(provider string) *providerCounters {
	pc, ok := m.providers[provider]
	if !ok {
		pc = &providerCounters{}
		m.providers[provider] = pc
	}
	return pc
}

type MetricsSnapshot struct {
	Providers  map[string]ProviderSnapshot `json:"providers"`
	Dispatches DispatchSnapshot            `json:"dispatches"`
}

type ProviderSnapshot struct {
	Attempts     int64   `json:"attempts"`
	Succeeded    int64   `json:"succeeded"`
	Failed       int64   `json:"failed"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	SuccessRate  float64 `json:"success_rate"`
}

type DispatchSnapshot struct {
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Duplicates int64 `json:"duplicates"`
}

func (m *MetricsCollector) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := MetricsSnapshot{
		Providers: make(map[string]ProviderSnapshot, len(m.providers)),
		Dispatches: DispatchSnapshot{
			Sent:       m.sent,
			Failed:     m.failed,
			Duplicates: m.duplicates,
		},
	}

	for name, pc := range m.providers {
		var avgLatency, successRate float64
		if pc.attempts > 0 {
			avgLatency = float64(pc.totalLatency.Milliseconds()) / float64(pc.attempts)
			successRate = float64(pc.successes) / float64(pc.attempts) * 100
		}
		snapshot.Providers[name] = ProviderSnapshot{
			Attempts:     pc.attempts,
			Succeeded:    pc.successes,
			Failed:       pc.failures,
			AvgLatencyMs: avgLatency,
			SuccessRate:  successRate,
		}
	}

	return snapshot
}
