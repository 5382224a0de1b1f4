package fins

import (
	"errors"
	"sync"
	"time"
)

// OperationStats summarizes one operation type.
type OperationStats struct {
	Count       int64
	Errors      int64
	Timeouts    int64
	AvgDuration time.Duration
}

// MetricsCollector collects operation counts, errors, timeouts and durations.
// It is safe for concurrent use.
//
// Example:
//
//	metrics := fins.NewMetricsCollector()
//	client, _ := fins.NewClient(endpoint, fins.WithInterceptor(metrics.Interceptor()))
//
//	stats := metrics.GetStats(fins.OpReadWords)
//	log.Printf("ReadWords: %d calls, %d timeouts, avg %v", stats.Count, stats.Timeouts, stats.AvgDuration)
type MetricsCollector struct {
	mu            sync.RWMutex
	count         map[OperationType]int64
	errors        map[OperationType]int64
	timeouts      map[OperationType]int64
	totalDuration map[OperationType]time.Duration
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	m := &MetricsCollector{}
	m.Reset()
	return m
}

// Interceptor returns an interceptor that collects metrics
func (m *MetricsCollector) Interceptor() Interceptor {
	return func(c *InterceptorCtx) (interface{}, error) {
		start := time.Now()

		result, err := c.Invoke(nil)

		duration := time.Since(start)

		var timeout *TimeoutError
		m.mu.Lock()
		op := c.Info().Operation
		m.count[op]++
		m.totalDuration[op] += duration
		if err != nil {
			m.errors[op]++
			if errors.As(err, &timeout) {
				m.timeouts[op]++
			}
		}
		m.mu.Unlock()

		return result, err
	}
}

// GetStats returns statistics for a specific operation
func (m *MetricsCollector) GetStats(op OperationType) OperationStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsLocked(op)
}

// GetAllStats returns statistics for all operations seen so far
func (m *MetricsCollector) GetAllStats() map[OperationType]OperationStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[OperationType]OperationStats, len(m.count))
	for op := range m.count {
		stats[op] = m.statsLocked(op)
	}
	return stats
}

// Reset clears all collected metrics
func (m *MetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.count = make(map[OperationType]int64)
	m.errors = make(map[OperationType]int64)
	m.timeouts = make(map[OperationType]int64)
	m.totalDuration = make(map[OperationType]time.Duration)
}

func (m *MetricsCollector) statsLocked(op OperationType) OperationStats {
	s := OperationStats{
		Count:    m.count[op],
		Errors:   m.errors[op],
		Timeouts: m.timeouts[op],
	}
	if s.Count > 0 {
		s.AvgDuration = m.totalDuration[op] / time.Duration(s.Count)
	}
	return s
}
