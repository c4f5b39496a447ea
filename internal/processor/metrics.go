package processor

import (
	"sync/atomic"
	"time"
)

type ServiceMetrics struct {
	totalProcessed  int64
	totalFailed     int64
	totalDurationNs int64
	lastResetNs     int64
}

type Stats struct {
	Processed     int64
	Failed        int64
	RatePerSecond float64
	AvgDuration   time.Duration
	Uptime        time.Duration
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{lastResetNs: time.Now().UnixNano()}
}

func (m *ServiceMetrics) RecordSuccess(duration time.Duration) {
	atomic.AddInt64(&m.totalProcessed, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
}

func (m *ServiceMetrics) RecordFailure() {
	atomic.AddInt64(&m.totalFailed, 1)
}

func (m *ServiceMetrics) GetStats() Stats {
	processed := atomic.LoadInt64(&m.totalProcessed)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	uptime := time.Since(time.Unix(0, atomic.LoadInt64(&m.lastResetNs)))

	stats := Stats{
		Processed: processed,
		Failed:    atomic.LoadInt64(&m.totalFailed),
		Uptime:    uptime,
	}
	if secs := uptime.Seconds(); secs > 0 {
		stats.RatePerSecond = float64(processed) / secs
	}
	if processed > 0 {
		stats.AvgDuration = time.Duration(durationNs / processed)
	}
	return stats
}

func (m *ServiceMetrics) Reset() {
	atomic.StoreInt64(&m.totalProcessed, 0)
	atomic.StoreInt64(&m.totalFailed, 0)
	atomic.StoreInt64(&m.totalDurationNs, 0)
	atomic.StoreInt64(&m.lastResetNs, time.Now().UnixNano())
}
