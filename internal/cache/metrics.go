package cache

import "sync/atomic"

// CacheMetrics tracks cache traffic with lock-free counters.
type CacheMetrics struct {
	hits        int64
	misses      int64
	sets        int64
	deletes     int64
	unavailable int64
}

type CacheStats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Deletes     int64 `json:"deletes"`
	Unavailable int64 `json:"unavailable"`
}

func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{}
}

func (m *CacheMetrics) RecordHit()         { atomic.AddInt64(&m.hits, 1) }
func (m *CacheMetrics) RecordMiss()        { atomic.AddInt64(&m.misses, 1) }
func (m *CacheMetrics) RecordSet()         { atomic.AddInt64(&m.sets, 1) }
func (m *CacheMetrics) RecordDelete()      { atomic.AddInt64(&m.deletes, 1) }
func (m *CacheMetrics) RecordUnavailable() { atomic.AddInt64(&m.unavailable, 1) }

func (m *CacheMetrics) GetStats() CacheStats {
	return CacheStats{
		Hits:        atomic.LoadInt64(&m.hits),
		Misses:      atomic.LoadInt64(&m.misses),
		Sets:        atomic.LoadInt64(&m.sets),
		Deletes:     atomic.LoadInt64(&m.deletes),
		Unavailable: atomic.LoadInt64(&m.unavailable),
	}
}

// HitRate returns the hit percentage across reads. A cache that has served
// no reads yet reports 0.
func (m *CacheMetrics) HitRate() float64 {
	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)
	total := hits + misses
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total) * 100.0
}

func (m *CacheMetrics) Reset() {
	atomic.StoreInt64(&m.hits, 0)
	atomic.StoreInt64(&m.misses, 0)
	atomic.StoreInt64(&m.sets, 0)
	atomic.StoreInt64(&m.deletes, 0)
	atomic.StoreInt64(&m.unavailable, 0)
}
