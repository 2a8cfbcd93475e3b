package intelligence

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// ReportCache holds generated reports keyed by period length, plus the last
// good report of each period used as a fallback when generation fails.
type ReportCache struct {
	cache *ristretto.Cache
	ttl   time.Duration

	mu       sync.RWMutex
	lastGood map[int]*Report
}

// NewReportCache creates a cache whose entries expire after ttl.
func NewReportCache(ttl time.Duration) (*ReportCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000, // keys to track frequency of
		MaxCost:     10000,
		BufferItems: 64, // keys per Get buffer
	})
	if err != nil {
		return nil, fmt.Errorf("init report cache: %w", err)
	}
	return &ReportCache{cache: c, ttl: ttl, lastGood: make(map[int]*Report)}, nil
}

func cacheKey(days int) string {
	return fmt.Sprintf("report:%d", days)
}

// Get returns a copy of the cached report for a period length.
func (c *ReportCache) Get(days int) (*Report, bool) {
	v, ok := c.cache.Get(cacheKey(days))
	if !ok {
		return nil, false
	}
	r, ok := v.(*Report)
	if !ok {
		return nil, false
	}
	return r.clone(), true
}

// Set stores a report and remembers it as the last good one.
func (c *ReportCache) Set(r *Report) {
	stored := r.clone()
	c.cache.SetWithTTL(cacheKey(r.PeriodDays), stored, 1, c.ttl)
	c.cache.Wait()

	c.mu.Lock()
	c.lastGood[r.PeriodDays] = stored
	c.mu.Unlock()
}

// LastGood returns a copy of the most recent successful report for a period length.
func (c *ReportCache) LastGood(days int) (*Report, bool) {
	c.mu.RLock()
	r, ok := c.lastGood[days]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.clone(), true
}

// Invalidate drops every cached report. Last good reports are kept as fallback.
func (c *ReportCache) Invalidate() {
	c.cache.Clear()
}

// Close releases the cache's background goroutines.
func (c *ReportCache) Close() {
	c.cache.Close()
}
