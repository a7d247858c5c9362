package cache

import (
	"sync"

	"brokerboard/models"
)

// StatsCache holds the latest snapshot of daily stats per broker. A snapshot
// is replaced as a whole and never mutated after Replace.
type StatsCache struct {
	mu        sync.RWMutex
	snapshots map[string][]models.DailyStat
}

func NewStatsCache() *StatsCache {
	return &StatsCache{snapshots: make(map[string][]models.DailyStat)}
}

// Replace stores a copy of stats as brokerID's snapshot.
func (c *StatsCache) Replace(brokerID string, stats []models.DailyStat) {
	snapshot := make([]models.DailyStat, len(stats))
	copy(snapshot, stats)

	c.mu.Lock()
	c.snapshots[brokerID] = snapshot
	c.mu.Unlock()
}

// Get returns the current snapshot. Callers must not modify it.
func (c *StatsCache) Get(brokerID string) ([]models.DailyStat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.snapshots[brokerID]
	return s, ok
}

// Len counts brokers with at least one cached record.
func (c *StatsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, s := range c.snapshots {
		if len(s) > 0 {
			n++
		}
	}
	return n
}

func (c *StatsCache) BrokerIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.snapshots))
	for id := range c.snapshots {
		ids = append(ids, id)
	}
	return ids
}
