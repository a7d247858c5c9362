package cache

import (
	"sync"

	"brokerboard/models"
)

// TokenCache stores token metadata keyed by chain:address, with a secondary
// index from broker id to key.
type TokenCache struct {
	mu       sync.RWMutex
	tokens   map[string]models.TokenInfo
	byBroker map[string]string
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens:   make(map[string]models.TokenInfo),
		byBroker: make(map[string]string),
	}
}

// Upsert overwrites the entry for info.Key(). If the broker previously pointed
// at another key, that entry is evicted.
func (c *TokenCache) Upsert(info models.TokenInfo) {
	key := info.Key()

	c.mu.Lock()
	defer c.mu.Unlock()
	if info.BrokerID != "" {
		if old, ok := c.byBroker[info.BrokerID]; ok && old != key {
			c.evictLocked(old)
		}
	}
	if prev, ok := c.tokens[key]; ok && prev.BrokerID != info.BrokerID && c.byBroker[prev.BrokerID] == key {
		delete(c.byBroker, prev.BrokerID)
	}
	c.tokens[key] = info
	if info.BrokerID != "" {
		c.byBroker[info.BrokerID] = key
	}
}

func (c *TokenCache) Get(key string) (models.TokenInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tokens[key]
	return t, ok
}

// ForBroker returns the token cached for brokerID.
func (c *TokenCache) ForBroker(brokerID string) (models.TokenInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.byBroker[brokerID]
	if !ok {
		return models.TokenInfo{}, false
	}
	t, ok := c.tokens[key]
	return t, ok
}

// InvalidateBroker removes brokerID's token entry and reports whether one existed.
func (c *TokenCache) InvalidateBroker(brokerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.byBroker[brokerID]
	if !ok {
		return false
	}
	c.evictLocked(key)
	return true
}

func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}

func (c *TokenCache) evictLocked(key string) {
	if t, ok := c.tokens[key]; ok && c.byBroker[t.BrokerID] == key {
		delete(c.byBroker, t.BrokerID)
	}
	delete(c.tokens, key)
}
