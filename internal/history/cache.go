package history

import (
	"container/list"
	"sync"
	"time"

	"ta-signal-bot/internal/market"
)

// windowCache is an LRU cache of candle windows with per-entry expiry.
// Entries expire after half the timeframe period so a cached window is
// never more than one candle stale.
type windowCache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	entries map[string]*list.Element

	now func() time.Time
}

type cacheItem struct {
	key       string
	window    *market.Window
	expiresAt time.Time
}

func newWindowCache(maxSize int) *windowCache {
	return &windowCache{
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*list.Element),
		now:     time.Now,
	}
}

func cacheKey(symbol string, tf market.Timeframe) string {
	return symbol + ":" + string(tf)
}

func (c *windowCache) get(symbol string, tf market.Timeframe) (*market.Window, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[cacheKey(symbol, tf)]
	if !ok {
		return nil, false
	}
	item := el.Value.(*cacheItem)
	if c.now().After(item.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, item.key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return item.window, true
}

func (c *windowCache) put(symbol string, tf market.Timeframe, w *market.Window, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(symbol, tf)
	if el, ok := c.entries[key]; ok {
		item := el.Value.(*cacheItem)
		item.window = w
		item.expiresAt = c.now().Add(ttl)
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheItem{key: key, window: w, expiresAt: c.now().Add(ttl)})
	c.entries[key] = el

	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheItem).key)
	}
}

func (c *windowCache) invalidate(symbol string, tf market.Timeframe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[cacheKey(symbol, tf)]; ok {
		c.order.Remove(el)
		delete(c.entries, cacheKey(symbol, tf))
	}
}

func (c *windowCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
