// ABOUTME: In-memory TTL cache fronting the store for daily summaries and settings.
// ABOUTME: Values are copied in and out; entries expire by age or by a date tag mismatch.
package cache

import (
	"sync"
	"time"

	"github.com/harperreed/deficit/internal/metrics"
	"github.com/harperreed/deficit/internal/models"
)

// DefaultTTL is how long an entry stays fresh after it was written.
const DefaultTTL = 5 * time.Minute

type dashboardEntry struct {
	data    models.DailySummary
	written time.Time
}

type settingsEntry struct {
	data    models.UserSettings
	written time.Time
}

// Cache holds non-authoritative copies of the two hottest aggregates.
// It is safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	dashboard map[string]dashboardEntry
	settings  *settingsEntry
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty cache. A non-positive ttl selects DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:       ttl,
		now:       time.Now,
		dashboard: make(map[string]dashboardEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) expired(written time.Time, now time.Time) bool {
	return now.Sub(written) > c.ttl
}

// GetDashboard returns the cached summary for date if it is fresh and tagged
// with the same date. Stale entries are dropped on the way out.
func (c *Cache) GetDashboard(date string) (models.DailySummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.dashboard[date]
	if !ok {
		metrics.CacheMiss("dashboard")
		return models.DailySummary{}, false
	}
	if c.expired(e.written, c.now()) || e.data.Date != date {
		delete(c.dashboard, date)
		metrics.CacheMiss("dashboard")
		return models.DailySummary{}, false
	}

	metrics.CacheHit("dashboard")
	return e.data, true
}

// SetDashboard overwrites the entry for date.
func (c *Cache) SetDashboard(date string, s models.DailySummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dashboard[date] = dashboardEntry{data: s, written: c.now()}
}

func (c *Cache) InvalidateDashboard(date string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.dashboard, date)
}

func (c *Cache) InvalidateAllDashboards() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.dashboard)
}

// GetSettings returns the cached settings if fresh.
func (c *Cache) GetSettings() (models.UserSettings, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.settings == nil {
		metrics.CacheMiss("settings")
		return models.UserSettings{}, false
	}
	if c.expired(c.settings.written, c.now()) {
		c.settings = nil
		metrics.CacheMiss("settings")
		return models.UserSettings{}, false
	}

	metrics.CacheHit("settings")
	return c.settings.data, true
}

func (c *Cache) SetSettings(s models.UserSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings = &settingsEntry{data: s, written: c.now()}
}

func (c *Cache) InvalidateSettings() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings = nil
}

// Clear drops everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.dashboard)
	c.settings = nil
}

// Cleanup evicts expired or mistagged entries and returns how many were removed.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for date, e := range c.dashboard {
		if c.expired(e.written, now) || e.data.Date != date {
			delete(c.dashboard, date)
			removed++
		}
	}
	if c.settings != nil && c.expired(c.settings.written, now) {
		c.settings = nil
		removed++
	}

	metrics.CacheEvicted(removed)
	return removed
}

// Len reports the number of live entries, counting settings as one.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.dashboard)
	if c.settings != nil {
		n++
	}
	return n
}
