// ABOUTME: Shared test helpers for ledger tests.
// ABOUTME: Builds a Ledger over in-memory badger with a controllable clock.
package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harperreed/deficit/internal/cache"
	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/storage"
)

const testToday = "2024-11-01"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ledger *Ledger
	store  storage.Store
	cache  *cache.Cache
	clock  *testClock
}

func identityThumbnail(image string) (string, error) {
	return "thumb:" + image, nil
}

func setupLedger(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	store, err := storage.OpenBadgerInMemory()
	require.NoError(t, err, "Failed to open store")
	t.Cleanup(func() { store.Close() })

	clock := &testClock{now: time.Date(2024, 11, 1, 12, 0, 0, 0, time.Local)}
	c := cache.New(cache.DefaultTTL, cache.WithClock(clock.Now))

	all := append([]Option{WithClock(clock.Now), WithThumbnailer(identityThumbnail)}, opts...)
	return &fixture{
		ledger: New(store, c, all...),
		store:  store,
		cache:  c,
		clock:  clock,
	}
}

// slowStore widens the window between a record read and its delete or write.
type slowStore struct {
	storage.Store
	delay time.Duration
}

func (s slowStore) Delete(key string) error {
	time.Sleep(s.delay)
	return s.Store.Delete(key)
}

func (s slowStore) Set(key string, value []byte) error {
	if storage.IsFoodKey(key) {
		time.Sleep(s.delay)
	}
	return s.Store.Set(key, value)
}

// setupSlowStore is setupWithProfile over a store whose record writes and deletes lag.
func setupSlowStore(t *testing.T, delay time.Duration) *fixture {
	t.Helper()
	f := setupLedger(t)
	slow := slowStore{Store: f.store, delay: delay}
	f.ledger = New(slow, f.cache, WithClock(f.clock.Now), WithThumbnailer(identityThumbnail))
	f.store = slow
	_, err := f.ledger.Settings.SaveProfile(maleProfile(), ProfileOptions{})
	require.NoError(t, err)
	return f
}

func maleProfile() models.Profile {
	return models.Profile{Gender: models.GenderMale, Age: 30, Height: 175, Weight: 70}
}

// setupWithProfile saves the default male profile (formula BMR 1649).
func setupWithProfile(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := setupLedger(t, opts...)
	_, err := f.ledger.Settings.SaveProfile(maleProfile(), ProfileOptions{})
	require.NoError(t, err)
	return f
}

func meal(items ...models.FoodItem) models.AnalysisResult {
	return models.AnalysisResult{Foods: items}
}

func item(name string, kcal, p, c, fat float64) models.FoodItem {
	return models.FoodItem{Name: name, Calories: kcal, Macros: models.Macros{Protein: p, Carbs: c, Fat: fat}}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
func strPtr(v string) *string {
	return &v
}

// fakeAnalyzer returns a canned result, optionally blocking until ctx ends.
type fakeAnalyzer struct {
	result *models.AnalysisResult
	err    error
	block  bool
	calls  int
	gotCfg models.AIConfig
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, cfg models.AIConfig, image string) (*models.AnalysisResult, error) {
	a.calls++
	a.gotCfg = cfg
	if a.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return a.result, a.err
}
