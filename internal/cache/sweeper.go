// ABOUTME: Periodic eviction of expired cache entries on a cron schedule.
// ABOUTME: Runs independently of request traffic so idle dates do not accumulate.
package cache

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harperreed/deficit/internal/logger"
)

// DefaultSweepInterval matches the cleanup cadence of the dashboard poller.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper runs Cache.Cleanup on a fixed interval.
type Sweeper struct {
	cache    *Cache
	cron     *cron.Cron
	interval time.Duration
	log      *logger.Logger
}

// NewSweeper schedules cleanup of c every interval. A non-positive interval
// selects DefaultSweepInterval.
func NewSweeper(c *Cache, interval time.Duration, log *logger.Logger) (*Sweeper, error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Sweeper{
		cache:    c,
		interval: interval,
		log:      log,
		cron:     cron.New(cron.WithLogger(cronLogger{log})),
	}

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), s.sweep); err != nil {
		return nil, fmt.Errorf("schedule cache sweep: %w", err)
	}
	return s, nil
}

func (s *Sweeper) sweep() {
	if n := s.cache.Cleanup(); n > 0 {
		s.log.Debug().Int("evicted", n).Msg("cache sweep")
	}
}

// Start begins the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.log.Debug().Dur("interval", s.interval).Msg("cache sweeper started")
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger adapts the zerolog wrapper to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
