// ABOUTME: Ledger wires the settings, daily and food services over one store and cache.
// ABOUTME: Also hosts Capture, the analyze-then-record pipeline used by every front end.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/deficit/internal/cache"
	"github.com/harperreed/deficit/internal/logger"
	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/storage"
	"github.com/harperreed/deficit/internal/thumbnail"
)

var (
	// ErrConfigMissing means no settings record exists yet.
	ErrConfigMissing = errors.New("no profile configured, set up your profile first")
	// ErrNotFound means a record id did not resolve.
	ErrNotFound = errors.New("record not found")
)

// Analyzer turns an image into a validated analysis result.
type Analyzer interface {
	Analyze(ctx context.Context, cfg models.AIConfig, image string) (*models.AnalysisResult, error)
}

// ThumbnailFunc shrinks a full-resolution image to a bounded encoded image.
type ThumbnailFunc func(image string) (string, error)

// env is what every service shares.
type env struct {
	store storage.Store
	cache *cache.Cache
	log   *logger.Logger
	now   func() time.Time
}

func (e env) today() string {
	return models.DateString(e.now())
}

// Ledger is the entry point for all ledger reads and writes.
type Ledger struct {
	Settings *Settings
	Daily    *Daily
	Food     *Food

	env      env
	analyzer Analyzer
}

type options struct {
	log       *logger.Logger
	now       func() time.Time
	analyzer  Analyzer
	thumbnail ThumbnailFunc
}

// Option configures a Ledger.
type Option func(*options)

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock replaces time.Now for "today" and record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithAnalyzer sets the vision backend used by Capture.
func WithAnalyzer(a Analyzer) Option {
	return func(o *options) { o.analyzer = a }
}

func WithThumbnailer(fn ThumbnailFunc) Option {
	return func(o *options) { o.thumbnail = fn }
}

// New assembles the services. A nil cache gets a default one.
func New(store storage.Store, c *cache.Cache, opts ...Option) *Ledger {
	o := options{
		log:       logger.Nop(),
		now:       time.Now,
		thumbnail: thumbnail.Make,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if c == nil {
		c = cache.New(cache.DefaultTTL)
	}

	e := env{store: store, cache: c, log: o.log, now: o.now}

	settings := &Settings{env: e}
	daily := &Daily{env: e, settings: settings, locks: newKeyedMutex()}
	settings.daily = daily
	food := &Food{env: e, daily: daily, thumbnail: o.thumbnail}

	return &Ledger{
		Settings: settings,
		Daily:    daily,
		Food:     food,
		env:      e,
		analyzer: o.analyzer,
	}
}

// Today is the ledger date for the current instant.
func (l *Ledger) Today() string {
	return l.env.today()
}

// Store exposes the backing store for export, import and migration.
func (l *Ledger) Store() storage.Store {
	return l.env.store
}

// Capture analyzes image and books the result on date. Every write happens
// after the analysis completes, so a failed or canceled analysis leaves no trace.
func (l *Ledger) Capture(ctx context.Context, date, image string) (*models.FoodRecord, error) {
	if l.analyzer == nil {
		return nil, errors.New("no analyzer configured")
	}
	if _, err := models.ParseDate(date); err != nil {
		return nil, err
	}

	settings, err := l.Settings.Get()
	if err != nil {
		return nil, err
	}
	if settings.AIConfig.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key set", ErrConfigMissing)
	}

	result, err := l.analyzer.Analyze(ctx, settings.AIConfig, image)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty analysis", models.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return l.Food.AddRecord(date, *result, image)
}

// IsCanceled reports whether err is a cancellation rather than a failure.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
