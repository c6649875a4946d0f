package samples

import (
	"context"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tphakala/mixcore/internal/errors"
	"github.com/tphakala/mixcore/internal/logger"
	"github.com/tphakala/mixcore/internal/observability/metrics"
)

const (
	// DefaultCacheTTL is how long an unused sample stays decoded
	DefaultCacheTTL = 10 * time.Minute
	// DefaultCacheSize bounds the number of decoded samples
	DefaultCacheSize = 256

	preloadConcurrency = 4
)

// Bank decodes samples on first use and keeps them in memory. Concurrent
// requests for the same file share one decode.
//
// Evicting a sample only drops the bank's reference; requests already
// playing it keep the buffer alive.
type Bank struct {
	rate    int
	maxSize int

	cache *cache.Cache
	group singleflight.Group

	rec metrics.Recorder
	log logger.Logger
}

// BankOption configures a Bank
type BankOption func(*Bank)

// WithCacheSize caps the number of cached samples
func WithCacheSize(n int) BankOption {
	return func(b *Bank) {
		if n > 0 {
			b.maxSize = n
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r metrics.Recorder) BankOption {
	return func(b *Bank) {
		if r != nil {
			b.rec = r
		}
	}
}

// WithLogger sets the bank logger
func WithLogger(l logger.Logger) BankOption {
	return func(b *Bank) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBank returns a bank producing samples at rate
func NewBank(rate int, opts ...BankOption) *Bank {
	b := &Bank{
		rate:    rate,
		maxSize: DefaultCacheSize,
		cache:   cache.New(DefaultCacheTTL, DefaultCacheTTL/2),
		rec:     metrics.NopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = GetLogger()
	}
	return b
}

// Rate returns the sample rate of every sample the bank produces
func (b *Bank) Rate() int {
	return b.rate
}

// Get returns the decoded sample for path, loading it if necessary
func (b *Bank) Get(path string) (*Sample, error) {
	key := cacheKey(path)
	if v, ok := b.cache.Get(key); ok {
		b.rec.RecordOperation(metrics.OpCacheLookup, metrics.StatusHit)
		s, _ := v.(*Sample)
		// refresh the expiry so eviction favours idle samples
		b.cache.SetDefault(key, s)
		return s, nil
	}
	b.rec.RecordOperation(metrics.OpCacheLookup, metrics.StatusMiss)

	v, err, shared := b.group.Do(key, func() (any, error) {
		// a decode that finished between the lookup above and Do
		if v, ok := b.cache.Get(key); ok {
			return v, nil
		}
		return b.load(key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		b.log.Trace("shared sample decode", logger.String("sample", filepath.Base(key)))
	}
	s, _ := v.(*Sample)
	return s, nil
}

func (b *Bank) load(key string) (*Sample, error) {
	if err := validateRate(b.rate); err != nil {
		return nil, err
	}

	start := time.Now()
	s, err := decode(key)
	elapsed := time.Since(start)

	if err != nil {
		errType := string(errors.CategoryGeneric)
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			errType = string(ee.Category)
		}
		b.rec.RecordOperation(metrics.OpSampleLoad, metrics.StatusError)
		b.rec.RecordError(metrics.OpSampleLoad, errType)
		return nil, err
	}
	b.rec.RecordOperation(metrics.OpSampleLoad, metrics.StatusSuccess)
	b.rec.RecordDuration(metrics.OpSampleLoad, elapsed.Seconds())

	if s.Rate != b.rate {
		resampleStart := time.Now()
		s.resampleTo(b.rate)
		b.rec.RecordOperation(metrics.OpSampleResample, metrics.StatusSuccess)
		b.rec.RecordDuration(metrics.OpSampleResample, time.Since(resampleStart).Seconds())
	}

	b.makeRoom()
	b.cache.SetDefault(key, s)

	b.log.Debug("sample loaded",
		logger.String("sample", s.Name),
		logger.Int("source_rate", s.SourceRate),
		logger.Int("source_channels", s.SourceChannels),
		logger.Int("frames", s.Frames()),
		logger.Duration("decode_time", elapsed))
	return s, nil
}

// makeRoom evicts the entry closest to expiry once the bank is full. Hits
// push expiry out, so this approximates least recently used.
func (b *Bank) makeRoom() {
	if b.cache.ItemCount() < b.maxSize {
		return
	}
	b.cache.DeleteExpired()

	var oldestKey string
	var oldest int64
	for k, item := range b.cache.Items() {
		if oldestKey == "" || item.Expiration < oldest {
			oldestKey, oldest = k, item.Expiration
		}
	}
	if oldestKey != "" && b.cache.ItemCount() >= b.maxSize {
		b.cache.Delete(oldestKey)
	}
}

// Preload decodes paths concurrently. It stops at the first failure.
func (b *Bank) Preload(ctx context.Context, paths ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadConcurrency)

	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := b.Get(p)
			return err
		})
	}
	return g.Wait()
}

// Put stores an already decoded sample so that Get(name) returns it
func (b *Bank) Put(name string, s *Sample) {
	b.makeRoom()
	b.cache.SetDefault(cacheKey(name), s)
}

func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// Len returns the number of cached samples
func (b *Bank) Len() int {
	return b.cache.ItemCount()
}

// Flush drops every cached sample
func (b *Bank) Flush() {
	b.cache.Flush()
}
