package syncclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrPollInFlight is returned by Trigger when the key is already fetching.
var ErrPollInFlight = errors.New("poll already in flight")

// FetchFunc performs one poll. Errors are logged and drive backoff.
type FetchFunc func(ctx context.Context) error

// PollerConfig tunes every key of a Poller.
type PollerConfig struct {
	// Timeout bounds a single fetch. Defaults to 10s.
	Timeout time.Duration
	// MaxBackoff caps the delay after repeated failures. Defaults to 2m.
	MaxBackoff time.Duration
	Logger     *zap.Logger
}

type pollKey struct {
	name     string
	interval time.Duration
	fetch    FetchFunc
	entry    cron.EntryID
	inFlight atomic.Bool

	mu          sync.Mutex
	failures    int
	nextAllowed time.Time
}

// Poller runs named fetches on constant-delay cron schedules. Each key
// never overlaps with itself, backs off exponentially while failing and
// is skipped entirely while the poller is paused.
type Poller struct {
	cron       *cron.Cron
	timeout    time.Duration
	maxBackoff time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	keys    map[string]*pollKey
	paused  bool
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewPoller constructs an idle poller.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout:    cfg.Timeout,
		maxBackoff: cfg.MaxBackoff,
		logger:     cfg.Logger,
		now:        time.Now,
		keys:       make(map[string]*pollKey),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Add registers key. Adding an existing key replaces its schedule.
func (p *Poller) Add(key string, interval time.Duration, fetch FetchFunc) error {
	if interval <= 0 {
		return fmt.Errorf("poll %s: interval must be positive", key)
	}
	k := &pollKey{name: key, interval: interval, fetch: fetch}

	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.keys[key]; ok {
		p.cron.Remove(old.entry)
	}
	k.entry = p.cron.Schedule(cron.Every(interval), cron.FuncJob(func() { p.tick(k) }))
	p.keys[key] = k
	return nil
}

// Remove unschedules key.
func (p *Poller) Remove(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k, ok := p.keys[key]; ok {
		p.cron.Remove(k.entry)
		delete(p.keys, key)
	}
}

// Start begins scheduling. Start after Stop is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.ctx.Err() != nil {
		return
	}
	p.started = true
	p.cron.Start()
}

// Stop cancels in-flight fetches and waits for running jobs to return.
func (p *Poller) Stop() {
	p.cancel()
	<-p.cron.Stop().Done()
}

// Pause suspends every key, e.g. while the view is hidden.
func (p *Poller) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

// Resume re-enables polling. The next tick of each key fetches.
func (p *Poller) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
}

// Paused reports whether polling is suspended.
func (p *Poller) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Trigger fetches key now, ignoring pause and backoff. It returns
// ErrPollInFlight when a fetch for key is already running.
func (p *Poller) Trigger(ctx context.Context, key string) error {
	p.mu.Lock()
	k, ok := p.keys[key]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("poll %s: unknown key", key)
	}
	return p.run(ctx, k)
}

// Failures returns the consecutive failure count of key.
func (p *Poller) Failures(key string) int {
	p.mu.Lock()
	k, ok := p.keys[key]
	p.mu.Unlock()
	if !ok {
		return 0
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.failures
}

func (p *Poller) tick(k *pollKey) {
	if p.Paused() || p.ctx.Err() != nil {
		return
	}
	k.mu.Lock()
	wait := p.now().Before(k.nextAllowed)
	k.mu.Unlock()
	if wait {
		return
	}
	if err := p.run(p.ctx, k); err != nil && !errors.Is(err, ErrPollInFlight) && !errors.Is(err, context.Canceled) {
		p.logger.Warn("poll failed", zap.String("key", k.name), zap.Error(err), zap.Int("failures", p.Failures(k.name)))
	}
}

func (p *Poller) run(ctx context.Context, k *pollKey) error {
	if !k.inFlight.CompareAndSwap(false, true) {
		return ErrPollInFlight
	}
	defer k.inFlight.Store(false)

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := k.fetch(fetchCtx)

	k.mu.Lock()
	defer k.mu.Unlock()
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return err
		}
		k.failures++
		k.nextAllowed = p.now().Add(Backoff(k.interval, k.failures, p.maxBackoff))
		return err
	}
	k.failures = 0
	k.nextAllowed = time.Time{}
	return nil
}

// Backoff is the delay before the next fetch after failures consecutive
// failures: interval doubled per failure, capped at max.
func Backoff(interval time.Duration, failures int, max time.Duration) time.Duration {
	if failures <= 0 {
		return 0
	}
	delay := interval
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}
