package mission

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often an active view re-fetches
const DefaultPollInterval = 10 * time.Second

// Poller re-runs a refresh function on a fixed interval while a view is
// active. It distinguishes the first load (no data yet, view blocked) from
// later refreshes (data stays on screen; a failed poll never blanks it),
// and stops cleanly on teardown: a poll resolving after Stop is a no-op.
type Poller struct {
	interval time.Duration
	refresh  func(ctx context.Context) error
	log      zerolog.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	loaded     bool
	refreshing bool
	lastErr    error
}

// NewPoller creates a poller around a refresh function. The function must
// read its parameters at call time, never from values captured when the
// poller was built.
func NewPoller(interval time.Duration, refresh func(ctx context.Context) error, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		interval: interval,
		refresh:  refresh,
		log:      log.With().Str("component", "poller").Logger(),
	}
}

// Start begins polling: one immediate refresh, then one per interval.
// Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	p.fire(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fire(ctx)
		}
	}
}

func (p *Poller) fire(ctx context.Context) {
	p.mu.Lock()
	p.refreshing = true
	p.mu.Unlock()

	err := p.refresh(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshing = false

	if ctx.Err() != nil {
		// Resolved after teardown; leave state untouched.
		return
	}
	p.lastErr = err
	if err == nil {
		p.loaded = true
	} else {
		p.log.Warn().Err(err).Msg("poll failed, keeping last data")
	}
}

// Stop tears the poller down and waits for any in-flight refresh to settle
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Loading reports whether the view has no data yet (blocking spinner)
func (p *Poller) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.loaded
}

// Refreshing reports whether a background re-fetch is in flight while data
// is already rendered.
func (p *Poller) Refreshing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded && p.refreshing
}

// LastErr returns the most recent refresh error, nil after a success
func (p *Poller) LastErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
