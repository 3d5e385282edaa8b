package roomsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Poller errors.
var (
	ErrPollerAlreadyRunning = errors.New("poller already running")
	ErrPollerNotRunning     = errors.New("poller not running")
)

// Poller calls tick on a fixed interval until stopped. The first tick
// happens one interval after Start.
type Poller struct {
	interval time.Duration
	tick     func(ctx context.Context)
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPoller creates a poller.
func NewPoller(interval time.Duration, logger zerolog.Logger, tick func(ctx context.Context)) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		interval: interval,
		tick:     tick,
		logger:   logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPollerAlreadyRunning
	}

	var loopCtx context.Context
	loopCtx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.logger.Debug().Dur("interval", p.interval).Msg("poll fallback starting")

	p.wg.Add(1)
	go p.runLoop(loopCtx)
	return nil
}

// Stop halts the loop without waiting for an in-flight tick.
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrPollerNotRunning
	}
	p.cancel()
	p.running = false
	p.logger.Debug().Msg("poll fallback stopped")
	return nil
}

// Wait blocks until the loop goroutine has exited.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// IsRunning returns true if the poller is running.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) runLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}
