package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Refresher keeps the value cache warm while connected by refetching
// the code each time the TTL lapses. The code is time-sensitive; with a
// Refresher running, observers see a fresh value as each window rolls
// over instead of on the next explicit GetValue call.
type Refresher struct {
	session  *Session
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher creates a Refresher. A non-positive interval uses the
// session's cache TTL.
func NewRefresher(sess *Session, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = sess.config.CacheTTL
	}
	return &Refresher{
		session:  sess,
		interval: interval,
		logger:   sess.logger,
	}
}

// Start launches the refresh loop. No-op when already running.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.done)
}

// Stop halts the refresh loop and waits for it to exit. No-op when not
// running.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Refresher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Only refresh an existing session; never auto-connect
			// from the background.
			if !r.session.lifecycle.IsConnected() {
				continue
			}
			if _, err := r.session.GetValue(ctx); err != nil {
				r.logger.Warn("background refresh failed", "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
