// Package sync implements the interval polling that keeps long-lived
// clients and background consumers refreshed without a push channel.
package sync

import (
	"context"
	"log/slog"
	"time"
)

// Poller invokes a fetch function on a fixed interval. Fetch errors are
// logged and dropped; the next tick retries with whatever state the
// source has then. One Poller drives one subscription.
type Poller struct {
	name     string
	interval time.Duration
	fetch    func(context.Context) error
}

// New builds a poller. The interval must be positive.
func New(name string, interval time.Duration, fetch func(context.Context) error) *Poller {
	return &Poller{name: name, interval: interval, fetch: fetch}
}

// Run fetches once immediately, then on every tick until the context is
// canceled. It always returns the context's error.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.fetch(ctx); err != nil {
		slog.Debug("poll failed", "poller", p.name, "error", err)
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.fetch(ctx); err != nil {
				slog.Debug("poll failed", "poller", p.name, "error", err)
			}
		}
	}
}
