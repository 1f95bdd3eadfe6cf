package server

import (
	"context"
	"log/slog"
	"time"
)

// Reaper removes players whose connections are no longer live. The game
// store implements it.
type Reaper interface {
	ReapOrphans(live func(connID int) bool) int
}

// TimeBroadcast is the body of the periodic server time push. Clients use
// it as a keepalive and a shared clock.
type TimeBroadcast struct {
	Time string `json:"time"`
}

// Broadcaster periodically pushes the server time to every connection and
// runs the orphan reaper on the same tick, so stale players disappear
// within one interval of their socket dying.
type Broadcaster struct {
	manager  *Manager
	reaper   Reaper
	interval time.Duration
	logger   *slog.Logger
}

// NewBroadcaster creates a broadcaster over the given manager. reaper may
// be nil.
func NewBroadcaster(manager *Manager, reaper Reaper, interval time.Duration, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		manager:  manager,
		reaper:   reaper,
		interval: interval,
		logger:   logger.With("component", "broadcaster"),
	}
}

// Run ticks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.tick(now)
		}
	}
}

func (b *Broadcaster) tick(now time.Time) {
	b.manager.Broadcast(TimeBroadcast{Time: now.UTC().Format(time.RFC3339)})
	if b.reaper != nil {
		if removed := b.reaper.ReapOrphans(b.manager.IsLive); removed > 0 {
			b.logger.Info("reaped empty games", "count", removed)
		}
	}
}
