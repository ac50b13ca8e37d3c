package gamesync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"align-five/internal/dataservice"
	"align-five/internal/game"
)

// MovesSource re-fetches the full move log for a game.
type MovesSource interface {
	MovesForGame(ctx context.Context, gameID string) ([]dataservice.Move, error)
}

const (
	defaultPollInterval = 3 * time.Second
	minPollGap          = time.Second
)

// Poller is the degraded-mode substitute for push notifications. It re-reads
// the move log on an interval and merges it forward-only through the
// projector, so it is safe to run alongside a live channel.
type Poller struct {
	src      MovesSource
	proj     *game.Projector
	gameID   string
	interval time.Duration

	mu       sync.Mutex
	lastTick time.Time
	done     chan struct{}
	stopped  bool
}

func NewPoller(src MovesSource, proj *game.Projector, gameID string) *Poller {
	return &Poller{
		src:      src,
		proj:     proj,
		gameID:   gameID,
		interval: defaultPollInterval,
		done:     make(chan struct{}),
	}
}

// SetInterval overrides the poll interval; ticks are still throttled to at
// most one per second.
func (p *Poller) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

func (p *Poller) Start(ctx context.Context) {
	go p.loop(ctx)
}

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	now := time.Now()
	if !p.lastTick.IsZero() && now.Sub(p.lastTick) < minPollGap {
		p.mu.Unlock()
		metricPollThrottled.Add(1)
		return
	}
	p.lastTick = now
	p.mu.Unlock()

	metricPollTicks.Add(1)
	moves, err := p.src.MovesForGame(ctx, p.gameID)
	if err != nil {
		metricPollErrors.Add(1)
		log.Debug().Err(err).Str("game_id", p.gameID).Msg("poll fetch failed")
		return
	}
	p.proj.ReconcileMoves(moves)
}

// Stop is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.done)
}
