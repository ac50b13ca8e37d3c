package gamesync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"align-five/internal/dataservice"
	"align-five/internal/game"
)

const (
	reconnectBase     = time.Second
	reconnectCap      = 30 * time.Second
	maxReconnectTries = 8
)

// Manager keeps one live change subscription per game: move insertions and
// game-row updates, translated into projector calls. A dead channel is never
// resumed; the manager unsubscribes fully and subscribes fresh, backing off
// exponentially. The polling fallback runs in parallel unconditionally since
// push delivery confirmation is advisory at best.
type Manager struct {
	rt   dataservice.Realtime
	src  MovesSource
	proj *game.Projector

	mu               sync.Mutex
	gameID           string
	channels         []dataservice.Channel
	poller           *Poller
	attempts         int
	reconnectPending bool
	reconnectTimer   *time.Timer
	bo               *backoff.ExponentialBackOff
	closed           bool

	pollInterval time.Duration
}

func NewManager(rt dataservice.Realtime, src MovesSource, proj *game.Projector) *Manager {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = reconnectBase
	bo.Multiplier = 2
	bo.MaxInterval = reconnectCap
	bo.MaxElapsedTime = 0
	bo.Reset()
	return &Manager{rt: rt, src: src, proj: proj, bo: bo}
}

// SetPollInterval adjusts the fallback poller cadence before Subscribe.
func (m *Manager) SetPollInterval(d time.Duration) { m.pollInterval = d }

// Subscribe opens the channels and the fallback poller for gameID. Any
// subscription owned for a previous game is released first.
func (m *Manager) Subscribe(ctx context.Context, gameID string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.releaseLocked()
	m.gameID = gameID
	m.poller = NewPoller(m.src, m.proj, gameID)
	if m.pollInterval > 0 {
		m.poller.SetInterval(m.pollInterval)
	}
	m.poller.Start(ctx)
	m.mu.Unlock()

	if err := m.openChannels(ctx); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("realtime subscribe failed, relying on poll")
		m.scheduleReconnect(ctx)
		return err
	}
	return nil
}

func (m *Manager) openChannels(ctx context.Context) error {
	m.mu.Lock()
	gameID := m.gameID
	m.mu.Unlock()

	movesCh, err := m.rt.Subscribe(ctx, "moves", "game_id", gameID)
	if err != nil {
		return err
	}
	gamesCh, err := m.rt.Subscribe(ctx, "games", "id", gameID)
	if err != nil {
		_ = movesCh.Close()
		return err
	}

	m.mu.Lock()
	if m.closed || m.gameID != gameID {
		m.mu.Unlock()
		_ = movesCh.Close()
		_ = gamesCh.Close()
		return nil
	}
	m.channels = []dataservice.Channel{movesCh, gamesCh}
	m.mu.Unlock()

	go m.watch(ctx, movesCh, m.handleMoveEvent)
	go m.watch(ctx, gamesCh, m.handleGameEvent)
	return nil
}

func (m *Manager) watch(ctx context.Context, ch dataservice.Channel, handle func(dataservice.ChangeEvent)) {
	events := ch.Events()
	status := ch.Status()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			handle(ev)
		case s, ok := <-status:
			if !ok {
				return
			}
			switch s {
			case dataservice.StatusSubscribed:
				m.resetBackoff()
			case dataservice.StatusClosed, dataservice.StatusError:
				if m.owns(ch) {
					m.scheduleReconnect(ctx)
				}
				return
			}
		}
	}
}

func (m *Manager) owns(ch dataservice.Channel) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.channels {
		if c == ch {
			return true
		}
	}
	return false
}

func (m *Manager) handleMoveEvent(ev dataservice.ChangeEvent) {
	if ev.Type != dataservice.EventInsert {
		return
	}
	var mv dataservice.Move
	if err := json.Unmarshal(ev.Row, &mv); err != nil {
		log.Debug().Err(err).Msg("bad move event payload")
		return
	}
	if m.proj.ApplyMove(mv) {
		metricEventsApplied.Add(1)
	}
}

func (m *Manager) handleGameEvent(ev dataservice.ChangeEvent) {
	if ev.Type != dataservice.EventUpdate {
		return
	}
	var g dataservice.Game
	if err := json.Unmarshal(ev.Row, &g); err != nil {
		log.Debug().Err(err).Msg("bad game event payload")
		return
	}
	m.proj.AdoptGameRow(g)
	metricEventsApplied.Add(1)
}

func (m *Manager) resetBackoff() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = 0
	m.bo.Reset()
}

func (m *Manager) scheduleReconnect(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.reconnectPending {
		return
	}
	m.attempts++
	if m.attempts > maxReconnectTries {
		// Give up on push; the poller keeps the session eventually consistent.
		metricReconnectGiveups.Add(1)
		log.Warn().Str("game_id", m.gameID).Msg("realtime reconnect attempts exhausted")
		return
	}
	m.reconnectPending = true
	delay := m.bo.NextBackOff()
	metricReconnects.Add(1)
	log.Info().Dur("delay", delay).Int("attempt", m.attempts).Str("game_id", m.gameID).Msg("scheduling realtime reconnect")
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.reconnectPending = false
		closed := m.closed
		chs := m.channels
		m.channels = nil
		m.mu.Unlock()
		if closed {
			return
		}
		for _, ch := range chs {
			_ = ch.Close()
		}
		if err := m.openChannels(ctx); err != nil {
			m.scheduleReconnect(ctx)
		}
	})
}

// Unsubscribe tears down channels, poller and any pending reconnect,
// tolerating individual teardown failures. Idempotent.
func (m *Manager) Unsubscribe() {
	m.mu.Lock()
	m.closed = true
	chs := m.channels
	m.channels = nil
	poller := m.poller
	m.poller = nil
	timer := m.reconnectTimer
	m.reconnectTimer = nil
	m.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	for _, ch := range chs {
		if err := ch.Close(); err != nil {
			log.Debug().Err(err).Msg("channel close failed")
		}
	}
	if poller != nil {
		poller.Stop()
	}
}

func (m *Manager) releaseLocked() {
	chs := m.channels
	m.channels = nil
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.reconnectPending = false
	for _, ch := range chs {
		_ = ch.Close()
	}
	if m.poller != nil {
		m.poller.Stop()
		m.poller = nil
	}
}
