// Package app wires a game session together: resolve the entry point into a
// game id, project the authoritative state, then hand the session to the move
// coordinator and the sync manager.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"align-five/internal/dataservice"
	"align-five/internal/game"
	"align-five/internal/gamesync"
	"align-five/internal/view"
)

var ErrGameNotFound = errors.New("game not found")

const (
	entryResolveAttempts = 8
	entryResolveInterval = 750 * time.Millisecond
)

// Entry is the URL-driven contract: a direct game id, an invitation id to
// resolve client-side, or neither.
type Entry struct {
	GameID       string
	InvitationID string
}

type Controller struct {
	svc       *dataservice.Client
	rt        dataservice.Realtime
	presenter view.Presenter

	resolveAttempts int
	resolveInterval time.Duration
}

func NewController(svc *dataservice.Client, rt dataservice.Realtime, presenter view.Presenter) *Controller {
	return &Controller{
		svc:             svc,
		rt:              rt,
		presenter:       presenter,
		resolveAttempts: entryResolveAttempts,
		resolveInterval: entryResolveInterval,
	}
}

// SetResolveSchedule tightens the invitation-entry polling, for tests.
func (c *Controller) SetResolveSchedule(attempts int, interval time.Duration) {
	c.resolveAttempts = attempts
	c.resolveInterval = interval
}

// GameHandle owns every per-session resource; Close releases them all and is
// idempotent.
type GameHandle struct {
	Session *game.Session
	Moves   *game.MoveCoordinator

	sync      *gamesync.Manager
	closeOnce sync.Once
}

func (h *GameHandle) Close() {
	h.closeOnce.Do(func() {
		if h.sync != nil {
			h.sync.Unsubscribe()
		}
	})
}

// Enter boots a session for the given entry. With neither identifier it
// surfaces a soft "waiting to be connected" notice and returns no handle.
func (c *Controller) Enter(ctx context.Context, entry Entry, renderer game.Renderer) (*GameHandle, error) {
	gameID := entry.GameID
	if gameID == "" && entry.InvitationID != "" {
		resolved, err := c.resolveEntryInvitation(ctx, entry.InvitationID)
		if err != nil {
			c.presenter.Notify(view.LevelError, "could not resolve the invitation into a game")
			return nil, err
		}
		gameID = resolved
	}
	if gameID == "" {
		c.presenter.Notify(view.LevelInfo, "waiting to be connected to a game")
		return nil, nil
	}

	g, found, err := c.svc.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrGameNotFound
	}
	moves, err := c.svc.MovesForGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	session := game.NewSession(gameID, renderer)
	proj := game.NewProjector(session)
	party, series := c.fetchScores(ctx, g.PartyID)
	proj.RefreshFull(g, moves, party, series)

	userID, err := c.svc.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	localPlayer := game.Empty
	switch userID {
	case g.OwnerID:
		localPlayer = game.OwnerMark
	case g.OpponentID:
		localPlayer = game.OpponentMark
	}

	handle := &GameHandle{Session: session}
	if localPlayer != game.Empty {
		mc := game.NewMoveCoordinator(proj, c.svc, localPlayer, c.presenter)
		mc.SetRefresh(func(ctx context.Context) error {
			return c.refresh(ctx, proj, gameID)
		})
		mc.SetGameEndHandler(func(winner game.Mark) {
			switch winner {
			case game.Empty:
				c.presenter.Notify(view.LevelInfo, "round over: draw")
			case localPlayer:
				c.presenter.Notify(view.LevelInfo, "round over: you win")
			default:
				c.presenter.Notify(view.LevelInfo, "round over: opponent wins")
			}
		})
		handle.Moves = mc
	}

	mgr := gamesync.NewManager(c.rt, c.svc, proj)
	if err := mgr.Subscribe(ctx, gameID); err != nil {
		// Poller is already running; push will heal itself or stay degraded.
		log.Warn().Err(err).Str("game_id", gameID).Msg("starting in degraded sync mode")
	}
	handle.sync = mgr
	return handle, nil
}

// resolveEntryInvitation polls the invitation row for its game id, bounded.
func (c *Controller) resolveEntryInvitation(ctx context.Context, invitationID string) (string, error) {
	for attempt := 0; attempt < c.resolveAttempts; attempt++ {
		row, found, err := c.svc.GetInvitation(ctx, invitationID)
		if err == nil && found && row.GameID != "" {
			return row.GameID, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.resolveInterval):
		}
	}
	return "", ErrGameNotFound
}

// refresh re-reads game, moves and both score rows and reprojects.
func (c *Controller) refresh(ctx context.Context, proj *game.Projector, gameID string) error {
	g, found, err := c.svc.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if !found {
		return ErrGameNotFound
	}
	moves, err := c.svc.MovesForGame(ctx, gameID)
	if err != nil {
		return err
	}
	party, series := c.fetchScores(ctx, g.PartyID)
	proj.RefreshFull(g, moves, party, series)
	return nil
}

// fetchScores reads the party and series counter rows; either may be missing
// without blocking the session (cosmetic data).
func (c *Controller) fetchScores(ctx context.Context, partyID string) (*dataservice.Party, *dataservice.Series) {
	if partyID == "" {
		return nil, nil
	}
	party, found, err := c.svc.GetParty(ctx, partyID)
	if err != nil || !found {
		return nil, nil
	}
	series, foundSeries, err := c.svc.GetSeries(ctx, party.SeriesID)
	if err != nil || !foundSeries {
		return &party, nil
	}
	return &party, &series
}
