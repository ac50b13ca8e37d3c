package game

import (
	"context"

	"github.com/rs/zerolog/log"

	"align-five/internal/dataservice"
	"align-five/internal/view"
)

// RemoteAuthority is the server-side validation surface a remote session
// submits through. A nil authority means local/offline mode.
type RemoteAuthority interface {
	SubmitMove(ctx context.Context, gameID string, position, row, col int, player string) (dataservice.MoveResult, error)
	LatestMove(ctx context.Context, gameID string) (dataservice.Move, bool, error)
}

// MoveCoordinator submits the local player's moves: optimistic board
// mutation first, server validation second, exact rollback on rejection.
type MoveCoordinator struct {
	s           *Session
	proj        *Projector
	remote      RemoteAuthority
	localPlayer Mark
	notify      view.Notifier

	pending bool // guarded by s.mu; sole local-submission mutex

	onGameEnd func(winner Mark)
	refresh   func(ctx context.Context) error
}

func NewMoveCoordinator(proj *Projector, remote RemoteAuthority, localPlayer Mark, notify view.Notifier) *MoveCoordinator {
	return &MoveCoordinator{
		s:           proj.Session(),
		proj:        proj,
		remote:      remote,
		localPlayer: localPlayer,
		notify:      notify,
	}
}

// SetGameEndHandler installs the end-of-round hook.
func (mc *MoveCoordinator) SetGameEndHandler(fn func(winner Mark)) { mc.onGameEnd = fn }

// SetRefresh installs the full authoritative refresh used when the server
// signals the game has concluded.
func (mc *MoveCoordinator) SetRefresh(fn func(ctx context.Context) error) { mc.refresh = fn }

// PlaceMove plays at (row, col). Returns true when the move was accepted and
// applied, false on any rejection or no-op. Guards run in order: in-flight
// submission, occupied cell, turn ownership.
func (mc *MoveCoordinator) PlaceMove(ctx context.Context, row, col int, player Mark) bool {
	if !InBounds(row, col) || player == Empty {
		return false
	}

	mc.s.mu.Lock()
	st := &mc.s.state
	if mc.pending {
		mc.s.mu.Unlock()
		return false
	}
	if st.Board.At(row, col) != Empty {
		mc.s.mu.Unlock()
		return false
	}
	if mc.remote != nil && st.Turn != player {
		mc.s.mu.Unlock()
		mc.notifyf(view.LevelWarn, "not your turn")
		return false
	}

	// Optimistic apply; move_index stays put until the server assigns one.
	prevTurn, prevCount, prevIndex := st.Turn, st.MoveCount, st.MoveIndex
	st.Board.Set(row, col, player)
	st.MoveCount++
	st.Turn = player.Other()
	mc.s.renderLocked()

	if mc.remote == nil {
		winner := st.Board.WinnerAt(row, col)
		draw := winner == Empty && st.Board.IsFull()
		if winner != Empty || draw {
			st.Winner = winner
			st.Status = dataservice.GameStatusFinished
		}
		mc.s.mu.Unlock()
		metricMovesAccepted.Add(1)
		if winner != Empty || draw {
			mc.finish(winner)
		}
		return true
	}

	gameID := st.GameID
	mc.pending = true
	mc.s.mu.Unlock()

	res, err := mc.remote.SubmitMove(ctx, gameID, Index(row, col), row, col, player.String())
	if err != nil || !res.Accepted {
		mc.s.mu.Lock()
		st.Board.Set(row, col, Empty)
		if st.MoveIndex > prevIndex {
			// A remote move landed while this one was in flight; keep its
			// turn and index and only drop the optimistic count bump.
			st.MoveCount--
		} else {
			st.Turn = prevTurn
			st.MoveCount = prevCount
			st.MoveIndex = prevIndex
		}
		mc.pending = false
		mc.s.renderLocked()
		mc.s.mu.Unlock()
		metricMovesRejected.Add(1)
		metricRollbacks.Add(1)
		reason := res.Reason
		if err != nil {
			reason = err.Error()
		}
		if reason == "" {
			reason = "move rejected"
		}
		mc.notifyf(view.LevelWarn, "move rejected: "+reason)
		return false
	}

	mc.s.mu.Lock()
	if res.MoveIndex > st.MoveIndex {
		st.MoveIndex = res.MoveIndex
	}
	mc.pending = false
	mc.s.mu.Unlock()
	metricMovesAccepted.Add(1)

	switch {
	case res.GameOver:
		if mc.refresh != nil {
			if err := mc.refresh(ctx); err != nil {
				log.Warn().Err(err).Str("game_id", gameID).Msg("post-game refresh failed")
			}
		}
		mc.finish(ParseMark(res.Winner))
	case len(res.Board) == CellCount:
		mc.proj.AdoptGameRow(dataservice.Game{ID: gameID, Board: res.Board})
	default:
		// The realtime channel can miss the very event this call caused;
		// fetch the latest move once and run it through reconciliation.
		if mv, found, err := mc.remote.LatestMove(ctx, gameID); err == nil && found {
			mc.proj.ApplyMove(mv)
		}
	}
	return true
}

func (mc *MoveCoordinator) finish(winner Mark) {
	if mc.onGameEnd != nil {
		mc.onGameEnd(winner)
	}
}

func (mc *MoveCoordinator) notifyf(level view.Level, msg string) {
	if mc.notify != nil {
		mc.notify.Notify(level, msg)
	}
}
