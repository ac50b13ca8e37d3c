package gamesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"align-five/internal/dataservice"
	"align-five/internal/game"
)

type fakeMoves struct {
	mu    sync.Mutex
	moves []dataservice.Move
	err   error
	calls int
}

func (f *fakeMoves) MovesForGame(_ context.Context, gameID string) ([]dataservice.Move, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]dataservice.Move, len(f.moves))
	copy(out, f.moves)
	return out, nil
}

func (f *fakeMoves) set(moves []dataservice.Move) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = moves
}

func mv(idx, row, col int, player string) dataservice.Move {
	return dataservice.Move{GameID: "g1", Row: row, Col: col, Position: game.Index(row, col), Player: player, MoveIndex: idx}
}

func TestPollerAppliesForwardOnly(t *testing.T) {
	s := game.NewSession("g1", nil)
	proj := game.NewProjector(s)
	src := &fakeMoves{}
	p := NewPoller(src, proj, "g1")

	src.set([]dataservice.Move{mv(2, 1, 1, "opponent"), mv(1, 0, 0, "owner")})
	p.tick(context.Background())

	st := s.Snapshot()
	if st.MoveIndex != 2 {
		t.Fatalf("MoveIndex = %d, want 2", st.MoveIndex)
	}
	if st.Board.At(0, 0) != game.OwnerMark || st.Board.At(1, 1) != game.OpponentMark {
		t.Fatal("both moves must be applied")
	}
	if st.Turn != game.OwnerMark {
		t.Fatalf("Turn = %v, want owner inferred from last move", st.Turn)
	}

	// A later batch missing the newest move must not regress the index.
	p.mu.Lock()
	p.lastTick = time.Time{}
	p.mu.Unlock()
	src.set([]dataservice.Move{mv(1, 0, 0, "owner")})
	p.tick(context.Background())
	if got := s.Snapshot().MoveIndex; got != 2 {
		t.Fatalf("MoveIndex regressed to %d", got)
	}
}

func TestPollerThrottle(t *testing.T) {
	s := game.NewSession("g1", nil)
	proj := game.NewProjector(s)
	src := &fakeMoves{}
	p := NewPoller(src, proj, "g1")

	p.tick(context.Background())
	p.tick(context.Background()) // within the 1s gap, must be dropped

	src.mu.Lock()
	calls := src.calls
	src.mu.Unlock()
	if calls != 1 {
		t.Fatalf("fetch calls = %d, want 1 (throttled)", calls)
	}
}

func TestPollerFetchErrorIsSwallowed(t *testing.T) {
	s := game.NewSession("g1", nil)
	proj := game.NewProjector(s)
	src := &fakeMoves{err: errors.New("backend down")}
	p := NewPoller(src, proj, "g1")

	p.tick(context.Background()) // must not panic or mutate state
	if s.Snapshot().MoveIndex != 0 {
		t.Fatal("failed poll must leave state untouched")
	}
}

func TestPollerStopIdempotent(t *testing.T) {
	s := game.NewSession("g1", nil)
	p := NewPoller(&fakeMoves{}, game.NewProjector(s), "g1")
	p.Start(context.Background())
	p.Stop()
	p.Stop() // second stop must not panic
}
