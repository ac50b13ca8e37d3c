package game

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"align-five/internal/dataservice"
	"align-five/internal/view"
)

type fakeAuthority struct {
	result   dataservice.MoveResult
	err      error
	latest   *dataservice.Move
	onSubmit func() // runs while the submission is in flight

	submitted int
	fetched   int
}

func (f *fakeAuthority) SubmitMove(_ context.Context, gameID string, position, row, col int, player string) (dataservice.MoveResult, error) {
	f.submitted++
	if f.onSubmit != nil {
		f.onSubmit()
	}
	return f.result, f.err
}

func (f *fakeAuthority) LatestMove(_ context.Context, gameID string) (dataservice.Move, bool, error) {
	f.fetched++
	if f.latest == nil {
		return dataservice.Move{}, false, nil
	}
	return *f.latest, true, nil
}

type noticeRecorder struct {
	notices []string
}

func (n *noticeRecorder) Notify(_ view.Level, msg string) { n.notices = append(n.notices, msg) }

func TestPlaceMoveOccupiedCell(t *testing.T) {
	s := NewSession("g1", nil)
	p := NewProjector(s)
	mc := NewMoveCoordinator(p, nil, OwnerMark, nil)

	if !mc.PlaceMove(context.Background(), 0, 0, OwnerMark) {
		t.Fatal("first move must succeed")
	}
	if mc.PlaceMove(context.Background(), 0, 0, OpponentMark) {
		t.Fatal("occupied cell must reject")
	}
}

func TestPlaceMoveOutOfTurn(t *testing.T) {
	s := NewSession("g1", nil)
	p := NewProjector(s)
	notices := &noticeRecorder{}
	auth := &fakeAuthority{result: dataservice.MoveResult{Accepted: true, MoveIndex: 1}}
	mc := NewMoveCoordinator(p, auth, OpponentMark, notices)

	// Fresh session: owner's turn, local player is the opponent.
	if mc.PlaceMove(context.Background(), 0, 0, OpponentMark) {
		t.Fatal("out-of-turn move must reject")
	}
	if auth.submitted != 0 {
		t.Fatal("rejected move must not reach the server")
	}
	if len(notices.notices) == 0 {
		t.Fatal("out-of-turn rejection must notify the player")
	}
}

func TestPlaceMoveOptimisticRollbackExact(t *testing.T) {
	s := NewSession("g1", nil)
	p := NewProjector(s)
	notices := &noticeRecorder{}
	auth := &fakeAuthority{result: dataservice.MoveResult{Accepted: false, Reason: "not your turn"}}
	mc := NewMoveCoordinator(p, auth, OwnerMark, notices)

	before := s.Snapshot()
	if mc.PlaceMove(context.Background(), 9, 9, OwnerMark) {
		t.Fatal("server rejection must report false")
	}
	after := s.Snapshot()

	if !reflect.DeepEqual(before.Board, after.Board) {
		t.Fatal("board must be restored exactly")
	}
	if after.Turn != before.Turn || after.MoveCount != before.MoveCount || after.MoveIndex != before.MoveIndex {
		t.Fatalf("turn/counter not restored: before=%+v after=%+v", before, after)
	}
	if len(notices.notices) == 0 {
		t.Fatal("rejection reason must be surfaced")
	}
}

func TestPlaceMoveRollbackKeepsInterleavedRemoteMove(t *testing.T) {
	s := NewSession("g1", nil)
	p := NewProjector(s)
	auth := &fakeAuthority{result: dataservice.MoveResult{Accepted: false, Reason: "not your turn"}}
	// An opponent move arrives over the realtime channel while the local
	// submission is still in flight.
	auth.onSubmit = func() {
		p.ApplyMove(dataservice.Move{GameID: "g1", Row: 1, Col: 1, Player: "opponent", MoveIndex: 5})
	}
	mc := NewMoveCoordinator(p, auth, OwnerMark, &noticeRecorder{})

	if mc.PlaceMove(context.Background(), 0, 0, OwnerMark) {
		t.Fatal("server rejection must report false")
	}

	st := s.Snapshot()
	if st.Board.At(0, 0) != Empty {
		t.Fatal("rejected optimistic cell must be cleared")
	}
	if st.Board.At(1, 1) != OpponentMark {
		t.Fatal("remote move must survive the rollback")
	}
	if st.MoveIndex != 5 {
		t.Fatalf("MoveIndex = %d, want 5; move_index never moves backward", st.MoveIndex)
	}
	if st.Turn != OwnerMark {
		t.Fatalf("Turn = %v, want owner after the opponent's move", st.Turn)
	}
	if st.MoveCount != 1 {
		t.Fatalf("MoveCount = %d, want the remote move only", st.MoveCount)
	}
}

func TestPlaceMoveTransportErrorRollsBack(t *testing.T) {
	s := NewSession("g1", nil)
	p := NewProjector(s)
	auth := &fakeAuthority{err: errors.New("network down")}
	mc := NewMoveCoordinator(p, auth, OwnerMark, &noticeRecorder{})

	if mc.PlaceMove(context.Background(), 3, 3, OwnerMark) {
		t.Fatal("unconfirmed move must report false")
	}
	if s.Snapshot().Board.At(3, 3) != Empty {
		t.Fatal("cell must return to empty")
	}
}

func TestPlaceMoveAcceptedAdoptsIndex(t *testing.T) {
	s := NewSession("g1", nil)
	p := NewProjector(s)
	auth := &fakeAuthority{result: dataservice.MoveResult{Accepted: true, MoveIndex: 7}}
	mc := NewMoveCoordinator(p, auth, OwnerMark, nil)

	if !mc.PlaceMove(context.Background(), 2, 2, OwnerMark) {
		t.Fatal("accepted move must report true")
	}
	st := s.Snapshot()
	if st.MoveIndex != 7 {
		t.Fatalf("MoveIndex = %d, want server-assigned 7", st.MoveIndex)
	}
	if st.Board.At(2, 2) != OwnerMark {
		t.Fatal("optimistic cell must stay placed")
	}
	if auth.fetched != 1 {
		t.Fatal("acceptance without board must trigger one defensive fetch")
	}
}

func TestPlaceMoveAcceptedAdoptsBoardSnapshot(t *testing.T) {
	s := NewSession("g1", nil)
	p := NewProjector(s)
	board := make([]int, CellCount)
	board[Index(2, 2)] = int(OwnerMark)
	board[Index(8, 8)] = int(OpponentMark)
	auth := &fakeAuthority{result: dataservice.MoveResult{Accepted: true, MoveIndex: 2, Board: board}}
	mc := NewMoveCoordinator(p, auth, OwnerMark, nil)

	if !mc.PlaceMove(context.Background(), 2, 2, OwnerMark) {
		t.Fatal("move must be accepted")
	}
	if s.Snapshot().Board.At(8, 8) != OpponentMark {
		t.Fatal("authoritative snapshot must be adopted directly")
	}
	if auth.fetched != 0 {
		t.Fatal("snapshot responses skip the defensive fetch")
	}
}

func TestPlaceMoveGameOverTriggersRefreshAndEnd(t *testing.T) {
	s := NewSession("g1", nil)
	p := NewProjector(s)
	auth := &fakeAuthority{result: dataservice.MoveResult{Accepted: true, MoveIndex: 9, GameOver: true, Winner: "owner"}}
	mc := NewMoveCoordinator(p, auth, OwnerMark, nil)

	refreshed := 0
	mc.SetRefresh(func(context.Context) error { refreshed++; return nil })
	var ended Mark
	endCalls := 0
	mc.SetGameEndHandler(func(w Mark) { ended = w; endCalls++ })

	if !mc.PlaceMove(context.Background(), 0, 4, OwnerMark) {
		t.Fatal("winning move must be accepted")
	}
	if refreshed != 1 {
		t.Fatal("game end must force a full authoritative refresh")
	}
	if endCalls != 1 || ended != OwnerMark {
		t.Fatalf("end handler: calls=%d winner=%v", endCalls, ended)
	}
}

func TestPlaceMoveLocalModeWin(t *testing.T) {
	s := NewSession("", nil)
	p := NewProjector(s)
	mc := NewMoveCoordinator(p, nil, OwnerMark, nil)

	var ended *Mark
	mc.SetGameEndHandler(func(w Mark) { ended = &w })

	// Local mode has no turn enforcement against a remote peer; alternate by
	// hand and finish an owner run of five.
	for i := 0; i < 4; i++ {
		if !mc.PlaceMove(context.Background(), 5, 5+i, OwnerMark) {
			t.Fatalf("owner move %d rejected", i)
		}
		s.mu.Lock()
		s.state.Turn = OwnerMark
		s.mu.Unlock()
	}
	if ended != nil {
		t.Fatal("no win before the fifth mark")
	}
	if !mc.PlaceMove(context.Background(), 5, 9, OwnerMark) {
		t.Fatal("winning move rejected")
	}
	if ended == nil || *ended != OwnerMark {
		t.Fatal("local win must end the round with the owner")
	}
	if st := s.Snapshot(); st.Status != dataservice.GameStatusFinished || st.Winner != OwnerMark {
		t.Fatalf("state = %+v", st)
	}
}

func TestPlaceMovePendingGuard(t *testing.T) {
	s := NewSession("g1", nil)
	p := NewProjector(s)
	mc := NewMoveCoordinator(p, &fakeAuthority{result: dataservice.MoveResult{Accepted: true, MoveIndex: 1}}, OwnerMark, nil)

	mc.s.mu.Lock()
	mc.pending = true
	mc.s.mu.Unlock()
	if mc.PlaceMove(context.Background(), 0, 0, OwnerMark) {
		t.Fatal("in-flight submission must block a second move")
	}
}
