package game

import (
	"sort"

	"align-five/internal/dataservice"
)

// Projector is the single ordered-merge consumer for every update source:
// realtime events, poll batches and full authoritative refreshes all funnel
// through it, keyed by move_index.
type Projector struct {
	s *Session
}

func NewProjector(s *Session) *Projector {
	return &Projector{s: s}
}

func (p *Projector) Session() *Session { return p.s }

// ApplyMove applies one incremental move. Anything at or below the highest
// index already applied is discarded as stale/duplicate. Returns whether the
// move was applied.
func (p *Projector) ApplyMove(mv dataservice.Move) bool {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if !p.applyMoveLocked(mv) {
		return false
	}
	p.s.renderLocked()
	return true
}

func (p *Projector) applyMoveLocked(mv dataservice.Move) bool {
	st := &p.s.state
	if mv.GameID != "" && mv.GameID != st.GameID {
		return false
	}
	if mv.MoveIndex <= st.MoveIndex {
		metricStaleUpdates.Add(1)
		return false
	}
	if !InBounds(mv.Row, mv.Col) {
		return false
	}
	mark := ParseMark(mv.Player)
	if mark == Empty {
		return false
	}
	st.Board.Set(mv.Row, mv.Col, mark)
	st.MoveIndex = mv.MoveIndex
	st.MoveCount++
	st.Turn = mark.Other()
	return true
}

// ReconcileMoves merges a full poll batch into the mirror. Cells are brought
// in line with the authoritative log (gaps the realtime channel missed get
// filled) but move_index only ever moves forward. Returns whether anything
// changed.
func (p *Projector) ReconcileMoves(moves []dataservice.Move) bool {
	if len(moves) == 0 {
		return false
	}
	sorted := make([]dataservice.Move, len(moves))
	copy(sorted, moves)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MoveIndex < sorted[j].MoveIndex })

	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	st := &p.s.state

	changed := false
	maxIdx := st.MoveIndex
	var last dataservice.Move
	for _, mv := range sorted {
		if mv.GameID != "" && mv.GameID != st.GameID {
			continue
		}
		if !InBounds(mv.Row, mv.Col) {
			continue
		}
		mark := ParseMark(mv.Player)
		if mark == Empty {
			continue
		}
		if st.Board.At(mv.Row, mv.Col) != mark {
			st.Board.Set(mv.Row, mv.Col, mark)
			changed = true
		}
		if mv.MoveIndex > maxIdx {
			maxIdx = mv.MoveIndex
			changed = true
		}
		last = mv
	}
	if !changed {
		return false
	}
	st.MoveIndex = maxIdx
	if len(sorted) > st.MoveCount {
		st.MoveCount = len(sorted)
	}
	if mark := ParseMark(last.Player); mark != Empty {
		st.Turn = mark.Other()
	}
	p.s.renderLocked()
	return true
}

// RefreshFull adopts an authoritative game row. When the denormalized board
// column is populated it replaces the mirror wholesale; when it lags behind
// the move log, the board is rebuilt by replaying moves in index order.
func (p *Projector) RefreshFull(g dataservice.Game, moves []dataservice.Move, party *dataservice.Party, series *dataservice.Series) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	st := &p.s.state

	if len(g.Board) == CellCount {
		st.Board = BoardFromInts(g.Board)
	} else {
		st.Board = NewBoard()
		sorted := make([]dataservice.Move, len(moves))
		copy(sorted, moves)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].MoveIndex < sorted[j].MoveIndex })
		for _, mv := range sorted {
			if InBounds(mv.Row, mv.Col) {
				if mark := ParseMark(mv.Player); mark != Empty {
					st.Board.Set(mv.Row, mv.Col, mark)
				}
			}
		}
	}

	maxIdx := 0
	for _, mv := range moves {
		if mv.MoveIndex > maxIdx {
			maxIdx = mv.MoveIndex
		}
	}
	st.MoveIndex = maxIdx
	st.MoveCount = len(moves)
	st.Status = g.Status
	st.Winner = ParseMark(g.Winner)
	if t := ParseMark(g.CurrentTurn); t != Empty {
		st.Turn = t
	}
	if party != nil {
		st.PartyScore = Scores{Owner: party.OwnerWins, Opponent: party.OpponentWins}
	}
	if series != nil {
		st.SeriesScore = Scores{Owner: series.OwnerWins, Opponent: series.OpponentWins}
	}
	p.s.renderLocked()
}

// AdoptGameRow merges a realtime game-row update: status, winner, turn and,
// when present, the authoritative board.
func (p *Projector) AdoptGameRow(g dataservice.Game) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	st := &p.s.state
	if g.ID != "" && g.ID != st.GameID {
		return
	}
	if len(g.Board) == CellCount {
		st.Board = BoardFromInts(g.Board)
	}
	if g.Status != "" {
		st.Status = g.Status
	}
	st.Winner = ParseMark(g.Winner)
	if t := ParseMark(g.CurrentTurn); t != Empty {
		st.Turn = t
	}
	p.s.renderLocked()
}
