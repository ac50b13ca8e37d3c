package game

import "sync"

// Scores is a mirrored win-counter pair; the client never computes these, it
// copies them from the party/series rows.
type Scores struct {
	Owner    int
	Opponent int
}

// State is the displayable projection of one game session: the board mirror,
// whose turn it is, and the score counters at both nesting levels.
type State struct {
	GameID      string
	Board       Board
	Turn        Mark
	MoveIndex   int // highest move_index applied, 0 before any move
	MoveCount   int
	Status      string
	Winner      Mark
	PartyScore  Scores
	SeriesScore Scores
}

// Renderer receives a consistent snapshot after every visible change.
type Renderer interface {
	Render(State)
}

type RenderFunc func(State)

func (f RenderFunc) Render(s State) { f(s) }

// Session is the explicit per-game context. All mutation goes through its
// lock; the projector and the move coordinator share it, which is what makes
// the index-based staleness rule apply regardless of update source.
type Session struct {
	mu     sync.Mutex
	state  State
	render Renderer
}

func NewSession(gameID string, r Renderer) *Session {
	return &Session{
		state: State{
			GameID: gameID,
			Board:  NewBoard(),
			Turn:   OwnerMark,
			Status: "active",
		},
		render: r,
	}
}

// Snapshot returns a deep copy safe to hand to renderers and tests.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	out := s.state
	out.Board = s.state.Board.Clone()
	return out
}

func (s *Session) renderLocked() {
	if s.render != nil {
		s.render.Render(s.snapshotLocked())
	}
}
