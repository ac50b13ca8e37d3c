package dataservice

import "time"

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationDeclined  InvitationStatus = "declined"
	InvitationCancelled InvitationStatus = "cancelled"
	InvitationExpired   InvitationStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s InvitationStatus) Terminal() bool {
	switch s {
	case InvitationAccepted, InvitationDeclined, InvitationCancelled, InvitationExpired:
		return true
	}
	return false
}

// Invitation is a time-boxed proposal from one user to another to start a
// series. GameID stays empty until the backend links the first game.
type Invitation struct {
	ID        string           `json:"id"`
	SeriesID  string           `json:"series_id"`
	GameID    string           `json:"game_id,omitempty"`
	InviterID string           `json:"inviter_id"`
	InviteeID string           `json:"invitee_id"`
	Message   string           `json:"message,omitempty"`
	Status    InvitationStatus `json:"status"`
	ExpiresAt time.Time        `json:"expires_at"`
	CreatedAt time.Time        `json:"created_at,omitempty"`
}

const (
	GameStatusWaiting  = "waiting"
	GameStatusActive   = "active"
	GameStatusFinished = "finished"
)

// ActiveLike reports whether a game status counts as joinable when resolving
// an invitation into a game.
func ActiveLike(status string) bool {
	switch status {
	case GameStatusWaiting, GameStatusActive, "in_progress":
		return true
	}
	return false
}

// Game mirrors the authoritative game row. Board is the flattened 20x20 grid
// (0 empty, 1 owner, 2 opponent); it may be empty when the denormalized
// column lags behind the move log.
type Game struct {
	ID          string    `json:"id"`
	PartyID     string    `json:"party_id"`
	OwnerID     string    `json:"owner_id"`
	OpponentID  string    `json:"opponent_id,omitempty"`
	Board       []int     `json:"board,omitempty"`
	CurrentTurn string    `json:"current_turn"`
	Status      string    `json:"status"`
	Winner      string    `json:"winner,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Move is one placed mark, append-only with strictly increasing MoveIndex per
// game. Player is "owner" or "opponent".
type Move struct {
	ID        string    `json:"id,omitempty"`
	GameID    string    `json:"game_id"`
	Position  int       `json:"position"`
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	Player    string    `json:"player"`
	MoveIndex int       `json:"move_index"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Party struct {
	ID           string    `json:"id"`
	SeriesID     string    `json:"series_id"`
	OwnerWins    int       `json:"owner_wins"`
	OpponentWins int       `json:"opponent_wins"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

type Series struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	OpponentID   string    `json:"opponent_id"`
	OwnerWins    int       `json:"owner_wins"`
	OpponentWins int       `json:"opponent_wins"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
