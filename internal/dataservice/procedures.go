package dataservice

import (
	"context"
	"fmt"
)

// SeriesCreation is the normalized result of the create-series procedure.
// GameID may be empty; SeriesID is mandatory.
type SeriesCreation struct {
	SeriesID string
	PartyID  string
	GameID   string
}

// CreateSeriesWithGame asks the backend to create a series, its first party
// and first game against the invitee. A missing series id is a fatal contract
// violation and surfaces as ErrMalformedResponse.
func (c *Client) CreateSeriesWithGame(ctx context.Context, inviteeID string, partyTarget, gameTarget int) (SeriesCreation, error) {
	res, err := c.CallRPC(ctx, "create_series_with_game", map[string]any{
		"invitee_id":   inviteeID,
		"party_target": partyTarget,
		"game_target":  gameTarget,
	})
	if err != nil {
		return SeriesCreation{}, err
	}
	seriesID, ok := res.String("series_id", "s_id")
	if !ok {
		return SeriesCreation{}, fmt.Errorf("create_series_with_game: no series id: %w", ErrMalformedResponse)
	}
	partyID, _ := res.String("party_id", "p_id")
	gameID, _ := res.String("game_id", "g_id")
	return SeriesCreation{SeriesID: seriesID, PartyID: partyID, GameID: gameID}, nil
}

// AcceptResult carries whatever game id the accept procedure volunteered.
// GameID may legitimately be empty; callers fall through the resolution chain.
type AcceptResult struct {
	GameID string
}

func (c *Client) AcceptInvitation(ctx context.Context, invitationID string) (AcceptResult, error) {
	res, err := c.CallRPC(ctx, "accept_invitation", map[string]any{
		"invitation_id": invitationID,
	})
	if err != nil {
		return AcceptResult{}, err
	}
	gameID, _ := res.String("game_id", "g_id")
	return AcceptResult{GameID: gameID}, nil
}

// MoveResult is the server's judgment of a submitted move. A rejection is a
// normal outcome, not an error; transport failures surface as errors.
type MoveResult struct {
	Accepted  bool
	Reason    string
	MoveIndex int
	GameOver  bool
	Winner    string
	Board     []int
}

func (c *Client) SubmitMove(ctx context.Context, gameID string, position, row, col int, player string) (MoveResult, error) {
	res, err := c.CallRPC(ctx, "submit_move", map[string]any{
		"game_id":  gameID,
		"position": position,
		"row":      row,
		"col":      col,
		"player":   player,
	})
	if err != nil {
		return MoveResult{}, err
	}
	accepted, ok := res.Bool("accepted", "ok")
	if !ok {
		return MoveResult{}, fmt.Errorf("submit_move: %w", ErrMalformedResponse)
	}
	out := MoveResult{Accepted: accepted}
	out.Reason, _ = res.String("reason", "error")
	out.MoveIndex, _ = res.Int("move_index", "index")
	out.GameOver, _ = res.Bool("game_over", "finished")
	out.Winner, _ = res.String("winner")
	out.Board, _ = res.Ints("board")
	if out.Winner != "" {
		out.GameOver = true
	}
	return out, nil
}
