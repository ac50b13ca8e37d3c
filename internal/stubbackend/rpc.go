package stubbackend

import (
	"encoding/json"
	"fmt"
	"time"

	"align-five/internal/dataservice"
	"align-five/internal/game"
)

// winsNeeded is the majority of a best-of-3 aggregate.
const winsNeeded = 2

// callRPC dispatches a named procedure for an authenticated caller. The
// payload shapes intentionally mirror the hosted service's quirks: the
// series-creation procedure answers with an array-of-one.
func (s *Store) callRPC(name, userID string, body []byte) (any, error) {
	switch name {
	case "create_series_with_game":
		return s.rpcCreateSeries(userID, body)
	case "accept_invitation":
		return s.rpcAcceptInvitation(userID, body)
	case "submit_move":
		return s.rpcSubmitMove(userID, body)
	}
	return nil, fmt.Errorf("unknown procedure %s", name)
}

func (s *Store) rpcCreateSeries(userID string, body []byte) (any, error) {
	var args struct {
		InviteeID   string `json:"invitee_id"`
		PartyTarget int    `json:"party_target"`
		GameTarget  int    `json:"game_target"`
	}
	if err := json.Unmarshal(body, &args); err != nil {
		return nil, err
	}
	if args.InviteeID == "" {
		return nil, fmt.Errorf("invitee_id required")
	}
	now := time.Now().UTC()

	ser := dataservice.Series{
		ID:         dataservice.NewID(),
		OwnerID:    userID,
		OpponentID: args.InviteeID,
		Status:     "active",
		CreatedAt:  now,
	}
	party := dataservice.Party{
		ID:        dataservice.NewID(),
		SeriesID:  ser.ID,
		Status:    "active",
		CreatedAt: now,
	}
	g := dataservice.Game{
		ID:          dataservice.NewID(),
		PartyID:     party.ID,
		OwnerID:     userID,
		OpponentID:  args.InviteeID,
		CurrentTurn: game.OwnerMark.String(),
		Status:      dataservice.GameStatusWaiting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.series[ser.ID] = &ser
	s.parties[party.ID] = &party
	s.games[g.ID] = &g
	s.mu.Unlock()

	// Array-of-one, matching the production procedure's return shape.
	return []map[string]any{{
		"series_id": ser.ID,
		"party_id":  party.ID,
		"game_id":   g.ID,
	}}, nil
}

func (s *Store) rpcAcceptInvitation(userID string, body []byte) (any, error) {
	var args struct {
		InvitationID string `json:"invitation_id"`
	}
	if err := json.Unmarshal(body, &args); err != nil {
		return nil, err
	}

	s.mu.Lock()
	inv := s.invitations[args.InvitationID]
	if inv == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("invitation not found")
	}
	if inv.InviteeID != userID {
		s.mu.Unlock()
		return nil, fmt.Errorf("not the invitee")
	}
	if inv.Status != dataservice.InvitationPending {
		row := *inv
		s.mu.Unlock()
		// Already resolved; hand back whatever game id exists.
		return map[string]any{"game_id": row.GameID}, nil
	}
	if !inv.ExpiresAt.IsZero() && inv.ExpiresAt.Before(time.Now()) {
		inv.Status = dataservice.InvitationExpired
		row := *inv
		s.mu.Unlock()
		s.feed.Broadcast(dataservice.EventUpdate, "invitations", row)
		return nil, fmt.Errorf("invitation expired")
	}

	inv.Status = dataservice.InvitationAccepted
	if inv.GameID == "" {
		inv.GameID = s.firstGameOfSeriesLocked(inv.SeriesID)
	}
	var activated *dataservice.Game
	if g := s.games[inv.GameID]; g != nil && g.Status == dataservice.GameStatusWaiting {
		g.Status = dataservice.GameStatusActive
		g.UpdatedAt = time.Now().UTC()
		row := *g
		activated = &row
	}
	row := *inv
	s.mu.Unlock()

	s.feed.Broadcast(dataservice.EventUpdate, "invitations", row)
	if activated != nil {
		s.feed.Broadcast(dataservice.EventUpdate, "games", *activated)
	}
	return map[string]any{"game_id": row.GameID}, nil
}

func (s *Store) firstGameOfSeriesLocked(seriesID string) string {
	for _, party := range s.parties {
		if party.SeriesID != seriesID {
			continue
		}
		for _, g := range s.games {
			if g.PartyID == party.ID {
				return g.ID
			}
		}
	}
	return ""
}

func (s *Store) rpcSubmitMove(userID string, body []byte) (any, error) {
	var args struct {
		GameID   string `json:"game_id"`
		Position int    `json:"position"`
		Row      int    `json:"row"`
		Col      int    `json:"col"`
		Player   string `json:"player"`
	}
	if err := json.Unmarshal(body, &args); err != nil {
		return nil, err
	}

	reject := func(reason string) (any, error) {
		return map[string]any{"accepted": false, "reason": reason}, nil
	}

	if !game.InBounds(args.Row, args.Col) || game.Index(args.Row, args.Col) != args.Position {
		return reject("bad position")
	}
	mark := game.ParseMark(args.Player)
	if mark == game.Empty {
		return reject("bad player")
	}

	s.mu.Lock()
	g := s.games[args.GameID]
	if g == nil {
		s.mu.Unlock()
		return reject("game not found")
	}
	switch {
	case g.OwnerID == userID && mark != game.OwnerMark,
		g.OpponentID == userID && mark != game.OpponentMark,
		g.OwnerID != userID && g.OpponentID != userID:
		s.mu.Unlock()
		return reject("wrong player")
	}
	if !dataservice.ActiveLike(g.Status) {
		s.mu.Unlock()
		return reject("game not active")
	}
	if g.CurrentTurn != mark.String() {
		s.mu.Unlock()
		return reject("not your turn")
	}

	board := game.BoardFromInts(g.Board)
	if board.At(args.Row, args.Col) != game.Empty {
		s.mu.Unlock()
		return reject("cell occupied")
	}
	board.Set(args.Row, args.Col, mark)

	moves := s.movesByGame[args.GameID]
	mv := dataservice.Move{
		ID:        dataservice.NewID(),
		GameID:    args.GameID,
		Position:  args.Position,
		Row:       args.Row,
		Col:       args.Col,
		Player:    mark.String(),
		MoveIndex: len(moves) + 1,
		CreatedAt: time.Now().UTC(),
	}
	s.movesByGame[args.GameID] = append(moves, mv)

	winner := board.WinnerAt(args.Row, args.Col)
	draw := winner == game.Empty && board.IsFull()
	gameOver := winner != game.Empty || draw

	g.Board = board.Ints()
	g.CurrentTurn = mark.Other().String()
	g.Status = dataservice.GameStatusActive
	g.UpdatedAt = time.Now().UTC()
	if gameOver {
		g.Status = dataservice.GameStatusFinished
		g.Winner = winner.String()
		if winner == game.Empty {
			g.Winner = ""
		}
	}
	gameRow := *g

	var partyRow *dataservice.Party
	var seriesRow *dataservice.Series
	if winner != game.Empty {
		if party := s.parties[g.PartyID]; party != nil {
			if winner == game.OwnerMark {
				party.OwnerWins++
			} else {
				party.OpponentWins++
			}
			if party.OwnerWins >= winsNeeded || party.OpponentWins >= winsNeeded {
				party.Status = "finished"
				if ser := s.series[party.SeriesID]; ser != nil {
					if party.OwnerWins > party.OpponentWins {
						ser.OwnerWins++
					} else {
						ser.OpponentWins++
					}
					if ser.OwnerWins >= winsNeeded || ser.OpponentWins >= winsNeeded {
						ser.Status = "finished"
					}
					sr := *ser
					seriesRow = &sr
				}
			}
			pr := *party
			partyRow = &pr
		}
	}
	s.mu.Unlock()

	s.feed.Broadcast(dataservice.EventInsert, "moves", mv)
	s.feed.Broadcast(dataservice.EventUpdate, "games", gameRow)
	if partyRow != nil {
		s.feed.Broadcast(dataservice.EventUpdate, "parties", *partyRow)
	}
	if seriesRow != nil {
		s.feed.Broadcast(dataservice.EventUpdate, "series", *seriesRow)
	}

	resp := map[string]any{
		"accepted":   true,
		"move_index": mv.MoveIndex,
		"game_over":  gameOver,
	}
	if winner != game.Empty {
		resp["winner"] = winner.String()
	}
	if gameOver {
		resp["board"] = gameRow.Board
	}
	return resp, nil
}
