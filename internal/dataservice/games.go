package dataservice

import "context"

func (c *Client) GetGame(ctx context.Context, id string) (Game, bool, error) {
	var g Game
	found, err := c.From("games").Eq("id", id).MaybeSingle(ctx, &g)
	return g, found, err
}

// MovesForGame returns all moves ordered by move_index ascending.
func (c *Client) MovesForGame(ctx context.Context, gameID string) ([]Move, error) {
	var moves []Move
	err := c.From("moves").
		Eq("game_id", gameID).
		Order("move_index", false).
		Get(ctx, &moves)
	return moves, err
}

func (c *Client) LatestMove(ctx context.Context, gameID string) (Move, bool, error) {
	var mv Move
	found, err := c.From("moves").
		Eq("game_id", gameID).
		Order("move_index", true).
		MaybeSingle(ctx, &mv)
	return mv, found, err
}

func (c *Client) GetParty(ctx context.Context, id string) (Party, bool, error) {
	var p Party
	found, err := c.From("parties").Eq("id", id).MaybeSingle(ctx, &p)
	return p, found, err
}

func (c *Client) GetSeries(ctx context.Context, id string) (Series, bool, error) {
	var s Series
	found, err := c.From("series").Eq("id", id).MaybeSingle(ctx, &s)
	return s, found, err
}

func (c *Client) PartiesBySeries(ctx context.Context, seriesID string) ([]Party, error) {
	var parties []Party
	err := c.From("parties").Eq("series_id", seriesID).Get(ctx, &parties)
	return parties, err
}

func (c *Client) GamesByParty(ctx context.Context, partyID string) ([]Game, error) {
	var games []Game
	err := c.From("games").
		Eq("party_id", partyID).
		Order("created_at", true).
		Get(ctx, &games)
	return games, err
}
