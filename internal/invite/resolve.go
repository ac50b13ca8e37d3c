package invite

import (
	"context"
	"errors"
	"time"

	"align-five/internal/dataservice"
)

var ErrUnresolvedGame = errors.New("could not resolve game id")

// resolveGameID turns an accepted invitation into the game to enter. The
// chain, in preference order: the row's own game_id (re-read fresh), the id
// the accept procedure returned, a bounded wait for the row to populate, and
// finally the series -> parties -> games lookup.
func (c *Coordinator) resolveGameID(ctx context.Context, inv dataservice.Invitation, acceptGameID string) (string, error) {
	if row, found, err := c.svc.GetInvitation(ctx, inv.ID); err == nil && found && row.GameID != "" {
		return row.GameID, nil
	}
	if inv.GameID != "" {
		return inv.GameID, nil
	}
	if acceptGameID != "" {
		return acceptGameID, nil
	}

	for i := 0; i < c.timings.ResolveRetries; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.timings.ResolveRetryInterval):
		}
		row, found, err := c.svc.GetInvitation(ctx, inv.ID)
		if err != nil || !found {
			continue
		}
		if row.GameID != "" {
			return row.GameID, nil
		}
	}

	return c.lookupGameBySeries(ctx, inv.SeriesID)
}

// lookupGameBySeries filters the series' parties down to active-like games,
// preferring one the current user participates in, else the most recently
// created. With overlapping concurrent series this can pick the wrong game;
// recency plus participant match is the best the data surface offers.
func (c *Coordinator) lookupGameBySeries(ctx context.Context, seriesID string) (string, error) {
	if seriesID == "" {
		return "", ErrUnresolvedGame
	}
	userID, _ := c.svc.CurrentUserID(ctx)

	parties, err := c.svc.PartiesBySeries(ctx, seriesID)
	if err != nil {
		return "", err
	}
	var candidates []dataservice.Game
	for _, party := range parties {
		games, err := c.svc.GamesByParty(ctx, party.ID)
		if err != nil {
			continue
		}
		for _, g := range games {
			if dataservice.ActiveLike(g.Status) {
				candidates = append(candidates, g)
			}
		}
	}
	if len(candidates) == 0 {
		return "", ErrUnresolvedGame
	}

	var best *dataservice.Game
	for i := range candidates {
		g := &candidates[i]
		mine := userID != "" && (g.OwnerID == userID || g.OpponentID == userID)
		if best == nil {
			if mine {
				best = g
			}
			continue
		}
		if mine && g.CreatedAt.After(best.CreatedAt) {
			best = g
		}
	}
	if best == nil {
		// No participant match; fall back to the newest candidate.
		best = &candidates[0]
		for i := range candidates {
			if candidates[i].CreatedAt.After(best.CreatedAt) {
				best = &candidates[i]
			}
		}
	}
	return best.ID, nil
}
