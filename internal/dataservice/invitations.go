package dataservice

import "context"

func (c *Client) GetInvitation(ctx context.Context, id string) (Invitation, bool, error) {
	var inv Invitation
	found, err := c.From("invitations").Eq("id", id).MaybeSingle(ctx, &inv)
	return inv, found, err
}

func (c *Client) InsertInvitation(ctx context.Context, inv Invitation) (Invitation, error) {
	var created Invitation
	if err := c.Insert(ctx, "invitations", inv, &created); err != nil {
		return Invitation{}, err
	}
	return created, nil
}

// SetInvitationStatus writes a terminal status, guarded so an invitation that
// has already left pending is never overwritten. Returns whether the
// transition happened.
func (c *Client) SetInvitationStatus(ctx context.Context, id string, to InvitationStatus) (bool, error) {
	n, err := c.From("invitations").
		Eq("id", id).
		Eq("status", string(InvitationPending)).
		Update(ctx, map[string]any{"status": to})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Client) PendingInvitationsFor(ctx context.Context, inviteeID string) ([]Invitation, error) {
	var invs []Invitation
	err := c.From("invitations").
		Eq("invitee_id", inviteeID).
		Eq("status", string(InvitationPending)).
		Order("created_at", false).
		Get(ctx, &invs)
	return invs, err
}

// DisplayName is cosmetic; callers treat failures as advisory.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	var p Profile
	found, err := c.From("profiles").Eq("id", userID).MaybeSingle(ctx, &p)
	if err != nil || !found || p.DisplayName == "" {
		return userID, err
	}
	return p.DisplayName, nil
}
