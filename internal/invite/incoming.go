package invite

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"align-five/internal/dataservice"
	"align-five/internal/view"
)

// SubscribeIncoming watches for invitations addressed to the current user:
// any already-pending rows are presented immediately, then a realtime
// subscription (with polling fallback) catches new ones. Calling it again for
// the same user is a no-op, so auth-state and visibility hooks can invoke it
// freely.
func (c *Coordinator) SubscribeIncoming(ctx context.Context) error {
	userID, err := c.svc.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.incomingUser == userID {
		c.mu.Unlock()
		return nil
	}
	c.teardownIncomingLocked()
	c.incomingUser = userID
	poll := make(chan struct{})
	c.incomingPoll = poll
	c.mu.Unlock()

	if pending, err := c.svc.PendingInvitationsFor(ctx, userID); err == nil {
		for _, inv := range pending {
			c.presentIncoming(ctx, inv)
		}
	} else {
		log.Warn().Err(err).Msg("pending invitation fetch failed")
	}

	ch, err := c.rt.Subscribe(ctx, "invitations", "invitee_id", userID)
	if err != nil {
		c.startIncomingPoll(ctx, userID, poll)
		return nil
	}
	c.mu.Lock()
	c.incomingChannel = ch
	c.mu.Unlock()
	go c.watchIncoming(ctx, ch, userID, poll)
	if !dataservice.AwaitSubscribed(ch, c.timings.SubscribeConfirmWait) {
		c.startIncomingPoll(ctx, userID, poll)
	}
	return nil
}

// OnAuthStateChanged resubscribes after a transition to logged-in.
func (c *Coordinator) OnAuthStateChanged(ctx context.Context, loggedIn bool) {
	if loggedIn {
		_ = c.SubscribeIncoming(ctx)
	}
}

// OnForeground re-establishes the incoming subscription after the client
// regains the foreground; background throttling may have starved timers and
// sockets silently.
func (c *Coordinator) OnForeground(ctx context.Context) {
	c.mu.Lock()
	c.teardownIncomingLocked()
	c.mu.Unlock()
	_ = c.SubscribeIncoming(ctx)
}

func (c *Coordinator) teardownIncomingLocked() {
	if c.incomingChannel != nil {
		if err := c.incomingChannel.Close(); err != nil {
			log.Debug().Err(err).Msg("incoming channel close failed")
		}
		c.incomingChannel = nil
	}
	if c.incomingPoll != nil {
		close(c.incomingPoll)
		c.incomingPoll = nil
	}
	c.incomingUser = ""
}

func (c *Coordinator) watchIncoming(ctx context.Context, ch dataservice.Channel, userID string, poll chan struct{}) {
	events := ch.Events()
	status := ch.Status()
	for {
		select {
		case <-poll:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			var row dataservice.Invitation
			if err := json.Unmarshal(ev.Row, &row); err != nil {
				continue
			}
			if row.InviteeID != userID {
				continue
			}
			switch ev.Type {
			case dataservice.EventInsert:
				c.presentIncoming(ctx, row)
			case dataservice.EventUpdate:
				c.applyIncomingUpdate(row)
			}
		case s, ok := <-status:
			if !ok {
				return
			}
			if s == dataservice.StatusError {
				c.startIncomingPoll(ctx, userID, poll)
			}
		}
	}
}

// startIncomingPoll is the degraded path: re-query pending invitations on an
// interval, deduplicating on already-seen ids.
func (c *Coordinator) startIncomingPoll(ctx context.Context, userID string, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(c.timings.IncomingPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				pending, err := c.svc.PendingInvitationsFor(ctx, userID)
				if err != nil {
					continue
				}
				for _, inv := range pending {
					c.presentIncoming(ctx, inv)
				}
			}
		}
	}()
}

// decisionState is the incoming overlay state machine:
// shown -> accepted | declined | expired, exactly one transition.
type decisionState struct {
	c   *Coordinator
	inv dataservice.Invitation

	mu      sync.Mutex
	state   dataservice.InvitationStatus
	overlay view.Overlay
	done    chan struct{}
}

func (c *Coordinator) presentIncoming(ctx context.Context, inv dataservice.Invitation) {
	c.mu.Lock()
	if c.seen[inv.ID] {
		c.mu.Unlock()
		return
	}
	c.seen[inv.ID] = true
	c.mu.Unlock()

	if inv.Status != dataservice.InvitationPending {
		return
	}
	if countdown(inv.ExpiresAt) == 0 {
		if _, err := c.svc.SetInvitationStatus(ctx, inv.ID, dataservice.InvitationExpired); err != nil {
			log.Debug().Err(err).Str("invitation_id", inv.ID).Msg("stale invitation expiry write failed")
		}
		return
	}

	inviterName, err := c.svc.DisplayName(ctx, inv.InviterID)
	if err != nil {
		inviterName = inv.InviterID
	}

	d := &decisionState{c: c, inv: inv, state: dataservice.InvitationPending, done: make(chan struct{})}
	d.overlay = c.presenter.ShowDecision(inviterName, inv.Message,
		func() { d.accept(ctx) },
		func() { d.decline(ctx) },
	)
	c.mu.Lock()
	c.decisions[inv.ID] = d
	c.mu.Unlock()
	go d.runCountdown(ctx)
}

// applyIncomingUpdate feeds live row updates into an open decision overlay:
// expiry extensions move the countdown, terminal transitions close it.
func (c *Coordinator) applyIncomingUpdate(row dataservice.Invitation) {
	c.mu.Lock()
	d := c.decisions[row.ID]
	c.mu.Unlock()
	if d == nil {
		return
	}
	if row.Status.Terminal() {
		d.observeTerminal(row.Status)
		return
	}
	d.mu.Lock()
	if !row.ExpiresAt.IsZero() {
		d.inv.ExpiresAt = row.ExpiresAt
	}
	d.mu.Unlock()
}

func (d *decisionState) runCountdown(ctx context.Context) {
	ticker := time.NewTicker(d.c.timings.CountdownTick)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.mu.Lock()
			overlay := d.overlay
			remaining := countdown(d.inv.ExpiresAt)
			d.mu.Unlock()
			if overlay != nil {
				overlay.SetCountdown(remaining)
			}
			if remaining == 0 {
				d.expire(ctx)
				return
			}
		}
	}
}

// transition claims the single shown->terminal edge. Only the first caller
// wins; everyone else sees false.
func (d *decisionState) transition(to dataservice.InvitationStatus) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != dataservice.InvitationPending {
		return false
	}
	d.state = to
	return true
}

func (d *decisionState) accept(ctx context.Context) {
	if !d.transition(dataservice.InvitationAccepted) {
		return
	}
	res, err := d.c.svc.AcceptInvitation(ctx, d.inv.ID)
	if err != nil {
		// Critical write failed: surface it and leave no waiting UI behind.
		d.c.presenter.Notify(view.LevelError, "could not accept the invitation")
		d.close()
		return
	}
	gameID, err := d.c.resolveGameID(ctx, d.inv, res.GameID)
	d.close()
	if err != nil || gameID == "" {
		d.c.nav.OpenGameFromInvitation(d.inv.ID)
		return
	}
	d.c.nav.OpenGame(gameID)
}

func (d *decisionState) decline(ctx context.Context) {
	if !d.transition(dataservice.InvitationDeclined) {
		return
	}
	if _, err := d.c.svc.SetInvitationStatus(ctx, d.inv.ID, dataservice.InvitationDeclined); err != nil {
		log.Warn().Err(err).Str("invitation_id", d.inv.ID).Msg("decline write failed")
	}
	d.close()
}

func (d *decisionState) expire(ctx context.Context) {
	if !d.transition(dataservice.InvitationExpired) {
		return
	}
	if _, err := d.c.svc.SetInvitationStatus(ctx, d.inv.ID, dataservice.InvitationExpired); err != nil {
		log.Warn().Err(err).Str("invitation_id", d.inv.ID).Msg("expiry write failed")
	}
	d.close()
}

func (d *decisionState) observeTerminal(status dataservice.InvitationStatus) {
	if !d.transition(status) {
		return
	}
	d.close()
}

func (d *decisionState) close() {
	d.mu.Lock()
	overlay := d.overlay
	d.overlay = nil
	select {
	case <-d.done:
	default:
		close(d.done)
	}
	d.mu.Unlock()
	if overlay != nil {
		overlay.Close()
	}
	d.c.mu.Lock()
	delete(d.c.decisions, d.inv.ID)
	d.c.mu.Unlock()
}
