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

type outgoingInvite struct {
	c   *Coordinator
	inv dataservice.Invitation

	overlay view.Overlay
	channel dataservice.Channel

	mu          sync.Mutex
	finished    bool
	pollStarted bool
	expireTimer *time.Timer
	done        chan struct{}
	cleanupOnce sync.Once
}

// SendInvitation runs the outgoing protocol: create the series/party/game
// aggregate, insert the pending invitation, raise the waiting overlay and
// watch for the invitee's decision over push, poll and a local expiry timer.
// It returns once the waiting state is established.
func (c *Coordinator) SendInvitation(ctx context.Context, inviteeID, message string) error {
	userID, err := c.svc.CurrentUserID(ctx)
	if err != nil {
		c.presenter.Notify(view.LevelError, "you must be logged in to send an invitation")
		return ErrNotLoggedIn
	}

	c.mu.Lock()
	if _, exists := c.outgoing[inviteeID]; exists {
		c.mu.Unlock()
		c.presenter.Notify(view.LevelWarn, "an invitation to this player is already pending")
		return ErrInvitePending
	}
	o := &outgoingInvite{c: c, done: make(chan struct{})}
	c.outgoing[inviteeID] = o
	c.mu.Unlock()

	creation, err := c.svc.CreateSeriesWithGame(ctx, inviteeID, partyTarget, gameTarget)
	if err != nil {
		c.dropOutgoing(inviteeID)
		c.presenter.Notify(view.LevelError, "could not create the game, please try again")
		return err
	}

	inv := dataservice.Invitation{
		ID:        dataservice.NewID(),
		SeriesID:  creation.SeriesID,
		GameID:    creation.GameID,
		InviterID: userID,
		InviteeID: inviteeID,
		Message:   message,
		Status:    dataservice.InvitationPending,
		ExpiresAt: time.Now().Add(c.timings.ExpireAfter),
	}
	created, err := c.svc.InsertInvitation(ctx, inv)
	if err != nil {
		c.dropOutgoing(inviteeID)
		c.presenter.Notify(view.LevelError, "could not send the invitation")
		return err
	}
	if created.ID == "" {
		created = inv
	}
	o.inv = created

	inviteeName, err := c.svc.DisplayName(ctx, inviteeID)
	if err != nil {
		// Cosmetic lookup, the raw id will do.
		inviteeName = inviteeID
	}
	o.overlay = c.presenter.ShowWaiting(inviteeName, func() { o.cancel() })
	go o.runCountdown()

	// Race-check: the invitee may have answered before we could subscribe.
	if row, found, err := c.svc.GetInvitation(ctx, o.inv.ID); err == nil && found && row.Status.Terminal() {
		o.handleRow(ctx, row)
		return nil
	}

	ch, err := c.rt.Subscribe(ctx, "invitations", "id", o.inv.ID)
	if err != nil {
		o.startPoll(ctx)
	} else {
		o.channel = ch
		go o.watch(ctx, ch)
		if !dataservice.AwaitSubscribed(ch, c.timings.SubscribeConfirmWait) {
			o.startPoll(ctx)
		}
	}

	// Safety net in case neither the server nor the peer ever transitions
	// the status.
	o.mu.Lock()
	o.expireTimer = time.AfterFunc(time.Until(o.inv.ExpiresAt), func() { o.expire(ctx) })
	o.mu.Unlock()
	return nil
}

// CancelOutgoing cancels the pending invitation to inviteeID, if any.
func (c *Coordinator) CancelOutgoing(inviteeID string) {
	c.mu.Lock()
	o := c.outgoing[inviteeID]
	c.mu.Unlock()
	if o != nil {
		o.cancel()
	}
}

func (c *Coordinator) dropOutgoing(inviteeID string) {
	c.mu.Lock()
	delete(c.outgoing, inviteeID)
	c.mu.Unlock()
}

func (o *outgoingInvite) runCountdown() {
	tick := o.c.timings.CountdownTick
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-o.done:
			return
		case <-ticker.C:
			o.mu.Lock()
			overlay := o.overlay
			expiresAt := o.inv.ExpiresAt
			o.mu.Unlock()
			if overlay != nil {
				overlay.SetCountdown(countdown(expiresAt))
			}
		}
	}
}

func (o *outgoingInvite) watch(ctx context.Context, ch dataservice.Channel) {
	events := ch.Events()
	status := ch.Status()
	for {
		select {
		case <-o.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			var row dataservice.Invitation
			if err := json.Unmarshal(ev.Row, &row); err != nil {
				continue
			}
			if row.ID == o.inv.ID && row.Status.Terminal() {
				o.handleRow(ctx, row)
			}
		case s, ok := <-status:
			if !ok {
				return
			}
			if s == dataservice.StatusError {
				o.startPoll(ctx)
			}
		}
	}
}

func (o *outgoingInvite) startPoll(ctx context.Context) {
	o.mu.Lock()
	if o.pollStarted || o.finished {
		o.mu.Unlock()
		return
	}
	o.pollStarted = true
	o.mu.Unlock()

	go func() {
		ticker := time.NewTicker(o.c.timings.OutgoingPollInterval)
		defer ticker.Stop()
		deadline := time.NewTimer(o.c.timings.OutgoingPollTimeout)
		defer deadline.Stop()
		for {
			select {
			case <-o.done:
				return
			case <-deadline.C:
				return
			case <-ticker.C:
				row, found, err := o.c.svc.GetInvitation(ctx, o.inv.ID)
				if err != nil || !found {
					continue
				}
				if row.Status.Terminal() {
					o.handleRow(ctx, row)
					return
				}
			}
		}
	}()
}

func (o *outgoingInvite) expire(ctx context.Context) {
	// The pending-guarded write makes this a no-op when anyone else already
	// resolved the invitation.
	changed, err := o.c.svc.SetInvitationStatus(ctx, o.inv.ID, dataservice.InvitationExpired)
	if err != nil {
		log.Warn().Err(err).Str("invitation_id", o.inv.ID).Msg("expiry write failed")
	}
	if !changed {
		if row, found, err := o.c.svc.GetInvitation(ctx, o.inv.ID); err == nil && found && row.Status.Terminal() {
			o.handleRow(ctx, row)
			return
		}
	}
	// Whether or not the backend could be reached, the local wait is over:
	// tear the waiting state down so the overlay never outlives its timer.
	row := o.inv
	row.Status = dataservice.InvitationExpired
	o.handleRow(ctx, row)
}

func (o *outgoingInvite) cancel() {
	_, err := o.c.svc.SetInvitationStatus(context.Background(), o.inv.ID, dataservice.InvitationCancelled)
	if err != nil {
		log.Warn().Err(err).Str("invitation_id", o.inv.ID).Msg("cancel write failed")
	}
	row := o.inv
	row.Status = dataservice.InvitationCancelled
	o.handleRow(context.Background(), row)
}

// handleRow consumes the first observed terminal status, no matter which
// channel delivered it.
func (o *outgoingInvite) handleRow(ctx context.Context, row dataservice.Invitation) {
	o.mu.Lock()
	if o.finished {
		o.mu.Unlock()
		return
	}
	o.finished = true
	o.mu.Unlock()

	switch row.Status {
	case dataservice.InvitationAccepted:
		gameID, err := o.c.resolveGameID(ctx, row, "")
		o.cleanup()
		if err != nil || gameID == "" {
			o.c.nav.OpenGameFromInvitation(row.ID)
			return
		}
		o.c.nav.OpenGame(gameID)
	case dataservice.InvitationDeclined:
		o.cleanup()
		o.c.presenter.Notify(view.LevelInfo, "invitation declined")
	case dataservice.InvitationExpired:
		o.cleanup()
		o.c.presenter.Notify(view.LevelInfo, "invitation expired")
	default:
		o.cleanup()
	}
}

// cleanup is idempotent and every step is individually guarded so one
// failure cannot stop the rest.
func (o *outgoingInvite) cleanup() {
	o.cleanupOnce.Do(func() {
		select {
		case <-o.done:
		default:
			close(o.done)
		}

		o.mu.Lock()
		overlay := o.overlay
		o.overlay = nil
		timer := o.expireTimer
		o.expireTimer = nil
		ch := o.channel
		o.channel = nil
		o.mu.Unlock()

		if overlay != nil {
			overlay.Close()
		}
		if timer != nil {
			timer.Stop()
		}
		if ch != nil {
			if err := ch.Close(); err != nil {
				log.Debug().Err(err).Msg("invitation channel close failed")
			}
		}
		o.c.dropOutgoing(o.inv.InviteeID)
	})
}
