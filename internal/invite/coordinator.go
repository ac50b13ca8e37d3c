// Package invite owns both ends of the invitation lifecycle: the outgoing
// flow (create, wait, cancel, expire) and the incoming flow (detect, present,
// decide). Every wait is dual-channel: a realtime subscription backed by a
// polling fallback, plus a client-side expiry timer as the last safety net.
package invite

import (
	"errors"
	"sync"
	"time"

	"align-five/internal/dataservice"
	"align-five/internal/view"
)

var (
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrInvitePending = errors.New("invitation already pending for this user")
)

const (
	partyTarget = 3
	gameTarget  = 3
)

// Timings collects every interval the coordinator schedules. Tests shrink
// them; production uses Defaults.
type Timings struct {
	ExpireAfter          time.Duration
	OutgoingPollInterval time.Duration
	OutgoingPollTimeout  time.Duration
	IncomingPollInterval time.Duration
	SubscribeConfirmWait time.Duration
	CountdownTick        time.Duration
	ResolveRetryInterval time.Duration
	ResolveRetries       int
}

func DefaultTimings() Timings {
	return Timings{
		ExpireAfter:          45 * time.Second,
		OutgoingPollInterval: 1200 * time.Millisecond,
		OutgoingPollTimeout:  65 * time.Second,
		IncomingPollInterval: 2 * time.Second,
		SubscribeConfirmWait: 1500 * time.Millisecond,
		CountdownTick:        time.Second,
		ResolveRetryInterval: 500 * time.Millisecond,
		ResolveRetries:       10,
	}
}

// Coordinator drives invitations for one authenticated client.
type Coordinator struct {
	svc       *dataservice.Client
	rt        dataservice.Realtime
	presenter view.Presenter
	nav       view.Navigator
	timings   Timings

	mu        sync.Mutex
	outgoing  map[string]*outgoingInvite // keyed by invitee id
	decisions map[string]*decisionState  // keyed by invitation id
	seen      map[string]bool            // invitation ids already presented

	incomingUser    string
	incomingChannel dataservice.Channel
	incomingPoll    chan struct{}
}

func NewCoordinator(svc *dataservice.Client, rt dataservice.Realtime, presenter view.Presenter, nav view.Navigator) *Coordinator {
	return &Coordinator{
		svc:       svc,
		rt:        rt,
		presenter: presenter,
		nav:       nav,
		timings:   DefaultTimings(),
		outgoing:  map[string]*outgoingInvite{},
		decisions: map[string]*decisionState{},
		seen:      map[string]bool{},
	}
}

// SetTimings must be called before any flow starts.
func (c *Coordinator) SetTimings(t Timings) { c.timings = t }

func countdown(expiresAt time.Time) time.Duration {
	remaining := time.Until(expiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
