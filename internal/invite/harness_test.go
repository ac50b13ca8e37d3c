package invite

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"align-five/internal/config"
	"align-five/internal/dataservice"
	"align-five/internal/stubbackend"
	"align-five/internal/view"
)

// testTimings keeps every scheduled wait short enough for tests while leaving
// expiry far away unless a test shrinks it explicitly.
func testTimings() Timings {
	return Timings{
		ExpireAfter:          time.Minute,
		OutgoingPollInterval: 50 * time.Millisecond,
		OutgoingPollTimeout:  5 * time.Second,
		IncomingPollInterval: 50 * time.Millisecond,
		SubscribeConfirmWait: time.Second,
		CountdownTick:        20 * time.Millisecond,
		ResolveRetryInterval: 20 * time.Millisecond,
		ResolveRetries:       5,
	}
}

type recordedOverlay struct {
	mu        sync.Mutex
	closed    bool
	countdown time.Duration
}

func (o *recordedOverlay) SetCountdown(remaining time.Duration) {
	o.mu.Lock()
	o.countdown = remaining
	o.mu.Unlock()
}

func (o *recordedOverlay) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

func (o *recordedOverlay) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

type notice struct {
	level view.Level
	msg   string
}

type shownDecision struct {
	inviterName string
	message     string
	overlay     *recordedOverlay
	accept      func()
	decline     func()
}

// recordingPresenter captures every notice and overlay the coordinator raises.
type recordingPresenter struct {
	mu        sync.Mutex
	notices   []notice
	waiting   []*recordedOverlay
	cancels   []func()
	decisions []*shownDecision
}

func (p *recordingPresenter) Notify(level view.Level, msg string) {
	p.mu.Lock()
	p.notices = append(p.notices, notice{level, msg})
	p.mu.Unlock()
}

func (p *recordingPresenter) ShowWaiting(_ string, onCancel func()) view.Overlay {
	o := &recordedOverlay{}
	p.mu.Lock()
	p.waiting = append(p.waiting, o)
	p.cancels = append(p.cancels, onCancel)
	p.mu.Unlock()
	return o
}

func (p *recordingPresenter) ShowDecision(inviterName, message string, onAccept, onDecline func()) view.Overlay {
	o := &recordedOverlay{}
	p.mu.Lock()
	p.decisions = append(p.decisions, &shownDecision{inviterName, message, o, onAccept, onDecline})
	p.mu.Unlock()
	return o
}

func (p *recordingPresenter) hasNotice(substr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.notices {
		if strings.Contains(n.msg, substr) {
			return true
		}
	}
	return false
}

func (p *recordingPresenter) decisionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.decisions)
}

func (p *recordingPresenter) decision(i int) *shownDecision {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= len(p.decisions) {
		return nil
	}
	return p.decisions[i]
}

func (p *recordingPresenter) lastWaiting() *recordedOverlay {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.waiting) == 0 {
		return nil
	}
	return p.waiting[len(p.waiting)-1]
}

type recordingNav struct {
	mu          sync.Mutex
	games       []string
	invitations []string
}

func (n *recordingNav) OpenGame(gameID string) {
	n.mu.Lock()
	n.games = append(n.games, gameID)
	n.mu.Unlock()
}

func (n *recordingNav) OpenGameFromInvitation(invitationID string) {
	n.mu.Lock()
	n.invitations = append(n.invitations, invitationID)
	n.mu.Unlock()
}

func (n *recordingNav) openedGame() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.games) == 0 {
		return ""
	}
	return n.games[len(n.games)-1]
}

// testEnv is one stub backend with a coordinator per seeded user.
type testEnv struct {
	backend *stubbackend.Server
	srv     *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := stubbackend.New([]string{"alice", "bob"})
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{backend: backend, srv: srv}
}

func (e *testEnv) client(token string) *dataservice.Client {
	return dataservice.New(config.ClientConfig{BackendURL: e.srv.URL, AuthToken: token})
}

type actor struct {
	svc       *dataservice.Client
	coord     *Coordinator
	presenter *recordingPresenter
	nav       *recordingNav
}

func (e *testEnv) actor(token string) *actor {
	svc := e.client(token)
	presenter := &recordingPresenter{}
	nav := &recordingNav{}
	coord := NewCoordinator(svc, dataservice.NewRealtime(svc), presenter, nav)
	coord.SetTimings(testTimings())
	return &actor{svc: svc, coord: coord, presenter: presenter, nav: nav}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
