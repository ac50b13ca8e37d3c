// Package view defines the UI collaborator surface the orchestration core
// drives. Rendering itself lives outside this repository; the core only
// opens/closes overlays, pushes countdowns and emits notices.
package view

import "time"

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Notifier surfaces user-visible notices (toast-equivalent).
type Notifier interface {
	Notify(level Level, msg string)
}

// Overlay is a waiting or decision surface with a live countdown. Close must
// be tolerated more than once.
type Overlay interface {
	SetCountdown(remaining time.Duration)
	Close()
}

// Presenter builds the overlays the invitation flows need. Decision callbacks
// are invoked from the UI at most once each.
type Presenter interface {
	Notifier
	ShowWaiting(inviteeName string, onCancel func()) Overlay
	ShowDecision(inviterName, message string, onAccept, onDecline func()) Overlay
}

// Navigator drives the client-side redirect into the game view.
type Navigator interface {
	OpenGame(gameID string)
	// OpenGameFromInvitation is the unresolved fallback: the game view polls
	// the invitation into a game id itself.
	OpenGameFromInvitation(invitationID string)
}
