package view

import (
	"time"

	"github.com/rs/zerolog/log"
)

// LogPresenter is the headless Presenter/Navigator used by the CLI binary:
// overlays and notices become log lines. Decision callbacks are exposed so an
// embedding shell can wire key handling to them.
type LogPresenter struct{}

func NewLogPresenter() *LogPresenter { return &LogPresenter{} }

func (p *LogPresenter) Notify(level Level, msg string) {
	switch level {
	case LevelError:
		log.Error().Msg(msg)
	case LevelWarn:
		log.Warn().Msg(msg)
	default:
		log.Info().Msg(msg)
	}
}

func (p *LogPresenter) ShowWaiting(inviteeName string, onCancel func()) Overlay {
	log.Info().Str("invitee", inviteeName).Msg("waiting for invitation response")
	return &logOverlay{label: "waiting"}
}

func (p *LogPresenter) ShowDecision(inviterName, message string, onAccept, onDecline func()) Overlay {
	log.Info().Str("inviter", inviterName).Str("message", message).Msg("incoming invitation")
	return &logOverlay{label: "decision"}
}

func (p *LogPresenter) OpenGame(gameID string) {
	log.Info().Str("game_id", gameID).Msg("entering game")
}

func (p *LogPresenter) OpenGameFromInvitation(invitationID string) {
	log.Info().Str("invitation_id", invitationID).Msg("entering game via invitation")
}

type logOverlay struct {
	label string
}

func (o *logOverlay) SetCountdown(remaining time.Duration) {
	log.Debug().Str("overlay", o.label).Dur("remaining", remaining).Msg("countdown")
}

func (o *logOverlay) Close() {
	log.Debug().Str("overlay", o.label).Msg("overlay closed")
}
