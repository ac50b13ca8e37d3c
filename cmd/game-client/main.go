package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"align-five/internal/app"
	"align-five/internal/config"
	"align-five/internal/dataservice"
	"align-five/internal/game"
	"align-five/internal/invite"
	"align-five/internal/logging"
	"align-five/internal/view"
)

func main() {
	_ = godotenv.Load()

	gameID := flag.String("game", "", "enter the game with this id")
	invitationID := flag.String("invite", "", "enter the game behind this invitation id")
	sendTo := flag.String("send-to", "", "send an invitation to this user id")
	message := flag.String("message", "", "invitation message")
	flag.Parse()

	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := dataservice.New(cfg.Client)
	rt := dataservice.NewRealtime(svc)
	presenter := view.NewLogPresenter()

	userID, err := svc.CurrentUserID(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("session lookup failed")
	}
	log.Info().Str("user_id", userID).Msg("session ready")

	coordinator := invite.NewCoordinator(svc, rt, presenter, presenter)
	if err := coordinator.SubscribeIncoming(ctx); err != nil {
		log.Warn().Err(err).Msg("incoming invitation subscription failed")
	}

	if *sendTo != "" {
		if err := coordinator.SendInvitation(ctx, *sendTo, *message); err != nil {
			log.Error().Err(err).Str("invitee", *sendTo).Msg("invitation failed")
		}
	}

	controller := app.NewController(svc, rt, presenter)
	handle, err := controller.Enter(ctx, app.Entry{GameID: *gameID, InvitationID: *invitationID},
		game.RenderFunc(renderState))
	if err != nil {
		log.Fatal().Err(err).Msg("could not enter game")
	}
	if handle != nil {
		defer handle.Close()
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
}

func renderState(s game.State) {
	log.Info().
		Str("game_id", s.GameID).
		Str("turn", s.Turn.String()).
		Int("move_index", s.MoveIndex).
		Str("status", s.Status).
		Int("party_owner_wins", s.PartyScore.Owner).
		Int("party_opponent_wins", s.PartyScore.Opponent).
		Msg("state")
}
