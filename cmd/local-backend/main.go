package main

import (
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"align-five/internal/config"
	"align-five/internal/logging"
	"align-five/internal/stubbackend"
)

func main() {
	_ = godotenv.Load()

	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	defer logging.Close()

	cfg, err := config.LoadBackend()
	if err != nil {
		log.Fatal().Err(err).Msg("load backend config failed")
	}

	backend := stubbackend.New(cfg.SeedUsers)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.HTTPAddr).Strs("seed_users", cfg.SeedUsers).Msg("local backend listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
