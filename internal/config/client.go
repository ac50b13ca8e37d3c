package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// ClientConfig configures the connection to the hosted backend: the REST/RPC
// base URL, the websocket change feed, and the bearer token identifying the
// current user's session.
type ClientConfig struct {
	BackendURL  string        `env:"BACKEND_URL,required,notEmpty"`
	RealtimeURL string        `env:"REALTIME_URL"`
	AuthToken   string        `env:"AUTH_TOKEN,required,notEmpty"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
}

func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	err := env.Parse(&cfg)
	return cfg, err
}
