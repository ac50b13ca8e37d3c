package config

import "github.com/caarlos0/env/v11"

// BackendConfig configures the local in-memory backend used for development
// and two-client play on one machine.
type BackendConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8090"`

	// Seed users created at startup so clients can authenticate immediately.
	SeedUsers []string `env:"SEED_USERS" envSeparator:"," envDefault:"alice,bob"`
}

func LoadBackend() (BackendConfig, error) {
	var cfg BackendConfig
	err := env.Parse(&cfg)
	return cfg, err
}
