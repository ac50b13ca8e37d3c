package config

import "github.com/caarlos0/env/v11"

// LogConfig controls the client's log stream: level, console formatting, an
// optional sampling stride, and an optional capped log file.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SampleEvery int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
	File        string `env:"LOG_FILE"`
	FileCapMB   int    `env:"LOG_FILE_CAP_MB" envDefault:"10"`
}

func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	if err := env.Parse(&cfg); err != nil {
		return LogConfig{}, err
	}
	return cfg, nil
}
