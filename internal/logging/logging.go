package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"align-five/internal/config"
)

var (
	outMu  sync.Mutex
	out    io.Writer = os.Stdout
	closer io.Closer
)

// Init configures the global zerolog logger. When cfg.File is set, output
// goes to a capped file that starts over on overflow instead of rotating.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var output io.Writer = os.Stdout
	if cfg.File != "" {
		if w, err := newCappedFile(cfg.File, cfg.FileCapMB); err == nil {
			output = w
			outMu.Lock()
			closer = w
			outMu.Unlock()
		}
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	outMu.Lock()
	out = output
	outMu.Unlock()

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer returns the destination Init selected, for bridging non-zerolog
// emitters (slog request logs) into the same stream.
func Writer() io.Writer {
	outMu.Lock()
	defer outMu.Unlock()
	return out
}

func Close() {
	outMu.Lock()
	defer outMu.Unlock()
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
}
