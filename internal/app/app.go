package app

import (
	"io"
	"os"
	"strings"
	"time"

	"caption-merge-service/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
}

// New constructs an Application and installs its logger as the
// process-wide default.
func New(cfg *config.Configuration) *Application {
	a := &Application{
		Cfg:    cfg,
		Logger: newLogger(cfg.Service.Principal),
	}
	log.Logger = a.Logger
	return a
}

// newLogger builds the service logger. Output is JSON by default; a dev
// environment gets the human-readable console writer. Level comes from
// ZEROLOG_LOG_LEVEL and falls back to info.
func newLogger(service string) zerolog.Logger {
	level := zerolog.InfoLevel
	if raw := os.Getenv("ZEROLOG_LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if os.Getenv("ENV") == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().
		Timestamp().
		Str("service", service).
		Logger()
}

// Start records the startup time before serving traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.Logger.Info().Time("startupTime", a.StartupTime).Msg("starting")
	return nil
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	a.Logger.Info().Msg("shutting down")
}
