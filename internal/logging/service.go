package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sentinel-worker-go/internal/config"
)

// Init configures the global zerolog logger according to cfg. Console-pretty
// in development, structured JSON in every other environment.
func Init(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// NewServiceLogger returns a logger tagged with the worker id and a
// component name, for use by one long-lived service.
func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("worker_id", cfg.WorkerID).Str("service", service).Logger()
}

// WithCamera returns a derived logger tagged with a camera id.
func WithCamera(base zerolog.Logger, cameraID string) zerolog.Logger {
	return base.With().Str("camera_id", cameraID).Logger()
}

// WithDirective returns a derived logger tagged with a directive id.
func WithDirective(base zerolog.Logger, directiveID string) zerolog.Logger {
	return base.With().Str("directive_id", directiveID).Logger()
}
