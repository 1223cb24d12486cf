package log

import (
	"context"

	"github.com/rs/zerolog"
)

// GooseLogger routes goose migration output through zerolog.
type GooseLogger struct {
	logger *zerolog.Logger
}

func NewGooseLoggerFromCtx(ctx context.Context) *GooseLogger {
	l := FromCtx(ctx).With().Str("component", "migrations").Logger()
	return &GooseLogger{logger: &l}
}

// Fatalf is reported as an error; goose failures are returned to the caller
// by goose.Up, so the process is not terminated here.
func (g *GooseLogger) Fatalf(format string, v ...interface{}) {
	g.logger.Error().Msgf(format, v...)
}

func (g *GooseLogger) Printf(format string, v ...interface{}) {
	g.logger.Debug().Msgf(format, v...)
}
