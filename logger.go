package webx

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Logger is the narrow logging surface the engine calls through,
// mirroring the teacher's fasthttp.Logger: a single Printf-shaped
// method so any structured logger can be adapted to it without the
// engine depending on that logger's concrete API.
type Logger interface {
	Printf(format string, args ...interface{})
}

// zapLogger adapts a *zap.SugaredLogger to Logger, the way
// cloudfoundry-gorouter's logger/lager_adapter.go wraps a richer
// logger behind a narrower interface expected by its callers.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps z as a Logger. Passing nil builds a sane
// production default (JSON to stderr, info level).
func NewZapLogger(z *zap.Logger) Logger {
	if z == nil {
		cfg := zap.NewProductionConfig()
		built, err := cfg.Build()
		if err != nil {
			return NewDiscardLogger()
		}
		z = built
	}
	return &zapLogger{s: z.Sugar()}
}

func (l *zapLogger) Printf(format string, args ...interface{}) {
	l.s.Infof(format, args...)
}

type discardLogger struct{}

// NewDiscardLogger returns a Logger that drops everything, used as the
// zero-value fallback when Config.Logger is nil.
func NewDiscardLogger() Logger { return discardLogger{} }

func (discardLogger) Printf(string, ...interface{}) {}

// stderrLogger is a last-resort logger for situations prior to a
// Server existing (e.g. a panic while constructing one), grounded on
// the teacher's defaultLogger in server.go which wraps the standard
// log package around os.Stderr.
type stderrLogger struct{}

func (stderrLogger) Printf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
