package logger

import (
	"context"
	"sync"

	"github.com/bombsimon/logrusr/v3"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"
)

const (
	KeyCmd = "command"
)

var (
	loggers   = map[string]logr.Logger{} // nolint:gochecknoglobals // simple logging
	loggersMu sync.Mutex                 // nolint:gochecknoglobals // simple logging
)

func GetLogger(app string) logr.Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	if logger, has := loggers[app]; has {
		return logger
	}
	lr := logrus.New()
	lr.Level = logrus.TraceLevel
	loggers[app] = logrusr.New(lr).WithName(app)

	return loggers[app]
}

// FromContext returns the logger stored in ctx, with values appended.
// Falls back to a discarding logger, so it is always safe to call.
func FromContext(ctx context.Context, keysAndValues ...interface{}) (context.Context, logr.Logger) {
	log := logr.FromContextOrDiscard(ctx)
	if len(keysAndValues) > 0 {
		log = log.WithValues(keysAndValues...)
	}

	return logr.NewContext(ctx, log), log
}

// NewContext stores log in ctx.
func NewContext(ctx context.Context, log logr.Logger) context.Context {
	return logr.NewContext(ctx, log)
}
