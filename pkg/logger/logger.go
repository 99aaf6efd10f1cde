// Package logger provides a zap-based application logger.
package logger

import (
	"context"

	"go.uber.org/zap"
)

// Logger wraps zap and stamps every record with the service name and,
// when available, the trace id of the request being served.
type Logger struct {
	z       *zap.SugaredLogger
	traceID func(context.Context) string
}

// New builds a production logger for the given service. traceID may be
// nil; when set it is called per record to attach a trace_id field.
func New(service string, traceID func(context.Context) string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.DisableStacktrace = true
	cfg.InitialFields = map[string]interface{}{"service": service}

	z, err := cfg.Build(zap.WithCaller(true), zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return &Logger{z: z.Sugar(), traceID: traceID}
}

// Info logs at info level with alternating key/value pairs.
func (l *Logger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.z.Infow(msg, l.withTrace(ctx, args)...)
}

// Error logs at error level with alternating key/value pairs.
func (l *Logger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.z.Errorw(msg, l.withTrace(ctx, args)...)
}

// Sync flushes buffered records. Call before process exit.
func (l *Logger) Sync() {
	_ = l.z.Sync()
}

func (l *Logger) withTrace(ctx context.Context, args []interface{}) []interface{} {
	if l.traceID == nil {
		return args
	}
	id := l.traceID(ctx)
	if id == "" {
		return args
	}
	return append(args, "trace_id", id)
}
