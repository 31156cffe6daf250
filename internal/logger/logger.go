package logger

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"coinpulse/internal/trace"
)

type ctxKey struct{}

// New builds a logger writing to stdout. format is "json" or "console";
// unknown levels fall back to info.
func New(service, level, format string) *zap.Logger {
	return NewTo(os.Stdout, service, level, format)
}

// NewTo is New with an explicit destination.
func NewTo(w io.Writer, service, level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.MessageKey = "msg"

	var encoder zapcore.Encoder
	if format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zapLevel)
	return zap.New(core, zap.AddCaller()).With(zap.String("service", service))
}

// WithRequestID stores a request id for FromContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromContext decorates l with the request and trace ids found in ctx.
func FromContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	if id := RequestID(ctx); id != "" {
		l = l.With(zap.String("request_id", id))
	}
	if traceID, spanID, ok := trace.TraceFields(ctx); ok {
		l = l.With(zap.String("trace_id", traceID), zap.String("span_id", spanID))
	}
	return l
}
