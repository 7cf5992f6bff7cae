// Package log is a thin zap facade used across the application. The
// context-aware variants pick up the evaluation key so that all lines
// produced by one price computation can be correlated.
package log

import (
	"context"
	"fmt"

	"github.com/assoforge/cotiz/internal/appcontext"
	"github.com/assoforge/cotiz/internal/profile"
	"go.uber.org/zap"
)

var logger *zap.SugaredLogger

func Init() {
	var base *zap.Logger
	var err error
	switch profile.Current {
	case profile.PROD:
		base, err = zap.NewProduction(zap.AddCallerSkip(1))
	default:
		base, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	}
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %s", err))
	}
	logger = base.Sugar()
}

func get() *zap.SugaredLogger {
	if logger == nil {
		Init()
	}
	return logger
}

func Debug(format string, args ...any) {
	get().Debugf(format, args...)
}

func Info(format string, args ...any) {
	get().Infof(format, args...)
}

func Error(format string, args ...any) {
	get().Errorf(format, args...)
}

func Debugf(ctx context.Context, format string, args ...any) {
	withContext(ctx).Debugf(format, args...)
}

func Infof(ctx context.Context, format string, args ...any) {
	withContext(ctx).Infof(format, args...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	withContext(ctx).Errorf(format, args...)
}

func withContext(ctx context.Context) *zap.SugaredLogger {
	l := get()
	if key, ok := appcontext.EvaluationKeyFromContext(ctx); ok {
		l = l.With(zap.Int64("evaluationKey", key))
	}
	return l
}

// Sync flushes buffered entries; call it on shutdown.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
