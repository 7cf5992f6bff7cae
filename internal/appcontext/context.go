package appcontext

import (
	"context"
)

type contextKey string

// EvaluationKey correlates every log line and span produced while one
// price evaluation runs.
var EvaluationKey contextKey = "evaluationKey"

func WithEvaluationKey(ctx context.Context, key int64) context.Context {
	return context.WithValue(ctx, EvaluationKey, key)
}

func EvaluationKeyFromContext(ctx context.Context) (int64, bool) {
	val := ctx.Value(EvaluationKey)
	if val == nil {
		return 0, false
	}
	return val.(int64), true
}
