package appcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluationKey(t *testing.T) {
	ctx := context.Background()
	ctx = WithEvaluationKey(ctx, 42)

	valFromCtx, found := EvaluationKeyFromContext(ctx)
	assert.True(t, found)
	assert.Equal(t, int64(42), valFromCtx)

	valFromCtx, found = EvaluationKeyFromContext(context.Background())
	assert.False(t, found)
	assert.Equal(t, int64(0), valFromCtx)
}
