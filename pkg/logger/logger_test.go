package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	appctx "docnum/internal/core/context"
)

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "loud", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.True(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestFromContext_UsesAttachedLogger(t *testing.T) {
	nop := NewNop()
	ctx := WithLogger(context.Background(), nop)
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext("t", "r"))

	got := FromContext(ctx)
	require.NotNil(t, got)
	// Nop core stays disabled after enrichment.
	assert.False(t, got.Desugar().Core().Enabled(zapcore.ErrorLevel))
}
