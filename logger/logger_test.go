package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNopLoggerBeforeInitialize(t *testing.T) {
	// The package-level logger must be safe to use before Initialize.
	require.NotNil(t, Logger)
	Infow("no-op message", FieldStage, "PREFLIGHT")
	Debugf("no-op %s", "debug")
}

func TestInitialize(t *testing.T) {
	err := Initialize(false, false)
	require.NoError(t, err)
	require.NotNil(t, Logger)
	assert.False(t, JSONOutput)

	err = Initialize(true, true)
	require.NoError(t, err)
	assert.True(t, JSONOutput)

	// Restore a quiet logger for other tests
	Logger = zaptest.NewLogger(t).Sugar()
}

func TestFromContext(t *testing.T) {
	Logger = zaptest.NewLogger(t).Sugar()

	ctx := context.Background()
	assert.NotNil(t, FromContext(ctx))

	ctx = WithRunID(ctx, "20260830T120000Z-ab12cd34")
	ctx = WithDataset(ctx, "us_census_population")
	log := FromContext(ctx)
	require.NotNil(t, log)
	log.Infow("stage committed", FieldStage, "QUALITY")
}
