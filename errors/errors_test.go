package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestSentinels(t *testing.T) {
	err := Wrap(ErrUsage, "cannot use --rules with --skip-rules")
	assert.True(t, IsUsageError(err))
	assert.False(t, IsNotFoundError(err))

	nf := Wrapf(ErrNotFound, "rule %q", "check_min_value")
	assert.True(t, IsNotFoundError(nf))
	assert.False(t, IsUsageError(nf))
}

func TestHints(t *testing.T) {
	err := WithHint(New("mapping file missing"), "pass --mapping with a .tmcf path")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "mapping file missing")
}
