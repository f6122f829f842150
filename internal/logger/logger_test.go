package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	restore := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(restore) })

	release, err := New("release")
	require.NoError(t, err)
	assert.False(t, release.Core().Enabled(zapcore.DebugLevel))
	assert.Same(t, release, zap.L())

	dev, err := New("debug")
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}
