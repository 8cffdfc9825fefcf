package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogger(t *testing.T) {
	original := defaultLogger
	defer SetDefaultLogger(original)

	SetDefaultLogger(nil)
	first := DefaultLogger()
	require.NotNil(t, first)
	assert.Same(t, first, DefaultLogger(), "lazy default should be reused")

	custom := Development()
	SetDefaultLogger(custom)
	assert.Same(t, custom, DefaultLogger())
}

func TestConfigure(t *testing.T) {
	original := defaultLogger
	defer SetDefaultLogger(original)

	logger, err := Configure("debug", "json")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, logger.Config().Level)
	assert.Equal(t, FormatJSON, logger.Config().Format)
	assert.Same(t, logger, DefaultLogger())

	_, err = Configure("loud", "json")
	assert.Error(t, err)

	_, err = Configure("info", "xml")
	assert.Error(t, err)
}
