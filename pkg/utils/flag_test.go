package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetTestFlag(t *testing.T) {
	t.Run("override", func(t *testing.T) {
		SetTestFlag(t, "log_level", LogLevelDebug)
		assert.Equal(t, string(LogLevelDebug), *logLevelFlag)
	})
	// The cleanup of the previous subtest restores the default.
	assert.Equal(t, string(LogLevelInfo), *logLevelFlag)
}
