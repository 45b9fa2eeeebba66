package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTempPassword(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{6}$`)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := NewTempPassword()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	// 36^6 possibilities; 200 draws colliding more than a couple of times means a broken generator
	assert.Greater(t, len(seen), 195)
}
