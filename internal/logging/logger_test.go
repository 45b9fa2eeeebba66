package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", "json", &buf)

	assert.Equal(t, logrus.WarnLevel, l.GetLevel())

	l.Info("dropped")
	l.WithField("user_id", 7).Warn("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.EqualValues(t, 7, entry["user_id"])
}

func TestNew_FallbackLevel(t *testing.T) {
	l := New("chatty", "text", nil)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	_, ok := l.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "abcdef01", Fingerprint("abcdef0123456789"))
	assert.Equal(t, "abc", Fingerprint("abc"))
}
