package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TYPING_TIMEOUT_MS", "")
	t.Setenv("REALTIME_BACKEND", "")

	cfg := Load()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "memory", cfg.RealtimeBackend)
	assert.Equal(t, 3*time.Second, cfg.TypingTimeout)
	assert.Equal(t, "messages.new", cfg.KafkaTopic)
	assert.True(t, cfg.PresenceMirror)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("REALTIME_BACKEND", "NATS")
	t.Setenv("TYPING_TIMEOUT_MS", "1500")
	t.Setenv("PRESENCE_MIRROR", "false")
	t.Setenv("MESSAGE_RATE_LIMIT", "not-a-number")

	cfg := Load()

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, "nats", cfg.RealtimeBackend)
	assert.Equal(t, 1500*time.Millisecond, cfg.TypingTimeout)
	assert.False(t, cfg.PresenceMirror)
	assert.Equal(t, 30, cfg.MessageRateLimit)
}
