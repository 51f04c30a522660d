package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConversationKey(t *testing.T) {
	key, err := ParseConversationKey("job-1:user-2")
	require.NoError(t, err)
	assert.Equal(t, ConversationKey{JobID: "job-1", OtherUserID: "user-2"}, key)
	assert.Equal(t, "job-1:user-2", key.String())

	for _, bad := range []string{"", "job-1", ":user", "job:"} {
		_, err := ParseConversationKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestMessageCounterpart(t *testing.T) {
	m := &Message{SenderID: "a", ReceiverID: "b"}
	assert.Equal(t, "b", m.Counterpart("a"))
	assert.Equal(t, "a", m.Counterpart("b"))
}

func TestParseEnums(t *testing.T) {
	u, err := ParseUrgency(" High ")
	require.NoError(t, err)
	assert.Equal(t, UrgencyHigh, u)

	_, err = ParseUrgency("whenever")
	assert.Error(t, err)

	s, err := ParsePresenceStatus("AWAY")
	require.NoError(t, err)
	assert.Equal(t, PresenceAway, s)

	_, err = ParsePresenceStatus("busy")
	assert.Error(t, err)
}

func TestTypingKey(t *testing.T) {
	e := TypingEvent{UserID: "u1", JobID: "j1", IsTyping: true}
	assert.Equal(t, "j1-u1", e.TypingKey())
}
