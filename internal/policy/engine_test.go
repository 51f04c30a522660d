package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	cases := []struct {
		name   string
		input  MessageInput
		allow  bool
		reason string
	}{
		{"plain", MessageInput{SenderID: "a", ReceiverID: "b", JobID: "j", JobStatus: "open", Content: "hi"}, true, ""},
		{"no job status", MessageInput{SenderID: "a", ReceiverID: "b", JobID: "j", Content: "hi"}, true, ""},
		{"self", MessageInput{SenderID: "a", ReceiverID: "a", JobID: "j", Content: "hi"}, false, "cannot message yourself"},
		{"too long", MessageInput{SenderID: "a", ReceiverID: "b", JobID: "j", Content: strings.Repeat("x", 4001)}, false, "message too long"},
		{"closed job", MessageInput{SenderID: "a", ReceiverID: "b", JobID: "j", JobStatus: "completed", Content: "hi"}, false, "job is closed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := engine.Evaluate(ctx, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.allow, d.Allow)
			assert.Equal(t, tc.reason, d.Reason)
		})
	}
}

func TestNewEngineRejectsInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package message_policy\n decision := {")
	assert.Error(t, err)
}
