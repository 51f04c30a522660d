package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
}

// MessageInput is the document the message policy sees as input.
type MessageInput struct {
	SenderID      string `json:"sender_id"`
	ReceiverID    string `json:"receiver_id"`
	JobID         string `json:"job_id"`
	JobStatus     string `json:"job_status,omitempty"`
	Content       string `json:"content"`
	ContentLength int    `json:"content_length"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares policyContent. The module must define
// data.message_policy.decision as an object with allow and reason.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.message_policy.decision"),
		rego.Module("message_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate runs the policy against a message about to be sent.
func (e *Engine) Evaluate(ctx context.Context, input MessageInput) (Decision, error) {
	if input.ContentLength == 0 {
		input.ContentLength = len([]rune(input.Content))
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{}, fmt.Errorf("policy produced no decision")
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("unexpected decision type %T", results[0].Expressions[0].Value)
	}
	d := Decision{}
	d.Allow, _ = obj["allow"].(bool)
	d.Reason, _ = obj["reason"].(string)
	return d, nil
}

// DefaultPolicy is the built-in message policy.
const DefaultPolicy = `
package message_policy

import rego.v1

max_length := 4000

closed_statuses := {"completed", "cancelled"}

default decision := {"allow": true, "reason": ""}

decision := {"allow": false, "reason": "cannot message yourself"} if {
	input.sender_id == input.receiver_id
}

decision := {"allow": false, "reason": "message too long"} if {
	input.sender_id != input.receiver_id
	input.content_length > max_length
}

decision := {"allow": false, "reason": "job is closed"} if {
	input.sender_id != input.receiver_id
	input.content_length <= max_length
	closed_statuses[input.job_status]
}
`
