// Package policy evaluates OPA rules deciding whether a chat message may be
// relayed upstream.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Decisions returned by the message policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Query is the rule every message policy module must define.
const Query = "data.relay.message.verdict"

// Input is the document the policy is evaluated against.
type Input struct {
	Message   string `json:"message"`
	ThreadID  string `json:"thread_id,omitempty"`
	NewThread bool   `json:"new_thread"`
	MaxChars  int    `json:"max_chars"`
}

// Verdict is the outcome of a policy evaluation.
type Verdict struct {
	Decision string
	Reason   string
}

// Allowed reports whether the message may be relayed.
func (v Verdict) Allowed() bool {
	return v.Decision != DecisionBlock
}

// Engine is the OPA policy engine.
type Engine struct {
	query    rego.PreparedEvalQuery
	maxChars int
}

// NewEngine creates a new policy engine with the given policy content.
// maxChars is exposed to the policy as input.max_chars.
func NewEngine(ctx context.Context, policyContent string, maxChars int) (*Engine, error) {
	r := rego.New(
		rego.Query(Query),
		rego.Module("message_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query, maxChars: maxChars}, nil
}

// NewEngineFromFile loads the policy module from path, or uses
// DefaultPolicy when path is empty.
func NewEngineFromFile(ctx context.Context, path string, maxChars int) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy, maxChars)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	return NewEngine(ctx, string(content), maxChars)
}

// Evaluate checks a message against the policy. The rule may produce either a
// bare decision string or an object {"decision": ..., "reason": ...}.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Verdict, error) {
	input.MaxChars = e.maxChars

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Verdict{Decision: DecisionAllow, Reason: "default"}, nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return Verdict{Decision: val}, nil
	case map[string]interface{}:
		v := Verdict{Decision: DecisionAllow}
		if d, ok := val["decision"].(string); ok && d != "" {
			v.Decision = d
		}
		if r, ok := val["reason"].(string); ok {
			v.Reason = r
		}
		return v, nil
	default:
		return Verdict{}, fmt.Errorf("unexpected policy result type %T", val)
	}
}

// DefaultPolicy allows every message unless max_chars is positive and the
// message is longer than that.
const DefaultPolicy = `
package relay.message

default verdict := {"decision": "allow"}

verdict := {"decision": "block", "reason": sprintf("message exceeds %d characters", [input.max_chars])} if {
	input.max_chars > 0
	count(input.message) > input.max_chars
}
`
