// Package policy gates the send-for-signature operation on a Rego
// policy bundle. Deployments without a bundle configured skip the gate
// entirely.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/open-policy-agent/opa/rego"

	"signet/internal/domain"
)

const sendQuery = "data.signet.send.allow"

type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine loads the Rego bundle at path and prepares the send query.
func NewEngine(ctx context.Context, path string) (*Engine, error) {
	prepared, err := rego.New(
		rego.Query(sendQuery),
		rego.Load([]string{path}, nil),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy query: %w", err)
	}
	return &Engine{query: prepared}, nil
}

// Evaluate returns domain.ErrPolicyDenied unless the policy explicitly
// allows sending this contract out for signature.
func (e *Engine) Evaluate(ctx context.Context, contract domain.Contract) error {
	input := map[string]any{
		"contract_id": contract.ID,
		"status":      string(contract.Status),
		"type":        contract.Type,
		"category":    contract.Category,
		"priority":    contract.Priority,
		"tags":        contract.Tags,
		"party_count": len(contract.Parties),
		"created_at":  contract.CreatedAt.UTC().Format(time.RFC3339),
	}
	if contract.Amount != nil {
		input["amount"] = *contract.Amount
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return fmt.Errorf("policy eval: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.ErrPolicyDenied
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok || !allowed {
		return domain.ErrPolicyDenied
	}
	return nil
}
