package authz

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

//go:embed policy.rego
var policySource string

const decisionQuery = "data.ticketing.authz.decision"

// Request is the input document the policy sees.
type Request struct {
	Method string   `json:"method"`
	Path   []string `json:"path"`
	Role   string   `json:"role"`
	UserID int64    `json:"user_id"`
}

type Decision struct {
	Allowed bool
	Reason  string
}

// Authorizer evaluates the embedded route policy. A prepared query is safe
// for concurrent use.
type Authorizer struct {
	query rego.PreparedEvalQuery
}

func NewAuthorizer(ctx context.Context) (*Authorizer, error) {
	return NewAuthorizerFromSource(ctx, policySource)
}

// NewAuthorizerFromSource compiles a policy module that defines
// data.ticketing.authz.decision.
func NewAuthorizerFromSource(ctx context.Context, source string) (*Authorizer, error) {
	query, err := rego.New(
		rego.Query(decisionQuery),
		rego.Module("policy.rego", source),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile authorization policy: %w", err)
	}
	return &Authorizer{query: query}, nil
}

// SplitPath turns a URL path into the segment list the policy matches on.
func SplitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "/")
}

func NewRequest(method, path string, principal Principal) Request {
	return Request{
		Method: strings.ToUpper(method),
		Path:   SplitPath(path),
		Role:   string(principal.Role),
		UserID: principal.UserID,
	}
}

func (authorizer *Authorizer) Authorize(ctx context.Context, request Request) (Decision, error) {
	if request.Role == "" {
		request.Role = string(model.RoleAnonymous)
	}
	input := map[string]any{
		"method":  request.Method,
		"path":    request.Path,
		"role":    request.Role,
		"user_id": request.UserID,
	}

	results, err := authorizer.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate authorization policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Reason: "policy produced no decision"}, nil
	}

	document, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected policy decision %T", results[0].Expressions[0].Value)
	}
	decision := Decision{}
	decision.Allowed, _ = document["allowed"].(bool)
	decision.Reason, _ = document["reason"].(string)
	return decision, nil
}
