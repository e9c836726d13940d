// Package policyopa gates generation requests with a rego bundle loaded from
// disk. The bundle may only call deterministic builtins, so the same input
// and bundle hash always yield the same decision.
package policyopa

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"sealtrail/internal/domain"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const (
	resultQuery        = "data.sealtrail.policy.result"
	defaultEvalTimeout = 2 * time.Second

	// DenyUndefined is reported when the bundle produces no result document.
	DenyUndefined = "POLICY_UNDEFINED"
)

var ErrForbiddenBuiltin = errors.New("policy calls a forbidden builtin")

type Engine struct {
	prepared    rego.PreparedEvalQuery
	bundleID    string
	bundleHash  string
	evalTimeout time.Duration
}

type Option func(*Engine)

// WithEvalTimeout bounds a single evaluation. Zero keeps the default.
func WithEvalTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.evalTimeout = d
		}
	}
}

// NewEngineFromBundlePath compiles every rego file under dir and fails when
// any of them calls a builtin outside the deterministic set.
func NewEngineFromBundlePath(ctx context.Context, dir, bundleID string, opts ...Option) (*Engine, error) {
	hash, err := ComputeBundleHashFromPath(dir)
	if err != nil {
		return nil, fmt.Errorf("hash bundle %s: %w", bundleID, err)
	}

	compiler := ast.NewCompiler().WithCapabilities(deterministicCapabilities())
	prepared, err := rego.New(
		rego.Query(resultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{dir}, nil),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile bundle %s: %w", bundleID, err)
	}
	if names := forbiddenCalls(compiler); len(names) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrForbiddenBuiltin, strings.Join(names, ", "))
	}

	e := &Engine{
		prepared:    prepared,
		bundleID:    bundleID,
		bundleHash:  hash,
		evalTimeout: defaultEvalTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) BundleHash() string { return e.bundleHash }

func (e *Engine) BundleID() string { return e.bundleID }

func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error) {
	if e == nil {
		return domain.PolicyEvaluation{}, errors.New("policy engine not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, e.evalTimeout)
	defer cancel()

	rs, err := e.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyEvaluation{}, fmt.Errorf("evaluate bundle %s: %w", e.bundleID, err)
	}

	out := domain.PolicyEvaluation{BundleID: e.bundleID, BundleHash: e.bundleHash}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		out.Result = domain.PolicyResult{
			Deny: []domain.PolicyDeny{{Code: DenyUndefined, Message: "policy produced no result"}},
		}
		return out, nil
	}
	result, err := resultFromValue(rs[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyEvaluation{}, fmt.Errorf("bundle %s: %w", e.bundleID, err)
	}
	normalizePolicyResult(&result)
	out.Result = result
	return out, nil
}

// resultFromValue reads the {"allow": bool, "deny": [...]} document that the
// bundle's result rule produces.
func resultFromValue(v any) (domain.PolicyResult, error) {
	doc, ok := v.(map[string]any)
	if !ok {
		return domain.PolicyResult{}, fmt.Errorf("result is %T, want object", v)
	}
	var result domain.PolicyResult
	if allow, ok := doc["allow"]; ok {
		b, ok := allow.(bool)
		if !ok {
			return domain.PolicyResult{}, fmt.Errorf("allow is %T, want bool", allow)
		}
		result.Allow = b
	}
	raw, _ := doc["deny"].([]any)
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			return domain.PolicyResult{}, fmt.Errorf("deny entry is %T, want object", item)
		}
		code, _ := entry["code"].(string)
		if code == "" {
			return domain.PolicyResult{}, errors.New("deny entry without code")
		}
		msg, _ := entry["message"].(string)
		result.Deny = append(result.Deny, domain.PolicyDeny{Code: code, Message: msg})
	}
	return result, nil
}

// normalizePolicyResult sorts deny entries by code then message. Any deny
// entry forces allow to false.
func normalizePolicyResult(result *domain.PolicyResult) {
	if result == nil {
		return
	}
	sort.SliceStable(result.Deny, func(i, j int) bool {
		a, b := result.Deny[i], result.Deny[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Message < b.Message
	})
	result.Allow = result.Allow && len(result.Deny) == 0
}

// forbiddenCalls lists builtins referenced by the compiled modules that are
// not in the deterministic set.
func forbiddenCalls(compiler *ast.Compiler) []string {
	seen := map[string]bool{}
	for _, mod := range compiler.Modules {
		ast.WalkTerms(mod, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, builtin := ast.BuiltinMap[name]; builtin && !isDeterministic(name) {
				seen[name] = true
			}
			return false
		})
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
