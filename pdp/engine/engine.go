// pdp/engine/engine.go
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gatekeeper-project/gatekeeper/audit"
	logger "github.com/gatekeeper-project/gatekeeper/logging"
	"github.com/gatekeeper-project/gatekeeper/model"
	"github.com/gatekeeper-project/gatekeeper/pdp/cache"
	"github.com/gatekeeper-project/gatekeeper/pdp/evaluator"
)

// PolicyProvider supplies the ordered list of active policies applicable to
// a (resource, action) pair. In production this is the policy cache.
type PolicyProvider interface {
	ApplicablePolicies(ctx context.Context, resource, action string) ([]model.Policy, error)
}

// DecisionEngine orchestrates policy lookup, rule evaluation, precedence
// resolution, decision caching, and audit emission. Authorize is total: it
// never panics out and never returns nil.
type DecisionEngine struct {
	policies  PolicyProvider
	decisions cache.DecisionCache
	evaluator evaluator.Evaluator
	auditSvc  audit.Service
}

func NewDecisionEngine(policies PolicyProvider, decisions cache.DecisionCache, eval evaluator.Evaluator, auditSvc audit.Service) *DecisionEngine {
	return &DecisionEngine{
		policies:  policies,
		decisions: decisions,
		evaluator: eval,
		auditSvc:  auditSvc,
	}
}

// Authorize answers one access request. The worst-case outcome of any
// internal fault is a safe DENY, never a propagated error.
func (e *DecisionEngine) Authorize(ctx context.Context, request *model.AccessRequest) (decision *model.AccessDecision) {
	start := time.Now()
	fingerprint := Fingerprint(request)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic during authorization",
				zap.Any("panic", r),
				zap.String("userID", request.UserID),
				zap.String("resource", request.Resource))
			decision = model.NewDenyDecision(fmt.Sprintf("authorization service error: %v", r))
			decision.EvaluationMs = time.Since(start).Milliseconds()
			e.decisions.Put(ctx, fingerprint, decision)
			e.auditSvc.Record(ctx, request, decision)
		}
	}()

	if cached := e.decisions.Get(ctx, fingerprint); cached != nil {
		logger.Debug("Decision cache hit",
			zap.String("userID", request.UserID),
			zap.String("resource", request.Resource),
			zap.String("action", request.Action))
		return cached
	}

	applicable, err := e.policies.ApplicablePolicies(ctx, request.Resource, request.Action)
	if err != nil {
		logger.Error("Failed to fetch applicable policies",
			zap.Error(err),
			zap.String("resource", request.Resource),
			zap.String("action", request.Action))
		decision = model.NewDenyDecision("authorization service error: " + err.Error())
	} else {
		decision = e.evaluate(ctx, request, applicable)
	}

	decision.EvaluationMs = time.Since(start).Milliseconds()
	e.decisions.Put(ctx, fingerprint, decision)
	e.auditSvc.Record(ctx, request, decision)

	return decision
}

// evaluate walks the applicable policies in priority order. Every evaluated
// policy lands in AppliedPolicies for auditability, matched or not. The
// first deny-class policy that evaluates true terminates evaluation: strict
// deny-override, with priority ordering controlling which deny fires first.
func (e *DecisionEngine) evaluate(ctx context.Context, request *model.AccessRequest, policies []model.Policy) *model.AccessDecision {
	appliedPolicies := []string{}
	hasPermit := false
	denyReason := ""

	for i := range policies {
		policy := &policies[i]
		result := e.evaluator.Evaluate(ctx, policy, request)
		appliedPolicies = append(appliedPolicies, policy.Name)

		if !result {
			continue
		}

		if isDenyClass(policy.Name) {
			denyReason = "denied by policy: " + policy.Name
			break
		}
		// Permit markers and unclassified names both count as permits.
		hasPermit = true
	}

	decision := &model.AccessDecision{
		EvaluatedAt:     time.Now(),
		AppliedPolicies: appliedPolicies,
	}

	switch {
	case denyReason != "":
		decision.Allowed = false
		decision.Decision = model.DecisionDeny
		decision.Reason = denyReason
	case hasPermit:
		decision.Allowed = true
		decision.Decision = model.DecisionPermit
		decision.Reason = "access granted by applicable policies"
	default:
		decision.Allowed = false
		decision.Decision = model.DecisionDeny
		decision.Reason = "no applicable permit policies found"
	}

	return decision
}

// isDenyClass classifies a policy by its name. Deny markers win over permit
// markers; names matching neither are treated as permit-class.
func isDenyClass(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "deny") || strings.Contains(lower, "block")
}

// Fingerprint digests the fields that determine decision equivalence. Two
// requests with the same fingerprint are interchangeable for caching even if
// their timestamps differ. Map encoding is deterministic: encoding/json
// sorts map keys.
func Fingerprint(request *model.AccessRequest) string {
	contextJSON, _ := json.Marshal(request.Context)
	attrsJSON, _ := json.Marshal(request.UserAttributes)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s",
		request.UserID,
		request.Resource,
		request.Action,
		contextJSON,
		attrsJSON)
	return hex.EncodeToString(h.Sum(nil))
}
