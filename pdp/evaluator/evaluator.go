// pdp/evaluator/evaluator.go
package evaluator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	logger "github.com/gatekeeper-project/gatekeeper/logging"
	"github.com/gatekeeper-project/gatekeeper/model"
)

// Evaluator decides whether a single policy matches a single request.
// Implementations never propagate a fault: every internal error downgrades
// to false so evaluation can continue with the next policy.
type Evaluator interface {
	Evaluate(ctx context.Context, policy *model.Policy, request *model.AccessRequest) bool
}

// BuiltinEvaluator matches the policy rule body against a small fixed
// vocabulary of semantic tokens. Tokens run in a fixed order and can only
// narrow the verdict to false; once narrowed, no later token restores it.
// A rule body matching no token evaluates to true — the deliberate
// default-permit fallback for catch-all policies.
type BuiltinEvaluator struct {
	now func() time.Time
}

func NewBuiltinEvaluator() *BuiltinEvaluator {
	return &BuiltinEvaluator{now: time.Now}
}

func (e *BuiltinEvaluator) Evaluate(ctx context.Context, policy *model.Policy, request *model.AccessRequest) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic evaluating policy",
				zap.Any("panic", r),
				zap.String("policyName", policy.Name))
			result = false
		}
	}()

	rule := strings.ToLower(policy.RuleBody)
	userAttrs := request.UserAttributes

	logger.Debug("Evaluating policy",
		zap.String("policyName", policy.Name),
		zap.String("rule", rule))

	// Administrative scope short-circuits to true before any narrowing.
	if strings.Contains(rule, "admin") && stringAttr(userAttrs, "role") == "admin" {
		logger.Debug("Admin access granted", zap.String("policyName", policy.Name))
		return true
	}

	if strings.Contains(rule, "business_hours") {
		if !e.isBusinessHours() {
			logger.Debug("Access denied - outside business hours", zap.String("policyName", policy.Name))
			return false
		}
	}

	if strings.Contains(rule, "office_location") {
		if stringAttr(userAttrs, "location") != "office" {
			logger.Debug("Access denied - not in office location", zap.String("policyName", policy.Name))
			return false
		}
	}

	if strings.Contains(rule, "sensitive") || strings.Contains(request.Resource, "sensitive") {
		if stringAttr(userAttrs, "role") != "admin" {
			logger.Debug("Access denied - insufficient privileges for sensitive resource",
				zap.String("policyName", policy.Name))
			return false
		}
	}

	if strings.Contains(rule, "department") {
		requiredDept := stringAttr(request.Context, "department")
		userDept := stringAttr(userAttrs, "department")
		if requiredDept != "" && requiredDept != userDept {
			logger.Debug("Access denied - department mismatch",
				zap.String("userDepartment", userDept),
				zap.String("requiredDepartment", requiredDept))
			return false
		}
	}

	logger.Debug("Access granted", zap.String("policyName", policy.Name))
	return true
}

// Business hours are 09:00-17:00 inclusive on the evaluation-service clock.
func (e *BuiltinEvaluator) isBusinessHours() bool {
	now := e.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, now.Location())
	end := time.Date(now.Year(), now.Month(), now.Day(), 17, 0, 0, 0, now.Location())
	return !now.Before(start) && !now.After(end)
}

func stringAttr(attrs map[string]interface{}, key string) string {
	if attrs == nil {
		return ""
	}
	value, ok := attrs[key].(string)
	if !ok {
		return ""
	}
	return value
}
