// model/access.go
package model

import "time"

// AccessRequest is a single authorization question: may this principal
// perform this action on this resource. Immutable once constructed.
type AccessRequest struct {
	UserID             string                 `json:"user_id"`
	Resource           string                 `json:"resource"`
	Action             string                 `json:"action"`
	ClientIP           string                 `json:"client_ip,omitempty"`
	Timestamp          time.Time              `json:"timestamp"`
	Context            map[string]interface{} `json:"context,omitempty"`
	UserAttributes     map[string]interface{} `json:"user_attributes,omitempty"`
	ResourceAttributes map[string]interface{} `json:"resource_attributes,omitempty"`
}

const (
	DecisionPermit = "PERMIT"
	DecisionDeny   = "DENY"
)

// AccessDecision is the engine's answer. AppliedPolicies lists every policy
// that was evaluated, not just the ones that matched.
type AccessDecision struct {
	Allowed         bool      `json:"allowed"`
	Decision        string    `json:"decision"` // "PERMIT" or "DENY"
	Reason          string    `json:"reason"`
	AppliedPolicies []string  `json:"applied_policies"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
	EvaluationMs    int64     `json:"evaluation_time_ms"`
}

// NewDenyDecision builds a deny with the given reason and no applied policies.
func NewDenyDecision(reason string) *AccessDecision {
	return &AccessDecision{
		Allowed:         false,
		Decision:        DecisionDeny,
		Reason:          reason,
		AppliedPolicies: []string{},
		EvaluatedAt:     time.Now(),
	}
}
