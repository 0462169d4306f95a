// model/policy.go
package model

import (
	"time"
)

// Policy governs whether a principal may perform an action on a resource.
// Name is unique across all policies and doubles as a precedence-class hint:
// the engine inspects it for deny/permit markers when a rule evaluates true.
type Policy struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	RuleBody    string    `json:"rule_body"`
	Resource    string    `json:"resource"` // "*" matches any resource
	Action      string    `json:"action"`   // "*" matches any action
	Active      bool      `json:"active"`
	Priority    int       `json:"priority"` // higher evaluates first
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AppliesTo reports whether the policy's resource and action patterns
// cover the given resource and action. An empty pattern behaves like "*".
func (p *Policy) AppliesTo(resource, action string) bool {
	resourceOK := p.Resource == "" || p.Resource == "*" || p.Resource == resource
	actionOK := p.Action == "" || p.Action == "*" || p.Action == action
	return resourceOK && actionOK
}

type PolicySearchCriteria struct {
	Name        string `json:"name,omitempty"`
	Active      *bool  `json:"active,omitempty"`
	MinPriority int    `json:"min_priority,omitempty"`
	MaxPriority int    `json:"max_priority,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}
