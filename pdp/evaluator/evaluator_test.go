// pdp/evaluator/evaluator_test.go
package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	logger "github.com/gatekeeper-project/gatekeeper/logging"
	"github.com/gatekeeper-project/gatekeeper/model"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	defer logger.Sync()
	m.Run()
}

func fixedClock(hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(2025, time.March, 12, hour, minute, 0, 0, time.Local)
	}
}

func request(role, location, department, resource string) *model.AccessRequest {
	attrs := map[string]interface{}{}
	if role != "" {
		attrs["role"] = role
	}
	if location != "" {
		attrs["location"] = location
	}
	if department != "" {
		attrs["department"] = department
	}
	return &model.AccessRequest{
		UserID:         "alice",
		Resource:       resource,
		Action:         "read",
		Timestamp:      time.Now(),
		Context:        map[string]interface{}{},
		UserAttributes: attrs,
	}
}

func policyWithRule(rule string) *model.Policy {
	return &model.Policy{ID: "p1", Name: "test-policy", RuleBody: rule, Resource: "*", Action: "*", Active: true}
}

func TestAdminShortCircuit(t *testing.T) {
	e := NewBuiltinEvaluator()
	e.now = fixedClock(3, 0) // outside business hours

	// The admin token wins before any narrowing token can fire.
	rule := "admin business_hours office_location"
	assert.True(t, e.Evaluate(context.Background(), policyWithRule(rule), request("admin", "home", "", "docs")))
	assert.False(t, e.Evaluate(context.Background(), policyWithRule(rule), request("user", "home", "", "docs")))
}

func TestBusinessHours(t *testing.T) {
	tests := []struct {
		name   string
		hour   int
		minute int
		want   bool
	}{
		{"midday", 12, 30, true},
		{"start boundary", 9, 0, true},
		{"end boundary", 17, 0, true},
		{"before opening", 8, 59, false},
		{"evening", 18, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewBuiltinEvaluator()
			e.now = fixedClock(tt.hour, tt.minute)
			got := e.Evaluate(context.Background(), policyWithRule("business_hours"), request("user", "", "", "docs"))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOfficeLocation(t *testing.T) {
	e := NewBuiltinEvaluator()

	assert.True(t, e.Evaluate(context.Background(), policyWithRule("office_location"), request("user", "office", "", "docs")))
	assert.False(t, e.Evaluate(context.Background(), policyWithRule("office_location"), request("user", "home", "", "docs")))
	assert.False(t, e.Evaluate(context.Background(), policyWithRule("office_location"), request("user", "", "", "docs")))
}

func TestSensitiveRestriction(t *testing.T) {
	e := NewBuiltinEvaluator()

	// Marker in the rule body.
	assert.False(t, e.Evaluate(context.Background(), policyWithRule("sensitive"), request("user", "", "", "docs")))

	// Marker in the resource name, with an unrelated rule body.
	assert.False(t, e.Evaluate(context.Background(), policyWithRule("basic access"), request("user", "", "", "docs-sensitive")))

	// Admins pass both forms.
	assert.True(t, e.Evaluate(context.Background(), policyWithRule("sensitive"), request("admin", "", "", "docs")))
	assert.True(t, e.Evaluate(context.Background(), policyWithRule("basic access"), request("admin", "", "", "docs-sensitive")))
}

func TestDepartmentRestriction(t *testing.T) {
	e := NewBuiltinEvaluator()

	req := request("user", "", "engineering", "docs")
	req.Context["department"] = "engineering"
	assert.True(t, e.Evaluate(context.Background(), policyWithRule("department"), req))

	req = request("user", "", "sales", "docs")
	req.Context["department"] = "engineering"
	assert.False(t, e.Evaluate(context.Background(), policyWithRule("department"), req))

	// No required department in the context means no narrowing.
	req = request("user", "", "sales", "docs")
	assert.True(t, e.Evaluate(context.Background(), policyWithRule("department"), req))
}

func TestUnrecognizedRuleDefaultsToTrue(t *testing.T) {
	e := NewBuiltinEvaluator()

	// The deliberate default-permit fallback for catch-all rule bodies,
	// distinct from the engine's default deny when nothing applies.
	assert.True(t, e.Evaluate(context.Background(), policyWithRule("grant read to everyone"), request("user", "", "", "docs")))
	assert.True(t, e.Evaluate(context.Background(), policyWithRule(""), request("user", "", "", "docs")))
}

func TestNarrowingIsNotRestored(t *testing.T) {
	e := NewBuiltinEvaluator()
	e.now = fixedClock(20, 0)

	// Business hours narrows to false; the satisfied location token must
	// not bring the verdict back.
	got := e.Evaluate(context.Background(), policyWithRule("business_hours office_location"), request("user", "office", "", "docs"))
	assert.False(t, got)
}

func TestRuleMatchingIsCaseInsensitive(t *testing.T) {
	e := NewBuiltinEvaluator()

	assert.False(t, e.Evaluate(context.Background(), policyWithRule("OFFICE_LOCATION"), request("user", "home", "", "docs")))
}

func TestNonStringAttributesTolerated(t *testing.T) {
	e := NewBuiltinEvaluator()

	req := request("", "", "", "docs")
	req.UserAttributes["role"] = 42
	req.UserAttributes["location"] = true

	assert.False(t, e.Evaluate(context.Background(), policyWithRule("office_location"), req))
}
