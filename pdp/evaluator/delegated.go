// pdp/evaluator/delegated.go
package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	logger "github.com/gatekeeper-project/gatekeeper/logging"
	"github.com/gatekeeper-project/gatekeeper/model"
)

// DelegatedEvaluator forwards each policy evaluation to an external decision
// service (an OPA-compatible endpoint). The call is synchronous, per-policy,
// and bounded by the client timeout; any network failure, timeout, or
// malformed response counts as a non-match.
type DelegatedEvaluator struct {
	endpoint string
	client   *http.Client
}

func NewDelegatedEvaluator(baseURL string, timeout time.Duration) *DelegatedEvaluator {
	return &DelegatedEvaluator{
		endpoint: baseURL + "/v1/data/gatekeeper/authz/allow",
		client:   &http.Client{Timeout: timeout},
	}
}

type evaluationInput struct {
	User      map[string]interface{} `json:"user"`
	Resource  string                 `json:"resource"`
	Action    string                 `json:"action"`
	Timestamp string                 `json:"timestamp"`
	Context   map[string]interface{} `json:"context"`
}

func (e *DelegatedEvaluator) Evaluate(ctx context.Context, policy *model.Policy, request *model.AccessRequest) bool {
	payload := map[string]interface{}{
		"input": evaluationInput{
			User:      request.UserAttributes,
			Resource:  request.Resource,
			Action:    request.Action,
			Timestamp: request.Timestamp.Format(time.RFC3339),
			Context:   request.Context,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error building evaluation input",
			zap.Error(err),
			zap.String("policyName", policy.Name))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		logger.Error("Error building evaluation request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		logger.Error("Error calling decision service",
			zap.Error(err),
			zap.String("policyName", policy.Name))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("Decision service returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.String("policyName", policy.Name))
		return false
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logger.Error("Malformed decision service response",
			zap.Error(err),
			zap.String("policyName", policy.Name))
		return false
	}

	verdict, ok := result["result"].(bool)
	if !ok {
		logger.Warn("Decision service response missing boolean result",
			zap.String("policyName", policy.Name),
			zap.String("response", fmt.Sprintf("%v", result)))
		return false
	}

	return verdict
}
