// audit/model.go
package audit

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	Timestamp      time.Time       `json:"timestamp"`
	UserID         string          `json:"user_id"`
	Resource       string          `json:"resource"`
	Action         string          `json:"action"`
	Decision       string          `json:"decision"`
	Reason         string          `json:"reason"`
	ClientIP       string          `json:"client_ip,omitempty"`
	RequestContext json.RawMessage `json:"request_context,omitempty"`
	EvaluationMs   int64           `json:"evaluation_time_ms"`
}
