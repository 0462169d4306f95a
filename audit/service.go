// audit/service.go
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	logger "github.com/gatekeeper-project/gatekeeper/logging"
	"github.com/gatekeeper-project/gatekeeper/model"
)

// Service records every authorization decision. Record is fire-and-forget:
// it returns before the write completes and failures never reach the caller.
type Service interface {
	Record(ctx context.Context, request *model.AccessRequest, decision *model.AccessDecision)
	QueryLogs(ctx context.Context, from, to time.Time, userID, resource string) ([]AuditLog, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Record(ctx context.Context, request *model.AccessRequest, decision *model.AccessDecision) {
	entry := AuditLog{
		Timestamp:    request.Timestamp,
		UserID:       request.UserID,
		Resource:     request.Resource,
		Action:       request.Action,
		Decision:     decision.Decision,
		Reason:       decision.Reason,
		ClientIP:     request.ClientIP,
		EvaluationMs: decision.EvaluationMs,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if contextJSON, err := json.Marshal(request.Context); err == nil {
		entry.RequestContext = contextJSON
	} else {
		logger.Warn("Error serializing request context", zap.Error(err))
		entry.RequestContext = json.RawMessage("{}")
	}

	// The audit write runs detached from the request so a slow or failing
	// sink never delays the decision.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic while writing audit log", zap.Any("panic", r))
			}
		}()
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.Index(writeCtx, entry); err != nil {
			logger.Error("Error saving audit log",
				zap.Error(err),
				zap.String("userID", entry.UserID),
				zap.String("resource", entry.Resource))
		}
	}()
}

func (s *service) QueryLogs(ctx context.Context, from, to time.Time, userID, resource string) ([]AuditLog, error) {
	return s.repo.QueryLogs(ctx, from, to, userID, resource)
}
