// test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/gatekeeper-project/gatekeeper/audit"
	"github.com/gatekeeper-project/gatekeeper/model"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Record(ctx context.Context, request *model.AccessRequest, decision *model.AccessDecision) {
	m.Called(ctx, request, decision)
}

func (m *MockAuditService) QueryLogs(ctx context.Context, from, to time.Time, userID, resource string) ([]audit.AuditLog, error) {
	args := m.Called(ctx, from, to, userID, resource)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.AuditLog), args.Error(1)
}
