// test/mock/authorizer.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gatekeeper-project/gatekeeper/model"
)

// MockAuthorizer is a mock implementation of controller.Authorizer
type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) Authorize(ctx context.Context, request *model.AccessRequest) *model.AccessDecision {
	args := m.Called(ctx, request)
	return args.Get(0).(*model.AccessDecision)
}
