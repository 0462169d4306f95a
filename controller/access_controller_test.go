// controller/access_controller_test.go
package controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	testify_mock "github.com/stretchr/testify/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-project/gatekeeper/controller"
	logger "github.com/gatekeeper-project/gatekeeper/logging"
	"github.com/gatekeeper-project/gatekeeper/middleware"
	"github.com/gatekeeper-project/gatekeeper/model"
	"github.com/gatekeeper-project/gatekeeper/test/mock"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.InitLogger()
	defer logger.Sync()
	m.Run()
}

func setupAccessRouter(engine controller.Authorizer) *gin.Engine {
	router := gin.New()
	api := router.Group("/api/v1", middleware.PrincipalAttributes())
	controller.NewAccessController(engine).RegisterRoutes(api)
	return router
}

func authorizeRequest(body string, headers map[string]string) *http.Request {
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/authorize", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	return req
}

func TestAuthorizeReturnsDecision(t *testing.T) {
	mockEngine := new(mock.MockAuthorizer)
	permit := &model.AccessDecision{
		Allowed:         true,
		Decision:        model.DecisionPermit,
		Reason:          "access granted by applicable policies",
		AppliedPolicies: []string{"office-only"},
		EvaluatedAt:     time.Now(),
	}

	var captured *model.AccessRequest
	mockEngine.On("Authorize", testify_mock.Anything, testify_mock.Anything).
		Run(func(args testify_mock.Arguments) {
			captured = args.Get(1).(*model.AccessRequest)
		}).
		Return(permit)

	router := setupAccessRouter(mockEngine)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authorizeRequest(
		`{"resource": "documents", "action": "read", "context": {"department": "engineering"}}`,
		map[string]string{
			"X-User-Id":        "alice",
			"X-User-Role":      "user",
			"X-User-Location":  "office",
			"X-User-Attr-Team": "platform",
			"X-Forwarded-For":  "10.1.2.3, 172.16.0.1",
		},
	))

	require.Equal(t, http.StatusOK, w.Code)

	var decision model.AccessDecision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	assert.True(t, decision.Allowed)
	assert.Equal(t, model.DecisionPermit, decision.Decision)
	assert.Equal(t, []string{"office-only"}, decision.AppliedPolicies)

	require.NotNil(t, captured)
	assert.Equal(t, "alice", captured.UserID)
	assert.Equal(t, "documents", captured.Resource)
	assert.Equal(t, "read", captured.Action)
	assert.Equal(t, "10.1.2.3", captured.ClientIP)
	assert.Equal(t, "user", captured.UserAttributes["role"])
	assert.Equal(t, "office", captured.UserAttributes["location"])
	assert.Equal(t, "platform", captured.UserAttributes["team"])
	assert.Equal(t, "engineering", captured.Context["department"])
	mockEngine.AssertExpectations(t)
}

func TestAuthorizeDenyIsStillOK(t *testing.T) {
	mockEngine := new(mock.MockAuthorizer)
	mockEngine.On("Authorize", testify_mock.Anything, testify_mock.Anything).
		Return(model.NewDenyDecision("no applicable permit policies found"))

	router := setupAccessRouter(mockEngine)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authorizeRequest(
		`{"resource": "documents", "action": "delete"}`,
		map[string]string{"X-User-Id": "alice"},
	))

	require.Equal(t, http.StatusOK, w.Code)

	var decision model.AccessDecision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	assert.False(t, decision.Allowed)
	assert.Equal(t, model.DecisionDeny, decision.Decision)
}

func TestAuthorizeRejectsMissingFields(t *testing.T) {
	mockEngine := new(mock.MockAuthorizer)

	router := setupAccessRouter(mockEngine)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authorizeRequest(
		`{"resource": "documents"}`,
		map[string]string{"X-User-Id": "alice"},
	))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockEngine.AssertNotCalled(t, "Authorize")
}

func TestAuthorizeRequiresPrincipal(t *testing.T) {
	mockEngine := new(mock.MockAuthorizer)

	router := setupAccessRouter(mockEngine)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authorizeRequest(`{"resource": "documents", "action": "read"}`, nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockEngine.AssertNotCalled(t, "Authorize")
}
