// controller/policy_controller_test.go
package controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	testify_mock "github.com/stretchr/testify/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-project/gatekeeper/controller"
	gk_errors "github.com/gatekeeper-project/gatekeeper/errors"
	"github.com/gatekeeper-project/gatekeeper/middleware"
	"github.com/gatekeeper-project/gatekeeper/model"
	"github.com/gatekeeper-project/gatekeeper/test/mock"
)

func setupPolicyRouter(svc *mock.MockPolicyService) *gin.Engine {
	router := gin.New()
	api := router.Group("/api/v1", middleware.PrincipalAttributes())
	controller.NewPolicyController(svc).RegisterRoutes(api)
	return router
}

func adminHeaders() map[string]string {
	return map[string]string{"X-User-Id": "root", "X-User-Role": "admin"}
}

func policyRequest(method, path, body string, headers map[string]string) *http.Request {
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	return req
}

const validPolicyBody = `{
	"name": "office-only",
	"description": "Office workers during business hours",
	"rule_body": "business_hours office_location",
	"resource": "documents",
	"action": "read",
	"priority": 10
}`

func TestCreatePolicy(t *testing.T) {
	mockService := new(mock.MockPolicyService)
	created := &model.Policy{ID: "p1", Name: "office-only", RuleBody: "business_hours office_location", Active: true, Priority: 10}

	var captured model.Policy
	mockService.On("CreatePolicy", testify_mock.Anything, testify_mock.Anything).
		Run(func(args testify_mock.Arguments) {
			captured = args.Get(1).(model.Policy)
		}).
		Return(created, nil)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodPost, "/api/v1/policies", validPolicyBody, adminHeaders()))

	require.Equal(t, http.StatusCreated, w.Code)

	var got model.Policy
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "p1", got.ID)

	// Active defaults to true when the field is omitted.
	assert.True(t, captured.Active)
	assert.Equal(t, 10, captured.Priority)
	mockService.AssertExpectations(t)
}

func TestCreatePolicyConflict(t *testing.T) {
	mockService := new(mock.MockPolicyService)
	mockService.On("CreatePolicy", testify_mock.Anything, testify_mock.Anything).
		Return(nil, gk_errors.ErrPolicyConflict)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodPost, "/api/v1/policies", validPolicyBody, adminHeaders()))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreatePolicyInvalidBody(t *testing.T) {
	mockService := new(mock.MockPolicyService)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodPost, "/api/v1/policies", `{"name": "no-rule"}`, adminHeaders()))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "CreatePolicy")
}

func TestCreatePolicyRequiresAdmin(t *testing.T) {
	mockService := new(mock.MockPolicyService)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodPost, "/api/v1/policies", validPolicyBody,
		map[string]string{"X-User-Id": "alice", "X-User-Role": "user"}))

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertNotCalled(t, "CreatePolicy")
}

func TestUpdatePolicy(t *testing.T) {
	mockService := new(mock.MockPolicyService)
	updated := &model.Policy{ID: "p1", Name: "office-only", RuleBody: "office_location", Active: true, Priority: 20}

	var captured model.Policy
	mockService.On("UpdatePolicy", testify_mock.Anything, testify_mock.Anything).
		Run(func(args testify_mock.Arguments) {
			captured = args.Get(1).(model.Policy)
		}).
		Return(updated, nil)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodPut, "/api/v1/policies/p1",
		`{"name": "office-only", "rule_body": "office_location", "priority": 20, "active": false}`, adminHeaders()))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p1", captured.ID)
	assert.False(t, captured.Active)
}

func TestUpdatePolicyNotFound(t *testing.T) {
	mockService := new(mock.MockPolicyService)
	mockService.On("UpdatePolicy", testify_mock.Anything, testify_mock.Anything).
		Return(nil, gk_errors.ErrPolicyNotFound)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodPut, "/api/v1/policies/missing", validPolicyBody, adminHeaders()))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletePolicy(t *testing.T) {
	mockService := new(mock.MockPolicyService)
	mockService.On("DeletePolicy", testify_mock.Anything, "p1").Return(nil)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodDelete, "/api/v1/policies/p1", "", adminHeaders()))

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockService.AssertExpectations(t)
}

func TestDeletePolicyNotFound(t *testing.T) {
	mockService := new(mock.MockPolicyService)
	mockService.On("DeletePolicy", testify_mock.Anything, "missing").Return(gk_errors.ErrPolicyNotFound)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodDelete, "/api/v1/policies/missing", "", adminHeaders()))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPolicyOpenToAnyPrincipal(t *testing.T) {
	mockService := new(mock.MockPolicyService)
	mockService.On("GetPolicy", testify_mock.Anything, "p1").
		Return(&model.Policy{ID: "p1", Name: "office-only", Active: true}, nil)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodGet, "/api/v1/policies/p1", "",
		map[string]string{"X-User-Id": "alice", "X-User-Role": "user"}))

	require.Equal(t, http.StatusOK, w.Code)

	var got model.Policy
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "office-only", got.Name)
}

func TestListPoliciesPagination(t *testing.T) {
	mockService := new(mock.MockPolicyService)
	mockService.On("ListPolicies", testify_mock.Anything, 5, 10).
		Return([]model.Policy{{ID: "p1"}, {ID: "p2"}}, nil)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodGet, "/api/v1/policies?limit=5&offset=10", "",
		map[string]string{"X-User-Id": "alice"}))

	require.Equal(t, http.StatusOK, w.Code)

	var got []model.Policy
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	mockService.AssertExpectations(t)
}

func TestListPoliciesInvalidPagination(t *testing.T) {
	mockService := new(mock.MockPolicyService)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodGet, "/api/v1/policies?limit=abc", "",
		map[string]string{"X-User-Id": "alice"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "ListPolicies")
}

func TestSearchPolicies(t *testing.T) {
	mockService := new(mock.MockPolicyService)

	var captured model.PolicySearchCriteria
	mockService.On("SearchPolicies", testify_mock.Anything, testify_mock.Anything).
		Run(func(args testify_mock.Arguments) {
			captured = args.Get(1).(model.PolicySearchCriteria)
		}).
		Return([]model.Policy{{ID: "p1", Name: "deny-sensitive"}}, nil)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodGet,
		"/api/v1/policies/search?name=deny&active=true&min_priority=5&limit=20", "",
		map[string]string{"X-User-Id": "alice"}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "deny", captured.Name)
	require.NotNil(t, captured.Active)
	assert.True(t, *captured.Active)
	assert.Equal(t, 5, captured.MinPriority)
	assert.Equal(t, 20, captured.Limit)
}

func TestSearchPoliciesInvalidCriteria(t *testing.T) {
	mockService := new(mock.MockPolicyService)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodGet, "/api/v1/policies/search?active=maybe", "",
		map[string]string{"X-User-Id": "alice"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "SearchPolicies")
}

func TestClearCache(t *testing.T) {
	mockService := new(mock.MockPolicyService)
	mockService.On("ClearCaches", testify_mock.Anything).Return(nil)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodPost, "/api/v1/policies/cache/clear", "", adminHeaders()))

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestClearCacheRequiresAdmin(t *testing.T) {
	mockService := new(mock.MockPolicyService)

	router := setupPolicyRouter(mockService)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, policyRequest(http.MethodPost, "/api/v1/policies/cache/clear", "",
		map[string]string{"X-User-Id": "alice", "X-User-Role": "user"}))

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertNotCalled(t, "ClearCaches")
}
