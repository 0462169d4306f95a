// controller/policy_controller.go
package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	gk_errors "github.com/gatekeeper-project/gatekeeper/errors"
	"github.com/gatekeeper-project/gatekeeper/middleware"
	"github.com/gatekeeper-project/gatekeeper/model"
	"github.com/gatekeeper-project/gatekeeper/service"
	"github.com/gatekeeper-project/gatekeeper/util"
	helper_util "github.com/gatekeeper-project/gatekeeper/util/helper"
)

type PolicyController struct {
	policyService service.IPolicyService
}

func NewPolicyController(policyService service.IPolicyService) *PolicyController {
	return &PolicyController{
		policyService: policyService,
	}
}

// RegisterRoutes registers the API routes. Mutations and the cache flush are
// admin-only; reads are open to any authenticated principal.
func (pc *PolicyController) RegisterRoutes(r *gin.RouterGroup) {
	policies := r.Group("/policies")
	{
		policies.GET("", pc.ListPolicies)
		policies.GET("/search", pc.SearchPolicies)
		policies.GET("/:id", pc.GetPolicy)

		admin := policies.Group("", middleware.RequireRole("admin"))
		{
			admin.POST("", pc.CreatePolicy)
			admin.PUT("/:id", pc.UpdatePolicy)
			admin.DELETE("/:id", pc.DeletePolicy)
			admin.POST("/cache/clear", pc.ClearCache)
		}
	}
}

type policyDto struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	RuleBody    string `json:"rule_body" binding:"required"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Active      *bool  `json:"active"`
	Priority    int    `json:"priority"`
}

func (dto *policyDto) toModel() model.Policy {
	policy := model.Policy{
		Name:        dto.Name,
		Description: dto.Description,
		RuleBody:    dto.RuleBody,
		Resource:    dto.Resource,
		Action:      dto.Action,
		Priority:    dto.Priority,
		Active:      true,
	}
	if dto.Active != nil {
		policy.Active = *dto.Active
	}
	return policy
}

// CreatePolicy endpoint
func (pc *PolicyController) CreatePolicy(c *gin.Context) {
	var dto policyDto
	if err := c.ShouldBindJSON(&dto); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid policy data", gk_errors.ErrInvalidPolicyData)
		return
	}

	createdPolicy, err := pc.policyService.CreatePolicy(c, dto.toModel())
	if err != nil {
		switch {
		case errors.Is(err, gk_errors.ErrPolicyConflict):
			util.RespondWithError(c, http.StatusConflict, "Policy already exists", err)
		case errors.Is(err, gk_errors.ErrInvalidPolicyData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid policy data", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create policy", err)
		}
		return
	}

	c.JSON(http.StatusCreated, createdPolicy)
}

// UpdatePolicy endpoint
func (pc *PolicyController) UpdatePolicy(c *gin.Context) {
	var dto policyDto
	if err := c.ShouldBindJSON(&dto); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid policy data", gk_errors.ErrInvalidPolicyData)
		return
	}
	policy := dto.toModel()
	policy.ID = c.Param("id")

	updatedPolicy, err := pc.policyService.UpdatePolicy(c, policy)
	if err != nil {
		switch {
		case errors.Is(err, gk_errors.ErrPolicyNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Policy not found", err)
		case errors.Is(err, gk_errors.ErrInvalidPolicyData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid policy data", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to update policy", err)
		}
		return
	}

	c.JSON(http.StatusOK, updatedPolicy)
}

// DeletePolicy endpoint
func (pc *PolicyController) DeletePolicy(c *gin.Context) {
	policyID := c.Param("id")

	if err := pc.policyService.DeletePolicy(c, policyID); err != nil {
		if errors.Is(err, gk_errors.ErrPolicyNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Policy not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to delete policy", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// GetPolicy endpoint
func (pc *PolicyController) GetPolicy(c *gin.Context) {
	policyID := c.Param("id")

	policy, err := pc.policyService.GetPolicy(c, policyID)
	if err != nil {
		if errors.Is(err, gk_errors.ErrPolicyNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Policy not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve policy", err)
		}
		return
	}

	c.JSON(http.StatusOK, policy)
}

// ListPolicies endpoint
func (pc *PolicyController) ListPolicies(c *gin.Context) {
	limit, offset, err := helper_util.GetPaginationParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", gk_errors.ErrInvalidPagination)
		return
	}

	policies, err := pc.policyService.ListPolicies(c, limit, offset)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}

	c.JSON(http.StatusOK, policies)
}

// SearchPolicies endpoint
func (pc *PolicyController) SearchPolicies(c *gin.Context) {
	criteria := model.PolicySearchCriteria{
		Name: c.Query("name"),
	}

	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid search criteria", gk_errors.ErrInvalidPolicyData)
			return
		}
		criteria.Active = &active
	}
	for param, target := range map[string]*int{
		"min_priority": &criteria.MinPriority,
		"max_priority": &criteria.MaxPriority,
		"limit":        &criteria.Limit,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid search criteria", gk_errors.ErrInvalidPolicyData)
			return
		}
		*target = value
	}

	policies, err := pc.policyService.SearchPolicies(c, criteria)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to search policies", err)
		return
	}

	c.JSON(http.StatusOK, policies)
}

// ClearCache endpoint triggers a cluster-wide cache flush, independent of
// any specific mutation.
func (pc *PolicyController) ClearCache(c *gin.Context) {
	if err := pc.policyService.ClearCaches(c); err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to clear caches", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Caches cleared successfully"})
}
