// controller/audit_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gatekeeper-project/gatekeeper/audit"
	gk_errors "github.com/gatekeeper-project/gatekeeper/errors"
	"github.com/gatekeeper-project/gatekeeper/middleware"
	"github.com/gatekeeper-project/gatekeeper/util"
)

type AuditController struct {
	auditService audit.Service
}

func NewAuditController(auditService audit.Service) *AuditController {
	return &AuditController{auditService: auditService}
}

// RegisterRoutes registers the audit query endpoint
func (ac *AuditController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit/logs", middleware.RequireRole("admin"), ac.QueryLogs)
}

// QueryLogs endpoint. Defaults to the last 24 hours when no range is given.
func (ac *AuditController) QueryLogs(c *gin.Context) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid 'from' timestamp", gk_errors.ErrInvalidAuditQuery)
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid 'to' timestamp", gk_errors.ErrInvalidAuditQuery)
			return
		}
		to = parsed
	}

	logs, err := ac.auditService.QueryLogs(c, from, to, c.Query("user_id"), c.Query("resource"))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query audit logs", err)
		return
	}

	c.JSON(http.StatusOK, logs)
}
