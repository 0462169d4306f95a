// controller/access_controller.go
package controller

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	gk_errors "github.com/gatekeeper-project/gatekeeper/errors"
	"github.com/gatekeeper-project/gatekeeper/middleware"
	"github.com/gatekeeper-project/gatekeeper/model"
	"github.com/gatekeeper-project/gatekeeper/util"
)

// Authorizer is the decision engine's entry point as seen by the HTTP layer.
type Authorizer interface {
	Authorize(ctx context.Context, request *model.AccessRequest) *model.AccessDecision
}

type AccessController struct {
	engine Authorizer
}

func NewAccessController(engine Authorizer) *AccessController {
	return &AccessController{engine: engine}
}

// RegisterRoutes registers the authorization endpoint
func (ac *AccessController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/authorize", ac.Authorize)
}

type accessRequestDto struct {
	Resource string                 `json:"resource" binding:"required"`
	Action   string                 `json:"action" binding:"required"`
	Context  map[string]interface{} `json:"context"`
}

// Authorize endpoint. Always answers 200 with a decision document; malformed
// requests are the only 4xx path.
func (ac *AccessController) Authorize(c *gin.Context) {
	var dto accessRequestDto
	if err := c.ShouldBindJSON(&dto); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid access request", gk_errors.ErrInvalidAccessRequest)
		return
	}

	userID, attributes := middleware.GetPrincipal(c)

	request := &model.AccessRequest{
		UserID:         userID,
		Resource:       dto.Resource,
		Action:         dto.Action,
		ClientIP:       clientIP(c),
		Timestamp:      time.Now(),
		Context:        dto.Context,
		UserAttributes: attributes,
	}
	if request.Context == nil {
		request.Context = map[string]interface{}{}
	}

	decision := ac.engine.Authorize(c, request)
	c.JSON(http.StatusOK, decision)
}

func clientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return c.ClientIP()
}
