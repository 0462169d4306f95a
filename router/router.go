// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gatekeeper-project/gatekeeper/controller"
	"github.com/gatekeeper-project/gatekeeper/middleware"
)

func SetupRouter(
	controllers *controller.Controllers,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))
	router.Use(middleware.PrincipalAttributes())

	api := router.Group("/api/v1")

	controllers.Access.RegisterRoutes(api)
	controllers.Policy.RegisterRoutes(api)
	controllers.Audit.RegisterRoutes(api)

	return router
}
