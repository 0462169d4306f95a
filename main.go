package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gatekeeper-project/gatekeeper/audit"
	"github.com/gatekeeper-project/gatekeeper/config"
	"github.com/gatekeeper-project/gatekeeper/controller"
	"github.com/gatekeeper-project/gatekeeper/dao"
	"github.com/gatekeeper-project/gatekeeper/db"
	"github.com/gatekeeper-project/gatekeeper/invalidation"
	logger "github.com/gatekeeper-project/gatekeeper/logging"
	"github.com/gatekeeper-project/gatekeeper/pdp/cache"
	"github.com/gatekeeper-project/gatekeeper/pdp/engine"
	"github.com/gatekeeper-project/gatekeeper/pdp/evaluator"
	"github.com/gatekeeper-project/gatekeeper/router"
	"github.com/gatekeeper-project/gatekeeper/service"
	"github.com/gatekeeper-project/gatekeeper/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger()
	defer logger.Sync()

	// Initialize Neo4j
	if err := db.InitNeo4j(); err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Invalidation bus: Redis pub/sub so every instance observes mutations
	bus := invalidation.NewRedisBus(db.RedisClient, config.GetString("invalidation.channel"))

	// Repositories
	policyDAO := dao.NewPolicyDAO(db.Neo4jDriver)
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)

	// Caches
	decisionTTL := config.GetDuration("cache.decisionTTL")
	decisionCache := cache.NewRedisDecisionCache(db.RedisClient, decisionTTL)
	policyCache := cache.NewPolicyCache(policyDAO)

	// Cache eviction on every invalidation event
	invalidator := invalidation.NewInvalidator(
		decisionCache,
		invalidation.ClearFunc(func(ctx context.Context) { policyCache.Clear() }),
	)
	invalidator.Register(bus)
	bus.Start(ctx)

	// Rule evaluator: built-in predicates, or delegated when OPA is enabled
	var ruleEvaluator evaluator.Evaluator
	if config.GetBool("opa.enabled") {
		ruleEvaluator = evaluator.NewDelegatedEvaluator(
			config.GetString("opa.url"),
			config.GetDuration("opa.timeout"),
		)
		logger.Info("Using delegated rule evaluation", zap.String("url", config.GetString("opa.url")))
	} else {
		ruleEvaluator = evaluator.NewBuiltinEvaluator()
	}

	// Decision engine
	decisionEngine := engine.NewDecisionEngine(policyCache, decisionCache, ruleEvaluator, auditService)

	// Services
	validationUtil := util.NewValidationUtil()
	policyService := service.NewPolicyService(policyDAO, validationUtil, bus)

	// Controllers and router
	controllers := controller.InitializeControllers(decisionEngine, policyService, auditService)

	gin.SetMode(gin.ReleaseMode)
	r := router.SetupRouter(controllers, 100, time.Minute)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: r,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
