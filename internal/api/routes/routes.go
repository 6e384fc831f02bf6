package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/aegis-waf/aegis/internal/api/handlers"
	"github.com/aegis-waf/aegis/internal/api/middleware"
	"github.com/aegis-waf/aegis/internal/config"
	"github.com/aegis-waf/aegis/internal/logger"
	"github.com/aegis-waf/aegis/internal/metrics"
	"github.com/aegis-waf/aegis/internal/models"
	"github.com/aegis-waf/aegis/internal/services"
	"github.com/aegis-waf/aegis/internal/waf"
)

// Deps exposes the long-lived components the process needs outside of
// request handling: the snapshot store and rate counters for periodic
// maintenance, the deployment service for the promotion sweep, and the
// event service for drain-on-shutdown.
type Deps struct {
	Snapshots   *waf.SnapshotStore
	Counter     *waf.WindowCounter
	Deployments *services.DeploymentService
	Events      *services.EventService
}

// Register wires up API routes and performs automatic migrations.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config) (*Deps, error) {
	if err := db.AutoMigrate(
		&models.SecurityRule{},
		&models.RuleDeployment{},
		&models.SecurityEvent{},
		&models.User{},
		&models.Notification{},
		&models.NotificationProvider{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	// Shared evaluator state.
	reputation := waf.NewMemoryReputation()
	if cfg.ReputationPath != "" {
		if err := reputation.LoadFile(cfg.ReputationPath); err != nil {
			logger.Log().WithError(err).Warn("failed to load reputation table, starting empty")
		}
	}
	counter := waf.NewWindowCounter(cfg.RateLimitWindow)

	resolver := waf.ChainResolver{&waf.HeaderResolver{Header: cfg.TrustedCountryHeader}}
	if cfg.GeoDBPath != "" {
		mm, err := waf.NewMaxMindResolver(cfg.GeoDBPath)
		if err != nil {
			logger.Log().WithError(err).Warn("failed to open geoip database, using header resolution only")
		} else {
			resolver = append(resolver, mm)
		}
	}

	snapshots := waf.NewSnapshotStore(db)
	if err := snapshots.Refresh(); err != nil {
		// Degraded start: requests are allowed until the store recovers.
		logger.Log().WithError(err).Warn("initial rule snapshot load failed, starting in degraded mode")
	}

	notificationService := services.NewNotificationService(db)
	eventService := services.NewEventService(db, cfg.EventQueueSize)
	ruleService := services.NewRuleService(db)
	deploymentService := services.NewDeploymentService(db, cfg, ruleService, notificationService)
	adaptiveService := services.NewAdaptiveService(cfg, ruleService, deploymentService)
	authService := services.NewAuthService(db, cfg)

	engine := waf.NewEngine(cfg, snapshots, reputation, counter, resolver, eventService)

	evaluateHandler := handlers.NewEvaluateHandler(engine)
	ruleHandler := handlers.NewRuleHandler(ruleService, snapshots)
	deploymentHandler := handlers.NewDeploymentHandler(deploymentService, snapshots)
	eventHandler := handlers.NewEventHandler(eventService)
	adaptiveHandler := handlers.NewAdaptiveHandler(adaptiveService, snapshots)
	authHandler := handlers.NewAuthHandler(authService)
	authMiddleware := middleware.AuthMiddleware(authService)

	router.GET("/api/v1/health", handlers.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")

	// Hot path: consumed by the upstream proxy, no auth round-trips.
	api.POST("/evaluate", evaluateHandler.Evaluate)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/register", authHandler.Register)

	protected := api.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/rules", ruleHandler.List)
		protected.POST("/rules", ruleHandler.Create)
		protected.GET("/rules/:uuid", ruleHandler.Get)
		protected.PUT("/rules/:uuid/enable", ruleHandler.Enable)
		protected.PUT("/rules/:uuid/disable", ruleHandler.Disable)

		protected.POST("/rules/:uuid/deploy", deploymentHandler.DeployShadow)
		protected.POST("/rules/:uuid/promote/canary", deploymentHandler.PromoteCanary)
		protected.POST("/rules/:uuid/promote/production", deploymentHandler.PromoteProduction)
		protected.POST("/rules/:uuid/demote", deploymentHandler.Demote)
		protected.POST("/rules/:uuid/disable-deployment", deploymentHandler.Disable)
		protected.GET("/deployments", deploymentHandler.List)
		protected.POST("/deployments/evaluate", deploymentHandler.Evaluate)

		protected.GET("/events", eventHandler.List)
		protected.POST("/events/:uuid/feedback", eventHandler.Feedback)

		protected.POST("/adaptive/observe", adaptiveHandler.Observe)
	}

	return &Deps{
		Snapshots:   snapshots,
		Counter:     counter,
		Deployments: deploymentService,
		Events:      eventService,
	}, nil
}
