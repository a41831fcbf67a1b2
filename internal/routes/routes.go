// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"terminal-service/internal/config"
	"terminal-service/internal/connection"
	"terminal-service/internal/handler"
	"terminal-service/internal/middleware"
	"terminal-service/internal/payment"
	"terminal-service/internal/printing"
	"terminal-service/internal/state"
	"terminal-service/internal/transport"
	"terminal-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config       *config.Config
	logger       *zap.Logger
	store        state.Store
	transports   *transport.Manager
	connections  *connection.Manager
	orchestrator *payment.Orchestrator
	submitter    *printing.Submitter
	events       *handler.EventsHandler
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	store state.Store,
	transports *transport.Manager,
	connections *connection.Manager,
	orchestrator *payment.Orchestrator,
	submitter *printing.Submitter,
	events *handler.EventsHandler,
) *Router {
	return &Router{
		config:       config,
		logger:       logger,
		store:        store,
		transports:   transports,
		connections:  connections,
		orchestrator: orchestrator,
		submitter:    submitter,
		events:       events,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Server))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.store, r.transports, r.config, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.transports, &r.config.Discovery, r.logger)
	connectionHandler := handler.NewConnectionHandler(r.connections, r.logger)
	paymentHandler := handler.NewPaymentHandler(r.orchestrator, r.logger)
	printHandler := handler.NewPrintHandler(r.submitter, r.connections, r.logger)

	r.addHealthRoutes(router, healthHandler)

	apiV1 := router.Group("/api/v1")
	r.addDiscoveryRoutes(apiV1, discoveryHandler)
	r.addConnectionRoutes(apiV1, connectionHandler)
	r.addPaymentRoutes(apiV1, paymentHandler)
	r.addPrintRoutes(apiV1, printHandler)

	r.addWebSocketRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addHealthRoutes sets up health check routes
func (r *Router) addHealthRoutes(router *gin.Engine, handler *handler.HealthHandler) {
	health := router.Group("")
	{
		health.GET("/health", handler.HealthCheck)
		health.GET("/ready", handler.ReadinessCheck)
		health.GET("/live", handler.LivenessCheck)
	}
}

// addDiscoveryRoutes sets up transport and discovery routes
func (r *Router) addDiscoveryRoutes(api *gin.RouterGroup, handler *handler.DiscoveryHandler) {
	api.GET("/transports", handler.ListTransports)

	discovery := api.Group("/discovery")
	{
		discovery.POST("/scan", handler.ScanDevices)
	}
}

// addConnectionRoutes sets up connection lifecycle routes
func (r *Router) addConnectionRoutes(api *gin.RouterGroup, handler *handler.ConnectionHandler) {
	connections := api.Group("/connections")
	{
		connections.POST("/connect", handler.Connect)
		connections.POST("/disconnect", handler.Disconnect)
		connections.GET("/:slot", handler.GetSlot)
		connections.PUT("/printer/paper-profile", handler.SetPaperProfile)
	}
}

// addPaymentRoutes sets up payment collection routes
func (r *Router) addPaymentRoutes(api *gin.RouterGroup, handler *handler.PaymentHandler) {
	payments := api.Group("/payments")
	{
		payments.POST("", handler.Collect)
		payments.POST("/cancel", handler.Cancel)
		payments.GET("/session", handler.GetSession)
		payments.PUT("/backend", handler.SetBackend)
	}
}

// addPrintRoutes sets up print submission routes
func (r *Router) addPrintRoutes(api *gin.RouterGroup, handler *handler.PrintHandler) {
	api.POST("/print", handler.Submit)
}

// addWebSocketRoutes sets up the event stream route
func (r *Router) addWebSocketRoutes(router *gin.Engine) {
	ws := router.Group("/ws")
	{
		ws.GET("/events", r.events.HandleEvents)
	}
}
