package routes

import (
	"github.com/gin-gonic/gin"

	"guidedesk/internal/auth"
	handlers "guidedesk/internal/handlers/shared"
	"guidedesk/internal/middleware"
	"guidedesk/internal/services"
	"guidedesk/pkg/logger"
	"guidedesk/pkg/metrics"
	"guidedesk/pkg/push"
	"guidedesk/pkg/websocket"
)

type Dependencies struct {
	SyncService    services.SyncService
	Verifier       auth.Verifier
	WebSocket      *websocket.Handler
	Backend        string
	Watcher        handlers.StatusReporter
	Logger         *logger.Logger
	AllowedOrigins []string
	WebSocketPath  string

	// Push is optional. Device registration is only mounted when set.
	Push     push.PushProvider
	SOSTopic string

	// Metrics and RateLimiter are optional.
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter
}

// SetupRouter builds the gin engine with every route mounted.
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.RecoveryMiddleware(deps.Logger),
		middleware.LoggingMiddleware(deps.Logger),
		middleware.CORSMiddleware(deps.AllowedOrigins),
	)
	if deps.Metrics != nil {
		router.Use(middleware.MetricsMiddleware(deps.Metrics))
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	health := handlers.NewHealthHandler(deps.Backend, deps.Watcher)
	router.GET("/health", health.Health)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthRequired(deps.Verifier, deps.Logger))
	{
		writes := v1.Group("")
		if deps.RateLimiter != nil {
			writes.Use(deps.RateLimiter.Middleware())
		}
		SetupRequestRoutes(writes, handlers.NewRequestHandler(deps.SyncService))
		SetupSOSRoutes(writes, handlers.NewSOSHandler(deps.SyncService))

		if deps.Push != nil {
			SetupDeviceRoutes(v1, handlers.NewDeviceHandler(deps.Push, deps.SOSTopic, deps.Logger))
		}

		session := handlers.NewSessionHandler()
		v1.GET("/me", session.Me)

		if deps.WebSocket != nil {
			path := deps.WebSocketPath
			if path == "" {
				path = "/ws"
			}
			v1.GET(path, deps.WebSocket.HandleWebSocket)
		}
	}

	return router
}

func SetupRequestRoutes(r *gin.RouterGroup, requestHandler *handlers.RequestHandler) {
	requests := r.Group("/requests")
	{
		requests.POST("/:id/accept", requestHandler.AcceptRequest)
		requests.POST("/:id/reject", requestHandler.RejectRequest)
	}
}

func SetupSOSRoutes(r *gin.RouterGroup, sosHandler *handlers.SOSHandler) {
	sos := r.Group("/sos")
	{
		sos.POST("/:id/respond", sosHandler.RespondToSOS)
		sos.POST("/:id/resolve", sosHandler.ResolveSOS)
	}
}

func SetupDeviceRoutes(r *gin.RouterGroup, deviceHandler *handlers.DeviceHandler) {
	devices := r.Group("/devices")
	{
		devices.POST("", deviceHandler.RegisterDevice)
		devices.DELETE("", deviceHandler.UnregisterDevice)
	}
}
