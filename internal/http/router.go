package http

import (
	"log/slog"

	"github.com/geocoder89/careerhub/internal/config"
	"github.com/geocoder89/careerhub/internal/domain/user"
	"github.com/geocoder89/careerhub/internal/http/handlers"
	"github.com/geocoder89/careerhub/internal/http/middlewares"
	"github.com/geocoder89/careerhub/internal/observability"
	"github.com/geocoder89/careerhub/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "careerhub-api"

// Deps are the collaborators the router wires into handlers. Prom and Metrics may be nil.
type Deps struct {
	Auth      *service.AuthService
	Generator handlers.Generator
	Prom      *observability.Prom
	Metrics   prometheus.Gatherer
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(deps.Auth)
	r.GET("/", h.Root)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(deps.Auth, log)
	authHandler := handlers.NewAuthHandler(deps.Auth, cfg.IsProd(), log)

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/signup", authHandler.SignUp)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authMW.OptionalAuth(), middlewares.WithOptionalUser(authHandler.Logout))
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
		authGroup.POST("/refresh-token", authHandler.RefreshToken)

		authGroup.GET("/me", authMW.RequireAuth(), middlewares.WithUser(authHandler.Me))
		authGroup.PUT("/profile", authMW.RequireAuth(), middlewares.WithUser(authHandler.UpdateProfile))
		authGroup.PUT("/change-password", authMW.RequireAuth(), middlewares.WithUser(authHandler.ChangePassword))
		authGroup.DELETE("/account", authMW.RequireAuth(), middlewares.WithUser(authHandler.DeleteAccount))
	}

	generateHandler := handlers.NewGenerateHandler(deps.Generator, log)
	r.POST("/api/generate", generateHandler.Generate)

	// admin only
	adminHandler := handlers.NewAdminHandler(deps.Auth, log)
	admin := r.Group("/api/admin", authMW.RequireAuth(), authMW.RequireRole(user.RoleAdmin))
	{
		admin.GET("/users/:id", adminHandler.GetUser)
		admin.DELETE("/users/:id", middlewares.WithUser(adminHandler.DeleteUser))
	}

	return r
}
