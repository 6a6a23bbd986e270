package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/webapp-auth/backend/internal/config"
	"github.com/webapp-auth/backend/internal/observability"
	"github.com/webapp-auth/backend/internal/service"
)

type RouterDeps struct {
	Auth    *service.AuthService
	Users   *service.UserService
	Store   Pinger
	Metrics *observability.Metrics
	CORS    config.CORSConfig
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		RequestLogger(),
		MetricsMiddleware(deps.Metrics),
		CORSMiddleware(deps.CORS.AllowedOrigins, deps.CORS.AllowCredentials),
	)

	authHandler := NewAuthHandler(deps.Auth, deps.Metrics)
	userHandler := NewUserHandler(deps.Users)

	r.GET("/", Root)
	r.GET("/ping", Ping)
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	r.GET("/openapi.json", OpenAPIDoc)

	api := r.Group("/api")
	{
		api.GET("/health", Health)
		api.GET("/health/ready", Ready(deps.Store))
		api.POST("/login", authHandler.Login)
	}

	protected := api.Group("", AuthMiddleware(deps.Auth))
	{
		protected.POST("/logout", authHandler.Logout)
		protected.GET("/me", authHandler.Me)
		protected.GET("/users", userHandler.ListUsers)
	}

	return r
}
