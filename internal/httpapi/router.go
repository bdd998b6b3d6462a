package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"interview-copilot/internal/auth"
	"interview-copilot/internal/common"
	"interview-copilot/internal/config"
	"interview-copilot/internal/httpapi/handlers"
	"interview-copilot/internal/httpapi/middleware"
	"interview-copilot/internal/logger"
	"interview-copilot/internal/store"
)

func NewRouter(cfg *config.Config, log *logger.Logger, st *store.Store, tokens *auth.TokenService) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recovery(log))
	r.Use(cors.New(corsConfig(cfg)))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(cfg, log, st, tokens)
	gate := auth.NewGate(tokens, st)

	r.GET("/health", h.Health)

	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(gate))
	authGroup.GET("/auth/me", h.Me)
	authGroup.POST("/chat/respond", h.ChatRespond)
	authGroup.GET("/chat/history", h.ChatHistory)
	authGroup.POST("/process-audio", h.ProcessAudio)

	return r
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:     cfg.CORSAllowMethods,
		AllowCredentials: false,
	}
	if len(cfg.CORSAllowOrigins) == 1 && cfg.CORSAllowOrigins[0] == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORSAllowOrigins
	}
	if len(cfg.CORSAllowHeaders) == 1 && cfg.CORSAllowHeaders[0] == "*" {
		c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	} else {
		c.AllowHeaders = cfg.CORSAllowHeaders
	}
	return c
}
