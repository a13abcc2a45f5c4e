package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nichind/fastapi/internal/api/handlers"
	"github.com/nichind/fastapi/internal/api/middleware"
	"github.com/nichind/fastapi/internal/config"
	"github.com/nichind/fastapi/internal/perf"
	"github.com/nichind/fastapi/internal/registry"
)

type Server struct {
	cfg     *config.Config
	reg     *registry.Registry
	meter   *perf.Meter
	version string
	router  *gin.Engine
}

func New(cfg *config.Config, reg *registry.Registry, meter *perf.Meter, version string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:     cfg,
		reg:     reg,
		meter:   meter,
		version: version,
		router:  gin.New(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestLogger())

	// CORS Configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}

	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	authn := middleware.NewAuthenticator(s.reg, s.cfg.Auth.JWTSecret)

	authHandler := handlers.NewAuthHandler(s.reg, s.cfg.Auth.JWTSecret, s.cfg.Auth.TokenLength)
	userHandler := handlers.NewUserHandler(s.reg)
	settingsHandler := handlers.NewSettingsHandler(s.reg)
	statusHandler := handlers.NewStatusHandler(s.meter, s.version)

	// Health Check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "wao-backend"})
	})
	s.router.GET("/status", statusHandler.Status)
	s.router.GET("/database", statusHandler.Database)

	// API Group
	v1 := s.router.Group("/api/v1")
	{
		// PUBLIC ROUTES (No Token Required)
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)

		// PROTECTED ROUTES (Bearer Token Required)
		protected := v1.Group("/")
		protected.Use(authn.RequireAuth())
		{
			protected.GET("/me", userHandler.Me)
			protected.PATCH("/me", userHandler.UpdateMe)
			protected.GET("/me/audit", userHandler.MyAudit)
			protected.GET("/me/sessions", userHandler.MySessions)

			// ADMIN ONLY
			admin := protected.Group("/")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("/users", userHandler.ListUsers)
				admin.GET("/users/:id", userHandler.GetUser)
				admin.GET("/settings", settingsHandler.List)
				admin.GET("/settings/:key", settingsHandler.Get)
				admin.PUT("/settings/:key", settingsHandler.Put)
				admin.DELETE("/settings/:key", settingsHandler.Delete)
			}
		}
	}
}

// Router exposes the configured engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start runs the server on the configured port
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}
