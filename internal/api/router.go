package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/pokedex/internal/api/handler"
	"github.com/timmy/pokedex/internal/api/middleware"
	"github.com/timmy/pokedex/internal/config"
	"github.com/timmy/pokedex/internal/logger"
)

// Handlers groups the endpoint handlers mounted by SetupRouter.
type Handlers struct {
	Health  *handler.HealthHandler
	Profile *handler.ProfileHandler
	Chat    *handler.ChatHandler
	Search  *handler.SearchHandler
	Catalog *handler.CatalogHandler
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(h Handlers, cfg *config.Config, log *logger.Logger) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.Server.CORS))

	r.GET("/health", h.Health.Health)

	auth := middleware.BearerAuth(cfg.Admin.Token)

	v1 := r.Group("/api/v1")
	{
		// Profiles
		v1.POST("/profiles", auth, h.Profile.Submit)
		v1.DELETE("/profiles", auth, h.Profile.Delete)

		// Chat
		v1.POST("/chat", h.Chat.Chat)

		if h.Search != nil {
			v1.GET("/search", h.Search.Search)
		}

		if h.Catalog != nil {
			admin := v1.Group("/admin", auth)
			admin.POST("/catalog", h.Catalog.TriggerPush)
			admin.GET("/catalog/status", h.Catalog.GetStatus)
		}
	}

	return r
}
