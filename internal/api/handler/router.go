package handler

import (
	"net/http"
	"sync"
	"time"

	"marketchat/backend/internal/metrics"
	"marketchat/backend/internal/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerValidators sync.Once

// NewRouter wires every route onto a gin engine.
func NewRouter(h *Handler) *gin.Engine {
	registerValidators.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("context_type", func(fl validator.FieldLevel) bool {
				return models.ContextType(fl.Field().String()).Valid()
			})
		}
	})

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(corsConfig(h.allowedOrigins)))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api/v1/chat", h.RequireAuth())
	{
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms", h.ListRooms)
		api.GET("/rooms/search", h.SearchRooms)
		api.GET("/rooms/:token/messages", h.ListMessages)
		api.POST("/rooms/:token/messages", h.SendMessage)
		api.POST("/rooms/:token/read", h.MarkRead)
		api.POST("/rooms/:token/enter", h.EnterRoom)
		api.POST("/rooms/:token/leave", h.LeaveRoom)
		api.GET("/unread-count", h.UnreadCount)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
