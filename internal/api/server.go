package api

import (
	"kirana/internal/notify"
	"kirana/internal/quota"
	"kirana/internal/selection"
	"kirana/internal/store"
	"kirana/internal/vision"
	"kirana/internal/voice"

	"github.com/gin-gonic/gin"
)

// Server is the main API handler wiring the inventory store, the usage gate,
// the vision pipeline and the voice session endpoint behind one router.
type Server struct {
	Router *gin.Engine

	store     *store.Store
	gate      *quota.Gate
	selection selection.Store
	extractor *vision.Extractor
	drafts    *vision.DraftManager
	hub       *notify.Hub
	voice     *voice.Server
}

// Config carries the server's collaborators.
type Config struct {
	Store     *store.Store
	Gate      *quota.Gate
	Selection selection.Store
	Extractor *vision.Extractor
	Drafts    *vision.DraftManager
	Hub       *notify.Hub
	Voice     *voice.Server
	JWTSecret string
}

// NewServer creates the API server and registers all routes.
func NewServer(cfg Config) *Server {
	router := gin.Default()
	router.Use(MetricsMiddleware())

	s := &Server{
		Router:    router,
		store:     cfg.Store,
		gate:      cfg.Gate,
		selection: cfg.Selection,
		extractor: cfg.Extractor,
		drafts:    cfg.Drafts,
		hub:       cfg.Hub,
		voice:     cfg.Voice,
	}

	s.setupRoutes(cfg.JWTSecret)
	return s
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes(jwtSecret string) {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := s.Router.Group("/api/v1")
	v1.Use(AuthMiddleware(jwtSecret))
	{
		// Inventory management
		v1.GET("/inventory", s.ListInventory)
		v1.POST("/inventory", s.AddItem)
		v1.POST("/inventory/remove", s.RemoveItem)
		v1.POST("/inventory/clear-expiry", s.ClearExpiry)
		v1.POST("/inventory/batch-delete", s.BatchDelete)

		// Selection for bulk operations
		v1.GET("/selection", s.GetSelection)
		v1.POST("/selection", s.SelectItems)
		v1.POST("/selection/deselect", s.DeselectItems)
		v1.POST("/selection/clear", s.ClearSelection)

		// Vision extraction
		v1.POST("/vision/scan", s.Scan)
		v1.GET("/vision/drafts/:id", s.GetDraft)
		v1.PUT("/vision/drafts/:id/rows/:rowId", s.UpdateDraftRow)
		v1.DELETE("/vision/drafts/:id/rows/:rowId", s.RemoveDraftRow)
		v1.POST("/vision/drafts/:id/confirm", s.ConfirmDraft)
		v1.POST("/vision/drafts/:id/cancel", s.CancelDraft)
		v1.POST("/vision/shelf/render", s.RenderWorstFrame)

		// Usage and plan
		v1.GET("/usage", s.GetUsage)
		v1.POST("/plan", s.SetPlan)

		// Notifications
		v1.GET("/notifications", s.ListNotifications)
		v1.GET("/notifications/unread", s.UnreadCount)
		v1.POST("/notifications/read", s.MarkRead)
		v1.GET("/notifications/stream", s.StreamNotifications)

		// Voice session
		v1.GET("/voice/ws", s.voice.HandleWS)
	}
}
