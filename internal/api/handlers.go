package api

import (
	"errors"
	"net/http"
	"time"

	"kirana/internal/models"
	"kirana/internal/store"

	"github.com/gin-gonic/gin"
)

const dateFormat = "02-01-2006"

// ListInventory returns the user's items with freshly derived expiry status.
func (s *Server) ListInventory(c *gin.Context) {
	userID := c.GetString("userID")

	items, err := s.store.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load inventory"})
		return
	}

	now := time.Now()
	for i := range items {
		items[i].ExpiryStatus = items[i].ExpiryStatusAt(now)
	}
	c.JSON(http.StatusOK, items)
}

// AddItem is the manual add/restock path, subject to the same item quota as
// the voice flow.
func (s *Server) AddItem(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Name       string  `json:"name" binding:"required"`
		Quantity   int     `json:"quantity" binding:"required"`
		Price      float64 `json:"price"`
		ExpiryDate string  `json:"expiryDate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var expiry *time.Time
	if req.ExpiryDate != "" {
		parsed, err := time.Parse(dateFormat, req.ExpiryDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expiryDate must be DD-MM-YYYY"})
			return
		}
		expiry = &parsed
	}

	count, err := s.store.Count(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check inventory size"})
		return
	}
	if !s.gate.CheckLimit(c.Request.Context(), userID, models.FeatureInventoryItems, count) {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "inventory item limit reached",
			"upgrade": true,
		})
		return
	}

	item, err := s.store.AddOrUpdate(c.Request.Context(), userID, req.Name, req.Quantity, req.Price, expiry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

// RemoveItem decrements stock; business failures come back as 409, not 500.
func (s *Server) RemoveItem(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Name     string `json:"name" binding:"required"`
		Quantity int    `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.store.Remove(c.Request.Context(), userID, req.Name, req.Quantity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update inventory"})
		return
	}
	if !result.OK {
		c.JSON(http.StatusConflict, gin.H{"error": result.Message})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ClearExpiry drops expiry tracking for an item.
func (s *Server) ClearExpiry(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.store.ClearExpiry(c.Request.Context(), userID, req.Name)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear expiry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "expiry cleared"})
}

// BatchDelete removes the given ids and clears them from the selection.
func (s *Server) BatchDelete(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		IDs []uint `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deleted, err := s.store.DeleteBatch(c.Request.Context(), userID, req.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete items"})
		return
	}
	if err := s.selection.Remove(c.Request.Context(), userID, req.IDs...); err != nil {
		// Selection is ephemeral; deletion already succeeded.
		c.JSON(http.StatusOK, gin.H{"deleted": deleted, "selectionStale": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// Selection handlers

func (s *Server) GetSelection(c *gin.Context) {
	ids, err := s.selection.Snapshot(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read selection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

func (s *Server) SelectItems(c *gin.Context) {
	var req struct {
		IDs []uint `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.selection.Add(c.Request.Context(), c.GetString("userID"), req.IDs...); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update selection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "selected"})
}

func (s *Server) DeselectItems(c *gin.Context) {
	var req struct {
		IDs []uint `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.selection.Remove(c.Request.Context(), c.GetString("userID"), req.IDs...); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update selection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deselected"})
}

func (s *Server) ClearSelection(c *gin.Context) {
	if err := s.selection.Clear(c.Request.Context(), c.GetString("userID")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear selection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "selection cleared"})
}

// Usage and plan handlers

func (s *Server) GetUsage(c *gin.Context) {
	userID := c.GetString("userID")
	ctx := c.Request.Context()

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	count, err := s.store.Count(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count inventory"})
		return
	}
	scans, _ := s.gate.Usage(ctx, userID, models.FeatureAIScans)
	promos, _ := s.gate.Usage(ctx, userID, models.FeaturePromos)

	c.JSON(http.StatusOK, gin.H{
		"plan":            profile.Plan,
		"inventoryItems":  count,
		"aiScans":         scans,
		"promosGenerated": promos,
		"limits":          models.Limits[profile.Plan],
	})
}

func (s *Server) SetPlan(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Plan models.Plan `json:"plan" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Plan != models.PlanFree && req.Plan != models.PlanPro {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan"})
		return
	}

	if err := s.store.SetPlan(c.Request.Context(), userID, req.Plan); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update plan"})
		return
	}
	s.gate.Invalidate(userID)
	c.JSON(http.StatusOK, gin.H{"plan": req.Plan})
}

// Notification handlers

func (s *Server) ListNotifications(c *gin.Context) {
	list, err := s.store.Notifications(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) UnreadCount(c *gin.Context) {
	count, err := s.store.UnreadCount(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (s *Server) MarkRead(c *gin.Context) {
	if err := s.store.MarkNotificationsRead(c.Request.Context(), c.GetString("userID")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notifications read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked read"})
}
