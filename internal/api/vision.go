package api

import (
	"encoding/base64"
	"errors"
	"net/http"

	"kirana/internal/models"
	"kirana/internal/vision"

	"github.com/gin-gonic/gin"
)

const maxScanFrames = 8

// Scan runs a vision extraction over uploaded frames. Item-snap and invoice
// modes stage a draft; shelf mode returns a report directly. Each call counts
// one AI scan against the user's plan.
func (s *Server) Scan(c *gin.Context) {
	userID := c.GetString("userID")
	ctx := c.Request.Context()

	var req struct {
		Mode   vision.Mode `json:"mode" binding:"required"`
		Frames []string    `json:"frames" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Frames) == 0 || len(req.Frames) > maxScanFrames {
		c.JSON(http.StatusBadRequest, gin.H{"error": "between 1 and 8 frames required"})
		return
	}

	frames := make([][]byte, 0, len(req.Frames))
	for _, f := range req.Frames {
		decoded, err := base64.StdEncoding.DecodeString(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "frames must be base64 JPEG"})
			return
		}
		frames = append(frames, decoded)
	}

	scans, err := s.gate.Usage(ctx, userID, models.FeatureAIScans)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load usage"})
		return
	}
	if !s.gate.CheckLimit(ctx, userID, models.FeatureAIScans, scans) {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "AI scan limit reached",
			"upgrade": true,
		})
		return
	}

	switch req.Mode {
	case vision.ModeItemSnap, vision.ModeInvoice:
		rows, err := s.extractor.ExtractRows(ctx, req.Mode, frames)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "scan failed, try again"})
			return
		}
		s.gate.IncrementUsage(ctx, userID, models.FeatureAIScans)
		draft := s.drafts.Create(userID, req.Mode, rows)
		c.JSON(http.StatusOK, draft)

	case vision.ModeShelf:
		report, err := s.extractor.AnalyzeShelf(ctx, frames)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "scan failed, try again"})
			return
		}
		s.gate.IncrementUsage(ctx, userID, models.FeatureAIScans)
		c.JSON(http.StatusOK, report)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown scan mode"})
	}
}

func (s *Server) GetDraft(c *gin.Context) {
	draft, err := s.drafts.Get(c.GetString("userID"), c.Param("id"))
	if errors.Is(err, vision.ErrDraftNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (s *Server) UpdateDraftRow(c *gin.Context) {
	var row vision.DraftRow
	if err := c.ShouldBindJSON(&row); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	row.ID = c.Param("rowId")

	err := s.drafts.UpdateRow(c.GetString("userID"), c.Param("id"), row)
	if errors.Is(err, vision.ErrDraftNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "row updated"})
}

func (s *Server) RemoveDraftRow(c *gin.Context) {
	err := s.drafts.RemoveRow(c.GetString("userID"), c.Param("id"), c.Param("rowId"))
	if errors.Is(err, vision.ErrDraftNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "row removed"})
}

func (s *Server) ConfirmDraft(c *gin.Context) {
	result, err := s.drafts.ConfirmAll(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if errors.Is(err, vision.ErrDraftNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "confirm failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) CancelDraft(c *gin.Context) {
	err := s.drafts.Cancel(c.GetString("userID"), c.Param("id"))
	if errors.Is(err, vision.ErrDraftNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "draft discarded"})
}

// RenderWorstFrame produces the annotated "after" overlay for a shelf report.
// It is presentation only and does not count as a scan.
func (s *Server) RenderWorstFrame(c *gin.Context) {
	var req struct {
		Frame  string              `json:"frame" binding:"required"`
		Issues []vision.ShelfIssue `json:"issues" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	frame, err := base64.StdEncoding.DecodeString(req.Frame)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame must be base64 JPEG"})
		return
	}

	svg, err := s.extractor.RenderWorstFrame(c.Request.Context(), frame, req.Issues)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "render failed, try again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"svg": svg})
}
