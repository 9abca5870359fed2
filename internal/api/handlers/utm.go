package handlers

import (
	"net/http"

	"civisync/internal/logger"
	syncer "civisync/internal/sync"

	"github.com/gin-gonic/gin"
)

// UTMHandler records campaign attribution for a storefront visitor before any
// order exists. The stored token is matched against order meta at sync time.
type UTMHandler struct {
	logger *logger.Logger
	engine *syncer.Engine
}

func NewUTMHandler(logger *logger.Logger, engine *syncer.Engine) *UTMHandler {
	return &UTMHandler{
		logger: logger,
		engine: engine,
	}
}

type utmCapture struct {
	ClientToken string `json:"client_token" binding:"required"`
	Campaign    string `json:"utm_campaign"`
	Source      string `json:"utm_source"`
	Medium      string `json:"utm_medium"`
}

func (h *UTMHandler) Capture(c *gin.Context) {
	var req utmCapture
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Campaign == "" && req.Source == "" && req.Medium == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No attribution values given"})
		return
	}

	if err := h.engine.CaptureUTM(req.ClientToken, req.Campaign, req.Source, req.Medium); err != nil {
		h.logger.Error("Failed to capture attribution: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to capture attribution"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "captured"})
}
