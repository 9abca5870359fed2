package handlers

import (
	"net/http"

	"civisync/internal/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SourcesHandler serves the distinct contribution sources seen so far, used
// to populate the source picker on the order panel.
type SourcesHandler struct {
	logger *logger.Logger
	db     *gorm.DB
}

func NewSourcesHandler(logger *logger.Logger, db *gorm.DB) *SourcesHandler {
	return &SourcesHandler{
		logger: logger,
		db:     db,
	}
}

func (h *SourcesHandler) List(c *gin.Context) {
	var sources []string
	err := h.db.Table("order_syncs").
		Distinct("source").
		Where("source <> ''").
		Order("source").
		Pluck("source", &sources).Error
	if err != nil {
		h.logger.Error("Failed to list sources: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sources, "count": len(sources)})
}
