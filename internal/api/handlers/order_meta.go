package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"civisync/internal/config"
	"civisync/internal/events"
	"civisync/internal/logger"
	"civisync/internal/models"
	"civisync/internal/services/civicrm"
	"civisync/internal/services/woocommerce"
	syncer "civisync/internal/sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// OrderMetaHandler backs the CiviCRM panel on the store's order edit screen.
type OrderMetaHandler struct {
	config    *config.Config
	logger    *logger.Logger
	db        *gorm.DB
	crm       *civicrm.Client
	engine    *syncer.Engine
	publisher *events.Publisher
}

func NewOrderMetaHandler(cfg *config.Config, logger *logger.Logger, db *gorm.DB, crm *civicrm.Client, engine *syncer.Engine, publisher *events.Publisher) *OrderMetaHandler {
	return &OrderMetaHandler{
		config:    cfg,
		logger:    logger,
		db:        db,
		crm:       crm,
		engine:    engine,
		publisher: publisher,
	}
}

// Get returns the panel state for one order: the current campaign and source,
// the campaign options, and a link to the synced contact when one exists.
func (h *OrderMetaHandler) Get(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	order, err := h.engine.FetchOrder(orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	campaigns, err := h.crm.ListCampaigns()
	if err != nil {
		h.logger.Error("Failed to list campaigns: %v", err)
		campaigns = nil
	}

	resp := gin.H{
		"order_id":    order.ID,
		"campaign_id": order.MetaInt64(woocommerce.MetaCampaignID),
		"source":      h.engine.GenerateSource(order),
		"campaigns":   campaigns,
	}
	if s := order.Meta(woocommerce.MetaOrderSource); s != "" {
		resp["source"] = s
	}

	var sync models.OrderSync
	if err := h.db.Where("order_id = ?", orderID).First(&sync).Error; err == nil && sync.ContactID != 0 {
		resp["contact_id"] = sync.ContactID
		resp["contact_link"] = fmt.Sprintf("%s/civicrm/contact/view?reset=1&cid=%d", h.config.CiviBaseURL, sync.ContactID)
		if sync.ContributionID != 0 {
			resp["contribution_id"] = sync.ContributionID
		}
	}

	c.JSON(http.StatusOK, resp)
}

type orderMetaUpdate struct {
	CampaignID *int64  `json:"campaign_id"`
	Source     *string `json:"source"`
}

// Update records a panel save. The change is published as an order event so
// the worker applies it with the same pipeline the store hooks use.
func (h *OrderMetaHandler) Update(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	var req orderMetaUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CampaignID == nil && req.Source == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	event := events.OrderEvent{
		Type:       events.TypeOrderUpdated,
		OrderID:    orderID,
		CampaignID: req.CampaignID,
		Source:     req.Source,
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Error("Failed to publish order update for %d: %v", orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue update"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "queued", "order_id": orderID})
}

// Campaigns lists the active CRM campaigns for the panel's selector.
func (h *OrderMetaHandler) Campaigns(c *gin.Context) {
	campaigns, err := h.crm.ListCampaigns()
	if err != nil {
		h.logger.Error("Failed to list campaigns: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list campaigns"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": campaigns, "count": len(campaigns)})
}

// Resync runs the full pipeline for one order inline. The panel exposes it
// for orders created before the synchronizer was installed.
func (h *OrderMetaHandler) Resync(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	order, err := h.engine.FetchOrder(orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	if err := h.engine.ProcessOrder(order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "synced", "order_id": orderID})
}
