package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"civisync/internal/config"
	"civisync/internal/events"
	"civisync/internal/logger"

	"github.com/gin-gonic/gin"
)

// WebhookHandler turns WooCommerce webhooks into order lifecycle events.
type WebhookHandler struct {
	config    *config.Config
	logger    *logger.Logger
	publisher *events.Publisher
}

func NewWebhookHandler(cfg *config.Config, logger *logger.Logger, publisher *events.Publisher) *WebhookHandler {
	return &WebhookHandler{
		config:    cfg,
		logger:    logger,
		publisher: publisher,
	}
}

type webhookOrder struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	if !h.verifySignature(body, c.GetHeader("X-WC-Webhook-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	topic := c.GetHeader("X-WC-Webhook-Topic")

	var order webhookOrder
	if err := json.Unmarshal(body, &order); err != nil || order.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	event := events.OrderEvent{OrderID: order.ID}
	switch topic {
	case "order.created":
		event.Type = events.TypeOrderCreated
	case "order.updated":
		event.Type = events.TypeOrderStatusChanged
		event.NewStatus = order.Status
	default:
		h.logger.Debug("Ignoring webhook topic %s", topic)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.publisher.Publish(c.Request.Context(), event); err != nil {
		h.logger.Error("Failed to publish webhook event: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if h.config.WooWebhookSecret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(h.config.WooWebhookSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
