package processors

import (
	"fmt"

	"civisync/internal/config"
	"civisync/internal/events"
	"civisync/internal/logger"
	"civisync/internal/sync"
)

// EventProcessor maps order lifecycle events onto pipeline stages. Every
// stage is idempotent, so redelivered events are harmless.
type EventProcessor struct {
	config *config.Config
	logger *logger.Logger
	engine *sync.Engine
}

func NewEventProcessor(cfg *config.Config, logger *logger.Logger, engine *sync.Engine) *EventProcessor {
	return &EventProcessor{
		config: cfg,
		logger: logger,
		engine: engine,
	}
}

func (ep *EventProcessor) Process(event events.OrderEvent) error {
	ep.logger.Debug("Processing %s for order %d", event.Type, event.OrderID)

	switch event.Type {
	case events.TypeOrderCreated, events.TypeOrderPaid:
		order, err := ep.engine.FetchOrder(event.OrderID)
		if err != nil {
			return fmt.Errorf("failed to fetch order %d: %w", event.OrderID, err)
		}
		return ep.engine.ProcessOrder(order)

	case events.TypeOrderStatusChanged:
		ep.engine.UpdateOrderStatus(event.OrderID, event.OldStatus, event.NewStatus)
		return nil

	case events.TypeOrderUpdated:
		return ep.engine.HandleAdminSave(event.OrderID, event.CampaignID, event.Source)
	}

	ep.logger.Debug("Ignoring event type %s", event.Type)
	return nil
}
