package sync

import (
	"fmt"

	"civisync/internal/config"
	"civisync/internal/database"
	"civisync/internal/logger"
	"civisync/internal/models"
	"civisync/internal/services/civicrm"
	"civisync/internal/services/woocommerce"
)

// Engine runs the order-to-contribution pipeline. State lives in the two
// remote systems; the engine itself only carries clients and configuration,
// so stages stay independently re-triggerable.
type Engine struct {
	config *config.Config
	logger *logger.Logger
	db     *database.Database
	crm    *civicrm.Client
	stores *woocommerce.Stores
}

func NewEngine(cfg *config.Config, logger *logger.Logger, db *database.Database, crm *civicrm.Client, stores *woocommerce.Stores) *Engine {
	return &Engine{
		config: cfg,
		logger: logger,
		db:     db,
		crm:    crm,
		stores: stores,
	}
}

// ProcessOrder runs the full pipeline for a newly created or paid order:
// contact resolution, detail reconciliation, source and campaign metadata,
// contribution creation and membership evaluation. Contact failure aborts
// everything; later stages fail independently.
func (e *Engine) ProcessOrder(order *woocommerce.Order) error {
	cid, err := e.ResolveContact(order)
	if err != nil {
		e.logger.Error("Contact resolution failed for order %d: %v", order.ID, err)
		e.addOrderNote(order.ID, "CiviCRM Contact could not be found or created")
		return err
	}

	e.ReconcileContactDetails(cid, order)

	// The contribution does not exist yet; it picks the source up at
	// creation time from this meta.
	source := e.GenerateSource(order)
	e.setOrderMeta(order.ID, woocommerce.MetaOrderSource, source)
	order.SetMeta(woocommerce.MetaOrderSource, source)
	e.mirrorSync(order, func(s *models.OrderSync) {
		s.ContactID = cid
		s.Source = source
	})

	e.consumeUTM(order)

	if _, err := e.AddContribution(cid, order); err != nil {
		e.logger.Error("Contribution creation failed for order %d: %v", order.ID, err)
	}

	e.CheckMembership(order, cid)

	return nil
}

// HandleAdminSave applies campaign/source values posted from the order edit
// screen and re-runs the idempotent stages so a staff edit can complete a
// previously failed sync.
func (e *Engine) HandleAdminSave(orderID int64, campaignID *int64, source *string) error {
	order, err := e.FetchOrder(orderID)
	if err != nil {
		return fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	if campaignID != nil && *campaignID != order.MetaInt64(woocommerce.MetaCampaignID) {
		e.UpdateCampaign(orderID, *campaignID)
		e.setOrderMeta(orderID, woocommerce.MetaCampaignID, *campaignID)
		order.SetMeta(woocommerce.MetaCampaignID, *campaignID)
		e.mirrorSync(order, func(s *models.OrderSync) { s.CampaignID = *campaignID })
	}

	if source != nil && *source != order.Meta(woocommerce.MetaOrderSource) {
		e.UpdateSource(orderID, *source)
		e.setOrderMeta(orderID, woocommerce.MetaOrderSource, *source)
		order.SetMeta(woocommerce.MetaOrderSource, *source)
		e.mirrorSync(order, func(s *models.OrderSync) { s.Source = *source })
	}

	// Membership evaluation is guarded by its own marker, safe to re-run.
	marker := order.Meta(woocommerce.MetaMembershipID)
	if marker == "" {
		e.CheckMembership(order, 0)
	}

	return nil
}

// FetchOrder loads an order from the store that owns order storage.
func (e *Engine) FetchOrder(orderID int64) (*woocommerce.Order, error) {
	var order *woocommerce.Order
	err := e.stores.WithOrdersStore(func(c *woocommerce.Client) error {
		var err error
		order, err = c.GetOrder(orderID)
		return err
	})
	return order, err
}

// InvoiceID derives the stable per-order key used to find a previously
// created contribution.
func (e *Engine) InvoiceID(order *woocommerce.Order) string {
	if n := order.Meta(woocommerce.MetaOrderNumber); n != "" {
		return n
	}
	return fmt.Sprintf("%d_woocommerce", order.ID)
}

func (e *Engine) invoiceIDFor(orderID int64) string {
	var sync models.OrderSync
	if err := e.db.DB.First(&sync, "order_id = ?", orderID).Error; err == nil && sync.OrderNumber != "" {
		return sync.OrderNumber
	}
	return fmt.Sprintf("%d_woocommerce", orderID)
}

// addOrderNote writes a staff-visible audit note, logging failures instead
// of surfacing them: a note must never break checkout handling.
func (e *Engine) addOrderNote(orderID int64, note string) {
	err := e.stores.WithOrdersStore(func(c *woocommerce.Client) error {
		return c.AddOrderNote(orderID, note)
	})
	if err != nil {
		e.logger.Error("Failed to add note to order %d: %v", orderID, err)
	}
}

func (e *Engine) setOrderMeta(orderID int64, key string, value interface{}) {
	err := e.stores.WithOrdersStore(func(c *woocommerce.Client) error {
		return c.UpdateOrderMeta(orderID, map[string]interface{}{key: value})
	})
	if err != nil {
		e.logger.Error("Failed to update meta %s on order %d: %v", key, orderID, err)
	}
}

// mirrorSync upserts the local copy of the order's annotations.
func (e *Engine) mirrorSync(order *woocommerce.Order, update func(*models.OrderSync)) {
	var sync models.OrderSync
	err := e.db.DB.Where(models.OrderSync{OrderID: order.ID}).
		Attrs(models.OrderSync{OrderNumber: order.Number}).
		FirstOrCreate(&sync).Error
	if err != nil {
		e.logger.Error("Failed to load sync record for order %d: %v", order.ID, err)
		return
	}

	update(&sync)
	if err := e.db.DB.Save(&sync).Error; err != nil {
		e.logger.Error("Failed to save sync record for order %d: %v", order.ID, err)
	}
}
