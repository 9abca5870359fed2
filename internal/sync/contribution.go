package sync

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"civisync/internal/models"
	"civisync/internal/services/civicrm"
	"civisync/internal/services/woocommerce"
)

// AddContribution assembles and submits the financial contribution for an
// order: header, custom tax/shipping fields and one line item per order
// item. It creates at most once per order; the contribution id stamped on
// the order is the idempotency marker.
func (e *Engine) AddContribution(cid int64, order *woocommerce.Order) (int64, error) {
	if e.config.IgnoreZeroAmountOrders && order.TotalAmount() == 0 {
		e.logger.Debug("Skipping zero amount order %d", order.ID)
		return 0, nil
	}

	paidAt, paid := order.PaidAt()
	if !paid {
		e.logger.Debug("Order %d has no paid date yet, skipping contribution", order.ID)
		return 0, nil
	}

	if existing := order.MetaInt64(woocommerce.MetaContributionID); existing != 0 {
		return existing, nil
	}

	taxFieldID, shippingFieldID, err := e.purchaseFieldIDs()
	if err != nil {
		e.addOrderNote(order.ID, "CiviCRM Contribution could not be created")
		return 0, fmt.Errorf("failed to provision custom fields: %w", err)
	}

	format := e.fetchMoneyFormat()

	salesTaxRaw := order.TotalTaxAmount()
	salesTax := format.format(salesTaxRaw)
	shippingCost := format.format(order.ShippingAmount())

	roundedTotal := math.Round(order.TotalAmount()*100) / 100
	// Approximate the pre-tax subtotal; the order carries no direct field.
	subtotal := format.format(roundedTotal - salesTaxRaw)

	financialTypeID := e.config.FinancialTypeID
	if salesTaxRaw > 0 {
		financialTypeID = e.config.FinancialTypeVATID
	}

	campaignName, err := e.campaignNameForOrder(order)
	if err != nil {
		return 0, err
	}

	source := e.GenerateSource(order)

	var lineItems []civicrm.LineItem

	if order.ShippingAmount() > 0 {
		lineItems = append(lineItems, civicrm.LineItem{
			PriceFieldID:    "1",
			Qty:             1,
			LineTotal:       shippingCost,
			UnitPrice:       shippingCost,
			Label:           "Shipping",
			FinancialTypeID: e.config.ShippingFinancialTypeID,
		})
	}

	itemTypes := map[int]bool{}
	hasExplicit := false
	lastItemType := e.config.FinancialTypeID
	for _, item := range order.LineItems {
		itemType, explicit, excluded := e.itemFinancialType(item)
		if excluded {
			continue
		}

		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}

		lineItems = append(lineItems, civicrm.LineItem{
			PriceFieldID:    "1",
			Qty:             qty,
			LineTotal:       format.format(item.TotalAmount()),
			UnitPrice:       format.format(item.TotalAmount() / float64(qty)),
			Label:           item.Name,
			FinancialTypeID: itemType,
		})
		itemTypes[itemType] = true
		if explicit {
			hasExplicit = true
			lastItemType = itemType
		}
	}

	// One explicit classification shared by every non-excluded item overrides
	// the default. Items without their own classification count as the default
	// type, so a mixed cart never takes the override.
	if hasExplicit && len(itemTypes) == 1 {
		financialTypeID = lastItemType
	}

	params := map[string]interface{}{
		"contact_id":            cid,
		"financial_type_id":     financialTypeID,
		"payment_instrument_id": MapPaymentInstrument(order.PaymentMethod),
		"trxn_id":               fmt.Sprintf("Woocommerce Order - %d", order.ID),
		"invoice_id":            e.InvoiceID(order),
		"source":                source,
		"receive_date":          paidAt.Format("2006-01-02 15:04:05"),
		"total_amount":          format.format(roundedTotal),
		"net_amount":            subtotal,
		"note":                  detailString(order.LineItems),
		"campaign_id":           campaignName,
		"line_items": []map[string]interface{}{
			{
				"params":    map[string]interface{}{},
				"line_item": lineItems,
			},
		},
	}
	params[fmt.Sprintf("custom_%d", taxFieldID)] = salesTax
	params[fmt.Sprintf("custom_%d", shippingFieldID)] = shippingCost

	// The attribution has served both the campaign and the source by now.
	e.flushUTM(order)

	contributionID, err := e.crm.CreateOrder(params)
	if err != nil {
		e.logger.Error("Not able to add contribution for order %d: %v", order.ID, err)
		e.addOrderNote(order.ID, "CiviCRM Contribution could not be created")
		return 0, err
	}

	e.setOrderMeta(order.ID, woocommerce.MetaContributionID, contributionID)
	order.SetMeta(woocommerce.MetaContributionID, contributionID)
	e.mirrorSync(order, func(s *models.OrderSync) { s.ContributionID = contributionID })
	e.addOrderNote(order.ID, fmt.Sprintf("Contribution %d has been created in CiviCRM", contributionID))

	return contributionID, nil
}

// itemFinancialType reads the product's financial classification meta.
// explicit is true when the product carries its own classification, excluded
// when it is flagged to stay out of the CRM.
func (e *Engine) itemFinancialType(item woocommerce.OrderItem) (financialTypeID int, explicit, excluded bool) {
	var product *woocommerce.Product
	err := e.stores.WithOrdersStore(func(c *woocommerce.Client) error {
		var err error
		product, err = c.GetProduct(item.ProductID)
		return err
	})
	if err != nil {
		e.logger.Error("Failed to fetch product %d: %v", item.ProductID, err)
		return e.config.FinancialTypeID, false, false
	}

	meta := product.Meta(woocommerce.MetaContributionType)
	if meta == "exclude" {
		return 0, false, true
	}
	if typeID, err := strconv.Atoi(meta); err == nil && typeID > 0 {
		return typeID, true, false
	}
	return e.config.FinancialTypeID, false, false
}

// campaignNameForOrder resolves the order's campaign annotation (or the
// configured default) to the campaign name the contribution API expects.
func (e *Engine) campaignNameForOrder(order *woocommerce.Order) (string, error) {
	campaignID := order.MetaInt64(woocommerce.MetaCampaignID)
	if campaignID == 0 {
		campaignID = int64(e.config.DefaultCampaignID)
	}
	if campaignID == 0 {
		return "", nil
	}

	name, err := e.crm.GetCampaignName(campaignID)
	if err != nil {
		return "", fmt.Errorf("not able to fetch campaign %d: %w", campaignID, err)
	}
	return name, nil
}

// detailString builds the purchase activity detail, "Item x 2, Other x 1".
func detailString(items []woocommerce.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s x %d", item.Name, item.Quantity))
	}
	return strings.Join(parts, ", ")
}

// purchaseFieldIDs returns the custom field ids for sales tax and shipping
// cost, provisioning them in the CRM on first use and caching locally.
func (e *Engine) purchaseFieldIDs() (taxFieldID, shippingFieldID int64, err error) {
	taxFieldID = e.settingInt64(models.SettingSalesTaxFieldID)
	shippingFieldID = e.settingInt64(models.SettingShippingCostFieldID)
	if taxFieldID != 0 && shippingFieldID != 0 {
		return taxFieldID, shippingFieldID, nil
	}

	taxFieldID, shippingFieldID, err = e.crm.EnsurePurchaseFields()
	if err != nil {
		return 0, 0, err
	}

	e.saveSetting(models.SettingSalesTaxFieldID, strconv.FormatInt(taxFieldID, 10))
	e.saveSetting(models.SettingShippingCostFieldID, strconv.FormatInt(shippingFieldID, 10))
	return taxFieldID, shippingFieldID, nil
}

func (e *Engine) settingInt64(key string) int64 {
	var setting models.Setting
	if err := e.db.DB.First(&setting, "key = ?", key).Error; err != nil {
		return 0
	}
	v, _ := strconv.ParseInt(setting.Value, 10, 64)
	return v
}

func (e *Engine) saveSetting(key, value string) {
	setting := models.Setting{Key: key, Value: value}
	if err := e.db.DB.Save(&setting).Error; err != nil {
		e.logger.Error("Failed to save setting %s: %v", key, err)
	}
}
