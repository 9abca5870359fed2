package sync

import (
	"strings"

	"civisync/internal/services/woocommerce"
)

// Contribution status ids in CiviCRM's option group.
const (
	StatusCompleted  = 1
	StatusPending    = 2
	StatusCancelled  = 3
	StatusFailed     = 4
	StatusInProgress = 5
	StatusRefunded   = 7
)

var contributionStatusMap = map[string]int{
	"completed":  StatusCompleted,
	"pending":    StatusPending,
	"cancelled":  StatusCancelled,
	"failed":     StatusFailed,
	"processing": StatusInProgress,
	"on-hold":    StatusInProgress,
	"refunded":   StatusRefunded,
}

// MapContributionStatus translates a store order status to the CRM
// contribution status id, accepting both bare and "wc-" prefixed forms.
// Unrecognized statuses fall back to Completed.
func MapContributionStatus(orderStatus string) int {
	status := strings.TrimPrefix(orderStatus, "wc-")
	if id, ok := contributionStatusMap[status]; ok {
		return id
	}
	return StatusCompleted
}

var paymentInstrumentMap = map[string]int{
	"paypal": 1,
	"cod":    3,
	"cheque": 4,
	"bacs":   5,
}

// MapPaymentInstrument translates a store payment method code to a CRM
// payment instrument id. Unknown methods are most likely card payments.
func MapPaymentInstrument(paymentMethod string) int {
	if id, ok := paymentInstrumentMap[paymentMethod]; ok {
		return id
	}
	return 1
}

// UpdateOrderStatus handles an order status transition: it first gives the
// idempotent creation stages a chance to complete, then patches the
// contribution status with a full resupply of the header fields the API
// demands on update.
func (e *Engine) UpdateOrderStatus(orderID int64, oldStatus, newStatus string) {
	order, err := e.FetchOrder(orderID)
	if err != nil {
		e.logger.Error("Failed to fetch order %d: %v", orderID, err)
		return
	}

	cid := e.lookupContactID(order)
	if cid == 0 {
		e.addOrderNote(orderID, "CiviCRM Contact could not be fetched")
		return
	}

	if _, err := e.AddContribution(cid, order); err != nil {
		e.logger.Error("Contribution creation failed for order %d: %v", orderID, err)
	}

	marker := order.Meta(woocommerce.MetaMembershipID)
	if marker == "" || marker == "0" {
		e.CheckMembership(order, cid)
	}

	contribution, err := e.crm.GetContributionByInvoice(e.InvoiceID(order),
		[]string{"id", "financial_type_id", "receive_date", "total_amount", "contact_id"})
	if err != nil {
		e.logger.Error("Not able to find contribution for order %d", orderID)
		return
	}

	params := map[string]interface{}{
		"id":                     int64(contribution.ID),
		"contribution_status_id": MapContributionStatus(newStatus),
		"financial_type_id":      int64(contribution.FinancialTypeID),
		"receive_date":           contribution.ReceiveDate,
		"total_amount":           float64(contribution.TotalAmount),
		"contact_id":             int64(contribution.ContactID),
	}
	if err := e.crm.UpdateContribution(params); err != nil {
		e.logger.Error("Not able to update contribution for order %d: %v", orderID, err)
	}
}

// UpdateCampaign patches the contribution's campaign after resolving the
// campaign id to the name the API expects.
func (e *Engine) UpdateCampaign(orderID int64, campaignID int64) {
	campaignName := ""
	if campaignID != 0 {
		var err error
		campaignName, err = e.crm.GetCampaignName(campaignID)
		if err != nil {
			e.logger.Error("Not able to fetch campaign %d: %v", campaignID, err)
			return
		}
	}

	contribution, err := e.crm.GetContributionByInvoice(e.invoiceIDFor(orderID), []string{"id"})
	if err != nil {
		e.logger.Error("Not able to find contribution for order %d", orderID)
		return
	}

	err = e.crm.UpdateContribution(map[string]interface{}{
		"id":          int64(contribution.ID),
		"campaign_id": campaignName,
	})
	if err != nil {
		e.logger.Error("Not able to update contribution for order %d: %v", orderID, err)
	}
}

// UpdateSource patches the contribution's free-text source.
func (e *Engine) UpdateSource(orderID int64, source string) {
	contribution, err := e.crm.GetContributionByInvoice(e.invoiceIDFor(orderID), []string{"id"})
	if err != nil {
		e.logger.Error("Not able to find contribution for order %d", orderID)
		return
	}

	err = e.crm.UpdateContribution(map[string]interface{}{
		"id":     int64(contribution.ID),
		"source": source,
	})
	if err != nil {
		e.logger.Error("Not able to update contribution for order %d: %v", orderID, err)
	}
}

// GenerateSource computes the contribution source label. Point-of-sale
// orders are always "pos"; otherwise UTM attribution wins over the
// configured shop label.
func (e *Engine) GenerateSource(order *woocommerce.Order) string {
	if order.Meta(woocommerce.MetaOrderSource) == woocommerce.SourcePOS {
		return woocommerce.SourcePOS
	}

	source := ""
	if utm := e.lookupUTM(order); utm != nil {
		source = utm.Source
		if utm.Medium != "" {
			if source != "" {
				source += " / " + utm.Medium
			} else {
				source = utm.Medium
			}
		}
	}

	if source == "" {
		source = e.config.ShopSourceLabel
	}
	return source
}
