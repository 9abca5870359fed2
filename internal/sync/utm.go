package sync

import (
	"time"

	"civisync/internal/models"
	"civisync/internal/services/woocommerce"
)

// CaptureUTM records a campaign touch for a storefront client. The campaign
// name is validated against the CRM; an unknown campaign clears any stored
// campaign id rather than keeping a stale one.
func (e *Engine) CaptureUTM(clientToken, campaign, source, medium string) error {
	var campaignID int64
	if campaign != "" {
		id, err := e.crm.GetCampaignIDByName(campaign)
		if err != nil {
			e.logger.Error("Not able to fetch campaign %q: %v", campaign, err)
		} else {
			campaignID = id
		}
	}

	var attribution models.UTMAttribution
	err := e.db.DB.Where(models.UTMAttribution{ClientToken: clientToken}).
		FirstOrCreate(&attribution).Error
	if err != nil {
		return err
	}

	if campaign != "" {
		attribution.CampaignID = campaignID
	}
	if source != "" {
		attribution.Source = source
	}
	if medium != "" {
		attribution.Medium = medium
	}
	attribution.ExpiresAt = time.Now().Add(time.Duration(e.config.UTMTTLSeconds) * time.Second)

	return e.db.DB.Save(&attribution).Error
}

// lookupUTM returns the live attribution for the order's client token, nil
// when absent or expired. Expired rows are dropped on sight.
func (e *Engine) lookupUTM(order *woocommerce.Order) *models.UTMAttribution {
	token := order.Meta(woocommerce.MetaUTMToken)
	if token == "" {
		return nil
	}

	var attribution models.UTMAttribution
	if err := e.db.DB.First(&attribution, "client_token = ?", token).Error; err != nil {
		return nil
	}

	if attribution.Expired(time.Now()) {
		e.db.DB.Delete(&attribution)
		return nil
	}
	return &attribution
}

// consumeUTM writes the captured campaign onto the order's annotations. The
// source/medium half of the attribution stays alive until the contribution
// is built, which flushes the whole record.
func (e *Engine) consumeUTM(order *woocommerce.Order) {
	campaignID := int64(e.config.DefaultCampaignID)

	if utm := e.lookupUTM(order); utm != nil {
		if utm.CampaignID != 0 {
			campaignID = utm.CampaignID
			utm.CampaignID = 0
			e.db.DB.Save(utm)
		}
	}

	e.setOrderMeta(order.ID, woocommerce.MetaCampaignID, campaignID)
	order.SetMeta(woocommerce.MetaCampaignID, campaignID)
	e.mirrorSync(order, func(s *models.OrderSync) { s.CampaignID = campaignID })
}

// flushUTM drops the attribution once an order has consumed it.
func (e *Engine) flushUTM(order *woocommerce.Order) {
	token := order.Meta(woocommerce.MetaUTMToken)
	if token == "" {
		return
	}
	e.db.DB.Where("client_token = ?", token).Delete(&models.UTMAttribution{})
}
