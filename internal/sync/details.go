package sync

import (
	"fmt"

	"civisync/internal/services/civicrm"
	"civisync/internal/services/woocommerce"
)

// ReconcileContactDetails creates or updates the contact's phone, email and
// address records from the order's billing and shipping field sets. Each
// record failure is local: it is logged and the loop continues.
func (e *Engine) ReconcileContactDetails(cid int64, order *woocommerce.Order) {
	existingAddresses, err := e.crm.GetAddresses(cid)
	if err != nil {
		e.logger.Error("Failed to fetch addresses for contact %d: %v", cid, err)
	}
	existingPhones, err := e.crm.GetPhones(cid)
	if err != nil {
		e.logger.Error("Failed to fetch phones for contact %d: %v", cid, err)
	}
	existingEmails, err := e.crm.GetEmails(cid)
	if err != nil {
		e.logger.Error("Failed to fetch emails for contact %d: %v", cid, err)
	}

	categories := []struct {
		category       woocommerce.AddressCategory
		locationTypeID int
	}{
		{woocommerce.CategoryBilling, e.config.BillingLocationTypeID},
		{woocommerce.CategoryShipping, e.config.ShippingLocationTypeID},
	}

	for _, ct := range categories {
		fields := order.Address(ct.category)

		e.reconcilePhone(cid, order, ct.category, ct.locationTypeID, fields, existingPhones)
		e.reconcileEmail(cid, order, ct.category, ct.locationTypeID, fields, existingEmails)
		e.reconcileAddress(cid, order, ct.category, ct.locationTypeID, fields, existingAddresses)
	}
}

func (e *Engine) reconcilePhone(cid int64, order *woocommerce.Order, category woocommerce.AddressCategory, locationTypeID int, fields woocommerce.AddressFields, existing []civicrm.Phone) {
	if fields.Phone == "" {
		return
	}

	params := map[string]interface{}{
		"phone_type_id":    1,
		"location_type_id": locationTypeID,
		"phone":            fields.Phone,
		"contact_id":       cid,
	}

	// Same value anywhere on the contact means skip; same location type
	// means update in place rather than duplicate.
	for _, p := range existing {
		if int(p.LocationTypeID) == locationTypeID {
			params["id"] = int64(p.ID)
		}
		if p.Phone == fields.Phone {
			return
		}
	}

	if _, err := e.crm.CreatePhone(params); err != nil {
		e.logger.Error("Failed to create/update phone for contact %d: %v", cid, err)
		return
	}
	if _, updated := params["id"]; !updated {
		e.addOrderNote(order.ID, fmt.Sprintf("Created new CiviCRM Phone of type %s: %s", category, fields.Phone))
	}
}

func (e *Engine) reconcileEmail(cid int64, order *woocommerce.Order, category woocommerce.AddressCategory, locationTypeID int, fields woocommerce.AddressFields, existing []civicrm.Email) {
	if fields.Email == "" {
		return
	}

	params := map[string]interface{}{
		"location_type_id": locationTypeID,
		"email":            fields.Email,
		"contact_id":       cid,
	}

	for _, m := range existing {
		if int(m.LocationTypeID) == locationTypeID {
			params["id"] = int64(m.ID)
		}
		if m.Email == fields.Email {
			return
		}
	}

	if _, err := e.crm.CreateEmail(params); err != nil {
		e.logger.Error("Failed to create/update email for contact %d: %v", cid, err)
		return
	}
	if _, updated := params["id"]; !updated {
		e.addOrderNote(order.ID, fmt.Sprintf("Created new CiviCRM Email of type %s: %s", category, fields.Email))
	}
}

func (e *Engine) reconcileAddress(cid int64, order *woocommerce.Order, category woocommerce.AddressCategory, locationTypeID int, fields woocommerce.AddressFields, existing []civicrm.Address) {
	// An address needs at least a street line and a postcode.
	if fields.Address1 == "" || fields.Postcode == "" {
		return
	}

	params := map[string]interface{}{
		"location_type_id":       locationTypeID,
		"city":                   fields.City,
		"postal_code":            fields.Postcode,
		"name":                   fields.Company,
		"street_address":         fields.Address1,
		"supplemental_address_1": fields.Address2,
		"contact_id":             cid,
	}
	if fields.Country != "" {
		params["country"] = fields.Country
	}

	for _, a := range existing {
		if int(a.LocationTypeID) == locationTypeID {
			params["id"] = int64(a.ID)
		} else if a.StreetAddress == fields.Address1 &&
			a.SupplementalAddress1 == fields.Address2 &&
			a.City == fields.City &&
			a.PostalCode == fields.Postcode {
			// Same physical address at another slot, don't re-create it.
			return
		}
	}

	if _, err := e.crm.CreateAddress(params); err != nil {
		e.logger.Error("Failed to create/update address for contact %d: %v", cid, err)
		return
	}
	if _, updated := params["id"]; !updated {
		e.addOrderNote(order.ID, fmt.Sprintf("Created new CiviCRM Address of type %s: %s", category, fields.Address1))
	}
}
