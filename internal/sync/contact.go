package sync

import (
	"fmt"
	"strings"

	"civisync/internal/services/woocommerce"
)

// ResolveContact finds or creates the CiviCRM contact behind an order and
// brings its name fields up to date. Returns the contact id, or an error
// that aborts the rest of the pipeline for this event.
func (e *Engine) ResolveContact(order *woocommerce.Order) (int64, error) {
	cid := e.linkedContactID(order)

	contactType := "Individual"
	contactSource := ""
	action := "create"
	params := map[string]interface{}{}

	if cid != 0 {
		contact, err := e.crm.GetContact(cid)
		if err != nil {
			return 0, fmt.Errorf("linked contact %d not found: %w", cid, err)
		}
		contactType = contact.ContactType
		contactSource = contact.ContactSource
		// Preserve existing names when the order field is empty, and update
		// the linked contact in place even when dedupe finds nothing.
		params["first_name"] = contact.FirstName
		params["last_name"] = contact.LastName
		params["id"] = cid
		action = "update"
	}

	firstName := order.Billing.FirstName
	lastName := order.Billing.LastName
	email := order.Billing.Email

	if firstName != "" {
		params["first_name"] = firstName
	}
	if lastName != "" {
		params["last_name"] = lastName
	}
	params["contact_type"] = contactType
	params["email"] = email

	// Deterministic dedupe: an existing contact wins over creating one.
	matches, err := e.crm.DuplicateCheck(contactType, firstName, lastName, email)
	if err != nil {
		e.logger.Error("Dedupe check failed for order %d: %v", order.ID, err)
	} else if len(matches) > 0 {
		cid = matches[0]
		action = "update"
		params["id"] = cid
	}

	if name := strings.TrimSpace(firstName + " " + lastName); name != "" {
		params["display_name"] = name
	}
	if contactSource == "" {
		params["contact_source"] = "Woocommerce purchase"
	}

	newCID, err := e.crm.CreateContact(params)
	if err != nil {
		return 0, fmt.Errorf("contact %s failed: %w", action, err)
	}

	if action == "update" {
		e.addOrderNote(order.ID, fmt.Sprintf("CiviCRM Contact Updated - %d", newCID))
	} else {
		e.addOrderNote(order.ID, fmt.Sprintf("Created new CiviCRM Contact - %d", newCID))
	}

	return newCID, nil
}

// linkedContactID resolves the order's store account to a contact via
// UFMatch, 0 when the order is a guest checkout or no match exists.
func (e *Engine) linkedContactID(order *woocommerce.Order) int64 {
	if order.CustomerID == 0 {
		return 0
	}
	cid, err := e.crm.UFMatchContactID(order.CustomerID)
	if err != nil {
		e.logger.Error("UFMatch lookup failed for customer %d: %v", order.CustomerID, err)
		return 0
	}
	return cid
}

// lookupContactID is the lightweight resolution used by stages that run
// after the contact already exists: linked account first, dedupe second.
func (e *Engine) lookupContactID(order *woocommerce.Order) int64 {
	if cid := e.linkedContactID(order); cid != 0 {
		return cid
	}
	matches, err := e.crm.DuplicateCheck("Individual", order.Billing.FirstName, order.Billing.LastName, order.Billing.Email)
	if err != nil || len(matches) == 0 {
		return 0
	}
	return matches[0]
}
