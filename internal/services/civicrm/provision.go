package civicrm

import (
	"encoding/json"
	"fmt"
)

const purchaseGroupName = "Woocommerce_purchases"

// EnsurePurchaseFields makes sure the contribution custom group and its two
// fields (sales tax, shipping cost) exist, creating them when missing.
// Returns the numeric ids of the two custom fields.
func (c *Client) EnsurePurchaseFields() (taxFieldID, shippingFieldID int64, err error) {
	groupID, err := c.ensurePurchaseGroup()
	if err != nil {
		return 0, 0, err
	}

	taxFieldID, err = c.ensureCustomField(groupID, "Sales tax", 1)
	if err != nil {
		return 0, 0, err
	}

	shippingFieldID, err = c.ensureCustomField(groupID, "Shipping Cost", 2)
	if err != nil {
		return 0, 0, err
	}

	return taxFieldID, shippingFieldID, nil
}

func (c *Client) ensurePurchaseGroup() (int64, error) {
	result, err := c.Call("CustomGroup", "getsingle", map[string]interface{}{
		"name":   purchaseGroupName,
		"return": []string{"id"},
	})
	if err == nil {
		var group CustomGroup
		if err := json.Unmarshal(result.Raw, &group); err == nil && group.ID != 0 {
			return int64(group.ID), nil
		}
	}

	c.logger.Debug("custom group %s not found, creating it", purchaseGroupName)

	result, err = c.Call("CustomGroup", "create", map[string]interface{}{
		"title":            "Woocommerce Purchases",
		"name":             purchaseGroupName,
		"extends":          []string{"Contribution"},
		"weight":           1,
		"collapse_display": 0,
		"is_active":        1,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create custom group: %w", err)
	}
	return int64(result.ID), nil
}

func (c *Client) ensureCustomField(groupID int64, label string, weight int) (int64, error) {
	result, err := c.Call("CustomField", "getsingle", map[string]interface{}{
		"label":  label,
		"return": []string{"id"},
	})
	if err == nil {
		var field CustomField
		if err := json.Unmarshal(result.Raw, &field); err == nil && field.ID != 0 {
			return int64(field.ID), nil
		}
	}

	result, err = c.Call("CustomField", "create", map[string]interface{}{
		"custom_group_id": groupID,
		"label":           label,
		"html_type":       "Text",
		"data_type":       "String",
		"weight":          weight,
		"is_required":     0,
		"is_searchable":   0,
		"is_active":       1,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create custom field %s: %w", label, err)
	}
	return int64(result.ID), nil
}
