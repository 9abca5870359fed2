package models

import "time"

// Setting is a key/value row for ids provisioned in CiviCRM at runtime
// (custom group and custom field ids).
type Setting struct {
	Key       string    `json:"key" gorm:"primary_key"`
	Value     string    `json:"value" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	SettingContributionGroupID = "civicrm_contribution_group_id"
	SettingSalesTaxFieldID     = "civicrm_sales_tax_field_id"
	SettingShippingCostFieldID = "civicrm_shipping_cost_field_id"
)
