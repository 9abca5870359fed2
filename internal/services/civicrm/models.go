package civicrm

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexInt64 tolerates CiviCRM's habit of returning numeric ids as either
// JSON numbers or quoted strings.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*f = FlexInt64(n)
	return nil
}

// FlexFloat64 is the monetary counterpart of FlexInt64.
type FlexFloat64 float64

func (f *FlexFloat64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = FlexFloat64(n)
	return nil
}

// Result is the envelope of every API v3 response. getsingle and getvalue
// put the payload at the top level instead of under values, so the raw body
// is kept for those decodes.
type Result struct {
	IsError      int             `json:"is_error"`
	ErrorMessage string          `json:"error_message"`
	Count        int             `json:"count"`
	ID           FlexInt64       `json:"id"`
	Values       json.RawMessage `json:"values"`
	Raw          json.RawMessage `json:"-"`
}

type Contact struct {
	ID            FlexInt64 `json:"id"`
	ContactType   string    `json:"contact_type"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	DisplayName   string    `json:"display_name"`
	ContactSource string    `json:"contact_source"`
	Email         string    `json:"email"`
}

type Address struct {
	ID                   FlexInt64 `json:"id"`
	LocationTypeID       FlexInt64 `json:"location_type_id"`
	StreetAddress        string    `json:"street_address"`
	SupplementalAddress1 string    `json:"supplemental_address_1"`
	City                 string    `json:"city"`
	PostalCode           string    `json:"postal_code"`
	Name                 string    `json:"name"`
}

type Phone struct {
	ID             FlexInt64 `json:"id"`
	LocationTypeID FlexInt64 `json:"location_type_id"`
	Phone          string    `json:"phone"`
}

type Email struct {
	ID             FlexInt64 `json:"id"`
	LocationTypeID FlexInt64 `json:"location_type_id"`
	Email          string    `json:"email"`
}

type Contribution struct {
	ID              FlexInt64   `json:"id"`
	ContactID       FlexInt64   `json:"contact_id"`
	FinancialTypeID FlexInt64   `json:"financial_type_id"`
	ReceiveDate     string      `json:"receive_date"`
	TotalAmount     FlexFloat64 `json:"total_amount"`
	InvoiceID       string      `json:"invoice_id"`
	Source          string      `json:"source"`
}

type Campaign struct {
	ID   FlexInt64 `json:"id"`
	Name string    `json:"name"`
}

// MembershipType carries the period definition used by the membership
// evaluator. Fixed period days are MMDD integers, e.g. 101 for January 1st.
type MembershipType struct {
	ID                     FlexInt64 `json:"id"`
	Name                   string    `json:"name"`
	FinancialTypeID        FlexInt64 `json:"financial_type_id"`
	DurationUnit           string    `json:"duration_unit"`
	DurationInterval       FlexInt64 `json:"duration_interval"`
	PeriodType             string    `json:"period_type"`
	FixedPeriodStartDay    FlexInt64 `json:"fixed_period_start_day"`
	FixedPeriodRolloverDay FlexInt64 `json:"fixed_period_rollover_day"`
}

type CustomGroup struct {
	ID FlexInt64 `json:"id"`
}

type CustomField struct {
	ID FlexInt64 `json:"id"`
}

// LineItem is one row of an Order.create call.
type LineItem struct {
	PriceFieldID    string `json:"price_field_id"`
	Qty             int    `json:"qty"`
	LineTotal       string `json:"line_total"`
	UnitPrice       string `json:"unit_price"`
	Label           string `json:"label"`
	FinancialTypeID int    `json:"financial_type_id"`
}
