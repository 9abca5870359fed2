package woocommerce

import (
	"strconv"
	"time"
)

// Meta keys the synchronizer owns on an order. These mirror the annotations
// the store keeps alongside the order record.
const (
	MetaContributionID = "_woocommerce_civicrm_contribution_id"
	MetaMembershipID   = "_civicrm_membership"
	MetaCampaignID     = "_woocommerce_civicrm_campaign_id"
	MetaOrderSource    = "_order_source"
	MetaOrderNumber    = "_order_number"
	MetaUTMToken       = "_civicrm_utm_token"

	// Product-level financial classification, "exclude" skips the item.
	MetaContributionType = "_civicrm_contribution_type"
)

// SourcePOS marks point-of-sale orders in the order source meta.
const SourcePOS = "pos"

type MetaData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

type AddressFields struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type OrderItem struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Total     string `json:"total"`
}

func (i OrderItem) TotalAmount() float64 {
	v, _ := strconv.ParseFloat(i.Total, 64)
	return v
}

type Order struct {
	ID            int64         `json:"id"`
	Number        string        `json:"number"`
	Status        string        `json:"status"`
	CustomerID    int64         `json:"customer_id"`
	Total         string        `json:"total"`
	TotalTax      string        `json:"total_tax"`
	ShippingTotal string        `json:"shipping_total"`
	PaymentMethod string        `json:"payment_method"`
	DateCreated   string        `json:"date_created"`
	DatePaid      string        `json:"date_paid"`
	Billing       AddressFields `json:"billing"`
	Shipping      AddressFields `json:"shipping"`
	LineItems     []OrderItem   `json:"line_items"`
	MetaData      []MetaData    `json:"meta_data"`
}

// AddressCategory names one of the order's structured address field sets.
type AddressCategory string

const (
	CategoryBilling  AddressCategory = "billing"
	CategoryShipping AddressCategory = "shipping"
)

// Address returns the field set for a category. Shipping carries no phone or
// email in the store's schema; those fields come back empty.
func (o *Order) Address(category AddressCategory) AddressFields {
	if category == CategoryShipping {
		f := o.Shipping
		f.Phone = ""
		f.Email = ""
		return f
	}
	return o.Billing
}

func (o *Order) TotalAmount() float64 {
	v, _ := strconv.ParseFloat(o.Total, 64)
	return v
}

func (o *Order) TotalTaxAmount() float64 {
	v, _ := strconv.ParseFloat(o.TotalTax, 64)
	return v
}

func (o *Order) ShippingAmount() float64 {
	v, _ := strconv.ParseFloat(o.ShippingTotal, 64)
	return v
}

// Meta returns the string form of an order meta value, "" when absent.
func (o *Order) Meta(key string) string {
	for _, m := range o.MetaData {
		if m.Key == key {
			switch v := m.Value.(type) {
			case string:
				return v
			case float64:
				return strconv.FormatInt(int64(v), 10)
			case int64:
				return strconv.FormatInt(v, 10)
			case int:
				return strconv.Itoa(v)
			}
		}
	}
	return ""
}

// SetMeta updates or appends a meta value on the in-memory record, keeping
// it consistent with what was written back to the store.
func (o *Order) SetMeta(key string, value interface{}) {
	for i := range o.MetaData {
		if o.MetaData[i].Key == key {
			o.MetaData[i].Value = value
			return
		}
	}
	o.MetaData = append(o.MetaData, MetaData{Key: key, Value: value})
}

// MetaInt64 returns a numeric meta value, 0 when absent or non-numeric.
func (o *Order) MetaInt64(key string) int64 {
	v, _ := strconv.ParseInt(o.Meta(key), 10, 64)
	return v
}

// PaidAt parses the paid date. ok is false for unpaid orders.
func (o *Order) PaidAt() (time.Time, bool) {
	if o.DatePaid == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02T15:04:05", o.DatePaid)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type OrderNote struct {
	ID   int64  `json:"id"`
	Note string `json:"note"`
}

type Product struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	MetaData []MetaData `json:"meta_data"`
}

// Meta returns the string form of a product meta value, "" when absent.
func (p *Product) Meta(key string) string {
	for _, m := range p.MetaData {
		if m.Key == key {
			if s, ok := m.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}
