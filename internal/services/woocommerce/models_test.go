package woocommerce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderMeta(t *testing.T) {
	order := Order{
		MetaData: []MetaData{
			{Key: MetaContributionID, Value: float64(900)},
			{Key: MetaOrderSource, Value: "pos"},
		},
	}

	assert.Equal(t, "900", order.Meta(MetaContributionID))
	assert.Equal(t, int64(900), order.MetaInt64(MetaContributionID))
	assert.Equal(t, "pos", order.Meta(MetaOrderSource))
	assert.Equal(t, "", order.Meta(MetaCampaignID))
	assert.Zero(t, order.MetaInt64(MetaOrderSource))
}

func TestOrderPaidAt(t *testing.T) {
	order := Order{DatePaid: "2024-03-15T12:30:00"}
	paidAt, ok := order.PaidAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 15, 12, 30, 0, 0, time.UTC), paidAt)

	unpaid := Order{}
	_, ok = unpaid.PaidAt()
	assert.False(t, ok)
}

func TestOrderAddressShippingCarriesNoPhoneOrEmail(t *testing.T) {
	order := Order{
		Billing: AddressFields{
			Address1: "12 Analytical Way",
			Phone:    "555-0100",
			Email:    "ada@example.org",
		},
		Shipping: AddressFields{
			Address1: "1 Delivery Lane",
			Phone:    "should-not-survive",
			Email:    "should-not-survive@example.org",
		},
	}

	billing := order.Address(CategoryBilling)
	assert.Equal(t, "555-0100", billing.Phone)

	shipping := order.Address(CategoryShipping)
	assert.Equal(t, "1 Delivery Lane", shipping.Address1)
	assert.Empty(t, shipping.Phone)
	assert.Empty(t, shipping.Email)
}

func TestStoresScopeRouting(t *testing.T) {
	primary := &Client{baseURL: "https://shop.example"}
	orders := &Client{baseURL: "https://orders.example"}

	t.Run("single store install", func(t *testing.T) {
		stores := NewStores(primary, nil)
		assert.False(t, stores.Remote())
		stores.WithOrdersStore(func(c *Client) error {
			assert.Same(t, primary, c)
			return nil
		})
	})

	t.Run("network install routes to the orders store", func(t *testing.T) {
		stores := NewStores(primary, orders)
		assert.True(t, stores.Remote())
		stores.WithOrdersStore(func(c *Client) error {
			assert.Same(t, orders, c)
			return nil
		})
	})
}
