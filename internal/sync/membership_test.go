package sync

import (
	"testing"
	"time"

	"civisync/internal/models"
	"civisync/internal/services/woocommerce"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFixedPeriodStart(t *testing.T) {
	tests := []struct {
		name        string
		paidAt      time.Time
		startDay    int
		rolloverDay int
		want        time.Time
	}{
		{
			name:     "purchase after this year's start day",
			paidAt:   date(2024, time.March, 15),
			startDay: 101, rolloverDay: 1001,
			want: date(2024, time.January, 1),
		},
		{
			name:     "late-year purchase stays in the running cycle",
			paidAt:   date(2023, time.December, 20),
			startDay: 101, rolloverDay: 1001,
			want: date(2023, time.January, 1),
		},
		{
			name:     "purchase on the start day itself",
			paidAt:   date(2024, time.April, 1),
			startDay: 401, rolloverDay: 301,
			want: date(2024, time.April, 1),
		},
		{
			name:     "purchase between rollover and start joins the upcoming cycle",
			paidAt:   date(2024, time.March, 15),
			startDay: 401, rolloverDay: 301,
			want: date(2024, time.April, 1),
		},
		{
			name:     "purchase before the rollover belongs to last year's cycle",
			paidAt:   date(2024, time.February, 10),
			startDay: 401, rolloverDay: 301,
			want: date(2023, time.April, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fixedPeriodStart(tt.paidAt, tt.startDay, tt.rolloverDay)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddDuration(t *testing.T) {
	start := date(2024, time.January, 1)

	t.Run("years", func(t *testing.T) {
		end, ok := addDuration(start, 2, "year")
		require.True(t, ok)
		assert.Equal(t, date(2026, time.January, 1), end)
	})

	t.Run("months with zero interval default to one", func(t *testing.T) {
		end, ok := addDuration(start, 0, "month")
		require.True(t, ok)
		assert.Equal(t, date(2024, time.February, 1), end)
	})

	t.Run("lifetime has no end", func(t *testing.T) {
		_, ok := addDuration(start, 1, "lifetime")
		assert.False(t, ok)
	})
}

func membershipTypesBody() string {
	return `{"is_error":0,"count":2,"values":[
		{"id":"3","name":"Gold","financial_type_id":"12","duration_unit":"year",
		 "duration_interval":"1","period_type":"rolling"},
		{"id":"4","name":"Fixed Gold","financial_type_id":"13","duration_unit":"year",
		 "duration_interval":"1","period_type":"fixed",
		 "fixed_period_start_day":"101","fixed_period_rollover_day":"1001"}
	]}`
}

func TestCheckMembershipCreatesAtMostOne(t *testing.T) {
	crmSrv := newFakeCRM(t)
	store := newFakeStore(t)
	engine := newTestEngine(t, crmSrv, store)

	order := paidOrder(300)
	order.LineItems = []woocommerce.OrderItem{
		{ID: 1, Name: "Gold membership", ProductID: 310, Quantity: 1, Total: "50.00"},
		{ID: 2, Name: "Second membership", ProductID: 311, Quantity: 1, Total: "50.00"},
	}
	store.orders[order.ID] = order
	store.products[310] = &woocommerce.Product{
		ID:       310,
		MetaData: []woocommerce.MetaData{{Key: woocommerce.MetaContributionType, Value: "12"}},
	}
	store.products[311] = &woocommerce.Product{
		ID:       311,
		MetaData: []woocommerce.MetaData{{Key: woocommerce.MetaContributionType, Value: "13"}},
	}

	crmSrv.respond("MembershipType.get", membershipTypesBody())
	crmSrv.respond("Membership.create", `{"is_error":0,"count":1,"id":50,"values":[]}`)
	crmSrv.respond("Contribution.getsingle", `{"is_error":0,"id":900}`)

	engine.CheckMembership(order, 77)

	creates := crmSrv.callsTo("Membership", "create")
	require.Len(t, creates, 1)
	assert.Equal(t, "Gold", creates[0].Params["membership_type_id"])
	assert.Equal(t, "2024-03-15", creates[0].Params["start_date"])
	assert.Equal(t, "2025-03-15", creates[0].Params["end_date"])

	payments := crmSrv.callsTo("MembershipPayment", "create")
	require.Len(t, payments, 1)
	assert.EqualValues(t, 50, payments[0].Params["membership_id"])
	assert.EqualValues(t, 900, payments[0].Params["contribution_id"])

	assert.Equal(t, 1, store.noteCount("Membership 50 has been created in CiviCRM"))
	assert.Equal(t, "50", store.orders[order.ID].Meta(woocommerce.MetaMembershipID))
}

func TestCheckMembershipFixedPeriodDates(t *testing.T) {
	crmSrv := newFakeCRM(t)
	store := newFakeStore(t)
	engine := newTestEngine(t, crmSrv, store)

	order := paidOrder(301)
	order.LineItems = []woocommerce.OrderItem{
		{ID: 1, Name: "Fixed Gold membership", ProductID: 311, Quantity: 1, Total: "50.00"},
	}
	store.orders[order.ID] = order
	store.products[311] = &woocommerce.Product{
		ID:       311,
		MetaData: []woocommerce.MetaData{{Key: woocommerce.MetaContributionType, Value: "13"}},
	}

	crmSrv.respond("MembershipType.get", membershipTypesBody())
	crmSrv.respond("Membership.create", `{"is_error":0,"count":1,"id":51,"values":[]}`)
	crmSrv.respond("Contribution.getsingle", `{"is_error":0,"id":900}`)

	engine.CheckMembership(order, 77)

	creates := crmSrv.callsTo("Membership", "create")
	require.Len(t, creates, 1)
	assert.Equal(t, "2024-01-01", creates[0].Params["start_date"])
	assert.Equal(t, "2025-01-01", creates[0].Params["end_date"])
}

func TestCheckMembershipMarkerGuard(t *testing.T) {
	crmSrv := newFakeCRM(t)
	store := newFakeStore(t)
	engine := newTestEngine(t, crmSrv, store)

	order := paidOrder(302)
	order.MetaData = append(order.MetaData, woocommerce.MetaData{
		Key: woocommerce.MetaMembershipID, Value: "55",
	})
	store.orders[order.ID] = order

	engine.CheckMembership(order, 77)

	assert.Empty(t, crmSrv.callsTo("MembershipType", "get"))
	assert.Empty(t, crmSrv.callsTo("Membership", "create"))
}

func TestCheckMembershipIgnoresUnclassifiedProducts(t *testing.T) {
	crmSrv := newFakeCRM(t)
	store := newFakeStore(t)
	engine := newTestEngine(t, crmSrv, store)

	order := paidOrder(304)
	store.orders[order.ID] = order

	// A membership type sharing the default financial type must not match a
	// product that never declared a classification of its own.
	crmSrv.respond("MembershipType.get", `{"is_error":0,"count":1,"values":[
		{"id":"5","name":"Basic","financial_type_id":"1","duration_unit":"year",
		 "duration_interval":"1","period_type":"rolling"}
	]}`)

	engine.CheckMembership(order, 77)

	assert.Empty(t, crmSrv.callsTo("Membership", "create"))
	assert.Equal(t, "0", store.orders[order.ID].Meta(woocommerce.MetaMembershipID))
}

func TestCheckMembershipWritesZeroMarkerWhenNothingMatches(t *testing.T) {
	crmSrv := newFakeCRM(t)
	store := newFakeStore(t)
	engine := newTestEngine(t, crmSrv, store)

	order := paidOrder(303)
	store.orders[order.ID] = order

	crmSrv.respond("MembershipType.get", membershipTypesBody())

	engine.CheckMembership(order, 77)

	assert.Empty(t, crmSrv.callsTo("Membership", "create"))
	assert.Equal(t, "0", store.orders[order.ID].Meta(woocommerce.MetaMembershipID))

	var sync models.OrderSync
	require.NoError(t, engine.db.DB.First(&sync, "order_id = ?", order.ID).Error)
	assert.True(t, sync.MembershipProcessed)
	assert.Zero(t, sync.MembershipID)
}
