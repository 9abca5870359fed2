package sync

import (
	"fmt"
	"strconv"
	"time"

	"civisync/internal/models"
	"civisync/internal/services/civicrm"
	"civisync/internal/services/woocommerce"
)

// CheckMembership scans the order's line items for membership-type products
// and creates at most one membership per order. The order's membership
// marker ("" or "0" means not yet attempted) makes repeat invocations
// no-ops, and is always written back, even when nothing matched.
func (e *Engine) CheckMembership(order *woocommerce.Order, cid int64) {
	marker := order.Meta(woocommerce.MetaMembershipID)
	if marker != "" && marker != "0" {
		return
	}

	if cid == 0 {
		cid = e.lookupContactID(order)
	}
	if cid == 0 {
		return
	}

	paidAt, paid := order.PaidAt()
	if !paid {
		return
	}

	types, err := e.crm.GetMembershipTypes()
	if err != nil {
		e.logger.Error("Not able to fetch membership types: %v", err)
		return
	}
	byFinancialType := make(map[int64]civicrm.MembershipType, len(types))
	for _, t := range types {
		byFinancialType[int64(t.FinancialTypeID)] = t
	}

	var membershipID int64

	for _, item := range order.LineItems {
		itemType, explicit, excluded := e.itemFinancialType(item)
		// Only products carrying their own classification can buy a
		// membership, never the default-type fallback.
		if excluded || !explicit {
			continue
		}
		membershipType, ok := byFinancialType[int64(itemType)]
		if !ok {
			continue
		}

		startDate := paidAt
		if membershipType.PeriodType == "fixed" {
			startDate = fixedPeriodStart(paidAt,
				int(membershipType.FixedPeriodStartDay),
				int(membershipType.FixedPeriodRolloverDay))
		}

		endDate, hasEnd := addDuration(startDate,
			int(membershipType.DurationInterval), membershipType.DurationUnit)

		params := map[string]interface{}{
			"membership_type_id": membershipType.Name,
			"contact_id":         cid,
			"join_date":          startDate.Format("2006-01-02"),
			"start_date":         startDate.Format("2006-01-02"),
			"campaign_id":        order.Meta(woocommerce.MetaCampaignID),
			"source":             order.Meta(woocommerce.MetaOrderSource),
			"status_id":          "Current",
		}
		if hasEnd {
			params["end_date"] = endDate.Format("2006-01-02")
		}

		id, err := e.crm.CreateMembership(params)
		if err != nil {
			// Creation failures are silent: logged, no order note.
			e.logger.Error("Not able to create membership for order %d: %v", order.ID, err)
			continue
		}

		membershipID = id
		e.addOrderNote(order.ID, fmt.Sprintf("Membership %d has been created in CiviCRM", membershipID))
		e.linkMembershipPayment(order, membershipID)
		break
	}

	e.setOrderMeta(order.ID, woocommerce.MetaMembershipID, strconv.FormatInt(membershipID, 10))
	order.SetMeta(woocommerce.MetaMembershipID, strconv.FormatInt(membershipID, 10))
	e.mirrorSync(order, func(s *models.OrderSync) {
		s.MembershipID = membershipID
		s.MembershipProcessed = true
	})
}

// linkMembershipPayment ties the membership to the order's contribution.
// A missing contribution is logged and otherwise ignored.
func (e *Engine) linkMembershipPayment(order *woocommerce.Order, membershipID int64) {
	contribution, err := e.crm.GetContributionByInvoice(e.InvoiceID(order), []string{"id"})
	if err != nil {
		e.logger.Error("Not able to find contribution for order %d", order.ID)
		return
	}
	if err := e.crm.CreateMembershipPayment(membershipID, int64(contribution.ID)); err != nil {
		e.logger.Error("Not able to link membership %d to contribution %d: %v", membershipID, int64(contribution.ID), err)
	}
}

// fixedPeriodStart resolves which annual cycle a purchase belongs to for
// membership types anchored to calendar days. startDay and rolloverDay are
// MMDD integers (101 is January 1st). A purchase after this year's start
// day belongs to this year's cycle; before it, the rollover day decides
// between this year's cycle and the one that began last year.
func fixedPeriodStart(paidAt time.Time, startDay, rolloverDay int) time.Time {
	start := mmddDate(paidAt.Year(), startDay)
	rollover := mmddDate(paidAt.Year(), rolloverDay)

	if !paidAt.Before(start) {
		return start
	}
	if rollover.Before(start) && paidAt.After(rollover) {
		// Between rollover and start: counts for the upcoming cycle.
		return start
	}
	return start.AddDate(-1, 0, 0)
}

func mmddDate(year, mmdd int) time.Time {
	month := mmdd / 100
	day := mmdd % 100
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// addDuration computes the membership end date. ok is false for lifetime
// memberships, which have no end.
func addDuration(start time.Time, interval int, unit string) (time.Time, bool) {
	if interval == 0 {
		interval = 1
	}
	switch unit {
	case "year":
		return start.AddDate(interval, 0, 0), true
	case "month":
		return start.AddDate(0, interval, 0), true
	case "day":
		return start.AddDate(0, 0, interval), true
	case "lifetime":
		return time.Time{}, false
	}
	return start.AddDate(0, interval, 0), true
}
