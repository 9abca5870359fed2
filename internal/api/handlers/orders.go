package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"civisync/internal/logger"
	"civisync/internal/services/civicrm"
	"civisync/internal/services/woocommerce"

	"github.com/gin-gonic/gin"
)

// OrdersHandler backs the Orders tab on the CRM contact screen.
type OrdersHandler struct {
	logger *logger.Logger
	crm    *civicrm.Client
	stores *woocommerce.Stores
}

func NewOrdersHandler(logger *logger.Logger, crm *civicrm.Client, stores *woocommerce.Stores) *OrdersHandler {
	return &OrdersHandler{
		logger: logger,
		crm:    crm,
		stores: stores,
	}
}

type orderRow struct {
	OrderNumber  string  `json:"order_number"`
	OrderDate    string  `json:"order_date"`
	BillingName  string  `json:"order_billing_name"`
	ShippingName string  `json:"order_shipping_name"`
	ItemCount    int     `json:"item_count"`
	Total        float64 `json:"order_total"`
	Status       string  `json:"order_status"`
	EditLink     string  `json:"order_link"`
}

// List returns the orders belonging to one contact: by linked store account
// when a UFMatch exists, by billing email otherwise.
func (h *OrdersHandler) List(c *gin.Context) {
	cid, err := strconv.ParseInt(c.Param("cid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contact id"})
		return
	}

	customerID, err := h.crm.UFMatchUFID(cid)
	if err != nil {
		h.logger.Error("UFMatch lookup failed for contact %d: %v", cid, err)
	}

	email := ""
	if customerID == 0 {
		contact, err := h.crm.GetContact(cid)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		email = contact.Email
		if email == "" {
			c.JSON(http.StatusOK, gin.H{"data": []orderRow{}, "count": 0})
			return
		}
	}

	var orders []woocommerce.Order
	var editBase string
	err = h.stores.WithOrdersStore(func(wc *woocommerce.Client) error {
		editBase = wc.BaseURL()
		var err error
		if customerID != 0 {
			orders, err = wc.ListOrdersByCustomer(customerID)
		} else {
			orders, err = wc.ListOrdersByEmail(email)
		}
		return err
	})
	if err != nil {
		h.logger.Error("Failed to fetch orders for contact %d: %v", cid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	rows := make([]orderRow, 0, len(orders))
	for _, o := range orders {
		itemCount := 0
		for _, item := range o.LineItems {
			itemCount += item.Quantity
		}

		rows = append(rows, orderRow{
			OrderNumber:  o.Number,
			OrderDate:    o.DateCreated,
			BillingName:  o.Billing.FirstName + " " + o.Billing.LastName,
			ShippingName: o.Shipping.FirstName + " " + o.Shipping.LastName,
			ItemCount:    itemCount,
			Total:        o.TotalAmount(),
			Status:       o.Status,
			EditLink:     fmt.Sprintf("%s/wp-admin/post.php?action=edit&post=%d", editBase, o.ID),
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": rows, "count": len(rows)})
}
