package woocommerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"civisync/internal/logger"
)

// Client talks to the WooCommerce REST API (wc/v3) of one store.
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
	logger         *logger.Logger
}

func NewClient(baseURL, consumerKey, consumerSecret string, logger *logger.Logger) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// BaseURL returns the store root, used to build admin edit links.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(method, path string, query url.Values, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+"/wp-json/wc/v3"+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	req.Header.Set("Content-Type", "application/json")
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API request failed: %d - %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetOrder fetches a single order by id.
func (c *Client) GetOrder(orderID int64) (*Order, error) {
	var order Order
	if err := c.do("GET", fmt.Sprintf("/orders/%d", orderID), nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrdersByCustomer fetches all orders placed by a store account.
func (c *Client) ListOrdersByCustomer(customerID int64) ([]Order, error) {
	q := url.Values{}
	q.Set("customer", fmt.Sprintf("%d", customerID))
	q.Set("per_page", "100")

	var orders []Order
	if err := c.do("GET", "/orders", q, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListOrdersByEmail fetches orders whose billing email matches. Used when a
// contact has no linked store account.
func (c *Client) ListOrdersByEmail(email string) ([]Order, error) {
	q := url.Values{}
	q.Set("search", email)
	q.Set("per_page", "100")

	var orders []Order
	if err := c.do("GET", "/orders", q, nil, &orders); err != nil {
		return nil, err
	}

	// The search endpoint matches loosely, keep exact billing email hits only.
	matched := make([]Order, 0, len(orders))
	for _, o := range orders {
		if strings.EqualFold(o.Billing.Email, email) {
			matched = append(matched, o)
		}
	}
	return matched, nil
}

// AddOrderNote appends a staff-visible audit note to an order.
func (c *Client) AddOrderNote(orderID int64, note string) error {
	payload := map[string]interface{}{"note": note}
	var created OrderNote
	if err := c.do("POST", fmt.Sprintf("/orders/%d/notes", orderID), nil, payload, &created); err != nil {
		return fmt.Errorf("failed to add order note: %w", err)
	}
	return nil
}

// UpdateOrderMeta writes synchronizer-owned annotations back onto the order.
func (c *Client) UpdateOrderMeta(orderID int64, meta map[string]interface{}) error {
	metaData := make([]MetaData, 0, len(meta))
	for key, value := range meta {
		metaData = append(metaData, MetaData{Key: key, Value: value})
	}

	payload := map[string]interface{}{"meta_data": metaData}
	if err := c.do("PUT", fmt.Sprintf("/orders/%d", orderID), nil, payload, nil); err != nil {
		return fmt.Errorf("failed to update order meta: %w", err)
	}
	return nil
}

// GetProduct fetches a single product, used for its financial classification
// meta.
func (c *Client) GetProduct(productID int64) (*Product, error) {
	var product Product
	if err := c.do("GET", fmt.Sprintf("/products/%d", productID), nil, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}
