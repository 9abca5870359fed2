package civicrm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"civisync/internal/logger"
)

// Client speaks CiviCRM's API v3 REST endpoint: form-encoded entity/action
// pairs with a JSON params blob, authenticated by api_key + site key.
type Client struct {
	baseURL    string
	apiKey     string
	siteKey    string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(baseURL, apiKey, siteKey string, logger *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		siteKey: siteKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) Call(entity, action string, params map[string]interface{}) (*Result, error) {
	jsonParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	form := url.Values{}
	form.Set("entity", entity)
	form.Set("action", action)
	form.Set("json", string(jsonParams))
	form.Set("api_key", c.apiKey)
	form.Set("key", c.siteKey)

	req, err := http.NewRequest("POST", c.baseURL+"/civicrm/ajax/rest", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed: %d - %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	result.Raw = body

	if result.IsError != 0 {
		return nil, fmt.Errorf("%s.%s failed: %s", entity, action, result.ErrorMessage)
	}

	return &result, nil
}

// GetContact fetches a single contact by id.
func (c *Client) GetContact(contactID int64) (*Contact, error) {
	result, err := c.Call("Contact", "getsingle", map[string]interface{}{
		"contact_id": contactID,
		"return":     []string{"id", "contact_source", "first_name", "last_name", "contact_type"},
	})
	if err != nil {
		return nil, err
	}

	// getsingle returns the record at the top level, not in a values array
	var contact Contact
	if err := json.Unmarshal(result.Raw, &contact); err != nil || contact.ID == 0 {
		return nil, fmt.Errorf("contact %d not found", contactID)
	}
	return &contact, nil
}

// DuplicateCheck runs the Unsupervised dedupe rule over the given candidate
// and returns matching contact ids in rule order.
func (c *Client) DuplicateCheck(contactType, firstName, lastName, email string) ([]int64, error) {
	match := map[string]interface{}{
		"contact_type": contactType,
		"email":        email,
	}
	if firstName != "" {
		match["first_name"] = firstName
	}
	if lastName != "" {
		match["last_name"] = lastName
	}

	result, err := c.Call("Contact", "duplicatecheck", map[string]interface{}{
		"sequential": 1,
		"match":      match,
		"rule_type":  "Unsupervised",
	})
	if err != nil {
		return nil, err
	}

	var values []struct {
		ID FlexInt64 `json:"id"`
	}
	if err := json.Unmarshal(result.Values, &values); err != nil {
		return nil, fmt.Errorf("failed to decode duplicatecheck values: %w", err)
	}

	ids := make([]int64, 0, len(values))
	for _, v := range values {
		ids = append(ids, int64(v.ID))
	}
	return ids, nil
}

// CreateContact creates or, when params carries an id, updates a contact.
func (c *Client) CreateContact(params map[string]interface{}) (int64, error) {
	result, err := c.Call("Contact", "create", params)
	if err != nil {
		return 0, err
	}
	return int64(result.ID), nil
}

// UFMatchContactID resolves a store account id to a contact id via UFMatch.
// Returns 0 when no match exists.
func (c *Client) UFMatchContactID(ufID int64) (int64, error) {
	result, err := c.Call("UFMatch", "get", map[string]interface{}{
		"sequential": 1,
		"uf_id":      ufID,
		"return":     []string{"contact_id"},
	})
	if err != nil {
		return 0, err
	}

	var values []struct {
		ContactID FlexInt64 `json:"contact_id"`
	}
	if err := json.Unmarshal(result.Values, &values); err != nil {
		return 0, fmt.Errorf("failed to decode ufmatch values: %w", err)
	}
	if len(values) == 0 {
		return 0, nil
	}
	return int64(values[0].ContactID), nil
}

// UFMatchUFID is the reverse lookup: contact id to store account id.
func (c *Client) UFMatchUFID(contactID int64) (int64, error) {
	result, err := c.Call("UFMatch", "get", map[string]interface{}{
		"sequential": 1,
		"contact_id": contactID,
		"return":     []string{"uf_id"},
	})
	if err != nil {
		return 0, err
	}

	var values []struct {
		UFID FlexInt64 `json:"uf_id"`
	}
	if err := json.Unmarshal(result.Values, &values); err != nil {
		return 0, fmt.Errorf("failed to decode ufmatch values: %w", err)
	}
	if len(values) == 0 {
		return 0, nil
	}
	return int64(values[0].UFID), nil
}

// GetAddresses fetches all addresses attached to a contact.
func (c *Client) GetAddresses(contactID int64) ([]Address, error) {
	result, err := c.Call("Address", "get", map[string]interface{}{
		"sequential": 1,
		"contact_id": contactID,
	})
	if err != nil {
		return nil, err
	}

	var values []Address
	if err := json.Unmarshal(result.Values, &values); err != nil {
		return nil, fmt.Errorf("failed to decode address values: %w", err)
	}
	return values, nil
}

func (c *Client) CreateAddress(params map[string]interface{}) (int64, error) {
	result, err := c.Call("Address", "create", params)
	if err != nil {
		return 0, err
	}
	return int64(result.ID), nil
}

// GetPhones fetches all phones attached to a contact.
func (c *Client) GetPhones(contactID int64) ([]Phone, error) {
	result, err := c.Call("Phone", "get", map[string]interface{}{
		"sequential": 1,
		"contact_id": contactID,
	})
	if err != nil {
		return nil, err
	}

	var values []Phone
	if err := json.Unmarshal(result.Values, &values); err != nil {
		return nil, fmt.Errorf("failed to decode phone values: %w", err)
	}
	return values, nil
}

func (c *Client) CreatePhone(params map[string]interface{}) (int64, error) {
	result, err := c.Call("Phone", "create", params)
	if err != nil {
		return 0, err
	}
	return int64(result.ID), nil
}

// GetEmails fetches all emails attached to a contact.
func (c *Client) GetEmails(contactID int64) ([]Email, error) {
	result, err := c.Call("Email", "get", map[string]interface{}{
		"sequential": 1,
		"contact_id": contactID,
	})
	if err != nil {
		return nil, err
	}

	var values []Email
	if err := json.Unmarshal(result.Values, &values); err != nil {
		return nil, fmt.Errorf("failed to decode email values: %w", err)
	}
	return values, nil
}

func (c *Client) CreateEmail(params map[string]interface{}) (int64, error) {
	result, err := c.Call("Email", "create", params)
	if err != nil {
		return 0, err
	}
	return int64(result.ID), nil
}

// GetContributionByInvoice looks up a contribution by its derived invoice id,
// the natural key tying a contribution back to its order.
func (c *Client) GetContributionByInvoice(invoiceID string, returnFields []string) (*Contribution, error) {
	result, err := c.Call("Contribution", "getsingle", map[string]interface{}{
		"invoice_id": invoiceID,
		"return":     returnFields,
	})
	if err != nil {
		return nil, err
	}

	var contribution Contribution
	if err := json.Unmarshal(result.Raw, &contribution); err != nil || contribution.ID == 0 {
		return nil, fmt.Errorf("contribution for invoice %s not found", invoiceID)
	}
	return &contribution, nil
}

// CreateOrder submits a contribution header plus line items via Order.create.
func (c *Client) CreateOrder(params map[string]interface{}) (int64, error) {
	result, err := c.Call("Order", "create", params)
	if err != nil {
		return 0, err
	}
	if result.ID == 0 {
		return 0, fmt.Errorf("Order.create returned no id")
	}
	return int64(result.ID), nil
}

// UpdateContribution patches an existing contribution. The API requires the
// id plus a full resupply of several header fields, which callers pass in.
func (c *Client) UpdateContribution(params map[string]interface{}) error {
	_, err := c.Call("Contribution", "create", params)
	return err
}

// GetCampaignName resolves a campaign id to its name.
func (c *Client) GetCampaignName(campaignID int64) (string, error) {
	result, err := c.Call("Campaign", "get", map[string]interface{}{
		"sequential": 1,
		"return":     []string{"name"},
		"id":         campaignID,
		"options":    map[string]interface{}{"limit": 1},
	})
	if err != nil {
		return "", err
	}

	var values []Campaign
	if err := json.Unmarshal(result.Values, &values); err != nil {
		return "", fmt.Errorf("failed to decode campaign values: %w", err)
	}
	if len(values) == 0 {
		return "", nil
	}
	return values[0].Name, nil
}

// GetCampaignIDByName resolves a campaign name to its id, 0 when unknown.
func (c *Client) GetCampaignIDByName(name string) (int64, error) {
	result, err := c.Call("Campaign", "get", map[string]interface{}{
		"sequential": 1,
		"return":     []string{"id"},
		"name":       name,
	})
	if err != nil {
		return 0, err
	}

	var values []Campaign
	if err := json.Unmarshal(result.Values, &values); err != nil {
		return 0, fmt.Errorf("failed to decode campaign values: %w", err)
	}
	if len(values) == 0 {
		return 0, nil
	}
	return int64(values[0].ID), nil
}

// ListCampaigns returns active campaigns for the admin campaign selector.
func (c *Client) ListCampaigns() ([]Campaign, error) {
	result, err := c.Call("Campaign", "get", map[string]interface{}{
		"sequential": 1,
		"return":     []string{"id", "name"},
		"is_active":  1,
		"options":    map[string]interface{}{"limit": 0},
	})
	if err != nil {
		return nil, err
	}

	var values []Campaign
	if err := json.Unmarshal(result.Values, &values); err != nil {
		return nil, fmt.Errorf("failed to decode campaign values: %w", err)
	}
	return values, nil
}

// GetMembershipTypes returns all membership type definitions.
func (c *Client) GetMembershipTypes() ([]MembershipType, error) {
	result, err := c.Call("MembershipType", "get", map[string]interface{}{
		"sequential": 1,
		"options":    map[string]interface{}{"limit": 0},
	})
	if err != nil {
		return nil, err
	}

	var values []MembershipType
	if err := json.Unmarshal(result.Values, &values); err != nil {
		return nil, fmt.Errorf("failed to decode membership type values: %w", err)
	}
	return values, nil
}

// CreateMembership creates a membership record.
func (c *Client) CreateMembership(params map[string]interface{}) (int64, error) {
	result, err := c.Call("Membership", "create", params)
	if err != nil {
		return 0, err
	}
	return int64(result.ID), nil
}

// CreateMembershipPayment links a membership to the contribution that paid
// for it.
func (c *Client) CreateMembershipPayment(membershipID, contributionID int64) error {
	_, err := c.Call("MembershipPayment", "create", map[string]interface{}{
		"membership_id":   membershipID,
		"contribution_id": contributionID,
	})
	return err
}

// GetSettingValue fetches a scalar CRM setting such as the monetary
// separators.
func (c *Client) GetSettingValue(name string) (string, error) {
	result, err := c.Call("Setting", "getvalue", map[string]interface{}{
		"sequential": 1,
		"name":       name,
	})
	if err != nil {
		return "", err
	}

	// getvalue returns the bare value in a result slot
	var envelope struct {
		Value json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(result.Raw, &envelope); err != nil {
		return "", fmt.Errorf("failed to decode setting %s: %w", name, err)
	}

	var value string
	if err := json.Unmarshal(envelope.Value, &value); err != nil {
		return "", fmt.Errorf("setting %s is not a string", name)
	}
	return value, nil
}
