package sync

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"civisync/internal/config"
	"civisync/internal/database"
	"civisync/internal/logger"
	"civisync/internal/models"
	"civisync/internal/services/civicrm"
	"civisync/internal/services/woocommerce"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// crmCall records one API v3 invocation seen by the fake CRM.
type crmCall struct {
	Entity string
	Action string
	Params map[string]interface{}
}

// fakeCRM serves CiviCRM's REST endpoint from a per-test handler table keyed
// by "Entity.Action". Unhandled calls answer with an empty success result.
type fakeCRM struct {
	mu       sync.Mutex
	calls    []crmCall
	handlers map[string]func(params map[string]interface{}) string
	server   *httptest.Server
}

func newFakeCRM(t *testing.T) *fakeCRM {
	f := &fakeCRM{handlers: map[string]func(map[string]interface{}) string{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entity := r.PostFormValue("entity")
		action := r.PostFormValue("action")

		params := map[string]interface{}{}
		if raw := r.PostFormValue("json"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &params); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		f.mu.Lock()
		f.calls = append(f.calls, crmCall{Entity: entity, Action: action, Params: params})
		handler := f.handlers[entity+"."+action]
		f.mu.Unlock()

		body := `{"is_error":0,"version":3,"count":0,"values":[]}`
		if handler != nil {
			body = handler(params)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeCRM) handle(key string, fn func(params map[string]interface{}) string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[key] = fn
}

// respond registers a fixed response body for an Entity.Action pair.
func (f *fakeCRM) respond(key, body string) {
	f.handle(key, func(map[string]interface{}) string { return body })
}

func (f *fakeCRM) callsTo(entity, action string) []crmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []crmCall
	for _, c := range f.calls {
		if c.Entity == entity && c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// fakeStore serves the slice of the WooCommerce REST API the engine touches.
type fakeStore struct {
	mu       sync.Mutex
	orders   map[int64]*woocommerce.Order
	products map[int64]*woocommerce.Product
	notes    []string
	server   *httptest.Server
}

func newFakeStore(t *testing.T) *fakeStore {
	f := &fakeStore{
		orders:   map[int64]*woocommerce.Order{},
		products: map[int64]*woocommerce.Product{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/wc/v3/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		order, ok := f.orders[pathID(r)]
		if !ok {
			http.Error(w, `{"code":"woocommerce_rest_shop_order_invalid_id"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(order)
	})
	mux.HandleFunc("PUT /wp-json/wc/v3/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			MetaData []woocommerce.MetaData `json:"meta_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if order, ok := f.orders[pathID(r)]; ok {
			for _, m := range payload.MetaData {
				order.MetaData = setMeta(order.MetaData, m)
			}
			json.NewEncoder(w).Encode(order)
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("POST /wp-json/wc/v3/orders/{id}/notes", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Note string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.notes = append(f.notes, payload.Note)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(woocommerce.OrderNote{ID: 1, Note: payload.Note})
	})
	mux.HandleFunc("GET /wp-json/wc/v3/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		product, ok := f.products[pathID(r)]
		if !ok {
			// An unclassified product: no meta at all.
			product = &woocommerce.Product{ID: pathID(r)}
		}
		json.NewEncoder(w).Encode(product)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func pathID(r *http.Request) int64 {
	var id int64
	fmt.Sscanf(r.PathValue("id"), "%d", &id)
	return id
}

func setMeta(meta []woocommerce.MetaData, m woocommerce.MetaData) []woocommerce.MetaData {
	for i := range meta {
		if meta[i].Key == m.Key {
			meta[i].Value = m.Value
			return meta
		}
	}
	return append(meta, m)
}

func (f *fakeStore) noteCount(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, note := range f.notes {
		if strings.Contains(note, substr) {
			n++
		}
	}
	return n
}

func testConfig() *config.Config {
	return &config.Config{
		FinancialTypeID:         1,
		FinancialTypeVATID:      9,
		ShippingFinancialTypeID: 8,
		ShopSourceLabel:         "shop",
		BillingLocationTypeID:   5,
		ShippingLocationTypeID:  1,
		UTMTTLSeconds:           86400,
		IgnoreZeroAmountOrders:  true,
	}
}

func newTestEngine(t *testing.T, crmSrv *fakeCRM, store *fakeStore) *Engine {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.New(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.New("error")
	crm := civicrm.NewClient(crmSrv.server.URL, "api-key", "site-key", log)
	wc := woocommerce.NewClient(store.server.URL, "ck", "cs", log)
	stores := woocommerce.NewStores(wc, nil)

	return NewEngine(testConfig(), log, db, crm, stores)
}

// paidOrder builds a typical single-item paid order.
func paidOrder(id int64) *woocommerce.Order {
	return &woocommerce.Order{
		ID:            id,
		Number:        fmt.Sprintf("%d", id),
		Status:        "processing",
		Total:         "110.00",
		TotalTax:      "10.00",
		ShippingTotal: "0.00",
		PaymentMethod: "bacs",
		DateCreated:   "2024-03-10T09:00:00",
		DatePaid:      "2024-03-15T12:30:00",
		Billing: woocommerce.AddressFields{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.org",
			Phone:     "555-0100",
			Address1:  "12 Analytical Way",
			City:      "London",
			Postcode:  "N1 9GU",
			Country:   "GB",
		},
		LineItems: []woocommerce.OrderItem{
			{ID: 1, Name: "Annual pass", ProductID: 301, Quantity: 1, Total: "100.00"},
		},
	}
}

func TestInvoiceID(t *testing.T) {
	crmSrv := newFakeCRM(t)
	store := newFakeStore(t)
	engine := newTestEngine(t, crmSrv, store)

	t.Run("falls back to derived id", func(t *testing.T) {
		order := paidOrder(42)
		assert.Equal(t, "42_woocommerce", engine.InvoiceID(order))
	})

	t.Run("prefers the stored order number", func(t *testing.T) {
		order := paidOrder(42)
		order.MetaData = append(order.MetaData, woocommerce.MetaData{
			Key: woocommerce.MetaOrderNumber, Value: "SHOP-00042",
		})
		assert.Equal(t, "SHOP-00042", engine.InvoiceID(order))
	})
}

func TestProcessOrderFullPipeline(t *testing.T) {
	crmSrv := newFakeCRM(t)
	store := newFakeStore(t)
	engine := newTestEngine(t, crmSrv, store)

	order := paidOrder(100)
	store.orders[order.ID] = order

	crmSrv.respond("Contact.duplicatecheck", `{"is_error":0,"count":0,"values":[]}`)
	crmSrv.respond("Contact.create", `{"is_error":0,"count":1,"id":77,"values":[]}`)
	crmSrv.respond("CustomGroup.getsingle",
		`{"is_error":0,"id":4,"name":"Woocommerce_purchases"}`)
	crmSrv.handle("CustomField.getsingle", func(params map[string]interface{}) string {
		if params["label"] == "Sales tax" {
			return `{"is_error":0,"id":21}`
		}
		return `{"is_error":0,"id":22}`
	})
	crmSrv.respond("Order.create", `{"is_error":0,"count":1,"id":900,"values":[]}`)

	require.NoError(t, engine.ProcessOrder(order))

	creates := crmSrv.callsTo("Contact", "create")
	require.Len(t, creates, 1)
	assert.Equal(t, "Ada", creates[0].Params["first_name"])
	assert.Equal(t, "Woocommerce purchase", creates[0].Params["contact_source"])

	orders := crmSrv.callsTo("Order", "create")
	require.Len(t, orders, 1)
	assert.Equal(t, "100_woocommerce", orders[0].Params["invoice_id"])
	assert.Equal(t, "shop", orders[0].Params["source"])

	assert.Equal(t, 1, store.noteCount("Created new CiviCRM Contact - 77"))
	assert.Equal(t, 1, store.noteCount("Contribution 900 has been created in CiviCRM"))

	var sync models.OrderSync
	require.NoError(t, engine.db.DB.First(&sync, "order_id = ?", order.ID).Error)
	assert.Equal(t, int64(77), sync.ContactID)
	assert.Equal(t, int64(900), sync.ContributionID)
	assert.Equal(t, "shop", sync.Source)
}

func TestProcessOrderAttachesConsumedCampaign(t *testing.T) {
	crmSrv := newFakeCRM(t)
	store := newFakeStore(t)
	engine := newTestEngine(t, crmSrv, store)

	require.NoError(t, engine.db.DB.Create(&models.UTMAttribution{
		ClientToken: "tok-100",
		CampaignID:  31,
		ExpiresAt:   time.Now().Add(time.Hour),
	}).Error)

	stored := paidOrder(102)
	stored.MetaData = append(stored.MetaData,
		woocommerce.MetaData{Key: woocommerce.MetaUTMToken, Value: "tok-100"})
	store.orders[stored.ID] = stored

	crmSrv.respond("Contact.create", `{"is_error":0,"count":1,"id":77,"values":[]}`)
	crmSrv.respond("CustomGroup.getsingle",
		`{"is_error":0,"id":4,"name":"Woocommerce_purchases"}`)
	crmSrv.handle("CustomField.getsingle", func(params map[string]interface{}) string {
		if params["label"] == "Sales tax" {
			return `{"is_error":0,"id":21}`
		}
		return `{"is_error":0,"id":22}`
	})
	crmSrv.respond("Campaign.get",
		`{"is_error":0,"count":1,"values":[{"id":"31","name":"Spring"}]}`)
	crmSrv.respond("Order.create", `{"is_error":0,"count":1,"id":901,"values":[]}`)

	// Process a freshly fetched copy, the way the worker does, so the
	// campaign written during the run must travel with the order itself.
	order, err := engine.FetchOrder(stored.ID)
	require.NoError(t, err)
	require.NoError(t, engine.ProcessOrder(order))

	orders := crmSrv.callsTo("Order", "create")
	require.Len(t, orders, 1)
	assert.Equal(t, "Spring", orders[0].Params["campaign_id"])
}

func TestProcessOrderContactFailureAborts(t *testing.T) {
	crmSrv := newFakeCRM(t)
	store := newFakeStore(t)
	engine := newTestEngine(t, crmSrv, store)

	order := paidOrder(101)
	store.orders[order.ID] = order

	crmSrv.respond("Contact.create",
		`{"is_error":1,"error_message":"DB constraint violation"}`)

	err := engine.ProcessOrder(order)
	require.Error(t, err)

	assert.Empty(t, crmSrv.callsTo("Order", "create"))
	assert.Equal(t, 1, store.noteCount("CiviCRM Contact could not be found or created"))
}
