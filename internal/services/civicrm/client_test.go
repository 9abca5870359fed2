package civicrm

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"civisync/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "api-key", "site-key", logger.New("error"))
}

func TestCallSendsFormEncodedRequest(t *testing.T) {
	var gotEntity, gotAction, gotJSON, gotAPIKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/civicrm/ajax/rest", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotEntity = r.PostFormValue("entity")
		gotAction = r.PostFormValue("action")
		gotJSON = r.PostFormValue("json")
		gotAPIKey = r.PostFormValue("api_key")
		fmt.Fprint(w, `{"is_error":0,"count":1,"id":5,"values":[]}`)
	})

	result, err := client.Call("Contact", "create", map[string]interface{}{"first_name": "Ada"})
	require.NoError(t, err)

	assert.Equal(t, "Contact", gotEntity)
	assert.Equal(t, "create", gotAction)
	assert.JSONEq(t, `{"first_name":"Ada"}`, gotJSON)
	assert.Equal(t, "api-key", gotAPIKey)
	assert.EqualValues(t, 5, result.ID)
}

func TestCallSurfacesAPIErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"is_error":1,"error_message":"Mandatory key(s) missing"}`)
	})

	_, err := client.Call("Contact", "create", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mandatory key(s) missing")
}

func TestGetContactDecodesTopLevelRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// getsingle responses carry the record at the top level.
		fmt.Fprint(w, `{"is_error":0,"id":"77","contact_type":"Individual","first_name":"Ada"}`)
	})

	contact, err := client.GetContact(77)
	require.NoError(t, err)
	assert.EqualValues(t, 77, contact.ID)
	assert.Equal(t, "Ada", contact.FirstName)
}

func TestGetSettingValueDecodesResultSlot(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"is_error":0,"result":","}`)
	})

	value, err := client.GetSettingValue("monetaryDecimalPoint")
	require.NoError(t, err)
	assert.Equal(t, ",", value)
}

func TestDuplicateCheckReturnsMatchOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"is_error":0,"count":2,"values":[{"id":"88"},{"id":"90"}]}`)
	})

	ids, err := client.DuplicateCheck("Individual", "Ada", "Lovelace", "ada@example.org")
	require.NoError(t, err)
	assert.Equal(t, []int64{88, 90}, ids)
}

func TestFlexTypesTolerateQuotedNumbers(t *testing.T) {
	var id FlexInt64
	require.NoError(t, id.UnmarshalJSON([]byte(`"42"`)))
	assert.EqualValues(t, 42, id)

	require.NoError(t, id.UnmarshalJSON([]byte(`42`)))
	assert.EqualValues(t, 42, id)

	require.NoError(t, id.UnmarshalJSON([]byte(`null`)))
	assert.Zero(t, id)

	var amount FlexFloat64
	require.NoError(t, amount.UnmarshalJSON([]byte(`"110.50"`)))
	assert.EqualValues(t, 110.5, amount)
}
