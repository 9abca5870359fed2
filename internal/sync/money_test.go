package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoneyFormat(t *testing.T) {
	tests := []struct {
		name   string
		format moneyFormat
		amount float64
		want   string
	}{
		{"plain default", moneyFormat{decimal: "."}, 1234.5, "1234.50"},
		{"comma thousands", moneyFormat{decimal: ".", thousand: ","}, 1234567.8, "1,234,567.80"},
		{"european separators", moneyFormat{decimal: ",", thousand: "."}, 1234.5, "1.234,50"},
		{"rounds to cents", moneyFormat{decimal: "."}, 10.006, "10.01"},
		{"small amount", moneyFormat{decimal: ".", thousand: ","}, 5, "5.00"},
		{"zero", moneyFormat{decimal: "."}, 0, "0.00"},
		{"negative", moneyFormat{decimal: ".", thousand: ","}, -1234.5, "-1,234.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.format.format(tt.amount))
		})
	}
}

func TestFetchMoneyFormatFallsBack(t *testing.T) {
	crmSrv := newFakeCRM(t)
	store := newFakeStore(t)
	engine := newTestEngine(t, crmSrv, store)

	// The default fake answer carries no result slot, so both lookups fail.
	format := engine.fetchMoneyFormat()
	assert.Equal(t, ".", format.decimal)
	assert.Equal(t, "", format.thousand)
}

func TestFetchMoneyFormatUsesSettings(t *testing.T) {
	crmSrv := newFakeCRM(t)
	store := newFakeStore(t)
	engine := newTestEngine(t, crmSrv, store)

	crmSrv.handle("Setting.getvalue", func(params map[string]interface{}) string {
		if params["name"] == "monetaryDecimalPoint" {
			return `{"is_error":0,"result":","}`
		}
		return `{"is_error":0,"result":"."}`
	})

	format := engine.fetchMoneyFormat()
	assert.Equal(t, ",", format.decimal)
	assert.Equal(t, ".", format.thousand)
}
