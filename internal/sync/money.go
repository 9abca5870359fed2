package sync

import (
	"fmt"
	"math"
	"strings"
)

// moneyFormat renders amounts with the CRM's configured separators. The CRM
// backend rejects financial values with precision beyond 2 decimals, so
// everything is rounded to cents first.
type moneyFormat struct {
	decimal  string
	thousand string
}

// fetchMoneyFormat reads the monetary separators from CRM settings,
// degrading to a plain '.' decimal point and no thousands grouping when the
// lookup fails.
func (e *Engine) fetchMoneyFormat() moneyFormat {
	format := moneyFormat{decimal: ".", thousand: ""}

	if v, err := e.crm.GetSettingValue("monetaryDecimalPoint"); err != nil {
		e.logger.Error("Not able to fetch monetary settings: %v", err)
	} else if v != "" {
		format.decimal = v
	}

	if v, err := e.crm.GetSettingValue("monetaryThousandSeparator"); err == nil {
		format.thousand = v
	}

	return format
}

func (m moneyFormat) format(amount float64) string {
	rounded := math.Round(amount*100) / 100

	negative := rounded < 0
	if negative {
		rounded = -rounded
	}

	cents := int64(math.Round(rounded * 100))
	whole := cents / 100
	frac := cents % 100

	intPart := fmt.Sprintf("%d", whole)
	if m.thousand != "" {
		intPart = groupThousands(intPart, m.thousand)
	}

	s := fmt.Sprintf("%s%s%02d", intPart, m.decimal, frac)
	if negative {
		s = "-" + s
	}
	return s
}

func groupThousands(digits, separator string) string {
	if len(digits) <= 3 {
		return digits
	}
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	return strings.Join(groups, separator)
}
