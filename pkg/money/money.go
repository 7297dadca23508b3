// Package money provides currency-safe amount handling using integer minor
// units. Ledger amounts arrive as decimals and are displayed back to the user
// through go-money so every currency gets its own symbol and template.
package money

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency codes (ISO-4217) the ledger accepts
const (
	BGN = "BGN" // Bulgarian Lev
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
	USD = "USD" // US Dollar
)

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units and a currency code.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{m: money.New(amountMinor, strings.ToUpper(currencyCode))}
}

// NewFromDecimal creates Money from a decimal.Decimal value, rounding half
// away from zero to the currency's minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	code := strings.ToUpper(currencyCode)
	currency := money.GetCurrency(code)
	if currency == nil {
		currency = money.GetCurrency(USD)
		code = USD
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	minor := amount.Mul(multiplier).Round(0).IntPart()

	return New(minor, code)
}

// NewFromFloat creates Money from a float as returned by the remote store.
func NewFromFloat(amount float64, currencyCode string) *Money {
	return NewFromDecimal(decimal.NewFromFloat(amount), currencyCode)
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsNegative returns true if the amount is less than zero
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Display returns a formatted string for chat replies (e.g. "£1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.m.Display()
}

// ToDecimal converts back to decimal.Decimal
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	d := decimal.NewFromInt(m.m.Amount())
	return d.Div(decimal.New(1, int32(currency.Fraction)))
}

// ToFloat64 converts to float64 for JSON number fields
func (m *Money) ToFloat64() float64 {
	return m.ToDecimal().InexactFloat64()
}

// String returns the amount as a decimal string (e.g., "1234.56")
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// Format is a shortcut for NewFromDecimal(amount, code).Display().
func Format(amount decimal.Decimal, currencyCode string) string {
	return NewFromDecimal(amount, currencyCode).Display()
}
