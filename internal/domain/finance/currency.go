package finance

import (
	"strings"

	"github.com/FACorreiaa/ledger-bot/pkg/money"
)

// Currency is a canonical ISO-4217 code, or CurrencyUnknown.
type Currency string

const (
	CurrencyUnknown Currency = ""
	BGN             Currency = money.BGN
	EUR             Currency = money.EUR
	GBP             Currency = money.GBP
	USD             Currency = money.USD
)

// Currencies lists the supported codes in display order.
var Currencies = []Currency{BGN, EUR, GBP, USD}

// currencyAliases is the closed alias set. Aliases are matched after
// lowercasing and stripping trailing periods, so "Лв." and "BGN" need no
// separate entries.
var currencyAliases = map[Currency][]string{
	BGN: {"лв", "lv", "лев", "лева", "bgn"},
	EUR: {"eur", "€", "евро", "evro", "euro"},
	GBP: {"gbp", "£", "паунд", "паунда", "paunda"},
	USD: {"usd", "$", "долар", "долара", "dolar", "dollar"},
}

var currencyIndex = buildCurrencyIndex(currencyAliases)

func buildCurrencyIndex(aliases map[Currency][]string) map[string]Currency {
	index := make(map[string]Currency)
	for code, list := range aliases {
		for _, alias := range list {
			index[alias] = code
		}
	}
	return index
}

// ResolveCurrency maps a free-text currency token to its code. Matching is
// exact against the alias set; anything else is CurrencyUnknown.
func ResolveCurrency(token string) Currency {
	key := strings.TrimRight(strings.ToLower(strings.TrimSpace(token)), ".")
	return currencyIndex[key]
}

// Known reports whether c is one of the supported currencies.
func (c Currency) Known() bool {
	return c != CurrencyUnknown
}

func (c Currency) String() string {
	if c == CurrencyUnknown {
		return "unknown"
	}
	return string(c)
}

// CurrencyAliases returns the aliases accepted for code.
func CurrencyAliases(code Currency) []string {
	return append([]string(nil), currencyAliases[code]...)
}
