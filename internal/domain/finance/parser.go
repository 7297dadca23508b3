// Package finance parses free-text expense/income messages such as
// "100 лв. за храна от Иван" into structured transactions.
package finance

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrIncomplete wraps every reason a message cannot become a transaction.
	ErrIncomplete = errors.New("incomplete transaction")

	ErrEmptyInput         = errors.New("empty input")
	ErrInputTooLong       = errors.New("input too long")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrUnknownCurrency    = errors.New("unknown currency")
	ErrMissingDescription = errors.New("missing description")
)

// ExampleFormat is the literal format shown to users after a rejected message.
const ExampleFormat = "100 лв. за <описание> от <акаунт>"

// ParsedTransaction is the result of parsing one message.
type ParsedTransaction struct {
	Amount          decimal.NullDecimal // signed by Polarity; invalid when unparseable
	Currency        Currency
	Description     string
	CounterpartName string // raw text after the last "from" connector
	Polarity        Polarity
}

// Complete reports whether the transaction has an amount, a known currency
// and a description.
func (t ParsedTransaction) Complete() bool {
	return t.Amount.Valid && t.Currency.Known() && t.Description != ""
}

// HasCounterpart reports whether a counterpart account name was given.
func (t ParsedTransaction) HasCounterpart() bool {
	return t.CounterpartName != ""
}

// Connector is a keyword that splits a message into segments.
type Connector int

const (
	NoConnector Connector = iota
	From                  // introduces the counterpart account
	For                   // introduces the description
)

// DefaultConnectors maps every accepted spelling to its connector.
var DefaultConnectors = map[string]Connector{
	"от":   From,
	"ot":   From,
	"from": From,
	"за":   For,
	"za":   For,
	"for":  For,
}

type token struct {
	text      string
	connector Connector
}

type segments struct {
	amountCurrency []token
	description    []token
	counterpart    []token
}

// splitRule cuts the remainder at one occurrence of a connector. Everything
// after the connector is handed to assign; everything before becomes the
// new remainder. Rules run in order.
type splitRule struct {
	connector Connector
	locate    func(toks []token, c Connector) int
	assign    func(s *segments, tail []token)
}

func (r splitRule) apply(remainder []token, s *segments) []token {
	i := r.locate(remainder, r.connector)
	if i < 0 {
		return remainder
	}
	r.assign(s, remainder[i+1:])
	return remainder[:i]
}

var defaultSplitRules = []splitRule{
	{
		connector: From,
		locate:    lastIndex,
		assign:    func(s *segments, tail []token) { s.counterpart = tail },
	},
	{
		connector: For,
		locate:    firstIndex,
		assign:    func(s *segments, tail []token) { s.description = tail },
	},
}

// amountCurrencyPattern is the fallback for glued literals such as "100лв.".
var (
	amountCurrencyPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(\D+)$`)
	amountPattern         = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?$`)
)

// Parser turns message text into ParsedTransaction values. It is safe for
// concurrent use.
type Parser struct {
	connectors map[string]Connector
	rules      []splitRule
	markers    *MarkerEngine
}

// NewParser creates a parser with the default connector and marker tables.
func NewParser() *Parser {
	return &Parser{
		connectors: DefaultConnectors,
		rules:      defaultSplitRules,
		markers:    NewMarkerEngine(DefaultMarkers),
	}
}

// Parse extracts amount, currency, description, counterpart and polarity.
// The returned transaction carries whatever could be parsed; the error is
// non-nil (and wraps ErrIncomplete) whenever the transaction is incomplete.
//
// Examples:
//   - "100 лв. за храна от Иван" → +100 BGN, "храна", counterpart "Иван"
//   - "50 EUR за gsm razhod"      → -50 EUR, "gsm razhod", expense
func (p *Parser) Parse(raw string) (ParsedTransaction, error) {
	var result ParsedTransaction

	text := strings.TrimSpace(raw)
	if text == "" {
		return result, fmt.Errorf("%w: %w", ErrIncomplete, ErrEmptyInput)
	}
	if len([]rune(text)) > MaxMessageLength {
		return result, fmt.Errorf("%w: %w", ErrIncomplete, ErrInputTooLong)
	}

	var segs segments
	remainder := p.tokenize(text)
	for _, rule := range p.rules {
		remainder = rule.apply(remainder, &segs)
	}
	segs.amountCurrency = remainder

	result.CounterpartName = Truncate(join(segs.counterpart), MaxCounterpartLength)
	result.Description = Truncate(join(segs.description), MaxDescriptionLength)
	result.Polarity = p.markers.Classify(result.Description)

	amountLiteral, currencyLiteral := splitAmountCurrency(segs.amountCurrency)
	result.Currency = ResolveCurrency(currencyLiteral)

	if amount, ok := parseAmount(amountLiteral); ok {
		if result.Polarity == Expense {
			amount = amount.Neg()
		}
		result.Amount = decimal.NullDecimal{Decimal: amount, Valid: true}
	}

	return result, validate(result)
}

func validate(t ParsedTransaction) error {
	switch {
	case !t.Amount.Valid:
		return fmt.Errorf("%w: %w", ErrIncomplete, ErrInvalidAmount)
	case !t.Currency.Known():
		return fmt.Errorf("%w: %w", ErrIncomplete, ErrUnknownCurrency)
	case t.Description == "":
		return fmt.Errorf("%w: %w", ErrIncomplete, ErrMissingDescription)
	}
	return nil
}

func (p *Parser) tokenize(text string) []token {
	fields := strings.Fields(text)
	toks := make([]token, len(fields))
	for i, f := range fields {
		toks[i] = token{text: f, connector: p.connectors[strings.ToLower(f)]}
	}
	return toks
}

// splitAmountCurrency applies the two-token rule, then the glued-literal
// fallback. A comma decimal separator is accepted.
func splitAmountCurrency(toks []token) (amount, currency string) {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = strings.ReplaceAll(t.text, ",", ".")
	}

	switch {
	case len(parts) >= 2:
		return parts[0], parts[1]
	case len(parts) == 1:
		if m := amountCurrencyPattern.FindStringSubmatch(parts[0]); m != nil {
			return m[1], m[2]
		}
		return parts[0], ""
	}
	return "", ""
}

// parseAmount returns the absolute value of a plain decimal literal.
func parseAmount(literal string) (decimal.Decimal, bool) {
	literal = strings.TrimSpace(literal)
	if !amountPattern.MatchString(literal) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(literal, "+"))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d.Abs(), true
}

// ParseAmount parses an amount literal, keeping its sign. Used when a user
// edits the amount of an existing record.
func ParseAmount(literal string) (decimal.Decimal, error) {
	literal = strings.ReplaceAll(strings.TrimSpace(literal), ",", ".")
	if !amountPattern.MatchString(literal) {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(literal, "+"))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	return d, nil
}

func firstIndex(toks []token, c Connector) int {
	for i, t := range toks {
		if t.connector == c {
			return i
		}
	}
	return -1
}

func lastIndex(toks []token, c Connector) int {
	for i := len(toks) - 1; i >= 0; i-- {
		if toks[i].connector == c {
			return i
		}
	}
	return -1
}

func join(toks []token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.text
	}
	return strings.Join(parts, " ")
}

// ParseMoney parses "<amount> <currency>" or a glued "<amount><currency>"
// literal, keeping the amount's sign.
func ParseMoney(text string) (decimal.Decimal, Currency, error) {
	var toks []token
	for _, f := range strings.Fields(text) {
		toks = append(toks, token{text: f})
	}
	if len(toks) > 2 {
		return decimal.Decimal{}, CurrencyUnknown, ErrInvalidAmount
	}

	amountLiteral, currencyLiteral := splitAmountCurrency(toks)
	amount, err := ParseAmount(amountLiteral)
	if err != nil {
		return decimal.Decimal{}, CurrencyUnknown, err
	}
	currency := ResolveCurrency(currencyLiteral)
	if !currency.Known() {
		return decimal.Decimal{}, CurrencyUnknown, ErrUnknownCurrency
	}
	return amount, currency, nil
}
