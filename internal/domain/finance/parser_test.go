package finance

import (
	"fmt"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Parse(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name        string
		input       string
		amount      string
		currency    Currency
		description string
		counterpart string
		polarity    Polarity
	}{
		{
			name:        "full message defaults to income",
			input:       "100 лв. за храна от Иван",
			amount:      "100",
			currency:    BGN,
			description: "храна",
			counterpart: "Иван",
			polarity:    Income,
		},
		{
			name:        "expense marker negates",
			input:       "50 EUR за gsm razhod",
			amount:      "-50",
			currency:    EUR,
			description: "gsm razhod",
			polarity:    Expense,
		},
		{
			name:        "latin connectors",
			input:       "20 lv za kafe ot Petar Petrov",
			amount:      "20",
			currency:    BGN,
			description: "kafe",
			counterpart: "Petar Petrov",
		},
		{
			name:        "english connectors",
			input:       "15 usd for lunch from Revolut",
			amount:      "15",
			currency:    USD,
			description: "lunch",
			counterpart: "Revolut",
		},
		{
			name:        "comma decimal separator",
			input:       "12,50 € за такси",
			amount:      "12.5",
			currency:    EUR,
			description: "такси",
		},
		{
			name:        "glued amount and currency",
			input:       "100лв. за наем",
			amount:      "100",
			currency:    BGN,
			description: "наем",
		},
		{
			name:        "only the last from splits",
			input:       "30 gbp за подарък от мама от Иван",
			amount:      "30",
			currency:    GBP,
			description: "подарък от мама",
			counterpart: "Иван",
		},
		{
			name:        "only the first for splits",
			input:       "10 лв за билет за кино",
			amount:      "10",
			currency:    BGN,
			description: "билет за кино",
		},
		{
			name:        "connectors are whole words",
			input:       "5 лв за zapas",
			amount:      "5",
			currency:    BGN,
			description: "zapas",
		},
		{
			name:        "connector case insensitive",
			input:       "7 LV ZA Obqd OT Kasa",
			amount:      "7",
			currency:    BGN,
			description: "Obqd",
			counterpart: "Kasa",
		},
		{
			name:        "negative literal takes polarity sign",
			input:       "-40 лв за заплата prihod",
			amount:      "40",
			currency:    BGN,
			description: "заплата prihod",
			polarity:    Income,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.Parse(tt.input)
			require.NoError(t, err)
			require.True(t, got.Complete())

			require.True(t, got.Amount.Valid)
			assert.True(t, decimal.RequireFromString(tt.amount).Equal(got.Amount.Decimal),
				"amount %s != %s", got.Amount.Decimal, tt.amount)
			assert.Equal(t, tt.currency, got.Currency)
			assert.Equal(t, tt.description, got.Description)
			assert.Equal(t, tt.counterpart, got.CounterpartName)
			assert.Equal(t, tt.counterpart != "", got.HasCounterpart())
			assert.Equal(t, tt.polarity, got.Polarity)
		})
	}
}

func TestParser_Incomplete(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name  string
		input string
		cause error
	}{
		{"not a transaction", "not a transaction", ErrInvalidAmount},
		{"empty", "   ", ErrEmptyInput},
		{"too long", "100 лв за " + strings.Repeat("x", MaxMessageLength), ErrInputTooLong},
		{"malformed amount", "1.2.3 лв за храна", ErrInvalidAmount},
		{"unknown currency", "100 yen за храна", ErrUnknownCurrency},
		{"missing description", "100 лв", ErrMissingDescription},
		{"empty description after connector", "100 лв за", ErrMissingDescription},
		{"only connectors", "за от", ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.Parse(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrIncomplete)
			assert.ErrorIs(t, err, tt.cause)
			assert.False(t, got.Complete())
		})
	}

	t.Run("partial fields survive", func(t *testing.T) {
		got, err := parser.Parse("100 yen за храна от Иван")
		require.ErrorIs(t, err, ErrUnknownCurrency)
		assert.True(t, got.Amount.Valid)
		assert.Equal(t, CurrencyUnknown, got.Currency)
		assert.Equal(t, "храна", got.Description)
		assert.Equal(t, "Иван", got.CounterpartName)
	})

	t.Run("not a transaction has null amount", func(t *testing.T) {
		got, _ := parser.Parse("not a transaction")
		assert.False(t, got.Amount.Valid)
	})
}

func TestParser_Bounds(t *testing.T) {
	parser := NewParser()

	counterpart := strings.Repeat("я", MaxCounterpartLength+20)
	got, err := parser.Parse("1 лв за x от " + counterpart)
	require.NoError(t, err)
	assert.Equal(t, MaxCounterpartLength, len([]rune(got.CounterpartName)))
}

// Any "<amount> <currency> за <description> от <account>" message parses
// back to its parts.
func TestParser_WellFormedProperty(t *testing.T) {
	parser := NewParser()
	faker := gofakeit.New(42)

	reserved := map[string]bool{}
	for word := range DefaultConnectors {
		reserved[word] = true
	}
	for _, rule := range DefaultMarkers {
		reserved[rule.Token] = true
	}

	words := func(n int) string {
		out := make([]string, 0, n)
		for len(out) < n {
			w := faker.Word()
			if reserved[strings.ToLower(w)] || strings.ContainsAny(w, " \t") {
				continue
			}
			out = append(out, w)
		}
		return strings.Join(out, " ")
	}

	for i := 0; i < 200; i++ {
		cents := faker.IntRange(1, 10_000_000)
		amount := decimal.New(int64(cents), -2)
		currency := Currencies[faker.IntRange(0, len(Currencies)-1)]
		aliases := CurrencyAliases(currency)
		alias := aliases[faker.IntRange(0, len(aliases)-1)]
		description := words(faker.IntRange(1, 5))
		account := words(faker.IntRange(1, 3))

		input := fmt.Sprintf("%s %s за %s от %s", amount.String(), alias, description, account)

		got, err := parser.Parse(input)
		require.NoError(t, err, input)
		assert.True(t, amount.Equal(got.Amount.Decimal), input)
		assert.Equal(t, currency, got.Currency, input)
		assert.Equal(t, description, got.Description, input)
		assert.Equal(t, account, got.CounterpartName, input)
		assert.Equal(t, Income, got.Polarity, input)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"100", "100", false},
		{"-12,5", "-12.5", false},
		{"+3.25", "3.25", false},
		{"abc", "", true},
		{"1.", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got))
		})
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		input    string
		amount   string
		currency Currency
		wantErr  error
	}{
		{"100 лв", "100", BGN, nil},
		{"250 EUR", "250", EUR, nil},
		{"50,5 £", "50.5", GBP, nil},
		{"-20 usd", "-20", USD, nil},
		{"100лв.", "100", BGN, nil},
		{"100", "", CurrencyUnknown, ErrUnknownCurrency},
		{"abc лв", "", CurrencyUnknown, ErrInvalidAmount},
		{"100 лв за", "", CurrencyUnknown, ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			amount, currency, err := ParseMoney(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.amount).Equal(amount))
			assert.Equal(t, tt.currency, currency)
		})
	}
}
