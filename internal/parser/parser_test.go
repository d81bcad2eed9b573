package parser

import (
	"testing"

	"github.com/canhamzacode/tipjar/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidCommands(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		amount    string
		currency  string
		recipient string
		note      string
	}{
		{
			name:      "basic send",
			text:      "send 5 HBAR @alice",
			amount:    "5",
			currency:  "HBAR",
			recipient: "alice",
		},
		{
			name:      "lowercase currency uppercased",
			text:      "send 5 hbar @alice",
			amount:    "5",
			currency:  "HBAR",
			recipient: "alice",
		},
		{
			name:      "currency defaults to native unit",
			text:      "send 2.50 @bob_99",
			amount:    "2.5",
			currency:  "HBAR",
			recipient: "bob_99",
		},
		{
			name:      "mixed case keyword",
			text:      "SeNd 10 USDC @carol",
			amount:    "10",
			currency:  "USDC",
			recipient: "carol",
		},
		{
			name:      "trailing note after whitespace",
			text:      "send 5 HBAR @alice keep up the good work",
			amount:    "5",
			currency:  "HBAR",
			recipient: "alice",
			note:      "keep up the good work",
		},
		{
			name:      "note separated by dash",
			text:      "send 5 @alice - thanks!",
			amount:    "5",
			currency:  "HBAR",
			recipient: "alice",
			note:      "thanks!",
		},
		{
			name:      "note separated by comma",
			text:      "send 1.25 HBAR @alice, great thread",
			amount:    "1.25",
			currency:  "HBAR",
			recipient: "alice",
			note:      "great thread",
		},
		{
			name:      "leading mention of the bot",
			text:      "@tipjarbot send 3 HBAR @dave",
			amount:    "3",
			currency:  "HBAR",
			recipient: "dave",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Parse(tt.text)
			require.Equal(t, models.CommandTypeSend, cmd.Type, "error: %s", cmd.Error)
			assert.True(t, cmd.Amount.Equal(decimal.RequireFromString(tt.amount)),
				"amount: got %s want %s", cmd.Amount, tt.amount)
			assert.Equal(t, tt.currency, cmd.Currency)
			assert.Equal(t, tt.recipient, cmd.Recipient)
			assert.Equal(t, tt.note, cmd.Note)
		})
	}
}

func TestParse_MalformedInput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"no recipient marker", "send 5 HBAR alice"},
		{"no amount", "send HBAR @alice"},
		{"unrelated text", "what a lovely day"},
		{"keyword only", "send"},
		{"amount without keyword", "5 HBAR @alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Parse(tt.text)
			assert.Equal(t, models.CommandTypeUnknown, cmd.Type)
			assert.NotEmpty(t, cmd.Error, "unknown command must carry an error message")
		})
	}
}

func TestParse_AmountPrecision(t *testing.T) {
	// The grammar only admits up to 2 decimal digits; extra digits become
	// part of the note boundary rather than the amount.
	cmd := Parse("send 5.25 HBAR @alice")
	require.Equal(t, models.CommandTypeSend, cmd.Type)
	assert.True(t, cmd.Amount.Equal(decimal.RequireFromString("5.25")))

	cmd = Parse("send 0 HBAR @alice")
	assert.Equal(t, models.CommandTypeUnknown, cmd.Type)
	assert.Contains(t, cmd.Error, "positive")
}

func TestParse_NoteTruncated(t *testing.T) {
	long := "send 5 HBAR @alice "
	for i := 0; i < 300; i++ {
		long += "x"
	}
	cmd := Parse(long)
	require.Equal(t, models.CommandTypeSend, cmd.Type)
	assert.LessOrEqual(t, len([]rune(cmd.Note)), 256)
}

func TestParse_Deterministic(t *testing.T) {
	text := "send 7.50 HBAR @alice great work"
	first := Parse(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Parse(text))
	}
}
