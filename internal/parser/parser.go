// Package parser turns free-form mention text into structured transfer
// commands. Parsing is deterministic and side-effect free; malformed input
// never produces an error value, only an unknown command carrying a
// human-readable message so the bot always has a reply to send.
package parser

import (
	"regexp"
	"strings"

	"github.com/canhamzacode/tipjar/internal/models"
	"github.com/canhamzacode/tipjar/pkg/validation"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the ledger's native unit, used when the command names
// no currency token.
const DefaultCurrency = "HBAR"

// commandPattern matches the tip grammar:
//
//	send <amount> [<currency>] @<handle> [<separator> <note>]
//
// Amount accepts up to 2 decimal digits; currency is one alphabetic token;
// the note is separated from the handle by whitespace, comma, colon or
// dash. Examples:
//
//	send 5 HBAR @alice
//	send 5 hbar @alice keep up the good work
//	send 5 @alice - thanks!
var commandPattern = regexp.MustCompile(`(?i)send\s+(\d+(?:\.\d{1,2})?)\s*([a-zA-Z]+)?\s*@([a-zA-Z0-9_]{1,15})(?:[\s,:\-]+(.+))?`)

// Parse extracts a transfer command from mention text.
func Parse(text string) models.Command {
	match := commandPattern.FindStringSubmatch(text)
	if match == nil {
		return models.Command{
			Type:  models.CommandTypeUnknown,
			Error: "Invalid command format",
		}
	}

	rawAmount, err := decimal.NewFromString(match[1])
	if err != nil {
		return models.Command{
			Type:  models.CommandTypeUnknown,
			Error: "Invalid amount",
		}
	}

	currency := strings.ToUpper(match[2])
	if currency == "" {
		currency = DefaultCurrency
	}

	// Sanitize before structural validation.
	amount := validation.SanitizeAmount(rawAmount)
	recipient := validation.SanitizeHandle(match[3])
	note := validation.SanitizeNote(match[4])

	if err := validateCommand(amount, currency, recipient); err != "" {
		return models.Command{
			Type:  models.CommandTypeUnknown,
			Error: "Invalid command: " + err,
		}
	}

	return models.Command{
		Type:      models.CommandTypeSend,
		Amount:    amount,
		Currency:  currency,
		Recipient: recipient,
		Note:      note,
	}
}

// validateCommand checks the sanitized fields against the command schema.
// Returns an empty string when valid.
func validateCommand(amount decimal.Decimal, currency, recipient string) string {
	if !amount.IsPositive() {
		return "amount must be positive"
	}
	if amount.GreaterThan(validation.MaxAmount) {
		return "amount exceeds maximum"
	}
	if err := validation.ValidateCurrency(currency); err != nil {
		return err.Error()
	}
	if err := validation.ValidateHandle(recipient); err != nil {
		return err.Error()
	}
	return ""
}
