package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MaxHandleLength is the platform limit for social handles.
	MaxHandleLength = 15
	// MaxNoteLength caps stored note text, in runes.
	MaxNoteLength = 256
)

// MaxAmount is the upper bound for a single transfer amount.
var MaxAmount = decimal.NewFromInt(1_000_000)

var (
	handleDisallowed = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	handlePattern    = regexp.MustCompile(`^[a-zA-Z0-9_]{1,15}$`)
	currencyPattern  = regexp.MustCompile(`^[A-Z]{2,10}$`)
)

// SanitizeHandle strips disallowed characters from a social handle and
// enforces the length limit. May return an empty string if nothing valid
// remains.
func SanitizeHandle(handle string) string {
	cleaned := handleDisallowed.ReplaceAllString(handle, "")
	if len(cleaned) > MaxHandleLength {
		cleaned = cleaned[:MaxHandleLength]
	}
	return cleaned
}

// ValidateHandle checks a sanitized handle against the handle grammar.
func ValidateHandle(handle string) error {
	if !handlePattern.MatchString(handle) {
		return fmt.Errorf("invalid handle %q: must be 1-15 alphanumeric or underscore characters", handle)
	}
	return nil
}

// SanitizeAmount clamps an amount into [0, MaxAmount] and floors it to cent
// precision. Negative amounts become zero.
func SanitizeAmount(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(MaxAmount) {
		amount = MaxAmount
	}
	return amount.RoundFloor(2)
}

// ParseAmount parses a decimal amount string, rejecting anything that is
// not a finite number. NaN-producing inputs are rejected rather than
// coerced to zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}

// ValidateCurrency checks an uppercased currency token.
func ValidateCurrency(currency string) error {
	if !currencyPattern.MatchString(currency) {
		return fmt.Errorf("invalid currency %q: must be 2-10 uppercase letters", currency)
	}
	return nil
}

// SanitizeNote trims a note and caps it to MaxNoteLength runes.
func SanitizeNote(note string) string {
	note = strings.TrimSpace(note)
	runes := []rune(note)
	if len(runes) > MaxNoteLength {
		return string(runes[:MaxNoteLength])
	}
	return note
}
