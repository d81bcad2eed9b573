package models

import "github.com/shopspring/decimal"

// CommandType discriminates parsed bot commands.
type CommandType string

const (
	CommandTypeSend    CommandType = "send"
	CommandTypeUnknown CommandType = "unknown"
)

// Command is the result of parsing one mention text. It is ephemeral and
// never persisted. An unparseable text yields CommandTypeUnknown with a
// human-readable Error so the bot always has a reply to send.
type Command struct {
	Type      CommandType
	Amount    decimal.Decimal
	Currency  string
	Recipient string
	Note      string
	Error     string
}
