package models

import "time"

// Mention is the idempotency record for one externally-sourced text event.
// Existence of a row with the same external id is the sole dedup signal:
// a mention is never reprocessed once recorded and marked processed.
type Mention struct {
	// ID is the internal identifier (UUID).
	ID string `json:"id" gorm:"column:id;primaryKey;size:36"`
	// ExternalID is the event id assigned by the social platform, unique.
	ExternalID string `json:"external_id" gorm:"column:external_id;uniqueIndex;not null"`
	// AuthorHandle is the handle of the posting user.
	AuthorHandle string `json:"author_handle" gorm:"column:author_handle;size:50;not null"`
	// Text is the raw mention text.
	Text string `json:"text" gorm:"column:text;not null"`
	// TransactionID references the transfer this mention produced, empty
	// until one is created. A retried claim with a transaction id skips
	// initiation.
	TransactionID string `json:"transaction_id" gorm:"column:transaction_id;size:36"`
	// Processed is 0 for claimed-but-unfinished, 1 once handled.
	Processed int `json:"processed" gorm:"column:processed;default:0;index"`
	// CreatedAt is when the record was claimed.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

// BotStateID is the primary key of the singleton BotState row.
const BotStateID = "tipjar-bot"

// BotState is the singleton watermark record for the mention poller. The
// watermark advances only after a full poll batch has been attempted, so a
// crash mid-batch causes at most one full-batch refetch; the Mention table
// dedups individual events.
type BotState struct {
	ID            string    `json:"id" gorm:"column:id;primaryKey"`
	LastMentionID string    `json:"last_mention_id" gorm:"column:last_mention_id"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"column:updated_at"`
}
