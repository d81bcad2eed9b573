package models

import "time"

// TransactionStatus is the lifecycle state of a transfer attempt.
// A transaction is created pending before any signature exists and leaves
// pending exactly once: to confirmed or to failed. Terminal states never
// revert.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction represents one transfer attempt.
type Transaction struct {
	// ID is the internal identifier (UUID).
	ID string `json:"id" gorm:"column:id;primaryKey;size:36"`
	// SenderID references the sending user.
	SenderID string `json:"sender_id" gorm:"column:sender_id;size:36;index"`
	// ReceiverID references the receiving user, nil until resolved.
	ReceiverID *string `json:"receiver_id" gorm:"column:receiver_id;size:36;index"`
	// ReceiverHandle is the handle named in the transfer, always present.
	// Used for resolution before a receiver record exists.
	ReceiverHandle string `json:"receiver_handle" gorm:"column:receiver_handle;size:50;index"`
	// Token is the token symbol being transferred.
	Token string `json:"token" gorm:"column:token;size:20"`
	// Amount is a decimal string. Stored as text to avoid binary rounding
	// drift.
	Amount string `json:"amount" gorm:"column:amount"`
	// Note is an optional free-text message attached by the sender.
	Note *string `json:"note" gorm:"column:note"`
	// Status is the lifecycle state.
	Status TransactionStatus `json:"status" gorm:"column:status;size:20;default:pending;index"`
	// TxHash is the ledger transaction id, set on confirmation.
	TxHash *string `json:"tx_hash" gorm:"column:tx_hash;size:100"`
	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;index"`
}

// PendingTipStatus is the lifecycle state of a pending tip.
type PendingTipStatus string

const (
	PendingTipStatusPending   PendingTipStatus = "pending"
	PendingTipStatusConfirmed PendingTipStatus = "confirmed"
)

// PendingTip represents a transfer whose receiver could not yet be resolved
// to a signable wallet. It is created together with a companion Transaction
// row: the Transaction gives the sender dashboard visibility, the PendingTip
// drives reconciliation once the receiver links an account.
type PendingTip struct {
	// ID is the internal identifier (UUID).
	ID string `json:"id" gorm:"column:id;primaryKey;size:36"`
	// SenderID references the sending user.
	SenderID string `json:"sender_id" gorm:"column:sender_id;size:36;index"`
	// ReceiverID is set when the receiver exists but lacks a wallet, so
	// reconciliation updates that row instead of re-matching by handle.
	ReceiverID *string `json:"receiver_id" gorm:"column:receiver_id;size:36"`
	// ReceiverHandle is the handle the tip was addressed to.
	ReceiverHandle string `json:"receiver_handle" gorm:"column:receiver_handle;size:50;index"`
	// TransactionID references the companion Transaction created with the
	// tip. Reconciliation transitions both rows together.
	TransactionID string `json:"transaction_id" gorm:"column:transaction_id;size:36;index"`
	// Amount is a decimal string.
	Amount string `json:"amount" gorm:"column:amount"`
	// Token is the token symbol.
	Token string `json:"token" gorm:"column:token;size:20"`
	// Note is an optional free-text message.
	Note *string `json:"note" gorm:"column:note"`
	// Status is pending until reconciled.
	Status PendingTipStatus `json:"status" gorm:"column:status;size:20;default:pending;index"`
	// ReconciledAt is when the tip was converted into a transaction.
	ReconciledAt *time.Time `json:"reconciled_at" gorm:"column:reconciled_at"`
	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}
