package models

import (
	"context"
	"time"
)

// Repository is the durable relational store the core depends on.
//
// UpdateTransactionStatus is a conditional update: it transitions the row
// only when it is still in the expected status, in a single statement, and
// returns ConflictError otherwise. That conditional is the only guard
// against two submissions racing on the same transaction; a read-then-write
// is not an acceptable implementation.
type Repository interface {
	// Users.
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	// GetUserByHandle returns (nil, nil) when no record exists for the
	// handle: absence is an orchestration outcome, not an error.
	GetUserByHandle(ctx context.Context, handle string) (*User, error)
	GetUserByTwitterID(ctx context.Context, twitterID string) (*User, error)
	GetUserByWallet(ctx context.Context, address string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error

	// Transactions.
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID string) ([]*Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, from, to TransactionStatus, txHash *string) error

	// Pending tips. CreatePendingTipPair inserts the tip and its companion
	// transaction atomically, recording the transaction id on the tip.
	// ReconcilePendingTip atomically marks the tip confirmed and moves its
	// companion transaction out of pending to txStatus with the receiver
	// attached; a companion that already left pending fails the whole
	// reconciliation with ConflictError so the tip stays pending.
	CreatePendingTipPair(ctx context.Context, tip *PendingTip, tx *Transaction) error
	ListPendingTipsByHandle(ctx context.Context, handle string) ([]*PendingTip, error)
	ReconcilePendingTip(ctx context.Context, tipID, receiverID string, at time.Time, txStatus TransactionStatus) error

	// Mentions. AttachMentionTransaction records the transfer a claimed
	// mention produced, so a retry of the claim finds it instead of
	// initiating a second transfer.
	GetMentionByExternalID(ctx context.Context, externalID string) (*Mention, error)
	CreateMention(ctx context.Context, mention *Mention) error
	AttachMentionTransaction(ctx context.Context, externalID, transactionID string) error
	MarkMentionProcessed(ctx context.Context, externalID string) error
	ListUnprocessedMentions(ctx context.Context, limit int) ([]*Mention, error)

	// Bot state.
	GetBotState(ctx context.Context) (*BotState, error)
	UpsertBotState(ctx context.Context, lastMentionID string) error

	Close() error
}

// Ledger is the blockchain network the core submits transfers to. The
// builder side never touches a private key.
type Ledger interface {
	// BuildUnsignedTransfer constructs, freezes and serializes a zero-sum
	// transfer debiting sender and crediting receiver.
	BuildUnsignedTransfer(ctx context.Context, senderAccount, receiverAccount, amount, token, memo string) (*UnsignedTransfer, error)
	// SubmitSigned submits client-signed transaction bytes (base64),
	// awaits the receipt and returns the ledger transaction hash.
	SubmitSigned(ctx context.Context, signedBytes string) (string, error)
	// ValidateAccountID checks the network-specific account id format.
	ValidateAccountID(account string) error
}

// MentionEvent is one timestamped text event from the social feed.
type MentionEvent struct {
	ID           string
	AuthorID     string
	AuthorHandle string
	Text         string
}

// MentionFeed is the external social mention API. FetchSince returns events
// newer than sinceID, newest first, bounded by limit; Reply posts a reply
// to the given event.
type MentionFeed interface {
	FetchSince(ctx context.Context, sinceID string, limit int) ([]MentionEvent, error)
	Reply(ctx context.Context, text, inReplyToID string) error
}
