package models

// TransferPath discriminates the two orchestration outcomes.
type TransferPath string

const (
	// TransferPathDirect means the receiver has a linked wallet and an
	// unsigned transaction can be constructed immediately.
	TransferPathDirect TransferPath = "direct"
	// TransferPathPending means the transfer was recorded as a pending tip
	// awaiting reconciliation.
	TransferPathPending TransferPath = "pending"
)

// TransferRequest is the input to transfer orchestration.
type TransferRequest struct {
	SenderID       string
	ReceiverHandle string
	Amount         string
	Token          string
	Note           string
}

// TransferResult is the tagged outcome of orchestration. Type selects which
// payload fields are meaningful: direct carries TransactionID and
// ReceiverWallet, pending carries PendingTipID, TransactionID and the
// receiver-existence flags.
type TransferResult struct {
	Type          TransferPath `json:"type"`
	TransactionID string       `json:"transaction_id"`
	// PendingTipID is set on the pending path.
	PendingTipID string `json:"pending_tip_id,omitempty"`
	// ReceiverWallet is set on the direct path.
	ReceiverWallet string `json:"receiver_wallet,omitempty"`
	// ReceiverExists is true when a user record exists for the handle,
	// even without a wallet.
	ReceiverExists bool `json:"receiver_exists"`
	// ReceiverID is the receiver's user id when known, nil otherwise.
	ReceiverID *string `json:"receiver_id,omitempty"`
}

// UnsignedTransfer is a frozen, serialized ledger transfer awaiting a
// client-side signature. TransactionBytes is base64; no private key is ever
// involved in producing it.
type UnsignedTransfer struct {
	TransactionBytes string `json:"transactionBytes"`
	SenderAccount    string `json:"senderAccountId"`
	ReceiverAccount  string `json:"receiverAccountId"`
	Amount           string `json:"amount"`
	Token            string `json:"token"`
}
