// Package hedera implements the ledger interface on top of the Hedera SDK.
// Building an unsigned transfer never involves a private key; operator
// credentials are only needed to pay for submissions on behalf of clients
// that did not set their own payer.
package hedera

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
	"unicode/utf8"

	sdk "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/shopspring/decimal"

	"github.com/canhamzacode/tipjar/internal/metrics"
	"github.com/canhamzacode/tipjar/internal/models"
	"github.com/canhamzacode/tipjar/pkg/logger"
)

const (
	// maxMemoBytes is the Hedera transaction memo limit.
	maxMemoBytes = 100

	nativeToken = "HBAR"
)

// Config carries the network parameters for the ledger service.
type Config struct {
	// Network is the Hedera network name: mainnet, testnet or previewnet.
	Network string
	// OperatorID and OperatorKey are optional payer credentials.
	OperatorID  string
	OperatorKey string
	// NodeAccount pins all built transactions to a single consensus node so
	// the frozen bytes stay valid for the client-side signer.
	NodeAccount string
}

// Service talks to the Hedera network. It implements models.Ledger.
type Service struct {
	client      *sdk.Client
	nodeAccount sdk.AccountID
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

// NewService creates a ledger service for the configured network. Operator
// credentials are optional: without them unsigned transfers can still be
// built, and submission relies on the sender-paid transaction id.
func NewService(cfg Config, log *logger.Logger, m *metrics.Metrics) (*Service, error) {
	client, err := sdk.ClientForName(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to create hedera client for network %s: %s", cfg.Network, err)
	}

	if cfg.OperatorID != "" && cfg.OperatorKey != "" {
		operatorID, err := sdk.AccountIDFromString(cfg.OperatorID)
		if err != nil {
			return nil, fmt.Errorf("invalid operator account id %s: %s", cfg.OperatorID, err)
		}
		operatorKey, err := sdk.PrivateKeyFromString(cfg.OperatorKey)
		if err != nil {
			return nil, fmt.Errorf("invalid operator key: %s", err)
		}
		client.SetOperator(operatorID, operatorKey)
	} else {
		log.Warn("hedera operator credentials not set, submissions are sender-paid only")
	}

	nodeAccount, err := sdk.AccountIDFromString(cfg.NodeAccount)
	if err != nil {
		return nil, fmt.Errorf("invalid node account id %s: %s", cfg.NodeAccount, err)
	}

	return &Service{
		client:      client,
		nodeAccount: nodeAccount,
		logger:      log,
		metrics:     m,
	}, nil
}

// Close releases the network client.
func (s *Service) Close() error {
	return s.client.Close()
}

// ValidateAccountID checks that account parses as a Hedera account id.
func (s *Service) ValidateAccountID(account string) error {
	if _, err := sdk.AccountIDFromString(account); err != nil {
		return models.NewValidationError("invalid account id %q: %s", account, err)
	}
	return nil
}

// BuildUnsignedTransfer constructs a zero-sum HBAR transfer debiting sender
// and crediting receiver, freezes it against the pinned node and returns the
// serialized bytes. The transaction id is generated from the sender account
// so the sender is the payer and the bytes can be signed entirely
// client-side.
func (s *Service) BuildUnsignedTransfer(ctx context.Context, senderAccount, receiverAccount, amount, token, memo string) (*models.UnsignedTransfer, error) {
	if token != nativeToken {
		return nil, models.NewValidationError("unsupported token %q, only %s transfers are available", token, nativeToken)
	}

	sender, err := sdk.AccountIDFromString(senderAccount)
	if err != nil {
		return nil, models.NewValidationError("invalid sender account %q: %s", senderAccount, err)
	}
	receiver, err := sdk.AccountIDFromString(receiverAccount)
	if err != nil {
		return nil, models.NewValidationError("invalid receiver account %q: %s", receiverAccount, err)
	}

	tinybar, err := toTinybar(amount)
	if err != nil {
		return nil, err
	}

	tx, err := sdk.NewTransferTransaction().
		AddHbarTransfer(sender, sdk.HbarFromTinybar(-tinybar)).
		AddHbarTransfer(receiver, sdk.HbarFromTinybar(tinybar)).
		SetTransactionMemo(TruncateMemo(memo)).
		SetTransactionID(sdk.TransactionIDGenerate(sender)).
		SetNodeAccountIDs([]sdk.AccountID{s.nodeAccount}).
		FreezeWith(s.client)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "hedera", Err: fmt.Errorf("failed to freeze transfer: %s", err)}
	}

	raw, err := tx.ToBytes()
	if err != nil {
		return nil, &models.ExternalServiceError{Service: "hedera", Err: fmt.Errorf("failed to serialize transfer: %s", err)}
	}

	return &models.UnsignedTransfer{
		TransactionBytes: base64.StdEncoding.EncodeToString(raw),
		SenderAccount:    senderAccount,
		ReceiverAccount:  receiverAccount,
		Amount:           amount,
		Token:            token,
	}, nil
}

// SubmitSigned submits client-signed transaction bytes, waits for the
// consensus receipt and returns the ledger transaction id. A receipt with a
// non-success status is an ExternalServiceError.
func (s *Service) SubmitSigned(ctx context.Context, signedBytes string) (string, error) {
	start := time.Now()
	hash, err := s.submit(ctx, signedBytes)
	status := "success"
	if err != nil {
		status = "failure"
	}
	if s.metrics != nil {
		s.metrics.LedgerSubmissions.WithLabelValues(status).Inc()
		s.metrics.LedgerLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
	return hash, err
}

func (s *Service) submit(ctx context.Context, signedBytes string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(signedBytes)
	if err != nil {
		return "", models.NewValidationError("signed transaction is not valid base64: %s", err)
	}

	parsed, err := sdk.TransactionFromBytes(raw)
	if err != nil {
		return "", models.NewValidationError("failed to deserialize signed transaction: %s", err)
	}
	tx, ok := parsed.(sdk.TransferTransaction)
	if !ok {
		return "", models.NewValidationError("signed bytes are not a transfer transaction")
	}

	resp, err := tx.Execute(s.client)
	if err != nil {
		return "", &models.ExternalServiceError{Service: "hedera", Err: fmt.Errorf("failed to execute transaction: %s", err)}
	}

	receipt, err := resp.GetReceipt(s.client)
	if err != nil {
		return "", &models.ExternalServiceError{Service: "hedera", Err: fmt.Errorf("failed to fetch receipt: %s", err)}
	}
	if receipt.Status != sdk.StatusSuccess {
		return "", &models.ExternalServiceError{Service: "hedera", Err: fmt.Errorf("transaction rejected with status %s", receipt.Status)}
	}

	s.logger.Info("transaction confirmed: ", resp.TransactionID.String())
	return resp.TransactionID.String(), nil
}

// toTinybar converts a decimal HBAR amount string into tinybar. Amounts are
// limited to two decimal places upstream, so the shift is exact.
func toTinybar(amount string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, models.NewValidationError("invalid amount %q: %s", amount, err)
	}
	if !d.IsPositive() {
		return 0, models.NewValidationError("amount must be positive, got %s", amount)
	}
	shifted := d.Shift(8)
	if !shifted.IsInteger() {
		return 0, models.NewValidationError("amount %s has more precision than tinybar", amount)
	}
	return shifted.IntPart(), nil
}

// TruncateMemo caps a memo at the ledger's 100-byte limit, marking the cut
// with an ellipsis. The cut backs up to a rune boundary so the result stays
// valid UTF-8.
func TruncateMemo(memo string) string {
	if len(memo) <= maxMemoBytes {
		return memo
	}
	cut := maxMemoBytes - 3
	for cut > 0 && !utf8.RuneStart(memo[cut]) {
		cut--
	}
	return memo[:cut] + "..."
}
