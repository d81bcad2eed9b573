// Package transfer orchestrates tip transfers: path selection between a
// direct signable transfer and a pending tip, signed-transaction completion,
// and reconciliation of pending tips once a receiver links up.
package transfer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/canhamzacode/tipjar/internal/config"
	"github.com/canhamzacode/tipjar/internal/directory"
	"github.com/canhamzacode/tipjar/internal/metrics"
	"github.com/canhamzacode/tipjar/internal/models"
	"github.com/canhamzacode/tipjar/pkg/logger"
	"github.com/canhamzacode/tipjar/pkg/validation"
)

// Service coordinates transfers between the user directory, the relational
// store and the ledger.
type Service struct {
	repo          models.Repository
	ledger        models.Ledger
	directory     *directory.Service
	logger        *logger.Logger
	metrics       *metrics.Metrics
	reconcileMode string
}

// New creates a transfer service. reconcileMode selects what happens to a
// pending tip when its receiver appears: config.ReconcileModeCustodial
// records the payout as confirmed immediately, config.ReconcileModeResign
// re-creates it as a pending transaction that goes back through the signing
// flow.
func New(repo models.Repository, ledger models.Ledger, dir *directory.Service, log *logger.Logger, m *metrics.Metrics, reconcileMode string) *Service {
	if reconcileMode == "" {
		reconcileMode = config.ReconcileModeCustodial
	}
	return &Service{
		repo:          repo,
		ledger:        ledger,
		directory:     dir,
		logger:        log,
		metrics:       m,
		reconcileMode: reconcileMode,
	}
}

// Initiate validates a transfer request and selects its path. A receiver
// with a linked wallet gets a direct transaction; anyone else (unknown
// handle, or known user without a wallet) gets a pending tip plus its
// companion transaction, written atomically.
func (s *Service) Initiate(ctx context.Context, req models.TransferRequest) (*models.TransferResult, error) {
	handle := validation.SanitizeHandle(req.ReceiverHandle)
	if err := validation.ValidateHandle(handle); err != nil {
		return nil, models.NewValidationError("%s", err)
	}

	amount, err := validation.ParseAmount(req.Amount)
	if err != nil {
		return nil, models.NewValidationError("%s", err)
	}
	if !amount.IsPositive() {
		return nil, models.NewValidationError("amount must be positive, got %s", req.Amount)
	}
	if amount.GreaterThan(validation.MaxAmount) {
		return nil, models.NewValidationError("amount %s exceeds the maximum of %s", req.Amount, validation.MaxAmount)
	}
	if amount.Exponent() < -2 {
		return nil, models.NewValidationError("amount %s has more than two decimal places", req.Amount)
	}

	token := strings.ToUpper(strings.TrimSpace(req.Token))
	if token == "" {
		token = "HBAR"
	}
	if err := validation.ValidateCurrency(token); err != nil {
		return nil, models.NewValidationError("%s", err)
	}

	sender, err := s.repo.GetUserByID(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}
	if sender.TwitterHandle == handle {
		return nil, models.NewValidationError("cannot send a tip to yourself")
	}

	note := validation.SanitizeNote(req.Note)
	var notePtr *string
	if note != "" {
		notePtr = &note
	}

	receiver, err := s.directory.Resolve(ctx, handle)
	if err != nil {
		return nil, err
	}

	if receiver != nil && receiver.HasWallet() {
		return s.initiateDirect(ctx, sender, receiver, handle, amount.String(), token, notePtr)
	}
	return s.initiatePending(ctx, sender, receiver, handle, amount.String(), token, notePtr)
}

func (s *Service) initiateDirect(ctx context.Context, sender, receiver *models.User, handle, amount, token string, note *string) (*models.TransferResult, error) {
	tx := &models.Transaction{
		SenderID:       sender.ID,
		ReceiverID:     &receiver.ID,
		ReceiverHandle: handle,
		Token:          token,
		Amount:         amount,
		Note:           note,
		Status:         models.TransactionStatusPending,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %s", err)
	}

	if s.metrics != nil {
		s.metrics.TransfersInitiated.WithLabelValues(string(models.TransferPathDirect)).Inc()
	}
	s.logger.Info("direct transfer initiated: ", tx.ID, " @", sender.TwitterHandle, " -> @", handle)

	return &models.TransferResult{
		Type:           models.TransferPathDirect,
		TransactionID:  tx.ID,
		ReceiverWallet: *receiver.WalletAddress,
		ReceiverExists: true,
		ReceiverID:     &receiver.ID,
	}, nil
}

func (s *Service) initiatePending(ctx context.Context, sender, receiver *models.User, handle, amount, token string, note *string) (*models.TransferResult, error) {
	tip := &models.PendingTip{
		SenderID:       sender.ID,
		ReceiverHandle: handle,
		Amount:         amount,
		Token:          token,
		Note:           note,
		Status:         models.PendingTipStatusPending,
	}
	tx := &models.Transaction{
		SenderID:       sender.ID,
		ReceiverHandle: handle,
		Token:          token,
		Amount:         amount,
		Note:           note,
		Status:         models.TransactionStatusPending,
	}

	var receiverID *string
	if receiver != nil {
		receiverID = &receiver.ID
		tip.ReceiverID = &receiver.ID
		tx.ReceiverID = &receiver.ID
	}

	if err := s.repo.CreatePendingTipPair(ctx, tip, tx); err != nil {
		return nil, fmt.Errorf("failed to create pending tip: %s", err)
	}

	if s.metrics != nil {
		s.metrics.TransfersInitiated.WithLabelValues(string(models.TransferPathPending)).Inc()
	}
	s.logger.Info("pending tip recorded: ", tip.ID, " @", sender.TwitterHandle, " -> @", handle)

	return &models.TransferResult{
		Type:           models.TransferPathPending,
		TransactionID:  tx.ID,
		PendingTipID:   tip.ID,
		ReceiverExists: receiver != nil,
		ReceiverID:     receiverID,
	}, nil
}

// BuildUnsigned rebuilds the unsigned ledger transfer for a transaction.
// Both parties must have a connected wallet.
func (s *Service) BuildUnsigned(ctx context.Context, tx *models.Transaction) (*models.UnsignedTransfer, error) {
	sender, err := s.repo.GetUserByID(ctx, tx.SenderID)
	if err != nil {
		return nil, err
	}
	if !sender.HasWallet() {
		return nil, &models.ConflictError{Msg: "sender has no connected wallet"}
	}

	receiver, err := s.directory.Resolve(ctx, tx.ReceiverHandle)
	if err != nil {
		return nil, err
	}
	if receiver == nil || !receiver.HasWallet() {
		return nil, &models.ConflictError{Msg: fmt.Sprintf("@%s has no connected wallet yet", tx.ReceiverHandle)}
	}

	memo := fmt.Sprintf("Tip from @%s", sender.TwitterHandle)
	if tx.Note != nil && *tx.Note != "" {
		memo += ": " + *tx.Note
	}

	return s.ledger.BuildUnsignedTransfer(ctx, *sender.WalletAddress, *receiver.WalletAddress, tx.Amount, tx.Token, memo)
}

// Complete submits signed transaction bytes for a pending transaction.
// Only the original sender may complete it, and only while it is pending;
// the conditional status update is the guard against two submissions racing.
// A ledger failure marks the transaction failed and is still reported as an
// error to the caller.
func (s *Service) Complete(ctx context.Context, actorUserID, transactionID, signedBytes string) (*models.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.SenderID != actorUserID {
		return nil, &models.AuthorizationError{Msg: "only the sender can complete this transaction"}
	}
	if tx.Status != models.TransactionStatusPending {
		return nil, &models.ConflictError{Msg: fmt.Sprintf(
			"transaction %s is not pending (current status: %s)", transactionID, tx.Status)}
	}

	hash, submitErr := s.ledger.SubmitSigned(ctx, signedBytes)
	if submitErr != nil {
		if err := s.repo.UpdateTransactionStatus(ctx, transactionID,
			models.TransactionStatusPending, models.TransactionStatusFailed, nil); err != nil {
			s.logger.Error("failed to mark transaction failed: ", err)
		}
		return nil, submitErr
	}

	if err := s.repo.UpdateTransactionStatus(ctx, transactionID,
		models.TransactionStatusPending, models.TransactionStatusConfirmed, &hash); err != nil {
		return nil, err
	}

	tx.Status = models.TransactionStatusConfirmed
	tx.TxHash = &hash
	s.logger.Info("transaction confirmed: ", transactionID, " hash ", hash)
	return tx, nil
}

// Reconcile resolves the pending tips addressed to handle against the
// now-known receiver, transitioning each tip together with its companion
// transaction. Failures on individual tips are logged and skipped; the
// count of successfully reconciled tips is returned.
func (s *Service) Reconcile(ctx context.Context, handle, receiverID string) (int, error) {
	handle = validation.SanitizeHandle(handle)
	tips, err := s.repo.ListPendingTipsByHandle(ctx, handle)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending tips for @%s: %s", handle, err)
	}

	reconciled := 0
	for _, tip := range tips {
		if err := s.reconcileTip(ctx, tip, receiverID); err != nil {
			s.logger.Error("failed to reconcile tip ", tip.ID, ": ", err)
			if s.metrics != nil {
				s.metrics.Errors.WithLabelValues("reconcile").Inc()
			}
			continue
		}
		reconciled++
		if s.metrics != nil {
			s.metrics.TipsReconciled.Inc()
		}
	}

	if reconciled > 0 {
		s.logger.Info("reconciled ", reconciled, " pending tips for @", handle)
	}
	return reconciled, nil
}

// reconcileTip moves one tip and its companion transaction together. In
// custodial mode the companion is confirmed outright; in resign mode it
// stays pending with the receiver attached and re-enters the signing flow.
func (s *Service) reconcileTip(ctx context.Context, tip *models.PendingTip, receiverID string) error {
	status := models.TransactionStatusConfirmed
	if s.reconcileMode == config.ReconcileModeResign {
		status = models.TransactionStatusPending
	}
	return s.repo.ReconcilePendingTip(ctx, tip.ID, receiverID, time.Now(), status)
}

// Describe returns a transaction visible to actorUserID, with a freshly
// rebuilt unsigned transfer attached when the transaction is still pending
// and both wallets are connected.
func (s *Service) Describe(ctx context.Context, actorUserID, transactionID string) (*models.Transaction, *models.UnsignedTransfer, error) {
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	if tx.SenderID != actorUserID {
		return nil, nil, &models.AuthorizationError{Msg: "not your transaction"}
	}

	var unsigned *models.UnsignedTransfer
	if tx.Status == models.TransactionStatusPending {
		unsigned, err = s.BuildUnsigned(ctx, tx)
		if err != nil {
			// A missing wallet just means there is nothing to sign yet.
			s.logger.Debug("no unsigned transfer for transaction ", tx.ID, ": ", err)
			unsigned = nil
		}
	}
	return tx, unsigned, nil
}

// Direction of a transaction relative to the listing user.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Entry is one row of a user's transaction history.
type Entry struct {
	Transaction  *models.Transaction      `json:"transaction"`
	Direction    Direction                `json:"direction"`
	Counterparty string                   `json:"counterparty"`
	Unsigned     *models.UnsignedTransfer `json:"unsigned,omitempty"`
}

// ListForUser returns the user's transaction history, newest first. Pending
// transactions the user sent carry a rebuilt unsigned transfer when one can
// be constructed.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Entry, error) {
	txs, err := s.repo.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %s", err)
	}

	entries := make([]Entry, 0, len(txs))
	for _, tx := range txs {
		entry := Entry{Transaction: tx}
		if tx.SenderID == userID {
			entry.Direction = DirectionSent
			entry.Counterparty = tx.ReceiverHandle
			if tx.Status == models.TransactionStatusPending {
				if unsigned, err := s.BuildUnsigned(ctx, tx); err == nil {
					entry.Unsigned = unsigned
				}
			}
		} else {
			entry.Direction = DirectionReceived
			sender, err := s.repo.GetUserByID(ctx, tx.SenderID)
			if err == nil {
				entry.Counterparty = sender.TwitterHandle
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
