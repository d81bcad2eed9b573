package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/canhamzacode/tipjar/internal/models"
	"github.com/google/uuid"
)

// Memory is an in-memory models.Repository used by tests. It mirrors the
// Postgres implementation's semantics, including the conditional status
// update.
type Memory struct {
	mu           sync.Mutex
	users        map[string]*models.User
	transactions map[string]*models.Transaction
	pendingTips  map[string]*models.PendingTip
	mentions     map[string]*models.Mention
	botState     *models.BotState
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		users:        make(map[string]*models.User),
		transactions: make(map[string]*models.Transaction),
		pendingTips:  make(map[string]*models.PendingTip),
		mentions:     make(map[string]*models.Mention),
	}
}

func (m *Memory) Close() error { return nil }

// Users

func (m *Memory) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "user", ID: id}
	}
	cp := *user
	return &cp, nil
}

func (m *Memory) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.TwitterHandle == handle {
			cp := *user
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetUserByTwitterID(ctx context.Context, twitterID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.TwitterID == twitterID && twitterID != "" {
			cp := *user
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetUserByWallet(ctx context.Context, address string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.WalletAddress != nil && *user.WalletAddress == address {
			cp := *user
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) UpdateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return &models.NotFoundError{Resource: "user", ID: user.ID}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

// Transactions

func (m *Memory) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertTransactionLocked(tx)
	return nil
}

func (m *Memory) insertTransactionLocked(tx *models.Transaction) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	cp := *tx
	m.transactions[tx.ID] = &cp
}

func (m *Memory) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "transaction", ID: id}
	}
	cp := *tx
	return &cp, nil
}

func (m *Memory) ListTransactionsByUser(ctx context.Context, userID string) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range m.transactions {
		if tx.SenderID == userID || (tx.ReceiverID != nil && *tx.ReceiverID == userID) {
			cp := *tx
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateTransactionStatus(ctx context.Context, id string, from, to models.TransactionStatus, txHash *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return &models.NotFoundError{Resource: "transaction", ID: id}
	}
	if tx.Status != from {
		return &models.ConflictError{Msg: fmt.Sprintf(
			"transaction %s is not %s (current status: %s)", id, from, tx.Status)}
	}
	tx.Status = to
	if txHash != nil {
		tx.TxHash = txHash
	}
	return nil
}

// Pending tips

func (m *Memory) CreatePendingTipPair(ctx context.Context, tip *models.PendingTip, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tip.ID == "" {
		tip.ID = uuid.NewString()
	}
	if tip.CreatedAt.IsZero() {
		tip.CreatedAt = time.Now()
	}
	m.insertTransactionLocked(tx)
	tip.TransactionID = tx.ID
	cp := *tip
	m.pendingTips[tip.ID] = &cp
	return nil
}

func (m *Memory) ListPendingTipsByHandle(ctx context.Context, handle string) ([]*models.PendingTip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PendingTip
	for _, tip := range m.pendingTips {
		if tip.ReceiverHandle == handle && tip.Status == models.PendingTipStatusPending {
			cp := *tip
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ReconcilePendingTip(ctx context.Context, tipID, receiverID string, at time.Time, txStatus models.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tip, ok := m.pendingTips[tipID]
	if !ok {
		return &models.NotFoundError{Resource: "pending tip", ID: tipID}
	}
	if tip.Status != models.PendingTipStatusPending {
		return &models.ConflictError{Msg: fmt.Sprintf("pending tip %s is not pending", tipID)}
	}
	tx, ok := m.transactions[tip.TransactionID]
	if !ok {
		return &models.NotFoundError{Resource: "transaction", ID: tip.TransactionID}
	}
	// All-or-nothing: check the companion before mutating either row.
	if tx.Status != models.TransactionStatusPending {
		return &models.ConflictError{Msg: fmt.Sprintf(
			"transaction %s for pending tip %s is not pending", tip.TransactionID, tipID)}
	}
	tip.Status = models.PendingTipStatusConfirmed
	tip.ReceiverID = &receiverID
	tip.ReconciledAt = &at
	tx.Status = txStatus
	tx.ReceiverID = &receiverID
	return nil
}

// GetPendingTip returns a pending tip by id. Test helper, not part of
// models.Repository.
func (m *Memory) GetPendingTip(id string) (*models.PendingTip, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tip, ok := m.pendingTips[id]
	if !ok {
		return nil, false
	}
	cp := *tip
	return &cp, true
}

// CountTransactions returns how many transaction rows exist. Test helper.
func (m *Memory) CountTransactions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

// AllTransactions returns every transaction row. Test helper.
func (m *Memory) AllTransactions() []*models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range m.transactions {
		cp := *tx
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Mentions

func (m *Memory) GetMentionByExternalID(ctx context.Context, externalID string) (*models.Mention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mention := range m.mentions {
		if mention.ExternalID == externalID {
			cp := *mention
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateMention(ctx context.Context, mention *models.Mention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.mentions {
		if existing.ExternalID == mention.ExternalID {
			return fmt.Errorf("duplicate mention external id %s", mention.ExternalID)
		}
	}
	if mention.ID == "" {
		mention.ID = uuid.NewString()
	}
	if mention.CreatedAt.IsZero() {
		mention.CreatedAt = time.Now()
	}
	cp := *mention
	m.mentions[mention.ID] = &cp
	return nil
}

func (m *Memory) AttachMentionTransaction(ctx context.Context, externalID, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mention := range m.mentions {
		if mention.ExternalID == externalID {
			mention.TransactionID = transactionID
			return nil
		}
	}
	return &models.NotFoundError{Resource: "mention", ID: externalID}
}

func (m *Memory) MarkMentionProcessed(ctx context.Context, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mention := range m.mentions {
		if mention.ExternalID == externalID {
			mention.Processed = 1
			return nil
		}
	}
	return &models.NotFoundError{Resource: "mention", ID: externalID}
}

func (m *Memory) ListUnprocessedMentions(ctx context.Context, limit int) ([]*models.Mention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Mention
	for _, mention := range m.mentions {
		if mention.Processed == 0 {
			cp := *mention
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Bot state

func (m *Memory) GetBotState(ctx context.Context) (*models.BotState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.botState == nil {
		return nil, nil
	}
	cp := *m.botState
	return &cp, nil
}

func (m *Memory) UpsertBotState(ctx context.Context, lastMentionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botState = &models.BotState{
		ID:            models.BotStateID,
		LastMentionID: lastMentionID,
		UpdatedAt:     time.Now(),
	}
	return nil
}
