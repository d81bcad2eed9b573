package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/canhamzacode/tipjar/internal/models"
	"github.com/canhamzacode/tipjar/pkg/logger"
	"github.com/google/uuid"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.PendingTip{},
		&models.Mention{},
		&models.BotState{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

// Users

func (db *PostgresDB) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if err := db.Conn.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %s", err)
	}
	return nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := db.Conn.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Resource: "user", ID: id}
		}
		return nil, fmt.Errorf("failed to get user: %s", err)
	}
	return &user, nil
}

func (db *PostgresDB) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	var user models.User
	if err := db.Conn.WithContext(ctx).Where("twitter_handle = ?", handle).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Absence is an orchestration outcome, not an error.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by handle: %s", err)
	}
	return &user, nil
}

func (db *PostgresDB) GetUserByTwitterID(ctx context.Context, twitterID string) (*models.User, error) {
	var user models.User
	if err := db.Conn.WithContext(ctx).Where("twitter_id = ?", twitterID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by twitter id: %s", err)
	}
	return &user, nil
}

func (db *PostgresDB) GetUserByWallet(ctx context.Context, address string) (*models.User, error) {
	var user models.User
	if err := db.Conn.WithContext(ctx).Where("wallet_address = ?", address).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by wallet: %s", err)
	}
	return &user, nil
}

func (db *PostgresDB) UpdateUser(ctx context.Context, user *models.User) error {
	if err := db.Conn.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user: %s", err)
	}
	return nil
}

// Transactions

func (db *PostgresDB) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	if err := db.Conn.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %s", err)
	}
	return nil
}

func (db *PostgresDB) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := db.Conn.WithContext(ctx).Where("id = ?", id).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Resource: "transaction", ID: id}
		}
		return nil, fmt.Errorf("failed to get transaction: %s", err)
	}
	return &tx, nil
}

func (db *PostgresDB) ListTransactionsByUser(ctx context.Context, userID string) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	if err := db.Conn.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %s", err)
	}
	return txs, nil
}

// UpdateTransactionStatus transitions a transaction out of the expected
// status in a single conditional statement. Zero rows affected means the
// row was not in the expected status (or does not exist); the distinction
// is resolved with a follow-up read so racing submitters get ConflictError.
func (db *PostgresDB) UpdateTransactionStatus(ctx context.Context, id string, from, to models.TransactionStatus, txHash *string) error {
	updates := map[string]interface{}{"status": to}
	if txHash != nil {
		updates["tx_hash"] = *txHash
	}
	res := db.Conn.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update transaction status: %s", res.Error)
	}
	if res.RowsAffected == 0 {
		var tx models.Transaction
		if err := db.Conn.WithContext(ctx).Where("id = ?", id).First(&tx).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &models.NotFoundError{Resource: "transaction", ID: id}
			}
			return fmt.Errorf("failed to update transaction status: %s", err)
		}
		return &models.ConflictError{Msg: fmt.Sprintf(
			"transaction %s is not %s (current status: %s)", id, from, tx.Status)}
	}
	return nil
}

// Pending tips

func (db *PostgresDB) CreatePendingTipPair(ctx context.Context, tip *models.PendingTip, tx *models.Transaction) error {
	if tip.ID == "" {
		tip.ID = uuid.NewString()
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now()
	if tip.CreatedAt.IsZero() {
		tip.CreatedAt = now
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tip.TransactionID = tx.ID
	err := db.Conn.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(tip).Error; err != nil {
			return err
		}
		return dbtx.Create(tx).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create pending tip pair: %s", err)
	}
	return nil
}

func (db *PostgresDB) ListPendingTipsByHandle(ctx context.Context, handle string) ([]*models.PendingTip, error) {
	var tips []*models.PendingTip
	if err := db.Conn.WithContext(ctx).
		Where("receiver_handle = ? AND status = ?", handle, models.PendingTipStatusPending).
		Order("created_at ASC").
		Find(&tips).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending tips: %s", err)
	}
	return tips, nil
}

func (db *PostgresDB) ReconcilePendingTip(ctx context.Context, tipID, receiverID string, at time.Time, txStatus models.TransactionStatus) error {
	err := db.Conn.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		var tip models.PendingTip
		if err := dbtx.Where("id = ?", tipID).First(&tip).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &models.NotFoundError{Resource: "pending tip", ID: tipID}
			}
			return err
		}

		res := dbtx.Model(&models.PendingTip{}).
			Where("id = ? AND status = ?", tipID, models.PendingTipStatusPending).
			Updates(map[string]interface{}{
				"status":        models.PendingTipStatusConfirmed,
				"receiver_id":   receiverID,
				"reconciled_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &models.ConflictError{Msg: fmt.Sprintf("pending tip %s is not pending", tipID)}
		}

		// The companion transaction moves with the tip. A companion that
		// already left pending means a submission raced the reconciliation;
		// roll the whole thing back so the tip stays pending.
		res = dbtx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", tip.TransactionID, models.TransactionStatusPending).
			Updates(map[string]interface{}{
				"status":      txStatus,
				"receiver_id": receiverID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &models.ConflictError{Msg: fmt.Sprintf(
				"transaction %s for pending tip %s is not pending", tip.TransactionID, tipID)}
		}
		return nil
	})
	if err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			return conflict
		}
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			return notFound
		}
		return fmt.Errorf("failed to reconcile pending tip: %s", err)
	}
	return nil
}

// Mentions

func (db *PostgresDB) GetMentionByExternalID(ctx context.Context, externalID string) (*models.Mention, error) {
	var mention models.Mention
	if err := db.Conn.WithContext(ctx).Where("external_id = ?", externalID).First(&mention).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mention: %s", err)
	}
	return &mention, nil
}

func (db *PostgresDB) CreateMention(ctx context.Context, mention *models.Mention) error {
	if mention.ID == "" {
		mention.ID = uuid.NewString()
	}
	if mention.CreatedAt.IsZero() {
		mention.CreatedAt = time.Now()
	}
	if err := db.Conn.WithContext(ctx).Create(mention).Error; err != nil {
		return fmt.Errorf("failed to create mention: %s", err)
	}
	return nil
}

func (db *PostgresDB) AttachMentionTransaction(ctx context.Context, externalID, transactionID string) error {
	if err := db.Conn.WithContext(ctx).
		Model(&models.Mention{}).
		Where("external_id = ?", externalID).
		Update("transaction_id", transactionID).Error; err != nil {
		return fmt.Errorf("failed to attach transaction to mention: %s", err)
	}
	return nil
}

func (db *PostgresDB) MarkMentionProcessed(ctx context.Context, externalID string) error {
	if err := db.Conn.WithContext(ctx).
		Model(&models.Mention{}).
		Where("external_id = ?", externalID).
		Update("processed", 1).Error; err != nil {
		return fmt.Errorf("failed to mark mention processed: %s", err)
	}
	return nil
}

func (db *PostgresDB) ListUnprocessedMentions(ctx context.Context, limit int) ([]*models.Mention, error) {
	var mentions []*models.Mention
	if err := db.Conn.WithContext(ctx).
		Where("processed = ?", 0).
		Order("created_at ASC").
		Limit(limit).
		Find(&mentions).Error; err != nil {
		return nil, fmt.Errorf("failed to list unprocessed mentions: %s", err)
	}
	return mentions, nil
}

// Bot state

func (db *PostgresDB) GetBotState(ctx context.Context) (*models.BotState, error) {
	var state models.BotState
	if err := db.Conn.WithContext(ctx).Where("id = ?", models.BotStateID).First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bot state: %s", err)
	}
	return &state, nil
}

func (db *PostgresDB) UpsertBotState(ctx context.Context, lastMentionID string) error {
	state := models.BotState{
		ID:            models.BotStateID,
		LastMentionID: lastMentionID,
		UpdatedAt:     time.Now(),
	}
	if err := db.Conn.WithContext(ctx).Save(&state).Error; err != nil {
		return fmt.Errorf("failed to upsert bot state: %s", err)
	}
	return nil
}
