// Package bot runs the mention ingestion worker: it polls the social feed
// for mentions of the bot, parses tip commands out of them and dispatches
// transfers, replying to each mention with the outcome.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/canhamzacode/tipjar/internal/metrics"
	"github.com/canhamzacode/tipjar/internal/models"
	"github.com/canhamzacode/tipjar/internal/parser"
	"github.com/canhamzacode/tipjar/internal/transfer"
	"github.com/canhamzacode/tipjar/pkg/logger"
)

// Config carries the worker's tunables.
type Config struct {
	// PollInterval is the time between poll cycles.
	PollInterval time.Duration
	// BatchSize bounds how many mentions one cycle fetches.
	BatchSize int
	// DryRun suppresses outbound replies while still recording transfers.
	DryRun bool
	// AppURL is the dashboard origin used in reply links.
	AppURL string
	// BotUsername is the bot's own handle, never a valid tip recipient.
	BotUsername string
}

// Worker polls mentions and turns them into transfers. Cycles never overlap:
// a mutex guards the whole cycle, so a slow cycle delays the next tick
// instead of running concurrently with it.
type Worker struct {
	cfg       Config
	repo      models.Repository
	feed      models.MentionFeed
	transfers *transfer.Service
	limiter   *RateLimiter
	logger    *logger.Logger
	metrics   *metrics.Metrics

	cycleMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorker creates a mention ingestion worker.
func NewWorker(cfg Config, repo models.Repository, feed models.MentionFeed, transfers *transfer.Service, limiter *RateLimiter, log *logger.Logger, m *metrics.Metrics) *Worker {
	return &Worker{
		cfg:       cfg,
		repo:      repo,
		feed:      feed,
		transfers: transfers,
		limiter:   limiter,
		logger:    log,
		metrics:   m,
	}
}

// Start launches the polling loop. It runs one cycle immediately, then one
// per PollInterval until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		w.RunCycle(ctx)

		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.RunCycle(ctx)
			case <-ctx.Done():
				w.logger.Info("mention worker stopped")
				return
			}
		}
	}()
}

// Stop cancels the polling loop and waits for the in-flight cycle to finish.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// RunCycle executes one poll cycle: retry previously claimed mentions, fetch
// new ones since the watermark, process them oldest first, then advance the
// watermark once for the whole batch. A fetch failure aborts the cycle
// without moving the watermark.
func (w *Worker) RunCycle(ctx context.Context) {
	w.cycleMu.Lock()
	defer w.cycleMu.Unlock()

	if w.limiter != nil && !w.limiter.Allow() {
		w.logger.Warn("rate limit reached, skipping poll cycle")
		return
	}

	w.retryUnprocessed(ctx)

	sinceID := ""
	if state, err := w.repo.GetBotState(ctx); err != nil {
		w.logger.Error("failed to load bot state: ", err)
		return
	} else if state != nil {
		sinceID = state.LastMentionID
	}

	events, err := w.feed.FetchSince(ctx, sinceID, w.cfg.BatchSize)
	if err != nil {
		w.logger.Error("failed to fetch mentions: ", err)
		if w.metrics != nil {
			w.metrics.Errors.WithLabelValues("feed").Inc()
		}
		return
	}
	if len(events) == 0 {
		return
	}

	// The feed returns newest first; the head is the next watermark.
	newestID := events[0].ID

	for i := len(events) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return
		}
		w.processEvent(ctx, events[i])
	}

	if err := w.repo.UpsertBotState(ctx, newestID); err != nil {
		w.logger.Error("failed to advance watermark: ", err)
	}
}

// retryUnprocessed re-runs mentions that were claimed but never finished,
// e.g. because the process crashed mid-handling. A claim that already
// carries a transaction id skips initiation, so the transfer is not
// duplicated; only replies may repeat.
func (w *Worker) retryUnprocessed(ctx context.Context) {
	stale, err := w.repo.ListUnprocessedMentions(ctx, w.cfg.BatchSize)
	if err != nil {
		w.logger.Error("failed to list unprocessed mentions: ", err)
		return
	}
	for _, m := range stale {
		w.logger.Info("retrying unprocessed mention ", m.ExternalID)
		if err := w.handleMention(ctx, m.ExternalID, "", m.AuthorHandle, m.Text); err != nil {
			w.logger.Error("retry failed for mention ", m.ExternalID, ": ", err)
		}
	}
}

func (w *Worker) processEvent(ctx context.Context, ev models.MentionEvent) {
	existing, err := w.repo.GetMentionByExternalID(ctx, ev.ID)
	if err != nil {
		w.logger.Error("failed to check mention ", ev.ID, ": ", err)
		return
	}
	if existing != nil {
		if w.metrics != nil {
			w.metrics.MentionsProcessed.WithLabelValues("duplicate").Inc()
		}
		return
	}

	// Claim before handling so a crash leaves a retryable record instead of
	// an invisible gap below the watermark.
	if err := w.repo.CreateMention(ctx, &models.Mention{
		ExternalID:   ev.ID,
		AuthorHandle: ev.AuthorHandle,
		Text:         ev.Text,
	}); err != nil {
		w.logger.Error("failed to claim mention ", ev.ID, ": ", err)
		return
	}

	if err := w.handleMention(ctx, ev.ID, ev.AuthorID, ev.AuthorHandle, ev.Text); err != nil {
		w.logger.Error("failed to handle mention ", ev.ID, ": ", err)
		if w.metrics != nil {
			w.metrics.MentionsProcessed.WithLabelValues("error").Inc()
		}
		return
	}
	if w.metrics != nil {
		w.metrics.MentionsProcessed.WithLabelValues("ok").Inc()
	}
}

// handleMention parses and dispatches a single mention, replies with the
// outcome and marks the mention processed. A transient dispatch failure
// returns an error and leaves the mention unprocessed so the sweep retries
// it.
func (w *Worker) handleMention(ctx context.Context, externalID, authorID, authorHandle, text string) error {
	// A retried claim that already produced a transfer only needs its
	// processed flag; initiating again would pay the tip twice.
	if claim, err := w.repo.GetMentionByExternalID(ctx, externalID); err != nil {
		return err
	} else if claim != nil && claim.TransactionID != "" {
		w.logger.Info("mention ", externalID, " already produced transaction ", claim.TransactionID)
		return w.repo.MarkMentionProcessed(ctx, externalID)
	}

	cmd := parser.Parse(text)
	if w.metrics != nil {
		w.metrics.CommandsParsed.WithLabelValues(string(cmd.Type)).Inc()
	}

	if cmd.Type == models.CommandTypeUnknown {
		w.reply(ctx, externalID, "help", fmt.Sprintf(
			"%s. Try: @%s send 5 HBAR @friend", cmd.Error, w.cfg.BotUsername))
		return w.repo.MarkMentionProcessed(ctx, externalID)
	}

	if cmd.Recipient == w.cfg.BotUsername {
		w.reply(ctx, externalID, "help", "Thanks, but I can't accept tips myself!")
		return w.repo.MarkMentionProcessed(ctx, externalID)
	}

	sender, err := w.resolveSender(ctx, authorID, authorHandle)
	if err != nil {
		return err
	}
	if sender == nil || !sender.Authenticated() {
		w.reply(ctx, externalID, "auth_required", fmt.Sprintf(
			"You need to link your account before sending tips. Get started at %s", w.cfg.AppURL))
		return w.repo.MarkMentionProcessed(ctx, externalID)
	}

	res, err := w.transfers.Initiate(ctx, models.TransferRequest{
		SenderID:       sender.ID,
		ReceiverHandle: cmd.Recipient,
		Amount:         cmd.Amount.String(),
		Token:          cmd.Currency,
		Note:           cmd.Note,
	})
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			w.reply(ctx, externalID, "rejected", verr.Msg)
			return w.repo.MarkMentionProcessed(ctx, externalID)
		}
		// Transient failure: leave the mention claimed but unprocessed.
		return fmt.Errorf("failed to initiate transfer: %s", err)
	}

	// Record the transfer on the claim so a retry after a crash finds it
	// instead of initiating a second one.
	if err := w.repo.AttachMentionTransaction(ctx, externalID, res.TransactionID); err != nil {
		w.logger.Error("failed to record transfer on mention ", externalID, ": ", err)
	}

	switch res.Type {
	case models.TransferPathDirect:
		w.reply(ctx, externalID, "direct", fmt.Sprintf(
			"Tip of %s %s to @%s is ready to sign: %s/transactions/%s",
			cmd.Amount.String(), cmd.Currency, cmd.Recipient, w.cfg.AppURL, res.TransactionID))
	case models.TransferPathPending:
		w.reply(ctx, externalID, "pending", fmt.Sprintf(
			"@%s hasn't connected a wallet yet, so your %s %s tip is waiting for them. They can claim it at %s",
			cmd.Recipient, cmd.Amount.String(), cmd.Currency, w.cfg.AppURL))
	}

	return w.repo.MarkMentionProcessed(ctx, externalID)
}

// resolveSender finds the mention author's user record, by platform id first
// and handle second.
func (w *Worker) resolveSender(ctx context.Context, authorID, authorHandle string) (*models.User, error) {
	if authorID != "" {
		user, err := w.repo.GetUserByTwitterID(ctx, authorID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}
	return w.repo.GetUserByHandle(ctx, authorHandle)
}

// reply posts a response to a mention unless replies are suppressed or rate
// limited. Reply failures are logged, never propagated: the tip itself has
// already been recorded.
func (w *Worker) reply(ctx context.Context, inReplyToID, kind, text string) {
	if w.cfg.DryRun {
		w.logger.Info("dry run, suppressed reply to ", inReplyToID, ": ", text)
		return
	}
	if w.limiter != nil && !w.limiter.Allow() {
		w.logger.Warn("rate limit reached, dropping reply to ", inReplyToID)
		return
	}
	if err := w.feed.Reply(ctx, text, inReplyToID); err != nil {
		w.logger.Error("failed to reply to ", inReplyToID, ": ", err)
		if w.metrics != nil {
			w.metrics.Errors.WithLabelValues("reply").Inc()
		}
		return
	}
	if w.metrics != nil {
		w.metrics.RepliesSent.WithLabelValues(kind).Inc()
	}
}
