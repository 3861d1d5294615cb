package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerkraft/bookkeeping/internal/events"
	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/internal/queue"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
	"github.com/ledgerkraft/bookkeeping/pkg/prom"
)

const (
	OutcomeApplied   = "applied"
	OutcomeStale     = "stale"
	OutcomeDuplicate = "duplicate"
	OutcomeExhausted = "exhausted"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

type LastDownloadStore interface {
	TouchLastDownload(ctx context.Context, accountID int64, at time.Time) (bool, error)
}

// ImportEventProcessor records the newest import time per account.
type ImportEventProcessor struct {
	accounts    LastDownloadStore
	idempotency *IdempotencyService
}

func NewImportEventProcessor(accounts LastDownloadStore, idempotency *IdempotencyService) *ImportEventProcessor {
	return &ImportEventProcessor{
		accounts:    accounts,
		idempotency: idempotency,
	}
}

func (p *ImportEventProcessor) GetType() string {
	return events.EventTypeImport
}

// Process returns an error only when a redelivery can succeed. Malformed,
// duplicate and exhausted events are acked with nil.
func (p *ImportEventProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var ev model.ImportEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		prom.IncImportEvent(OutcomeInvalid)
		logger.Error("undecodable import event dropped", "message_id", msg.ID, "error", err)
		return nil
	}
	if ev.ID == "" || ev.AccountID <= 0 || ev.OccurredAt.IsZero() {
		prom.IncImportEvent(OutcomeInvalid)
		logger.Error("incomplete import event dropped", "message_id", msg.ID, "event_id", ev.ID, "account_id", ev.AccountID)
		return nil
	}

	pc, err := p.idempotency.Acquire(ctx, ev.ID)
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		prom.IncImportEvent(OutcomeDuplicate)
		return nil
	case errors.Is(err, ErrMaxRetriesExceeded):
		prom.IncImportEvent(OutcomeExhausted)
		return nil
	case err != nil:
		return err
	}

	updated, err := p.accounts.TouchLastDownload(ctx, ev.AccountID, ev.OccurredAt)
	if err != nil {
		prom.IncImportEvent(OutcomeFailed)
		_ = p.idempotency.MarkFailure(ctx, pc, err)
		return fmt.Errorf("touch last download of account %d: %w", ev.AccountID, err)
	}

	if err := p.idempotency.MarkSuccess(ctx, pc); err != nil {
		// TouchLastDownload only moves forward, a repeat is harmless
		logger.Warn("processed marker not stored", "event_id", ev.ID, "error", err)
	}

	outcome := OutcomeApplied
	if !updated {
		outcome = OutcomeStale
	}
	prom.IncImportEvent(outcome)
	logger.Info("import event processed",
		"event_id", ev.ID,
		"account_id", ev.AccountID,
		"transactions", len(ev.TransactionIDs),
		"corrected", ev.Corrected,
		"outcome", outcome)
	return nil
}
