package services

import (
	"context"
	"log/slog"
	"time"

	"financas/internal/core"
	applog "financas/internal/log"
	"financas/internal/storage"
)

// SyncPublisher emits a lightweight message for each committed transaction
// so the mirror worker can pick it up.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id int64) error
}

// LedgerService is the write path of the ledger: it commits into SQLite,
// purges the report cache and publishes mirror sync messages. Sync publish
// failures never fail the commit; the record is already durable locally.
type LedgerService struct {
	store     *storage.SQLiteRepository
	publisher SyncPublisher
	reports   *ReportService
	logger    *slog.Logger
}

func NewLedgerService(store *storage.SQLiteRepository, publisher SyncPublisher, reports *ReportService) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		reports:   reports,
		logger:    applog.ForComponent(applog.ComponentStorage),
	}
}

func (s *LedgerService) AddTransaction(ctx context.Context, kind core.Kind, category string, amount core.Money, description string) (int64, error) {
	id, err := s.store.AddTransaction(ctx, kind, category, amount, description)
	if err != nil {
		return 0, err
	}
	s.reports.Invalidate()
	s.publishSync(ctx, id)
	return id, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.reports.Invalidate()
	return nil
}

func (s *LedgerService) ListRecent(ctx context.Context, n int) ([]core.Transaction, error) {
	return s.store.ListRecent(ctx, n)
}

func (s *LedgerService) AddScheduled(ctx context.Context, category string, amount core.Money, dueDate time.Time, description string) (int64, error) {
	return s.store.AddScheduled(ctx, category, amount, dueDate, description)
}

func (s *LedgerService) ListScheduled(ctx context.Context, status *core.ScheduleStatus) ([]core.ScheduledExpense, error) {
	return s.store.ListScheduled(ctx, status)
}

func (s *LedgerService) MarkPaid(ctx context.Context, id int64) (int64, error) {
	txID, err := s.store.MarkPaid(ctx, id)
	if err != nil {
		return 0, err
	}
	s.reports.Invalidate()
	s.publishSync(ctx, txID)
	return txID, nil
}

func (s *LedgerService) DeleteScheduled(ctx context.Context, id int64) error {
	return s.store.DeleteScheduled(ctx, id)
}

func (s *LedgerService) publishSync(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, id); err != nil {
		// Don't fail the commit - the transaction is saved locally
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			applog.FieldID, id, applog.FieldError, err)
	}
}
