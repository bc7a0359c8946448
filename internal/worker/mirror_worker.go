package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/mirror"
	"financas/internal/storage"
)

// TransactionGetter loads one committed ledger entry by id.
type TransactionGetter interface {
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
}

// MirrorWorker copies committed transactions into an external mirror.
// It consumes sync messages carrying only the transaction id and reads
// the full row from the store, so the mirror always reflects what was
// actually committed.
type MirrorWorker struct {
	store  TransactionGetter
	mirror mirror.Appender
	logger *slog.Logger
}

func NewMirrorWorker(store TransactionGetter, appender mirror.Appender) *MirrorWorker {
	return &MirrorWorker{
		store:  store,
		mirror: appender,
		logger: log.ForComponent(log.ComponentMirror),
	}
}

// Handle processes one sync message. A transaction that no longer
// exists is dropped: it was deleted before the mirror caught up, and
// requeueing would loop forever.
func (w *MirrorWorker) Handle(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	t, err := w.store.GetTransaction(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.Warn("transaction gone before mirroring, dropping",
			log.FieldID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction %d: %w", msg.ID, err)
	}

	ref, err := w.mirror.Append(ctx, t)
	if err != nil {
		return fmt.Errorf("mirror transaction %d: %w", msg.ID, err)
	}

	w.logger.Info("transaction mirrored",
		log.FieldID, msg.ID,
		"row_ref", ref)
	return nil
}
