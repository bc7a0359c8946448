package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/mirror/memory"
	"financas/internal/storage"
)

type fakeGetter struct {
	transactions map[int64]core.Transaction
	err          error
}

func (f *fakeGetter) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	if f.err != nil {
		return core.Transaction{}, f.err
	}
	t, ok := f.transactions[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return t, nil
}

func TestHandleMirrorsTransaction(t *testing.T) {
	getter := &fakeGetter{transactions: map[int64]core.Transaction{
		7: {
			ID:          7,
			Kind:        core.Expense,
			Category:    "Rent",
			Amount:      core.Money{Cents: 90000},
			Description: "august",
			RecordedAt:  core.DateOnly(time.Now()),
		},
	}}
	store := memory.New()
	w := NewMirrorWorker(getter, store)

	if err := w.Handle(context.Background(), amqp.NewTransactionSyncMessage(7)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	items := store.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 mirrored item, got %d", len(items))
	}
	if items[0].ID != 7 || items[0].Category != "Rent" {
		t.Fatalf("mirrored transaction mismatch: %+v", items[0])
	}
}

func TestHandleDropsMissingTransaction(t *testing.T) {
	getter := &fakeGetter{transactions: map[int64]core.Transaction{}}
	store := memory.New()
	w := NewMirrorWorker(getter, store)

	if err := w.Handle(context.Background(), amqp.NewTransactionSyncMessage(99)); err != nil {
		t.Fatalf("missing transaction must be dropped, got error: %v", err)
	}
	if len(store.Items()) != 0 {
		t.Fatal("nothing should be mirrored for a missing transaction")
	}
}

func TestHandleReturnsStoreError(t *testing.T) {
	getter := &fakeGetter{err: errors.New("db locked")}
	w := NewMirrorWorker(getter, memory.New())

	if err := w.Handle(context.Background(), amqp.NewTransactionSyncMessage(1)); err == nil {
		t.Fatal("expected error to propagate for requeue")
	}
}
