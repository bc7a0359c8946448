package session

import (
	"context"
	"time"

	"financas/internal/core"
)

// Ports for the stores the state machine commits into.
type (
	// Ledger is the mutation and listing surface the flows need.
	Ledger interface {
		AddTransaction(ctx context.Context, kind core.Kind, category string, amount core.Money, description string) (int64, error)
		DeleteTransaction(ctx context.Context, id int64) error
		ListRecent(ctx context.Context, n int) ([]core.Transaction, error)
		AddScheduled(ctx context.Context, category string, amount core.Money, dueDate time.Time, description string) (int64, error)
		ListScheduled(ctx context.Context, status *core.ScheduleStatus) ([]core.ScheduledExpense, error)
		MarkPaid(ctx context.Context, id int64) (int64, error)
		DeleteScheduled(ctx context.Context, id int64) error
	}

	// Reporter produces the aggregated month summary for the report flow.
	Reporter interface {
		Report(ctx context.Context, period core.Period) (core.PeriodSummary, error)
	}
)
