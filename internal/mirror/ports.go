package mirror

import (
	"context"

	"financas/internal/core"
)

// Appender copies committed ledger entries into an external mirror
// (a spreadsheet in production, an in-memory store in tests). It
// returns a backend-specific reference to the written row.
type Appender interface {
	Append(ctx context.Context, t core.Transaction) (string, error)
}
