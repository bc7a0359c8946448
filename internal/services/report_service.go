// Package services holds the orchestration layer between the session
// machine, the store and the messaging boundary: ledger commits with mirror
// sync, cached period reports, and the due-date scheduler.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"financas/internal/cache"
	"financas/internal/core"
	applog "financas/internal/log"
)

// AggregateStore is the read slice of the ledger the report service needs.
type AggregateStore interface {
	Aggregate(ctx context.Context, period core.Period) (core.PeriodSummary, error)
}

// ReportService serves period summaries through a short-lived cache. Every
// ledger write goes through LedgerService, which purges the cache, so a hit
// never shows a stale committed record.
type ReportService struct {
	store  AggregateStore
	cache  *cache.TTLCache[core.PeriodSummary]
	logger *slog.Logger
}

const reportCacheTTL = 5 * time.Minute

func NewReportService(store AggregateStore) *ReportService {
	return &ReportService{
		store:  store,
		cache:  cache.NewTTLCache[core.PeriodSummary](reportCacheTTL),
		logger: applog.ForComponent(applog.ComponentReports),
	}
}

func (s *ReportService) Report(ctx context.Context, period core.Period) (core.PeriodSummary, error) {
	key := period.String()
	if summary, ok := s.cache.Get(key); ok {
		s.logger.DebugContext(ctx, "Report cache hit", applog.FieldPeriod, key)
		return summary, nil
	}

	summary, err := s.store.Aggregate(ctx, period)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("aggregate period: %w", err)
	}
	s.cache.Set(key, summary)
	return summary, nil
}

// Invalidate drops every cached summary. Called after each ledger write.
func (s *ReportService) Invalidate() {
	s.cache.Purge()
}
