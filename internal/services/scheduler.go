package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"financas/internal/core"
	"financas/internal/gateway"
	applog "financas/internal/log"
	"financas/internal/session"
)

// SchedulerStore is the read slice of the ledger the scheduler needs.
type SchedulerStore interface {
	ListDueOn(ctx context.Context, date time.Time) ([]core.ScheduledExpense, error)
	ListSubscribers(ctx context.Context) ([]int64, error)
}

// DueScheduler scans pending scheduled expenses falling due today and
// notifies every subscriber, once per calendar day. The first fire is
// anchored to the next occurrence of the configured wall-clock hour and
// repeats on a 24-hour interval, so a restart within the same day does not
// re-notify. It never transitions status itself; paying stays an explicit
// subject action.
type DueScheduler struct {
	store  SchedulerStore
	sender gateway.Sender
	hour   int
	now    func() time.Time
	logger *slog.Logger
}

func NewDueScheduler(store SchedulerStore, sender gateway.Sender, hour int) *DueScheduler {
	return &DueScheduler{
		store:  store,
		sender: sender,
		hour:   hour,
		now:    time.Now,
		logger: applog.ForComponent(applog.ComponentScheduler),
	}
}

// NextRun returns the next occurrence of the given wall-clock hour strictly
// after now.
func NextRun(now time.Time, hour int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// Run blocks until ctx is cancelled, firing once per day at the configured
// hour.
func (s *DueScheduler) Run(ctx context.Context) error {
	first := NextRun(s.now(), s.hour)
	s.logger.InfoContext(ctx, "Due-date scheduler armed",
		"first_run", first.Format(time.RFC3339))

	timer := time.NewTimer(time.Until(first))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			count, err := s.RunOnce(ctx, s.now())
			if err != nil {
				s.logger.ErrorContext(ctx, "Due-date scan failed", applog.FieldError, err)
			} else {
				s.logger.InfoContext(ctx, "Due-date scan complete",
					"notifications", count)
			}
			timer.Reset(24 * time.Hour)
		}
	}
}

// RunOnce performs one scan for the calendar date of now and returns how
// many notifications were delivered.
func (s *DueScheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	today := core.DateOnly(now)

	due, err := s.store.ListDueOn(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list due scheduled expenses: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	subscribers, err := s.store.ListSubscribers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list subscribers: %w", err)
	}

	text, choices := composeDueSummary(due)
	sent := 0
	for _, subjectID := range subscribers {
		err := s.sender.Send(ctx, gateway.Prompt{
			SubjectID: subjectID,
			Text:      text,
			Choices:   choices,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to notify subscriber",
				applog.FieldSubjectID, subjectID, applog.FieldError, err)
			continue
		}
		sent++
	}

	s.logger.InfoContext(ctx, "Due-date notifications delivered",
		"due_items", len(due), "subscribers", len(subscribers), "delivered", sent)

	return sent, nil
}

// composeDueSummary renders one message enumerating every item due today,
// with a pay token per item.
func composeDueSummary(due []core.ScheduledExpense) (string, []string) {
	var b strings.Builder
	b.WriteString("Expenses due today:\n")
	choices := make([]string, 0, len(due))
	for _, se := range due {
		fmt.Fprintf(&b, "#%d %s - %s", se.ID, se.Category, se.Amount.Format())
		if se.Description != "" {
			fmt.Fprintf(&b, " - %s", se.Description)
		}
		b.WriteString("\n")
		choices = append(choices, session.PayToken(se.ID))
	}
	b.WriteString("Mark an item as paid once settled.")
	return b.String(), choices
}
