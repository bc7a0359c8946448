package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	StatusPending ScheduleStatus = "pending"
	StatusPaid    ScheduleStatus = "paid"
)

type (
	// Kind distinguishes money coming in from money going out.
	Kind string

	// ScheduleStatus tracks whether a scheduled expense has been paid.
	ScheduleStatus string

	Money struct {
		Cents int64
	}

	// Transaction is a committed ledger entry. Immutable once created
	// except by hard delete.
	Transaction struct {
		ID          int64
		Kind        Kind
		Category    string
		Amount      Money
		Description string
		RecordedAt  time.Time // calendar date, midnight UTC
	}

	// ScheduledExpense is a future expense obligation. Marking it paid
	// produces exactly one expense Transaction with the same fields.
	ScheduledExpense struct {
		ID          int64
		Category    string
		Amount      Money
		DueDate     time.Time // calendar date, midnight UTC
		Description string
		Status      ScheduleStatus
	}

	// PeriodSummary holds the aggregation result for one month.
	PeriodSummary struct {
		Period       Period
		IncomeCents  int64
		ExpenseCents int64
	}
)

var (
	// ErrNotFound reports an operation addressing an absent record, or a
	// scheduled expense that is no longer pending.
	ErrNotFound = errors.New("record not found")

	ErrInvalidAmount   = errors.New("invalid amount")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidDate     = errors.New("invalid date")
	ErrPastDueDate     = errors.New("due date is in the past")
	ErrInvalidPeriod   = errors.New("invalid period")
)

// BalanceCents is income minus expenses for the period.
func (s PeriodSummary) BalanceCents() int64 {
	return s.IncomeCents - s.ExpenseCents
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return errors.New("invalid kind")
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrUnknownCategory
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.RecordedAt.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (se ScheduledExpense) Validate() error {
	if strings.TrimSpace(se.Category) == "" {
		return ErrUnknownCategory
	}
	if err := se.Amount.Validate(); err != nil {
		return err
	}
	if se.DueDate.IsZero() {
		return ErrInvalidDate
	}
	switch se.Status {
	case StatusPending, StatusPaid:
	default:
		return errors.New("invalid status")
	}
	return nil
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
