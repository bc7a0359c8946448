// Package storage implements the durable ledger over SQLite: transactions,
// scheduled expenses and the notification subscriber set. All aggregation
// arithmetic lives here.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"financas/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is the sentinel for operations addressing an absent record,
// shared with the session layer through core.
var ErrNotFound = core.ErrNotFound

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AddTransaction commits a ledger entry with recorded_at set to today.
func (r *SQLiteRepository) AddTransaction(ctx context.Context, kind core.Kind, category string, amount core.Money, description string) (int64, error) {
	tx := core.Transaction{
		Kind:        kind,
		Category:    category,
		Amount:      amount,
		Description: description,
		RecordedAt:  core.DateOnly(r.now()),
	}
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (kind, category, amount_cents, description, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(tx.Kind), tx.Category, tx.Amount.Cents, tx.Description,
		tx.RecordedAt.Format(dateLayout))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"kind", tx.Kind,
		"category", tx.Category,
		"amount_cents", tx.Amount.Cents)

	return id, nil
}

// DeleteTransaction hard deletes a ledger entry. A missing id returns
// ErrNotFound so callers can report it; nothing else changes.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// GetTransaction loads one ledger entry by id.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, kind, category, amount_cents, description, recorded_at
		 FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListRecent returns up to n transactions, most recent first.
func (r *SQLiteRepository) ListRecent(ctx context.Context, n int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, category, amount_cents, description, recorded_at
		 FROM transactions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Aggregate sums income and expenses for the month; a period with no
// matching records yields zero totals.
func (r *SQLiteRepository) Aggregate(ctx context.Context, period core.Period) (core.PeriodSummary, error) {
	start, end := period.Bounds()
	summary := core.PeriodSummary{Period: period}

	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, COALESCE(SUM(amount_cents), 0)
		 FROM transactions
		 WHERE recorded_at >= ? AND recorded_at < ?
		 GROUP BY kind`,
		start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return summary, fmt.Errorf("aggregate period: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var cents int64
		if err := rows.Scan(&kind, &cents); err != nil {
			return summary, fmt.Errorf("scan aggregate row: %w", err)
		}
		switch core.Kind(kind) {
		case core.Income:
			summary.IncomeCents = cents
		case core.Expense:
			summary.ExpenseCents = cents
		}
	}
	return summary, rows.Err()
}

// AddScheduled creates a pending scheduled expense. The due date must not
// be earlier than today.
func (r *SQLiteRepository) AddScheduled(ctx context.Context, category string, amount core.Money, dueDate time.Time, description string) (int64, error) {
	se := core.ScheduledExpense{
		Category:    category,
		Amount:      amount,
		DueDate:     core.DateOnly(dueDate),
		Description: description,
		Status:      core.StatusPending,
	}
	if err := se.Validate(); err != nil {
		return 0, err
	}
	if se.DueDate.Before(core.DateOnly(r.now())) {
		return 0, core.ErrPastDueDate
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_expenses (category, amount_cents, due_date, description, status)
		 VALUES (?, ?, ?, ?, ?)`,
		se.Category, se.Amount.Cents, se.DueDate.Format(dateLayout),
		se.Description, string(se.Status))
	if err != nil {
		return 0, fmt.Errorf("insert scheduled expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("scheduled expense id: %w", err)
	}

	slog.InfoContext(ctx, "Scheduled expense saved",
		"id", id,
		"category", se.Category,
		"amount_cents", se.Amount.Cents,
		"due_date", se.DueDate.Format(dateLayout))

	return id, nil
}

// ListScheduled returns scheduled expenses ordered by due date, optionally
// filtered by status (nil means all).
func (r *SQLiteRepository) ListScheduled(ctx context.Context, status *core.ScheduleStatus) ([]core.ScheduledExpense, error) {
	query := `SELECT id, category, amount_cents, due_date, description, status
		  FROM scheduled_expenses`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY due_date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scheduled expenses: %w", err)
	}
	defer rows.Close()

	return scanScheduledRows(rows)
}

// ListDueOn returns pending scheduled expenses whose due date equals the
// given calendar date.
func (r *SQLiteRepository) ListDueOn(ctx context.Context, date time.Time) ([]core.ScheduledExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, amount_cents, due_date, description, status
		 FROM scheduled_expenses
		 WHERE status = ? AND due_date = ?
		 ORDER BY id`,
		string(core.StatusPending), core.DateOnly(date).Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list due scheduled expenses: %w", err)
	}
	defer rows.Close()

	return scanScheduledRows(rows)
}

// MarkPaid flips a pending scheduled expense to paid and inserts the
// matching expense transaction, both in one database transaction. A missing
// or already-paid id returns ErrNotFound and changes nothing.
func (r *SQLiteRepository) MarkPaid(ctx context.Context, id int64) (int64, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin mark paid: %w", err)
	}
	defer dbTx.Rollback()

	var (
		category    string
		amountCents int64
		description string
	)
	err = dbTx.QueryRowContext(ctx,
		`SELECT category, amount_cents, description
		 FROM scheduled_expenses WHERE id = ? AND status = ?`,
		id, string(core.StatusPending)).Scan(&category, &amountCents, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load scheduled expense: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx,
		`UPDATE scheduled_expenses SET status = ? WHERE id = ?`,
		string(core.StatusPaid), id); err != nil {
		return 0, fmt.Errorf("mark scheduled expense paid: %w", err)
	}

	res, err := dbTx.ExecContext(ctx,
		`INSERT INTO transactions (kind, category, amount_cents, description, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(core.Expense), category, amountCents, description,
		core.DateOnly(r.now()).Format(dateLayout))
	if err != nil {
		return 0, fmt.Errorf("insert paid transaction: %w", err)
	}
	txID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("paid transaction id: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit mark paid: %w", err)
	}

	slog.InfoContext(ctx, "Scheduled expense paid",
		"id", id,
		"transaction_id", txID,
		"category", category,
		"amount_cents", amountCents)

	return txID, nil
}

// DeleteScheduled hard deletes a scheduled expense with no transaction
// side effect.
func (r *SQLiteRepository) DeleteScheduled(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scheduled rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Scheduled expense deleted", "id", id)
	return nil
}

// AddSubscriber enrolls a subject for due-date notifications. Enrolling the
// same subject twice is a no-op.
func (r *SQLiteRepository) AddSubscriber(ctx context.Context, subjectID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscribers (subject_id) VALUES (?)`, subjectID); err != nil {
		return fmt.Errorf("add subscriber: %w", err)
	}
	return nil
}

// ListSubscribers returns every enrolled subject.
func (r *SQLiteRepository) ListSubscribers(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT subject_id FROM subscribers ORDER BY subject_id`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// IsSubscriber reports whether a subject is enrolled.
func (r *SQLiteRepository) IsSubscriber(ctx context.Context, subjectID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM subscribers WHERE subject_id = ?`, subjectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check subscriber: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t        core.Transaction
		kind     string
		recorded string
	)
	if err := row.Scan(&t.ID, &kind, &t.Category, &t.Amount.Cents, &t.Description, &recorded); err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	recordedAt, err := time.ParseInLocation(dateLayout, recorded, time.UTC)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse recorded_at: %w", err)
	}
	t.RecordedAt = recordedAt
	return t, nil
}

func scanScheduledRows(rows *sql.Rows) ([]core.ScheduledExpense, error) {
	var out []core.ScheduledExpense
	for rows.Next() {
		var (
			se     core.ScheduledExpense
			due    string
			status string
		)
		if err := rows.Scan(&se.ID, &se.Category, &se.Amount.Cents, &due, &se.Description, &status); err != nil {
			return nil, fmt.Errorf("scan scheduled expense: %w", err)
		}
		dueDate, err := time.ParseInLocation(dateLayout, due, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse due_date: %w", err)
		}
		se.DueDate = dueDate
		se.Status = core.ScheduleStatus(status)
		out = append(out, se)
	}
	return out, rows.Err()
}
