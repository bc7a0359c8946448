package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"financas/internal/core"
	"financas/internal/gateway"
	applog "financas/internal/log"
)

// recentLimit caps how many transactions the deletion flow offers.
const recentLimit = 5

// Manager owns every subject's session and routes inbound events through
// the state machine. Sessions are created on first event and reset on
// cancel or commit; they are never persisted.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*sessionEntry

	ledger  Ledger
	reports Reporter
	gate    gateway.Gate
	sender  gateway.Sender
	catalog core.Catalog
	now     func() time.Time
	logger  *slog.Logger
}

type sessionEntry struct {
	Session
	gatePrompted bool
}

func NewManager(ledger Ledger, reports Reporter, gate gateway.Gate, sender gateway.Sender, catalog core.Catalog) *Manager {
	return &Manager{
		sessions: make(map[int64]*sessionEntry),
		ledger:   ledger,
		reports:  reports,
		gate:     gate,
		sender:   sender,
		catalog:  catalog,
		now:      time.Now,
		logger:   applog.ForComponent(applog.ComponentSession),
	}
}

func (m *Manager) session(subjectID int64) *sessionEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[subjectID]
	if !ok {
		s = &sessionEntry{Session: Session{SubjectID: subjectID, State: StateGate}}
		m.sessions[subjectID] = s
	}
	return s
}

// Handle routes one inbound event through the subject's state machine.
// Validation problems never surface as errors: they re-issue the current
// prompt. The returned error is reserved for transport failures.
func (m *Manager) Handle(ctx context.Context, ev gateway.Event) error {
	s := m.session(ev.SubjectID)
	s.mu.Lock()
	defer s.mu.Unlock()

	m.logger.DebugContext(ctx, "Handling event",
		applog.FieldSubjectID, ev.SubjectID,
		applog.FieldState, s.State.String())

	if s.State == StateGate {
		return m.handleGate(ctx, s, ev)
	}

	input := strings.TrimSpace(ev.Input())

	// Cancel works from every non-idle state with no store mutation.
	if input == TokenCancel && s.State != StateIdle {
		s.reset()
		if err := m.send(ctx, textPrompt(s.SubjectID, "Operation cancelled.")); err != nil {
			return err
		}
		return m.showMenu(ctx, s)
	}
	if input == TokenBack {
		return m.goBack(ctx, s)
	}

	switch s.State {
	case StateIdle:
		return m.showMenu(ctx, s)
	case StateSelectingFlow:
		return m.handleSelectingFlow(ctx, s, input)
	case StateAwaitingCategory:
		return m.handleCategory(ctx, s, input)
	case StateAwaitingAmount:
		return m.handleAmount(ctx, s, input)
	case StateAwaitingDueDate:
		return m.handleDueDate(ctx, s, input)
	case StateAwaitingDescription:
		return m.handleDescription(ctx, s, ev.Input())
	case StateAwaitingPeriod:
		return m.handlePeriod(ctx, s, input)
	case StateSelectingScheduled:
		return m.handleSelectingScheduled(ctx, s, input)
	case StateSelectingForDeletion:
		return m.handleSelectingForDeletion(ctx, s, input)
	case StateConfirmingDeletion:
		return m.handleConfirmingDeletion(ctx, s, input)
	}
	return m.showMenu(ctx, s)
}

func (m *Manager) handleGate(ctx context.Context, s *sessionEntry, ev gateway.Event) error {
	authorized, err := m.gate.IsAuthorized(ctx, s.SubjectID)
	if err != nil {
		m.logger.ErrorContext(ctx, "Authorization check failed",
			applog.FieldSubjectID, s.SubjectID, applog.FieldError, err)
		return m.send(ctx, textPrompt(s.SubjectID, "Something went wrong, try again."))
	}
	if authorized {
		s.reset()
		return m.showMenu(ctx, s)
	}

	if !s.gatePrompted {
		s.gatePrompted = true
		return m.send(ctx, gatePrompt(s.SubjectID))
	}

	if !m.gate.Check(strings.TrimSpace(ev.Input())) {
		return m.send(ctx, textPrompt(s.SubjectID, "Wrong secret. Try again:"))
	}
	if err := m.gate.Authorize(ctx, s.SubjectID); err != nil {
		m.logger.ErrorContext(ctx, "Authorization failed",
			applog.FieldSubjectID, s.SubjectID, applog.FieldError, err)
		return m.send(ctx, textPrompt(s.SubjectID, "Something went wrong, try again."))
	}
	m.logger.InfoContext(ctx, "Subject authorized", applog.FieldSubjectID, s.SubjectID)
	s.reset()
	if err := m.send(ctx, textPrompt(s.SubjectID, "Access granted.")); err != nil {
		return err
	}
	return m.showMenu(ctx, s)
}

func (m *Manager) handleSelectingFlow(ctx context.Context, s *sessionEntry, input string) error {
	switch input {
	case TokenAddIncome:
		return m.startCapture(ctx, s, FlowIncome)
	case TokenAddExpense:
		return m.startCapture(ctx, s, FlowExpense)
	case TokenScheduleExpense:
		return m.startCapture(ctx, s, FlowSchedule)
	case TokenReport:
		s.State = StateAwaitingPeriod
		return m.send(ctx, periodPrompt(s.SubjectID))
	case TokenListScheduled:
		return m.enterScheduledList(ctx, s)
	case TokenDeleteRecent:
		return m.enterDeletionList(ctx, s)
	}
	if err := m.send(ctx, textPrompt(s.SubjectID, "Choose a valid option.")); err != nil {
		return err
	}
	return m.showMenu(ctx, s)
}

func (m *Manager) startCapture(ctx context.Context, s *sessionEntry, flow Flow) error {
	s.Flow = flow
	s.Pending = PendingFields{}
	s.State = StateAwaitingCategory
	return m.send(ctx, categoryPrompt(s.SubjectID, flow.Kind(), m.catalog))
}

func (m *Manager) handleCategory(ctx context.Context, s *sessionEntry, input string) error {
	if !m.catalog.Has(s.Flow.Kind(), input) {
		if err := m.send(ctx, textPrompt(s.SubjectID, "Invalid category.")); err != nil {
			return err
		}
		return m.send(ctx, categoryPrompt(s.SubjectID, s.Flow.Kind(), m.catalog))
	}
	s.Pending.Category = input
	s.State = StateAwaitingAmount
	return m.send(ctx, amountPrompt(s.SubjectID))
}

func (m *Manager) handleAmount(ctx context.Context, s *sessionEntry, input string) error {
	cents, err := core.ParseDecimalToCents(input)
	if err != nil {
		if err := m.send(ctx, textPrompt(s.SubjectID, "Invalid amount, enter a positive number.")); err != nil {
			return err
		}
		return m.send(ctx, amountPrompt(s.SubjectID))
	}
	s.Pending.Amount = core.Money{Cents: cents}
	if s.Flow == FlowSchedule {
		s.State = StateAwaitingDueDate
		return m.send(ctx, dueDatePrompt(s.SubjectID))
	}
	s.State = StateAwaitingDescription
	return m.send(ctx, descriptionPrompt(s.SubjectID))
}

func (m *Manager) handleDueDate(ctx context.Context, s *sessionEntry, input string) error {
	due, err := core.ParseDueDate(input, m.now())
	if err != nil {
		msg := "Invalid date, use DD/MM/YYYY."
		if errors.Is(err, core.ErrPastDueDate) {
			msg = "The due date cannot be in the past."
		}
		if err := m.send(ctx, textPrompt(s.SubjectID, msg)); err != nil {
			return err
		}
		return m.send(ctx, dueDatePrompt(s.SubjectID))
	}
	s.Pending.DueDate = due
	s.State = StateAwaitingDescription
	return m.send(ctx, descriptionPrompt(s.SubjectID))
}

// handleDescription is the terminal step of every capture flow: it commits
// the collected fields as one atomic store call. On store failure the
// session stays here so the subject can retry.
func (m *Manager) handleDescription(ctx context.Context, s *sessionEntry, input string) error {
	desc := normalizeDescription(input)

	if s.Flow == FlowSchedule {
		id, err := m.ledger.AddScheduled(ctx, s.Pending.Category, s.Pending.Amount, s.Pending.DueDate, desc)
		if errors.Is(err, core.ErrPastDueDate) {
			// The day rolled over since the due date was entered
			s.State = StateAwaitingDueDate
			if err := m.send(ctx, textPrompt(s.SubjectID, "The due date has passed, enter a new one.")); err != nil {
				return err
			}
			return m.send(ctx, dueDatePrompt(s.SubjectID))
		}
		if err != nil {
			return m.commitFailed(ctx, s, err)
		}
		m.logger.InfoContext(ctx, "Scheduled expense captured",
			applog.FieldSubjectID, s.SubjectID,
			applog.FieldID, id,
			applog.FieldCategory, s.Pending.Category,
			applog.FieldAmountCents, s.Pending.Amount.Cents)
		confirmation := fmt.Sprintf("Scheduled: %s %s due %s",
			s.Pending.Category, s.Pending.Amount.Format(), s.Pending.DueDate.Format("02/01/2006"))
		return m.finishFlow(ctx, s, confirmation)
	}

	kind, ok := m.catalog.KindOf(s.Pending.Category)
	if !ok {
		// Catalog changed under the session; start the capture over
		return m.startCapture(ctx, s, s.Flow)
	}
	id, err := m.ledger.AddTransaction(ctx, kind, s.Pending.Category, s.Pending.Amount, desc)
	if err != nil {
		return m.commitFailed(ctx, s, err)
	}
	m.logger.InfoContext(ctx, "Transaction captured",
		applog.FieldSubjectID, s.SubjectID,
		applog.FieldID, id,
		applog.FieldKind, kind,
		applog.FieldCategory, s.Pending.Category,
		applog.FieldAmountCents, s.Pending.Amount.Cents)
	confirmation := fmt.Sprintf("Saved: %s %s", s.Pending.Category, s.Pending.Amount.Format())
	return m.finishFlow(ctx, s, confirmation)
}

func (m *Manager) handlePeriod(ctx context.Context, s *sessionEntry, input string) error {
	period, err := core.ParsePeriod(input)
	if err != nil {
		if err := m.send(ctx, textPrompt(s.SubjectID, "Invalid format, use MM/YYYY.")); err != nil {
			return err
		}
		return m.send(ctx, periodPrompt(s.SubjectID))
	}
	summary, err := m.reports.Report(ctx, period)
	if err != nil {
		m.logger.ErrorContext(ctx, "Report failed",
			applog.FieldSubjectID, s.SubjectID,
			applog.FieldPeriod, period.String(),
			applog.FieldError, err)
		return m.send(ctx, textPrompt(s.SubjectID, "Could not build the report, try again."))
	}
	if err := m.send(ctx, textPrompt(s.SubjectID, reportText(summary))); err != nil {
		return err
	}
	s.reset()
	return m.showMenu(ctx, s)
}

func (m *Manager) enterScheduledList(ctx context.Context, s *sessionEntry) error {
	pending := core.StatusPending
	items, err := m.ledger.ListScheduled(ctx, &pending)
	if err != nil {
		m.logger.ErrorContext(ctx, "List scheduled failed",
			applog.FieldSubjectID, s.SubjectID, applog.FieldError, err)
		return m.send(ctx, textPrompt(s.SubjectID, "Could not load scheduled expenses, try again."))
	}
	if len(items) == 0 {
		if err := m.send(ctx, textPrompt(s.SubjectID, "No scheduled expenses.")); err != nil {
			return err
		}
		return m.showMenu(ctx, s)
	}
	s.State = StateSelectingScheduled
	return m.send(ctx, scheduledListPrompt(s.SubjectID, items))
}

func (m *Manager) handleSelectingScheduled(ctx context.Context, s *sessionEntry, input string) error {
	if id, ok := parseIDToken(input, tokenPayPrefix); ok {
		txID, err := m.ledger.MarkPaid(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			if err := m.send(ctx, textPrompt(s.SubjectID, "That expense is already paid or missing.")); err != nil {
				return err
			}
			return m.enterScheduledList(ctx, s)
		}
		if err != nil {
			return m.commitFailed(ctx, s, err)
		}
		m.logger.InfoContext(ctx, "Scheduled expense paid",
			applog.FieldSubjectID, s.SubjectID,
			applog.FieldID, id, "transaction_id", txID)
		return m.finishFlow(ctx, s, "Marked as paid and recorded as an expense.")
	}
	if id, ok := parseIDToken(input, tokenDropPrefix); ok {
		err := m.ledger.DeleteScheduled(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			if err := m.send(ctx, textPrompt(s.SubjectID, "That scheduled expense no longer exists.")); err != nil {
				return err
			}
			return m.enterScheduledList(ctx, s)
		}
		if err != nil {
			return m.commitFailed(ctx, s, err)
		}
		return m.finishFlow(ctx, s, "Scheduled expense removed.")
	}
	return m.enterScheduledList(ctx, s)
}

func (m *Manager) enterDeletionList(ctx context.Context, s *sessionEntry) error {
	items, err := m.ledger.ListRecent(ctx, recentLimit)
	if err != nil {
		m.logger.ErrorContext(ctx, "List recent failed",
			applog.FieldSubjectID, s.SubjectID, applog.FieldError, err)
		return m.send(ctx, textPrompt(s.SubjectID, "Could not load transactions, try again."))
	}
	if len(items) == 0 {
		if err := m.send(ctx, textPrompt(s.SubjectID, "No transactions yet.")); err != nil {
			return err
		}
		return m.showMenu(ctx, s)
	}
	s.State = StateSelectingForDeletion
	return m.send(ctx, recentListPrompt(s.SubjectID, items))
}

func (m *Manager) handleSelectingForDeletion(ctx context.Context, s *sessionEntry, input string) error {
	id, ok := parseIDToken(input, tokenDelPrefix)
	if !ok {
		return m.enterDeletionList(ctx, s)
	}
	s.Pending.DeleteID = id
	s.State = StateConfirmingDeletion
	return m.send(ctx, gateway.Prompt{
		SubjectID: s.SubjectID,
		Text:      fmt.Sprintf("Delete transaction #%d? This cannot be undone.", id),
		Choices:   append([]string{TokenConfirm}, navChoices...),
	})
}

func (m *Manager) handleConfirmingDeletion(ctx context.Context, s *sessionEntry, input string) error {
	if input != TokenConfirm {
		return m.send(ctx, gateway.Prompt{
			SubjectID: s.SubjectID,
			Text:      fmt.Sprintf("Delete transaction #%d? This cannot be undone.", s.Pending.DeleteID),
			Choices:   append([]string{TokenConfirm}, navChoices...),
		})
	}
	err := m.ledger.DeleteTransaction(ctx, s.Pending.DeleteID)
	if errors.Is(err, core.ErrNotFound) {
		return m.finishFlow(ctx, s, "That transaction no longer exists.")
	}
	if err != nil {
		return m.commitFailed(ctx, s, err)
	}
	return m.finishFlow(ctx, s, "Transaction deleted.")
}

func (m *Manager) goBack(ctx context.Context, s *sessionEntry) error {
	switch s.State {
	case StateAwaitingAmount:
		s.State = StateAwaitingCategory
		return m.send(ctx, categoryPrompt(s.SubjectID, s.Flow.Kind(), m.catalog))
	case StateAwaitingDueDate:
		s.State = StateAwaitingAmount
		return m.send(ctx, amountPrompt(s.SubjectID))
	case StateAwaitingDescription:
		if s.Flow == FlowSchedule {
			s.State = StateAwaitingDueDate
			return m.send(ctx, dueDatePrompt(s.SubjectID))
		}
		s.State = StateAwaitingAmount
		return m.send(ctx, amountPrompt(s.SubjectID))
	case StateConfirmingDeletion:
		return m.enterDeletionList(ctx, s)
	}
	// First step of a flow, or the menu itself
	return m.showMenu(ctx, s)
}

// finishFlow sends the confirmation, discards the session's pending state
// and re-offers the menu.
func (m *Manager) finishFlow(ctx context.Context, s *sessionEntry, confirmation string) error {
	if err := m.send(ctx, textPrompt(s.SubjectID, confirmation)); err != nil {
		return err
	}
	s.reset()
	return m.showMenu(ctx, s)
}

// commitFailed surfaces a store failure without moving the session, so the
// same input can be retried.
func (m *Manager) commitFailed(ctx context.Context, s *sessionEntry, err error) error {
	m.logger.ErrorContext(ctx, "Store operation failed",
		applog.FieldSubjectID, s.SubjectID,
		applog.FieldState, s.State.String(),
		applog.FieldError, err)
	return m.send(ctx, textPrompt(s.SubjectID, "Could not save the record, try again."))
}

func (m *Manager) showMenu(ctx context.Context, s *sessionEntry) error {
	s.State = StateSelectingFlow
	return m.send(ctx, menuPrompt(s.SubjectID))
}

func (m *Manager) send(ctx context.Context, p gateway.Prompt) error {
	if err := m.sender.Send(ctx, p); err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}
	return nil
}

func parseIDToken(input, prefix string) (int64, bool) {
	if !strings.HasPrefix(input, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(input, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
