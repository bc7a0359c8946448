package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"financas/internal/core"
	"financas/internal/gateway"
)

const testSubject int64 = 1

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type txRecord struct {
	id          int64
	kind        core.Kind
	category    string
	amount      core.Money
	description string
}

type fakeLedger struct {
	nextID int64

	added     []txRecord
	scheduled []core.ScheduledExpense
	recent    []core.Transaction

	paid             []int64
	deleted          []int64
	deletedScheduled []int64

	addErr      error
	schedErr    error
	deleteErr   error
	markPaidErr error
	dropErr     error
}

func (f *fakeLedger) AddTransaction(_ context.Context, kind core.Kind, category string, amount core.Money, description string) (int64, error) {
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.nextID++
	f.added = append(f.added, txRecord{
		id: f.nextID, kind: kind, category: category, amount: amount, description: description,
	})
	return f.nextID, nil
}

func (f *fakeLedger) DeleteTransaction(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeLedger) ListRecent(_ context.Context, n int) ([]core.Transaction, error) {
	if n > len(f.recent) {
		n = len(f.recent)
	}
	return f.recent[:n], nil
}

func (f *fakeLedger) AddScheduled(_ context.Context, category string, amount core.Money, dueDate time.Time, description string) (int64, error) {
	if f.schedErr != nil {
		return 0, f.schedErr
	}
	f.nextID++
	f.scheduled = append(f.scheduled, core.ScheduledExpense{
		ID: f.nextID, Category: category, Amount: amount,
		DueDate: dueDate, Description: description, Status: core.StatusPending,
	})
	return f.nextID, nil
}

func (f *fakeLedger) ListScheduled(_ context.Context, status *core.ScheduleStatus) ([]core.ScheduledExpense, error) {
	var out []core.ScheduledExpense
	for _, se := range f.scheduled {
		if status == nil || se.Status == *status {
			out = append(out, se)
		}
	}
	return out, nil
}

func (f *fakeLedger) MarkPaid(_ context.Context, id int64) (int64, error) {
	if f.markPaidErr != nil {
		return 0, f.markPaidErr
	}
	f.paid = append(f.paid, id)
	return id + 100, nil
}

func (f *fakeLedger) DeleteScheduled(_ context.Context, id int64) error {
	if f.dropErr != nil {
		return f.dropErr
	}
	f.deletedScheduled = append(f.deletedScheduled, id)
	return nil
}

type fakeReporter struct {
	summary core.PeriodSummary
	err     error
}

func (f *fakeReporter) Report(_ context.Context, period core.Period) (core.PeriodSummary, error) {
	if f.err != nil {
		return core.PeriodSummary{}, f.err
	}
	f.summary.Period = period
	return f.summary, nil
}

type fakeGate struct {
	secret     string
	authorized map[int64]bool
}

func (f *fakeGate) IsAuthorized(_ context.Context, subjectID int64) (bool, error) {
	return f.authorized[subjectID], nil
}

func (f *fakeGate) Authorize(_ context.Context, subjectID int64) error {
	f.authorized[subjectID] = true
	return nil
}

func (f *fakeGate) Check(secret string) bool {
	return secret == f.secret
}

type recordingSender struct {
	prompts []gateway.Prompt
}

func (r *recordingSender) Send(_ context.Context, p gateway.Prompt) error {
	r.prompts = append(r.prompts, p)
	return nil
}

func (r *recordingSender) last() gateway.Prompt {
	if len(r.prompts) == 0 {
		return gateway.Prompt{}
	}
	return r.prompts[len(r.prompts)-1]
}

func newTestManager(ledger *fakeLedger, reporter *fakeReporter, sender *recordingSender) *Manager {
	gate := &fakeGate{secret: "hunter2", authorized: map[int64]bool{testSubject: true}}
	m := NewManager(ledger, reporter, gate, sender, core.DefaultCatalog())
	m.now = func() time.Time { return testNow }
	return m
}

func textEvent(text string) gateway.Event {
	return gateway.Event{SubjectID: testSubject, Text: text}
}

func selectEvent(token string) gateway.Event {
	return gateway.Event{SubjectID: testSubject, Token: token}
}

func mustHandle(t *testing.T, m *Manager, ev gateway.Event) {
	t.Helper()
	if err := m.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
}

// openMenu runs the first contact for the pre-authorized test subject,
// which lands on the menu.
func openMenu(t *testing.T, m *Manager, sender *recordingSender) {
	t.Helper()
	mustHandle(t, m, textEvent("hi"))
	if sender.last().Text != "Choose an option:" {
		t.Fatalf("expected menu, got %q", sender.last().Text)
	}
}

func TestGateFlow(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	gate := &fakeGate{secret: "hunter2", authorized: map[int64]bool{}}
	m := NewManager(ledger, &fakeReporter{}, gate, sender, core.DefaultCatalog())
	m.now = func() time.Time { return testNow }

	mustHandle(t, m, textEvent("hi"))
	if sender.last().Text != "Enter the access secret:" {
		t.Fatalf("first contact must ask for the secret, got %q", sender.last().Text)
	}

	mustHandle(t, m, textEvent("wrong"))
	if sender.last().Text != "Wrong secret. Try again:" {
		t.Fatalf("wrong secret must re-prompt, got %q", sender.last().Text)
	}
	if gate.authorized[testSubject] {
		t.Fatal("wrong secret must not authorize")
	}

	mustHandle(t, m, textEvent("hunter2"))
	if !gate.authorized[testSubject] {
		t.Fatal("correct secret must authorize")
	}
	if sender.last().Text != "Choose an option:" {
		t.Fatalf("expected menu after access granted, got %q", sender.last().Text)
	}

	// Once authorized the gate never asks again.
	mustHandle(t, m, selectEvent(TokenAddExpense))
	if !strings.Contains(sender.last().Text, "category") {
		t.Fatalf("authorized subject must reach the flows, got %q", sender.last().Text)
	}
}

func TestExpenseCaptureCommitsOnce(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenAddExpense))
	if sender.last().Text != "Choose the expense category:" {
		t.Fatalf("expected category prompt, got %q", sender.last().Text)
	}
	mustHandle(t, m, selectEvent("Food"))
	mustHandle(t, m, textEvent("150,50"))
	mustHandle(t, m, textEvent("lunch"))

	if len(ledger.added) != 1 {
		t.Fatalf("expected exactly one transaction, got %d", len(ledger.added))
	}
	got := ledger.added[0]
	if got.kind != core.Expense || got.category != "Food" || got.amount.Cents != 15050 || got.description != "lunch" {
		t.Fatalf("committed transaction mismatch: %+v", got)
	}
	if sender.last().Text != "Choose an option:" {
		t.Fatalf("expected menu after commit, got %q", sender.last().Text)
	}
}

func TestIncomeKindComesFromCatalog(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenAddIncome))
	mustHandle(t, m, selectEvent("Salary"))
	mustHandle(t, m, textEvent("2000"))
	mustHandle(t, m, textEvent("none"))

	if len(ledger.added) != 1 {
		t.Fatalf("expected one transaction, got %d", len(ledger.added))
	}
	got := ledger.added[0]
	if got.kind != core.Income {
		t.Fatalf("kind must come from the category table, got %s", got.kind)
	}
	if got.description != "" {
		t.Fatalf("sentinel description must normalize to empty, got %q", got.description)
	}
	if got.amount.Cents != 200000 {
		t.Fatalf("expected 200000 cents, got %d", got.amount.Cents)
	}
}

func TestScheduleCapture(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenScheduleExpense))
	mustHandle(t, m, selectEvent("Rent"))
	mustHandle(t, m, textEvent("900"))
	if sender.last().Text != "Enter the due date (DD/MM/YYYY):" {
		t.Fatalf("schedule flow must ask for a due date, got %q", sender.last().Text)
	}
	mustHandle(t, m, textEvent("15/03/2025"))
	mustHandle(t, m, textEvent("march rent"))

	if len(ledger.scheduled) != 1 {
		t.Fatalf("expected one scheduled expense, got %d", len(ledger.scheduled))
	}
	got := ledger.scheduled[0]
	want := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	if got.Category != "Rent" || got.Amount.Cents != 90000 || !got.DueDate.Equal(want) {
		t.Fatalf("scheduled expense mismatch: %+v", got)
	}
	if len(ledger.added) != 0 {
		t.Fatal("scheduling must not create a transaction")
	}
}

func TestCancelDiscardsEverything(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenAddExpense))
	mustHandle(t, m, selectEvent("Food"))
	mustHandle(t, m, textEvent("42"))
	mustHandle(t, m, selectEvent(TokenCancel))

	if len(ledger.added) != 0 || len(ledger.scheduled) != 0 {
		t.Fatal("cancel must not touch the store")
	}
	if sender.last().Text != "Choose an option:" {
		t.Fatalf("cancel must land on the menu, got %q", sender.last().Text)
	}

	// The session is clean: a fresh flow starts from scratch.
	mustHandle(t, m, selectEvent(TokenAddIncome))
	if sender.last().Text != "Choose the income category:" {
		t.Fatalf("expected a fresh category prompt, got %q", sender.last().Text)
	}
}

func TestBackStepsToPreviousPrompt(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenAddExpense))
	mustHandle(t, m, selectEvent("Food"))
	mustHandle(t, m, selectEvent(TokenBack))
	if sender.last().Text != "Choose the expense category:" {
		t.Fatalf("back from amount must re-ask the category, got %q", sender.last().Text)
	}

	// Re-pick and finish: the new category wins.
	mustHandle(t, m, selectEvent("Transport"))
	mustHandle(t, m, textEvent("10"))
	mustHandle(t, m, textEvent("bus"))

	if len(ledger.added) != 1 || ledger.added[0].category != "Transport" {
		t.Fatalf("expected one Transport transaction, got %+v", ledger.added)
	}
}

func TestBackFromDescriptionKeepsCategory(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenAddExpense))
	mustHandle(t, m, selectEvent("Food"))
	mustHandle(t, m, textEvent("5"))
	mustHandle(t, m, selectEvent(TokenBack))
	if sender.last().Text != "Enter the amount (e.g. 150.50):" {
		t.Fatalf("back from description must re-ask the amount, got %q", sender.last().Text)
	}

	mustHandle(t, m, textEvent("7"))
	mustHandle(t, m, textEvent("snack"))

	if len(ledger.added) != 1 {
		t.Fatalf("expected one transaction, got %d", len(ledger.added))
	}
	got := ledger.added[0]
	if got.category != "Food" || got.amount.Cents != 700 {
		t.Fatalf("earlier fields must survive back, got %+v", got)
	}
}

func TestBackFromFirstStepReturnsToMenu(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenAddExpense))
	mustHandle(t, m, selectEvent(TokenBack))
	if sender.last().Text != "Choose an option:" {
		t.Fatalf("back from the first step must show the menu, got %q", sender.last().Text)
	}
}

func TestInvalidInputsReprompt(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenAddExpense))

	mustHandle(t, m, textEvent("Holidays"))
	if sender.last().Text != "Choose the expense category:" {
		t.Fatalf("unknown category must re-prompt, got %q", sender.last().Text)
	}

	mustHandle(t, m, selectEvent("Food"))
	for _, bad := range []string{"abc", "0", "-5"} {
		mustHandle(t, m, textEvent(bad))
		if sender.last().Text != "Enter the amount (e.g. 150.50):" {
			t.Fatalf("amount %q must re-prompt, got %q", bad, sender.last().Text)
		}
	}

	// The flow still completes after the retries.
	mustHandle(t, m, textEvent("12.34"))
	mustHandle(t, m, textEvent("ok"))
	if len(ledger.added) != 1 || ledger.added[0].amount.Cents != 1234 {
		t.Fatalf("expected one 1234-cent transaction, got %+v", ledger.added)
	}
}

func TestDueDateValidation(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenScheduleExpense))
	mustHandle(t, m, selectEvent("Internet"))
	mustHandle(t, m, textEvent("49.90"))

	mustHandle(t, m, textEvent("2025-03-15"))
	if got := sender.prompts[len(sender.prompts)-2].Text; got != "Invalid date, use DD/MM/YYYY." {
		t.Fatalf("malformed date message mismatch: %q", got)
	}

	mustHandle(t, m, textEvent("01/03/2025"))
	if got := sender.prompts[len(sender.prompts)-2].Text; got != "The due date cannot be in the past." {
		t.Fatalf("past date message mismatch: %q", got)
	}

	// Today is allowed.
	mustHandle(t, m, textEvent("10/03/2025"))
	if sender.last().Text != "Enter a description (or \"none\"):" {
		t.Fatalf("a due date of today must advance, got %q", sender.last().Text)
	}
}

func TestReportFlow(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	reporter := &fakeReporter{summary: core.PeriodSummary{IncomeCents: 500000, ExpenseCents: 120050}}
	m := newTestManager(ledger, reporter, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenReport))
	mustHandle(t, m, textEvent("13/2025"))
	if got := sender.prompts[len(sender.prompts)-2].Text; got != "Invalid format, use MM/YYYY." {
		t.Fatalf("invalid period message mismatch: %q", got)
	}

	mustHandle(t, m, textEvent("03/2025"))
	report := sender.prompts[len(sender.prompts)-2].Text
	for _, want := range []string{"03/2025", "5000.00", "1200.50", "3799.50"} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q: %q", want, report)
		}
	}
	if sender.last().Text != "Choose an option:" {
		t.Fatalf("report must return to the menu, got %q", sender.last().Text)
	}
}

func TestScheduledListPayAndDrop(t *testing.T) {
	ledger := &fakeLedger{scheduled: []core.ScheduledExpense{
		{ID: 3, Category: "Rent", Amount: core.Money{Cents: 90000}, DueDate: testNow, Status: core.StatusPending},
		{ID: 4, Category: "Internet", Amount: core.Money{Cents: 4990}, DueDate: testNow, Status: core.StatusPending},
	}}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenListScheduled))
	list := sender.last()
	if !strings.Contains(list.Text, "Rent") || !strings.Contains(list.Text, "Internet") {
		t.Fatalf("list must show every pending item, got %q", list.Text)
	}

	mustHandle(t, m, selectEvent(PayToken(3)))
	if len(ledger.paid) != 1 || ledger.paid[0] != 3 {
		t.Fatalf("expected MarkPaid(3), got %v", ledger.paid)
	}
	if got := sender.prompts[len(sender.prompts)-2].Text; got != "Marked as paid and recorded as an expense." {
		t.Fatalf("pay confirmation mismatch: %q", got)
	}

	mustHandle(t, m, selectEvent(TokenListScheduled))
	mustHandle(t, m, selectEvent("drop:4"))
	if len(ledger.deletedScheduled) != 1 || ledger.deletedScheduled[0] != 4 {
		t.Fatalf("expected DeleteScheduled(4), got %v", ledger.deletedScheduled)
	}
}

func TestPayingTwiceReportsMissing(t *testing.T) {
	ledger := &fakeLedger{
		scheduled: []core.ScheduledExpense{
			{ID: 3, Category: "Rent", Amount: core.Money{Cents: 90000}, DueDate: testNow, Status: core.StatusPending},
		},
		markPaidErr: core.ErrNotFound,
	}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenListScheduled))
	mustHandle(t, m, selectEvent(PayToken(3)))
	if got := sender.prompts[len(sender.prompts)-2].Text; got != "That expense is already paid or missing." {
		t.Fatalf("expected missing-item message, got %q", got)
	}
}

func TestEmptyScheduledList(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenListScheduled))
	if got := sender.prompts[len(sender.prompts)-2].Text; got != "No scheduled expenses." {
		t.Fatalf("expected empty-list message, got %q", got)
	}
	if sender.last().Text != "Choose an option:" {
		t.Fatalf("empty list must return to the menu, got %q", sender.last().Text)
	}
}

func TestDeletionFlow(t *testing.T) {
	ledger := &fakeLedger{recent: []core.Transaction{
		{ID: 9, Kind: core.Expense, Category: "Food", Amount: core.Money{Cents: 700}, RecordedAt: testNow},
	}}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenDeleteRecent))
	if !strings.Contains(sender.last().Text, "Food") {
		t.Fatalf("deletion list must show recent transactions, got %q", sender.last().Text)
	}

	mustHandle(t, m, selectEvent("del:9"))
	if !strings.Contains(sender.last().Text, "Delete transaction #9?") {
		t.Fatalf("expected confirmation prompt, got %q", sender.last().Text)
	}
	if len(ledger.deleted) != 0 {
		t.Fatal("nothing may be deleted before confirmation")
	}

	mustHandle(t, m, selectEvent(TokenConfirm))
	if len(ledger.deleted) != 1 || ledger.deleted[0] != 9 {
		t.Fatalf("expected DeleteTransaction(9), got %v", ledger.deleted)
	}
	if got := sender.prompts[len(sender.prompts)-2].Text; got != "Transaction deleted." {
		t.Fatalf("deletion confirmation mismatch: %q", got)
	}
}

func TestDeletionOfMissingTransaction(t *testing.T) {
	ledger := &fakeLedger{
		recent:    []core.Transaction{{ID: 9, Kind: core.Expense, Category: "Food", Amount: core.Money{Cents: 700}, RecordedAt: testNow}},
		deleteErr: core.ErrNotFound,
	}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenDeleteRecent))
	mustHandle(t, m, selectEvent("del:9"))
	mustHandle(t, m, selectEvent(TokenConfirm))
	if got := sender.prompts[len(sender.prompts)-2].Text; got != "That transaction no longer exists." {
		t.Fatalf("expected missing-transaction message, got %q", got)
	}
}

func TestCommitFailureKeepsState(t *testing.T) {
	ledger := &fakeLedger{addErr: errors.New("db locked")}
	sender := &recordingSender{}
	m := newTestManager(ledger, &fakeReporter{}, sender)
	openMenu(t, m, sender)

	mustHandle(t, m, selectEvent(TokenAddExpense))
	mustHandle(t, m, selectEvent("Food"))
	mustHandle(t, m, textEvent("20"))
	mustHandle(t, m, textEvent("lunch"))
	if sender.last().Text != "Could not save the record, try again." {
		t.Fatalf("expected commit failure message, got %q", sender.last().Text)
	}

	// The store recovers and the same step can be retried.
	ledger.addErr = nil
	mustHandle(t, m, textEvent("lunch"))
	if len(ledger.added) != 1 {
		t.Fatalf("expected the retry to commit once, got %d", len(ledger.added))
	}
	if ledger.added[0].category != "Food" || ledger.added[0].amount.Cents != 2000 {
		t.Fatalf("retried commit mismatch: %+v", ledger.added[0])
	}
}

func TestSubjectsAreIsolated(t *testing.T) {
	ledger := &fakeLedger{}
	sender := &recordingSender{}
	gate := &fakeGate{secret: "hunter2", authorized: map[int64]bool{1: true, 2: true}}
	m := NewManager(ledger, &fakeReporter{}, gate, sender, core.DefaultCatalog())
	m.now = func() time.Time { return testNow }

	mustHandle(t, m, gateway.Event{SubjectID: 1, Text: "hi"})
	mustHandle(t, m, gateway.Event{SubjectID: 1, Token: TokenAddExpense})
	mustHandle(t, m, gateway.Event{SubjectID: 1, Token: "Food"})

	// Subject 2 starts fresh, unaffected by subject 1's flow.
	mustHandle(t, m, gateway.Event{SubjectID: 2, Text: "hi"})
	if sender.last().Text != "Choose an option:" {
		t.Fatalf("second subject must get its own menu, got %q", sender.last().Text)
	}

	// Subject 1 is still mid-flow.
	mustHandle(t, m, gateway.Event{SubjectID: 1, Text: "30"})
	mustHandle(t, m, gateway.Event{SubjectID: 1, Text: "dinner"})
	if len(ledger.added) != 1 || ledger.added[0].category != "Food" {
		t.Fatalf("subject 1's flow must survive interleaving, got %+v", ledger.added)
	}
}
