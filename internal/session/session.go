// Package session implements the guided conversational capture engine: a
// per-subject state machine that collects record fields across inbound
// events and commits completed flows into the ledger.
package session

import (
	"sync"
	"time"

	"financas/internal/core"
)

type State int

const (
	StateGate State = iota
	StateIdle
	StateSelectingFlow
	StateAwaitingCategory
	StateAwaitingAmount
	StateAwaitingDueDate
	StateAwaitingDescription
	StateAwaitingPeriod
	StateSelectingScheduled
	StateSelectingForDeletion
	StateConfirmingDeletion
)

func (s State) String() string {
	switch s {
	case StateGate:
		return "gate"
	case StateIdle:
		return "idle"
	case StateSelectingFlow:
		return "selecting_flow"
	case StateAwaitingCategory:
		return "awaiting_category"
	case StateAwaitingAmount:
		return "awaiting_amount"
	case StateAwaitingDueDate:
		return "awaiting_due_date"
	case StateAwaitingDescription:
		return "awaiting_description"
	case StateAwaitingPeriod:
		return "awaiting_period"
	case StateSelectingScheduled:
		return "selecting_scheduled"
	case StateSelectingForDeletion:
		return "selecting_for_deletion"
	case StateConfirmingDeletion:
		return "confirming_deletion"
	}
	return "unknown"
}

type Flow int

const (
	FlowNone Flow = iota
	FlowIncome
	FlowExpense
	FlowSchedule
)

// Kind returns the transaction kind a capture flow produces.
func (f Flow) Kind() core.Kind {
	if f == FlowIncome {
		return core.Income
	}
	return core.Expense
}

// PendingFields holds the partially collected record of the active flow.
// Zero values mean "not collected yet".
type PendingFields struct {
	Category string
	Amount   core.Money
	DueDate  time.Time
	DeleteID int64
}

// Session is the ephemeral conversation state for one subject. It is not
// persisted; losing it resets the subject to the menu.
type Session struct {
	mu        sync.Mutex
	SubjectID int64
	State     State
	Flow      Flow
	Pending   PendingFields
}

// reset discards all pending fields and returns the session to rest.
func (s *Session) reset() {
	s.Flow = FlowNone
	s.Pending = PendingFields{}
	s.State = StateIdle
}
