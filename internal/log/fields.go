package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldSubjectID   = "subject_id"
	FieldState       = "state"
	FieldFlow        = "flow"
	FieldKind        = "kind"
	FieldCategory    = "category"
	FieldAmountCents = "amount_cents"
	FieldDueDate     = "due_date"
	FieldPeriod      = "period"
	FieldID          = "id"
	FieldError       = "error"
	FieldCount       = "count"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentSession   = "session"
	ComponentStorage   = "storage"
	ComponentScheduler = "scheduler"
	ComponentGateway   = "gateway"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentMirror    = "mirror"
	ComponentReports   = "reports"
)
