package session

import (
	"fmt"
	"strings"

	"financas/internal/core"
	"financas/internal/gateway"
)

// Selection tokens offered by the state machine. The transport renders
// them as buttons; free-form states also accept them as typed text.
const (
	TokenAddIncome       = "add_income"
	TokenAddExpense      = "add_expense"
	TokenScheduleExpense = "schedule_expense"
	TokenReport          = "report"
	TokenListScheduled   = "list_scheduled"
	TokenDeleteRecent    = "delete_transaction"
	TokenBack            = "back"
	TokenCancel          = "cancel"
	TokenConfirm         = "confirm"

	tokenPayPrefix  = "pay:"
	tokenDropPrefix = "drop:"
	tokenDelPrefix  = "del:"
)

// PayToken builds the selection token that marks a scheduled expense paid.
// The due-date scheduler offers the same tokens in its notifications.
func PayToken(id int64) string {
	return fmt.Sprintf("%s%d", tokenPayPrefix, id)
}

// descriptionNone are the sentinels normalizing to an empty description.
var descriptionNone = []string{"none", "-"}

func normalizeDescription(s string) string {
	s = strings.TrimSpace(s)
	for _, sentinel := range descriptionNone {
		if strings.EqualFold(s, sentinel) {
			return ""
		}
	}
	return s
}

var menuChoices = []string{
	TokenAddIncome,
	TokenAddExpense,
	TokenScheduleExpense,
	TokenReport,
	TokenListScheduled,
	TokenDeleteRecent,
}

var navChoices = []string{TokenBack, TokenCancel}

func menuPrompt(subjectID int64) gateway.Prompt {
	return gateway.Prompt{
		SubjectID: subjectID,
		Text:      "Choose an option:",
		Choices:   menuChoices,
	}
}

func categoryPrompt(subjectID int64, kind core.Kind, catalog core.Catalog) gateway.Prompt {
	label := "expense"
	if kind == core.Income {
		label = "income"
	}
	return gateway.Prompt{
		SubjectID: subjectID,
		Text:      fmt.Sprintf("Choose the %s category:", label),
		Choices:   append(append([]string(nil), catalog.Categories(kind)...), navChoices...),
	}
}

func amountPrompt(subjectID int64) gateway.Prompt {
	return gateway.Prompt{
		SubjectID: subjectID,
		Text:      "Enter the amount (e.g. 150.50):",
		Choices:   navChoices,
	}
}

func dueDatePrompt(subjectID int64) gateway.Prompt {
	return gateway.Prompt{
		SubjectID: subjectID,
		Text:      "Enter the due date (DD/MM/YYYY):",
		Choices:   navChoices,
	}
}

func descriptionPrompt(subjectID int64) gateway.Prompt {
	return gateway.Prompt{
		SubjectID: subjectID,
		Text:      "Enter a description (or \"none\"):",
		Choices:   navChoices,
	}
}

func periodPrompt(subjectID int64) gateway.Prompt {
	return gateway.Prompt{
		SubjectID: subjectID,
		Text:      "Enter month and year for the report (MM/YYYY):",
		Choices:   navChoices,
	}
}

func gatePrompt(subjectID int64) gateway.Prompt {
	return gateway.Prompt{
		SubjectID: subjectID,
		Text:      "Enter the access secret:",
	}
}

func textPrompt(subjectID int64, text string) gateway.Prompt {
	return gateway.Prompt{SubjectID: subjectID, Text: text}
}

func scheduledListPrompt(subjectID int64, items []core.ScheduledExpense) gateway.Prompt {
	var b strings.Builder
	b.WriteString("Scheduled expenses:\n")
	choices := make([]string, 0, len(items)*2+len(navChoices))
	for _, se := range items {
		fmt.Fprintf(&b, "#%d %s - %s - due %s", se.ID, se.Category, se.Amount.Format(), se.DueDate.Format("02/01/2006"))
		if se.Description != "" {
			fmt.Fprintf(&b, " - %s", se.Description)
		}
		b.WriteString("\n")
		choices = append(choices,
			PayToken(se.ID),
			fmt.Sprintf("%s%d", tokenDropPrefix, se.ID))
	}
	b.WriteString("Pick an item to pay or drop:")
	return gateway.Prompt{
		SubjectID: subjectID,
		Text:      b.String(),
		Choices:   append(choices, navChoices...),
	}
}

func recentListPrompt(subjectID int64, items []core.Transaction) gateway.Prompt {
	var b strings.Builder
	b.WriteString("Recent transactions:\n")
	choices := make([]string, 0, len(items)+len(navChoices))
	for _, t := range items {
		fmt.Fprintf(&b, "#%d %s %s - %s", t.ID, t.Kind, t.Category, t.Amount.Format())
		if t.Description != "" {
			fmt.Fprintf(&b, " - %s", t.Description)
		}
		fmt.Fprintf(&b, " (%s)\n", t.RecordedAt.Format("02/01/2006"))
		choices = append(choices, fmt.Sprintf("%s%d", tokenDelPrefix, t.ID))
	}
	b.WriteString("Pick the transaction to delete:")
	return gateway.Prompt{
		SubjectID: subjectID,
		Text:      b.String(),
		Choices:   append(choices, navChoices...),
	}
}

func reportText(summary core.PeriodSummary) string {
	return fmt.Sprintf("Report for %s\n\nIncome: %s\nExpenses: %s\nBalance: %s",
		summary.Period,
		core.Money{Cents: summary.IncomeCents}.Format(),
		core.Money{Cents: summary.ExpenseCents}.Format(),
		core.Money{Cents: summary.BalanceCents()}.Format())
}
