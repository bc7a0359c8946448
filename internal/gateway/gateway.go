// Package gateway declares the boundary with the external messaging
// transport: the inbound events it delivers, the outbound prompts it
// renders, and the access gate consulted before a session proceeds.
package gateway

import "context"

// Event is an inbound occurrence for one subject: either free-form text or
// a discrete choice from a previously offered set.
type Event struct {
	SubjectID int64
	Text      string // free-form reply, empty for selections
	Token     string // selected token, empty for text
}

// IsSelection reports whether the event carries a selection token.
func (e Event) IsSelection() bool {
	return e.Token != ""
}

// Input returns the payload regardless of event flavor.
func (e Event) Input() string {
	if e.Token != "" {
		return e.Token
	}
	return e.Text
}

// Prompt is an outbound message: plain text, optionally paired with the
// enumerated set of tokens the transport should offer as choices.
type Prompt struct {
	SubjectID int64
	Text      string
	Choices   []string
}

// Sender delivers prompts through the transport.
type Sender interface {
	Send(ctx context.Context, p Prompt) error
}

// Gate is the access-gate collaborator consulted before any event reaches
// a session's state machine.
type Gate interface {
	IsAuthorized(ctx context.Context, subjectID int64) (bool, error)
	Authorize(ctx context.Context, subjectID int64) error
	// Check verifies the shared secret presented by a subject.
	Check(secret string) bool
}
