package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"financas/internal/gateway"
)

// Message types on the wire between the transport and this service.
const (
	EventTypeText      = "text"
	EventTypeSelection = "selection"
)

// EventMessage is an inbound subject event published by the messaging
// transport.
type EventMessage struct {
	SubjectID int64     `json:"subject_id"`
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	Token     string    `json:"token,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToEvent validates the message and converts it to a gateway event.
func (m *EventMessage) ToEvent() (gateway.Event, error) {
	if m.SubjectID == 0 {
		return gateway.Event{}, fmt.Errorf("event without subject id")
	}
	switch m.Type {
	case EventTypeText:
		return gateway.Event{SubjectID: m.SubjectID, Text: m.Text}, nil
	case EventTypeSelection:
		if m.Token == "" {
			return gateway.Event{}, fmt.Errorf("selection event without token")
		}
		return gateway.Event{SubjectID: m.SubjectID, Token: m.Token}, nil
	}
	return gateway.Event{}, fmt.Errorf("unknown event type %q", m.Type)
}

func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// PromptMessage is an outbound prompt or notification for the transport to
// render and deliver.
type PromptMessage struct {
	SubjectID int64     `json:"subject_id"`
	Text      string    `json:"text"`
	Choices   []string  `json:"choices,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPromptMessage(p gateway.Prompt) *PromptMessage {
	return &PromptMessage{
		SubjectID: p.SubjectID,
		Text:      p.Text,
		Choices:   p.Choices,
		Timestamp: time.Now(),
	}
}

func (m *PromptMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessage asks the mirror worker to copy one committed
// transaction; the worker fetches the full row from the store.
type TransactionSyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{ID: id, Timestamp: time.Now()}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
