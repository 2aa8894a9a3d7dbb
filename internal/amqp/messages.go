package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"boekhouding/internal/core"
)

// Action names what happened to a transaction.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// TransactionChangedMessage tells consumers which reporting periods are
// stale. Dates holds every booking date touched by the change: the new date
// on create, old and new on update, the old one on delete.
type TransactionChangedMessage struct {
	Action        Action    `json:"action"`
	TransactionID string    `json:"transactionId"`
	Dates         []string  `json:"dates"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionChangedMessage builds a message, dropping duplicate dates.
func NewTransactionChangedMessage(action Action, id string, dates ...core.Date) *TransactionChangedMessage {
	msg := &TransactionChangedMessage{
		Action:        action,
		TransactionID: id,
		Timestamp:     time.Now().UTC(),
	}
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		s := d.String()
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		msg.Dates = append(msg.Dates, s)
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *TransactionChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AffectedDates parses Dates.
func (m *TransactionChangedMessage) AffectedDates() ([]core.Date, error) {
	out := make([]core.Date, 0, len(m.Dates))
	for _, s := range m.Dates {
		d, err := core.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("date %q: %w", s, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// TransactionChangedMessageFromJSON decodes and validates a message body.
func TransactionChangedMessageFromJSON(data []byte) (*TransactionChangedMessage, error) {
	var msg TransactionChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	if msg.TransactionID == "" {
		return nil, fmt.Errorf("missing transaction id")
	}
	if _, err := msg.AffectedDates(); err != nil {
		return nil, err
	}
	return &msg, nil
}
