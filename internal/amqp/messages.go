package amqp

import (
	"encoding/json"
	"time"

	"operaciones/internal/core"
)

// Event types, also used as routing keys on the topic exchange.
const (
	EventCreated = "operation.created"
	EventUpdated = "operation.updated"
	EventDeleted = "operation.deleted"

	// BindAll matches every operation event.
	BindAll = "operation.*"
)

// OperationEvent is published after a successful mutation. Deleted events
// only carry the id.
type OperationEvent struct {
	Type           string    `json:"type"`
	OperationID    int64     `json:"operacionID"`
	Identification string    `json:"identificacion,omitempty"`
	Name           string    `json:"nombre,omitempty"`
	CreditType     string    `json:"tipoCredito,omitempty"`
	Amount         float64   `json:"monto,omitempty"`
	TermMonths     int       `json:"plazoMeses,omitempty"`
	Approved       bool      `json:"aprobado,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewOperationEvent builds an event of type t from op.
func NewOperationEvent(t string, op core.Operation) *OperationEvent {
	return &OperationEvent{
		Type:           t,
		OperationID:    op.ID,
		Identification: op.Identification,
		Name:           op.Name,
		CreditType:     op.CreditType,
		Amount:         op.Amount,
		TermMonths:     op.TermMonths,
		Approved:       op.Approved,
		Timestamp:      time.Now().UTC(),
	}
}

// NewDeletedEvent builds a deletion event.
func NewDeletedEvent(id int64) *OperationEvent {
	return &OperationEvent{Type: EventDeleted, OperationID: id, Timestamp: time.Now().UTC()}
}

// ToJSON converts the message to JSON bytes
func (m *OperationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// OperationEventFromJSON creates a message from JSON bytes
func OperationEventFromJSON(data []byte) (*OperationEvent, error) {
	var msg OperationEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
