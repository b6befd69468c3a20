package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types carried on the schedule queue.
const (
	TypeScheduleChanged = "schedule.changed"
	TypeExpenseDeleted  = "expense.deleted"
)

// ScheduleEvent is a lightweight notification about an expense's schedule.
// Consumers fetch the current state from the database; the version lets
// them skip stale deliveries.
type ScheduleEvent struct {
	Type           string    `json:"type"`
	ExpenseID      int64     `json:"expense_id"`
	Classification string    `json:"classification,omitempty"`
	Version        int64     `json:"version,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewScheduleChanged creates an event for a created or updated expense.
func NewScheduleChanged(expenseID int64, classification string, version int64) *ScheduleEvent {
	return &ScheduleEvent{
		Type:           TypeScheduleChanged,
		ExpenseID:      expenseID,
		Classification: classification,
		Version:        version,
		Timestamp:      time.Now(),
	}
}

// NewExpenseDeleted creates an event for a deleted expense.
func NewExpenseDeleted(expenseID int64) *ScheduleEvent {
	return &ScheduleEvent{
		Type:      TypeExpenseDeleted,
		ExpenseID: expenseID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *ScheduleEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ScheduleEventFromJSON decodes and checks an event.
func ScheduleEventFromJSON(data []byte) (*ScheduleEvent, error) {
	var msg ScheduleEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case TypeScheduleChanged, TypeExpenseDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ExpenseID <= 0 {
		return nil, fmt.Errorf("invalid expense id %d", msg.ExpenseID)
	}
	return &msg, nil
}
