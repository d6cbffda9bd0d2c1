package models

import "time"

// Suggested priorities offered by the task form. Priority itself is free-form.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Task struct {
	ID          int64
	UserID      int64 // 0 when the store has no accounts
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
	Completed   bool
	CreatedAt   time.Time
}

// DueDateValue formats the due date for the date input, empty when unset.
func (t *Task) DueDateValue() string {
	if t.DueDate == nil {
		return ""
	}
	return t.DueDate.Format("2006-01-02")
}
