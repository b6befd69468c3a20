package storage

import (
	"time"

	"despesas/internal/core"
)

type Category struct {
	ID   int64
	Name string
}

type PaymentMethod struct {
	ID   int64
	Name string
}

type Expense struct {
	ID               int64
	Description      string
	AmountCents      int64
	EntryDate        core.Date
	Classification   int64
	DueDate          core.Date
	InstallmentCount int64
	CategoryID       int64
	PaymentMethodID  int64
	Status           bool
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type RecurrenceOccurrence struct {
	ExpenseID   int64
	Year        int64
	Month       int64
	DueDate     core.Date
	AmountCents int64
}

type InstallmentShare struct {
	ExpenseID   int64
	Number      int64
	AmountCents int64
	DueDate     core.Date
}

type StatementRow struct {
	ExpenseID         int64
	Description       string
	Classification    int64
	CategoryID        int64
	Status            bool
	DueDate           core.Date
	AmountCents       int64
	InstallmentNumber int64
	InstallmentCount  int64
}
