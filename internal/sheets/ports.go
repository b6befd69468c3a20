package sheets

import (
	"context"
	"strconv"

	"despesas/internal/core"
)

// Ports for outbound adapters.
type (
	// ScheduleExporter mirrors an expense's current schedule somewhere
	// outside the database. Exporting replaces every row previously
	// exported for the same expense.
	ScheduleExporter interface {
		ExportSchedule(ctx context.Context, e core.Expense) error
		DeleteSchedule(ctx context.Context, expenseID int64) error
	}
)

// Row kinds.
const (
	KindOneOff      = "one_off"
	KindOccurrence  = "occurrence"
	KindInstallment = "installment"
)

// Header is the first row of an exported sheet.
var Header = []any{"expense_id", "version", "kind", "number", "due_date", "description", "amount", "status"}

// ScheduleRow is one exported line: a due payment of an expense.
type ScheduleRow struct {
	ExpenseID   int64
	Version     int64
	Kind        string
	Number      int
	DueDate     core.Date
	Description string
	Amount      core.Money
	Status      bool
}

// Values returns the row as sheet cells in Header order.
func (r ScheduleRow) Values() []any {
	status := "pendente"
	if r.Status {
		status = "pago"
	}
	return []any{
		strconv.FormatInt(r.ExpenseID, 10),
		r.Version,
		r.Kind,
		r.Number,
		r.DueDate.String(),
		r.Description,
		r.Amount.String(),
		status,
	}
}

// RowsFor flattens an expense into its schedule rows. ONE_OFF expenses
// export a single row due on the entry date.
func RowsFor(e core.Expense) []ScheduleRow {
	base := ScheduleRow{
		ExpenseID:   e.ID,
		Version:     e.Version,
		Description: e.Description,
		Status:      e.Status,
	}
	switch e.Classification {
	case core.Recurring:
		rows := make([]ScheduleRow, 0, len(e.Occurrences))
		for i, o := range e.Occurrences {
			r := base
			r.Kind, r.Number, r.DueDate, r.Amount = KindOccurrence, i+1, o.DueDate, o.Amount
			rows = append(rows, r)
		}
		return rows
	case core.Installment:
		rows := make([]ScheduleRow, 0, len(e.Installments))
		for _, s := range e.Installments {
			r := base
			r.Kind, r.Number, r.DueDate, r.Amount = KindInstallment, s.Number, s.DueDate, s.Amount
			rows = append(rows, r)
		}
		return rows
	default:
		r := base
		r.Kind, r.Number, r.DueDate, r.Amount = KindOneOff, 1, e.EntryDate, e.Amount
		return []ScheduleRow{r}
	}
}
