package schedule

import "despesas/internal/core"

// GenerateRecurrenceOccurrences returns one occurrence per month for the
// generator's horizon, starting in the anchor's month. Every occurrence
// carries amount unchanged.
func (g Generator) GenerateRecurrenceOccurrences(anchor core.Date, amount core.Money, expenseID int64) ([]core.RecurrenceOccurrence, error) {
	if anchor.IsZero() {
		return nil, opError("generate occurrences", ErrMissingAnchorDate)
	}
	if err := anchor.Validate(); err != nil {
		return nil, opError("generate occurrences", ErrInvalidDate)
	}

	h := g.horizon()
	out := make([]core.RecurrenceOccurrence, 0, h)
	for i := 0; i < h; i++ {
		year, month, due := g.dueDate(anchor, i)
		out = append(out, core.RecurrenceOccurrence{
			ExpenseID: expenseID,
			Month:     month,
			Year:      year,
			DueDate:   due,
			Amount:    amount,
		})
	}
	return out, nil
}

// GenerateRecurrenceOccurrences runs Default.GenerateRecurrenceOccurrences.
func GenerateRecurrenceOccurrences(anchor core.Date, amount core.Money, expenseID int64) ([]core.RecurrenceOccurrence, error) {
	return Default.GenerateRecurrenceOccurrences(anchor, amount, expenseID)
}
