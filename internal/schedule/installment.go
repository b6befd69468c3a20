package schedule

import (
	"fmt"

	"despesas/internal/core"
)

// GenerateInstallmentShares splits total into count monthly shares numbered
// 1..count, the first due on the anchor date.
func (g Generator) GenerateInstallmentShares(anchor core.Date, total core.Money, count int, expenseID int64) ([]core.InstallmentShare, error) {
	if count <= 1 {
		return nil, opError("generate installments", fmt.Errorf("%w: got %d", ErrInvalidInstallmentCount, count))
	}
	if anchor.IsZero() {
		return nil, opError("generate installments", ErrMissingAnchorDate)
	}
	if err := anchor.Validate(); err != nil {
		return nil, opError("generate installments", ErrInvalidDate)
	}

	out := make([]core.InstallmentShare, 0, count)
	for i := 1; i <= count; i++ {
		_, _, due := g.dueDate(anchor, i-1)
		out = append(out, core.InstallmentShare{
			ExpenseID: expenseID,
			Number:    i,
			Amount:    g.share(total, count, i),
			DueDate:   due,
		})
	}
	return out, nil
}

// GenerateInstallmentShares runs Default.GenerateInstallmentShares.
func GenerateInstallmentShares(anchor core.Date, total core.Money, count int, expenseID int64) ([]core.InstallmentShare, error) {
	return Default.GenerateInstallmentShares(anchor, total, count, expenseID)
}
