package schedule

import (
	"fmt"
	"strings"

	"despesas/internal/core"
)

// Kinds is a set of sub-record kinds.
type Kinds uint8

const (
	KindOccurrences Kinds = 1 << iota
	KindInstallments

	KindNone Kinds = 0
	KindAll        = KindOccurrences | KindInstallments
)

// Has reports whether every kind in k is in s.
func (s Kinds) Has(k Kinds) bool { return s&k == k }

func (s Kinds) String() string {
	if s == KindNone {
		return "none"
	}
	var parts []string
	if s.Has(KindOccurrences) {
		parts = append(parts, "occurrences")
	}
	if s.Has(KindInstallments) {
		parts = append(parts, "installments")
	}
	return strings.Join(parts, "+")
}

// Plan describes how to move an expense's stored sub-records to the state
// its new classification requires. Deletes always remove every row of a
// kind for the expense and run before inserts.
type Plan struct {
	ExpenseID    int64
	ToDelete     Kinds
	ToInsert     SubRecordSet
	ClearDueDate bool
}

// Apply returns current after the plan's deletes and inserts.
func (p Plan) Apply(current SubRecordSet) SubRecordSet {
	var out SubRecordSet
	if !p.ToDelete.Has(KindOccurrences) {
		out.Occurrences = append(out.Occurrences, current.Occurrences...)
	}
	if !p.ToDelete.Has(KindInstallments) {
		out.Installments = append(out.Installments, current.Installments...)
	}
	out.Occurrences = append(out.Occurrences, p.ToInsert.Occurrences...)
	out.Installments = append(out.Installments, p.ToInsert.Installments...)
	return out
}

// Reconcile builds the plan for an expense moving from prev to next.
// attrs are the expense's values after the update. Generation errors are
// returned unchanged and no plan is produced.
func (g Generator) Reconcile(expenseID int64, prev, next core.Classification, attrs Attributes) (Plan, error) {
	if !prev.IsValid() {
		return Plan{}, opError("reconcile", fmt.Errorf("%w: previous %d", ErrInvalidClassification, int(prev)))
	}
	if !next.IsValid() {
		return Plan{}, opError("reconcile", fmt.Errorf("%w: next %d", ErrInvalidClassification, int(next)))
	}

	plan := Plan{ExpenseID: expenseID}
	switch next {
	case core.OneOff:
		// Every kind goes, whatever prev says: a ONE_OFF expense owns no
		// sub-records.
		plan.ClearDueDate = true
		plan.ToDelete = KindAll
		return plan, nil

	case core.Recurring, core.Installment:
		set, err := g.Generate(expenseID, next, attrs)
		if err != nil {
			return Plan{}, err
		}
		plan.ToDelete = KindAll
		plan.ToInsert = set
		return plan, nil
	}
	return Plan{}, opError("reconcile", ErrInvalidClassification)
}

// Reconcile runs Default.Reconcile.
func Reconcile(expenseID int64, prev, next core.Classification, attrs Attributes) (Plan, error) {
	return Default.Reconcile(expenseID, prev, next, attrs)
}
