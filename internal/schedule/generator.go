package schedule

import (
	"fmt"
	"strings"
	"time"

	"despesas/internal/core"
)

// DefaultHorizon is the number of monthly occurrences materialized for a
// recurring expense.
const DefaultHorizon = 12

// DayOverflow decides what happens when the anchor day does not exist in a
// target month.
type DayOverflow int

const (
	// ClampToMonthEnd moves the due date to the last day of the month.
	ClampToMonthEnd DayOverflow = iota
	// RollOver lets the extra days spill into the next month.
	RollOver
)

func (o DayOverflow) String() string {
	if o == RollOver {
		return "roll"
	}
	return "clamp"
}

// ParseDayOverflow accepts "clamp" or "roll".
func ParseDayOverflow(s string) (DayOverflow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamp":
		return ClampToMonthEnd, nil
	case "roll", "rollover":
		return RollOver, nil
	}
	return 0, fmt.Errorf("unknown day overflow policy %q", s)
}

// RemainderPolicy decides how a total that does not divide evenly is spread
// over installment shares.
type RemainderPolicy int

const (
	// RemainderRounded rounds every share half-up to the cent.
	RemainderRounded RemainderPolicy = iota
	// RemainderOnLast floors every share and adds the remainder to the last.
	RemainderOnLast
)

func (p RemainderPolicy) String() string {
	if p == RemainderOnLast {
		return "last"
	}
	return "rounded"
}

// ParseRemainderPolicy accepts "rounded" or "last".
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rounded":
		return RemainderRounded, nil
	case "last":
		return RemainderOnLast, nil
	}
	return 0, fmt.Errorf("unknown installment remainder policy %q", s)
}

// Generator materializes schedules. The zero value uses the default
// horizon, clamps overflowing days and rounds every share.
// A Generator has no mutable state and is safe for concurrent use.
type Generator struct {
	Horizon   int
	Overflow  DayOverflow
	Remainder RemainderPolicy
}

// Default is used by the package-level functions.
var Default = Generator{Horizon: DefaultHorizon}

func (g Generator) horizon() int {
	if g.Horizon <= 0 {
		return DefaultHorizon
	}
	return g.Horizon
}

// dueDate returns the anchor day in the month offset months after the
// anchor's, with the nominal year and month of that target.
func (g Generator) dueDate(anchor core.Date, offset int) (year, month int, due core.Date) {
	m0 := anchor.Month() - 1 + offset
	year = anchor.Year() + m0/12
	month = m0%12 + 1

	day := anchor.Day()
	last := core.DaysIn(year, month)
	if day <= last {
		return year, month, core.NewDate(year, month, day)
	}
	if g.Overflow == RollOver {
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		return year, month, core.DateOf(t)
	}
	return year, month, core.NewDate(year, month, last)
}

// share returns the amount of installment number (1-based) out of count.
func (g Generator) share(total core.Money, count, number int) core.Money {
	n := int64(count)
	if g.Remainder == RemainderOnLast {
		base := total.Cents / n
		if number == count {
			return core.Money{Cents: total.Cents - base*(n-1)}
		}
		return core.Money{Cents: base}
	}
	return core.Money{Cents: divRoundHalfUp(total.Cents, n)}
}

func divRoundHalfUp(a, b int64) int64 {
	if a < 0 {
		return -divRoundHalfUp(-a, b)
	}
	return (2*a + b) / (2 * b)
}

// SubRecordSet holds the sub-records of one expense.
type SubRecordSet struct {
	Occurrences  []core.RecurrenceOccurrence
	Installments []core.InstallmentShare
}

// Len returns the number of sub-records of both kinds.
func (s SubRecordSet) Len() int {
	return len(s.Occurrences) + len(s.Installments)
}

// WithExpenseID returns a copy of s owned by id.
func (s SubRecordSet) WithExpenseID(id int64) SubRecordSet {
	out := SubRecordSet{}
	if s.Occurrences != nil {
		out.Occurrences = make([]core.RecurrenceOccurrence, len(s.Occurrences))
		for i, o := range s.Occurrences {
			o.ExpenseID = id
			out.Occurrences[i] = o
		}
	}
	if s.Installments != nil {
		out.Installments = make([]core.InstallmentShare, len(s.Installments))
		for i, sh := range s.Installments {
			sh.ExpenseID = id
			out.Installments[i] = sh
		}
	}
	return out
}

// Attributes are the generating fields of an expense.
type Attributes struct {
	Amount           core.Money
	DueDate          core.Date
	InstallmentCount int
}

// Generate returns the sub-records a freshly created expense of class c
// owns. ONE_OFF expenses own none.
func (g Generator) Generate(expenseID int64, c core.Classification, attrs Attributes) (SubRecordSet, error) {
	switch c {
	case core.OneOff:
		return SubRecordSet{}, nil
	case core.Recurring:
		occ, err := g.GenerateRecurrenceOccurrences(attrs.DueDate, attrs.Amount, expenseID)
		if err != nil {
			return SubRecordSet{}, err
		}
		return SubRecordSet{Occurrences: occ}, nil
	case core.Installment:
		shares, err := g.GenerateInstallmentShares(attrs.DueDate, attrs.Amount, attrs.InstallmentCount, expenseID)
		if err != nil {
			return SubRecordSet{}, err
		}
		return SubRecordSet{Installments: shares}, nil
	}
	return SubRecordSet{}, opError("generate", fmt.Errorf("%w: %d", ErrInvalidClassification, int(c)))
}

// Generate runs Default.Generate.
func Generate(expenseID int64, c core.Classification, attrs Attributes) (SubRecordSet, error) {
	return Default.Generate(expenseID, c, attrs)
}
