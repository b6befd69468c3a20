package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Classification tells how an expense repeats. The numeric values are the
// recurrence type codes exposed by the API.
type Classification int

const (
	Recurring   Classification = 1
	OneOff      Classification = 2
	Installment Classification = 3
)

// MaxDescriptionLen is the longest accepted expense description.
const MaxDescriptionLen = 200

type (
	Money struct {
		Cents int64
	}

	Expense struct {
		ID               int64
		Description      string
		Amount           Money
		EntryDate        Date
		Classification   Classification
		DueDate          Date // RECURRING and INSTALLMENT only
		InstallmentCount int  // INSTALLMENT only
		CategoryID       int64
		PaymentMethodID  int64
		Status           bool
		Version          int64
		CreatedAt        time.Time
		UpdatedAt        time.Time

		Occurrences  []RecurrenceOccurrence
		Installments []InstallmentShare
	}

	// RecurrenceOccurrence is one month of a RECURRING expense.
	RecurrenceOccurrence struct {
		ExpenseID int64
		Month     int
		Year      int
		DueDate   Date
		Amount    Money
	}

	// InstallmentShare is one payment of an INSTALLMENT expense.
	InstallmentShare struct {
		ExpenseID int64
		Number    int
		Amount    Money
		DueDate   Date
	}

	Category struct {
		ID   int64
		Name string
	}

	PaymentMethod struct {
		ID   int64
		Name string
	}

	// RecurrenceType is an entry of the static classification catalog.
	RecurrenceType struct {
		ID    Classification
		Code  string
		Label string
	}
)

var (
	ErrInvalidDay            = errors.New("invalid day")
	ErrInvalidMonth          = errors.New("invalid month")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrEmptyDescription      = errors.New("empty description")
	ErrDescriptionTooLong    = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLen)
	ErrInvalidClassification = errors.New("invalid classification")
	ErrMissingDueDate        = errors.New("due date is required for recurring and installment expenses")
	ErrInvalidInstallments   = errors.New("installment count must be greater than 1")
	ErrMissingCategory       = errors.New("expense category is required")
	ErrMissingPaymentMethod  = errors.New("payment method is required")
	ErrEmptyName             = errors.New("empty name")
)

var classificationCodes = map[Classification]string{
	Recurring:   "RECURRING",
	OneOff:      "ONE_OFF",
	Installment: "INSTALLMENT",
}

var classificationLabels = map[Classification]string{
	Recurring:   "Recorrente",
	OneOff:      "Única",
	Installment: "Parcelada",
}

func (c Classification) IsValid() bool {
	_, ok := classificationCodes[c]
	return ok
}

func (c Classification) String() string {
	if s, ok := classificationCodes[c]; ok {
		return s
	}
	return "UNKNOWN(" + strconv.Itoa(int(c)) + ")"
}

// Label returns the human readable name of c.
func (c Classification) Label() string {
	return classificationLabels[c]
}

// ParseClassification accepts a numeric code ("1") or a name ("RECURRING",
// case-insensitive).
func ParseClassification(s string) (Classification, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		c := Classification(n)
		if !c.IsValid() {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClassification, s)
		}
		return c, nil
	}
	upper := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	for c, code := range classificationCodes {
		if code == upper {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidClassification, s)
}

// RecurrenceTypes returns the classification catalog ordered by id.
func RecurrenceTypes() []RecurrenceType {
	out := make([]RecurrenceType, 0, len(classificationCodes))
	for _, c := range []Classification{Recurring, OneOff, Installment} {
		out = append(out, RecurrenceType{ID: c, Code: c.String(), Label: c.Label()})
	}
	return out
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks the fields common to every classification and the
// classification-specific requirements.
func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len([]rune(e.Description)) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.EntryDate.Validate(); err != nil {
		return fmt.Errorf("invalid entry date: %w", err)
	}
	if e.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if e.PaymentMethodID <= 0 {
		return ErrMissingPaymentMethod
	}

	switch e.Classification {
	case OneOff:
	case Recurring, Installment:
		if e.DueDate.IsZero() {
			return ErrMissingDueDate
		}
		if err := e.DueDate.Validate(); err != nil {
			return fmt.Errorf("invalid due date: %w", err)
		}
		if e.Classification == Installment && e.InstallmentCount <= 1 {
			return ErrInvalidInstallments
		}
	default:
		return ErrInvalidClassification
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (p PaymentMethod) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}
