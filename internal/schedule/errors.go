package schedule

import (
	"errors"

	"despesas/internal/core"
)

var (
	ErrInvalidInstallmentCount = errors.New("installment count must be greater than 1")
	ErrMissingAnchorDate       = errors.New("missing anchor date")
	ErrInvalidDate             = errors.New("invalid date")
	ErrInvalidClassification   = core.ErrInvalidClassification
)

// Error records the schedule operation that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "schedule: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func opError(op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}
