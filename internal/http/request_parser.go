// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON body decoding, path ids, month query parameters and the expense
// request body.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"despesas/internal/core"
	"despesas/internal/services"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using the
// current date for missing values. Non-numeric values are an error; range
// checks are left to the service.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("invalid year %q", v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("invalid month %q", v)
		}
		params.Month = m
	}
	return params, nil
}

// pathID parses the {id} path value as a positive integer.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// decodeJSON reads a single JSON object from the body into dst. Unknown
// fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		default:
			return fmt.Errorf("invalid JSON body: %w", err)
		}
	}
	if dec.More() {
		return errors.New("invalid JSON body: unexpected data after object")
	}
	return nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// flexID accepts an id as a JSON number or a numeric string.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*f = flexID(n)
	return nil
}

// flexInt accepts a count as a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*f = flexInt(n)
	return nil
}

// classificationField accepts a recurrence type code (1) or name
// ("RECURRING").
type classificationField core.Classification

func (c *classificationField) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	parsed, err := core.ParseClassification(s)
	if err != nil {
		return err
	}
	*c = classificationField(parsed)
	return nil
}

// expenseRequest is the body of POST and PUT /api/expenses.
type expenseRequest struct {
	Description      *string              `json:"description"`
	Amount           *core.Money          `json:"amount"`
	EntryDate        *string              `json:"entry_date"`
	CategoryID       *flexID              `json:"expense_category_id"`
	PaymentMethodID  *flexID              `json:"payment_method_id"`
	RecurrenceTypeID *classificationField `json:"recurrence_type_id"`
	DueDate          *string              `json:"due_date"`
	Installment      *flexInt             `json:"installment"`
	Status           *bool                `json:"status"`
}

// createInput checks required fields and builds the service input.
func (req expenseRequest) createInput() (services.CreateExpenseInput, error) {
	var missing []string
	if req.Description == nil {
		missing = append(missing, "description")
	}
	if req.Amount == nil {
		missing = append(missing, "amount")
	}
	if req.EntryDate == nil {
		missing = append(missing, "entry_date")
	}
	if req.CategoryID == nil {
		missing = append(missing, "expense_category_id")
	}
	if req.PaymentMethodID == nil {
		missing = append(missing, "payment_method_id")
	}
	if req.RecurrenceTypeID == nil {
		missing = append(missing, "recurrence_type_id")
	}
	if len(missing) > 0 {
		return services.CreateExpenseInput{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	in := services.CreateExpenseInput{
		Description:     sanitizeInput(*req.Description),
		Amount:          *req.Amount,
		EntryDate:       *req.EntryDate,
		Classification:  core.Classification(*req.RecurrenceTypeID),
		CategoryID:      int64(*req.CategoryID),
		PaymentMethodID: int64(*req.PaymentMethodID),
		Status:          req.Status,
	}
	if req.DueDate != nil {
		in.DueDate = *req.DueDate
	}
	if req.Installment != nil {
		in.InstallmentCount = int(*req.Installment)
	}
	return in, nil
}

// updateInput builds a partial update; absent fields stay nil so the stored
// values are kept.
func (req expenseRequest) updateInput() services.UpdateExpenseInput {
	var in services.UpdateExpenseInput
	if req.Description != nil {
		d := sanitizeInput(*req.Description)
		in.Description = &d
	}
	in.Amount = req.Amount
	if req.EntryDate != nil {
		in.EntryDate = *req.EntryDate
	}
	if req.RecurrenceTypeID != nil {
		c := core.Classification(*req.RecurrenceTypeID)
		in.Classification = &c
	}
	if req.DueDate != nil {
		in.DueDate = *req.DueDate
	}
	if req.Installment != nil {
		n := int(*req.Installment)
		in.InstallmentCount = &n
	}
	if req.CategoryID != nil {
		id := int64(*req.CategoryID)
		in.CategoryID = &id
	}
	if req.PaymentMethodID != nil {
		id := int64(*req.PaymentMethodID)
		in.PaymentMethodID = &id
	}
	in.Status = req.Status
	return in
}

// statusRequest is the body of PATCH /api/expenses/{id}/status.
type statusRequest struct {
	Status *bool `json:"status"`
}

// nameRequest is the body of catalog creates.
type nameRequest struct {
	Name string `json:"name"`
}
