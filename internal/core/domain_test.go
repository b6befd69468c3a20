package core

import (
	"errors"
	"strings"
	"testing"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{NewDate(2024, 2, 29), true},
		{NewDate(2025, 2, 29), false},
		{NewDate(2025, 13, 1), false},
		{NewDate(2025, 4, 31), false},
		{Date{}, false}, // zero date
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSONAndScan(t *testing.T) {
	var d Date
	if err := d.UnmarshalJSON([]byte(`"2025-03-10"`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d != NewDate(2025, 3, 10) {
		t.Fatalf("got %v", d)
	}
	if err := d.UnmarshalJSON([]byte(`null`)); err != nil || !d.IsZero() {
		t.Fatalf("null should give zero date, got %v (err=%v)", d, err)
	}
	if b, _ := (Date{}).MarshalJSON(); string(b) != "null" {
		t.Fatalf("zero date should marshal to null, got %s", b)
	}

	if err := d.Scan("2025-01-31T00:00:00Z"); err != nil || d != NewDate(2025, 1, 31) {
		t.Fatalf("scan got %v (err=%v)", d, err)
	}
	if err := d.Scan(nil); err != nil || !d.IsZero() {
		t.Fatalf("scan nil got %v (err=%v)", d, err)
	}
	v, _ := NewDate(2025, 2, 1).Value()
	if v != "2025-02-01" {
		t.Fatalf("value got %v", v)
	}
}

func TestDateCompare(t *testing.T) {
	a, b := NewDate(2025, 1, 31), NewDate(2025, 2, 1)
	if !a.Before(b) || !b.After(a) || a.Equal(b) {
		t.Fatalf("ordering broken for %v and %v", a, b)
	}
	if DaysIn(2024, 2) != 29 || DaysIn(2025, 2) != 28 || DaysIn(2025, 12) != 31 {
		t.Fatalf("DaysIn mismatch")
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestParseClassification(t *testing.T) {
	cases := []struct {
		in   string
		want Classification
		ok   bool
	}{
		{"1", Recurring, true},
		{"2", OneOff, true},
		{"3", Installment, true},
		{"recurring", Recurring, true},
		{"ONE_OFF", OneOff, true},
		{"one-off", OneOff, true},
		{" Installment ", Installment, true},
		{"4", 0, false},
		{"monthly", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseClassification(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
		} else if !errors.Is(err, ErrInvalidClassification) {
			t.Fatalf("%q expected ErrInvalidClassification, got %v", tc.in, err)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Description:     "ok",
		Amount:          Money{Cents: 100},
		EntryDate:       NewDate(2025, 1, 1),
		Classification:  OneOff,
		CategoryID:      1,
		PaymentMethodID: 1,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	recurring := good
	recurring.Classification = Recurring
	recurring.DueDate = NewDate(2025, 1, 10)
	if err := recurring.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	installment := recurring
	installment.Classification = Installment
	installment.InstallmentCount = 3
	if err := installment.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutate := func(f func(*Expense)) Expense {
		e := installment
		f(&e)
		return e
	}
	bads := []struct {
		e    Expense
		want error
	}{
		{mutate(func(e *Expense) { e.Description = " " }), ErrEmptyDescription},
		{mutate(func(e *Expense) { e.Description = strings.Repeat("a", 201) }), ErrDescriptionTooLong},
		{mutate(func(e *Expense) { e.Amount = Money{} }), ErrInvalidAmount},
		{mutate(func(e *Expense) { e.EntryDate = Date{} }), ErrZeroDate},
		{mutate(func(e *Expense) { e.CategoryID = 0 }), ErrMissingCategory},
		{mutate(func(e *Expense) { e.PaymentMethodID = 0 }), ErrMissingPaymentMethod},
		{mutate(func(e *Expense) { e.DueDate = Date{} }), ErrMissingDueDate},
		{mutate(func(e *Expense) { e.InstallmentCount = 1 }), ErrInvalidInstallments},
		{mutate(func(e *Expense) { e.Classification = 9 }), ErrInvalidClassification},
	}
	for i, tc := range bads {
		if err := tc.e.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestMonthStatementSummarize(t *testing.T) {
	s := MonthStatement{Year: 2025, Month: 3, Items: []StatementItem{
		{CategoryID: 1, Amount: Money{Cents: 100}},
		{CategoryID: 2, Amount: Money{Cents: 250}},
		{CategoryID: 1, Amount: Money{Cents: 50}},
	}}
	s.Summarize(map[int64]string{1: "Casa"})
	if s.Total.Cents != 400 {
		t.Fatalf("total got %d", s.Total.Cents)
	}
	if len(s.ByCategory) != 2 || s.ByCategory[0].Name != "Casa" || s.ByCategory[0].Amount.Cents != 150 {
		t.Fatalf("by category got %+v", s.ByCategory)
	}
}
