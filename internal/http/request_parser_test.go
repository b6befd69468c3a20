package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"despesas/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2025, time.July, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
		wantErr   bool
	}{
		{"defaults to now", url.Values{}, 2025, 7, false},
		{"explicit", url.Values{"year": {"2024"}, "month": {"2"}}, 2024, 2, false},
		{"month only", url.Values{"month": {" 11 "}}, 2025, 11, false},
		{"out of range left to caller", url.Values{"month": {"13"}}, 2025, 13, false},
		{"bad year", url.Values{"year": {"abc"}}, 0, 0, true},
		{"bad month", url.Values{"month": {"1.5"}}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonthParams(tt.query, now)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Year != tt.wantYear || got.Month != tt.wantMonth {
				t.Errorf("got %d-%d, want %d-%d", got.Year, got.Month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"Pix"}`, ""},
		{"empty", ``, "request body is empty"},
		{"unknown field", `{"nome":"Pix"}`, "unknown field"},
		{"trailing data", `{"name":"a"}{"name":"b"}`, "unexpected data"},
		{"malformed", `{"name":`, "invalid JSON body"},
		{"too large", `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`, "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/categories", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			var dst nameRequest
			err := decodeJSON(w, r, &dst)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Name != "Pix" {
					t.Errorf("Name = %q", dst.Name)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	for raw, want := range map[string]int64{"7": 7, "0": 0, "-1": 0, "x": 0} {
		r := httptest.NewRequest(http.MethodGet, "/api/expenses/"+raw, nil)
		r.SetPathValue("id", raw)
		got, err := pathID(r)
		if want == 0 {
			if err == nil {
				t.Errorf("pathID(%q) expected error", raw)
			}
			continue
		}
		if err != nil || got != want {
			t.Errorf("pathID(%q) = %d, %v", raw, got, err)
		}
	}
}

func decodeExpenseRequest(t *testing.T, body string) expenseRequest {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(body))
	var req expenseRequest
	if err := decodeJSON(httptest.NewRecorder(), r, &req); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return req
}

func TestExpenseRequestCreateInput(t *testing.T) {
	req := decodeExpenseRequest(t, `{
		"description": " Aluguel\u0007 ",
		"amount": "1500,50",
		"entry_date": "2025-01-05",
		"expense_category_id": "1",
		"payment_method_id": 2,
		"recurrence_type_id": "installment",
		"due_date": "2025-01-10",
		"installment": "3"
	}`)

	in, err := req.createInput()
	if err != nil {
		t.Fatalf("createInput: %v", err)
	}
	if in.Description != "Aluguel" {
		t.Errorf("Description = %q", in.Description)
	}
	if in.Amount.Cents != 150050 {
		t.Errorf("Amount = %d cents", in.Amount.Cents)
	}
	if in.Classification != core.Installment {
		t.Errorf("Classification = %v", in.Classification)
	}
	if in.CategoryID != 1 || in.PaymentMethodID != 2 || in.InstallmentCount != 3 {
		t.Errorf("ids/count = %d/%d/%d", in.CategoryID, in.PaymentMethodID, in.InstallmentCount)
	}
	if in.EntryDate != "2025-01-05" || in.DueDate != "2025-01-10" {
		t.Errorf("dates = %v/%v", in.EntryDate, in.DueDate)
	}
	if in.Status != nil {
		t.Errorf("Status = %v, want nil", *in.Status)
	}
}

func TestExpenseRequestMissingFields(t *testing.T) {
	req := decodeExpenseRequest(t, `{"description":"x","recurrence_type_id":2}`)
	_, err := req.createInput()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, field := range []string{"amount", "entry_date", "expense_category_id", "payment_method_id"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not name %s", err, field)
		}
	}
	if strings.Contains(err.Error(), "recurrence_type_id") {
		t.Errorf("error %q names a present field", err)
	}
}

func TestExpenseRequestBadClassification(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(`{"recurrence_type_id":"WEEKLY"}`))
	var req expenseRequest
	err := decodeJSON(httptest.NewRecorder(), r, &req)
	if err == nil || !strings.Contains(err.Error(), "invalid classification") {
		t.Errorf("err = %v", err)
	}
}

func TestExpenseRequestUpdateInput(t *testing.T) {
	req := decodeExpenseRequest(t, `{"recurrence_type_id":1,"amount":99.9,"due_date":""}`)
	in := req.updateInput()

	if in.Classification == nil || *in.Classification != core.Recurring {
		t.Errorf("Classification = %v", in.Classification)
	}
	if in.Amount == nil || in.Amount.Cents != 9990 {
		t.Errorf("Amount = %v", in.Amount)
	}
	if in.DueDate != "" {
		t.Errorf("DueDate = %v, want blank string", in.DueDate)
	}
	if in.EntryDate != nil || in.Description != nil || in.CategoryID != nil || in.InstallmentCount != nil {
		t.Errorf("absent fields must stay nil: %+v", in)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
