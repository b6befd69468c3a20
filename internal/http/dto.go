package http

import (
	"time"

	"despesas/internal/core"
)

type occurrenceResponse struct {
	Month   int        `json:"month"`
	Year    int        `json:"year"`
	DueDate core.Date  `json:"due_date"`
	Amount  core.Money `json:"amount"`
}

type installmentResponse struct {
	Number  int        `json:"number"`
	Amount  core.Money `json:"amount"`
	DueDate core.Date  `json:"due_date"`
}

type expenseResponse struct {
	ID               int64                 `json:"id"`
	Description      string                `json:"description"`
	Amount           core.Money            `json:"amount"`
	EntryDate        core.Date             `json:"entry_date"`
	RecurrenceTypeID int                   `json:"recurrence_type_id"`
	RecurrenceType   string                `json:"recurrence_type"`
	DueDate          core.Date             `json:"due_date"`
	Installment      int                   `json:"installment,omitempty"`
	CategoryID       int64                 `json:"expense_category_id"`
	PaymentMethodID  int64                 `json:"payment_method_id"`
	Status           bool                  `json:"status"`
	Version          int64                 `json:"version"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	Occurrences      []occurrenceResponse  `json:"occurrences"`
	Installments     []installmentResponse `json:"installments"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	out := expenseResponse{
		ID:               e.ID,
		Description:      e.Description,
		Amount:           e.Amount,
		EntryDate:        e.EntryDate,
		RecurrenceTypeID: int(e.Classification),
		RecurrenceType:   e.Classification.String(),
		DueDate:          e.DueDate,
		Installment:      e.InstallmentCount,
		CategoryID:       e.CategoryID,
		PaymentMethodID:  e.PaymentMethodID,
		Status:           e.Status,
		Version:          e.Version,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
		Occurrences:      make([]occurrenceResponse, 0, len(e.Occurrences)),
		Installments:     make([]installmentResponse, 0, len(e.Installments)),
	}
	for _, o := range e.Occurrences {
		out.Occurrences = append(out.Occurrences, occurrenceResponse{
			Month: o.Month, Year: o.Year, DueDate: o.DueDate, Amount: o.Amount,
		})
	}
	for _, s := range e.Installments {
		out.Installments = append(out.Installments, installmentResponse{
			Number: s.Number, Amount: s.Amount, DueDate: s.DueDate,
		})
	}
	return out
}

func toExpenseList(list []core.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toExpenseResponse(e))
	}
	return out
}

type statementItemResponse struct {
	ExpenseID         int64      `json:"expense_id"`
	Description       string     `json:"description"`
	RecurrenceType    string     `json:"recurrence_type"`
	DueDate           core.Date  `json:"due_date"`
	Amount            core.Money `json:"amount"`
	InstallmentNumber int        `json:"installment_number,omitempty"`
	InstallmentCount  int        `json:"installment_count,omitempty"`
	CategoryID        int64      `json:"expense_category_id"`
	Status            bool       `json:"status"`
}

type categoryTotalResponse struct {
	CategoryID int64      `json:"expense_category_id"`
	Name       string     `json:"name"`
	Amount     core.Money `json:"amount"`
}

type statementResponse struct {
	Year       int                     `json:"year"`
	Month      int                     `json:"month"`
	Total      core.Money              `json:"total"`
	Items      []statementItemResponse `json:"items"`
	ByCategory []categoryTotalResponse `json:"by_category"`
}

func toStatementResponse(st core.MonthStatement) statementResponse {
	out := statementResponse{
		Year:       st.Year,
		Month:      st.Month,
		Total:      st.Total,
		Items:      make([]statementItemResponse, 0, len(st.Items)),
		ByCategory: make([]categoryTotalResponse, 0, len(st.ByCategory)),
	}
	for _, it := range st.Items {
		out.Items = append(out.Items, statementItemResponse{
			ExpenseID:         it.ExpenseID,
			Description:       it.Description,
			RecurrenceType:    it.Classification.String(),
			DueDate:           it.DueDate,
			Amount:            it.Amount,
			InstallmentNumber: it.InstallmentNumber,
			InstallmentCount:  it.InstallmentCount,
			CategoryID:        it.CategoryID,
			Status:            it.Status,
		})
	}
	for _, c := range st.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryTotalResponse{
			CategoryID: c.CategoryID, Name: c.Name, Amount: c.Amount,
		})
	}
	return out
}

type catalogEntryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type recurrenceTypeResponse struct {
	ID    int    `json:"id"`
	Code  string `json:"code"`
	Label string `json:"label"`
}
