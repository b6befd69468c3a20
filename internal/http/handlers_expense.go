package http

import (
	"net/http"
	"strconv"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, err := req.createInput()
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	e, err := s.expenses.CreateExpense(r.Context(), in)
	if err != nil {
		writeError(w, r, "create expense", err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Location("/api/expenses/" + strconv.FormatInt(e.ID, 10)).
		Data(toExpenseResponse(e)).
		Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.expenses.ListExpenses(r.Context())
	if err != nil {
		writeError(w, r, "list expenses", err)
		return
	}
	NewJSONResponse().Data(toExpenseList(list)).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	e, err := s.expenses.GetExpense(r.Context(), id)
	if err != nil {
		writeError(w, r, "get expense", err)
		return
	}
	NewJSONResponse().Data(toExpenseResponse(e)).Write(w)
}

// handleUpdateExpense applies a partial update. Changing the classification,
// amount, due date or installment count regenerates the schedule.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	e, err := s.expenses.UpdateExpense(r.Context(), id, req.updateInput())
	if err != nil {
		writeError(w, r, "update expense", err)
		return
	}
	NewJSONResponse().Data(toExpenseResponse(e)).Write(w)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if req.Status == nil {
		BadRequestError("missing required fields: status").Write(w)
		return
	}

	e, err := s.expenses.SetStatus(r.Context(), id, *req.Status)
	if err != nil {
		writeError(w, r, "set status", err)
		return
	}
	NewJSONResponse().Data(toExpenseResponse(e)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	deleted, err := s.expenses.DeleteExpense(r.Context(), id)
	if err != nil {
		writeError(w, r, "delete expense", err)
		return
	}
	NewJSONResponse().Data(toExpenseResponse(deleted)).Write(w)
}

// handleMonthStatement lists what is due in ?year=&month=, defaulting to
// the current month.
func (s *Server) handleMonthStatement(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	st, err := s.expenses.MonthStatement(r.Context(), params.Year, params.Month)
	if err != nil {
		writeError(w, r, "month statement", err)
		return
	}
	NewJSONResponse().Data(toStatementResponse(st)).Write(w)
}
