package storage

import (
	"context"
	"time"

	"despesas/internal/core"
)

const expenseColumns = `id, description, amount_cents, entry_date, classification, due_date,
       installment_count, category_id, payment_method_id, status, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExpense(row rowScanner) (Expense, error) {
	var i Expense
	err := row.Scan(
		&i.ID,
		&i.Description,
		&i.AmountCents,
		&i.EntryDate,
		&i.Classification,
		&i.DueDate,
		&i.InstallmentCount,
		&i.CategoryID,
		&i.PaymentMethodID,
		&i.Status,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createExpense = `-- name: CreateExpense :one
INSERT INTO expenses (
    description, amount_cents, entry_date, classification, due_date,
    installment_count, category_id, payment_method_id, status, version, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
RETURNING ` + expenseColumns

type CreateExpenseParams struct {
	Description      string
	AmountCents      int64
	EntryDate        core.Date
	Classification   int64
	DueDate          core.Date
	InstallmentCount int64
	CategoryID       int64
	PaymentMethodID  int64
	Status           bool
	Now              time.Time
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.Description,
		arg.AmountCents,
		arg.EntryDate,
		arg.Classification,
		arg.DueDate,
		arg.InstallmentCount,
		arg.CategoryID,
		arg.PaymentMethodID,
		arg.Status,
		arg.Now,
		arg.Now,
	)
	return scanExpense(row)
}

const updateExpense = `-- name: UpdateExpense :one
UPDATE expenses
SET description = ?, amount_cents = ?, entry_date = ?, classification = ?, due_date = ?,
    installment_count = ?, category_id = ?, payment_method_id = ?, status = ?,
    version = version + 1, updated_at = ?
WHERE id = ? AND version = ?
RETURNING ` + expenseColumns

type UpdateExpenseParams struct {
	ID               int64
	Version          int64
	Description      string
	AmountCents      int64
	EntryDate        core.Date
	Classification   int64
	DueDate          core.Date
	InstallmentCount int64
	CategoryID       int64
	PaymentMethodID  int64
	Status           bool
	Now              time.Time
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, updateExpense,
		arg.Description,
		arg.AmountCents,
		arg.EntryDate,
		arg.Classification,
		arg.DueDate,
		arg.InstallmentCount,
		arg.CategoryID,
		arg.PaymentMethodID,
		arg.Status,
		arg.Now,
		arg.ID,
		arg.Version,
	)
	return scanExpense(row)
}

const setExpenseStatus = `-- name: SetExpenseStatus :one
UPDATE expenses SET status = ?, version = version + 1, updated_at = ? WHERE id = ?
RETURNING ` + expenseColumns

func (q *Queries) SetExpenseStatus(ctx context.Context, id int64, status bool, now time.Time) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, setExpenseStatus, status, now, id))
}

const getExpense = `-- name: GetExpense :one
SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, id))
}

const listExpenses = `-- name: ListExpenses :many
SELECT ` + expenseColumns + ` FROM expenses ORDER BY entry_date DESC, id DESC`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		i, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteExpense = `-- name: DeleteExpense :execrows
DELETE FROM expenses WHERE id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertOccurrence = `-- name: InsertOccurrence :exec
INSERT INTO recurrence_occurrences (expense_id, year, month, due_date, amount_cents)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertOccurrence(ctx context.Context, arg RecurrenceOccurrence) error {
	_, err := q.db.ExecContext(ctx, insertOccurrence,
		arg.ExpenseID,
		arg.Year,
		arg.Month,
		arg.DueDate,
		arg.AmountCents,
	)
	return err
}

const deleteOccurrences = `-- name: DeleteOccurrences :execrows
DELETE FROM recurrence_occurrences WHERE expense_id = ?`

func (q *Queries) DeleteOccurrences(ctx context.Context, expenseID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteOccurrences, expenseID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listOccurrences = `-- name: ListOccurrences :many
SELECT expense_id, year, month, due_date, amount_cents
FROM recurrence_occurrences WHERE expense_id = ? ORDER BY year, month`

func (q *Queries) ListOccurrences(ctx context.Context, expenseID int64) ([]RecurrenceOccurrence, error) {
	rows, err := q.db.QueryContext(ctx, listOccurrences, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurrenceOccurrence
	for rows.Next() {
		var i RecurrenceOccurrence
		if err := rows.Scan(&i.ExpenseID, &i.Year, &i.Month, &i.DueDate, &i.AmountCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertInstallment = `-- name: InsertInstallment :exec
INSERT INTO installment_shares (expense_id, number, amount_cents, due_date)
VALUES (?, ?, ?, ?)`

func (q *Queries) InsertInstallment(ctx context.Context, arg InstallmentShare) error {
	_, err := q.db.ExecContext(ctx, insertInstallment,
		arg.ExpenseID,
		arg.Number,
		arg.AmountCents,
		arg.DueDate,
	)
	return err
}

const deleteInstallments = `-- name: DeleteInstallments :execrows
DELETE FROM installment_shares WHERE expense_id = ?`

func (q *Queries) DeleteInstallments(ctx context.Context, expenseID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteInstallments, expenseID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listInstallments = `-- name: ListInstallments :many
SELECT expense_id, number, amount_cents, due_date
FROM installment_shares WHERE expense_id = ? ORDER BY number`

func (q *Queries) ListInstallments(ctx context.Context, expenseID int64) ([]InstallmentShare, error) {
	rows, err := q.db.QueryContext(ctx, listInstallments, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InstallmentShare
	for rows.Next() {
		var i InstallmentShare
		if err := rows.Scan(&i.ExpenseID, &i.Number, &i.AmountCents, &i.DueDate); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// The three branches select what is due in the month: one-off expenses by
// entry date, occurrences by period and installment shares by due date.
const getMonthStatement = `-- name: GetMonthStatement :many
SELECT e.id, e.description, e.classification, e.category_id, e.status,
       e.entry_date AS due_date, e.amount_cents, 0 AS number, 0 AS installment_count
FROM expenses e
WHERE e.classification = 2 AND e.entry_date >= ?1 AND e.entry_date < ?2
UNION ALL
SELECT e.id, e.description, e.classification, e.category_id, e.status,
       o.due_date, o.amount_cents, 0, 0
FROM recurrence_occurrences o JOIN expenses e ON e.id = o.expense_id
WHERE o.year = ?3 AND o.month = ?4
UNION ALL
SELECT e.id, e.description, e.classification, e.category_id, e.status,
       s.due_date, s.amount_cents, s.number, e.installment_count
FROM installment_shares s JOIN expenses e ON e.id = s.expense_id
WHERE s.due_date >= ?1 AND s.due_date < ?2
ORDER BY 6, 1`

type GetMonthStatementParams struct {
	From  core.Date
	To    core.Date
	Year  int64
	Month int64
}

func (q *Queries) GetMonthStatement(ctx context.Context, arg GetMonthStatementParams) ([]StatementRow, error) {
	rows, err := q.db.QueryContext(ctx, getMonthStatement, arg.From, arg.To, arg.Year, arg.Month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StatementRow
	for rows.Next() {
		var i StatementRow
		if err := rows.Scan(
			&i.ExpenseID,
			&i.Description,
			&i.Classification,
			&i.CategoryID,
			&i.Status,
			&i.DueDate,
			&i.AmountCents,
			&i.InstallmentNumber,
			&i.InstallmentCount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (name, created_at) VALUES (?, ?) RETURNING id, name`

func (q *Queries) CreateCategory(ctx context.Context, name string, now time.Time) (Category, error) {
	var i Category
	err := q.db.QueryRowContext(ctx, createCategory, name, now).Scan(&i.ID, &i.Name)
	return i, err
}

const getCategory = `-- name: GetCategory :one
SELECT id, name FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id int64) (Category, error) {
	var i Category
	err := q.db.QueryRowContext(ctx, getCategory, id).Scan(&i.ID, &i.Name)
	return i, err
}

const listCategories = `-- name: ListCategories :many
SELECT id, name FROM categories ORDER BY name`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteCategory = `-- name: DeleteCategory :execrows
DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createPaymentMethod = `-- name: CreatePaymentMethod :one
INSERT INTO payment_methods (name, created_at) VALUES (?, ?) RETURNING id, name`

func (q *Queries) CreatePaymentMethod(ctx context.Context, name string, now time.Time) (PaymentMethod, error) {
	var i PaymentMethod
	err := q.db.QueryRowContext(ctx, createPaymentMethod, name, now).Scan(&i.ID, &i.Name)
	return i, err
}

const getPaymentMethod = `-- name: GetPaymentMethod :one
SELECT id, name FROM payment_methods WHERE id = ?`

func (q *Queries) GetPaymentMethod(ctx context.Context, id int64) (PaymentMethod, error) {
	var i PaymentMethod
	err := q.db.QueryRowContext(ctx, getPaymentMethod, id).Scan(&i.ID, &i.Name)
	return i, err
}

const listPaymentMethods = `-- name: ListPaymentMethods :many
SELECT id, name FROM payment_methods ORDER BY name`

func (q *Queries) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	rows, err := q.db.QueryContext(ctx, listPaymentMethods)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PaymentMethod
	for rows.Next() {
		var i PaymentMethod
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deletePaymentMethod = `-- name: DeletePaymentMethod :execrows
DELETE FROM payment_methods WHERE id = ?`

func (q *Queries) DeletePaymentMethod(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deletePaymentMethod, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
