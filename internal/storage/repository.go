package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"despesas/internal/core"
	"despesas/internal/schedule"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// inTx runs fn in a transaction, rolling back when fn fails.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateExpense stores e and its sub-records in one transaction. The
// sub-records are stamped with the new expense id.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense, subs schedule.SubRecordSet) (core.Expense, error) {
	var created core.Expense
	err := r.inTx(ctx, func(q *Queries) error {
		row, err := q.CreateExpense(ctx, CreateExpenseParams{
			Description:      e.Description,
			AmountCents:      e.Amount.Cents,
			EntryDate:        e.EntryDate,
			Classification:   int64(e.Classification),
			DueDate:          e.DueDate,
			InstallmentCount: int64(e.InstallmentCount),
			CategoryID:       e.CategoryID,
			PaymentMethodID:  e.PaymentMethodID,
			Status:           e.Status,
			Now:              r.now(),
		})
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrUnknownReference
			}
			return fmt.Errorf("insert expense: %w", err)
		}
		stamped := subs.WithExpenseID(row.ID)
		if err := insertSubRecords(ctx, q, stamped); err != nil {
			return err
		}
		created = expenseFromRow(row)
		created.Occurrences = stamped.Occurrences
		created.Installments = stamped.Installments
		return nil
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", created.ID,
		"classification", created.Classification.String(),
		"amount_cents", created.Amount.Cents,
		"sub_records", len(created.Occurrences)+len(created.Installments))

	return created, nil
}

// UpdateExpense writes e and applies plan atomically: the expense row is
// updated, the plan's kinds are deleted and its rows inserted. e.Version
// must be the version plan was built from; ErrVersionConflict reports that
// another write got there first.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense, plan schedule.Plan) (core.Expense, error) {
	if plan.ClearDueDate {
		e.DueDate = core.Date{}
	}

	var updated core.Expense
	err := r.inTx(ctx, func(q *Queries) error {
		row, err := q.UpdateExpense(ctx, UpdateExpenseParams{
			ID:               e.ID,
			Version:          e.Version,
			Description:      e.Description,
			AmountCents:      e.Amount.Cents,
			EntryDate:        e.EntryDate,
			Classification:   int64(e.Classification),
			DueDate:          e.DueDate,
			InstallmentCount: int64(e.InstallmentCount),
			CategoryID:       e.CategoryID,
			PaymentMethodID:  e.PaymentMethodID,
			Status:           e.Status,
			Now:              r.now(),
		})
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrUnknownReference
			}
			if errors.Is(err, sql.ErrNoRows) {
				return staleOrMissing(ctx, q, e.ID)
			}
			return fmt.Errorf("update expense: %w", err)
		}

		if plan.ToDelete.Has(schedule.KindOccurrences) {
			if _, err := q.DeleteOccurrences(ctx, e.ID); err != nil {
				return fmt.Errorf("delete occurrences: %w", err)
			}
		}
		if plan.ToDelete.Has(schedule.KindInstallments) {
			if _, err := q.DeleteInstallments(ctx, e.ID); err != nil {
				return fmt.Errorf("delete installments: %w", err)
			}
		}
		if err := insertSubRecords(ctx, q, plan.ToInsert.WithExpenseID(e.ID)); err != nil {
			return err
		}

		updated, err = loadSubRecords(ctx, q, expenseFromRow(row))
		return err
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, err)
	}

	slog.InfoContext(ctx, "Expense updated",
		"id", updated.ID,
		"classification", updated.Classification.String(),
		"deleted_kinds", plan.ToDelete.String(),
		"inserted", plan.ToInsert.Len(),
		"version", updated.Version)

	return updated, nil
}

// staleOrMissing tells why a versioned update matched no row.
func staleOrMissing(ctx context.Context, q *Queries, id int64) error {
	if _, err := q.GetExpense(ctx, id); err != nil {
		return notFound(err)
	}
	return ErrVersionConflict
}

// SetExpenseStatus toggles the settled flag without touching sub-records.
func (r *SQLiteRepository) SetExpenseStatus(ctx context.Context, id int64, status bool) (core.Expense, error) {
	row, err := r.queries.SetExpenseStatus(ctx, id, status, r.now())
	if err != nil {
		return core.Expense{}, fmt.Errorf("set expense status %d: %w", id, notFound(err))
	}
	e, err := loadSubRecords(ctx, r.queries, expenseFromRow(row))
	if err != nil {
		return core.Expense{}, fmt.Errorf("set expense status %d: %w", id, err)
	}
	return e, nil
}

// GetExpense retrieves a single expense by ID with its sub-records.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, notFound(err))
	}
	e, err := loadSubRecords(ctx, r.queries, expenseFromRow(row))
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// ListExpenses returns every expense with its sub-records, newest first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := loadSubRecords(ctx, r.queries, expenseFromRow(row))
		if err != nil {
			return nil, fmt.Errorf("list expenses: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// DeleteExpense removes the expense; its sub-records cascade. The deleted
// expense is returned.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) (core.Expense, error) {
	var deleted core.Expense
	err := r.inTx(ctx, func(q *Queries) error {
		row, err := q.GetExpense(ctx, id)
		if err != nil {
			return notFound(err)
		}
		deleted, err = loadSubRecords(ctx, q, expenseFromRow(row))
		if err != nil {
			return err
		}
		n, err := q.DeleteExpense(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("delete expense %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return deleted, nil
}

// ReadMonthStatement lists what is due in year/month.
func (r *SQLiteRepository) ReadMonthStatement(ctx context.Context, year, month int) (core.MonthStatement, error) {
	st := core.MonthStatement{Year: year, Month: month}
	if month < 1 || month > 12 {
		return st, core.ErrInvalidMonth
	}
	nextYear, nextMonth := year, month+1
	if nextMonth > 12 {
		nextYear, nextMonth = year+1, 1
	}

	rows, err := r.queries.GetMonthStatement(ctx, GetMonthStatementParams{
		From:  core.NewDate(year, month, 1),
		To:    core.NewDate(nextYear, nextMonth, 1),
		Year:  int64(year),
		Month: int64(month),
	})
	if err != nil {
		return st, fmt.Errorf("get month statement: %w", err)
	}
	for _, row := range rows {
		st.Items = append(st.Items, core.StatementItem{
			ExpenseID:         row.ExpenseID,
			Description:       row.Description,
			Classification:    core.Classification(row.Classification),
			DueDate:           row.DueDate,
			Amount:            core.Money{Cents: row.AmountCents},
			InstallmentNumber: int(row.InstallmentNumber),
			InstallmentCount:  int(row.InstallmentCount),
			CategoryID:        row.CategoryID,
			Status:            row.Status,
		})
	}

	categories, err := r.queries.ListCategories(ctx)
	if err != nil {
		return st, fmt.Errorf("list categories: %w", err)
	}
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	st.Summarize(names)
	return st, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	row, err := r.queries.CreateCategory(ctx, strings.TrimSpace(name), r.now())
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("create category %q: %w", name, ErrDuplicateName)
		}
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return core.Category{ID: row.ID, Name: row.Name}, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row, err := r.queries.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, notFound(err))
	}
	return core.Category{ID: row.ID, Name: row.Name}, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.Category{ID: row.ID, Name: row.Name})
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteCategory(ctx, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("delete category %d: %w", id, ErrInUse)
		}
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete category %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) CreatePaymentMethod(ctx context.Context, name string) (core.PaymentMethod, error) {
	row, err := r.queries.CreatePaymentMethod(ctx, strings.TrimSpace(name), r.now())
	if err != nil {
		if isUniqueViolation(err) {
			return core.PaymentMethod{}, fmt.Errorf("create payment method %q: %w", name, ErrDuplicateName)
		}
		return core.PaymentMethod{}, fmt.Errorf("create payment method: %w", err)
	}
	return core.PaymentMethod{ID: row.ID, Name: row.Name}, nil
}

func (r *SQLiteRepository) GetPaymentMethod(ctx context.Context, id int64) (core.PaymentMethod, error) {
	row, err := r.queries.GetPaymentMethod(ctx, id)
	if err != nil {
		return core.PaymentMethod{}, fmt.Errorf("get payment method %d: %w", id, notFound(err))
	}
	return core.PaymentMethod{ID: row.ID, Name: row.Name}, nil
}

func (r *SQLiteRepository) ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	rows, err := r.queries.ListPaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	out := make([]core.PaymentMethod, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.PaymentMethod{ID: row.ID, Name: row.Name})
	}
	return out, nil
}

func (r *SQLiteRepository) DeletePaymentMethod(ctx context.Context, id int64) error {
	n, err := r.queries.DeletePaymentMethod(ctx, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("delete payment method %d: %w", id, ErrInUse)
		}
		return fmt.Errorf("delete payment method %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete payment method %d: %w", id, ErrNotFound)
	}
	return nil
}

func insertSubRecords(ctx context.Context, q *Queries, set schedule.SubRecordSet) error {
	for _, o := range set.Occurrences {
		err := q.InsertOccurrence(ctx, RecurrenceOccurrence{
			ExpenseID:   o.ExpenseID,
			Year:        int64(o.Year),
			Month:       int64(o.Month),
			DueDate:     o.DueDate,
			AmountCents: o.Amount.Cents,
		})
		if err != nil {
			return fmt.Errorf("insert occurrence %04d-%02d: %w", o.Year, o.Month, err)
		}
	}
	for _, s := range set.Installments {
		err := q.InsertInstallment(ctx, InstallmentShare{
			ExpenseID:   s.ExpenseID,
			Number:      int64(s.Number),
			AmountCents: s.Amount.Cents,
			DueDate:     s.DueDate,
		})
		if err != nil {
			return fmt.Errorf("insert installment %d: %w", s.Number, err)
		}
	}
	return nil
}

func loadSubRecords(ctx context.Context, q *Queries, e core.Expense) (core.Expense, error) {
	occ, err := q.ListOccurrences(ctx, e.ID)
	if err != nil {
		return e, fmt.Errorf("list occurrences: %w", err)
	}
	for _, o := range occ {
		e.Occurrences = append(e.Occurrences, core.RecurrenceOccurrence{
			ExpenseID: o.ExpenseID,
			Month:     int(o.Month),
			Year:      int(o.Year),
			DueDate:   o.DueDate,
			Amount:    core.Money{Cents: o.AmountCents},
		})
	}

	shares, err := q.ListInstallments(ctx, e.ID)
	if err != nil {
		return e, fmt.Errorf("list installments: %w", err)
	}
	for _, s := range shares {
		e.Installments = append(e.Installments, core.InstallmentShare{
			ExpenseID: s.ExpenseID,
			Number:    int(s.Number),
			Amount:    core.Money{Cents: s.AmountCents},
			DueDate:   s.DueDate,
		})
	}
	return e, nil
}

func expenseFromRow(row Expense) core.Expense {
	return core.Expense{
		ID:               row.ID,
		Description:      row.Description,
		Amount:           core.Money{Cents: row.AmountCents},
		EntryDate:        row.EntryDate,
		Classification:   core.Classification(row.Classification),
		DueDate:          row.DueDate,
		InstallmentCount: int(row.InstallmentCount),
		CategoryID:       row.CategoryID,
		PaymentMethodID:  row.PaymentMethodID,
		Status:           row.Status,
		Version:          row.Version,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}
