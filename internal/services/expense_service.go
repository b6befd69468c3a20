package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"despesas/internal/core"
	"despesas/internal/schedule"
	"despesas/internal/storage"
)

// ErrValidation marks errors caused by the caller's input.
var ErrValidation = errors.New("validation failed")

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// ExpenseRepository is the persistence the expense service needs.
type ExpenseRepository interface {
	CreateExpense(ctx context.Context, e core.Expense, subs schedule.SubRecordSet) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense, plan schedule.Plan) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) (core.Expense, error)
	SetExpenseStatus(ctx context.Context, id int64, status bool) (core.Expense, error)
	ReadMonthStatement(ctx context.Context, year, month int) (core.MonthStatement, error)
}

// EventPublisher announces committed schedule changes.
type EventPublisher interface {
	PublishScheduleChanged(ctx context.Context, expenseID int64, classification string, version int64) error
	PublishExpenseDeleted(ctx context.Context, expenseID int64) error
}

// Observer receives counters about schedule work. *metrics.Metrics
// implements it.
type Observer interface {
	SubRecordsGenerated(occurrences, installments int)
	Reconciled(from, to string)
	PublishFailed(eventType string)
}

// StatementCache is invalidated after every committed expense write.
type StatementCache interface {
	Get(year, month int) (core.MonthStatement, bool)
	Generation() uint64
	Set(gen uint64, st core.MonthStatement) bool
	Invalidate()
}

// ExpenseService is the single path through which expenses and their
// schedules are written: normalize, generate or reconcile, persist, publish.
type ExpenseService struct {
	repo      ExpenseRepository
	publisher EventPublisher
	generator schedule.Generator
	observer  Observer
	cache     StatementCache
}

type Option func(*ExpenseService)

func WithPublisher(p EventPublisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithGenerator(g schedule.Generator) Option {
	return func(s *ExpenseService) { s.generator = g }
}

func WithObserver(o Observer) Option {
	return func(s *ExpenseService) { s.observer = o }
}

func WithStatementCache(c StatementCache) Option {
	return func(s *ExpenseService) { s.cache = c }
}

func NewExpenseService(repo ExpenseRepository, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		repo:      repo,
		generator: schedule.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateExpenseInput carries a new expense. Dates accept anything
// schedule.NormalizeDate accepts.
type CreateExpenseInput struct {
	Description      string
	Amount           core.Money
	EntryDate        any
	Classification   core.Classification
	DueDate          any
	InstallmentCount int
	CategoryID       int64
	PaymentMethodID  int64
	Status           *bool
}

// UpdateExpenseInput carries a partial update. Nil fields keep the stored
// value; a nil or blank DueDate keeps the stored due date.
type UpdateExpenseInput struct {
	Description      *string
	Amount           *core.Money
	EntryDate        any
	Classification   *core.Classification
	DueDate          any
	InstallmentCount *int
	CategoryID       *int64
	PaymentMethodID  *int64
	Status           *bool
}

// CreateExpense validates the input, generates the schedule and stores both
// in one transaction. A generation failure never reaches the store.
func (s *ExpenseService) CreateExpense(ctx context.Context, in CreateExpenseInput) (core.Expense, error) {
	if !in.Classification.IsValid() {
		return core.Expense{}, invalid(fmt.Errorf("%w: %d", core.ErrInvalidClassification, int(in.Classification)))
	}

	entry, err := schedule.NormalizeDate(in.EntryDate)
	if err != nil {
		return core.Expense{}, invalid(fmt.Errorf("entry date: %w", err))
	}

	e := core.Expense{
		Description:     strings.TrimSpace(in.Description),
		Amount:          in.Amount,
		EntryDate:       entry,
		Classification:  in.Classification,
		CategoryID:      in.CategoryID,
		PaymentMethodID: in.PaymentMethodID,
		Status:          true,
	}
	if in.Status != nil {
		e.Status = *in.Status
	}

	if e.Classification != core.OneOff {
		due, err := schedule.NormalizeDate(in.DueDate)
		if err != nil {
			if errors.Is(err, schedule.ErrMissingAnchorDate) {
				return core.Expense{}, invalid(core.ErrMissingDueDate)
			}
			return core.Expense{}, invalid(fmt.Errorf("due date: %w", err))
		}
		e.DueDate = due
	}
	if e.Classification == core.Installment {
		e.InstallmentCount = in.InstallmentCount
	}

	if err := e.Validate(); err != nil {
		return core.Expense{}, invalid(err)
	}

	subs, err := s.generator.Generate(0, e.Classification, attributesOf(e))
	if err != nil {
		return core.Expense{}, invalid(err)
	}

	created, err := s.repo.CreateExpense(ctx, e, subs)
	if err != nil {
		return core.Expense{}, s.storeError("create expense", err)
	}

	s.afterWrite(ctx)
	if s.observer != nil {
		s.observer.SubRecordsGenerated(len(subs.Occurrences), len(subs.Installments))
	}
	s.publishChanged(ctx, created)

	slog.InfoContext(ctx, "Expense created",
		"expense_id", created.ID,
		"classification", created.Classification.String(),
		"sub_records", subs.Len())

	return created, nil
}

// UpdateExpense merges in over the stored expense and reconciles the
// schedule with the merged values.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, in UpdateExpenseInput) (core.Expense, error) {
	existing, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, s.storeError("load expense", err)
	}

	merged, err := mergeUpdate(existing, in)
	if err != nil {
		return core.Expense{}, invalid(err)
	}
	if err := merged.Validate(); err != nil {
		return core.Expense{}, invalid(err)
	}

	plan, err := s.generator.Reconcile(id, existing.Classification, merged.Classification, attributesOf(merged))
	if err != nil {
		return core.Expense{}, invalid(err)
	}

	updated, err := s.repo.UpdateExpense(ctx, merged, plan)
	if err != nil {
		return core.Expense{}, s.storeError("update expense", err)
	}

	s.afterWrite(ctx)
	if s.observer != nil {
		s.observer.Reconciled(existing.Classification.String(), merged.Classification.String())
		s.observer.SubRecordsGenerated(len(plan.ToInsert.Occurrences), len(plan.ToInsert.Installments))
	}
	s.publishChanged(ctx, updated)

	slog.InfoContext(ctx, "Expense updated",
		"expense_id", id,
		"from", existing.Classification.String(),
		"to", merged.Classification.String(),
		"deleted_kinds", plan.ToDelete.String(),
		"inserted", plan.ToInsert.Len())

	return updated, nil
}

func mergeUpdate(e core.Expense, in UpdateExpenseInput) (core.Expense, error) {
	if in.Description != nil {
		e.Description = strings.TrimSpace(*in.Description)
	}
	if in.Amount != nil {
		e.Amount = *in.Amount
	}
	if in.EntryDate != nil {
		d, err := schedule.NormalizeDate(in.EntryDate)
		if err != nil && !errors.Is(err, schedule.ErrMissingAnchorDate) {
			return e, fmt.Errorf("entry date: %w", err)
		}
		if err == nil {
			e.EntryDate = d
		}
	}
	if in.Classification != nil {
		if !in.Classification.IsValid() {
			return e, fmt.Errorf("%w: %d", core.ErrInvalidClassification, int(*in.Classification))
		}
		e.Classification = *in.Classification
	}
	if in.DueDate != nil {
		d, err := schedule.NormalizeDate(in.DueDate)
		if err != nil && !errors.Is(err, schedule.ErrMissingAnchorDate) {
			return e, fmt.Errorf("due date: %w", err)
		}
		if err == nil {
			e.DueDate = d
		}
	}
	if in.InstallmentCount != nil {
		e.InstallmentCount = *in.InstallmentCount
	}
	if in.CategoryID != nil {
		e.CategoryID = *in.CategoryID
	}
	if in.PaymentMethodID != nil {
		e.PaymentMethodID = *in.PaymentMethodID
	}
	if in.Status != nil {
		e.Status = *in.Status
	}

	switch e.Classification {
	case core.OneOff:
		e.DueDate = core.Date{}
		e.InstallmentCount = 0
	case core.Recurring:
		e.InstallmentCount = 0
	}
	e.Occurrences, e.Installments = nil, nil
	return e, nil
}

func attributesOf(e core.Expense) schedule.Attributes {
	return schedule.Attributes{
		Amount:           e.Amount,
		DueDate:          e.DueDate,
		InstallmentCount: e.InstallmentCount,
	}
}

// SetStatus toggles the settled flag.
func (s *ExpenseService) SetStatus(ctx context.Context, id int64, status bool) (core.Expense, error) {
	e, err := s.repo.SetExpenseStatus(ctx, id, status)
	if err != nil {
		return core.Expense{}, s.storeError("set status", err)
	}
	s.afterWrite(ctx)
	s.publishChanged(ctx, e)
	return e, nil
}

// DeleteExpense removes the expense and its schedule, returning what was
// deleted.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) (core.Expense, error) {
	deleted, err := s.repo.DeleteExpense(ctx, id)
	if err != nil {
		return core.Expense{}, s.storeError("delete expense", err)
	}

	s.afterWrite(ctx)
	if s.publisher != nil {
		if err := s.publisher.PublishExpenseDeleted(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to publish delete message", "expense_id", id, "error", err)
			if s.observer != nil {
				s.observer.PublishFailed("expense.deleted")
			}
		}
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", id)
	return deleted, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, s.storeError("get expense", err)
	}
	return e, nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	list, err := s.repo.ListExpenses(ctx)
	if err != nil {
		return nil, s.storeError("list expenses", err)
	}
	return list, nil
}

// MonthStatement returns what is due in year/month, served from the cache
// when possible.
func (s *ExpenseService) MonthStatement(ctx context.Context, year, month int) (core.MonthStatement, error) {
	if month < 1 || month > 12 {
		return core.MonthStatement{}, invalid(core.ErrInvalidMonth)
	}
	if year < 1 || year > 9999 {
		return core.MonthStatement{}, invalid(errors.New("invalid year"))
	}
	var gen uint64
	if s.cache != nil {
		if st, ok := s.cache.Get(year, month); ok {
			return st, nil
		}
		gen = s.cache.Generation()
	}
	st, err := s.repo.ReadMonthStatement(ctx, year, month)
	if err != nil {
		return core.MonthStatement{}, s.storeError("month statement", err)
	}
	if s.cache != nil && !s.cache.Set(gen, st) {
		slog.DebugContext(ctx, "Statement changed during read, not caching", "year", year, "month", month)
	}
	return st, nil
}

func (s *ExpenseService) afterWrite(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate()
		slog.DebugContext(ctx, "Statement cache invalidated")
	}
}

func (s *ExpenseService) publishChanged(ctx context.Context, e core.Expense) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping schedule message")
		return
	}
	if err := s.publisher.PublishScheduleChanged(ctx, e.ID, e.Classification.String(), e.Version); err != nil {
		// The write is committed; the worker's resync covers lost events.
		slog.ErrorContext(ctx, "Failed to publish schedule message",
			"expense_id", e.ID, "version", e.Version, "error", err)
		if s.observer != nil {
			s.observer.PublishFailed("schedule.changed")
		}
	}
}

func (s *ExpenseService) storeError(op string, err error) error {
	if errors.Is(err, storage.ErrUnknownReference) {
		return invalid(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
