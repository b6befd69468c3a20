package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"despesas/internal/cache"
	"despesas/internal/core"
	"despesas/internal/schedule"
	"despesas/internal/storage"
)

type fakeRepo struct {
	mu         sync.Mutex
	nextID     int64
	expenses   map[int64]core.Expense
	creates    int
	updates    int
	statements int
	failUpdate error
	lastPlan   schedule.Plan
	holdRead   func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{expenses: make(map[int64]core.Expense)}
}

func (r *fakeRepo) CreateExpense(_ context.Context, e core.Expense, subs schedule.SubRecordSet) (core.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.CategoryID == 404 {
		return core.Expense{}, fmt.Errorf("insert: %w", storage.ErrUnknownReference)
	}
	r.nextID++
	r.creates++
	e.ID = r.nextID
	e.Version = 1
	stamped := subs.WithExpenseID(e.ID)
	e.Occurrences, e.Installments = stamped.Occurrences, stamped.Installments
	r.expenses[e.ID] = e
	return e, nil
}

func (r *fakeRepo) UpdateExpense(_ context.Context, e core.Expense, plan schedule.Plan) (core.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return core.Expense{}, r.failUpdate
	}
	old, ok := r.expenses[e.ID]
	if !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	if e.Version != old.Version {
		return core.Expense{}, storage.ErrVersionConflict
	}
	r.updates++
	r.lastPlan = plan
	if plan.ClearDueDate {
		e.DueDate = core.Date{}
	}
	set := plan.Apply(schedule.SubRecordSet{Occurrences: old.Occurrences, Installments: old.Installments})
	stamped := set.WithExpenseID(e.ID)
	e.Occurrences, e.Installments = stamped.Occurrences, stamped.Installments
	e.Version = old.Version + 1
	r.expenses[e.ID] = e
	return e, nil
}

func (r *fakeRepo) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.expenses[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, storage.ErrNotFound)
	}
	return e, nil
}

func (r *fakeRepo) ListExpenses(context.Context) ([]core.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.Expense
	for _, e := range r.expenses {
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeRepo) DeleteExpense(_ context.Context, id int64) (core.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.expenses[id]
	if !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	delete(r.expenses, id)
	return e, nil
}

func (r *fakeRepo) SetExpenseStatus(_ context.Context, id int64, status bool) (core.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.expenses[id]
	if !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	e.Status = status
	e.Version++
	r.expenses[id] = e
	return e, nil
}

// ReadMonthStatement totals every stored amount. holdRead, when set, runs
// once after the snapshot is taken.
func (r *fakeRepo) ReadMonthStatement(_ context.Context, year, month int) (core.MonthStatement, error) {
	r.mu.Lock()
	r.statements++
	var total int64
	for _, e := range r.expenses {
		total += e.Amount.Cents
	}
	hold := r.holdRead
	r.holdRead = nil
	r.mu.Unlock()

	if hold != nil {
		hold()
	}
	return core.MonthStatement{Year: year, Month: month, Total: core.Money{Cents: total}}, nil
}

type publishedEvent struct {
	kind    string
	id      int64
	class   string
	version int64
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (p *fakePublisher) PublishScheduleChanged(_ context.Context, id int64, class string, version int64) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{"changed", id, class, version})
	return nil
}

func (p *fakePublisher) PublishExpenseDeleted(_ context.Context, id int64) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{"deleted", id, "", 0})
	return nil
}

type fakeObserver struct {
	occurrences, installments, publishFailures int
	transitions                                []string
}

func (o *fakeObserver) SubRecordsGenerated(occ, inst int) {
	o.occurrences += occ
	o.installments += inst
}
func (o *fakeObserver) Reconciled(from, to string) { o.transitions = append(o.transitions, from+"->"+to) }
func (o *fakeObserver) PublishFailed(string)       { o.publishFailures++ }

func ptr[T any](v T) *T { return &v }

func recurringInput() CreateExpenseInput {
	return CreateExpenseInput{
		Description:     "Academia",
		Amount:          core.Money{Cents: 9990},
		EntryDate:       "2025-01-05",
		Classification:  core.Recurring,
		DueDate:         "2025-01-31T00:00:00.000Z",
		CategoryID:      1,
		PaymentMethodID: 1,
	}
}

func TestCreateRecurringExpense(t *testing.T) {
	repo, pub, obs := newFakeRepo(), &fakePublisher{}, &fakeObserver{}
	svc := NewExpenseService(repo, WithPublisher(pub), WithObserver(obs))

	e, err := svc.CreateExpense(context.Background(), recurringInput())
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.ID)
	assert.True(t, e.Status, "status defaults to true")
	assert.Equal(t, core.NewDate(2025, 1, 31), e.DueDate)
	require.Len(t, e.Occurrences, 12)
	assert.Equal(t, core.NewDate(2025, 2, 28), e.Occurrences[1].DueDate)
	for _, o := range e.Occurrences {
		assert.Equal(t, e.ID, o.ExpenseID)
	}

	assert.Equal(t, 12, obs.occurrences)
	require.Len(t, pub.events, 1)
	assert.Equal(t, publishedEvent{"changed", 1, "RECURRING", 1}, pub.events[0])
}

func TestCreateExpenseValidation(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*CreateExpenseInput)
		want error
	}{
		{"missing due date", func(in *CreateExpenseInput) { in.DueDate = nil }, core.ErrMissingDueDate},
		{"bad due date", func(in *CreateExpenseInput) { in.DueDate = "31/02/2025" }, schedule.ErrInvalidDate},
		{"missing entry date", func(in *CreateExpenseInput) { in.EntryDate = "" }, schedule.ErrMissingAnchorDate},
		{"installment count", func(in *CreateExpenseInput) {
			in.Classification = core.Installment
			in.InstallmentCount = 1
		}, core.ErrInvalidInstallments},
		{"classification", func(in *CreateExpenseInput) { in.Classification = 0 }, core.ErrInvalidClassification},
		{"amount", func(in *CreateExpenseInput) { in.Amount = core.Money{} }, core.ErrInvalidAmount},
		{"description", func(in *CreateExpenseInput) { in.Description = "  " }, core.ErrEmptyDescription},
		{"unknown category", func(in *CreateExpenseInput) { in.CategoryID = 404 }, storage.ErrUnknownReference},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo()
			svc := NewExpenseService(repo)
			in := recurringInput()
			tc.mut(&in)

			_, err := svc.CreateExpense(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorIs(t, err, tc.want)
			if tc.want != storage.ErrUnknownReference {
				assert.Zero(t, repo.creates, "nothing is written when validation or generation fails")
			}
		})
	}
}

func TestCreateOneOffIgnoresDueDate(t *testing.T) {
	svc := NewExpenseService(newFakeRepo())
	in := recurringInput()
	in.Classification = core.OneOff
	in.InstallmentCount = 5

	e, err := svc.CreateExpense(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, e.DueDate.IsZero())
	assert.Zero(t, e.InstallmentCount)
	assert.Empty(t, e.Occurrences)
	assert.Empty(t, e.Installments)
}

func TestUpdateTransitions(t *testing.T) {
	ctx := context.Background()
	repo, pub, obs := newFakeRepo(), &fakePublisher{}, &fakeObserver{}
	svc := NewExpenseService(repo, WithPublisher(pub), WithObserver(obs))

	e, err := svc.CreateExpense(ctx, recurringInput())
	require.NoError(t, err)

	// RECURRING -> ONE_OFF drops occurrences and the due date.
	e, err = svc.UpdateExpense(ctx, e.ID, UpdateExpenseInput{Classification: ptr(core.OneOff)})
	require.NoError(t, err)
	assert.Empty(t, e.Occurrences)
	assert.True(t, e.DueDate.IsZero())
	assert.True(t, repo.lastPlan.ClearDueDate)

	// ONE_OFF -> INSTALLMENT needs a due date and a count.
	_, err = svc.UpdateExpense(ctx, e.ID, UpdateExpenseInput{Classification: ptr(core.Installment), InstallmentCount: ptr(3)})
	assert.ErrorIs(t, err, core.ErrMissingDueDate)

	e, err = svc.UpdateExpense(ctx, e.ID, UpdateExpenseInput{
		Classification:   ptr(core.Installment),
		Amount:           ptr(core.Money{Cents: 100000}),
		DueDate:          "2025-03-10",
		InstallmentCount: ptr(3),
	})
	require.NoError(t, err)
	require.Len(t, e.Installments, 3)
	assert.Equal(t, int64(33333), e.Installments[2].Amount.Cents)
	assert.Empty(t, e.Occurrences)

	// Changing only the amount regenerates the shares; the due date is kept.
	e, err = svc.UpdateExpense(ctx, e.ID, UpdateExpenseInput{Amount: ptr(core.Money{Cents: 90000}), DueDate: ""})
	require.NoError(t, err)
	require.Len(t, e.Installments, 3)
	assert.Equal(t, int64(30000), e.Installments[0].Amount.Cents)
	assert.Equal(t, core.NewDate(2025, 3, 10), e.DueDate)

	// INSTALLMENT -> RECURRING replaces shares with occurrences.
	e, err = svc.UpdateExpense(ctx, e.ID, UpdateExpenseInput{Classification: ptr(core.Recurring)})
	require.NoError(t, err)
	assert.Empty(t, e.Installments)
	assert.Len(t, e.Occurrences, 12)
	assert.Zero(t, e.InstallmentCount)

	assert.Equal(t, []string{"RECURRING->ONE_OFF", "ONE_OFF->INSTALLMENT", "INSTALLMENT->INSTALLMENT", "INSTALLMENT->RECURRING"}, obs.transitions)
	assert.Len(t, pub.events, 5)
}

func TestUpdateFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewExpenseService(repo)
	e, err := svc.CreateExpense(ctx, recurringInput())
	require.NoError(t, err)

	repo.failUpdate = errors.New("disk full")
	_, err = svc.UpdateExpense(ctx, e.ID, UpdateExpenseInput{Classification: ptr(core.OneOff)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)

	got, err := svc.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.Occurrences, 12)

	_, err = svc.UpdateExpense(ctx, 999, UpdateExpenseInput{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{err: errors.New("circuit breaker is open")}
	obs := &fakeObserver{}
	svc := NewExpenseService(newFakeRepo(), WithPublisher(pub), WithObserver(obs))

	e, err := svc.CreateExpense(ctx, recurringInput())
	require.NoError(t, err)
	_, err = svc.DeleteExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, obs.publishFailures)
}

func TestDeleteAndStatus(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewExpenseService(newFakeRepo(), WithPublisher(pub))

	e, err := svc.CreateExpense(ctx, recurringInput())
	require.NoError(t, err)

	e, err = svc.SetStatus(ctx, e.ID, false)
	require.NoError(t, err)
	assert.False(t, e.Status)

	deleted, err := svc.DeleteExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, deleted.ID)
	assert.Len(t, deleted.Occurrences, 12)
	assert.Equal(t, "deleted", pub.events[len(pub.events)-1].kind)

	_, err = svc.DeleteExpense(ctx, e.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMonthStatementCache(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	sc := cache.NewStatementCache(10, time.Minute, nil)
	svc := NewExpenseService(repo, WithStatementCache(sc))

	_, err := svc.MonthStatement(ctx, 2025, 3)
	require.NoError(t, err)
	_, err = svc.MonthStatement(ctx, 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.statements, "second read is served from cache")

	_, err = svc.CreateExpense(ctx, recurringInput())
	require.NoError(t, err)
	_, err = svc.MonthStatement(ctx, 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.statements, "writes invalidate the cache")

	_, err = svc.MonthStatement(ctx, 2025, 13)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMonthStatementReadAcrossWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	sc := cache.NewStatementCache(10, time.Minute, nil)
	svc := NewExpenseService(repo, WithStatementCache(sc))

	started := make(chan struct{})
	release := make(chan struct{})
	repo.holdRead = func() {
		close(started)
		<-release
	}

	done := make(chan core.MonthStatement, 1)
	go func() {
		st, err := svc.MonthStatement(ctx, 2025, 3)
		assert.NoError(t, err)
		done <- st
	}()

	<-started
	created, err := svc.CreateExpense(ctx, recurringInput())
	require.NoError(t, err)
	close(release)
	assert.Zero(t, (<-done).Total.Cents, "the overlapping read saw the store before the write")

	st, err := svc.MonthStatement(ctx, 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, created.Amount.Cents, st.Total.Cents)
	assert.Equal(t, 2, repo.statements)
}

func TestUpdateExpenseVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	pub := &fakePublisher{}
	svc := NewExpenseService(repo, WithPublisher(pub))

	created, err := svc.CreateExpense(ctx, recurringInput())
	require.NoError(t, err)
	require.Len(t, pub.events, 1)

	repo.failUpdate = fmt.Errorf("update expense %d: %w", created.ID, storage.ErrVersionConflict)
	_, err = svc.UpdateExpense(ctx, created.ID, UpdateExpenseInput{Classification: ptr(core.OneOff)})
	require.ErrorIs(t, err, storage.ErrVersionConflict)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Len(t, pub.events, 1, "nothing is published for a rejected write")
}
