package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"despesas/internal/amqp"
	"despesas/internal/core"
	"despesas/internal/sheets/memory"
	"despesas/internal/storage"
)

type fakeReader struct {
	mu       sync.Mutex
	expenses map[int64]core.Expense
	lists    int
}

func (r *fakeReader) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.expenses[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, storage.ErrNotFound)
	}
	return e, nil
}

func (r *fakeReader) ListExpenses(context.Context) ([]core.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	out := make([]core.Expense, 0, len(r.expenses))
	for _, e := range r.expenses {
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeReader) listCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists
}

type countingObserver struct {
	mu       sync.Mutex
	ok, fail int
}

func (o *countingObserver) Exported(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ok {
		o.ok++
	} else {
		o.fail++
	}
}

type failingExporter struct{}

func (failingExporter) ExportSchedule(context.Context, core.Expense) error {
	return errors.New("quota exceeded")
}
func (failingExporter) DeleteSchedule(context.Context, int64) error { return errors.New("quota exceeded") }

func recurring(id int64) core.Expense {
	e := core.Expense{ID: id, Version: 2, Description: "Aluguel", Classification: core.Recurring}
	for m := 1; m <= 12; m++ {
		e.Occurrences = append(e.Occurrences, core.RecurrenceOccurrence{
			ExpenseID: id, Month: m, Year: 2025, DueDate: core.NewDate(2025, m, 5), Amount: core.Money{Cents: 150000},
		})
	}
	return e
}

func TestHandleScheduleChanged(t *testing.T) {
	ctx := context.Background()
	repo := &fakeReader{expenses: map[int64]core.Expense{1: recurring(1)}}
	store := memory.New()
	obs := &countingObserver{}
	w := NewExportWorker(repo, store, obs, time.Minute)

	require.NoError(t, w.HandleEvent(ctx, amqp.NewScheduleChanged(1, "RECURRING", 2)))
	assert.Len(t, store.Rows(1), 12)
	assert.Equal(t, 1, obs.ok)
}

func TestHandleChangedForMissingExpenseDeletes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.ExportSchedule(ctx, recurring(3)))

	w := NewExportWorker(&fakeReader{expenses: map[int64]core.Expense{}}, store, nil, time.Minute)
	require.NoError(t, w.HandleEvent(ctx, amqp.NewScheduleChanged(3, "RECURRING", 3)))
	assert.Empty(t, store.Rows(3))
}

func TestHandleExpenseDeleted(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.ExportSchedule(ctx, recurring(5)))

	w := NewExportWorker(&fakeReader{}, store, nil, time.Minute)
	require.NoError(t, w.HandleEvent(ctx, amqp.NewExpenseDeleted(5)))
	assert.Empty(t, store.ExpenseIDs())
}

func TestHandleEventErrors(t *testing.T) {
	ctx := context.Background()
	repo := &fakeReader{expenses: map[int64]core.Expense{1: recurring(1)}}
	obs := &countingObserver{}
	w := NewExportWorker(repo, failingExporter{}, obs, time.Minute)

	err := w.HandleEvent(ctx, amqp.NewScheduleChanged(1, "RECURRING", 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 1, obs.fail)

	err = w.HandleEvent(ctx, &amqp.ScheduleEvent{Type: "bogus", ExpenseID: 1})
	assert.Error(t, err)
}

func TestResyncAll(t *testing.T) {
	ctx := context.Background()
	repo := &fakeReader{expenses: map[int64]core.Expense{
		1: recurring(1),
		2: {ID: 2, Version: 1, Classification: core.OneOff, EntryDate: core.NewDate(2025, 4, 1), Amount: core.Money{Cents: 990}},
	}}
	store := memory.New()
	w := NewExportWorker(repo, store, nil, time.Minute)

	n, err := w.ResyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, store.ExpenseIDs())

	failing := NewExportWorker(repo, failingExporter{}, nil, time.Minute)
	n, err = failing.ResyncAll(ctx)
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	repo := &fakeReader{expenses: map[int64]core.Expense{1: recurring(1)}}
	store := memory.New()
	w := NewExportWorker(repo, store, nil, 10*time.Millisecond)

	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(ctx), "second start must fail")

	require.Eventually(t, func() bool { return repo.listCalls() >= 2 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
	assert.False(t, w.IsRunning())
	assert.Len(t, store.Rows(1), 12)

	require.NoError(t, w.Stop(stopCtx), "stop is idempotent")

	bad := NewExportWorker(repo, store, nil, 0)
	assert.Error(t, bad.Start(ctx))
}
