package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"despesas/internal/amqp"
	"despesas/internal/core"
	"despesas/internal/sheets"
	"despesas/internal/storage"
)

// ExpenseReader is the read side of the expense store.
type ExpenseReader interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
}

// Observer counts export outcomes. *metrics.Metrics implements it.
type Observer interface {
	Exported(ok bool)
}

// ExportWorker mirrors expense schedules to an exporter. Events drive it;
// a periodic full resync repairs anything a lost message left behind.
type ExportWorker struct {
	repo     ExpenseReader
	exporter sheets.ScheduleExporter
	observer Observer
	interval time.Duration

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportWorker(repo ExpenseReader, exporter sheets.ScheduleExporter, observer Observer, resyncInterval time.Duration) *ExportWorker {
	return &ExportWorker{
		repo:     repo,
		exporter: exporter,
		observer: observer,
		interval: resyncInterval,
	}
}

// HandleEvent processes one AMQP schedule event. Its signature matches
// amqp.Handler.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.ScheduleEvent) error {
	slog.InfoContext(ctx, "Processing schedule event",
		"type", ev.Type,
		"expense_id", ev.ExpenseID,
		"version", ev.Version)

	switch ev.Type {
	case amqp.TypeExpenseDeleted:
		return w.delete(ctx, ev.ExpenseID)

	case amqp.TypeScheduleChanged:
		e, err := w.repo.GetExpense(ctx, ev.ExpenseID)
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted after the event was published.
			return w.delete(ctx, ev.ExpenseID)
		}
		if err != nil {
			return fmt.Errorf("get expense from storage: %w", err)
		}
		if e.Version < ev.Version {
			slog.WarnContext(ctx, "Stored expense is older than event",
				"expense_id", e.ID,
				"stored_version", e.Version,
				"event_version", ev.Version)
		}
		return w.export(ctx, e)

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func (w *ExportWorker) export(ctx context.Context, e core.Expense) error {
	err := w.exporter.ExportSchedule(ctx, e)
	w.observe(err == nil)
	if err != nil {
		return fmt.Errorf("export schedule of expense %d: %w", e.ID, err)
	}
	return nil
}

func (w *ExportWorker) delete(ctx context.Context, id int64) error {
	err := w.exporter.DeleteSchedule(ctx, id)
	w.observe(err == nil)
	if err != nil {
		return fmt.Errorf("delete schedule of expense %d: %w", id, err)
	}
	return nil
}

func (w *ExportWorker) observe(ok bool) {
	if w.observer != nil {
		w.observer.Exported(ok)
	}
}

// ResyncAll exports every stored expense. Individual failures are logged
// and counted; the first one is returned after the pass completes.
func (w *ExportWorker) ResyncAll(ctx context.Context) (int, error) {
	list, err := w.repo.ListExpenses(ctx)
	if err != nil {
		return 0, fmt.Errorf("list expenses: %w", err)
	}

	var firstErr error
	synced := 0
	for _, e := range list {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := w.export(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to resync expense", "expense_id", e.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Resync completed",
		"total", len(list),
		"synced", synced,
		"errors", len(list)-synced)
	return synced, firstErr
}

// Start runs a resync immediately and then every interval until Stop or
// ctx is done. Returns an error if already running.
func (w *ExportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("export worker is already running")
	}
	if w.interval <= 0 {
		w.mu.Unlock()
		return fmt.Errorf("invalid resync interval %s", w.interval)
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Export worker started", "resync_interval", w.interval)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (w *ExportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export worker stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export worker stop timed out")
		return ctx.Err()
	}
}

func (w *ExportWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ExportWorker) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.resync(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.resync(ctx)
		}
	}
}

func (w *ExportWorker) resync(ctx context.Context) {
	if _, err := w.ResyncAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "Periodic resync failed", "error", err)
	}
}
