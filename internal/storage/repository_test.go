package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"despesas/internal/core"
	"despesas/internal/schedule"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedCatalog(t *testing.T, repo *SQLiteRepository) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	cat, err := repo.CreateCategory(ctx, "Assinaturas")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	pm, err := repo.CreatePaymentMethod(ctx, "Cartão corporativo")
	if err != nil {
		t.Fatalf("create payment method: %v", err)
	}
	return cat.ID, pm.ID
}

func recurringExpense(catID, pmID int64) core.Expense {
	return core.Expense{
		Description:     "Streaming",
		Amount:          core.Money{Cents: 3990},
		EntryDate:       core.NewDate(2025, 1, 5),
		Classification:  core.Recurring,
		DueDate:         core.NewDate(2025, 1, 31),
		CategoryID:      catID,
		PaymentMethodID: pmID,
		Status:          true,
	}
}

// createWithSchedule generates e's sub-records and stores both.
func createWithSchedule(t *testing.T, repo *SQLiteRepository, e core.Expense) core.Expense {
	t.Helper()
	subs, err := schedule.Generate(0, e.Classification, schedule.Attributes{
		Amount: e.Amount, DueDate: e.DueDate, InstallmentCount: e.InstallmentCount,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	created, err := repo.CreateExpense(context.Background(), e, subs)
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return created
}

func TestCreateExpenseStampsSubRecords(t *testing.T) {
	repo := newTestRepo(t)
	catID, pmID := seedCatalog(t, repo)

	created := createWithSchedule(t, repo, recurringExpense(catID, pmID))
	if created.ID == 0 || created.Version != 1 {
		t.Fatalf("created id=%d version=%d", created.ID, created.Version)
	}

	got, err := repo.GetExpense(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Occurrences) != 12 {
		t.Fatalf("occurrences = %d, want 12", len(got.Occurrences))
	}
	for _, o := range got.Occurrences {
		if o.ExpenseID != created.ID || o.Amount.Cents != 3990 {
			t.Errorf("occurrence %+v not stamped with expense %d", o, created.ID)
		}
	}
	if want := core.NewDate(2025, 2, 28); got.Occurrences[1].DueDate != want {
		t.Errorf("second due = %s, want %s", got.Occurrences[1].DueDate, want)
	}
	if want := core.NewDate(2025, 1, 31); got.DueDate != want || !got.Status {
		t.Errorf("due=%s status=%v", got.DueDate, got.Status)
	}
}

func TestCreateExpenseUnknownReference(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateExpense(context.Background(), recurringExpense(9999, 9999), schedule.SubRecordSet{})
	if !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("err = %v, want ErrUnknownReference", err)
	}
}

func TestUpdateExpenseAppliesPlan(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	catID, pmID := seedCatalog(t, repo)
	created := createWithSchedule(t, repo, recurringExpense(catID, pmID))

	plan, err := schedule.Reconcile(created.ID, core.Recurring, core.OneOff, schedule.Attributes{Amount: created.Amount})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	created.Classification = core.OneOff

	updated, err := repo.UpdateExpense(ctx, created, plan)
	if err != nil {
		t.Fatalf("update to one-off: %v", err)
	}
	if len(updated.Occurrences) != 0 || len(updated.Installments) != 0 {
		t.Errorf("one-off kept %d occurrences and %d installments", len(updated.Occurrences), len(updated.Installments))
	}
	if !updated.DueDate.IsZero() || updated.Version != 2 {
		t.Errorf("due=%s version=%d", updated.DueDate, updated.Version)
	}

	plan, err = schedule.Reconcile(created.ID, core.OneOff, core.Installment, schedule.Attributes{
		Amount: core.Money{Cents: 100000}, DueDate: core.NewDate(2025, 3, 10), InstallmentCount: 3,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	updated.Classification = core.Installment
	updated.Amount = core.Money{Cents: 100000}
	updated.DueDate = core.NewDate(2025, 3, 10)
	updated.InstallmentCount = 3

	updated, err = repo.UpdateExpense(ctx, updated, plan)
	if err != nil {
		t.Fatalf("update to installment: %v", err)
	}
	if len(updated.Installments) != 3 {
		t.Fatalf("installments = %d, want 3", len(updated.Installments))
	}
	if want := core.NewDate(2025, 5, 10); updated.Installments[2].DueDate != want {
		t.Errorf("third due = %s, want %s", updated.Installments[2].DueDate, want)
	}
	if updated.Installments[0].Amount.Cents != 33333 {
		t.Errorf("share = %d, want 33333", updated.Installments[0].Amount.Cents)
	}
}

func TestUpdateExpenseRollsBackOnFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	catID, pmID := seedCatalog(t, repo)
	created := createWithSchedule(t, repo, recurringExpense(catID, pmID))

	// Two shares with the same number violate the unique key mid-transaction.
	dup := core.InstallmentShare{Number: 1, Amount: core.Money{Cents: 10}, DueDate: core.NewDate(2025, 2, 1)}
	plan := schedule.Plan{
		ExpenseID: created.ID,
		ToDelete:  schedule.KindAll,
		ToInsert:  schedule.SubRecordSet{Installments: []core.InstallmentShare{dup, dup}},
	}
	changed := created
	changed.Description = "changed"
	changed.Classification = core.Installment
	changed.InstallmentCount = 2

	if _, err := repo.UpdateExpense(ctx, changed, plan); err == nil {
		t.Fatal("expected the duplicate share to fail the update")
	}

	got, err := repo.GetExpense(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Description != "Streaming" || got.Classification != core.Recurring || got.Version != 1 {
		t.Errorf("expense changed: %q %s v%d", got.Description, got.Classification, got.Version)
	}
	if len(got.Occurrences) != 12 || len(got.Installments) != 0 {
		t.Errorf("sub-records changed: %d occurrences, %d installments", len(got.Occurrences), len(got.Installments))
	}
}

func TestUpdateExpenseRejectsStalePlan(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	catID, pmID := seedCatalog(t, repo)
	created := createWithSchedule(t, repo, recurringExpense(catID, pmID))

	// Two writers read version 1. The first turns it into an installment.
	first := created
	first.Classification = core.Installment
	first.InstallmentCount = 4
	plan, err := schedule.Reconcile(created.ID, core.Recurring, core.Installment, schedule.Attributes{
		Amount: first.Amount, DueDate: first.DueDate, InstallmentCount: 4,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if _, err := repo.UpdateExpense(ctx, first, plan); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// The second still believes the expense is RECURRING.
	second := created
	second.Classification = core.OneOff
	stale := schedule.Plan{ExpenseID: created.ID, ToDelete: schedule.KindOccurrences, ClearDueDate: true}
	if _, err := repo.UpdateExpense(ctx, second, stale); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}

	got, err := repo.GetExpense(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Classification != core.Installment || got.Version != 2 {
		t.Errorf("got %s v%d, want INSTALLMENT v2", got.Classification, got.Version)
	}
	if len(got.Installments) != 4 || len(got.Occurrences) != 0 {
		t.Errorf("sub-records: %d installments, %d occurrences", len(got.Installments), len(got.Occurrences))
	}
}

func TestUpdateExpenseNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.UpdateExpense(context.Background(), core.Expense{ID: 42, Description: "x", Amount: core.Money{Cents: 1}}, schedule.Plan{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteExpenseCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	catID, pmID := seedCatalog(t, repo)
	created := createWithSchedule(t, repo, recurringExpense(catID, pmID))

	deleted, err := repo.DeleteExpense(ctx, created.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != created.ID || len(deleted.Occurrences) != 12 {
		t.Errorf("deleted id=%d occurrences=%d", deleted.ID, len(deleted.Occurrences))
	}

	occ, err := repo.queries.ListOccurrences(ctx, created.ID)
	if err != nil {
		t.Fatalf("list occurrences: %v", err)
	}
	if len(occ) != 0 {
		t.Errorf("%d occurrences survived the delete", len(occ))
	}

	if _, err := repo.GetExpense(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: %v", err)
	}
	if _, err := repo.DeleteExpense(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestSetExpenseStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	catID, pmID := seedCatalog(t, repo)

	created, err := repo.CreateExpense(ctx, recurringExpense(catID, pmID), schedule.SubRecordSet{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.SetExpenseStatus(ctx, created.ID, false)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if got.Status || got.Version != 2 {
		t.Errorf("status=%v version=%d", got.Status, got.Version)
	}

	if _, err := repo.SetExpenseStatus(ctx, 777, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCatalogRules(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	catID, pmID := seedCatalog(t, repo)

	if _, err := repo.CreateCategory(ctx, "assinaturas"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("names are unique regardless of case: %v", err)
	}
	if _, err := repo.CreatePaymentMethod(ctx, "Cartão corporativo"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate payment method: %v", err)
	}

	if _, err := repo.CreateExpense(ctx, recurringExpense(catID, pmID), schedule.SubRecordSet{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.DeleteCategory(ctx, catID); !errors.Is(err, ErrInUse) {
		t.Errorf("delete category in use: %v", err)
	}
	if err := repo.DeletePaymentMethod(ctx, pmID); !errors.Is(err, ErrInUse) {
		t.Errorf("delete payment method in use: %v", err)
	}
	if err := repo.DeleteCategory(ctx, 99999); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing category: %v", err)
	}

	extra, err := repo.CreateCategory(ctx, "Temporária")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if err := repo.DeleteCategory(ctx, extra.ID); err != nil {
		t.Fatalf("delete unused category: %v", err)
	}
	if _, err := repo.GetCategory(ctx, extra.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted category: %v", err)
	}

	cats, err := repo.ListCategories(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	found := false
	for _, c := range cats {
		if c == (core.Category{ID: catID, Name: "Assinaturas"}) {
			found = true
		}
	}
	if !found {
		t.Errorf("category %d missing from %+v", catID, cats)
	}
}

func TestReadMonthStatement(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	catID, pmID := seedCatalog(t, repo)

	// Recurring from January: one occurrence in March.
	createWithSchedule(t, repo, recurringExpense(catID, pmID))

	// One-off entered in March.
	createWithSchedule(t, repo, core.Expense{
		Description: "Farmácia", Amount: core.Money{Cents: 2500}, EntryDate: core.NewDate(2025, 3, 15),
		Classification: core.OneOff, CategoryID: catID, PaymentMethodID: pmID, Status: true,
	})

	// Installments from March 10: the first share falls in March.
	createWithSchedule(t, repo, core.Expense{
		Description: "Geladeira", Amount: core.Money{Cents: 100000}, EntryDate: core.NewDate(2025, 3, 1),
		Classification: core.Installment, DueDate: core.NewDate(2025, 3, 10), InstallmentCount: 3,
		CategoryID: catID, PaymentMethodID: pmID, Status: true,
	})

	st, err := repo.ReadMonthStatement(ctx, 2025, 3)
	if err != nil {
		t.Fatalf("march: %v", err)
	}
	if len(st.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(st.Items))
	}
	if want := int64(3990 + 2500 + 33333); st.Total.Cents != want {
		t.Errorf("total = %d, want %d", st.Total.Cents, want)
	}
	if len(st.ByCategory) != 1 || st.ByCategory[0].Name != "Assinaturas" {
		t.Errorf("by category = %+v", st.ByCategory)
	}

	var share core.StatementItem
	for _, it := range st.Items {
		if it.Classification == core.Installment {
			share = it
		}
	}
	if share.InstallmentNumber != 1 || share.InstallmentCount != 3 {
		t.Errorf("share %d/%d, want 1/3", share.InstallmentNumber, share.InstallmentCount)
	}

	st, err = repo.ReadMonthStatement(ctx, 2025, 12)
	if err != nil {
		t.Fatalf("december: %v", err)
	}
	if len(st.Items) != 1 {
		t.Errorf("december items = %d, want 1", len(st.Items))
	}

	st, err = repo.ReadMonthStatement(ctx, 2026, 1)
	if err != nil {
		t.Fatalf("january: %v", err)
	}
	if len(st.Items) != 0 || st.Total.Cents != 0 {
		t.Errorf("january: %d items, total %d", len(st.Items), st.Total.Cents)
	}

	if _, err := repo.ReadMonthStatement(ctx, 2025, 13); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("err = %v, want ErrInvalidMonth", err)
	}
}
