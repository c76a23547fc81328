package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"profitloss/internal/amqp"
	"profitloss/internal/core"
	"profitloss/internal/sheets/memory"
	"profitloss/internal/storage"
)

func newWorkerFixture(t *testing.T) (*SyncWorker, *storage.SQLiteRepository, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := memory.New()
	return NewSyncWorker(repo, store, 10), repo, store
}

func seedTransaction(t *testing.T, repo *storage.SQLiteRepository) *core.Transaction {
	t.Helper()
	ctx := context.Background()
	cat, err := repo.CreateCategory(ctx, core.Category{Name: "Salary", Type: core.Income})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	acc, err := repo.CreateAccount(ctx, core.Account{CategoryID: cat.ID, Code: "401", Name: "Gaji Karyawan"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	day, _ := core.ParseDate("2022-01-01")
	tx, err := repo.CreateTransaction(ctx, core.Transaction{
		AccountID:   acc.ID,
		Date:        day,
		Description: "Gaji Di Perusahaan A",
		Credit:      decimal.NewFromInt(5000000),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

func TestHandleSyncMessage(t *testing.T) {
	w, repo, store := newWorkerFixture(t)
	ctx := context.Background()
	tx := seedTransaction(t, repo)

	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(tx.ID, 1)); err != nil {
		t.Fatalf("handle message: %v", err)
	}

	entries := store.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 mirrored entry, got %d", len(entries))
	}
	e := entries[0]
	if e.AccountCode != "401" || e.Category != "Salary" || e.Date != "2022-01-01" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if !e.Credit.Equal(decimal.NewFromInt(5000000)) {
		t.Fatalf("credit = %s", e.Credit)
	}

	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected transaction marked synced, still pending: %+v", pending)
	}
}

func TestHandleSyncMessageMissingTransaction(t *testing.T) {
	w, _, store := newWorkerFixture(t)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewTransactionSyncMessage(9999, 1)); err == nil {
		t.Fatal("expected error for missing transaction")
	}
	if len(store.Entries()) != 0 {
		t.Fatal("nothing should be mirrored")
	}
}

func TestProcessPendingTransactions(t *testing.T) {
	w, repo, store := newWorkerFixture(t)
	ctx := context.Background()
	seedTransaction(t, repo)

	if err := w.ProcessPendingTransactions(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if len(store.Entries()) != 1 {
		t.Fatalf("expected 1 mirrored entry, got %d", len(store.Entries()))
	}

	// A second sweep finds nothing to do.
	if err := w.ProcessPendingTransactions(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(store.Entries()) != 1 {
		t.Fatal("second sweep should not mirror again")
	}
}

func TestSyncFailureMarksError(t *testing.T) {
	w, repo, store := newWorkerFixture(t)
	ctx := context.Background()
	tx := seedTransaction(t, repo)

	store.SetError(errors.New("quota exceeded"))
	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(tx.ID, 1)); err == nil {
		t.Fatal("expected append failure")
	}

	// The row leaves the pending set so the sweep does not retry it forever.
	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected error status, still pending: %+v", pending)
	}
}

func TestStartupSyncCheck(t *testing.T) {
	w, repo, store := newWorkerFixture(t)
	ctx := context.Background()
	seedTransaction(t, repo)

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("startup sync: %v", err)
	}
	if len(store.Entries()) != 1 {
		t.Fatalf("expected 1 mirrored entry, got %d", len(store.Entries()))
	}
}
