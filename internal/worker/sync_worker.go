package worker

import (
	"context"
	"fmt"
	"log/slog"

	"profitloss/internal/amqp"
	"profitloss/internal/log"
	"profitloss/internal/sheets"
	"profitloss/internal/storage"
)

// SyncWorker mirrors ledger transactions from SQLite to Google Sheets.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	ledger    sheets.LedgerWriter
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, ledger sheets.LedgerWriter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		ledger:    ledger,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single transaction sync message from AMQP
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		log.FieldTransactionID, msg.ID,
		log.FieldVersion, msg.Version,
		log.FieldOperation, log.OpSync)

	if err := w.syncTransaction(ctx, msg.ID); err != nil {
		return fmt.Errorf("sync transaction to sheets: %w", err)
	}
	return nil
}

// ProcessPendingTransactions processes transactions that haven't been synced
// yet. This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingTransactions(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, p := range pending {
		if err := w.syncTransaction(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction", "id", p.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupSyncCheck drains transactions left pending across restarts, in a
// larger batch than the periodic sweep.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncTransactions(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, p := range pending {
		if err := w.syncTransaction(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction during startup",
				"id", p.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}

// syncTransaction loads the transaction with its account and category, appends
// it to the ledger sheet and records the outcome in sync_status.
func (w *SyncWorker) syncTransaction(ctx context.Context, id int64) error {
	tx, err := w.storage.GetTransaction(ctx, id)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	entry := sheets.Entry{
		ID:          tx.ID,
		Date:        tx.Date.String(),
		AccountCode: tx.AccountCode,
		AccountName: tx.AccountName,
		Category:    tx.CategoryName,
		Description: tx.Description,
		Debit:       tx.Debit,
		Credit:      tx.Credit,
	}

	ref, err := w.ledger.AppendTransaction(ctx, entry)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append transaction: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}

	slog.InfoContext(ctx, "Transaction synced to sheets",
		log.FieldTransactionID, id,
		log.FieldSheetsRef, ref)
	return nil
}
