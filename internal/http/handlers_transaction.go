package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"profitloss/internal/core"
	"profitloss/internal/log"
	"profitloss/internal/storage"
)

type transactionRequest struct {
	CoaID  int64           `json:"coa_id"`
	Date   string          `json:"date"`
	Desc   string          `json:"desc"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

type transactionResponse struct {
	ID          int64             `json:"id"`
	CoaID       int64             `json:"coa_id"`
	Date        string            `json:"date"`
	Desc        string            `json:"desc"`
	Debit       decimal.Decimal   `json:"debit"`
	Credit      decimal.Decimal   `json:"credit"`
	AccountCode string            `json:"account_code,omitempty"`
	AccountName string            `json:"account_name,omitempty"`
	Category    string            `json:"category,omitempty"`
	Type        core.CategoryType `json:"category_type,omitempty"`
	Version     int64             `json:"version,omitempty"`
}

func (req *transactionRequest) toTransaction(id int64) (core.Transaction, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:          id,
		AccountID:   req.CoaID,
		Date:        date,
		Description: req.Desc,
		Debit:       req.Debit,
		Credit:      req.Credit,
	}, nil
}

func toTransactionResponse(t *storage.TransactionWithAccount) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		CoaID:       t.AccountID,
		Date:        t.Date.String(),
		Desc:        t.Description,
		Debit:       t.Debit,
		Credit:      t.Credit,
		AccountCode: t.AccountCode,
		AccountName: t.AccountName,
		Category:    t.CategoryName,
		Type:        t.CategoryType,
		Version:     t.Version,
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.store.ListTransactions(r.Context())
	if err != nil {
		respondStorageError(w, err)
		return
	}

	out := make([]transactionResponse, 0, len(transactions))
	for i := range transactions {
		out = append(out, toTransactionResponse(&transactions[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := req.toTransaction(0)
	if err != nil {
		respondValidationError(w, err)
		return
	}
	if err := tx.Validate(); err != nil {
		respondValidationError(w, err)
		return
	}

	created, err := s.store.CreateTransaction(r.Context(), tx)
	if err != nil {
		respondReferenceError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Transaction created",
		log.FieldTransactionID, created.ID,
		log.FieldAccountID, created.AccountID,
		log.FieldOperation, log.OpCreate)

	s.publishSync(r.Context(), created.ID, 1)

	full, err := s.store.GetTransaction(r.Context(), created.ID)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toTransactionResponse(full))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := req.toTransaction(id)
	if err != nil {
		respondValidationError(w, err)
		return
	}
	if err := tx.Validate(); err != nil {
		respondValidationError(w, err)
		return
	}

	// A missing path id is 404; a dangling coa_id in the body is 422.
	if _, err := s.store.GetTransaction(r.Context(), id); err != nil {
		respondStorageError(w, err)
		return
	}

	updated, err := s.store.UpdateTransaction(r.Context(), tx)
	if err != nil {
		respondReferenceError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Transaction updated",
		log.FieldTransactionID, updated.ID,
		log.FieldVersion, updated.Version,
		log.FieldOperation, log.OpUpdate)

	s.publishSync(r.Context(), updated.ID, updated.Version)

	respondJSON(w, http.StatusOK, toTransactionResponse(updated))
}

// publishSync enqueues the transaction for the sheets worker. Publishing is
// best effort: the periodic pending sweep picks up anything lost here.
func (s *Server) publishSync(ctx context.Context, id, version int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, id, version); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish sync message",
			log.FieldTransactionID, id,
			log.FieldError, err.Error())
	}
}
