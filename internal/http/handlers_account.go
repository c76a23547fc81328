package http

import (
	"encoding/json"
	"net/http"

	"profitloss/internal/core"
	"profitloss/internal/log"
	"profitloss/internal/storage"
)

type accountRequest struct {
	CategoryID int64  `json:"category_id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
}

type accountResponse struct {
	ID           int64             `json:"id"`
	CategoryID   int64             `json:"category_id"`
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	CategoryName string            `json:"category_name,omitempty"`
	CategoryType core.CategoryType `json:"category_type,omitempty"`
}

func toAccountResponse(a *core.Account) accountResponse {
	return accountResponse{ID: a.ID, CategoryID: a.CategoryID, Code: a.Code, Name: a.Name}
}

func toAccountWithCategoryResponse(a *storage.AccountWithCategory) accountResponse {
	return accountResponse{
		ID:           a.ID,
		CategoryID:   a.CategoryID,
		Code:         a.Code,
		Name:         a.Name,
		CategoryName: a.CategoryName,
		CategoryType: a.CategoryType,
	}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		respondStorageError(w, err)
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, toAccountWithCategoryResponse(&accounts[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account := core.Account{CategoryID: req.CategoryID, Code: req.Code, Name: req.Name}
	if err := account.Validate(); err != nil {
		respondValidationError(w, err)
		return
	}

	created, err := s.store.CreateAccount(r.Context(), account)
	if err != nil {
		respondReferenceError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Account created",
		log.FieldAccountID, created.ID,
		log.FieldAccountCode, created.Code,
		log.FieldOperation, log.OpCreate)
	respondJSON(w, http.StatusCreated, toAccountResponse(created))
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account := core.Account{ID: id, CategoryID: req.CategoryID, Code: req.Code, Name: req.Name}
	if err := account.Validate(); err != nil {
		respondValidationError(w, err)
		return
	}

	// The path id decides between 404 and 422: a missing account is 404,
	// while a dangling category reference in the body is a validation error.
	if _, err := s.store.GetAccount(r.Context(), id); err != nil {
		respondStorageError(w, err)
		return
	}

	updated, err := s.store.UpdateAccount(r.Context(), account)
	if err != nil {
		respondReferenceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toAccountResponse(updated))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	if err := s.store.DeleteAccount(r.Context(), id); err != nil {
		respondStorageError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Account deleted",
		log.FieldAccountID, id,
		log.FieldOperation, log.OpDelete)
	respondJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}
