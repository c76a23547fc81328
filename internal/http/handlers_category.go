package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"profitloss/internal/core"
	"profitloss/internal/log"
)

type categoryRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type categoryResponse struct {
	ID   int64             `json:"id"`
	Name string            `json:"name"`
	Type core.CategoryType `json:"type"`
}

func toCategoryResponse(c *core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Type: c.Type}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		respondStorageError(w, err)
		return
	}

	out := make([]categoryResponse, 0, len(categories))
	for i := range categories {
		out = append(out, toCategoryResponse(&categories[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	typ, err := core.ParseCategoryType(req.Type)
	if err != nil {
		respondValidationError(w, err)
		return
	}

	category := core.Category{Name: req.Name, Type: typ}
	if err := category.Validate(); err != nil {
		respondValidationError(w, err)
		return
	}

	created, err := s.store.CreateCategory(r.Context(), category)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Category created",
		log.FieldCategoryID, created.ID,
		log.FieldOperation, log.OpCreate)
	respondJSON(w, http.StatusCreated, toCategoryResponse(created))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	typ, err := core.ParseCategoryType(req.Type)
	if err != nil {
		respondValidationError(w, err)
		return
	}

	category := core.Category{ID: id, Name: req.Name, Type: typ}
	if err := category.Validate(); err != nil {
		respondValidationError(w, err)
		return
	}

	updated, err := s.store.UpdateCategory(r.Context(), category)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toCategoryResponse(updated))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	if err := s.store.DeleteCategory(r.Context(), id); err != nil {
		respondStorageError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Category deleted",
		log.FieldCategoryID, id,
		log.FieldOperation, log.OpDelete)
	respondJSON(w, http.StatusOK, map[string]string{"message": "category deleted"})
}
