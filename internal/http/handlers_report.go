package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"profitloss/internal/core"
	"profitloss/internal/log"
	"profitloss/internal/report"
)

type reportMeta struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type reportSummary struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	NetIncome    decimal.Decimal `json:"net_income"`
}

type reportResponse struct {
	Meta    reportMeta                          `json:"meta"`
	Data    map[core.CategoryType]*report.Group `json:"data"`
	Summary reportSummary                       `json:"summary"`
}

// buildReport parses the range, pulls grouped sums from storage and runs the
// aggregation. All failure modes surface as the returned status code.
func (s *Server) buildReport(r *http.Request) (*report.Result, int, error) {
	startRaw := r.URL.Query().Get("start_date")
	endRaw := r.URL.Query().Get("end_date")
	if startRaw == "" || endRaw == "" {
		return nil, http.StatusUnprocessableEntity, errors.New("start_date and end_date are required")
	}

	start, err := core.ParseDate(startRaw)
	if err != nil {
		return nil, http.StatusUnprocessableEntity, fmt.Errorf("start_date: %w", err)
	}
	end, err := core.ParseDate(endRaw)
	if err != nil {
		return nil, http.StatusUnprocessableEntity, fmt.Errorf("end_date: %w", err)
	}
	// The range is rejected before the store is queried.
	if err := report.ValidateRange(start, end); err != nil {
		return nil, http.StatusUnprocessableEntity, err
	}

	rows, err := s.store.ProfitLossRows(r.Context(), start, end)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Profit loss query failed",
			log.FieldError, err.Error(),
			log.FieldStartDate, start.String(),
			log.FieldEndDate, end.String())
		return nil, http.StatusInternalServerError, errors.New("internal server error")
	}

	res, err := report.Aggregate(start, end, rows)
	if err != nil {
		if errors.Is(err, report.ErrInvalidRange) {
			return nil, http.StatusUnprocessableEntity, err
		}
		return nil, http.StatusInternalServerError, errors.New("internal server error")
	}

	return res, http.StatusOK, nil
}

func (s *Server) handleProfitLossReport(w http.ResponseWriter, r *http.Request) {
	res, status, err := s.buildReport(r)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, reportResponse{
		Meta: reportMeta{
			StartDate: res.StartDate.String(),
			EndDate:   res.EndDate.String(),
		},
		Data: res.GroupedData(),
		Summary: reportSummary{
			TotalIncome:  res.TotalIncome,
			TotalExpense: res.TotalExpense,
			NetIncome:    res.NetIncome,
		},
	})
}

func (s *Server) handleProfitLossExport(w http.ResponseWriter, r *http.Request) {
	res, status, err := s.buildReport(r)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}

	f, err := report.WriteXLSX(res)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Workbook build failed",
			log.FieldError, err.Error(),
			log.FieldOperation, log.OpExport)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer f.Close()

	filename := report.Filename(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := f.Write(w); err != nil {
		s.logger.ErrorContext(r.Context(), "Workbook write failed",
			log.FieldError, err.Error(),
			log.FieldOperation, log.OpExport)
	}
}
