// Package report turns grouped ledger rows into the profit/loss report and
// its spreadsheet rendering. Everything here is a pure function of its input;
// storage access and HTTP plumbing live elsewhere.
package report

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"profitloss/internal/core"
)

// ErrInvalidRange is returned before any aggregation runs when the interval
// boundaries are reversed.
var ErrInvalidRange = errors.New("end_date must be on or after start_date")

// Row is one pre-grouped ledger row as supplied by the store: debit and
// credit already summed per (category, year, month) over the report interval.
type Row struct {
	CategoryID   int64
	CategoryName string
	CategoryType core.CategoryType
	Year         int
	Month        int
	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
}

// CategorySeries is one category's month-by-month display values.
type CategorySeries struct {
	ID          int64                      `json:"id"`
	Name        string                     `json:"name"`
	Type        core.CategoryType          `json:"type"`
	DataByMonth map[string]decimal.Decimal `json:"data_by_month"`
}

// Group holds the category series for one side of the P&L. Categories keep
// their first-seen order so the spreadsheet rows come out deterministically;
// JSON renders the group as an object keyed by category id.
type Group struct {
	order []int64
	byID  map[int64]*CategorySeries
}

func newGroup() *Group {
	return &Group{byID: make(map[int64]*CategorySeries)}
}

func (g *Group) set(row Row, monthKey string, value decimal.Decimal) {
	s, ok := g.byID[row.CategoryID]
	if !ok {
		s = &CategorySeries{
			ID:          row.CategoryID,
			Name:        row.CategoryName,
			Type:        row.CategoryType,
			DataByMonth: make(map[string]decimal.Decimal),
		}
		g.byID[row.CategoryID] = s
		g.order = append(g.order, row.CategoryID)
	}
	// Last write wins on a duplicated (category, month) cell; the source
	// system behaved this way and the upstream grouping keeps duplicates
	// from occurring in practice.
	s.DataByMonth[monthKey] = value
}

// Len returns the number of categories in the group.
func (g *Group) Len() int {
	return len(g.order)
}

// Categories returns the series in first-seen order.
func (g *Group) Categories() []*CategorySeries {
	out := make([]*CategorySeries, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.byID[id])
	}
	return out
}

func (g *Group) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.byID)
}

// Result is the aggregated profit/loss report for one interval.
type Result struct {
	StartDate    core.Date
	EndDate      core.Date
	Income       *Group
	Expense      *Group
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	NetIncome    decimal.Decimal
}

// GroupedData returns the non-empty groups keyed by category type, the shape
// the API responds with.
func (r *Result) GroupedData() map[core.CategoryType]*Group {
	data := make(map[core.CategoryType]*Group, 2)
	if r.Income.Len() > 0 {
		data[core.Income] = r.Income
	}
	if r.Expense.Len() > 0 {
		data[core.Expense] = r.Expense
	}
	return data
}

// MonthKey formats a (year, month) pair as the zero-padded "YYYY-MM" bucket
// key; lexicographic order of these keys equals chronological order.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%d-%02d", year, month)
}

// ValidateRange checks the report interval boundaries. Callers run this
// before querying the store so a reversed range never reaches it.
func ValidateRange(start, end core.Date) error {
	if err := start.Validate(); err != nil {
		return err
	}
	if err := end.Validate(); err != nil {
		return err
	}
	if end.Before(start.Time) {
		return ErrInvalidRange
	}
	return nil
}

// Aggregate folds the grouped rows into the per-type, per-category month
// matrix and the report totals.
//
// Income rows surface their credit sum, expense rows their debit sum; rows of
// any other category type are excluded from both the groups and the totals.
// NetIncome is TotalIncome minus TotalExpense, computed once after the fold.
func Aggregate(start, end core.Date, rows []Row) (*Result, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}

	res := &Result{
		StartDate:    start,
		EndDate:      end,
		Income:       newGroup(),
		Expense:      newGroup(),
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}

	for _, row := range rows {
		key := MonthKey(row.Year, row.Month)
		switch row.CategoryType {
		case core.Income:
			res.Income.set(row, key, row.TotalCredit)
			res.TotalIncome = res.TotalIncome.Add(row.TotalCredit)
		case core.Expense:
			res.Expense.set(row, key, row.TotalDebit)
			res.TotalExpense = res.TotalExpense.Add(row.TotalDebit)
		default:
			// Asset, Liability, Equity and anything unrecognized stay
			// out of the P&L entirely.
		}
	}

	res.NetIncome = res.TotalIncome.Sub(res.TotalExpense)
	return res, nil
}
