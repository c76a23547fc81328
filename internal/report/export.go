package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// SheetName is the single worksheet the export writes to.
const SheetName = "Laba Rugi"

// Filename builds the download name from the exact request date strings.
func Filename(startDate, endDate string) string {
	return fmt.Sprintf("Laba_Rugi_%s_to_%s.xlsx", startDate, endDate)
}

// MonthAxis returns the sorted distinct month keys appearing anywhere in the
// report; these become the spreadsheet's value columns.
func MonthAxis(res *Result) []string {
	seen := make(map[string]struct{})
	for _, g := range []*Group{res.Income, res.Expense} {
		for _, s := range g.Categories() {
			for key := range s.DataByMonth {
				seen[key] = struct{}{}
			}
		}
	}
	axis := make([]string, 0, len(seen))
	for key := range seen {
		axis = append(axis, key)
	}
	sort.Strings(axis)
	return axis
}

// monthHeader renders a "YYYY-MM" key as an abbreviated-month column title,
// e.g. "Jan 2022".
func monthHeader(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("Jan 2006")
}

// WriteXLSX renders the report as a workbook: a header row, then per type a
// banner row, one row per category with its monthly values and period total,
// and a per-type subtotal row. An empty report yields only the header.
func WriteXLSX(res *Result) (*excelize.File, error) {
	axis := MonthAxis(res)

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	header := make([]interface{}, 0, len(axis)+2)
	header = append(header, "Kategori COA")
	for _, key := range axis {
		header = append(header, monthHeader(key))
	}
	header = append(header, "Total Periode")

	rowNum := 1
	if err := writeRow(f, rowNum, header); err != nil {
		return nil, err
	}
	if last, err := excelize.CoordinatesToCellName(len(header), rowNum); err == nil {
		_ = f.SetCellStyle(SheetName, "A1", last, bold)
	}
	// Category names tend to be the widest cells.
	_ = f.SetColWidth(SheetName, "A", "A", 28)

	sides := []struct {
		label string
		group *Group
	}{
		{"INCOME", res.Income},
		{"EXPENSE", res.Expense},
	}

	for _, side := range sides {
		if side.group.Len() == 0 {
			continue
		}

		rowNum++
		banner := []interface{}{fmt.Sprintf("--- %s ---", side.label)}
		if err := writeRow(f, rowNum, banner); err != nil {
			return nil, err
		}

		monthTotals := make([]decimal.Decimal, len(axis))
		for _, cat := range side.group.Categories() {
			rowNum++
			cells := make([]interface{}, 0, len(axis)+2)
			cells = append(cells, cat.Name)
			rowTotal := decimal.Zero
			for i, key := range axis {
				value := cat.DataByMonth[key] // zero decimal when the month is absent
				cells = append(cells, value.InexactFloat64())
				rowTotal = rowTotal.Add(value)
				monthTotals[i] = monthTotals[i].Add(value)
			}
			cells = append(cells, rowTotal.InexactFloat64())
			if err := writeRow(f, rowNum, cells); err != nil {
				return nil, err
			}
		}

		rowNum++
		totals := make([]interface{}, 0, len(axis)+2)
		totals = append(totals, "TOTAL "+side.label)
		grand := decimal.Zero
		for _, t := range monthTotals {
			totals = append(totals, t.InexactFloat64())
			grand = grand.Add(t)
		}
		totals = append(totals, grand.InexactFloat64())
		if err := writeRow(f, rowNum, totals); err != nil {
			return nil, err
		}
		if last, err := excelize.CoordinatesToCellName(len(totals), rowNum); err == nil {
			start, _ := excelize.CoordinatesToCellName(1, rowNum)
			_ = f.SetCellStyle(SheetName, start, last, bold)
		}
	}

	return f, nil
}

func writeRow(f *excelize.File, rowNum int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("row %d: %w", rowNum, err)
	}
	if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}
