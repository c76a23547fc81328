package storage

import (
	"context"
	"fmt"
	"log/slog"

	"profitloss/internal/core"

	"github.com/shopspring/decimal"
)

type seedAccount struct {
	code     string
	name     string
	category string
}

type seedTransaction struct {
	date   string
	code   string
	desc   string
	debit  int64
	credit int64
}

var seedCategories = []core.Category{
	{Name: "Salary", Type: core.Income},
	{Name: "Other Income", Type: core.Income},
	{Name: "Family Expense", Type: core.Expense},
	{Name: "Transport Expense", Type: core.Expense},
	{Name: "Meal Expense", Type: core.Expense},
}

var seedAccounts = []seedAccount{
	{"401", "Gaji Karyawan", "Salary"},
	{"402", "Gaji Ketua MPR", "Salary"},
	{"403", "Profit Trading", "Other Income"},
	{"601", "Biaya Sekolah", "Family Expense"},
	{"602", "Bensin", "Transport Expense"},
	{"603", "Parkir", "Transport Expense"},
	{"604", "Makan Siang", "Meal Expense"},
	{"605", "Makanan Pokok Bulanan", "Meal Expense"},
}

var seedTransactions = []seedTransaction{
	{"2022-01-01", "401", "Gaji Di Perusahaan A", 0, 5000000},
	{"2022-01-02", "402", "Gaji Ketum", 0, 7000000},
	{"2022-01-05", "403", "Untung Saham Januari", 0, 5500000},
	{"2022-01-10", "602", "Bensin Anak", 25000, 0},
	{"2022-01-15", "601", "Biaya Sekolah Anak Bulanan", 500000, 0},
	{"2022-01-18", "603", "Parkir Mall", 25000, 0},
	{"2022-01-20", "604", "Makan Siang Kantor", 50000, 0},
	{"2022-01-25", "605", "Belanja Bulanan", 100000, 0},
	{"2022-02-01", "401", "Gaji Di Perusahaan A", 0, 5000000},
	{"2022-02-02", "402", "Gaji Ketum", 0, 7000000},
	{"2022-02-05", "403", "Untung Saham Februari", 0, 6000000},
	{"2022-02-10", "601", "Biaya Sekolah Tambahan", 3500000, 0},
	{"2022-02-15", "602", "Bensin Pribadi", 200000, 0},
	{"2022-02-20", "603", "Parkir Bandara", 50000, 0},
	{"2022-02-25", "604", "Makan Malam Keluarga", 150000, 0},
	{"2022-02-28", "605", "Belanja Mingguan", 150000, 0},
	{"2022-03-01", "401", "Gaji Di Perusahaan A", 0, 5000000},
	{"2022-03-02", "402", "Gaji Ketum", 0, 7000000},
	{"2022-03-05", "403", "Untung Saham Maret", 0, 3500000},
	{"2022-03-10", "601", "Biaya Sekolah Tahunan", 4500000, 0},
	{"2022-03-15", "602", "Bensin Luar Kota", 200000, 0},
	{"2022-03-20", "603", "Parkir Rumah Sakit", 25000, 0},
	{"2022-03-25", "604", "Makan Siang Klien", 100000, 0},
	{"2022-03-28", "605", "Beli Sembako", 75000, 0},
}

// Seed inserts the sample chart of accounts and 2022 transactions when the
// database is empty. An already populated database is left untouched.
func (r *SQLiteRepository) Seed(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM coa_categories`).Scan(&count); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		slog.DebugContext(ctx, "Seed skipped, database already populated", "categories", count)
		return nil
	}

	categoryIDs := make(map[string]int64, len(seedCategories))
	for _, c := range seedCategories {
		created, err := r.CreateCategory(ctx, c)
		if err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
		categoryIDs[c.Name] = created.ID
	}

	accountIDs := make(map[string]int64, len(seedAccounts))
	for _, a := range seedAccounts {
		created, err := r.CreateAccount(ctx, core.Account{
			CategoryID: categoryIDs[a.category],
			Code:       a.code,
			Name:       a.name,
		})
		if err != nil {
			return fmt.Errorf("seed account %s: %w", a.code, err)
		}
		accountIDs[a.code] = created.ID
	}

	for _, t := range seedTransactions {
		date, err := core.ParseDate(t.date)
		if err != nil {
			return fmt.Errorf("seed transaction date %s: %w", t.date, err)
		}
		if _, err := r.CreateTransaction(ctx, core.Transaction{
			AccountID:   accountIDs[t.code],
			Date:        date,
			Description: t.desc,
			Debit:       decimal.NewFromInt(t.debit),
			Credit:      decimal.NewFromInt(t.credit),
		}); err != nil {
			return fmt.Errorf("seed transaction %s %s: %w", t.date, t.desc, err)
		}
	}

	slog.InfoContext(ctx, "Database seeded",
		"categories", len(seedCategories),
		"accounts", len(seedAccounts),
		"transactions", len(seedTransactions))
	return nil
}
