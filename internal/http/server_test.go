package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"profitloss/internal/report"
	"profitloss/internal/storage"
)

type capturingPublisher struct {
	mu       sync.Mutex
	messages [][2]int64
}

func (p *capturingPublisher) PublishTransactionSync(_ context.Context, id, version int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, [2]int64{id, version})
	return nil
}

func (p *capturingPublisher) all() [][2]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]int64(nil), p.messages...)
}

func newTestServer(t *testing.T) (*httptest.Server, *storage.SQLiteRepository, *capturingPublisher) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	pub := &capturingPublisher{}
	srv := NewServer(Options{Addr: ":0", RateLimitPerMinute: 10000}, repo, pub, nil)
	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return ts, repo, pub
}

func doJSON(t *testing.T, method, url string, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decodeInto(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/categories", `{"name":"Salary","type":"Income"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	var created categoryResponse
	decodeInto(t, body, &created)
	if created.ID == 0 || created.Name != "Salary" {
		t.Fatalf("unexpected category %+v", created)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/categories", `{"name":"Salary","type":"Income"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate status = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/categories", `{"name":"Savings","type":"Piggybank"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad type status = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/categories", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed status = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/categories/%d", ts.URL, created.ID), `{"name":"Wages","type":"Income"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d: %s", resp.StatusCode, body)
	}
	var updated categoryResponse
	decodeInto(t, body, &updated)
	if updated.Name != "Wages" {
		t.Fatalf("unexpected update %+v", updated)
	}

	resp, body = doJSON(t, http.MethodPut, ts.URL+"/api/categories/9999", `{"name":"Ghost","type":"Income"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing update status = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/categories", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var all []categoryResponse
	decodeInto(t, body, &all)
	if len(all) != 1 {
		t.Fatalf("expected 1 category, got %d", len(all))
	}

	resp, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/categories/%d", ts.URL, created.ID), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/categories/%d", ts.URL, created.ID), "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("double delete status = %d", resp.StatusCode)
	}
}

func TestDeleteCategoryInUseConflicts(t *testing.T) {
	ts, _, _ := newTestServer(t)

	_, body := doJSON(t, http.MethodPost, ts.URL+"/api/categories", `{"name":"Salary","type":"Income"}`)
	var cat categoryResponse
	decodeInto(t, body, &cat)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/coa",
		fmt.Sprintf(`{"category_id":%d,"code":"401","name":"Gaji Karyawan"}`, cat.ID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account status = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/categories/%d", ts.URL, cat.ID), "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delete in-use category status = %d: %s", resp.StatusCode, body)
	}

	// The category must survive the refused delete.
	_, listBody := doJSON(t, http.MethodGet, ts.URL+"/api/categories", "")
	var all []categoryResponse
	decodeInto(t, listBody, &all)
	if len(all) != 1 {
		t.Fatalf("expected category to remain, got %d", len(all))
	}
}

func TestAccountEndpoints(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/coa", `{"category_id":9999,"code":"401","name":"Ghost"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("dangling category status = %d: %s", resp.StatusCode, body)
	}

	_, catBody := doJSON(t, http.MethodPost, ts.URL+"/api/categories", `{"name":"Salary","type":"Income"}`)
	var cat categoryResponse
	decodeInto(t, catBody, &cat)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/coa",
		fmt.Sprintf(`{"category_id":%d,"code":"401","name":"Gaji Karyawan"}`, cat.ID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	var acc accountResponse
	decodeInto(t, body, &acc)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/coa",
		fmt.Sprintf(`{"category_id":%d,"code":"401","name":"Duplicate"}`, cat.ID))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate code status = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/coa/%d", ts.URL, acc.ID),
		fmt.Sprintf(`{"category_id":%d,"code":"402","name":"Gaji Ketua MPR"}`, cat.ID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/coa/%d", ts.URL, acc.ID),
		`{"category_id":9999,"code":"402","name":"Gaji Ketua MPR"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("dangling category on update status = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/coa", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var all []accountResponse
	decodeInto(t, body, &all)
	if len(all) != 1 || all[0].CategoryName != "Salary" {
		t.Fatalf("unexpected listing %+v", all)
	}

	resp, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/coa/%d", ts.URL, acc.ID), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
}

func seedLedger(t *testing.T, ts *httptest.Server) (categoryResponse, accountResponse) {
	t.Helper()
	_, catBody := doJSON(t, http.MethodPost, ts.URL+"/api/categories", `{"name":"Salary","type":"Income"}`)
	var cat categoryResponse
	decodeInto(t, catBody, &cat)

	resp, accBody := doJSON(t, http.MethodPost, ts.URL+"/api/coa",
		fmt.Sprintf(`{"category_id":%d,"code":"401","name":"Gaji Karyawan"}`, cat.ID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed account status = %d: %s", resp.StatusCode, accBody)
	}
	var acc accountResponse
	decodeInto(t, accBody, &acc)
	return cat, acc
}

func TestTransactionEndpoints(t *testing.T) {
	ts, _, pub := newTestServer(t)
	_, acc := seedLedger(t, ts)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/transactions",
		fmt.Sprintf(`{"coa_id":%d,"date":"2022-01-01","desc":"Gaji Di Perusahaan A","credit":5000000}`, acc.ID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	var created transactionResponse
	decodeInto(t, body, &created)
	if created.AccountCode != "401" || created.Category != "Salary" || created.Version != 1 {
		t.Fatalf("unexpected transaction %+v", created)
	}
	if !created.Credit.Equal(decimal.NewFromInt(5000000)) {
		t.Fatalf("credit = %s", created.Credit)
	}

	// Both sides filled.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/transactions",
		fmt.Sprintf(`{"coa_id":%d,"date":"2022-01-02","desc":"Mixed","debit":100,"credit":100}`, acc.ID))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("both sides status = %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "exactly one of debit or credit") {
		t.Fatalf("unexpected error body: %s", body)
	}

	// Neither side filled.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/transactions",
		fmt.Sprintf(`{"coa_id":%d,"date":"2022-01-02","desc":"Empty"}`, acc.ID))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty sides status = %d", resp.StatusCode)
	}

	// Bad date.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/transactions",
		fmt.Sprintf(`{"coa_id":%d,"date":"01/02/2022","desc":"Bad date","credit":100}`, acc.ID))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad date status = %d", resp.StatusCode)
	}

	// Dangling account.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/transactions",
		`{"coa_id":9999,"date":"2022-01-02","desc":"Ghost","credit":100}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("dangling account status = %d", resp.StatusCode)
	}

	// Update bumps the version.
	resp, body = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/transactions/%d", ts.URL, created.ID),
		fmt.Sprintf(`{"coa_id":%d,"date":"2022-01-03","desc":"Gaji Revisi","credit":5500000}`, acc.ID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d: %s", resp.StatusCode, body)
	}
	var updated transactionResponse
	decodeInto(t, body, &updated)
	if updated.Version != 2 || updated.Desc != "Gaji Revisi" {
		t.Fatalf("unexpected update %+v", updated)
	}

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/transactions/9999",
		fmt.Sprintf(`{"coa_id":%d,"date":"2022-01-03","desc":"Ghost","credit":1}`, acc.ID))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing update status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/transactions", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var all []transactionResponse
	decodeInto(t, body, &all)
	if len(all) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(all))
	}

	messages := pub.all()
	if len(messages) != 2 {
		t.Fatalf("expected 2 sync messages, got %d", len(messages))
	}
	if messages[0] != [2]int64{created.ID, 1} || messages[1] != [2]int64{created.ID, 2} {
		t.Fatalf("unexpected sync messages %v", messages)
	}
}

func seedReportData(t *testing.T, ts *httptest.Server, repo *storage.SQLiteRepository) {
	t.Helper()
	if err := repo.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = ts
}

func TestProfitLossReportEndpoint(t *testing.T) {
	ts, repo, _ := newTestServer(t)
	seedReportData(t, ts, repo)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/reports/profitloss?start_date=2022-01-01&end_date=2022-01-31", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report status = %d: %s", resp.StatusCode, body)
	}

	var res struct {
		Meta reportMeta `json:"meta"`
		Data map[string]map[string]struct {
			Name        string                     `json:"name"`
			DataByMonth map[string]decimal.Decimal `json:"data_by_month"`
		} `json:"data"`
		Summary reportSummary `json:"summary"`
	}
	decodeInto(t, body, &res)

	if res.Meta.StartDate != "2022-01-01" || res.Meta.EndDate != "2022-01-31" {
		t.Fatalf("unexpected meta %+v", res.Meta)
	}
	// January 2022 seed data: 17,500,000 income against 700,000 expenses.
	if !res.Summary.TotalIncome.Equal(decimal.NewFromInt(17500000)) {
		t.Fatalf("total income = %s", res.Summary.TotalIncome)
	}
	if !res.Summary.TotalExpense.Equal(decimal.NewFromInt(700000)) {
		t.Fatalf("total expense = %s", res.Summary.TotalExpense)
	}
	if !res.Summary.NetIncome.Equal(decimal.NewFromInt(16800000)) {
		t.Fatalf("net income = %s", res.Summary.NetIncome)
	}

	income, ok := res.Data["Income"]
	if !ok {
		t.Fatalf("missing Income group in %s", body)
	}
	foundSalary := false
	for _, series := range income {
		if series.Name == "Salary" {
			foundSalary = true
			if got := series.DataByMonth["2022-01"]; !got.Equal(decimal.NewFromInt(12000000)) {
				t.Fatalf("salary 2022-01 = %s", got)
			}
		}
	}
	if !foundSalary {
		t.Fatalf("salary series missing in %s", body)
	}

	// Missing parameters.
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/reports/profitloss", "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("missing params status = %d", resp.StatusCode)
	}

	// Reversed range.
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/reports/profitloss?start_date=2022-02-01&end_date=2022-01-01", "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("reversed range status = %d", resp.StatusCode)
	}
}

func TestReversedRangeRejectedBeforeQuery(t *testing.T) {
	ts, repo, _ := newTestServer(t)

	// With the database gone a query would surface 500, so a 422 here
	// proves the range is validated before the store is touched.
	if err := repo.Close(); err != nil {
		t.Fatalf("close repository: %v", err)
	}

	for _, path := range []string{
		"/api/reports/profitloss",
		"/api/reports/profitloss/export",
	} {
		resp, body := doJSON(t, http.MethodGet, ts.URL+path+"?start_date=2022-02-01&end_date=2022-01-01", "")
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("%s reversed range status = %d: %s", path, resp.StatusCode, body)
		}
	}
}

func TestProfitLossExportEndpoint(t *testing.T) {
	ts, repo, _ := newTestServer(t)
	seedReportData(t, ts, repo)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/reports/profitloss/export?start_date=2022-01-01&end_date=2022-03-31", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", ct)
	}
	wantDisposition := `attachment; filename="Laba_Rugi_2022-01-01_to_2022-03-31.xlsx"`
	if cd := resp.Header.Get("Content-Disposition"); cd != wantDisposition {
		t.Fatalf("content disposition = %q", cd)
	}

	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(report.SheetName)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) == 0 || rows[0][0] != "Kategori COA" {
		t.Fatalf("unexpected first row %v", rows)
	}
	if rows[0][len(rows[0])-1] != "Total Periode" {
		t.Fatalf("unexpected header %v", rows[0])
	}
}

func TestRateLimiting(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	srv := NewServer(Options{Addr: ":0", RateLimitPerMinute: 2}, repo, nil, nil)
	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/categories", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d", i, resp.StatusCode)
		}
	}
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/categories", "")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}

	// Health endpoints bypass the limiter.
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d: %s", resp.StatusCode, body)
	}
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/readyz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d: %s", resp.StatusCode, body)
	}
}
