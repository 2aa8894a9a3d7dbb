package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"boekhouding/internal/cache"
	"boekhouding/internal/core"
	applog "boekhouding/internal/log"
	"boekhouding/internal/report"
	"boekhouding/internal/services"
	"boekhouding/internal/storage/memory"
)

func newTestServer(t *testing.T, ratePerMinute int) *Server {
	t.Helper()
	store := memory.New()
	caches := services.ReportCaches{
		Vat:           cache.NewLRUCache[report.QuarterlyVatReport](16, time.Hour),
		ProfitAndLoss: cache.NewLRUCache[report.ProfitAndLoss](16, time.Hour),
	}
	reports := services.NewReportService(store, caches)
	srv := NewServer(Config{Addr: ":0", RateLimitPerMinute: ratePerMinute}, Deps{
		Store:        store,
		Transactions: services.NewTransactionService(store, reports, nil),
		Relations:    services.NewRelationService(store),
		Settings:     services.NewSettingsService(store),
		Reports:      reports,
		Caches:       caches,
	}, applog.New(applog.Config{Output: io.Discard}))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = "198.51.100.10:5555"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("decode %T from %q: %v", v, rec.Body.String(), err)
	}
	return v
}

func mustCreateTx(t *testing.T, srv *Server, body string) core.Transaction {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/transactions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
	}
	return decode[core.Transaction](t, rec)
}

func TestCreateTransactionDerivesVat(t *testing.T) {
	srv := newTestServer(t, 100)

	tx := mustCreateTx(t, srv, `{"date":"2024-02-10","description":" Consult ","type":"income","amountExclVat":"49.99","vatRate":"low","category":"Advies","vatAmount":"999"}`)
	if tx.ID == "" {
		t.Fatal("expected an ID")
	}
	if tx.Type != core.Income || tx.VatRate != core.VatLow || tx.Description != "Consult" {
		t.Errorf("input not normalized: %+v", tx)
	}
	if tx.VatAmount.Cents != 450 || tx.AmountInclVat.Cents != 5449 {
		t.Errorf("vat=%d incl=%d, want 450/5449", tx.VatAmount.Cents, tx.AmountInclVat.Cents)
	}

	rec := do(t, srv, http.MethodGet, "/api/transactions/"+tx.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status=%d", rec.Code)
	}
	if got := decode[core.Transaction](t, rec); got.AmountExclVat.Cents != 4999 {
		t.Errorf("stored amount = %d", got.AmountExclVat.Cents)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t, 100)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing description", `{"date":"2024-02-10","type":"INCOME","amountExclVat":10,"vatRate":"HIGH"}`, "description"},
		{"unknown type", `{"date":"2024-02-10","description":"x","type":"GIFT","amountExclVat":10,"vatRate":"HIGH"}`, "type"},
		{"unknown rate", `{"date":"2024-02-10","description":"x","type":"INCOME","amountExclVat":10,"vatRate":"6"}`, "vatRate"},
		{"bad amount", `{"date":"2024-02-10","description":"x","type":"INCOME","amountExclVat":"abc","vatRate":"HIGH"}`, "amount"},
		{"huge amount", `{"date":"2024-02-10","description":"x","type":"INCOME","amountExclVat":1e20,"vatRate":"HIGH"}`, "amount"},
		{"bad date", `{"date":"10-02-2024","description":"x","type":"INCOME","amountExclVat":10,"vatRate":"HIGH"}`, "date"},
		{"negative amount", `{"date":"2024-02-10","description":"x","type":"INCOME","amountExclVat":-1,"vatRate":"HIGH"}`, "amountExclVat"},
		{"not json", `date=2024-02-10`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/transactions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
			got := decode[errorResponse](t, rec)
			if got.Field != tt.field || got.Error == "" {
				t.Errorf("got %+v, want field %q", got, tt.field)
			}
		})
	}
}

func TestTransactionUpdateAndDelete(t *testing.T) {
	srv := newTestServer(t, 100)
	tx := mustCreateTx(t, srv, `{"date":"2024-03-01","description":"Laptop","type":"EXPENSE","amountExclVat":1000,"vatRate":"HIGH","category":"Hardware"}`)

	rec := do(t, srv, http.MethodPut, "/api/transactions/"+tx.ID,
		`{"date":"2024-04-01","description":"Laptop","type":"EXPENSE","amountExclVat":1200,"vatRate":"HIGH","category":"Hardware"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[core.Transaction](t, rec); got.VatAmount.Cents != 25200 {
		t.Errorf("vat after update = %d, want 25200", got.VatAmount.Cents)
	}

	if rec := do(t, srv, http.MethodDelete, "/api/transactions/"+tx.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rec.Code)
	}
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := do(t, srv, method, "/api/transactions/"+tx.ID, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s after delete: status=%d", method, rec.Code)
		}
	}
	rec = do(t, srv, http.MethodPut, "/api/transactions/missing",
		`{"date":"2024-04-01","description":"x","type":"EXPENSE","amountExclVat":1,"vatRate":"HIGH"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("update missing: status=%d", rec.Code)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	srv := newTestServer(t, 100)
	mustCreateTx(t, srv, `{"date":"2023-12-31","description":"old","type":"INCOME","amountExclVat":100,"vatRate":"HIGH"}`)
	mustCreateTx(t, srv, `{"date":"2024-01-15","description":"jan","type":"INCOME","amountExclVat":100,"vatRate":"HIGH"}`)
	mustCreateTx(t, srv, `{"date":"2024-06-15","description":"jun","type":"EXPENSE","amountExclVat":50,"vatRate":"LOW"}`)

	rec := do(t, srv, http.MethodGet, "/api/transactions?year=2024", "")
	views := decode[[]report.TransactionView](t, rec)
	if len(views) != 2 || views[0].Description != "jun" || views[1].Description != "jan" {
		t.Fatalf("year filter: %+v", views)
	}
	if views[0].RelationName != core.NoRelationLabel {
		t.Errorf("relation name = %q", views[0].RelationName)
	}

	rec = do(t, srv, http.MethodGet, "/api/transactions?year=2024&type=expense", "")
	if views := decode[[]report.TransactionView](t, rec); len(views) != 1 || views[0].Description != "jun" {
		t.Fatalf("type filter: %+v", views)
	}

	for _, target := range []string{
		"/api/transactions?type=GIFT",
		"/api/transactions?year=abc",
		"/api/transactions?year=2024&from=2024-01-01",
		"/api/transactions?from=2024-02-01&to=2024-01-01",
		"/api/transactions?limit=-1",
	} {
		if rec := do(t, srv, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status=%d", target, rec.Code)
		}
	}
}

func TestRelations(t *testing.T) {
	srv := newTestServer(t, 100)

	var ids []string
	for _, body := range []string{
		`{"name":"Bakkerij de Vries","city":"Utrecht"}`,
		`{"name":"Jansen Installatie","city":"Amersfoort"}`,
	} {
		rec := do(t, srv, http.MethodPost, "/api/relations", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create relation status=%d body=%s", rec.Code, rec.Body.String())
		}
		rel := decode[core.Relation](t, rec)
		ids = append(ids, rel.ID)
		if rel.Number != int64(len(ids)) {
			t.Errorf("number = %d, want %d", rel.Number, len(ids))
		}
	}

	rec := do(t, srv, http.MethodPost, "/api/relations", `{"name":"  "}`)
	if rec.Code != http.StatusBadRequest || decode[errorResponse](t, rec).Field != "name" {
		t.Errorf("blank name: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodGet, "/api/relations?search=AMERS", "")
	if rels := decode[[]core.Relation](t, rec); len(rels) != 1 || rels[0].ID != ids[1] {
		t.Fatalf("search: %+v", rels)
	}

	mustCreateTx(t, srv, `{"date":"2024-05-01","description":"brood","type":"EXPENSE","amountExclVat":20,"vatRate":"LOW","relationId":"`+ids[0]+`"}`)
	rec = do(t, srv, http.MethodGet, "/api/relations/"+ids[0], "")
	detail := decode[services.RelationDetail](t, rec)
	if detail.Name != "Bakkerij de Vries" || len(detail.Transactions) != 1 || detail.Transactions[0].RelationName != "Bakkerij de Vries" {
		t.Fatalf("detail: %+v", detail)
	}

	rec = do(t, srv, http.MethodPut, "/api/relations/"+ids[0], `{"name":"Bakkerij de Vries B.V.","city":"Utrecht"}`)
	if rec.Code != http.StatusOK || decode[core.Relation](t, rec).Number != 1 {
		t.Errorf("update: status=%d body=%s", rec.Code, rec.Body.String())
	}

	if rec := do(t, srv, http.MethodDelete, "/api/relations/"+ids[1], ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status=%d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/relations/"+ids[1], ""); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: status=%d", rec.Code)
	}
}

func TestSettingsAndDashboard(t *testing.T) {
	srv := newTestServer(t, 100)

	rec := do(t, srv, http.MethodGet, "/api/settings", "")
	if got := decode[core.CompanySettings](t, rec); got.CompanyName != core.DefaultCompanyName {
		t.Fatalf("default settings: %+v", got)
	}

	rec = do(t, srv, http.MethodPut, "/api/settings", `{"fiscalYear":2023,"companyName":"Studio Noord"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update settings status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = do(t, srv, http.MethodPut, "/api/settings", `{"defaultPaymentTermDays":400}`)
	if rec.Code != http.StatusBadRequest || decode[errorResponse](t, rec).Field != "defaultPaymentTermDays" {
		t.Errorf("invalid settings: status=%d body=%s", rec.Code, rec.Body.String())
	}

	mustCreateTx(t, srv, `{"date":"2023-03-01","description":"a","type":"INCOME","amountExclVat":1000,"vatRate":"HIGH","category":"Verkoop"}`)
	mustCreateTx(t, srv, `{"date":"2023-04-01","description":"b","type":"EXPENSE","amountExclVat":300,"vatRate":"HIGH","category":"Kantoor"}`)
	mustCreateTx(t, srv, `{"date":"2023-05-01","description":"c","type":"PASSIVA","amountExclVat":5000,"vatRate":"NONE"}`)

	rec = do(t, srv, http.MethodGet, "/api/dashboard", "")
	d := decode[report.Dashboard](t, rec)
	if d.Year != 2023 || d.Summary.TotalIncome.Cents != 100000 || d.Summary.TotalExpenses.Cents != 30000 || d.Summary.Result.Cents != 70000 {
		t.Fatalf("dashboard: %+v", d.Summary)
	}
	if len(d.Recent) != 3 {
		t.Errorf("recent = %d, want 3", len(d.Recent))
	}

	rec = do(t, srv, http.MethodGet, "/api/reports/profit-loss", "")
	pl := decode[report.ProfitAndLoss](t, rec)
	if pl.Year != 2023 || len(pl.Breakdown.IncomeByCategory) != 1 || pl.Breakdown.IncomeByCategory[0].Category != "Verkoop" {
		t.Fatalf("profit and loss: %+v", pl)
	}

	if rec := do(t, srv, http.MethodGet, "/api/dashboard?year=12", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("out of range year: status=%d", rec.Code)
	}
}

func TestVatReport(t *testing.T) {
	srv := newTestServer(t, 100)
	mustCreateTx(t, srv, `{"date":"2024-01-10","description":"a","type":"INCOME","amountExclVat":1000,"vatRate":"HIGH"}`)
	mustCreateTx(t, srv, `{"date":"2024-02-10","description":"b","type":"EXPENSE","amountExclVat":200,"vatRate":"LOW"}`)
	mustCreateTx(t, srv, `{"date":"2024-04-10","description":"c","type":"INCOME","amountExclVat":999,"vatRate":"HIGH"}`)

	rec := do(t, srv, http.MethodGet, "/api/reports/vat?year=2024&quarter=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	got := decode[vatReportResponse](t, rec)
	if got.Label != "2024-Q1" || !got.Payable {
		t.Errorf("label=%q payable=%v", got.Label, got.Payable)
	}
	if got.Income21.Vat.Cents != 21000 || got.Expense9.Vat.Cents != 1800 || got.TotalVatDue.Cents != 19200 {
		t.Errorf("unexpected totals: %+v", got.QuarterlyVatReport)
	}

	tests := []struct {
		target string
		msg    string
	}{
		{"/api/reports/vat", "year and quarter are required"},
		{"/api/reports/vat?year=2024", "year and quarter are required"},
		{"/api/reports/vat?quarter=2", "year and quarter are required"},
		{"/api/reports/vat?year=2024&quarter=5", "quarter must be between 1 and 4, got 5"},
		{"/api/reports/vat?year=2024&quarter=x", "quarter must be a whole number"},
	}
	for _, tt := range tests {
		rec := do(t, srv, http.MethodGet, tt.target, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status=%d", tt.target, rec.Code)
			continue
		}
		if msg := decode[errorResponse](t, rec).Error; msg != tt.msg {
			t.Errorf("%s: error=%q, want %q", tt.target, msg, tt.msg)
		}
	}
}

func TestVatReportReflectsChanges(t *testing.T) {
	srv := newTestServer(t, 100)
	mustCreateTx(t, srv, `{"date":"2024-01-10","description":"a","type":"INCOME","amountExclVat":100,"vatRate":"HIGH"}`)

	first := decode[vatReportResponse](t, do(t, srv, http.MethodGet, "/api/reports/vat?year=2024&quarter=1", ""))
	mustCreateTx(t, srv, `{"date":"2024-03-31","description":"b","type":"INCOME","amountExclVat":100,"vatRate":"HIGH"}`)
	second := decode[vatReportResponse](t, do(t, srv, http.MethodGet, "/api/reports/vat?year=2024&quarter=1", ""))

	if first.TotalVatDue.Cents != 2100 || second.TotalVatDue.Cents != 4200 {
		t.Errorf("cached report not invalidated: %d then %d", first.TotalVatDue.Cents, second.TotalVatDue.Cents)
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	srv := newTestServer(t, 100)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := do(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rec.Code)
		}
	}
	rec := do(t, srv, http.MethodGet, "/readyz", "")
	if body := decode[map[string]any](t, rec); body["status"] != "ready" {
		t.Errorf("readyz body: %v", body)
	}

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	for _, want := range []string{"http_requests_total", `report_cache_entries{report="vat"}`, "uptime_seconds"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMiddlewareChain(t *testing.T) {
	srv := newTestServer(t, 100)
	rec := do(t, srv, http.MethodGet, "/api/settings", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("missing security headers: %v", rec.Header())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}
	if rec := do(t, srv, http.MethodPatch, "/api/settings", `{}`); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PATCH status=%d", rec.Code)
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	srv := newTestServer(t, 2)
	body := `{"name":"Klant"}`

	for i := 0; i < 2; i++ {
		if rec := do(t, srv, http.MethodPost, "/api/relations", body); rec.Code != http.StatusCreated {
			t.Fatalf("request %d: status=%d", i, rec.Code)
		}
	}
	rec := do(t, srv, http.MethodPost, "/api/relations", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third mutation: status=%d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if rec := do(t, srv, http.MethodGet, "/api/relations", ""); rec.Code != http.StatusOK {
		t.Errorf("reads must not be limited: status=%d", rec.Code)
	}
}
