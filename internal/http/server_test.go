package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/gateway/memory"
	"bilancio/internal/pipeline"
	"bilancio/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := store.New(memory.New(), nil)
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	srv := NewServer(":0", st, pipeline.NewMemo(pipeline.DefaultConfig()))
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestListTransactions(t *testing.T) {
	srv := newTestServer(t)

	rr := do(srv, http.MethodGet, "/api/transactions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		State        string             `json:"state"`
		Transactions []core.Transaction `json:"transactions"`
		Filters      core.Filters       `json:"filters"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State != "ready" {
		t.Fatalf("expected ready state, got %q", resp.State)
	}
	if len(resp.Transactions) != 20 {
		t.Fatalf("expected seeded dataset, got %d", len(resp.Transactions))
	}
	if resp.Filters.Type != core.FilterAll {
		t.Fatalf("expected default filters, got %+v", resp.Filters)
	}
}

func TestCreateTransaction(t *testing.T) {
	srv := newTestServer(t)

	rr := do(srv, http.MethodPost, "/api/transactions",
		`{"description":"Book shop","amount":24.90,"type":"expense","category":"Leisure","date":"2024-05-05"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var created core.Transaction
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected a generated ID")
	}
	if created.Amount.Cents != 2490 {
		t.Fatalf("expected 2490 cents, got %d", created.Amount.Cents)
	}

	// It must show up first in the list.
	rr = do(srv, http.MethodGet, "/api/transactions", "")
	var resp struct {
		Transactions []core.Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if resp.Transactions[0].ID != created.ID {
		t.Fatalf("new transaction must be first")
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"short description", `{"description":"ab","amount":1,"type":"expense","category":"Misc","date":"2024-01-01"}`, http.StatusUnprocessableEntity},
		{"zero amount", `{"description":"Valid text","amount":0,"type":"expense","category":"Misc","date":"2024-01-01"}`, http.StatusUnprocessableEntity},
		{"bad type", `{"description":"Valid text","amount":1,"type":"transfer","category":"Misc","date":"2024-01-01"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"description":"Valid text","amount":1,"type":"expense","category":"Misc","date":"garbage"}`, http.StatusUnprocessableEntity},
		{"future date", `{"description":"Valid text","amount":1,"type":"expense","category":"Misc","date":"2099-01-01"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		rr := do(srv, http.MethodPost, "/api/transactions", tc.body)
		if rr.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d (body=%s)", tc.name, tc.code, rr.Code, rr.Body.String())
		}
	}
}

func TestCreateDuplicateIDConflicts(t *testing.T) {
	srv := newTestServer(t)
	body := `{"id":12345,"description":"Dup check","amount":5,"type":"expense","category":"Misc","date":"2024-01-01"}`

	if rr := do(srv, http.MethodPost, "/api/transactions", body); rr.Code != http.StatusCreated {
		t.Fatalf("first create status=%d", rr.Code)
	}
	if rr := do(srv, http.MethodPost, "/api/transactions", body); rr.Code != http.StatusConflict {
		t.Fatalf("duplicate create status=%d", rr.Code)
	}
}

func TestDeleteTransaction(t *testing.T) {
	srv := newTestServer(t)

	rr := do(srv, http.MethodPost, "/api/transactions",
		`{"id":555,"description":"Delete me","amount":1,"type":"expense","category":"Misc","date":"2024-01-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}

	if rr := do(srv, http.MethodDelete, "/api/transactions/555", ""); rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	// Deleting an absent ID is still a success.
	if rr := do(srv, http.MethodDelete, "/api/transactions/555", ""); rr.Code != http.StatusOK {
		t.Fatalf("repeat delete status=%d", rr.Code)
	}
	if rr := do(srv, http.MethodDelete, "/api/transactions/not-a-number", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", rr.Code)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rr := do(srv, http.MethodGet, "/api/categories", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Categories) == 0 {
		t.Fatalf("expected categories from the seeded dataset")
	}
	for i := 1; i < len(resp.Categories); i++ {
		if resp.Categories[i-1] > resp.Categories[i] {
			t.Fatalf("categories not sorted: %v", resp.Categories)
		}
	}
}

func TestSummaryReflectsFilters(t *testing.T) {
	srv := newTestServer(t)

	rr := do(srv, http.MethodGet, "/api/summary", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var all core.Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if rr := do(srv, http.MethodPut, "/api/filters", `{"type":"expense"}`); rr.Code != http.StatusOK {
		t.Fatalf("filters status=%d", rr.Code)
	}

	rr = do(srv, http.MethodGet, "/api/summary", "")
	var expensesOnly core.Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &expensesOnly); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if expensesOnly.TotalIncome.Cents != 0 {
		t.Fatalf("expense filter must zero the income total, got %d", expensesOnly.TotalIncome.Cents)
	}
	if expensesOnly.TotalExpenses.Cents != all.TotalExpenses.Cents {
		t.Fatalf("expense total must be unchanged by the type filter")
	}
}

func TestFiltersValidation(t *testing.T) {
	srv := newTestServer(t)

	if rr := do(srv, http.MethodPut, "/api/filters", `{"type":"everything"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid type filter status=%d", rr.Code)
	}
	if rr := do(srv, http.MethodPut, "/api/filters", `{`); rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status=%d", rr.Code)
	}
}

func TestTrendEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rr := do(srv, http.MethodGet, "/api/charts/trend", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("default bucket status=%d", rr.Code)
	}
	var resp struct {
		Trend []core.TrendPoint `json:"trend"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := 1; i < len(resp.Trend); i++ {
		if resp.Trend[i-1].Period > resp.Trend[i].Period {
			t.Fatalf("trend not chronological: %v", resp.Trend)
		}
	}

	if rr := do(srv, http.MethodGet, "/api/charts/trend?bucket=yearly", ""); rr.Code != http.StatusOK {
		t.Fatalf("yearly bucket status=%d", rr.Code)
	}
	if rr := do(srv, http.MethodGet, "/api/charts/trend?bucket=weekly", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid bucket status=%d", rr.Code)
	}
}

func TestCategoryChartEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rr := do(srv, http.MethodGet, "/api/charts/categories", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp struct {
		Categories []core.CategoryTotal `json:"categories"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := 1; i < len(resp.Categories); i++ {
		if resp.Categories[i-1].Total.Cents < resp.Categories[i].Total.Cents {
			t.Fatalf("chart not sorted descending: %v", resp.Categories)
		}
	}
}

func TestResetEndpoint(t *testing.T) {
	srv := newTestServer(t)

	if rr := do(srv, http.MethodPost, "/api/transactions",
		`{"description":"Goes away","amount":1,"type":"expense","category":"Misc","date":"2024-01-01"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}

	rr := do(srv, http.MethodPost, "/api/reset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status=%d", rr.Code)
	}
	var resp struct {
		Transactions []core.Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Transactions) != 20 {
		t.Fatalf("expected seeded dataset after reset, got %d", len(resp.Transactions))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		method, path string
	}{
		{http.MethodDelete, "/api/transactions"},
		{http.MethodPost, "/api/categories"},
		{http.MethodGet, "/api/filters"},
		{http.MethodGet, "/api/reset"},
	}
	for _, tc := range cases {
		rr := do(srv, tc.method, tc.path, "")
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s expected 405, got %d", tc.method, tc.path, rr.Code)
		}
		if rr.Header().Get("Allow") == "" {
			t.Fatalf("%s %s missing Allow header", tc.method, tc.path)
		}
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv := newTestServer(t)

	rr := do(srv, http.MethodGet, "/api/summary", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("missing CSP header")
	}
}
