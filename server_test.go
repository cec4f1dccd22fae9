package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/middlewares"
	"github.com/mmdatafocus/ledger_backend/testutil"
)

func doJSON(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestInvoiceEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testutil.NewDB(t)
	r := newRouter(testutil.Logger())

	product := testutil.CreateProduct(t, "Widget", "50", 5)
	customer := testutil.CreateCustomer(t, "Ram")
	sale := func(qty int) map[string]any {
		return map[string]any{
			"invoice_type":     "SALE",
			"customer_id":      customer.ID,
			"include_tax":      true,
			"transaction_date": "2026-02-01",
			"items": []map[string]any{
				{"product_id": product.ID, "quantity": qty, "unit_price": "50.00"},
			},
		}
	}

	w := doJSON(t, r, http.MethodPost, "/invoices", sale(2), map[string]string{"Idempotency-Key": "abc"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get(middlewares.CorrelationHeader) == "" {
		t.Fatalf("expected correlation id header")
	}
	created := decodeBody(t, w)
	if created["total_amount"] != "113" {
		t.Fatalf("unexpected total %v", created["total_amount"])
	}

	// same key replays without posting again
	w = doJSON(t, r, http.MethodPost, "/invoices", sale(2), map[string]string{"Idempotency-Key": "abc"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d: %s", w.Code, w.Body.String())
	}
	if replayed := decodeBody(t, w); replayed["id"] != created["id"] {
		t.Fatalf("expected invoice %v, got %v", created["id"], replayed["id"])
	}

	w = doJSON(t, r, http.MethodPost, "/invoices", sale(10), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["code"] != "insufficient_stock" || body["available"] != float64(3) {
		t.Fatalf("unexpected conflict body %v", body)
	}

	w = doJSON(t, r, http.MethodPost, "/invoices", map[string]any{"invoice_type": "SALE", "customer_id": customer.ID}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["field"] != "items" {
		t.Fatalf("unexpected validation body %v", body)
	}

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/invoices/%v", created["id"]), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	voucherId := decodeBody(t, w)["voucher_id"]
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/vouchers/%v", voucherId), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected voucher, got %d", w.Code)
	}
	if entries, _ := decodeBody(t, w)["entries"].([]any); len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %v", entries)
	}
}

func TestReportEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testutil.NewDB(t)
	r := newRouter(testutil.Logger())

	w := doJSON(t, r, http.MethodGet, "/reports/trial-balance?as_of=2026-13-01", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad date, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/reports/trial-balance", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["is_balanced"] != true {
		t.Fatalf("empty books should balance: %v", body)
	}

	w = doJSON(t, r, http.MethodGet, "/reports/trial-balance/export", nil, nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("expected workbook, got %d (%d bytes)", w.Code, w.Body.Len())
	}

	w = doJSON(t, r, http.MethodGet, "/ledgers/9999/balance", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/nowhere", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", w.Code)
	}
}

func TestListEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testutil.NewDB(t)
	r := newRouter(testutil.Logger())

	testutil.CreateProduct(t, "Widget", "50", 5)
	testutil.CreateProduct(t, "Bolt", "1", 5)
	testutil.CreateCustomer(t, "Ram")
	testutil.CreateSupplier(t, "Hari")

	cases := []struct {
		path string
		want int
	}{
		{"/products", 2},
		{"/customers", 1},
		{"/suppliers", 1},
		{"/account-groups", 18},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := doJSON(t, r, http.MethodGet, tc.path, nil, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			var list []map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(list) != tc.want {
				t.Fatalf("expected %d rows, got %d", tc.want, len(list))
			}
		})
	}

	w := doJSON(t, r, http.MethodGet, "/products", nil, nil)
	var products []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &products); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if products[0]["name"] != "Bolt" {
		t.Fatalf("expected products ordered by name, got %v", products[0]["name"])
	}
}
