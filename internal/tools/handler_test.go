package tools_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stockpile-dev/stockpile/internal/catalog"
	"github.com/stockpile-dev/stockpile/internal/filter"
	"github.com/stockpile-dev/stockpile/internal/tools"
	_ "github.com/stockpile-dev/stockpile/testing"
)

// stubRepo answers with canned data; the transport tests only care
// about status codes, envelopes and error mapping.
type stubRepo struct {
	product    catalog.Product
	page       catalog.ProductPage
	storeErr   error
	conflict   bool
	lastFilter catalog.FilterQuery
}

func (s *stubRepo) GetBySKU(_ context.Context, sku string) (catalog.Product, error) {
	if s.storeErr != nil {
		return catalog.Product{}, s.storeErr
	}
	if sku != s.product.SKU {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return s.product, nil
}

func (s *stubRepo) List(context.Context, catalog.ListQuery) ([]catalog.Product, error) {
	return []catalog.Product{s.product}, s.storeErr
}

func (s *stubRepo) Search(context.Context, catalog.SearchQuery) ([]catalog.Product, error) {
	return []catalog.Product{s.product}, s.storeErr
}

func (s *stubRepo) AdvancedSearch(context.Context, catalog.AdvancedSearchQuery) ([]catalog.Product, error) {
	return []catalog.Product{s.product}, s.storeErr
}

func (s *stubRepo) FilterPage(_ context.Context, q catalog.FilterQuery) (catalog.ProductPage, error) {
	s.lastFilter = q
	if s.storeErr != nil {
		return catalog.ProductPage{}, s.storeErr
	}
	return s.page, nil
}

func (s *stubRepo) FilteredCount(context.Context, []filter.Clause) (int, error) {
	return s.page.TotalCount, s.storeErr
}

func (s *stubRepo) GroupCounts(context.Context, []filter.Clause, filter.Field) ([]catalog.GroupCount, error) {
	return []catalog.GroupCount{{Value: "T-Shirts", Count: 2}}, s.storeErr
}

func (s *stubRepo) StockSummary(context.Context, []filter.Clause) (catalog.StockSummary, error) {
	return catalog.StockSummary{}, s.storeErr
}

func (s *stubRepo) PriceSummary(context.Context, []filter.Clause) (catalog.PriceSummary, error) {
	return catalog.PriceSummary{}, s.storeErr
}

func (s *stubRepo) Categories(context.Context) ([]catalog.CategoryCount, error) {
	return []catalog.CategoryCount{{Category: "T-Shirts", Subcategory: "Short Sleeve", Count: 2}}, s.storeErr
}

func (s *stubRepo) LowStock(context.Context, int, int) ([]catalog.Product, error) {
	return []catalog.Product{s.product}, s.storeErr
}

func (s *stubRepo) SetStock(_ context.Context, sku string, stock int, _ *int) (catalog.Product, error) {
	if s.storeErr != nil {
		return catalog.Product{}, s.storeErr
	}
	if s.conflict {
		return catalog.Product{}, catalog.ErrStockConflict
	}
	if sku != s.product.SKU {
		return catalog.Product{}, catalog.ErrNotFound
	}
	p := s.product
	p.Stock = stock
	return p, nil
}

func (s *stubRepo) AdjustStock(_ context.Context, sku string, delta int) (catalog.Product, error) {
	if s.storeErr != nil {
		return catalog.Product{}, s.storeErr
	}
	if s.conflict {
		return catalog.Product{}, catalog.ErrStockConflict
	}
	if sku != s.product.SKU {
		return catalog.Product{}, catalog.ErrNotFound
	}
	p := s.product
	p.Stock += delta
	return p, nil
}

type recordedAudit struct {
	logs []catalog.AuditLog
}

func (a *recordedAudit) Record(_ context.Context, log catalog.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newToolRouter(t *testing.T, repo *stubRepo, guard *tools.Guard) (chi.Router, *recordedAudit) {
	t.Helper()
	audit := &recordedAudit{}
	svc := catalog.NewService(repo, nil, audit)
	registry, err := tools.NewRegistry(tools.CatalogTools(svc)...)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	tools.NewHandler(logger, registry, guard, nil).MountRoutes(router)
	return router, audit
}

func defaultStub() *stubRepo {
	return &stubRepo{
		product: catalog.Product{ID: 1, SKU: "TS-001", Title: "Classic Cotton T-Shirt", Stock: 25},
		page: catalog.ProductPage{
			Items: []catalog.Product{
				{ID: 1, SKU: "TS-001", Title: "Classic Cotton T-Shirt", Stock: 25},
				{ID: 2, SKU: "TS-002", Title: "Heavy Cotton T-Shirt", Stock: 8},
			},
			PageMeta: filter.PageMeta{Page: 1, PageSize: 20, TotalCount: 2, TotalPages: 1},
		},
	}
}

func postCall(t *testing.T, router chi.Router, body map[string]any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/call", strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestListToolsEndpoint(t *testing.T) {
	router, _ := newToolRouter(t, defaultStub(), tools.NewGuard(""))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tools", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"input_schema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out.Tools, 10)
	require.Equal(t, "get_product", out.Tools[0].Name)
	for _, tool := range out.Tools {
		require.NotEmpty(t, tool.Description, tool.Name)
		require.True(t, json.Valid(tool.InputSchema), tool.Name)
	}
}

func TestCallFilterProducts(t *testing.T) {
	stub := defaultStub()
	router, _ := newToolRouter(t, stub, tools.NewGuard(""))

	rr := postCall(t, router, map[string]any{
		"name": "filter_products",
		"arguments": map[string]any{
			"filters": map[string]any{
				"stock__gte":       5,
				"color__icontains": "",
			},
		},
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		CallID string `json:"call_id"`
		Name   string `json:"name"`
		Result struct {
			Items      []catalog.Product `json:"items"`
			TotalCount int               `json:"total_count"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.NotEmpty(t, out.CallID)
	require.Equal(t, "filter_products", out.Name)
	require.Len(t, out.Result.Items, 2)
	require.Equal(t, 2, out.Result.TotalCount)

	// The blank color filter is treated as unset; stock__gte compiles.
	require.Len(t, stub.lastFilter.Clauses, 1)
	require.Equal(t, "stock", stub.lastFilter.Clauses[0].Field.Name)
	// Nothing asked for an ordering, so the conventional title order applies.
	require.Len(t, stub.lastFilter.Ordering, 1)
	require.Equal(t, "title", stub.lastFilter.Ordering[0].Field.Name)
}

func TestCallSchemaRejections(t *testing.T) {
	router, _ := newToolRouter(t, defaultStub(), tools.NewGuard(""))

	cases := []struct {
		name string
		tool string
		args map[string]any
	}{
		{name: "page zero", tool: "filter_products", args: map[string]any{"page": 0}},
		{name: "page size zero", tool: "filter_products", args: map[string]any{"page_size": 0}},
		{name: "page size over max", tool: "filter_products", args: map[string]any{"page_size": 101}},
		{name: "limit zero", tool: "list_products", args: map[string]any{"limit": 0}},
		{name: "negative stock", tool: "update_stock", args: map[string]any{"sku": "TS-001", "stock": -1}},
		{name: "missing query", tool: "search_products", args: map[string]any{}},
		{name: "negative threshold", tool: "get_low_stock_products", args: map[string]any{"threshold": -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postCall(t, router, map[string]any{"name": tc.tool, "arguments": tc.args}, nil)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

			var problem struct {
				Title  string `json:"title"`
				Status int    `json:"status"`
				Detail string `json:"detail"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
			require.Equal(t, "Validation Failed", problem.Title)
			require.NotEmpty(t, problem.Detail)
		})
	}
}

func TestCallUnknownFieldRejected(t *testing.T) {
	router, _ := newToolRouter(t, defaultStub(), tools.NewGuard(""))

	rr := postCall(t, router, map[string]any{
		"name":      "filter_products",
		"arguments": map[string]any{"filters": map[string]any{"velocity__gte": 3}},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "unknown field")
}

func TestCallUnknownTool(t *testing.T) {
	router, _ := newToolRouter(t, defaultStub(), tools.NewGuard(""))

	rr := postCall(t, router, map[string]any{"name": "drop_table", "arguments": map[string]any{}}, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "Unknown Tool")
}

func TestCallMalformedBody(t *testing.T) {
	router, _ := newToolRouter(t, defaultStub(), tools.NewGuard(""))

	req := httptest.NewRequest(http.MethodPost, "/v1/tools/call", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postCall(t, router, map[string]any{"arguments": map[string]any{}}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "name is required")
}

func TestCallProductNotFound(t *testing.T) {
	router, _ := newToolRouter(t, defaultStub(), tools.NewGuard(""))

	rr := postCall(t, router, map[string]any{
		"name":      "get_product",
		"arguments": map[string]any{"sku": "NOPE-1"},
	}, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "Not Found")
}

func TestCallStoreUnavailable(t *testing.T) {
	stub := defaultStub()
	stub.storeErr = &catalog.StoreError{Stage: catalog.StageCount, Err: io.ErrUnexpectedEOF}
	router, _ := newToolRouter(t, stub, tools.NewGuard(""))

	rr := postCall(t, router, map[string]any{"name": "filter_products", "arguments": map[string]any{}}, nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "count")
}

func TestCallStockConflict(t *testing.T) {
	stub := defaultStub()
	stub.conflict = true
	router, _ := newToolRouter(t, stub, tools.NewGuard(""))

	rr := postCall(t, router, map[string]any{
		"name":      "update_stock",
		"arguments": map[string]any{"sku": "TS-001", "stock": 30, "expected_stock": 25},
	}, nil)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestWriteGuard(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmewrite"), bcrypt.DefaultCost)
	require.NoError(t, err)
	router, audit := newToolRouter(t, defaultStub(), tools.NewGuard(string(hash)))

	update := map[string]any{
		"name":      "update_stock",
		"arguments": map[string]any{"sku": "TS-001", "stock": 30},
	}

	rr := postCall(t, router, update, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = postCall(t, router, update, map[string]string{"Authorization": "Bearer wrong"})
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Empty(t, audit.logs)

	rr = postCall(t, router, update, map[string]string{"Authorization": "Bearer letmewrite"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, audit.logs, 1)

	// Read tools never consult the guard.
	rr = postCall(t, router, map[string]any{
		"name":      "get_product",
		"arguments": map[string]any{"sku": "TS-001"},
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCallActorRecorded(t *testing.T) {
	router, audit := newToolRouter(t, defaultStub(), tools.NewGuard(""))

	rr := postCall(t, router, map[string]any{
		"name":      "adjust_stock",
		"arguments": map[string]any{"sku": "TS-001", "delta": -5},
	}, map[string]string{"X-Actor": "warehouse-bot"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "warehouse-bot", audit.logs[0].Actor)
	require.Equal(t, "catalog:adjust_stock", audit.logs[0].Action)

	rr = postCall(t, router, map[string]any{
		"name":      "update_stock",
		"arguments": map[string]any{"sku": "TS-001", "stock": 12},
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "api", audit.logs[1].Actor)
}
