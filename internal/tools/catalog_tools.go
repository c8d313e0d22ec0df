package tools

import (
	"context"
	"encoding/json"

	"github.com/stockpile-dev/stockpile/internal/catalog"
)

type actorKey struct{}

// WithActor tags the context with who is calling, for the audit trail.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "api"
}

// CatalogTools binds the full tool set to the catalog service.
func CatalogTools(svc *catalog.Service) []Tool {
	return []Tool{
		{
			Name:        "get_product",
			Description: "Get a single product by SKU",
			InputSchema: getProductSchema,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				var p struct {
					SKU string `json:"sku"`
				}
				if err := decode(args, &p); err != nil {
					return nil, err
				}
				return svc.Get(ctx, p.SKU)
			},
		},
		{
			Name:        "list_products",
			Description: "List products, optionally narrowed by category",
			InputSchema: listProductsSchema,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				var p struct {
					Category string `json:"category"`
					Limit    int    `json:"limit"`
				}
				if err := decode(args, &p); err != nil {
					return nil, err
				}
				return svc.List(ctx, catalog.ListParams{Category: p.Category, Limit: p.Limit})
			},
		},
		{
			Name:        "search_products",
			Description: "Search products by title, description, sku, category, color or subcategory, most relevant first",
			InputSchema: searchProductsSchema,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				var p struct {
					Query string `json:"query"`
					Limit int    `json:"limit"`
				}
				if err := decode(args, &p); err != nil {
					return nil, err
				}
				return svc.Search(ctx, catalog.SearchParams{Query: p.Query, Limit: p.Limit})
			},
		},
		{
			Name:        "advanced_search_products",
			Description: "Search across every product field with optional stock and category narrowing",
			InputSchema: advancedSearchProductsSchema,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				var p struct {
					Query    string `json:"query"`
					Limit    int    `json:"limit"`
					MinStock int    `json:"min_stock"`
					Category string `json:"category_filter"`
					SortBy   string `json:"sort_by"`
				}
				if err := decode(args, &p); err != nil {
					return nil, err
				}
				return svc.AdvancedSearch(ctx, catalog.AdvancedSearchParams{
					Query:    p.Query,
					Limit:    p.Limit,
					MinStock: p.MinStock,
					Category: p.Category,
					SortBy:   p.SortBy,
				})
			},
		},
		{
			Name:        "filter_products",
			Description: "Filter products with field__lookup conditions, ordering and pagination",
			InputSchema: filterProductsSchema,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				var p struct {
					Filters  map[string]any `json:"filters"`
					Search   string         `json:"search"`
					Ordering []string       `json:"ordering"`
					Page     int            `json:"page"`
					PageSize int            `json:"page_size"`
				}
				if err := decode(args, &p); err != nil {
					return nil, err
				}
				if p.Ordering == nil {
					p.Ordering = catalog.DefaultOrdering
				}
				return svc.Filter(ctx, catalog.FilterParams{
					Filters:  pruneUnset(p.Filters),
					Search:   p.Search,
					Ordering: p.Ordering,
					Page:     p.Page,
					PageSize: p.PageSize,
				})
			},
		},
		{
			Name:        "get_categories",
			Description: "List every category and subcategory with product counts",
			InputSchema: getCategoriesSchema,
			Handler: func(ctx context.Context, _ map[string]any) (any, error) {
				return svc.Categories(ctx)
			},
		},
		{
			Name:        "get_low_stock_products",
			Description: "List products at or under a stock threshold, lowest first",
			InputSchema: getLowStockProductsSchema,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				p := struct {
					Threshold *int `json:"threshold"`
					Limit     int  `json:"limit"`
				}{}
				if err := decode(args, &p); err != nil {
					return nil, err
				}
				threshold := catalog.DefaultLowStockThreshold
				if p.Threshold != nil {
					threshold = *p.Threshold
				}
				return svc.LowStock(ctx, catalog.LowStockParams{Threshold: threshold, Limit: p.Limit})
			},
		},
		{
			Name:        "get_filter_stats",
			Description: "Value breakdowns plus stock and price summaries, over the filtered subset",
			InputSchema: getFilterStatsSchema,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				var p struct {
					Filters map[string]any `json:"filters"`
					Fields  []string       `json:"fields"`
				}
				if err := decode(args, &p); err != nil {
					return nil, err
				}
				return svc.Stats(ctx, catalog.StatsParams{Filters: pruneUnset(p.Filters), Fields: p.Fields})
			},
		},
		{
			Name:        "update_stock",
			Description: "Set a product's stock level, optionally only when the current level still matches expected_stock",
			InputSchema: updateStockSchema,
			Mutating:    true,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				var p struct {
					SKU      string `json:"sku"`
					Stock    int    `json:"stock"`
					Expected *int   `json:"expected_stock"`
				}
				if err := decode(args, &p); err != nil {
					return nil, err
				}
				return svc.SetStock(ctx, catalog.SetStockParams{
					SKU:      p.SKU,
					Stock:    p.Stock,
					Expected: p.Expected,
					Actor:    actorFrom(ctx),
				})
			},
		},
		{
			Name:        "adjust_stock",
			Description: "Change a product's stock by a delta; never takes stock below zero",
			InputSchema: adjustStockSchema,
			Mutating:    true,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				var p struct {
					SKU   string `json:"sku"`
					Delta int    `json:"delta"`
				}
				if err := decode(args, &p); err != nil {
					return nil, err
				}
				return svc.AdjustStock(ctx, catalog.AdjustStockParams{
					SKU:   p.SKU,
					Delta: p.Delta,
					Actor: actorFrom(ctx),
				})
			},
		},
	}
}

// decode narrows schema-valid arguments into a typed parameter struct.
func decode(args map[string]any, dest any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// pruneUnset drops null and empty-string filter values, which clients
// send to mean "not set".
func pruneUnset(filters map[string]any) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	out := make(map[string]any, len(filters))
	for key, value := range filters {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		out[key] = value
	}
	return out
}
