package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/stockpile-dev/stockpile/internal/filter"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log AuditLog) error
}

// Service coordinates catalog reads and stock writes. It validates
// every request in full before the repository runs anything.
type Service struct {
	repo  Repository
	cache *Cache
	audit AuditPort
	group singleflight.Group
}

// NewService builds Service. cache and audit may be nil.
func NewService(repo Repository, cache *Cache, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

// ListParams narrow a plain listing.
type ListParams struct {
	Category string
	Limit    int
}

// SearchParams drive the relevance-ranked search.
type SearchParams struct {
	Query string
	Limit int
}

// AdvancedSearchParams drive the wide search with narrowing options.
type AdvancedSearchParams struct {
	Query    string
	MinStock int
	Category string
	SortBy   string
	Limit    int
}

// FilterParams is the raw filter request before compilation.
type FilterParams struct {
	Filters  map[string]any
	Search   string
	Ordering []string
	Page     int
	PageSize int
}

// StatsParams select the filtered subset and the fields to break down.
type StatsParams struct {
	Filters map[string]any
	Fields  []string
}

// LowStockParams bound the low stock report.
type LowStockParams struct {
	Threshold int
	Limit     int
}

// SetStockParams describe an absolute stock write.
type SetStockParams struct {
	SKU      string
	Stock    int
	Expected *int
	Actor    string
}

// AdjustStockParams describe a relative stock write.
type AdjustStockParams struct {
	SKU   string
	Delta int
	Actor string
}

// Get fetches one product by SKU.
func (s *Service) Get(ctx context.Context, sku string) (Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return Product{}, &filter.InvalidValueError{Field: "sku", Reason: "sku is required"}
	}
	return s.repo.GetBySKU(ctx, sku)
}

// List returns products, optionally narrowed by category, in title order.
func (s *Service) List(ctx context.Context, p ListParams) ([]Product, error) {
	limit, err := normalizeLimit(p.Limit, 10)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ListQuery{Category: strings.TrimSpace(p.Category), Limit: limit})
}

// Search runs the relevance-ranked text search.
func (s *Service) Search(ctx context.Context, p SearchParams) ([]Product, error) {
	query := strings.TrimSpace(p.Query)
	if query == "" {
		return nil, &filter.InvalidValueError{Field: "query", Reason: "query is required"}
	}
	limit, err := normalizeLimit(p.Limit, 10)
	if err != nil {
		return nil, err
	}
	return s.repo.Search(ctx, SearchQuery{Query: query, Limit: limit})
}

// AdvancedSearch runs the wide text search. An unknown sort key falls
// back to title order.
func (s *Service) AdvancedSearch(ctx context.Context, p AdvancedSearchParams) ([]Product, error) {
	query := strings.TrimSpace(p.Query)
	if query == "" {
		return nil, &filter.InvalidValueError{Field: "query", Reason: "query is required"}
	}
	if p.MinStock < 0 {
		return nil, &filter.InvalidValueError{Field: "min_stock", Value: p.MinStock, Reason: "min_stock must not be negative"}
	}
	limit, err := normalizeLimit(p.Limit, 15)
	if err != nil {
		return nil, err
	}
	return s.repo.AdvancedSearch(ctx, AdvancedSearchQuery{
		Query:    query,
		MinStock: p.MinStock,
		Category: strings.TrimSpace(p.Category),
		SortBy:   p.SortBy,
		Limit:    limit,
	})
}

// Filter compiles the filter request and returns the requested page.
func (s *Service) Filter(ctx context.Context, p FilterParams) (ProductPage, error) {
	clauses, err := filter.Compile(Fields, p.Filters)
	if err != nil {
		return ProductPage{}, err
	}
	ordering, err := filter.ParseOrdering(Fields, p.Ordering)
	if err != nil {
		return ProductPage{}, err
	}
	page, err := filter.NewPage(p.Page, p.PageSize)
	if err != nil {
		return ProductPage{}, err
	}
	return s.repo.FilterPage(ctx, FilterQuery{
		Clauses:  clauses,
		Search:   strings.TrimSpace(p.Search),
		Ordering: ordering,
		Page:     page,
	})
}

// GroupCount breaks one registry field down over the filtered subset
// and reports the subset total alongside.
func (s *Service) GroupCount(ctx context.Context, filters map[string]any, field string) (FieldStats, int, error) {
	clauses, err := filter.Compile(Fields, filters)
	if err != nil {
		return FieldStats{}, 0, err
	}
	f, err := Fields.Field(field)
	if err != nil {
		return FieldStats{}, 0, err
	}

	var (
		counts []GroupCount
		total  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.repo.GroupCounts(gctx, clauses, f)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.FilteredCount(gctx, clauses)
		return err
	})
	if err := g.Wait(); err != nil {
		return FieldStats{}, 0, err
	}
	return FieldStats{Field: f.Name, Unique: len(counts), Groups: counts}, total, nil
}

// Stats aggregates breakdowns and summaries over the filtered subset.
// Identical concurrent requests share one computation, and the
// unfiltered result is served from the versioned cache.
func (s *Service) Stats(ctx context.Context, p StatsParams) (Stats, error) {
	clauses, err := filter.Compile(Fields, p.Filters)
	if err != nil {
		return Stats{}, err
	}
	names := p.Fields
	if len(names) == 0 {
		names = DefaultStatsFields
	}
	groups := make([]filter.Field, len(names))
	for i, name := range names {
		f, err := Fields.Field(name)
		if err != nil {
			return Stats{}, err
		}
		groups[i] = f
	}

	ch := s.group.DoChan(statsFlightKey(clauses, names), func() (any, error) {
		return s.loadStats(ctx, clauses, names, groups)
	})
	select {
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Stats{}, res.Err
		}
		return res.Val.(Stats), nil
	}
}

func (s *Service) loadStats(ctx context.Context, clauses []filter.Clause, names []string, groups []filter.Field) (Stats, error) {
	// Filtered subsets churn too much to cache; only the unfiltered
	// catalog-wide stats go through Redis.
	if len(clauses) > 0 {
		return s.computeStats(ctx, clauses, groups)
	}
	key, err := s.cache.BuildKey(ctx, keyStats(names)...)
	if err != nil {
		return s.computeStats(ctx, clauses, groups)
	}
	var out Stats
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.computeStats(ctx, clauses, groups)
	})
	if err == nil {
		return out, nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return Stats{}, err
	}
	return s.computeStats(ctx, clauses, groups)
}

func (s *Service) computeStats(ctx context.Context, clauses []filter.Clause, groups []filter.Field) (Stats, error) {
	stats := Stats{Fields: make([]FieldStats, len(groups))}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := s.repo.FilteredCount(gctx, clauses)
		stats.TotalCount = total
		return err
	})
	for i, f := range groups {
		g.Go(func() error {
			counts, err := s.repo.GroupCounts(gctx, clauses, f)
			if err != nil {
				return err
			}
			stats.Fields[i] = FieldStats{Field: f.Name, Unique: len(counts), Groups: counts}
			return nil
		})
	}
	g.Go(func() error {
		sum, err := s.repo.StockSummary(gctx, clauses)
		stats.Stock = sum
		return err
	})
	g.Go(func() error {
		sum, err := s.repo.PriceSummary(gctx, clauses)
		stats.Price = sum
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Categories lists category/subcategory counts through the cache.
func (s *Service) Categories(ctx context.Context) ([]CategoryCount, error) {
	key, err := s.cache.BuildKey(ctx, keyCategories()...)
	if err != nil {
		return s.repo.Categories(ctx)
	}
	var out []CategoryCount
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.Categories(ctx)
	})
	if err == nil {
		return out, nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return nil, err
	}
	return s.repo.Categories(ctx)
}

// LowStock lists products at or under the threshold, lowest first.
func (s *Service) LowStock(ctx context.Context, p LowStockParams) ([]Product, error) {
	if p.Threshold < 0 {
		return nil, &filter.InvalidValueError{Field: "threshold", Value: p.Threshold, Reason: "threshold must not be negative"}
	}
	limit, err := normalizeLimit(p.Limit, 20)
	if err != nil {
		return nil, err
	}
	return s.repo.LowStock(ctx, p.Threshold, limit)
}

// SetStock writes an absolute stock level. With Expected set the write
// only lands when the current level still matches.
func (s *Service) SetStock(ctx context.Context, p SetStockParams) (Product, error) {
	sku := strings.TrimSpace(p.SKU)
	if sku == "" {
		return Product{}, &filter.InvalidValueError{Field: "sku", Reason: "sku is required"}
	}
	if p.Stock < 0 {
		return Product{}, &filter.InvalidValueError{Field: "stock", Value: p.Stock, Reason: "stock must not be negative"}
	}
	if p.Expected != nil && *p.Expected < 0 {
		return Product{}, &filter.InvalidValueError{Field: "expected_stock", Value: *p.Expected, Reason: "expected_stock must not be negative"}
	}

	product, err := s.repo.SetStock(ctx, sku, p.Stock, p.Expected)
	if err != nil {
		return Product{}, err
	}
	s.recordStockAudit(ctx, p.Actor, "catalog:set_stock", product, map[string]any{"stock": p.Stock, "expected": p.Expected})
	return product, nil
}

// AdjustStock applies a relative stock change. The store rejects any
// change that would take stock below zero.
func (s *Service) AdjustStock(ctx context.Context, p AdjustStockParams) (Product, error) {
	sku := strings.TrimSpace(p.SKU)
	if sku == "" {
		return Product{}, &filter.InvalidValueError{Field: "sku", Reason: "sku is required"}
	}
	if p.Delta == 0 {
		return Product{}, &filter.InvalidValueError{Field: "delta", Value: p.Delta, Reason: "delta must not be zero"}
	}

	product, err := s.repo.AdjustStock(ctx, sku, p.Delta)
	if err != nil {
		return Product{}, err
	}
	s.recordStockAudit(ctx, p.Actor, "catalog:adjust_stock", product, map[string]any{"delta": p.Delta, "stock": product.Stock})
	return product, nil
}

func (s *Service) recordStockAudit(ctx context.Context, actor, action string, product Product, meta map[string]any) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, AuditLog{
			Actor:    actor,
			Action:   action,
			Entity:   "product",
			EntityID: product.SKU,
			Meta:     meta,
		})
	}
	// Stock moved, so every versioned stats key is stale.
	_ = s.cache.Bump(ctx)
}

func statsFlightKey(clauses []filter.Clause, names []string) string {
	var b strings.Builder
	b.WriteString(strings.Join(names, ","))
	for _, c := range clauses {
		b.WriteString("|")
		b.WriteString(c.Field.Name)
		b.WriteString(":")
		b.WriteString(string(c.Lookup))
		b.WriteString(":")
		if c.Lookup == filter.LookupIn {
			fmt.Fprintf(&b, "%v", c.Values)
		} else {
			fmt.Fprintf(&b, "%v", c.Value)
		}
	}
	return b.String()
}

func normalizeLimit(limit, fallback int) (int, error) {
	if limit == 0 {
		return fallback, nil
	}
	if limit < 1 {
		return 0, &filter.InvalidValueError{Field: "limit", Value: limit, Reason: "limit must be at least 1"}
	}
	if limit > filter.MaxPageSize {
		return 0, &filter.InvalidValueError{Field: "limit", Value: limit, Reason: fmt.Sprintf("limit must be at most %d", filter.MaxPageSize)}
	}
	return limit, nil
}
