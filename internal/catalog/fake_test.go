package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/search"

	"github.com/stockpile-dev/stockpile/internal/filter"
)

// memoryRepo implements Repository over a slice, mirroring the store's
// matching and ordering semantics closely enough for service tests.
// failStage forces a StoreError for every call in that stage, and
// queries counts how often the store was touched at all.
type memoryRepo struct {
	products  []Product
	failStage string
	queries   int
}

func newMemoryRepo(products []Product) *memoryRepo {
	return &memoryRepo{products: products}
}

var errStoreDown = errors.New("store down")

func (r *memoryRepo) touch(stage string) error {
	r.queries++
	if r.failStage == stage {
		return storeErr(stage, errStoreDown)
	}
	return nil
}

func (r *memoryRepo) GetBySKU(_ context.Context, sku string) (Product, error) {
	if err := r.touch(StageFetch); err != nil {
		return Product{}, err
	}
	for _, p := range r.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (r *memoryRepo) List(_ context.Context, q ListQuery) ([]Product, error) {
	if err := r.touch(StageFetch); err != nil {
		return nil, err
	}
	matched := make([]Product, 0)
	for _, p := range r.products {
		if q.Category == "" || foldContains(p.Category, q.Category) {
			matched = append(matched, p)
		}
	}
	sortByTitle(matched)
	return truncate(matched, q.Limit), nil
}

func (r *memoryRepo) Search(_ context.Context, q SearchQuery) ([]Product, error) {
	if err := r.touch(StageFetch); err != nil {
		return nil, err
	}
	type ranked struct {
		p    Product
		rank int
	}
	matched := make([]ranked, 0)
	for _, p := range r.products {
		if !anyFoldContains(q.Query, p.Title, p.Description, p.SKU, p.Category, p.Color, p.Subcategory) {
			continue
		}
		rank := 4
		switch {
		case foldContains(p.SKU, q.Query):
			rank = 1
		case foldContains(p.Title, q.Query):
			rank = 2
		case foldContains(p.Category, q.Query):
			rank = 3
		}
		matched = append(matched, ranked{p: p, rank: rank})
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].rank != matched[j].rank {
			return matched[i].rank < matched[j].rank
		}
		if matched[i].p.Title != matched[j].p.Title {
			return matched[i].p.Title < matched[j].p.Title
		}
		return matched[i].p.ID < matched[j].p.ID
	})
	out := make([]Product, 0, len(matched))
	for _, m := range matched {
		out = append(out, m.p)
	}
	return truncate(out, q.Limit), nil
}

func (r *memoryRepo) AdvancedSearch(_ context.Context, q AdvancedSearchQuery) ([]Product, error) {
	if err := r.touch(StageFetch); err != nil {
		return nil, err
	}
	matched := make([]Product, 0)
	for _, p := range r.products {
		if !anyFoldContains(q.Query, p.SKU, p.Style, p.Title, p.Description, p.Category, p.Subcategory, p.Color, p.Size, p.Warehouse, p.Status) {
			continue
		}
		if q.MinStock > 0 && p.Stock < q.MinStock {
			continue
		}
		if q.Category != "" && !foldContains(p.Category, q.Category) {
			continue
		}
		matched = append(matched, p)
	}
	switch q.SortBy {
	case "stock":
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].Stock != matched[j].Stock {
				return matched[i].Stock > matched[j].Stock
			}
			return matched[i].ID < matched[j].ID
		})
	case "price":
		sort.SliceStable(matched, func(i, j int) bool {
			pi, pj := matched[i].Price, matched[j].Price
			switch {
			case pi == nil && pj == nil:
				return matched[i].ID < matched[j].ID
			case pi == nil:
				return false
			case pj == nil:
				return true
			case *pi != *pj:
				return *pi > *pj
			}
			return matched[i].ID < matched[j].ID
		})
	case "category":
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].Category != matched[j].Category {
				return matched[i].Category < matched[j].Category
			}
			if matched[i].Title != matched[j].Title {
				return matched[i].Title < matched[j].Title
			}
			return matched[i].ID < matched[j].ID
		})
	default:
		sortByTitle(matched)
	}
	return truncate(matched, q.Limit), nil
}

func (r *memoryRepo) FilterPage(_ context.Context, q FilterQuery) (ProductPage, error) {
	if err := r.touch(StageCount); err != nil {
		return ProductPage{}, err
	}
	if err := r.touch(StageFetch); err != nil {
		return ProductPage{}, err
	}
	matched := r.matching(q.Clauses)
	if q.Search != "" {
		narrowed := make([]Product, 0, len(matched))
		for _, p := range matched {
			if anyFoldContains(q.Search, p.Title, p.Description, p.SKU, p.Category, p.Color) {
				narrowed = append(narrowed, p)
			}
		}
		matched = narrowed
	}
	sortByTerms(matched, q.Ordering)

	total := len(matched)
	start := q.Page.Offset()
	if start > total {
		start = total
	}
	end := start + q.Page.Size
	if end > total {
		end = total
	}
	items := make([]Product, end-start)
	copy(items, matched[start:end])
	return ProductPage{Items: items, PageMeta: filter.NewPageMeta(q.Page, total)}, nil
}

func (r *memoryRepo) FilteredCount(_ context.Context, clauses []filter.Clause) (int, error) {
	if err := r.touch(StageStats); err != nil {
		return 0, err
	}
	return len(r.matching(clauses)), nil
}

func (r *memoryRepo) GroupCounts(_ context.Context, clauses []filter.Clause, group filter.Field) ([]GroupCount, error) {
	if err := r.touch(StageStats); err != nil {
		return nil, err
	}
	byValue := map[string]int{}
	for _, p := range r.matching(clauses) {
		var value string
		if group.Kind == filter.KindText {
			value = textField(p, group.Name)
			if value == "" {
				continue
			}
		} else {
			n, ok := numberField(p, group.Name)
			if !ok {
				continue
			}
			value = formatGroupValue(n)
		}
		byValue[value]++
	}
	counts := make([]GroupCount, 0, len(byValue))
	for value, count := range byValue {
		counts = append(counts, GroupCount{Value: value, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Value < counts[j].Value
	})
	return counts, nil
}

func (r *memoryRepo) StockSummary(_ context.Context, clauses []filter.Clause) (StockSummary, error) {
	if err := r.touch(StageStats); err != nil {
		return StockSummary{}, err
	}
	var s StockSummary
	var sum int
	for _, p := range r.matching(clauses) {
		s.Counted++
		sum += p.Stock
		if s.Min == nil || p.Stock < *s.Min {
			v := p.Stock
			s.Min = &v
		}
		if s.Max == nil || p.Stock > *s.Max {
			v := p.Stock
			s.Max = &v
		}
		if p.Stock == 0 {
			s.OutOfStock++
		}
		if p.Stock <= 10 {
			s.AtOrBelow10++
		}
		if p.Stock <= 50 {
			s.AtOrBelow50++
		}
	}
	if s.Counted > 0 {
		avg := float64(sum) / float64(s.Counted)
		s.Avg = &avg
	}
	return s, nil
}

func (r *memoryRepo) PriceSummary(_ context.Context, clauses []filter.Clause) (PriceSummary, error) {
	if err := r.touch(StageStats); err != nil {
		return PriceSummary{}, err
	}
	var s PriceSummary
	var sum float64
	for _, p := range r.matching(clauses) {
		if p.Price == nil {
			continue
		}
		s.Priced++
		sum += *p.Price
		if s.Min == nil || *p.Price < *s.Min {
			v := *p.Price
			s.Min = &v
		}
		if s.Max == nil || *p.Price > *s.Max {
			v := *p.Price
			s.Max = &v
		}
	}
	if s.Priced > 0 {
		avg := sum / float64(s.Priced)
		s.Avg = &avg
	}
	return s, nil
}

func (r *memoryRepo) Categories(_ context.Context) ([]CategoryCount, error) {
	if err := r.touch(StageStats); err != nil {
		return nil, err
	}
	type key struct{ cat, sub string }
	byPair := map[key]int{}
	for _, p := range r.products {
		if p.Category == "" {
			continue
		}
		byPair[key{p.Category, p.Subcategory}]++
	}
	counts := make([]CategoryCount, 0, len(byPair))
	for k, count := range byPair {
		counts = append(counts, CategoryCount{Category: k.cat, Subcategory: k.sub, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Category != counts[j].Category {
			return counts[i].Category < counts[j].Category
		}
		return counts[i].Subcategory < counts[j].Subcategory
	})
	return counts, nil
}

func (r *memoryRepo) LowStock(_ context.Context, threshold, limit int) ([]Product, error) {
	if err := r.touch(StageFetch); err != nil {
		return nil, err
	}
	matched := make([]Product, 0)
	for _, p := range r.products {
		if p.Stock <= threshold {
			matched = append(matched, p)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Stock != matched[j].Stock {
			return matched[i].Stock < matched[j].Stock
		}
		return matched[i].ID < matched[j].ID
	})
	return truncate(matched, limit), nil
}

func (r *memoryRepo) SetStock(_ context.Context, sku string, stock int, expected *int) (Product, error) {
	if err := r.touch(StageUpdate); err != nil {
		return Product{}, err
	}
	for i := range r.products {
		if r.products[i].SKU != sku {
			continue
		}
		if expected != nil && r.products[i].Stock != *expected {
			return Product{}, ErrStockConflict
		}
		r.products[i].Stock = stock
		return r.products[i], nil
	}
	return Product{}, ErrNotFound
}

func (r *memoryRepo) AdjustStock(_ context.Context, sku string, delta int) (Product, error) {
	if err := r.touch(StageUpdate); err != nil {
		return Product{}, err
	}
	for i := range r.products {
		if r.products[i].SKU != sku {
			continue
		}
		if r.products[i].Stock+delta < 0 {
			return Product{}, ErrStockConflict
		}
		r.products[i].Stock += delta
		return r.products[i], nil
	}
	return Product{}, ErrNotFound
}

func (r *memoryRepo) matching(clauses []filter.Clause) []Product {
	matched := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		ok := true
		for _, c := range clauses {
			if !matchClause(p, c) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, p)
		}
	}
	return matched
}

func matchClause(p Product, c filter.Clause) bool {
	if c.Field.Kind == filter.KindText {
		value := textField(p, c.Field.Name)
		switch c.Lookup {
		case filter.LookupExact:
			return value == c.Value.(string)
		case filter.LookupIContains:
			return foldContains(value, c.Value.(string))
		case filter.LookupIn:
			for _, v := range c.Values {
				if value == v.(string) {
					return true
				}
			}
			return false
		}
		return false
	}

	value, present := numberField(p, c.Field.Name)
	if !present {
		return false
	}
	if c.Lookup == filter.LookupIn {
		for _, v := range c.Values {
			if value == clauseNumber(v) {
				return true
			}
		}
		return false
	}
	want := clauseNumber(c.Value)
	switch c.Lookup {
	case filter.LookupExact:
		return value == want
	case filter.LookupGT:
		return value > want
	case filter.LookupGTE:
		return value >= want
	case filter.LookupLT:
		return value < want
	case filter.LookupLTE:
		return value <= want
	}
	return false
}

func clauseNumber(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func textField(p Product, name string) string {
	switch name {
	case "sku":
		return p.SKU
	case "style":
		return p.Style
	case "title":
		return p.Title
	case "description":
		return p.Description
	case "category":
		return p.Category
	case "subcategory":
		return p.Subcategory
	case "color":
		return p.Color
	case "size":
		return p.Size
	case "warehouse":
		return p.Warehouse
	case "status":
		return p.Status
	}
	return ""
}

func numberField(p Product, name string) (float64, bool) {
	switch name {
	case "stock":
		return float64(p.Stock), true
	case "price":
		if p.Price == nil {
			return 0, false
		}
		return *p.Price, true
	}
	return 0, false
}

func sortByTerms(products []Product, terms []filter.OrderTerm) {
	sort.SliceStable(products, func(i, j int) bool {
		for _, t := range terms {
			cmp := compareByField(products[i], products[j], t.Field)
			if cmp == 0 {
				continue
			}
			if t.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return products[i].ID < products[j].ID
	})
}

func compareByField(a, b Product, f filter.Field) int {
	if f.Kind == filter.KindText {
		return strings.Compare(textField(a, f.Name), textField(b, f.Name))
	}
	av, aok := numberField(a, f.Name)
	bv, bok := numberField(b, f.Name)
	// Missing values sort as largest, like SQL NULLs.
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	case av < bv:
		return -1
	case av > bv:
		return 1
	}
	return 0
}

func sortByTitle(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Title != products[j].Title {
			return products[i].Title < products[j].Title
		}
		return products[i].ID < products[j].ID
	})
}

func truncate(products []Product, limit int) []Product {
	if limit > 0 && len(products) > limit {
		return products[:limit]
	}
	return products
}

// foldMatcher mirrors ILIKE's case folding for the in-memory store.
var foldMatcher = search.New(language.Und, search.IgnoreCase)

func foldContains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	start, _ := foldMatcher.IndexString(haystack, needle)
	return start >= 0
}

func anyFoldContains(needle string, haystacks ...string) bool {
	for _, h := range haystacks {
		if foldContains(h, needle) {
			return true
		}
	}
	return false
}

type memoryAudit struct {
	logs []AuditLog
}

func (a *memoryAudit) Record(_ context.Context, log AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}
