package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpile-dev/stockpile/internal/filter"
)

// ListQuery narrows a plain catalog listing.
type ListQuery struct {
	Category string
	Limit    int
}

// SearchQuery is a relevance-ranked text search.
type SearchQuery struct {
	Query string
	Limit int
}

// AdvancedSearchQuery is a wide text search with optional narrowing.
type AdvancedSearchQuery struct {
	Query    string
	MinStock int
	Category string
	SortBy   string
	Limit    int
}

// FilterQuery carries a compiled filter request to the store.
type FilterQuery struct {
	Clauses  []filter.Clause
	Search   string
	Ordering []filter.OrderTerm
	Page     filter.Page
}

// Repository is the catalog storage port.
type Repository interface {
	GetBySKU(ctx context.Context, sku string) (Product, error)
	List(ctx context.Context, q ListQuery) ([]Product, error)
	Search(ctx context.Context, q SearchQuery) ([]Product, error)
	AdvancedSearch(ctx context.Context, q AdvancedSearchQuery) ([]Product, error)
	FilterPage(ctx context.Context, q FilterQuery) (ProductPage, error)
	FilteredCount(ctx context.Context, clauses []filter.Clause) (int, error)
	GroupCounts(ctx context.Context, clauses []filter.Clause, group filter.Field) ([]GroupCount, error)
	StockSummary(ctx context.Context, clauses []filter.Clause) (StockSummary, error)
	PriceSummary(ctx context.Context, clauses []filter.Clause) (PriceSummary, error)
	Categories(ctx context.Context) ([]CategoryCount, error)
	LowStock(ctx context.Context, threshold, limit int) ([]Product, error)
	SetStock(ctx context.Context, sku string, stock int, expected *int) (Product, error)
	AdjustStock(ctx context.Context, sku string, delta int) (Product, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the postgres-backed catalog repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

var productColumnsSQL = strings.Join(productColumns, ", ")

func (r *repository) GetBySKU(ctx context.Context, sku string) (Product, error) {
	query := `SELECT ` + productColumnsSQL + ` FROM products WHERE sku = $1`
	p, err := scanProduct(r.db.QueryRow(ctx, query, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, storeErr(StageFetch, err)
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, q ListQuery) ([]Product, error) {
	query := `SELECT ` + productColumnsSQL + ` FROM products`
	args := []any{}
	if q.Category != "" {
		query += ` WHERE category_name ILIKE $1`
		args = append(args, "%"+filter.EscapeLike(q.Category)+"%")
	}
	query += ` ORDER BY product_title ASC, id ASC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, q.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(StageFetch, err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *repository) Search(ctx context.Context, q SearchQuery) ([]Product, error) {
	// A SKU hit outranks a title hit, which outranks a category hit.
	query := `SELECT ` + productColumnsSQL + ` FROM products
		WHERE product_title ILIKE $1
		   OR product_description ILIKE $1
		   OR sku ILIKE $1
		   OR category_name ILIKE $1
		   OR color_name ILIKE $1
		   OR subcategory_name ILIKE $1
		ORDER BY
			CASE
				WHEN sku ILIKE $1 THEN 1
				WHEN product_title ILIKE $1 THEN 2
				WHEN category_name ILIKE $1 THEN 3
				ELSE 4
			END,
			product_title ASC, id ASC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, "%"+filter.EscapeLike(q.Query)+"%", q.Limit)
	if err != nil {
		return nil, storeErr(StageFetch, err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *repository) AdvancedSearch(ctx context.Context, q AdvancedSearchQuery) ([]Product, error) {
	query := `SELECT ` + productColumnsSQL + ` FROM products
		WHERE (sku ILIKE $1 OR style ILIKE $1 OR product_title ILIKE $1
		   OR product_description ILIKE $1 OR category_name ILIKE $1
		   OR subcategory_name ILIKE $1 OR color_name ILIKE $1
		   OR size ILIKE $1 OR warehouse ILIKE $1 OR product_status ILIKE $1)`
	args := []any{"%" + filter.EscapeLike(q.Query) + "%"}

	if q.MinStock > 0 {
		args = append(args, q.MinStock)
		query += ` AND stock >= $` + strconv.Itoa(len(args))
	}
	if q.Category != "" {
		args = append(args, "%"+filter.EscapeLike(q.Category)+"%")
		query += ` AND category_name ILIKE $` + strconv.Itoa(len(args))
	}

	query += " ORDER BY " + advancedSortOrder(q.SortBy)
	args = append(args, q.Limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(StageFetch, err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

func advancedSortOrder(sortBy string) string {
	switch sortBy {
	case "stock":
		return "stock DESC, id ASC"
	case "price":
		return "suggested_price DESC NULLS LAST, id ASC"
	case "category":
		return "category_name ASC, product_title ASC, id ASC"
	default:
		return "product_title ASC, id ASC"
	}
}

func (r *repository) FilterPage(ctx context.Context, q FilterQuery) (ProductPage, error) {
	spec := r.spec(q.Clauses)
	spec.Ordering = q.Ordering
	spec.Page = q.Page
	if q.Search != "" {
		spec.Search = &filter.Search{Needle: q.Search, Columns: searchColumns}
	}

	countSQL, countArgs, err := filter.BuildCount(spec)
	if err != nil {
		return ProductPage{}, err
	}
	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return ProductPage{}, storeErr(StageCount, err)
	}

	selectSQL, selectArgs, err := filter.BuildSelect(spec)
	if err != nil {
		return ProductPage{}, err
	}
	rows, err := r.db.Query(ctx, selectSQL, selectArgs...)
	if err != nil {
		return ProductPage{}, storeErr(StageFetch, err)
	}
	defer rows.Close()
	items, err := collectProducts(rows)
	if err != nil {
		return ProductPage{}, err
	}
	return ProductPage{Items: items, PageMeta: filter.NewPageMeta(q.Page, total)}, nil
}

func (r *repository) FilteredCount(ctx context.Context, clauses []filter.Clause) (int, error) {
	countSQL, args, err := filter.BuildCount(r.spec(clauses))
	if err != nil {
		return 0, err
	}
	var total int
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return 0, storeErr(StageStats, err)
	}
	return total, nil
}

func (r *repository) GroupCounts(ctx context.Context, clauses []filter.Clause, group filter.Field) ([]GroupCount, error) {
	query, args, err := filter.BuildGroupCount(r.spec(clauses), group)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(StageStats, err)
	}
	defer rows.Close()

	counts := make([]GroupCount, 0)
	for rows.Next() {
		var value any
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return nil, storeErr(StageStats, err)
		}
		counts = append(counts, GroupCount{Value: formatGroupValue(value), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(StageStats, err)
	}
	return counts, nil
}

func (r *repository) StockSummary(ctx context.Context, clauses []filter.Clause) (StockSummary, error) {
	// Aggregates over stock skip NULLs on their own, so the filtered
	// WHERE needs no stock IS NOT NULL term.
	query, args, err := filter.BuildAggregate(r.spec(clauses),
		`COUNT(stock), MIN(stock), MAX(stock), AVG(stock),
		COUNT(CASE WHEN stock = 0 THEN 1 END),
		COUNT(CASE WHEN stock <= 10 THEN 1 END),
		COUNT(CASE WHEN stock <= 50 THEN 1 END)`)
	if err != nil {
		return StockSummary{}, err
	}
	var s StockSummary
	err = r.db.QueryRow(ctx, query, args...).Scan(&s.Counted, &s.Min, &s.Max, &s.Avg, &s.OutOfStock, &s.AtOrBelow10, &s.AtOrBelow50)
	if err != nil {
		return StockSummary{}, storeErr(StageStats, err)
	}
	return s, nil
}

func (r *repository) PriceSummary(ctx context.Context, clauses []filter.Clause) (PriceSummary, error) {
	query, args, err := filter.BuildAggregate(r.spec(clauses),
		`MIN(suggested_price), MAX(suggested_price), AVG(suggested_price), COUNT(suggested_price)`)
	if err != nil {
		return PriceSummary{}, err
	}
	var p PriceSummary
	err = r.db.QueryRow(ctx, query, args...).Scan(&p.Min, &p.Max, &p.Avg, &p.Priced)
	if err != nil {
		return PriceSummary{}, storeErr(StageStats, err)
	}
	return p, nil
}

func (r *repository) Categories(ctx context.Context) ([]CategoryCount, error) {
	query := `SELECT category_name, subcategory_name, COUNT(*)
		FROM products
		WHERE category_name <> ''
		GROUP BY category_name, subcategory_name
		ORDER BY category_name, subcategory_name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, storeErr(StageStats, err)
	}
	defer rows.Close()

	counts := make([]CategoryCount, 0)
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Subcategory, &c.Count); err != nil {
			return nil, storeErr(StageStats, err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(StageStats, err)
	}
	return counts, nil
}

func (r *repository) LowStock(ctx context.Context, threshold, limit int) ([]Product, error) {
	query := `SELECT ` + productColumnsSQL + ` FROM products
		WHERE stock IS NOT NULL AND stock <= $1
		ORDER BY stock ASC, id ASC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, threshold, limit)
	if err != nil {
		return nil, storeErr(StageFetch, err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *repository) SetStock(ctx context.Context, sku string, stock int, expected *int) (Product, error) {
	query := `UPDATE products SET stock = $1, updated_at = NOW() WHERE sku = $2`
	args := []any{stock, sku}
	if expected != nil {
		query += ` AND stock = $3`
		args = append(args, *expected)
	}
	query += ` RETURNING ` + productColumnsSQL

	p, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		if expected == nil {
			return Product{}, ErrNotFound
		}
		// Missed either the row or the expected value; look once to say which.
		if _, getErr := r.GetBySKU(ctx, sku); getErr != nil {
			return Product{}, getErr
		}
		return Product{}, ErrStockConflict
	}
	if err != nil {
		return Product{}, storeErr(StageUpdate, err)
	}
	return p, nil
}

func (r *repository) AdjustStock(ctx context.Context, sku string, delta int) (Product, error) {
	query := `UPDATE products
		SET stock = stock + $1, updated_at = NOW()
		WHERE sku = $2 AND stock + $1 >= 0
		RETURNING ` + productColumnsSQL

	p, err := scanProduct(r.db.QueryRow(ctx, query, delta, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetBySKU(ctx, sku); getErr != nil {
			return Product{}, getErr
		}
		return Product{}, ErrStockConflict
	}
	if err != nil {
		return Product{}, storeErr(StageUpdate, err)
	}
	return p, nil
}

func (r *repository) spec(clauses []filter.Clause) filter.Spec {
	return filter.Spec{
		Table:    productsTable,
		Columns:  productColumns,
		Clauses:  clauses,
		TieBreak: Fields.PK(),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	// Feed rows may carry no stock value; those read as 0 here while the
	// stock aggregates keep counting them as untracked.
	var stock *int
	err := row.Scan(
		&p.ID, &p.Style, &p.SKU, &p.Title, &p.Description,
		&p.AvailableSizes, &p.Price, &p.Category, &p.Subcategory,
		&p.Color, &p.Size, &stock, &p.Weight, &p.Warehouse, &p.Status,
		&p.MSRP, &p.MAPPrice, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if stock != nil {
		p.Stock = *stock
	}
	return p, err
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, storeErr(StageFetch, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(StageFetch, err)
	}
	return products, nil
}

func formatGroupValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case []byte:
		return string(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case int32:
		return strconv.FormatInt(int64(value), 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(value)
	}
}
