// Package importer loads vendor CSV product feeds into Postgres. It is
// lenient with rows (a bad row is skipped and logged, never fatal) and
// strict with the store (any statement failure aborts the run).
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpile-dev/stockpile/internal/catalog"
)

const defaultBatchSize = 1000

// Importer runs CSV feed imports against the products table.
type Importer struct {
	logger    *slog.Logger
	pool      *pgxpool.Pool
	cache     *catalog.Cache
	validate  *validator.Validate
	batchSize int
}

// New constructs an Importer. cache may be nil when no invalidation is
// wanted, as in tests.
func New(logger *slog.Logger, pool *pgxpool.Pool, cache *catalog.Cache) *Importer {
	return &Importer{
		logger:    logger,
		pool:      pool,
		cache:     cache,
		validate:  validator.New(),
		batchSize: defaultBatchSize,
	}
}

// Options tune a single import run.
type Options struct {
	// Encoding names the feed's character set: utf-8 (the default),
	// windows-1252 or latin-1.
	Encoding string
}

// Report summarises one import run. Total counts every data line in
// the feed, including the skipped ones.
type Report struct {
	BatchID string        `json:"batch_id"`
	Total   int           `json:"total"`
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	Took    time.Duration `json:"took"`
}

// Run streams the feed, validates every row and loads the survivors.
// An empty table takes the COPY fast path; a populated one, or a feed
// that repeats SKUs, upserts in batches keyed on sku. The stats cache
// version is bumped after a successful load.
func (imp *Importer) Run(ctx context.Context, src io.Reader, opts Options) (Report, error) {
	start := time.Now()
	report := Report{BatchID: uuid.NewString()}

	rows, skipped, err := imp.readAll(src, opts.Encoding)
	if err != nil {
		return report, err
	}
	report.Total = len(rows) + skipped
	report.Skipped = skipped

	if err := imp.EnsureSchema(ctx); err != nil {
		return report, err
	}
	before, err := imp.countProducts(ctx)
	if err != nil {
		return report, err
	}

	if before == 0 {
		err = imp.copyAll(ctx, rows)
		if errors.Is(err, catalog.ErrDuplicateSKU) {
			imp.logger.Warn("feed repeats skus, falling back to upserts",
				slog.String("batch_id", report.BatchID))
			err = imp.upsertAll(ctx, rows)
		}
	} else {
		err = imp.upsertAll(ctx, rows)
	}
	if err != nil {
		return report, err
	}

	after, err := imp.countProducts(ctx)
	if err != nil {
		return report, err
	}
	report.Created = after - before
	report.Updated = len(rows) - report.Created
	report.Took = time.Since(start)

	if err := imp.cache.Bump(ctx); err != nil {
		imp.logger.Warn("cache bump failed", slog.Any("error", err))
	}

	imp.logger.Info("import finished",
		slog.String("batch_id", report.BatchID),
		slog.Int("total", report.Total),
		slog.Int("created", report.Created),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
		slog.Duration("took", report.Took))
	return report, nil
}

func (imp *Importer) readAll(src io.Reader, encoding string) ([]Row, int, error) {
	fr, err := newFeedReader(src, encoding)
	if err != nil {
		return nil, 0, err
	}
	var rows []Row
	skipped := 0
	for {
		rec, line, err := fr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read feed line %d: %w", line, err)
		}
		row, err := parseRow(rec)
		if err == nil {
			err = imp.validate.Struct(row)
		}
		if err != nil {
			skipped++
			imp.logger.Warn("row skipped",
				slog.Int("line", line),
				slog.Any("error", err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func (imp *Importer) countProducts(ctx context.Context) (int, error) {
	var n int
	if err := imp.pool.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (imp *Importer) copyAll(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := imp.pool.CopyFrom(ctx, pgx.Identifier{"products"}, feedColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return rows[i].args(), nil
		}))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("copy products: %w", catalog.ErrDuplicateSKU)
		}
		return fmt.Errorf("copy products: %w", err)
	}
	return nil
}

const upsertProduct = `
INSERT INTO products (
	style, sku, product_title, product_description, available_sizes,
	suggested_price, category_name, subcategory_name, color_name, size,
	stock, piece_weight, warehouse, product_status, msrp, map_pricing,
	front_model_image_url
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (sku) DO UPDATE SET
	style = EXCLUDED.style,
	product_title = EXCLUDED.product_title,
	product_description = EXCLUDED.product_description,
	available_sizes = EXCLUDED.available_sizes,
	suggested_price = EXCLUDED.suggested_price,
	category_name = EXCLUDED.category_name,
	subcategory_name = EXCLUDED.subcategory_name,
	color_name = EXCLUDED.color_name,
	size = EXCLUDED.size,
	stock = EXCLUDED.stock,
	piece_weight = EXCLUDED.piece_weight,
	warehouse = EXCLUDED.warehouse,
	product_status = EXCLUDED.product_status,
	msrp = EXCLUDED.msrp,
	map_pricing = EXCLUDED.map_pricing,
	front_model_image_url = EXCLUDED.front_model_image_url,
	updated_at = CURRENT_TIMESTAMP`

func (imp *Importer) upsertAll(ctx context.Context, rows []Row) error {
	for offset := 0; offset < len(rows); offset += imp.batchSize {
		end := min(offset+imp.batchSize, len(rows))
		batch := &pgx.Batch{}
		for _, row := range rows[offset:end] {
			batch.Queue(upsertProduct, row.args()...)
		}
		results := imp.pool.SendBatch(ctx, batch)
		for range rows[offset:end] {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("upsert products: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("upsert products: %w", err)
		}
	}
	return nil
}
