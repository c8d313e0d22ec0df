package catalog

import (
	"time"

	"github.com/stockpile-dev/stockpile/internal/filter"
)

// Product is one catalog row. Price, Weight, MSRP and MAPPrice are nil
// when the source feed carried no value.
type Product struct {
	ID             int64     `json:"id"`
	Style          string    `json:"style,omitempty"`
	SKU            string    `json:"sku"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	AvailableSizes string    `json:"available_sizes,omitempty"`
	Price          *float64  `json:"price"`
	Category       string    `json:"category,omitempty"`
	Subcategory    string    `json:"subcategory,omitempty"`
	Color          string    `json:"color,omitempty"`
	Size           string    `json:"size,omitempty"`
	Stock          int       `json:"stock"`
	Weight         *float64  `json:"weight,omitempty"`
	Warehouse      string    `json:"warehouse,omitempty"`
	Status         string    `json:"status,omitempty"`
	MSRP           *float64  `json:"msrp,omitempty"`
	MAPPrice       *float64  `json:"map_price,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProductPage is one page of filtered products with its metadata.
type ProductPage struct {
	Items []Product `json:"items"`
	filter.PageMeta
}

// GroupCount is one grouped value with its row count.
type GroupCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FieldStats is the value breakdown for one registry field.
type FieldStats struct {
	Field  string       `json:"field"`
	Unique int          `json:"unique_values"`
	Groups []GroupCount `json:"values"`
}

// StockSummary aggregates stock over a filtered subset. Rows without a
// stock value are left out of every figure.
type StockSummary struct {
	Counted     int      `json:"total_products"`
	Min         *int     `json:"min_stock"`
	Max         *int     `json:"max_stock"`
	Avg         *float64 `json:"avg_stock"`
	OutOfStock  int      `json:"out_of_stock"`
	AtOrBelow10 int      `json:"low_stock_10"`
	AtOrBelow50 int      `json:"low_stock_50"`
}

// PriceSummary aggregates prices over a filtered subset. Min, Max and
// Avg are nil when no row in the subset has a price.
type PriceSummary struct {
	Min    *float64 `json:"min_price"`
	Max    *float64 `json:"max_price"`
	Avg    *float64 `json:"avg_price"`
	Priced int      `json:"priced_products"`
}

// Stats is the full aggregation result for a stats request.
type Stats struct {
	TotalCount int          `json:"total_count"`
	Fields     []FieldStats `json:"fields"`
	Stock      StockSummary `json:"stock"`
	Price      PriceSummary `json:"price"`
}

// CategoryCount is one category/subcategory pair with its product count.
type CategoryCount struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Count       int    `json:"count"`
}
