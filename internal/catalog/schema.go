package catalog

import "github.com/stockpile-dev/stockpile/internal/filter"

const productsTable = "products"

// Fields is the product filter registry. Filtering, ordering and stats
// grouping all resolve logical names here; no identifier reaches SQL
// from anywhere else.
var Fields = filter.NewSchema("id",
	filter.Field{Name: "sku", Column: "sku", Kind: filter.KindText},
	filter.Field{Name: "style", Column: "style", Kind: filter.KindText},
	filter.Field{Name: "title", Column: "product_title", Kind: filter.KindText},
	filter.Field{Name: "description", Column: "product_description", Kind: filter.KindText},
	filter.Field{Name: "category", Column: "category_name", Kind: filter.KindText},
	filter.Field{Name: "subcategory", Column: "subcategory_name", Kind: filter.KindText},
	filter.Field{Name: "color", Column: "color_name", Kind: filter.KindText},
	filter.Field{Name: "size", Column: "size", Kind: filter.KindText},
	filter.Field{Name: "warehouse", Column: "warehouse", Kind: filter.KindText},
	filter.Field{Name: "status", Column: "product_status", Kind: filter.KindText},
	filter.Field{Name: "stock", Column: "stock", Kind: filter.KindInteger},
	filter.Field{Name: "price", Column: "suggested_price", Kind: filter.KindNumeric},
)

var productColumns = []string{
	"id", "style", "sku", "product_title", "product_description",
	"available_sizes", "suggested_price", "category_name",
	"subcategory_name", "color_name", "size", "stock", "piece_weight",
	"warehouse", "product_status", "msrp", "map_pricing",
	"front_model_image_url", "created_at", "updated_at",
}

// searchColumns back the global search OR-group on filtered listings.
var searchColumns = []string{"product_title", "product_description", "sku", "category_name", "color_name"}

// DefaultStatsFields are grouped when a stats request names no fields.
var DefaultStatsFields = []string{"category", "color", "size"}

// DefaultOrdering is applied by callers that want the catalog's
// conventional title ordering rather than bare primary-key order.
var DefaultOrdering = []string{"title"}

// DefaultLowStockThreshold marks where the low stock report starts
// when no threshold is given.
const DefaultLowStockThreshold = 50
