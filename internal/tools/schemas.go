package tools

// Input schemas for the catalog tool set. Filter keys listed under
// filter_products are documentation; the field registry stays the
// authority, so an unlisted key fails compilation, not schema checking.
const (
	getProductSchema = `{
		"type": "object",
		"properties": {
			"sku": {"type": "string", "description": "Product SKU"}
		},
		"required": ["sku"]
	}`

	listProductsSchema = `{
		"type": "object",
		"properties": {
			"category": {"type": "string", "description": "Filter by category"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100, "default": 10, "description": "Number of products to return"}
		}
	}`

	searchProductsSchema = `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Search query"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100, "default": 10, "description": "Number of results to return"}
		},
		"required": ["query"]
	}`

	advancedSearchProductsSchema = `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Search query, matched against every product field"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100, "default": 15, "description": "Number of results to return"},
			"min_stock": {"type": "integer", "minimum": 0, "default": 0, "description": "Minimum stock level"},
			"category_filter": {"type": "string", "description": "Narrow to a category"},
			"sort_by": {"type": "string", "default": "title", "description": "Sort results by: title, stock, price or category"}
		},
		"required": ["query"]
	}`

	filterProductsSchema = `{
		"type": "object",
		"properties": {
			"filters": {
				"type": "object",
				"description": "Filter conditions as field__lookup keys",
				"properties": {
					"category__icontains": {"type": "string", "description": "Category contains (case insensitive)"},
					"category__exact": {"type": "string", "description": "Exact category match"},
					"subcategory__icontains": {"type": "string", "description": "Subcategory contains"},
					"color__icontains": {"type": "string", "description": "Color contains"},
					"size__exact": {"type": "string", "description": "Exact size match"},
					"size__in": {"type": "array", "items": {"type": "string"}, "description": "Size is one of"},
					"stock__gte": {"type": "integer", "description": "Stock at least"},
					"stock__lte": {"type": "integer", "description": "Stock at most"},
					"stock__gt": {"type": "integer", "description": "Stock greater than"},
					"stock__lt": {"type": "integer", "description": "Stock less than"},
					"price__gte": {"type": "number", "description": "Price at least"},
					"price__lte": {"type": "number", "description": "Price at most"},
					"title__icontains": {"type": "string", "description": "Title contains"},
					"sku__icontains": {"type": "string", "description": "SKU contains"},
					"warehouse__exact": {"type": "string", "description": "Exact warehouse match"},
					"status__exact": {"type": "string", "description": "Exact status match"}
				}
			},
			"search": {"type": "string", "description": "Global search across title, description, sku, category and color"},
			"ordering": {"type": "array", "items": {"type": "string"}, "default": ["title"], "description": "Order by fields, '-' prefix for descending"},
			"page": {"type": "integer", "minimum": 1, "default": 1, "description": "Page number, 1-based"},
			"page_size": {"type": "integer", "minimum": 1, "maximum": 100, "default": 20, "description": "Items per page"}
		}
	}`

	getCategoriesSchema = `{
		"type": "object",
		"properties": {}
	}`

	getLowStockProductsSchema = `{
		"type": "object",
		"properties": {
			"threshold": {"type": "integer", "minimum": 0, "default": 50, "description": "Stock threshold"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100, "default": 20, "description": "Number of products to return"}
		}
	}`

	getFilterStatsSchema = `{
		"type": "object",
		"properties": {
			"filters": {
				"type": "object",
				"description": "Same filter conditions as filter_products; stats cover only the matching subset"
			},
			"fields": {
				"type": "array",
				"items": {"type": "string"},
				"default": ["category", "color", "size"],
				"description": "Fields to break down: category, subcategory, color, size, warehouse, status"
			}
		}
	}`

	updateStockSchema = `{
		"type": "object",
		"properties": {
			"sku": {"type": "string", "description": "Product SKU"},
			"stock": {"type": "integer", "minimum": 0, "description": "New stock amount"},
			"expected_stock": {"type": "integer", "minimum": 0, "description": "Only write when current stock still equals this"}
		},
		"required": ["sku", "stock"]
	}`

	adjustStockSchema = `{
		"type": "object",
		"properties": {
			"sku": {"type": "string", "description": "Product SKU"},
			"delta": {"type": "integer", "description": "Stock change, positive or negative"}
		},
		"required": ["sku", "delta"]
	}`
)
