package importer

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// feedColumns is the vendor feed's header vocabulary, in table column
// order. The loader binds rows positionally against this list.
var feedColumns = []string{
	"style",
	"sku",
	"product_title",
	"product_description",
	"available_sizes",
	"suggested_price",
	"category_name",
	"subcategory_name",
	"color_name",
	"size",
	"stock",
	"piece_weight",
	"warehouse",
	"product_status",
	"msrp",
	"map_pricing",
	"front_model_image_url",
}

// Row is one validated feed record. Numeric fields are nil when the
// feed cell was empty.
type Row struct {
	Style          string   `validate:"max=20"`
	SKU            string   `validate:"required,max=32"`
	Title          string   `validate:"max=255"`
	Description    string
	AvailableSizes string   `validate:"max=128"`
	Price          *float64 `validate:"omitempty,gte=0"`
	Category       string   `validate:"max=100"`
	Subcategory    string   `validate:"max=100"`
	Color          string   `validate:"max=50"`
	Size           string   `validate:"max=16"`
	Stock          *int     `validate:"omitempty,gte=0"`
	Weight         *float64 `validate:"omitempty,gte=0"`
	Warehouse      string   `validate:"max=64"`
	Status         string   `validate:"max=32"`
	MSRP           *float64 `validate:"omitempty,gte=0"`
	MAPPricing     *float64 `validate:"omitempty,gte=0"`
	ImageURL       string   `validate:"max=500"`
}

// args returns the row's values in feedColumns order, for CopyFrom and
// the upsert statement alike.
func (r Row) args() []any {
	return []any{
		r.Style, r.SKU, r.Title, r.Description, r.AvailableSizes,
		r.Price, r.Category, r.Subcategory, r.Color, r.Size,
		r.Stock, r.Weight, r.Warehouse, r.Status, r.MSRP,
		r.MAPPricing, r.ImageURL,
	}
}

// parseRow shapes one raw CSV record into a Row. Feeds embed HTML
// entities in text cells and leave numeric cells blank, so text is
// unescaped and blanks become nil; a non-blank cell that fails to
// parse rejects the whole row.
func parseRow(rec record) (Row, error) {
	price, err := optionalFloat(rec.get("suggested_price"))
	if err != nil {
		return Row{}, fmt.Errorf("suggested_price: %w", err)
	}
	stock, err := optionalInt(rec.get("stock"))
	if err != nil {
		return Row{}, fmt.Errorf("stock: %w", err)
	}
	weight, err := optionalFloat(rec.get("piece_weight"))
	if err != nil {
		return Row{}, fmt.Errorf("piece_weight: %w", err)
	}
	msrp, err := optionalFloat(rec.get("msrp"))
	if err != nil {
		return Row{}, fmt.Errorf("msrp: %w", err)
	}
	mapPricing, err := optionalFloat(rec.get("map_pricing"))
	if err != nil {
		return Row{}, fmt.Errorf("map_pricing: %w", err)
	}

	return Row{
		Style:          cleanText(rec.get("style")),
		SKU:            strings.TrimSpace(rec.get("sku")),
		Title:          cleanText(rec.get("product_title")),
		Description:    cleanText(rec.get("product_description")),
		AvailableSizes: cleanText(rec.get("available_sizes")),
		Price:          price,
		Category:       cleanText(rec.get("category_name")),
		Subcategory:    cleanText(rec.get("subcategory_name")),
		Color:          cleanText(rec.get("color_name")),
		Size:           cleanText(rec.get("size")),
		Stock:          stock,
		Weight:         weight,
		Warehouse:      cleanText(rec.get("warehouse")),
		Status:         cleanText(rec.get("product_status")),
		MSRP:           msrp,
		MAPPricing:     mapPricing,
		ImageURL:       strings.TrimSpace(rec.get("front_model_image_url")),
	}, nil
}

func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}

func optionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	return &v, nil
}

func optionalInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("not an integer: %q", s)
	}
	return &v, nil
}
