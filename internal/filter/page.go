package filter

import (
	"fmt"
	"math"
)

const (
	// DefaultPageNumber is the page used when none is given.
	DefaultPageNumber = 1
	// DefaultPageSize is the page size used when none is given.
	DefaultPageSize = 20
	// MaxPageSize bounds every fetch regardless of what was asked for.
	MaxPageSize = 100
)

// Page is a validated pagination request. The zero value means
// "no pagination" and leaves queries unlimited, which only the count
// and aggregate paths use.
type Page struct {
	Number int
	Size   int
}

// NewPage validates pagination values. Zero values take the defaults;
// anything out of range is rejected, never clamped.
func NewPage(number, size int) (Page, error) {
	if number == 0 {
		number = DefaultPageNumber
	}
	if size == 0 {
		size = DefaultPageSize
	}
	if number < 1 {
		return Page{}, &InvalidValueError{Field: "page", Value: number, Reason: "page must be at least 1"}
	}
	if size < 1 {
		return Page{}, &InvalidValueError{Field: "page_size", Value: size, Reason: "page_size must be at least 1"}
	}
	if size > MaxPageSize {
		return Page{}, &InvalidValueError{Field: "page_size", Value: size, Reason: fmt.Sprintf("page_size must be at most %d", MaxPageSize)}
	}
	return Page{Number: number, Size: size}, nil
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// PageMeta describes one page of a result set.
type PageMeta struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPageMeta computes page metadata for a total row count. A page past
// the end of the data is valid and simply has no next page.
func NewPageMeta(p Page, total int) PageMeta {
	totalPages := 0
	if p.Size > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(p.Size)))
	}
	return PageMeta{
		Page:       p.Number,
		PageSize:   p.Size,
		TotalCount: total,
		TotalPages: totalPages,
		HasNext:    p.Number < totalPages,
		HasPrev:    p.Number > 1,
	}
}
