package store

import "math"

// Page size limits applied to every paginated query.
const (
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

// PageRequest selects one page of a larger result set.
type PageRequest struct {
	PageNumber int // Zero-based page index
	PageSize   int // Items per page (defaults to 20 with a maximum of 1000)
}

// Page is a bounded slice of a result set plus total-count metadata.
type Page[T any] struct {
	Content       []T `json:"content"`
	TotalElements int `json:"total_elements"`
	PageNumber    int `json:"page_number"`
	PageSize      int `json:"page_size"`
}

// Normalize returns a copy with out-of-range values replaced by sane defaults.
func (p PageRequest) Normalize() PageRequest {
	if p.PageNumber < 0 {
		p.PageNumber = 0
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	// Keep PageNumber*PageSize within int; such a page is past the end anyway.
	if last := math.MaxInt / p.PageSize; p.PageNumber > last {
		p.PageNumber = last
	}
	return p
}

// Offset returns the number of items that precede the requested page.
func (p PageRequest) Offset() int {
	n := p.Normalize()
	return n.PageNumber * n.PageSize
}

// NewPage builds a page for a normalized request. A nil content slice is replaced with
// an empty one so it serializes as [].
func NewPage[T any](content []T, total int, req PageRequest) *Page[T] {
	req = req.Normalize()
	if content == nil {
		content = []T{}
	}
	return &Page[T]{
		Content:       content,
		TotalElements: total,
		PageNumber:    req.PageNumber,
		PageSize:      req.PageSize,
	}
}

// SlicePage cuts one page out of an already filtered, ordered slice.
// Backends without native LIMIT/OFFSET use it.
func SlicePage[T any](all []T, req PageRequest) *Page[T] {
	req = req.Normalize()
	total := len(all)
	start := req.Offset()
	if start >= total {
		return NewPage[T](nil, total, req)
	}
	end := start + req.PageSize
	if end > total {
		end = total
	}
	return NewPage(all[start:end], total, req)
}

// TotalPages returns how many pages the full result set spans.
func (p *Page[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.TotalElements + p.PageSize - 1) / p.PageSize
}
