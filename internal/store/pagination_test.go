package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		input    PageRequest
		expected PageRequest
	}{
		{
			name:     "zero values get defaults",
			input:    PageRequest{},
			expected: PageRequest{PageNumber: 0, PageSize: DefaultPageSize},
		},
		{
			name:     "negative page becomes first page",
			input:    PageRequest{PageNumber: -3, PageSize: 10},
			expected: PageRequest{PageNumber: 0, PageSize: 10},
		},
		{
			name:     "oversized page is capped",
			input:    PageRequest{PageNumber: 2, PageSize: 5000},
			expected: PageRequest{PageNumber: 2, PageSize: MaxPageSize},
		},
		{
			name:     "page number too large for offset is clamped",
			input:    PageRequest{PageNumber: math.MaxInt / 10, PageSize: 20},
			expected: PageRequest{PageNumber: math.MaxInt / 20, PageSize: 20},
		},
		{
			name:     "valid request unchanged",
			input:    PageRequest{PageNumber: 4, PageSize: 25},
			expected: PageRequest{PageNumber: 4, PageSize: 25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.input.Normalize())
		})
	}
}

func TestPageRequest_Offset(t *testing.T) {
	assert.Equal(t, 0, PageRequest{PageNumber: 0, PageSize: 10}.Offset())
	assert.Equal(t, 30, PageRequest{PageNumber: 3, PageSize: 10}.Offset())
	assert.Equal(t, DefaultPageSize, PageRequest{PageNumber: 1}.Offset())
	assert.Positive(t, PageRequest{PageNumber: math.MaxInt, PageSize: MaxPageSize}.Offset())
}

func TestNewPage_NilContentIsEmpty(t *testing.T) {
	page := NewPage[string](nil, 0, PageRequest{})

	assert.NotNil(t, page.Content)
	assert.Empty(t, page.Content)
	assert.Equal(t, DefaultPageSize, page.PageSize)
}

func TestSlicePage(t *testing.T) {
	all := []int{1, 2, 3, 4, 5, 6, 7}

	tests := []struct {
		name    string
		req     PageRequest
		content []int
	}{
		{"first page", PageRequest{PageNumber: 0, PageSize: 3}, []int{1, 2, 3}},
		{"middle page", PageRequest{PageNumber: 1, PageSize: 3}, []int{4, 5, 6}},
		{"partial last page", PageRequest{PageNumber: 2, PageSize: 3}, []int{7}},
		{"past the end", PageRequest{PageNumber: 5, PageSize: 3}, []int{}},
		{"offset beyond int range", PageRequest{PageNumber: math.MaxInt / 2, PageSize: 3}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := SlicePage(all, tt.req)

			assert.Equal(t, tt.content, page.Content)
			assert.Equal(t, len(all), page.TotalElements)
			assert.Equal(t, tt.req.Normalize().PageNumber, page.PageNumber)
			assert.LessOrEqual(t, len(page.Content), page.PageSize)
		})
	}
}

func TestPage_TotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{5, 0, 0},
	}

	for _, tt := range tests {
		page := &Page[int]{TotalElements: tt.total, PageSize: tt.size}
		assert.Equal(t, tt.want, page.TotalPages(), "total=%d size=%d", tt.total, tt.size)
	}
}
