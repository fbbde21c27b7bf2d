package api

import (
	"time"

	"github.com/libraryapi/library-server/internal/domain"
	"github.com/libraryapi/library-server/internal/store"
)

// BookResponse is the transport shape of a book.
type BookResponse struct {
	ID        int64     `json:"id" doc:"Book ID"`
	Title     string    `json:"title" doc:"Title"`
	Author    string    `json:"author" doc:"Author"`
	ISBN      string    `json:"isbn" doc:"Normalized ISBN"`
	CreatedAt time.Time `json:"created_at" doc:"Registration time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update time"`
}

// LoanResponse is the transport shape of a loan.
type LoanResponse struct {
	ID            int64  `json:"id" doc:"Loan ID"`
	BookID        int64  `json:"book_id" doc:"Loaned book"`
	Customer      string `json:"customer" doc:"Customer name or address"`
	CustomerEmail string `json:"email,omitempty" doc:"Customer email used for reminders"`
	LoanDate      string `json:"loan_date" format:"date" doc:"Loan date (YYYY-MM-DD)"`
	Returned      bool   `json:"returned" doc:"Whether the book was returned"`
}

// PageResponse is one page of a listing.
type PageResponse[T any] struct {
	Content       []T `json:"content" doc:"Items on this page"`
	TotalElements int `json:"total_elements" doc:"Items across all pages"`
	TotalPages    int `json:"total_pages" doc:"Number of pages"`
	Page          int `json:"page" doc:"Zero-based page index"`
	Size          int `json:"size" doc:"Page size"`
}

func toBookResponse(b *domain.Book) BookResponse {
	return BookResponse{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		ISBN:      b.ISBN,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func toLoanResponse(l *domain.Loan) LoanResponse {
	return LoanResponse{
		ID:            l.ID,
		BookID:        l.BookID,
		Customer:      l.Customer,
		CustomerEmail: l.CustomerEmail,
		LoanDate:      domain.FormatDate(l.LoanDate),
		Returned:      l.Returned,
	}
}

func toPageResponse[T, R any](page *store.Page[T], convert func(T) R) PageResponse[R] {
	content := make([]R, 0, len(page.Content))
	for _, item := range page.Content {
		content = append(content, convert(item))
	}
	return PageResponse[R]{
		Content:       content,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages(),
		Page:          page.PageNumber,
		Size:          page.PageSize,
	}
}

// PageQuery holds the paging query parameters shared by listings.
type PageQuery struct {
	Page int `query:"page" default:"0" minimum:"0" maximum:"1000000" doc:"Zero-based page index"`
	Size int `query:"size" default:"20" minimum:"1" maximum:"1000" doc:"Page size"`
}

func (q PageQuery) pageRequest() store.PageRequest {
	return store.PageRequest{PageNumber: q.Page, PageSize: q.Size}
}
