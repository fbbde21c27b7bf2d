package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/libraryapi/library-server/internal/domain"
	domainerrors "github.com/libraryapi/library-server/internal/errors"
	"github.com/libraryapi/library-server/internal/store"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          "/api/books",
		Summary:       "Register book",
		Description:   "Registers a new book. The ISBN must not already be registered.",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "findBooks",
		Method:      http.MethodGet,
		Path:        "/api/books",
		Summary:     "Find books",
		Description: "Returns a page of books filtered by title, author or ISBN",
		Tags:        []string{"Books"},
	}, s.handleFindBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/books/{id}",
		Summary:     "Get book",
		Description: "Returns a book by ID",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPut,
		Path:        "/api/books/{id}",
		Summary:     "Update book",
		Description: "Replaces the title and author of a book. The ISBN cannot change.",
		Tags:        []string{"Books"},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteBook",
		Method:        http.MethodDelete,
		Path:          "/api/books/{id}",
		Summary:       "Delete book",
		Description:   "Deletes a book and its loan history. Fails while the book is out on loan.",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookLoans",
		Method:      http.MethodGet,
		Path:        "/api/books/{id}/loans",
		Summary:     "Get book loans",
		Description: "Returns a page of the book's loans, returned or not",
		Tags:        []string{"Books", "Loans"},
	}, s.handleGetBookLoans)
}

// === DTOs ===

type BookRequest struct {
	Title  string `json:"title" minLength:"1" maxLength:"500" doc:"Title"`
	Author string `json:"author" minLength:"1" maxLength:"300" doc:"Author"`
	ISBN   string `json:"isbn" minLength:"1" maxLength:"32" doc:"ISBN, hyphens allowed"`
}

type CreateBookInput struct {
	Body BookRequest
}

type BookOutput struct {
	Body BookResponse
}

type FindBooksInput struct {
	PageQuery
	Title  string `query:"title" doc:"Case-insensitive title fragment"`
	Author string `query:"author" doc:"Case-insensitive author fragment"`
	ISBN   string `query:"isbn" doc:"Exact ISBN"`
}

type BookPageOutput struct {
	Body PageResponse[BookResponse]
}

type BookIDInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Book ID"`
}

type UpdateBookRequest struct {
	Title  string `json:"title" minLength:"1" maxLength:"500" doc:"Title"`
	Author string `json:"author" minLength:"1" maxLength:"300" doc:"Author"`
}

type UpdateBookInput struct {
	ID   int64 `path:"id" minimum:"1" doc:"Book ID"`
	Body UpdateBookRequest
}

type BookLoansInput struct {
	PageQuery
	ID int64 `path:"id" minimum:"1" doc:"Book ID"`
}

type LoanPageOutput struct {
	Body PageResponse[LoanResponse]
}

// === Handlers ===

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	book, err := s.services.Book.Save(ctx, &domain.Book{
		Title:  input.Body.Title,
		Author: input.Body.Author,
		ISBN:   input.Body.ISBN,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: toBookResponse(book)}, nil
}

func (s *Server) handleFindBooks(ctx context.Context, input *FindBooksInput) (*BookPageOutput, error) {
	page, err := s.services.Book.Find(ctx, store.BookFilter{
		Title:  input.Title,
		Author: input.Author,
		ISBN:   input.ISBN,
	}, input.pageRequest())
	if err != nil {
		return nil, err
	}
	return &BookPageOutput{Body: toPageResponse(page, toBookResponse)}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	book, err := s.mustGetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: toBookResponse(book)}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	book, err := s.mustGetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	book.Title = input.Body.Title
	book.Author = input.Body.Author

	updated, err := s.services.Book.Update(ctx, book)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: toBookResponse(updated)}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookIDInput) (*struct{}, error) {
	book, err := s.mustGetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := s.services.Book.Delete(ctx, book); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleGetBookLoans(ctx context.Context, input *BookLoansInput) (*LoanPageOutput, error) {
	book, err := s.mustGetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	page, err := s.services.Loan.GetLoansByBook(ctx, book, input.pageRequest())
	if err != nil {
		return nil, err
	}
	return &LoanPageOutput{Body: toPageResponse(page, toLoanResponse)}, nil
}

// mustGetBook turns an absent book into a NOT_FOUND error.
func (s *Server) mustGetBook(ctx context.Context, id int64) (*domain.Book, error) {
	book, found, err := s.services.Book.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domainerrors.NotFoundf("book %d not found", id)
	}
	return book, nil
}
