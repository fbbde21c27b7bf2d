package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/libraryapi/library-server/internal/domain"
	domainerrors "github.com/libraryapi/library-server/internal/errors"
	"github.com/libraryapi/library-server/internal/store"
)

func (s *Server) registerLoanRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createLoan",
		Method:        http.MethodPost,
		Path:          "/api/loans",
		Summary:       "Lend book",
		Description:   "Lends the book with the given ISBN. Fails if the book is already out on loan.",
		Tags:          []string{"Loans"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateLoan)

	huma.Register(s.api, huma.Operation{
		OperationID: "findLoans",
		Method:      http.MethodGet,
		Path:        "/api/loans",
		Summary:     "Find loans",
		Description: "Returns a page of loans for an ISBN or a customer",
		Tags:        []string{"Loans"},
	}, s.handleFindLoans)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLoan",
		Method:      http.MethodGet,
		Path:        "/api/loans/{id}",
		Summary:     "Get loan",
		Description: "Returns a loan by ID",
		Tags:        []string{"Loans"},
	}, s.handleGetLoan)

	huma.Register(s.api, huma.Operation{
		OperationID: "returnLoan",
		Method:      http.MethodPatch,
		Path:        "/api/loans/{id}",
		Summary:     "Return book",
		Description: "Marks a loan returned. Returning it again changes nothing.",
		Tags:        []string{"Loans"},
	}, s.handleReturnLoan)
}

// === DTOs ===

type CreateLoanRequest struct {
	ISBN     string `json:"isbn" minLength:"1" doc:"ISBN of the book to lend"`
	Customer string `json:"customer" minLength:"1" maxLength:"200" doc:"Customer name or email address"`
	Email    string `json:"email,omitempty" doc:"Customer email for overdue reminders"`
	LoanDate string `json:"loan_date,omitempty" format:"date" doc:"Loan date (YYYY-MM-DD), defaults to today"`
}

type CreateLoanInput struct {
	Body CreateLoanRequest
}

type LoanCreatedResponse struct {
	ID int64 `json:"id" doc:"ID of the new loan"`
}

type LoanCreatedOutput struct {
	Body LoanCreatedResponse
}

type FindLoansInput struct {
	PageQuery
	ISBN     string `query:"isbn" doc:"Exact ISBN"`
	Customer string `query:"customer" doc:"Exact customer, as given when lending"`
}

type LoanIDInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Loan ID"`
}

type LoanOutput struct {
	Body LoanResponse
}

type ReturnLoanRequest struct {
	Returned bool `json:"returned" doc:"Must be true"`
}

type ReturnLoanInput struct {
	ID   int64 `path:"id" minimum:"1" doc:"Loan ID"`
	Body ReturnLoanRequest
}

// === Handlers ===

func (s *Server) handleCreateLoan(ctx context.Context, input *CreateLoanInput) (*LoanCreatedOutput, error) {
	var date time.Time
	if input.Body.LoanDate != "" {
		parsed, err := domain.ParseDate(input.Body.LoanDate)
		if err != nil {
			return nil, domainerrors.InvalidArgumentWithDetails("invalid loan date",
				map[string]string{"loan_date": "must be YYYY-MM-DD"})
		}
		date = parsed
	}

	loan, err := s.services.Loan.LoanByISBN(ctx, input.Body.ISBN, input.Body.Customer, input.Body.Email, date)
	if err != nil {
		return nil, err
	}
	return &LoanCreatedOutput{Body: LoanCreatedResponse{ID: loan.ID}}, nil
}

func (s *Server) handleFindLoans(ctx context.Context, input *FindLoansInput) (*LoanPageOutput, error) {
	page, err := s.services.Loan.Find(ctx, store.LoanFilter{
		ISBN:     input.ISBN,
		Customer: input.Customer,
	}, input.pageRequest())
	if err != nil {
		return nil, err
	}
	return &LoanPageOutput{Body: toPageResponse(page, toLoanResponse)}, nil
}

func (s *Server) handleGetLoan(ctx context.Context, input *LoanIDInput) (*LoanOutput, error) {
	loan, err := s.mustGetLoan(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &LoanOutput{Body: toLoanResponse(loan)}, nil
}

func (s *Server) handleReturnLoan(ctx context.Context, input *ReturnLoanInput) (*LoanOutput, error) {
	loan, err := s.mustGetLoan(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	// A returned loan never becomes active again.
	if !input.Body.Returned {
		return nil, domainerrors.InvalidArgumentWithDetails("a loan can only be marked returned",
			map[string]string{"returned": "must be true"})
	}

	returned, err := s.services.Loan.ReturnLoan(ctx, loan)
	if err != nil {
		return nil, err
	}
	return &LoanOutput{Body: toLoanResponse(returned)}, nil
}

func (s *Server) mustGetLoan(ctx context.Context, id int64) (*domain.Loan, error) {
	loan, found, err := s.services.Loan.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domainerrors.NotFoundf("loan %d not found", id)
	}
	return loan, nil
}
