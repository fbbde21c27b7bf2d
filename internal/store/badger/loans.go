package badger

import (
	"context"
	"errors"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/libraryapi/library-server/internal/domain"
	"github.com/libraryapi/library-server/internal/store"
)

// CreateLoan writes the loan together with its "active" index key, so a second active
// loan for the same book fails inside the same transaction.
func (s *Store) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	id, err := nextID(s.loanSeq)
	if err != nil {
		return err
	}
	loan.ID = id
	loan.LoanDate = domain.CalendarDate(loan.LoanDate)
	loan.InitTimestamps()

	err = s.update(ctx, func(txn *badgerdb.Txn) error {
		if _, err := s.books.get(txn, loan.BookID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.ErrBookMissing
			}
			return err
		}
		return s.loans.insert(txn, loan)
	})
	if err != nil {
		loan.ID = 0
		return err
	}
	return nil
}

// GetLoan returns store.ErrNotFound if the loan does not exist.
func (s *Store) GetLoan(ctx context.Context, id int64) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.view(ctx, func(txn *badgerdb.Txn) error {
		var err error
		loan, err = s.loans.get(txn, id)
		return err
	})
	return loan, err
}

// UpdateLoan writes the returned flag; returning a loan drops its "active" index key.
func (s *Store) UpdateLoan(ctx context.Context, loan *domain.Loan) error {
	loan.Touch()

	return s.update(ctx, func(txn *badgerdb.Txn) error {
		current, err := s.loans.get(txn, loan.ID)
		if err != nil {
			return err
		}
		current.Returned = loan.Returned
		current.UpdatedAt = loan.UpdatedAt
		return s.loans.replace(txn, current)
	})
}

// ActiveLoanExists checks the "active" index key for the book.
func (s *Store) ActiveLoanExists(ctx context.Context, bookID int64) (bool, error) {
	var exists bool
	err := s.view(ctx, func(txn *badgerdb.Txn) error {
		var err error
		exists, err = s.loans.exists(txn, "active", encodeID(bookID))
		return err
	})
	return exists, err
}

// FindLoansByBook walks the book index, so loans come back in id order.
func (s *Store) FindLoansByBook(ctx context.Context, bookID int64, page store.PageRequest) (*store.Page[*domain.Loan], error) {
	page = page.Normalize()

	var result *store.Page[*domain.Loan]
	err := s.view(ctx, func(txn *badgerdb.Txn) error {
		ids, err := s.loans.idsByIndex(txn, "book", encodeID(bookID))
		if err != nil {
			return err
		}

		total := len(ids)
		start := min(page.Offset(), total)
		end := min(start+page.PageSize, total)

		loans := make([]*domain.Loan, 0, end-start)
		for _, id := range ids[start:end] {
			l, err := s.loans.get(txn, id)
			if err != nil {
				return err
			}
			loans = append(loans, l)
		}

		result = store.NewPage(loans, total, page)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindLoans scans every loan; the isbn is resolved to a book id first.
func (s *Store) FindLoans(ctx context.Context, filter store.LoanFilter, page store.PageRequest) (*store.Page[*domain.Loan], error) {
	var matched []*domain.Loan

	err := s.view(ctx, func(txn *badgerdb.Txn) error {
		var bookID int64
		if filter.ISBN != "" {
			id, err := s.books.lookup(txn, "isbn", filter.ISBN)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			bookID = id
		}

		return s.loans.scan(txn, func(l *domain.Loan) bool {
			switch {
			case filter.IsEmpty(),
				bookID != 0 && l.BookID == bookID,
				filter.Customer != "" && l.Customer == filter.Customer:
				matched = append(matched, l)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}

	return store.SlicePage(matched, page), nil
}

// FindLateLoans scans active loans and returns those dated strictly before cutoff,
// oldest first.
func (s *Store) FindLateLoans(ctx context.Context, cutoff time.Time) ([]*domain.Loan, error) {
	cutoff = domain.CalendarDate(cutoff)

	var late []*domain.Loan
	err := s.view(ctx, func(txn *badgerdb.Txn) error {
		return s.loans.scan(txn, func(l *domain.Loan) bool {
			if l.IsActive() && l.LoanDate.Before(cutoff) {
				late = append(late, l)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(late, func(i, j int) bool {
		return late[i].LoanDate.Before(late[j].LoanDate)
	})
	return late, nil
}
