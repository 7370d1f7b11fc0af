package loan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"toolrental/internal/apperror"
	"toolrental/internal/eventstore"
)

// GetLoan retrieves a loan by its ID.
func (s *service) GetLoan(ctx context.Context, id int64) (*LoanView, error) {
	loan, err := scanLoan(s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loan %d: %w", id, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return s.newNameResolver().view(ctx, loan, s.now()), nil
}

// ListActive returns every open loan, overdue ones included.
func (s *service) ListActive(ctx context.Context) ([]*LoanView, error) {
	return s.listLoans(ctx, `WHERE return_date IS NULL ORDER BY due_date, id`)
}

func (s *service) ListOverdue(ctx context.Context) ([]*LoanView, error) {
	return s.listLoans(ctx, `WHERE return_date IS NULL AND due_date < $1 ORDER BY due_date, id`, s.now())
}

// ListWithDebts returns returned loans with an unpaid fine or damage charge.
func (s *service) ListWithDebts(ctx context.Context) ([]*LoanView, error) {
	return s.listLoans(ctx, `WHERE return_date IS NOT NULL AND (fine_amount > 0 OR damage_charge > 0) ORDER BY return_date, id`)
}

func (s *service) ListClosed(ctx context.Context) ([]*LoanView, error) {
	return s.listLoans(ctx, `WHERE return_date IS NOT NULL ORDER BY return_date DESC, id DESC`)
}

func (s *service) ListByCustomer(ctx context.Context, customerID int64) ([]*LoanView, error) {
	return s.listLoans(ctx, `WHERE customer_id = $1 ORDER BY loan_date DESC, id DESC`, customerID)
}

func (s *service) listLoans(ctx context.Context, where string, args ...any) ([]*LoanView, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*Loan
	for rows.Next() {
		l, err := scanLoan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}

	return s.newNameResolver().views(ctx, loans, s.now()), nil
}

// CustomerSummary aggregates open, overdue and unpaid amounts for one customer.
// Customers without loans get a zero summary.
func (s *service) CustomerSummary(ctx context.Context, customerID int64) (*CustomerSummary, error) {
	summary := &CustomerSummary{CustomerID: customerID}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE return_date IS NULL),
			COUNT(*) FILTER (WHERE return_date IS NULL AND due_date < $2),
			COALESCE(SUM(fine_amount) FILTER (WHERE return_date IS NOT NULL), 0),
			COALESCE(SUM(damage_charge) FILTER (WHERE return_date IS NOT NULL), 0)
		FROM loans
		WHERE customer_id = $1
	`, customerID, s.now()).Scan(&summary.OpenLoans, &summary.OverdueLoans, &summary.UnpaidFines, &summary.UnpaidDamage)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize loans of customer %d: %w", customerID, err)
	}
	return summary, nil
}

// GetHistory returns the loan's events, oldest first.
func (s *service) GetHistory(ctx context.Context, id int64) ([]eventstore.Event, error) {
	events, err := s.events.LoadEvents(ctx, id, aggregateType)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("loan %d: %w", id, apperror.ErrNotFound)
	}
	return events, nil
}
