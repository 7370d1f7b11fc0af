// internal/customer/implementation.go
package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"toolrental/internal/apperror"
	"toolrental/internal/database"
	"toolrental/internal/logger"
)

// service implements the Service interface.
type service struct {
	db          *sql.DB
	loans       LoanSummaries
	rateLimiter *rate.Limiter
}

type Option func(*service)

// WithRateLimiter replaces the limiter guarding CreateCustomer.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(s *service) { s.rateLimiter = l }
}

// NewService creates a new customer service instance.
func NewService(db *sql.DB, loans LoanSummaries, opts ...Option) Service {
	s := &service{
		db:          db,
		loans:       loans,
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 10), // 1 per second, bursts of 10
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const customerColumns = `id, name, rut, email, phone, status, created_at, updated_at`

func scanCustomer(scan func(...any) error) (*Customer, error) {
	c := &Customer{}
	err := scan(&c.ID, &c.Name, &c.RUT, &c.Email, &c.Phone, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateCustomer registers a new ACTIVE customer. RUT and email are unique.
func (s *service) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	if !s.rateLimiter.Allow() {
		return nil, apperror.ErrRateLimited
	}

	query := `
		INSERT INTO customers (name, rut, email, phone, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + customerColumns
	c, err := scanCustomer(s.db.QueryRowContext(ctx, query,
		strings.TrimSpace(req.Name),
		strings.ToUpper(req.RUT),
		strings.ToLower(strings.TrimSpace(req.Email)),
		req.Phone,
		StatusActive,
	).Scan)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: rut or email already registered", apperror.ErrInvalidState)
		}
		return nil, fmt.Errorf("failed to insert customer: %w", err)
	}

	logger.Info("Customer registered", zap.Int64("customer_id", c.ID))
	return c, nil
}

// GetCustomer retrieves a customer by their ID.
func (s *service) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	c, err := scanCustomer(s.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", id, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

// ListCustomers returns all customers, or only those with the given status.
func (s *service) ListCustomers(ctx context.Context, status *Status) ([]*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := []*Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// SetStatus changes the administrative status of a customer.
func (s *service) SetStatus(ctx context.Context, id int64, status Status) (*Customer, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: customer status %q", apperror.ErrInvalidStatus, status)
	}

	query := `
		UPDATE customers
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + customerColumns
	c, err := scanCustomer(s.db.QueryRowContext(ctx, query, status, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", id, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update customer status: %w", err)
	}

	logger.Info("Customer status changed", zap.Int64("customer_id", id), zap.String("status", string(status)))
	return c, nil
}

// GetForLoanValidation builds the customer's standing from their row and the
// loans service's summary. A summary failure fails the call.
func (s *service) GetForLoanValidation(ctx context.Context, id int64) (*Standing, error) {
	c, err := s.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}

	summary, err := s.loans.CustomerSummary(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loan summary for customer %d: %w", id, err)
	}

	return NewStanding(c, summary), nil
}
