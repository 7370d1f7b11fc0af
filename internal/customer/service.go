// internal/customer/service.go
package customer

import "context"

// Service defines the interface for the customer service.
type Service interface {
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	ListCustomers(ctx context.Context, status *Status) ([]*Customer, error)
	SetStatus(ctx context.Context, id int64, status Status) (*Customer, error)
	GetForLoanValidation(ctx context.Context, id int64) (*Standing, error)
}

// LoanSummaries is the loans service as seen from here.
type LoanSummaries interface {
	CustomerSummary(ctx context.Context, customerID int64) (*LoanSummary, error)
}
