// internal/loan/service.go
package loan

import (
	"context"

	"toolrental/internal/catalog"
	"toolrental/internal/customer"
	"toolrental/internal/eventstore"
	"toolrental/internal/kardex"
)

// Service defines the interface for the loan service.
type Service interface {
	RegisterLoan(ctx context.Context, req RegisterLoanRequest) (*LoanView, error)
	ReturnLoan(ctx context.Context, id int64, req ReturnLoanRequest) (*LoanView, error)
	PayDebts(ctx context.Context, id int64) (*LoanView, error)
	ApplyDamage(ctx context.Context, id int64, req ApplyDamageRequest) (*LoanView, error)

	GetLoan(ctx context.Context, id int64) (*LoanView, error)
	ListActive(ctx context.Context) ([]*LoanView, error)
	ListOverdue(ctx context.Context) ([]*LoanView, error)
	ListWithDebts(ctx context.Context) ([]*LoanView, error)
	ListClosed(ctx context.Context) ([]*LoanView, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]*LoanView, error)
	CustomerSummary(ctx context.Context, customerID int64) (*CustomerSummary, error)
	GetHistory(ctx context.Context, id int64) ([]eventstore.Event, error)
}

// CatalogClient is the part of the catalog service loans depend on.
type CatalogClient interface {
	GetUnit(ctx context.Context, unitID int64) (*catalog.UnitView, error)
	GetAvailableUnit(ctx context.Context, toolGroupID int64) (*catalog.UnitView, error)
	// SetUnitStatus moves a unit on behalf of loanID. The loan service records
	// the matching ledger movement itself.
	SetUnitStatus(ctx context.Context, unitID int64, status catalog.ToolStatus, actorName string, loanID int64) error
	GetToolGroup(ctx context.Context, toolGroupID int64) (*catalog.ToolGroup, error)
}

// CustomerClient is the part of the customer service loans depend on.
type CustomerClient interface {
	GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error)
	GetForLoanValidation(ctx context.Context, customerID int64) (*customer.Standing, error)
}

// MovementRecorder accepts ledger entries on a best-effort basis.
type MovementRecorder interface {
	Submit(ctx context.Context, req kardex.RecordRequest) bool
}
