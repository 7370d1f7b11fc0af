// internal/customer/domain.go
package customer

import (
	"fmt"
	"strings"
	"time"

	"toolrental/internal/apperror"
)

// Status is the administrative status of a customer.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusRestricted Status = "RESTRICTED"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusRestricted
}

// ParseStatus parses s case-insensitively.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: customer status %q", apperror.ErrInvalidStatus, s)
	}
	return status, nil
}

// Customer represents a rental customer.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	RUT       string    `json:"rut"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCustomerRequest is the payload for registering a customer.
type CreateCustomerRequest struct {
	Name  string `json:"name" validate:"required"`
	RUT   string `json:"rut" validate:"required,rut"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

// LoanSummary is the per-customer loan aggregate computed by the loans service.
type LoanSummary struct {
	CustomerID   int64 `json:"customer_id"`
	OpenLoans    int   `json:"open_loans"`
	OverdueLoans int   `json:"overdue_loans"`
	UnpaidFines  int64 `json:"unpaid_fines"`
	UnpaidDamage int64 `json:"unpaid_damage"`
}

// Standing is what the loans service needs to decide whether a customer may borrow.
type Standing struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Status          Status `json:"status"`
	HasOverdueLoans bool   `json:"has_overdue_loans"`
	HasUnpaidFines  bool   `json:"has_unpaid_fines"`
	HasUnpaidDamage bool   `json:"has_unpaid_damage"`
	OpenLoans       int    `json:"open_loans"`
}

// IneligibilityReason returns why the customer may not borrow, or "" when they may.
func (s *Standing) IneligibilityReason() string {
	switch {
	case s.Status != StatusActive:
		return "customer is " + strings.ToLower(string(s.Status))
	case s.HasOverdueLoans:
		return "customer has overdue loans"
	case s.HasUnpaidFines:
		return "customer has unpaid fines"
	case s.HasUnpaidDamage:
		return "customer has unpaid damage charges"
	}
	return ""
}

// NewStanding combines a customer row with its loan summary.
func NewStanding(c *Customer, summary *LoanSummary) *Standing {
	return &Standing{
		ID:              c.ID,
		Name:            c.Name,
		Status:          c.Status,
		HasOverdueLoans: summary.OverdueLoans > 0,
		HasUnpaidFines:  summary.UnpaidFines > 0,
		HasUnpaidDamage: summary.UnpaidDamage > 0,
		OpenLoans:       summary.OpenLoans,
	}
}
