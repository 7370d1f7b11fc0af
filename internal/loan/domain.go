// internal/loan/domain.go
package loan

import (
	"time"
)

// MaxOpenLoans is how many unreturned loans a customer may hold at once.
const MaxOpenLoans = 5

const aggregateType = "loan"

// Status is the lifecycle state of a loan. OVERDUE is never stored; it is
// derived from ACTIVE loans whose due date has passed. DAMAGED is terminal.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusOverdue  Status = "OVERDUE"
	StatusReturned Status = "RETURNED"
	StatusDamaged  Status = "DAMAGED"
)

// Loan represents a tool unit rented by a customer.
type Loan struct {
	ID           int64      `json:"id"`
	CustomerID   int64      `json:"customer_id"`
	ToolUnitID   int64      `json:"tool_unit_id"`
	ToolGroupID  int64      `json:"tool_group_id"`
	LoanDate     time.Time  `json:"loan_date"`
	DueDate      time.Time  `json:"due_date"`
	ReturnDate   *time.Time `json:"return_date,omitempty"`
	TotalCost    int64      `json:"total_cost"`
	FineAmount   int64      `json:"fine_amount"`
	DamageCharge int64      `json:"damage_charge"`
	Status       Status     `json:"status"`
	Version      int        `json:"version"`
}

// Open reports whether the tool has not come back yet.
func (l *Loan) Open() bool {
	return l.ReturnDate == nil
}

// EffectiveStatus is the stored status with OVERDUE applied as of now.
func (l *Loan) EffectiveStatus(now time.Time) Status {
	if l.Status == StatusActive && l.DueDate.Before(now) {
		return StatusOverdue
	}
	return l.Status
}

// Debt is what the customer still owes on a returned loan.
func (l *Loan) Debt() int64 {
	return l.FineAmount + l.DamageCharge
}

// LoanView is a loan with the display names callers need.
type LoanView struct {
	*Loan
	CustomerName    string `json:"customer_name"`
	ToolGroupName   string `json:"tool_group_name"`
	EffectiveStatus Status `json:"effective_status"`
}

// CustomerSummary aggregates one customer's loans for the standing check.
type CustomerSummary struct {
	CustomerID   int64 `json:"customer_id"`
	OpenLoans    int   `json:"open_loans"`
	OverdueLoans int   `json:"overdue_loans"`
	UnpaidFines  int64 `json:"unpaid_fines"`
	UnpaidDamage int64 `json:"unpaid_damage"`
}

type RegisterLoanRequest struct {
	CustomerID  int64     `json:"customer_id" validate:"required,gt=0"`
	ToolGroupID int64     `json:"tool_group_id" validate:"required,gt=0"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	UserID      *int64    `json:"user_id,omitempty"`
}

// ReturnLoanRequest closes a loan. Irreparable takes precedence over DamageCharge.
type ReturnLoanRequest struct {
	DamageCharge *int64 `json:"damage_charge,omitempty" validate:"omitempty,gte=0"`
	Irreparable  bool   `json:"irreparable"`
	UserID       *int64 `json:"user_id,omitempty"`
}

type ApplyDamageRequest struct {
	Amount      int64  `json:"amount"`
	Irreparable bool   `json:"irreparable"`
	UserID      *int64 `json:"user_id,omitempty"`
}

// Event types appended to a loan's history.
const (
	EventLoanRegistered = "LoanRegistered"
	EventLoanReturned   = "LoanReturned"
	EventDebtsPaid      = "LoanDebtsPaid"
	EventDamageAssessed = "LoanDamageAssessed"
)

type LoanRegisteredEvent struct {
	CustomerID  int64     `json:"customer_id"`
	ToolUnitID  int64     `json:"tool_unit_id"`
	ToolGroupID int64     `json:"tool_group_id"`
	DueDate     time.Time `json:"due_date"`
	TotalCost   int64     `json:"total_cost"`
}

type LoanReturnedEvent struct {
	ReturnDate   time.Time `json:"return_date"`
	FineAmount   int64     `json:"fine_amount"`
	DamageCharge int64     `json:"damage_charge"`
	Irreparable  bool      `json:"irreparable"`
	Status       Status    `json:"status"`
}

type DebtsPaidEvent struct {
	FineAmount   int64 `json:"fine_amount"`
	DamageCharge int64 `json:"damage_charge"`
}

type DamageAssessedEvent struct {
	DamageCharge int64  `json:"damage_charge"`
	Irreparable  bool   `json:"irreparable"`
	Status       Status `json:"status"`
}
