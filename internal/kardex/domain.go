// Package kardex is the append-only ledger of tool movements.
package kardex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"toolrental/internal/apperror"
)

// MovementType classifies a ledger entry.
type MovementType string

const (
	MovementRegistry MovementType = "REGISTRY"
	MovementReEntry  MovementType = "RE_ENTRY"
	MovementLoan     MovementType = "LOAN"
	MovementReturn   MovementType = "RETURN"
	MovementRetire   MovementType = "RETIRE"
	MovementRepair   MovementType = "REPAIR"
)

// Valid reports whether t is one of the known movement types.
func (t MovementType) Valid() bool {
	switch t {
	case MovementRegistry, MovementReEntry, MovementLoan, MovementReturn, MovementRetire, MovementRepair:
		return true
	}
	return false
}

// ParseMovementType parses s case-insensitively.
func ParseMovementType(s string) (MovementType, error) {
	t := MovementType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", apperror.ErrInvalidMovementType, s)
	}
	return t, nil
}

// The system actor records movements nobody in particular triggered.
const (
	SystemActorID   int64 = 0
	SystemActorName       = "SYSTEM"
)

// Placeholders written when a referenced entity cannot be resolved.
const (
	UnknownToolGroupID   int64 = 0
	UnknownToolGroupName       = "Unknown"
	NoCustomerName             = "N/A"
)

// Movement is one immutable ledger entry. Names are snapshots taken at record time.
type Movement struct {
	ID            int64        `json:"id" db:"id"`
	ToolUnitID    int64        `json:"tool_unit_id" db:"tool_unit_id"`
	ToolGroupID   int64        `json:"tool_group_id" db:"tool_group_id"`
	ToolGroupName string       `json:"tool_group_name" db:"tool_group_name"`
	CustomerID    *int64       `json:"customer_id,omitempty" db:"customer_id"`
	CustomerName  string       `json:"customer_name" db:"customer_name"`
	UserID        int64        `json:"user_id" db:"user_id"`
	UserName      string       `json:"user_name" db:"user_name"`
	MovementType  MovementType `json:"movement_type" db:"movement_type"`
	MovementDate  time.Time    `json:"movement_date" db:"movement_date"`
	Details       string       `json:"details" db:"details"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// RecordRequest asks the ledger to append a movement. Only MovementType and
// ToolUnitID are required.
type RecordRequest struct {
	MovementType MovementType `json:"movement_type"`
	ToolUnitID   int64        `json:"tool_unit_id"`
	ToolGroupID  *int64       `json:"tool_group_id,omitempty"`
	CustomerID   *int64       `json:"customer_id,omitempty"`
	UserID       *int64       `json:"user_id,omitempty"`
	MovementDate *time.Time   `json:"movement_date,omitempty"`
	Details      string       `json:"details"`
}

// Filter narrows ListMovements. Zero fields do not filter. To is exclusive.
type Filter struct {
	ToolUnitID   *int64
	ToolGroupID  *int64
	CustomerID   *int64
	MovementType MovementType
	From         *time.Time
	To           *time.Time
}

// ToolRef is what the ledger needs to know about a tool unit.
type ToolRef struct {
	ToolGroupID   int64
	ToolGroupName string
}

// Directory resolves display names from the services that own them.
type Directory interface {
	LookupToolUnit(ctx context.Context, unitID int64) (ToolRef, error)
	LookupCustomerName(ctx context.Context, customerID int64) (string, error)
	LookupUserName(ctx context.Context, userID int64) (string, error)
}

// Ref returns a pointer to v, for the optional request fields.
func Ref(v int64) *int64 {
	return &v
}

// ActorLabel is how an optional user id is written into updated_by style columns.
func ActorLabel(userID *int64) string {
	if userID == nil || *userID == SystemActorID {
		return SystemActorName
	}
	return fmt.Sprintf("user:%d", *userID)
}
