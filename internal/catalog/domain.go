// internal/catalog/domain.go
package catalog

import (
	"fmt"
	"strings"
	"time"

	"toolrental/internal/apperror"
)

// ToolStatus is the state of one physical tool unit. RETIRED is terminal.
type ToolStatus string

const (
	StatusAvailable ToolStatus = "AVAILABLE"
	StatusLoaned    ToolStatus = "LOANED"
	StatusInRepair  ToolStatus = "IN_REPAIR"
	StatusRetired   ToolStatus = "RETIRED"
)

func (s ToolStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusLoaned, StatusInRepair, StatusRetired:
		return true
	}
	return false
}

// ParseToolStatus parses s case-insensitively.
func ParseToolStatus(s string) (ToolStatus, error) {
	status := ToolStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: tool status %q", apperror.ErrInvalidStatus, s)
	}
	return status, nil
}

// Tariff holds the daily prices shared by every unit of a tool group.
type Tariff struct {
	ID              int64     `json:"id"`
	DailyRentalRate int64     `json:"daily_rental_rate"`
	DailyFineRate   int64     `json:"daily_fine_rate"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ToolGroup is a rentable class of tool. It owns its units by id only.
type ToolGroup struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Category         string    `json:"category"`
	ReplacementValue int64     `json:"replacement_value"`
	TariffID         int64     `json:"tariff_id"`
	UnitIDs          []int64   `json:"unit_ids"`
	CreatedAt        time.Time `json:"created_at"`
}

// ToolUnit is one physical, individually tracked tool.
type ToolUnit struct {
	ID          int64      `json:"id"`
	ToolGroupID int64      `json:"tool_group_id"`
	Status      ToolStatus `json:"status"`
	Version     int        `json:"version"`
	UpdatedBy   string     `json:"updated_by"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UnitView is a unit joined with the pricing of its group, as other services see it.
type UnitView struct {
	UnitID           int64      `json:"unit_id"`
	ToolGroupID      int64      `json:"tool_group_id"`
	ToolGroupName    string     `json:"tool_group_name"`
	Status           ToolStatus `json:"status"`
	DailyRentalRate  int64      `json:"daily_rental_rate"`
	DailyFineRate    int64      `json:"daily_fine_rate"`
	ReplacementValue int64      `json:"replacement_value"`
}

// CreateToolGroupRequest registers a group and its initial units.
type CreateToolGroupRequest struct {
	Name             string `json:"name" validate:"required"`
	Category         string `json:"category" validate:"required"`
	ReplacementValue int64  `json:"replacement_value" validate:"gte=0"`
	TariffID         int64  `json:"tariff_id" validate:"required,gt=0"`
	Units            int    `json:"units" validate:"gte=0,lte=500"`
	UserID           *int64 `json:"user_id,omitempty"`
}

// GroupStock counts the units of a group that can be lent right now.
type GroupStock struct {
	ToolGroupID int64 `json:"tool_group_id"`
	Available   int   `json:"available"`
	Total       int   `json:"total"`
}

// UnitStatusChange is a transition driven by a loan. The loan service records
// the matching ledger movement, so LoanID is mandatory.
type UnitStatusChange struct {
	Status ToolStatus
	Actor  string
	LoanID int64
}

// UnitActionRequest is a manual retirement or repair of a unit.
type UnitActionRequest struct {
	Reason     string `json:"reason" validate:"required"`
	CustomerID *int64 `json:"customer_id,omitempty"`
	UserID     *int64 `json:"user_id,omitempty"`
}
