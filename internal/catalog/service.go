// internal/catalog/service.go
package catalog

import (
	"context"

	"toolrental/internal/kardex"
)

// Service defines the interface for the catalog service.
type Service interface {
	CreateTariff(ctx context.Context, dailyRentalRate, dailyFineRate int64) (*Tariff, error)
	GetTariff(ctx context.Context, id int64) (*Tariff, error)
	UpdateTariff(ctx context.Context, id, dailyRentalRate, dailyFineRate int64) (*Tariff, error)

	CreateToolGroup(ctx context.Context, req CreateToolGroupRequest) (*ToolGroup, error)
	GetToolGroup(ctx context.Context, id int64) (*ToolGroup, error)
	ListToolGroups(ctx context.Context) ([]*ToolGroup, error)
	ListAvailableToolGroups(ctx context.Context) ([]*ToolGroup, error)
	UpdateReplacementValue(ctx context.Context, id, value int64) (*ToolGroup, error)
	AvailableStock(ctx context.Context, toolGroupID int64) (*GroupStock, error)

	GetUnit(ctx context.Context, id int64) (*UnitView, error)
	GetAvailableUnit(ctx context.Context, toolGroupID int64) (*UnitView, error)
	ListUnits(ctx context.Context) ([]*UnitView, error)
	SetUnitStatus(ctx context.Context, id int64, change UnitStatusChange) (*ToolUnit, error)
	RetireUnit(ctx context.Context, id int64, req UnitActionRequest) (*ToolUnit, error)
	SendToRepair(ctx context.Context, id int64, req UnitActionRequest) (*ToolUnit, error)
	ResolveRepair(ctx context.Context, id int64, retire bool, userID *int64) (*ToolUnit, error)
}

// MovementRecorder accepts ledger entries on a best-effort basis.
type MovementRecorder interface {
	Submit(ctx context.Context, req kardex.RecordRequest) bool
}
