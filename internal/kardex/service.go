package kardex

import (
	"context"
	"time"
)

// Service defines the interface for the kardex service.
type Service interface {
	RecordMovement(ctx context.Context, req RecordRequest) (*Movement, error)
	GetMovement(ctx context.Context, id int64) (*Movement, error)
	ListMovements(ctx context.Context, f Filter) ([]*Movement, error)
	ByToolUnit(ctx context.Context, unitID int64) ([]*Movement, error)
	ByToolGroup(ctx context.Context, groupID int64) ([]*Movement, error)
	ByCustomer(ctx context.Context, customerID int64) ([]*Movement, error)
	ByMovementType(ctx context.Context, t MovementType) ([]*Movement, error)
	ByDateRange(ctx context.Context, from, to time.Time) ([]*Movement, error)
	ByToolUnitAndDateRange(ctx context.Context, unitID int64, from, to time.Time) ([]*Movement, error)
	ByToolGroupAndDateRange(ctx context.Context, groupID int64, from, to time.Time) ([]*Movement, error)
	LatestForToolUnit(ctx context.Context, unitID int64) (*Movement, error)
	CountByMovementType(ctx context.Context, t MovementType) (int64, error)
}
