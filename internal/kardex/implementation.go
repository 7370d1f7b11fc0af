package kardex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"toolrental/internal/apperror"
	"toolrental/internal/logger"
)

const movementColumns = `id, tool_unit_id, tool_group_id, tool_group_name, customer_id, customer_name,
	user_id, user_name, movement_type, movement_date, details, created_at`

// service implements the Service interface.
type service struct {
	db        *sqlx.DB
	directory Directory
	units     *UnitCache
	tracer    trace.Tracer
	now       func() time.Time
}

// Option customizes a service.
type Option func(*service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// NewService creates a new kardex service instance. directory and units may be nil.
func NewService(db *sqlx.DB, directory Directory, units *UnitCache, opts ...Option) Service {
	s := &service{
		db:        db,
		directory: directory,
		units:     units,
		tracer:    otel.Tracer("toolrental/kardex"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordMovement validates req, snapshots display names and appends the movement.
// Name lookups never fail the write; unresolved names get placeholders.
func (s *service) RecordMovement(ctx context.Context, req RecordRequest) (*Movement, error) {
	ctx, span := s.tracer.Start(ctx, "kardex.record",
		trace.WithAttributes(
			attribute.String("movement.type", string(req.MovementType)),
			attribute.Int64("tool_unit.id", req.ToolUnitID),
		),
	)
	defer span.End()

	if !req.MovementType.Valid() {
		return nil, fmt.Errorf("%w: %q", apperror.ErrInvalidMovementType, req.MovementType)
	}
	if req.ToolUnitID <= 0 {
		return nil, fmt.Errorf("%w: tool_unit_id", apperror.ErrMissingField)
	}

	m := &Movement{
		ToolUnitID:   req.ToolUnitID,
		CustomerID:   req.CustomerID,
		UserID:       SystemActorID,
		MovementType: req.MovementType,
		MovementDate: s.now().UTC(),
		Details:      req.Details,
	}
	if req.MovementDate != nil {
		m.MovementDate = req.MovementDate.UTC()
	}
	if req.UserID != nil {
		m.UserID = *req.UserID
	}

	m.ToolGroupID, m.ToolGroupName = s.resolveToolGroup(ctx, req.ToolUnitID, req.ToolGroupID)
	m.CustomerName = s.resolveCustomerName(ctx, req.CustomerID)
	m.UserName = s.resolveUserName(ctx, m.UserID)

	query := `
		INSERT INTO kardex_movements (tool_unit_id, tool_group_id, tool_group_name, customer_id, customer_name,
			user_id, user_name, movement_type, movement_date, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	logger.DatabaseCall("insert", "kardex_movements", zap.String("movement_type", string(m.MovementType)))
	err := s.db.QueryRowxContext(ctx, query,
		m.ToolUnitID, m.ToolGroupID, m.ToolGroupName, m.CustomerID, m.CustomerName,
		m.UserID, m.UserName, m.MovementType, m.MovementDate, m.Details,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		logger.DatabaseResult("insert", 0, err)
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert movement: %w", err)
	}
	logger.DatabaseResult("insert", 1, nil, zap.Int64("movement_id", m.ID))

	span.SetAttributes(attribute.Int64("movement.id", m.ID))
	return m, nil
}

func (s *service) resolveToolGroup(ctx context.Context, unitID int64, groupID *int64) (int64, string) {
	ref, err := s.lookupToolUnit(ctx, unitID)
	if err != nil {
		logger.Ctx(ctx).Warn("could not resolve tool unit", zap.Int64("tool_unit_id", unitID), zap.Error(err))
	}

	switch {
	case groupID != nil && err == nil && ref.ToolGroupID == *groupID:
		return *groupID, ref.ToolGroupName
	case groupID != nil:
		return *groupID, fmt.Sprintf("Tool group #%d", *groupID)
	case err == nil:
		return ref.ToolGroupID, ref.ToolGroupName
	default:
		return UnknownToolGroupID, UnknownToolGroupName
	}
}

func (s *service) lookupToolUnit(ctx context.Context, unitID int64) (ToolRef, error) {
	if ref, ok := s.units.toolRef(ctx, unitID); ok {
		return ref, nil
	}
	if s.directory == nil {
		return ToolRef{}, errors.New("no directory configured")
	}
	ref, err := s.directory.LookupToolUnit(ctx, unitID)
	if err != nil {
		return ToolRef{}, err
	}
	s.units.setToolRef(ctx, unitID, ref)
	return ref, nil
}

func (s *service) resolveCustomerName(ctx context.Context, customerID *int64) string {
	if customerID == nil {
		return NoCustomerName
	}
	if s.directory == nil {
		return fmt.Sprintf("Customer #%d", *customerID)
	}
	name, err := s.directory.LookupCustomerName(ctx, *customerID)
	if err != nil {
		logger.Ctx(ctx).Warn("could not resolve customer", zap.Int64("customer_id", *customerID), zap.Error(err))
		return fmt.Sprintf("Customer #%d", *customerID)
	}
	return name
}

func (s *service) resolveUserName(ctx context.Context, userID int64) string {
	if userID == SystemActorID {
		return SystemActorName
	}
	if s.directory == nil {
		return fmt.Sprintf("User #%d", userID)
	}
	name, err := s.directory.LookupUserName(ctx, userID)
	if err != nil {
		logger.Ctx(ctx).Warn("could not resolve user", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Sprintf("User #%d", userID)
	}
	return name
}

// GetMovement retrieves a movement by its ID.
func (s *service) GetMovement(ctx context.Context, id int64) (*Movement, error) {
	m := &Movement{}
	err := s.db.GetContext(ctx, m, `SELECT `+movementColumns+` FROM kardex_movements WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("movement %d: %w", id, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get movement: %w", err)
	}
	return m, nil
}

// ListMovements returns the movements matching f ordered by movement date, then id.
func (s *service) ListMovements(ctx context.Context, f Filter) ([]*Movement, error) {
	ctx, span := s.tracer.Start(ctx, "kardex.list")
	defer span.End()

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ToolUnitID != nil {
		conditions = append(conditions, "tool_unit_id = :tool_unit_id")
		args["tool_unit_id"] = *f.ToolUnitID
	}
	if f.ToolGroupID != nil {
		conditions = append(conditions, "tool_group_id = :tool_group_id")
		args["tool_group_id"] = *f.ToolGroupID
	}
	if f.CustomerID != nil {
		conditions = append(conditions, "customer_id = :customer_id")
		args["customer_id"] = *f.CustomerID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = string(f.MovementType)
	}
	if f.From != nil {
		conditions = append(conditions, "movement_date >= :date_from")
		args["date_from"] = *f.From
	}
	if f.To != nil {
		conditions = append(conditions, "movement_date < :date_to")
		args["date_to"] = *f.To
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query, params, err := sqlx.Named(
		"SELECT "+movementColumns+" FROM kardex_movements"+whereClause+" ORDER BY movement_date ASC, id ASC",
		args,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build movement query: %w", err)
	}
	query = s.db.Rebind(query)

	movements := []*Movement{}
	if err := s.db.SelectContext(ctx, &movements, query, params...); err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}

	span.SetAttributes(attribute.Int("movements.loaded", len(movements)))
	return movements, nil
}

func (s *service) ByToolUnit(ctx context.Context, unitID int64) ([]*Movement, error) {
	return s.ListMovements(ctx, Filter{ToolUnitID: &unitID})
}

func (s *service) ByToolGroup(ctx context.Context, groupID int64) ([]*Movement, error) {
	return s.ListMovements(ctx, Filter{ToolGroupID: &groupID})
}

func (s *service) ByCustomer(ctx context.Context, customerID int64) ([]*Movement, error) {
	return s.ListMovements(ctx, Filter{CustomerID: &customerID})
}

func (s *service) ByMovementType(ctx context.Context, t MovementType) ([]*Movement, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", apperror.ErrInvalidMovementType, t)
	}
	return s.ListMovements(ctx, Filter{MovementType: t})
}

// ByDateRange covers whole UTC days: from's day inclusive through to's day inclusive.
func (s *service) ByDateRange(ctx context.Context, from, to time.Time) ([]*Movement, error) {
	start, end, err := dayBounds(from, to)
	if err != nil {
		return nil, err
	}
	return s.ListMovements(ctx, Filter{From: &start, To: &end})
}

func (s *service) ByToolUnitAndDateRange(ctx context.Context, unitID int64, from, to time.Time) ([]*Movement, error) {
	start, end, err := dayBounds(from, to)
	if err != nil {
		return nil, err
	}
	return s.ListMovements(ctx, Filter{ToolUnitID: &unitID, From: &start, To: &end})
}

func (s *service) ByToolGroupAndDateRange(ctx context.Context, groupID int64, from, to time.Time) ([]*Movement, error) {
	start, end, err := dayBounds(from, to)
	if err != nil {
		return nil, err
	}
	return s.ListMovements(ctx, Filter{ToolGroupID: &groupID, From: &start, To: &end})
}

// LatestForToolUnit returns the unit's most recent movement.
func (s *service) LatestForToolUnit(ctx context.Context, unitID int64) (*Movement, error) {
	m := &Movement{}
	err := s.db.GetContext(ctx, m, `
		SELECT `+movementColumns+`
		FROM kardex_movements
		WHERE tool_unit_id = $1
		ORDER BY movement_date DESC, id DESC
		LIMIT 1
	`, unitID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no movements for tool unit %d: %w", unitID, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest movement: %w", err)
	}
	return m, nil
}

func (s *service) CountByMovementType(ctx context.Context, t MovementType) (int64, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %q", apperror.ErrInvalidMovementType, t)
	}
	var count int64
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM kardex_movements WHERE movement_type = $1`, t); err != nil {
		return 0, fmt.Errorf("failed to count movements: %w", err)
	}
	return count, nil
}

func dayBounds(from, to time.Time) (time.Time, time.Time, error) {
	start := truncateDay(from)
	end := truncateDay(to).AddDate(0, 0, 1)
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date range ends before it starts", apperror.ErrInvalidRequest)
	}
	return start, end, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
