// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"toolrental/internal/apperror"
	"toolrental/internal/kardex"
	"toolrental/internal/logger"
)

// service implements the Service interface.
type service struct {
	db       *sql.DB
	recorder MovementRecorder
}

// NewService creates a new catalog service instance.
func NewService(db *sql.DB, recorder MovementRecorder) Service {
	return &service{
		db:       db,
		recorder: recorder,
	}
}

// CreateTariff stores a new pair of daily rates.
func (s *service) CreateTariff(ctx context.Context, dailyRentalRate, dailyFineRate int64) (*Tariff, error) {
	if err := validateRates(dailyRentalRate, dailyFineRate); err != nil {
		return nil, err
	}

	tariff := &Tariff{DailyRentalRate: dailyRentalRate, DailyFineRate: dailyFineRate}
	query := `
		INSERT INTO tariffs (daily_rental_rate, daily_fine_rate)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, dailyRentalRate, dailyFineRate).
		Scan(&tariff.ID, &tariff.CreatedAt, &tariff.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tariff: %w", err)
	}
	return tariff, nil
}

// GetTariff retrieves a tariff by its ID.
func (s *service) GetTariff(ctx context.Context, id int64) (*Tariff, error) {
	query := `
		SELECT id, daily_rental_rate, daily_fine_rate, created_at, updated_at
		FROM tariffs
		WHERE id = $1
	`
	tariff := &Tariff{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&tariff.ID,
		&tariff.DailyRentalRate,
		&tariff.DailyFineRate,
		&tariff.CreatedAt,
		&tariff.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tariff %d: %w", id, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tariff: %w", err)
	}
	return tariff, nil
}

// UpdateTariff replaces both rates. Open loans keep the cost computed at registration.
func (s *service) UpdateTariff(ctx context.Context, id, dailyRentalRate, dailyFineRate int64) (*Tariff, error) {
	if err := validateRates(dailyRentalRate, dailyFineRate); err != nil {
		return nil, err
	}

	query := `
		UPDATE tariffs
		SET daily_rental_rate = $1, daily_fine_rate = $2, updated_at = NOW()
		WHERE id = $3
	`
	res, err := s.db.ExecContext(ctx, query, dailyRentalRate, dailyFineRate, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update tariff: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("tariff %d: %w", id, apperror.ErrNotFound)
	}
	return s.GetTariff(ctx, id)
}

func validateRates(dailyRentalRate, dailyFineRate int64) error {
	if dailyRentalRate <= 0 {
		return fmt.Errorf("%w: daily rental rate must be positive", apperror.ErrInvalidRequest)
	}
	if dailyFineRate < 0 {
		return fmt.Errorf("%w: daily fine rate must not be negative", apperror.ErrInvalidRequest)
	}
	return nil
}

// CreateToolGroup creates the group and its units in one transaction, then
// records one REGISTRY movement per unit.
func (s *service) CreateToolGroup(ctx context.Context, req CreateToolGroupRequest) (*ToolGroup, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tariffs WHERE id = $1)`, req.TariffID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check tariff: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("tariff %d: %w", req.TariffID, apperror.ErrNotFound)
	}

	group := &ToolGroup{
		Name:             req.Name,
		Category:         req.Category,
		ReplacementValue: req.ReplacementValue,
		TariffID:         req.TariffID,
		UnitIDs:          make([]int64, 0, req.Units),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO tool_groups (name, category, replacement_value, tariff_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, group.Name, group.Category, group.ReplacementValue, group.TariffID).Scan(&group.ID, &group.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tool group: %w", err)
	}

	actor := kardex.ActorLabel(req.UserID)
	for i := 0; i < req.Units; i++ {
		var unitID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO tool_units (tool_group_id, status, updated_by)
			VALUES ($1, $2, $3)
			RETURNING id
		`, group.ID, StatusAvailable, actor).Scan(&unitID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert tool unit %d: %w", i, err)
		}
		group.UnitIDs = append(group.UnitIDs, unitID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	for _, unitID := range group.UnitIDs {
		s.record(ctx, kardex.RecordRequest{
			MovementType: kardex.MovementRegistry,
			ToolUnitID:   unitID,
			ToolGroupID:  kardex.Ref(group.ID),
			UserID:       req.UserID,
			Details:      "Tool registered: " + group.Name,
		})
	}

	return group, nil
}

// GetToolGroup retrieves a group and the ids of its units.
func (s *service) GetToolGroup(ctx context.Context, id int64) (*ToolGroup, error) {
	group := &ToolGroup{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, replacement_value, tariff_id, created_at
		FROM tool_groups
		WHERE id = $1
	`, id).Scan(&group.ID, &group.Name, &group.Category, &group.ReplacementValue, &group.TariffID, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tool group %d: %w", id, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tool group: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tool_units WHERE tool_group_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool units: %w", err)
	}
	defer rows.Close()

	group.UnitIDs = []int64{}
	for rows.Next() {
		var unitID int64
		if err := rows.Scan(&unitID); err != nil {
			return nil, fmt.Errorf("failed to scan tool unit: %w", err)
		}
		group.UnitIDs = append(group.UnitIDs, unitID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tool units: %w", err)
	}

	return group, nil
}

// ListToolGroups returns every group without unit ids.
func (s *service) ListToolGroups(ctx context.Context) ([]*ToolGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, replacement_value, tariff_id, created_at
		FROM tool_groups
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool groups: %w", err)
	}
	defer rows.Close()

	groups := []*ToolGroup{}
	for rows.Next() {
		group := &ToolGroup{}
		if err := rows.Scan(&group.ID, &group.Name, &group.Category, &group.ReplacementValue, &group.TariffID, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tool group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// ListAvailableToolGroups returns the groups that have at least one AVAILABLE unit.
func (s *service) ListAvailableToolGroups(ctx context.Context) ([]*ToolGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.category, g.replacement_value, g.tariff_id, g.created_at
		FROM tool_groups g
		WHERE EXISTS (SELECT 1 FROM tool_units u WHERE u.tool_group_id = g.id AND u.status = $1)
		ORDER BY g.name, g.id
	`, StatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to list available tool groups: %w", err)
	}
	defer rows.Close()

	groups := []*ToolGroup{}
	for rows.Next() {
		group := &ToolGroup{}
		if err := rows.Scan(&group.ID, &group.Name, &group.Category, &group.ReplacementValue, &group.TariffID, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tool group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// UpdateReplacementValue changes what an irreparable unit of the group costs.
// Damage already charged on returned loans is kept.
func (s *service) UpdateReplacementValue(ctx context.Context, id, value int64) (*ToolGroup, error) {
	if value < 0 {
		return nil, fmt.Errorf("%w: replacement value must not be negative", apperror.ErrInvalidRequest)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE tool_groups SET replacement_value = $1 WHERE id = $2`, value, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update replacement value: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("tool group %d: %w", id, apperror.ErrNotFound)
	}
	return s.GetToolGroup(ctx, id)
}

// AvailableStock counts the group's AVAILABLE units against its total.
func (s *service) AvailableStock(ctx context.Context, toolGroupID int64) (*GroupStock, error) {
	stock := &GroupStock{ToolGroupID: toolGroupID}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(u.id) FILTER (WHERE u.status = $2), COUNT(u.id)
		FROM tool_groups g
		LEFT JOIN tool_units u ON u.tool_group_id = g.id
		WHERE g.id = $1
		GROUP BY g.id
	`, toolGroupID, StatusAvailable).Scan(&stock.Available, &stock.Total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tool group %d: %w", toolGroupID, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to count stock: %w", err)
	}
	return stock, nil
}

const unitViewQuery = `
	SELECT u.id, u.tool_group_id, g.name, u.status, t.daily_rental_rate, t.daily_fine_rate, g.replacement_value
	FROM tool_units u
	JOIN tool_groups g ON g.id = u.tool_group_id
	JOIN tariffs t ON t.id = g.tariff_id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanUnitView(row scanner) (*UnitView, error) {
	v := &UnitView{}
	err := row.Scan(&v.UnitID, &v.ToolGroupID, &v.ToolGroupName, &v.Status, &v.DailyRentalRate, &v.DailyFineRate, &v.ReplacementValue)
	return v, err
}

// GetUnit retrieves a unit joined with its group's pricing.
func (s *service) GetUnit(ctx context.Context, id int64) (*UnitView, error) {
	v, err := scanUnitView(s.db.QueryRowContext(ctx, unitViewQuery+` WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tool unit %d: %w", id, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tool unit: %w", err)
	}
	return v, nil
}

// GetAvailableUnit returns the lowest-id AVAILABLE unit of the group.
func (s *service) GetAvailableUnit(ctx context.Context, toolGroupID int64) (*UnitView, error) {
	v, err := scanUnitView(s.db.QueryRowContext(ctx,
		unitViewQuery+` WHERE u.tool_group_id = $1 AND u.status = $2 ORDER BY u.id LIMIT 1`,
		toolGroupID, StatusAvailable,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tool group %d: %w", toolGroupID, apperror.ErrNoUnitsAvailable)
		}
		return nil, fmt.Errorf("failed to get available unit: %w", err)
	}
	return v, nil
}

// ListUnits returns every unit, retired ones included.
func (s *service) ListUnits(ctx context.Context) ([]*UnitView, error) {
	rows, err := s.db.QueryContext(ctx, unitViewQuery+` ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool units: %w", err)
	}
	defer rows.Close()

	units := []*UnitView{}
	for rows.Next() {
		v, err := scanUnitView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tool unit: %w", err)
		}
		units = append(units, v)
	}
	return units, rows.Err()
}

func (s *service) getToolUnit(ctx context.Context, id int64) (*ToolUnit, error) {
	unit := &ToolUnit{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tool_group_id, status, version, updated_by, updated_at
		FROM tool_units
		WHERE id = $1
	`, id).Scan(&unit.ID, &unit.ToolGroupID, &unit.Status, &unit.Version, &unit.UpdatedBy, &unit.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tool unit %d: %w", id, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tool unit: %w", err)
	}
	return unit, nil
}

// SetUnitStatus applies a loan-driven transition. Retired units and no-op
// transitions are rejected; a concurrent change surfaces as ErrInvalidState.
func (s *service) SetUnitStatus(ctx context.Context, id int64, change UnitStatusChange) (*ToolUnit, error) {
	if !change.Status.Valid() {
		return nil, fmt.Errorf("%w: tool status %q", apperror.ErrInvalidStatus, change.Status)
	}
	if change.LoanID <= 0 {
		return nil, fmt.Errorf("%w: status changes outside a loan go through retire or repair", apperror.ErrInvalidRequest)
	}

	unit, err := s.getToolUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(unit, change.Status); err != nil {
		return nil, err
	}

	actorName := change.Actor
	if actorName == "" {
		actorName = kardex.SystemActorName
	}
	if err := s.updateStatus(ctx, unit, change.Status, actorName); err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info("Tool unit status changed",
		zap.Int64("tool_unit_id", id),
		zap.Int64("loan_id", change.LoanID),
		zap.String("status", string(change.Status)),
		zap.String("actor", actorName),
	)
	return unit, nil
}

// RetireUnit takes a unit out of circulation for good. A unit on loan has to
// come back first.
func (s *service) RetireUnit(ctx context.Context, id int64, req UnitActionRequest) (*ToolUnit, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: a retirement needs a reason", apperror.ErrInvalidRequest)
	}

	unit, err := s.getToolUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	if unit.Status == StatusLoaned {
		return nil, fmt.Errorf("%w: tool unit %d is on loan", apperror.ErrInvalidState, id)
	}
	if err := checkTransition(unit, StatusRetired); err != nil {
		return nil, err
	}
	if err := s.updateStatus(ctx, unit, StatusRetired, kardex.ActorLabel(req.UserID)); err != nil {
		return nil, err
	}

	s.record(ctx, kardex.RecordRequest{
		MovementType: kardex.MovementRetire,
		ToolUnitID:   unit.ID,
		ToolGroupID:  kardex.Ref(unit.ToolGroupID),
		CustomerID:   req.CustomerID,
		UserID:       req.UserID,
		Details:      "Retired: " + req.Reason,
	})
	return unit, nil
}

// SendToRepair moves an AVAILABLE unit into repair.
func (s *service) SendToRepair(ctx context.Context, id int64, req UnitActionRequest) (*ToolUnit, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: a repair needs a reason", apperror.ErrInvalidRequest)
	}

	unit, err := s.getToolUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	if unit.Status != StatusAvailable {
		return nil, fmt.Errorf("%w: tool unit %d is %s, not %s", apperror.ErrInvalidState, id, unit.Status, StatusAvailable)
	}
	if err := s.updateStatus(ctx, unit, StatusInRepair, kardex.ActorLabel(req.UserID)); err != nil {
		return nil, err
	}

	s.record(ctx, kardex.RecordRequest{
		MovementType: kardex.MovementRepair,
		ToolUnitID:   unit.ID,
		ToolGroupID:  kardex.Ref(unit.ToolGroupID),
		CustomerID:   req.CustomerID,
		UserID:       req.UserID,
		Details:      "Sent to repair: " + req.Reason,
	})
	return unit, nil
}

func checkTransition(unit *ToolUnit, to ToolStatus) error {
	if unit.Status == StatusRetired {
		return fmt.Errorf("%w: tool unit %d is retired", apperror.ErrInvalidState, unit.ID)
	}
	if unit.Status == to {
		return fmt.Errorf("%w: tool unit %d is already %s", apperror.ErrInvalidState, unit.ID, to)
	}
	return nil
}

func (s *service) updateStatus(ctx context.Context, unit *ToolUnit, status ToolStatus, actorName string) error {
	query := `
		UPDATE tool_units
		SET status = $1, updated_by = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`
	res, err := s.db.ExecContext(ctx, query, status, actorName, unit.ID, unit.Version)
	if err != nil {
		return fmt.Errorf("failed to update tool unit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: tool unit %d was modified concurrently", apperror.ErrInvalidState, unit.ID)
	}

	unit.Status = status
	unit.UpdatedBy = actorName
	unit.Version++
	return nil
}

// ResolveRepair closes a repair: the unit is either retired or put back in circulation.
func (s *service) ResolveRepair(ctx context.Context, id int64, retire bool, userID *int64) (*ToolUnit, error) {
	unit, err := s.getToolUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	if unit.Status != StatusInRepair {
		return nil, fmt.Errorf("%w: tool unit %d is %s, not %s", apperror.ErrInvalidState, id, unit.Status, StatusInRepair)
	}

	next, movement, details := StatusAvailable, kardex.MovementReEntry, "Back from repair"
	if retire {
		next, movement, details = StatusRetired, kardex.MovementRetire, "Retired after repair assessment"
	}

	if err := s.updateStatus(ctx, unit, next, kardex.ActorLabel(userID)); err != nil {
		return nil, err
	}

	s.record(ctx, kardex.RecordRequest{
		MovementType: movement,
		ToolUnitID:   unit.ID,
		ToolGroupID:  kardex.Ref(unit.ToolGroupID),
		UserID:       userID,
		Details:      details,
	})
	return unit, nil
}

func (s *service) record(ctx context.Context, req kardex.RecordRequest) {
	if s.recorder == nil {
		return
	}
	s.recorder.Submit(ctx, req)
}
