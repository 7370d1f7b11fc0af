// internal/loan/implementation.go
package loan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"toolrental/internal/apperror"
	"toolrental/internal/catalog"
	"toolrental/internal/database"
	"toolrental/internal/eventstore"
	"toolrental/internal/kardex"
	"toolrental/internal/logger"
)

const compensationTimeout = 5 * time.Second

// service implements the Service interface.
type service struct {
	db        *sql.DB
	events    *eventstore.EventStore
	catalog   CatalogClient
	customers CustomerClient
	recorder  MovementRecorder
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// NewService creates a new loan service instance.
func NewService(db *sql.DB, events *eventstore.EventStore, catalog CatalogClient, customers CustomerClient, recorder MovementRecorder, opts ...Option) Service {
	s := &service{
		db:        db,
		events:    events,
		catalog:   catalog,
		customers: customers,
		recorder:  recorder,
		tracer:    otel.Tracer("toolrental/loan"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterLoan orchestrates a new rental: standing check, capacity check under
// a per-customer lock, unit reservation at the catalog, then the ledger entry.
func (s *service) RegisterLoan(ctx context.Context, req RegisterLoanRequest) (view *LoanView, err error) {
	ctx, span := s.tracer.Start(ctx, "loan.register", trace.WithAttributes(
		attribute.Int64("customer.id", req.CustomerID),
		attribute.Int64("tool_group.id", req.ToolGroupID),
	))
	defer func() { endSpan(span, err) }()

	now := s.now()
	if !req.DueDate.After(now) {
		return nil, fmt.Errorf("%w: due date must be in the future", apperror.ErrInvalidRequest)
	}

	// Step 1: customer standing
	standing, err := s.customers.GetForLoanValidation(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %d not found", apperror.ErrCustomerIneligible, req.CustomerID)
		}
		return nil, fmt.Errorf("failed to get customer standing: %w", err)
	}
	if reason := standing.IneligibilityReason(); reason != "" {
		return nil, fmt.Errorf("%w: %s", apperror.ErrCustomerIneligible, reason)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Step 2: capacity, serialized per customer until commit
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, req.CustomerID); err != nil {
		return nil, fmt.Errorf("lock customer %d: %w", req.CustomerID, err)
	}
	var open, sameGroup int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE tool_group_id = $2)
		FROM loans
		WHERE customer_id = $1 AND return_date IS NULL
	`, req.CustomerID, req.ToolGroupID).Scan(&open, &sameGroup)
	if err != nil {
		return nil, fmt.Errorf("count open loans: %w", err)
	}
	if open >= MaxOpenLoans {
		return nil, fmt.Errorf("%w: customer %d has %d open loans", apperror.ErrLoanLimitExceeded, req.CustomerID, open)
	}
	if sameGroup > 0 {
		return nil, fmt.Errorf("%w: tool group %d", apperror.ErrDuplicateToolGroup, req.ToolGroupID)
	}

	// Step 3: pick a unit
	unit, err := s.catalog.GetAvailableUnit(ctx, req.ToolGroupID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrNoUnitsAvailable) {
			return nil, fmt.Errorf("%w: tool group %d", apperror.ErrNoUnitsAvailable, req.ToolGroupID)
		}
		return nil, fmt.Errorf("failed to get available unit: %w", err)
	}
	if unit.Status != catalog.StatusAvailable {
		return nil, fmt.Errorf("%w: unit %d is %s", apperror.ErrNoUnitsAvailable, unit.UnitID, unit.Status)
	}

	// Step 4: persist
	loan := &Loan{
		CustomerID:  req.CustomerID,
		ToolUnitID:  unit.UnitID,
		ToolGroupID: req.ToolGroupID,
		LoanDate:    now,
		DueDate:     req.DueDate.UTC(),
		TotalCost:   RentalCost(unit.DailyRentalRate, now, req.DueDate),
		Status:      StatusActive,
		Version:     1,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO loans (customer_id, tool_unit_id, tool_group_id, loan_date, due_date, total_cost, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, loan.CustomerID, loan.ToolUnitID, loan.ToolGroupID, loan.LoanDate, loan.DueDate, loan.TotalCost, loan.Status, loan.Version).Scan(&loan.ID)
	if err != nil {
		switch constraint, _ := database.UniqueViolation(err); constraint {
		case database.OpenLoanPerUnitIndex:
			return nil, fmt.Errorf("%w: unit %d was taken by another loan", apperror.ErrNoUnitsAvailable, unit.UnitID)
		case database.OpenLoanPerGroupIndex:
			return nil, fmt.Errorf("%w: tool group %d", apperror.ErrDuplicateToolGroup, req.ToolGroupID)
		}
		return nil, fmt.Errorf("failed to insert loan: %w", err)
	}

	err = s.appendEvent(ctx, tx, loan.ID, 0, EventLoanRegistered, LoanRegisteredEvent{
		CustomerID:  loan.CustomerID,
		ToolUnitID:  loan.ToolUnitID,
		ToolGroupID: loan.ToolGroupID,
		DueDate:     loan.DueDate,
		TotalCost:   loan.TotalCost,
	}, req.UserID)
	if err != nil {
		return nil, err
	}

	// Step 5: reserve the unit. A failure here rolls the loan back.
	if err := s.catalog.SetUnitStatus(ctx, unit.UnitID, catalog.StatusLoaned, kardex.ActorLabel(req.UserID), loan.ID); err != nil {
		if errors.Is(err, apperror.ErrUnavailable) {
			// the catalog may have applied the change before failing
			s.compensateUnit(ctx, unit.UnitID, catalog.StatusAvailable, loan.ID)
		}
		return nil, fmt.Errorf("failed to reserve tool unit %d: %w", unit.UnitID, err)
	}

	if err := tx.Commit(); err != nil {
		s.compensateUnit(ctx, unit.UnitID, catalog.StatusAvailable, loan.ID)
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	// Step 6: ledger
	s.record(ctx, kardex.RecordRequest{
		MovementType: kardex.MovementLoan,
		ToolUnitID:   unit.UnitID,
		ToolGroupID:  kardex.Ref(loan.ToolGroupID),
		CustomerID:   kardex.Ref(loan.CustomerID),
		UserID:       req.UserID,
		MovementDate: &now,
		Details:      "Loan to customer: " + standing.Name,
	})

	logger.Ctx(ctx).Info("Loan registered",
		zap.Int64("loan_id", loan.ID),
		zap.Int64("customer_id", loan.CustomerID),
		zap.Int64("tool_unit_id", loan.ToolUnitID),
		zap.Int64("total_cost", loan.TotalCost),
	)

	return &LoanView{
		Loan:            loan,
		CustomerName:    standing.Name,
		ToolGroupName:   unit.ToolGroupName,
		EffectiveStatus: loan.EffectiveStatus(now),
	}, nil
}

type returnOutcome struct {
	status     Status
	unitStatus catalog.ToolStatus
	movement   kardex.MovementType
	details    string
	damage     int64
}

func decideReturn(req ReturnLoanRequest, unit *catalog.UnitView) returnOutcome {
	switch {
	case req.Irreparable:
		return returnOutcome{StatusDamaged, catalog.StatusRetired, kardex.MovementRetire, "irreparable damage on return", unit.ReplacementValue}
	case req.DamageCharge != nil && *req.DamageCharge > 0:
		return returnOutcome{StatusDamaged, catalog.StatusInRepair, kardex.MovementRepair, "damaged on return, sent to repair", *req.DamageCharge}
	default:
		return returnOutcome{StatusReturned, catalog.StatusAvailable, kardex.MovementReturn, "normal return", 0}
	}
}

// ReturnLoan closes an open loan. The loan row stays locked until the catalog
// has accepted the unit's new status, so a failed transition leaves the loan untouched.
func (s *service) ReturnLoan(ctx context.Context, id int64, req ReturnLoanRequest) (view *LoanView, err error) {
	ctx, span := s.tracer.Start(ctx, "loan.return", trace.WithAttributes(
		attribute.Int64("loan.id", id),
		attribute.Bool("irreparable", req.Irreparable),
	))
	defer func() { endSpan(span, err) }()

	if req.DamageCharge != nil && *req.DamageCharge < 0 {
		return nil, fmt.Errorf("%w: damage charge must not be negative", apperror.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	loan, err := lockLoan(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !loan.Open() {
		return nil, fmt.Errorf("%w: loan %d is already returned", apperror.ErrInvalidState, id)
	}

	unit, err := s.catalog.GetUnit(ctx, loan.ToolUnitID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tool unit %d: %w", loan.ToolUnitID, err)
	}

	now := s.now()
	outcome := decideReturn(req, unit)
	fine := Fine(unit.DailyFineRate, loan.DueDate, now)

	res, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET return_date = $1, fine_amount = $2, damage_charge = $3, status = $4, version = version + 1, updated_at = NOW()
		WHERE id = $5 AND version = $6
	`, now, fine, outcome.damage, outcome.status, loan.ID, loan.Version)
	if err = checkUpdated(res, err, loan.ID); err != nil {
		return nil, err
	}

	err = s.appendEvent(ctx, tx, loan.ID, loan.Version, EventLoanReturned, LoanReturnedEvent{
		ReturnDate:   now,
		FineAmount:   fine,
		DamageCharge: outcome.damage,
		Irreparable:  req.Irreparable,
		Status:       outcome.status,
	}, req.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.catalog.SetUnitStatus(ctx, loan.ToolUnitID, outcome.unitStatus, kardex.ActorLabel(req.UserID), loan.ID); err != nil {
		if errors.Is(err, apperror.ErrUnavailable) {
			s.compensateUnit(ctx, loan.ToolUnitID, catalog.StatusLoaned, loan.ID)
		}
		return nil, fmt.Errorf("failed to set tool unit %d to %s: %w", loan.ToolUnitID, outcome.unitStatus, err)
	}

	if err := tx.Commit(); err != nil {
		// a RETIRED unit cannot be restored; the catalog refuses and we log it
		s.compensateUnit(ctx, loan.ToolUnitID, catalog.StatusLoaned, loan.ID)
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	loan.ReturnDate = &now
	loan.FineAmount = fine
	loan.DamageCharge = outcome.damage
	loan.Status = outcome.status
	loan.Version++

	s.record(ctx, kardex.RecordRequest{
		MovementType: outcome.movement,
		ToolUnitID:   loan.ToolUnitID,
		ToolGroupID:  kardex.Ref(loan.ToolGroupID),
		CustomerID:   kardex.Ref(loan.CustomerID),
		UserID:       req.UserID,
		MovementDate: &now,
		Details:      outcome.details,
	})

	logger.Ctx(ctx).Info("Loan returned",
		zap.Int64("loan_id", loan.ID),
		zap.String("status", string(loan.Status)),
		zap.Int64("fine_amount", fine),
		zap.Int64("damage_charge", outcome.damage),
	)

	names := s.newNameResolver()
	names.groups[loan.ToolGroupID] = unit.ToolGroupName
	return names.view(ctx, loan, now), nil
}

// PayDebts settles the fine and damage charge of a returned loan.
func (s *service) PayDebts(ctx context.Context, id int64) (*LoanView, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	loan, err := lockLoan(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if loan.Open() {
		return nil, fmt.Errorf("%w: loan %d has not been returned", apperror.ErrInvalidState, id)
	}
	if loan.Debt() == 0 {
		return s.newNameResolver().view(ctx, loan, s.now()), nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET fine_amount = 0, damage_charge = 0, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`, loan.ID, loan.Version)
	if err = checkUpdated(res, err, loan.ID); err != nil {
		return nil, err
	}

	paid := DebtsPaidEvent{FineAmount: loan.FineAmount, DamageCharge: loan.DamageCharge}
	if err := s.appendEvent(ctx, tx, loan.ID, loan.Version, EventDebtsPaid, paid, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	logger.Ctx(ctx).Info("Loan debts paid",
		zap.Int64("loan_id", loan.ID),
		zap.Int64("fine_amount", paid.FineAmount),
		zap.Int64("damage_charge", paid.DamageCharge),
	)

	loan.FineAmount, loan.DamageCharge = 0, 0
	loan.Version++
	return s.newNameResolver().view(ctx, loan, s.now()), nil
}

// ApplyDamage records a damage assessment made after the return. The tool
// unit is left alone: it may already be out on another loan.
func (s *service) ApplyDamage(ctx context.Context, id int64, req ApplyDamageRequest) (*LoanView, error) {
	if req.Amount < 0 {
		return nil, fmt.Errorf("%w: damage amount must not be negative", apperror.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	loan, err := lockLoan(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if loan.Open() {
		return nil, fmt.Errorf("%w: loan %d has not been returned", apperror.ErrInvalidState, id)
	}

	damage := req.Amount
	if req.Irreparable {
		unit, err := s.catalog.GetUnit(ctx, loan.ToolUnitID)
		if err != nil {
			return nil, fmt.Errorf("failed to get tool unit %d: %w", loan.ToolUnitID, err)
		}
		damage = unit.ReplacementValue
	}

	status := loan.Status
	if damage > 0 {
		status = StatusDamaged
	} else if loan.Status == StatusDamaged {
		return nil, fmt.Errorf("%w: loan %d is damaged, a new assessment needs a positive charge", apperror.ErrInvalidState, id)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET damage_charge = $1, status = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`, damage, status, loan.ID, loan.Version)
	if err = checkUpdated(res, err, loan.ID); err != nil {
		return nil, err
	}

	err = s.appendEvent(ctx, tx, loan.ID, loan.Version, EventDamageAssessed, DamageAssessedEvent{
		DamageCharge: damage,
		Irreparable:  req.Irreparable,
		Status:       status,
	}, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	loan.DamageCharge = damage
	loan.Status = status
	loan.Version++
	return s.newNameResolver().view(ctx, loan, s.now()), nil
}

const loanColumns = `id, customer_id, tool_unit_id, tool_group_id, loan_date, due_date, return_date,
	total_cost, fine_amount, damage_charge, status, version`

func scanLoan(scan func(...any) error) (*Loan, error) {
	l := &Loan{}
	var returnDate sql.NullTime
	err := scan(
		&l.ID,
		&l.CustomerID,
		&l.ToolUnitID,
		&l.ToolGroupID,
		&l.LoanDate,
		&l.DueDate,
		&returnDate,
		&l.TotalCost,
		&l.FineAmount,
		&l.DamageCharge,
		&l.Status,
		&l.Version,
	)
	if err != nil {
		return nil, err
	}
	if returnDate.Valid {
		t := returnDate.Time
		l.ReturnDate = &t
	}
	return l, nil
}

func lockLoan(ctx context.Context, tx *sql.Tx, id int64) (*Loan, error) {
	loan, err := scanLoan(tx.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loan %d: %w", id, apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock loan: %w", err)
	}
	return loan, nil
}

func checkUpdated(res sql.Result, err error, id int64) error {
	if err != nil {
		return fmt.Errorf("failed to update loan %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: loan %d was modified concurrently", apperror.ErrInvalidState, id)
	}
	return nil
}

func (s *service) appendEvent(ctx context.Context, tx *sql.Tx, loanID int64, expectedVersion int, eventType string, data any, userID *int64) error {
	metadata := map[string]any{"actor": kardex.ActorLabel(userID)}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		metadata["request_id"] = reqID
	}

	event, err := eventstore.NewEvent(eventType, data, metadata)
	if err != nil {
		return err
	}
	if err := s.events.AppendEvents(ctx, tx, loanID, aggregateType, expectedVersion, event); err != nil {
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return fmt.Errorf("%w: loan %d history moved on", apperror.ErrInvalidState, loanID)
		}
		return fmt.Errorf("failed to append %s: %w", eventType, err)
	}
	return nil
}

// compensateUnit puts a unit back after the catalog accepted, or may have
// accepted, a transition whose loan change was then rolled back. If the
// catalog never applied it, the catalog rejects the no-op and we log that.
func (s *service) compensateUnit(ctx context.Context, unitID int64, status catalog.ToolStatus, loanID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	logger.Ctx(ctx).Warn("Compensating tool unit status",
		zap.Int64("tool_unit_id", unitID),
		zap.String("status", string(status)),
	)
	if err := s.catalog.SetUnitStatus(ctx, unitID, status, kardex.SystemActorName, loanID); err != nil {
		logger.Ctx(ctx).Error("Failed to compensate tool unit status",
			zap.Int64("tool_unit_id", unitID),
			zap.Error(err),
		)
	}
}

func (s *service) record(ctx context.Context, req kardex.RecordRequest) {
	if s.recorder == nil {
		return
	}
	s.recorder.Submit(ctx, req)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
