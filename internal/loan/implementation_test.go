package loan

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"toolrental/internal/apperror"
	"toolrental/internal/catalog"
	"toolrental/internal/customer"
	"toolrental/internal/database"
	"toolrental/internal/eventstore"
	"toolrental/internal/kardex"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetUnit(ctx context.Context, unitID int64) (*catalog.UnitView, error) {
	args := m.Called(ctx, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.UnitView), args.Error(1)
}

func (m *MockCatalog) GetAvailableUnit(ctx context.Context, toolGroupID int64) (*catalog.UnitView, error) {
	args := m.Called(ctx, toolGroupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.UnitView), args.Error(1)
}

func (m *MockCatalog) SetUnitStatus(ctx context.Context, unitID int64, status catalog.ToolStatus, actorName string, loanID int64) error {
	return m.Called(ctx, unitID, status, actorName, loanID).Error(0)
}

func (m *MockCatalog) GetToolGroup(ctx context.Context, toolGroupID int64) (*catalog.ToolGroup, error) {
	args := m.Called(ctx, toolGroupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.ToolGroup), args.Error(1)
}

type MockCustomers struct {
	mock.Mock
}

func (m *MockCustomers) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomers) GetForLoanValidation(ctx context.Context, customerID int64) (*customer.Standing, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Standing), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Submit(ctx context.Context, req kardex.RecordRequest) bool {
	return m.Called(ctx, req).Bool(0)
}

const (
	customerID  int64 = 7
	toolGroupID int64 = 4
	unitID      int64 = 100
	loanID      int64 = 55
)

var (
	fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	loanCols = []string{
		"id", "customer_id", "tool_unit_id", "tool_group_id", "loan_date", "due_date", "return_date",
		"total_cost", "fine_amount", "damage_charge", "status", "version",
	}

	hammer = &catalog.UnitView{
		UnitID:           unitID,
		ToolGroupID:      toolGroupID,
		ToolGroupName:    "Hammer",
		Status:           catalog.StatusAvailable,
		DailyRentalRate:  1000,
		DailyFineRate:    500,
		ReplacementValue: 15000,
	}
)

type fixture struct {
	svc       Service
	dbMock    sqlmock.Sqlmock
	catalog   *MockCatalog
	customers *MockCustomers
	recorder  *MockRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		dbMock:    dbMock,
		catalog:   new(MockCatalog),
		customers: new(MockCustomers),
		recorder:  new(MockRecorder),
	}
	f.svc = NewService(db, eventstore.NewEventStore(db), f.catalog, f.customers, f.recorder,
		WithClock(func() time.Time { return fixedNow }))
	return f
}

func (f *fixture) assertAll(t *testing.T) {
	t.Helper()
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
	f.catalog.AssertExpectations(t)
	f.customers.AssertExpectations(t)
	f.recorder.AssertExpectations(t)
}

func (f *fixture) expectAppend(id int64, currentVersion int, eventType string) {
	f.dbMock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(version), 0)`)).
		WithArgs(id, "loan").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(currentVersion))
	f.dbMock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO loan_events`)).
		WithArgs(id, "loan", eventType, sqlmock.AnyArg(), sqlmock.AnyArg(), currentVersion+1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(900 + currentVersion)))
}

func (f *fixture) expectCapacity(open, sameGroup int) {
	f.dbMock.ExpectBegin()
	f.dbMock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
		WithArgs(customerID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.dbMock.ExpectQuery(regexp.QuoteMeta(`COUNT(*) FILTER (WHERE tool_group_id = $2)`)).
		WithArgs(customerID, toolGroupID).
		WillReturnRows(sqlmock.NewRows([]string{"open", "same_group"}).AddRow(open, sameGroup))
}

func goodStanding() *customer.Standing {
	return &customer.Standing{ID: customerID, Name: "Ana Rojas", Status: customer.StatusActive}
}

func registerRequest() RegisterLoanRequest {
	return RegisterLoanRequest{CustomerID: customerID, ToolGroupID: toolGroupID, DueDate: fixedNow.Add(72 * time.Hour)}
}

// Scenario B
func TestRegisterLoan(t *testing.T) {
	f := newFixture(t)
	due := fixedNow.Add(72 * time.Hour)

	f.customers.On("GetForLoanValidation", mock.Anything, customerID).Return(goodStanding(), nil)
	f.expectCapacity(0, 0)
	f.catalog.On("GetAvailableUnit", mock.Anything, toolGroupID).Return(hammer, nil)
	f.dbMock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO loans`)).
		WithArgs(customerID, unitID, toolGroupID, fixedNow, due, int64(3000), StatusActive, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(loanID))
	f.expectAppend(loanID, 0, EventLoanRegistered)
	f.catalog.On("SetUnitStatus", mock.Anything, unitID, catalog.StatusLoaned, kardex.SystemActorName, loanID).Return(nil)
	f.dbMock.ExpectCommit()
	f.recorder.On("Submit", mock.Anything, kardex.RecordRequest{
		MovementType: kardex.MovementLoan,
		ToolUnitID:   unitID,
		ToolGroupID:  kardex.Ref(toolGroupID),
		CustomerID:   kardex.Ref(customerID),
		MovementDate: &fixedNow,
		Details:      "Loan to customer: Ana Rojas",
	}).Return(true).Once()

	view, err := f.svc.RegisterLoan(context.Background(), registerRequest())
	require.NoError(t, err)
	assert.Equal(t, loanID, view.ID)
	assert.Equal(t, int64(3000), view.TotalCost)
	assert.Equal(t, StatusActive, view.Status)
	assert.Equal(t, "Ana Rojas", view.CustomerName)
	assert.Equal(t, "Hammer", view.ToolGroupName)
	f.assertAll(t)
}

// Scenario A
func TestRegisterLoan_IneligibleCustomer(t *testing.T) {
	f := newFixture(t)
	standing := goodStanding()
	standing.HasUnpaidFines = true
	f.customers.On("GetForLoanValidation", mock.Anything, customerID).Return(standing, nil)

	_, err := f.svc.RegisterLoan(context.Background(), registerRequest())
	assert.ErrorIs(t, err, apperror.ErrCustomerIneligible)
	f.recorder.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	f.catalog.AssertNotCalled(t, "SetUnitStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestRegisterLoan_UnknownCustomer(t *testing.T) {
	f := newFixture(t)
	f.customers.On("GetForLoanValidation", mock.Anything, customerID).Return(nil, apperror.ErrNotFound)

	_, err := f.svc.RegisterLoan(context.Background(), registerRequest())
	assert.ErrorIs(t, err, apperror.ErrCustomerIneligible)
}

func TestRegisterLoan_CustomerServiceDown(t *testing.T) {
	f := newFixture(t)
	f.customers.On("GetForLoanValidation", mock.Anything, customerID).Return(nil, apperror.ErrUnavailable)

	_, err := f.svc.RegisterLoan(context.Background(), registerRequest())
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.NotErrorIs(t, err, apperror.ErrCustomerIneligible)
}

func TestRegisterLoan_DueDateInPast(t *testing.T) {
	f := newFixture(t)
	req := registerRequest()
	req.DueDate = fixedNow

	_, err := f.svc.RegisterLoan(context.Background(), req)
	assert.ErrorIs(t, err, apperror.ErrInvalidRequest)
	f.customers.AssertNotCalled(t, "GetForLoanValidation", mock.Anything, mock.Anything)
}

func TestRegisterLoan_Capacity(t *testing.T) {
	tests := []struct {
		name      string
		open      int
		sameGroup int
		want      error
	}{
		{"limit reached", MaxOpenLoans, 0, apperror.ErrLoanLimitExceeded},
		{"same group open", 2, 1, apperror.ErrDuplicateToolGroup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.customers.On("GetForLoanValidation", mock.Anything, customerID).Return(goodStanding(), nil)
			f.expectCapacity(tt.open, tt.sameGroup)
			f.dbMock.ExpectRollback()

			_, err := f.svc.RegisterLoan(context.Background(), registerRequest())
			assert.ErrorIs(t, err, tt.want)
			f.catalog.AssertNotCalled(t, "GetAvailableUnit", mock.Anything, mock.Anything)
			f.assertAll(t)
		})
	}
}

func TestRegisterLoan_NoUnits(t *testing.T) {
	f := newFixture(t)
	f.customers.On("GetForLoanValidation", mock.Anything, customerID).Return(goodStanding(), nil)
	f.expectCapacity(0, 0)
	f.catalog.On("GetAvailableUnit", mock.Anything, toolGroupID).Return(nil, apperror.ErrNotFound)
	f.dbMock.ExpectRollback()

	_, err := f.svc.RegisterLoan(context.Background(), registerRequest())
	assert.ErrorIs(t, err, apperror.ErrNoUnitsAvailable)
	f.assertAll(t)
}

func TestRegisterLoan_UniqueIndexRace(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{"same group for customer", database.OpenLoanPerGroupIndex, apperror.ErrDuplicateToolGroup},
		{"unit taken by another customer", database.OpenLoanPerUnitIndex, apperror.ErrNoUnitsAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.customers.On("GetForLoanValidation", mock.Anything, customerID).Return(goodStanding(), nil)
			f.expectCapacity(0, 0)
			f.catalog.On("GetAvailableUnit", mock.Anything, toolGroupID).Return(hammer, nil)
			f.dbMock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO loans`)).
				WillReturnError(&pq.Error{Code: "23505", Constraint: tt.constraint})
			f.dbMock.ExpectRollback()

			_, err := f.svc.RegisterLoan(context.Background(), registerRequest())
			assert.ErrorIs(t, err, tt.want)
			f.catalog.AssertNotCalled(t, "SetUnitStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.assertAll(t)
		})
	}
}

func TestRegisterLoan_CatalogRejectsReservation(t *testing.T) {
	f := newFixture(t)
	f.customers.On("GetForLoanValidation", mock.Anything, customerID).Return(goodStanding(), nil)
	f.expectCapacity(0, 0)
	f.catalog.On("GetAvailableUnit", mock.Anything, toolGroupID).Return(hammer, nil)
	f.dbMock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO loans`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(loanID))
	f.expectAppend(loanID, 0, EventLoanRegistered)
	f.catalog.On("SetUnitStatus", mock.Anything, unitID, catalog.StatusLoaned, kardex.SystemActorName, loanID).
		Return(apperror.ErrInvalidState)
	f.dbMock.ExpectRollback()

	_, err := f.svc.RegisterLoan(context.Background(), registerRequest())
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
	f.recorder.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	f.assertAll(t)
}

// A timed-out reservation may still have been applied by the catalog.
func TestRegisterLoan_ReservationTimeoutCompensates(t *testing.T) {
	f := newFixture(t)
	f.customers.On("GetForLoanValidation", mock.Anything, customerID).Return(goodStanding(), nil)
	f.expectCapacity(0, 0)
	f.catalog.On("GetAvailableUnit", mock.Anything, toolGroupID).Return(hammer, nil)
	f.dbMock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO loans`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(loanID))
	f.expectAppend(loanID, 0, EventLoanRegistered)
	f.catalog.On("SetUnitStatus", mock.Anything, unitID, catalog.StatusLoaned, kardex.SystemActorName, loanID).
		Return(fmt.Errorf("catalog request: %w", apperror.ErrUnavailable)).Once()
	f.catalog.On("SetUnitStatus", mock.Anything, unitID, catalog.StatusAvailable, kardex.SystemActorName, loanID).
		Return(nil).Once()
	f.dbMock.ExpectRollback()

	_, err := f.svc.RegisterLoan(context.Background(), registerRequest())
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	f.recorder.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestRegisterLoan_CommitFailureCompensates(t *testing.T) {
	f := newFixture(t)
	f.customers.On("GetForLoanValidation", mock.Anything, customerID).Return(goodStanding(), nil)
	f.expectCapacity(0, 0)
	f.catalog.On("GetAvailableUnit", mock.Anything, toolGroupID).Return(hammer, nil)
	f.dbMock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO loans`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(loanID))
	f.expectAppend(loanID, 0, EventLoanRegistered)
	f.catalog.On("SetUnitStatus", mock.Anything, unitID, catalog.StatusLoaned, kardex.SystemActorName, loanID).Return(nil)
	f.dbMock.ExpectCommit().WillReturnError(errors.New("connection reset"))
	f.catalog.On("SetUnitStatus", mock.Anything, unitID, catalog.StatusAvailable, kardex.SystemActorName, loanID).Return(nil)

	_, err := f.svc.RegisterLoan(context.Background(), registerRequest())
	assert.Error(t, err)
	f.recorder.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	f.assertAll(t)
}

// Scenario F: the recorder dropping the movement does not affect the loan.
func TestRegisterLoan_LedgerUnavailable(t *testing.T) {
	f := newFixture(t)
	f.customers.On("GetForLoanValidation", mock.Anything, customerID).Return(goodStanding(), nil)
	f.expectCapacity(0, 0)
	f.catalog.On("GetAvailableUnit", mock.Anything, toolGroupID).Return(hammer, nil)
	f.dbMock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO loans`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(loanID))
	f.expectAppend(loanID, 0, EventLoanRegistered)
	f.catalog.On("SetUnitStatus", mock.Anything, unitID, catalog.StatusLoaned, kardex.SystemActorName, loanID).Return(nil)
	f.dbMock.ExpectCommit()
	f.recorder.On("Submit", mock.Anything, mock.Anything).Return(false)

	view, err := f.svc.RegisterLoan(context.Background(), registerRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusActive, view.Status)
	f.assertAll(t)
}

func openLoanRow(due time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(loanCols).AddRow(
		loanID, customerID, unitID, toolGroupID, due.Add(-72*time.Hour), due, nil,
		int64(3000), int64(0), int64(0), "ACTIVE", 1,
	)
}

func returnedLoanRow(fine, damage int64, status string) *sqlmock.Rows {
	returned := fixedNow.Add(-time.Hour)
	return sqlmock.NewRows(loanCols).AddRow(
		loanID, customerID, unitID, toolGroupID, fixedNow.Add(-96*time.Hour), fixedNow.Add(-24*time.Hour), returned,
		int64(3000), fine, damage, status, 2,
	)
}

func (f *fixture) expectLock(rows *sqlmock.Rows) {
	f.dbMock.ExpectBegin()
	f.dbMock.ExpectQuery(regexp.QuoteMeta(`FROM loans WHERE id = $1 FOR UPDATE`)).
		WithArgs(loanID).
		WillReturnRows(rows)
}

// Scenario C
func TestReturnLoan_LateNoDamage(t *testing.T) {
	f := newFixture(t)
	f.expectLock(openLoanRow(fixedNow.Add(-24 * time.Hour)))
	f.catalog.On("GetUnit", mock.Anything, unitID).Return(hammer, nil)
	f.dbMock.ExpectExec(regexp.QuoteMeta(`UPDATE loans`)).
		WithArgs(fixedNow, int64(500), int64(0), StatusReturned, loanID, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.expectAppend(loanID, 1, EventLoanReturned)
	f.catalog.On("SetUnitStatus", mock.Anything, unitID, catalog.StatusAvailable, kardex.SystemActorName, loanID).Return(nil)
	f.dbMock.ExpectCommit()
	f.recorder.On("Submit", mock.Anything, mock.MatchedBy(func(req kardex.RecordRequest) bool {
		return req.MovementType == kardex.MovementReturn && req.ToolUnitID == unitID && req.Details == "normal return"
	})).Return(true).Once()
	f.customers.On("GetCustomer", mock.Anything, customerID).Return(&customer.Customer{ID: customerID, Name: "Ana Rojas"}, nil)

	view, err := f.svc.ReturnLoan(context.Background(), loanID, ReturnLoanRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, view.Status)
	assert.Equal(t, int64(500), view.FineAmount)
	assert.Equal(t, fixedNow, *view.ReturnDate)
	assert.Equal(t, "Hammer", view.ToolGroupName)
	f.catalog.AssertNotCalled(t, "GetToolGroup", mock.Anything, mock.Anything)
	f.assertAll(t)
}

// Scenario D
func TestReturnLoan_Irreparable(t *testing.T) {
	f := newFixture(t)
	f.expectLock(openLoanRow(fixedNow.Add(48 * time.Hour)))
	f.catalog.On("GetUnit", mock.Anything, unitID).Return(hammer, nil)
	f.dbMock.ExpectExec(regexp.QuoteMeta(`UPDATE loans`)).
		WithArgs(fixedNow, int64(0), int64(15000), StatusDamaged, loanID, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.expectAppend(loanID, 1, EventLoanReturned)
	f.catalog.On("SetUnitStatus", mock.Anything, unitID, catalog.StatusRetired, "user:3", loanID).Return(nil)
	f.dbMock.ExpectCommit()
	f.recorder.On("Submit", mock.Anything, mock.MatchedBy(func(req kardex.RecordRequest) bool {
		return req.MovementType == kardex.MovementRetire && *req.UserID == 3
	})).Return(true).Once()
	f.customers.On("GetCustomer", mock.Anything, customerID).Return(nil, apperror.ErrUnavailable)

	view, err := f.svc.ReturnLoan(context.Background(), loanID, ReturnLoanRequest{
		DamageCharge: kardex.Ref(200),
		Irreparable:  true,
		UserID:       kardex.Ref(3),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDamaged, view.Status)
	assert.Equal(t, int64(15000), view.DamageCharge)
	assert.Equal(t, "Customer #7", view.CustomerName)
	f.assertAll(t)
}

func TestReturnLoan_Reparable(t *testing.T) {
	f := newFixture(t)
	f.expectLock(openLoanRow(fixedNow.Add(48 * time.Hour)))
	f.catalog.On("GetUnit", mock.Anything, unitID).Return(hammer, nil)
	f.dbMock.ExpectExec(regexp.QuoteMeta(`UPDATE loans`)).
		WithArgs(fixedNow, int64(0), int64(2500), StatusDamaged, loanID, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.expectAppend(loanID, 1, EventLoanReturned)
	f.catalog.On("SetUnitStatus", mock.Anything, unitID, catalog.StatusInRepair, kardex.SystemActorName, loanID).Return(nil)
	f.dbMock.ExpectCommit()
	f.recorder.On("Submit", mock.Anything, mock.MatchedBy(func(req kardex.RecordRequest) bool {
		return req.MovementType == kardex.MovementRepair
	})).Return(true).Once()
	f.customers.On("GetCustomer", mock.Anything, customerID).Return(&customer.Customer{Name: "Ana Rojas"}, nil)

	view, err := f.svc.ReturnLoan(context.Background(), loanID, ReturnLoanRequest{DamageCharge: kardex.Ref(2500)})
	require.NoError(t, err)
	assert.Equal(t, StatusDamaged, view.Status)
	f.assertAll(t)
}

// Scenario E
func TestReturnLoan_CatalogFailureLeavesLoanUntouched(t *testing.T) {
	f := newFixture(t)
	f.expectLock(openLoanRow(fixedNow.Add(48 * time.Hour)))
	f.catalog.On("GetUnit", mock.Anything, unitID).Return(hammer, nil)
	f.dbMock.ExpectExec(regexp.QuoteMeta(`UPDATE loans`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.expectAppend(loanID, 1, EventLoanReturned)
	f.catalog.On("SetUnitStatus", mock.Anything, unitID, catalog.StatusAvailable, kardex.SystemActorName, loanID).
		Return(apperror.ErrUnavailable).Once()
	f.catalog.On("SetUnitStatus", mock.Anything, unitID, catalog.StatusLoaned, kardex.SystemActorName, loanID).
		Return(nil).Once()
	f.dbMock.ExpectRollback()

	_, err := f.svc.ReturnLoan(context.Background(), loanID, ReturnLoanRequest{})
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	f.recorder.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestReturnLoan_AlreadyReturned(t *testing.T) {
	f := newFixture(t)
	f.expectLock(returnedLoanRow(0, 0, "RETURNED"))
	f.dbMock.ExpectRollback()

	_, err := f.svc.ReturnLoan(context.Background(), loanID, ReturnLoanRequest{})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
	f.assertAll(t)
}

func TestReturnLoan_NotFound(t *testing.T) {
	f := newFixture(t)
	f.expectLock(sqlmock.NewRows(loanCols))
	f.dbMock.ExpectRollback()

	_, err := f.svc.ReturnLoan(context.Background(), loanID, ReturnLoanRequest{})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestReturnLoan_ConcurrentReturnLoses(t *testing.T) {
	f := newFixture(t)
	f.expectLock(openLoanRow(fixedNow.Add(48 * time.Hour)))
	f.catalog.On("GetUnit", mock.Anything, unitID).Return(hammer, nil)
	f.dbMock.ExpectExec(regexp.QuoteMeta(`UPDATE loans`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.dbMock.ExpectRollback()

	_, err := f.svc.ReturnLoan(context.Background(), loanID, ReturnLoanRequest{})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
	f.catalog.AssertNotCalled(t, "SetUnitStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPayDebts(t *testing.T) {
	f := newFixture(t)
	f.expectLock(returnedLoanRow(500, 2500, "DAMAGED"))
	f.dbMock.ExpectExec(regexp.QuoteMeta(`SET fine_amount = 0, damage_charge = 0`)).
		WithArgs(loanID, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.expectAppend(loanID, 2, EventDebtsPaid)
	f.dbMock.ExpectCommit()
	f.customers.On("GetCustomer", mock.Anything, customerID).Return(&customer.Customer{Name: "Ana Rojas"}, nil)
	f.catalog.On("GetToolGroup", mock.Anything, toolGroupID).Return(&catalog.ToolGroup{Name: "Hammer"}, nil)

	view, err := f.svc.PayDebts(context.Background(), loanID)
	require.NoError(t, err)
	assert.Zero(t, view.Debt())
	assert.Equal(t, StatusDamaged, view.Status)
	f.assertAll(t)
}

func TestPayDebts_OpenLoan(t *testing.T) {
	f := newFixture(t)
	f.expectLock(openLoanRow(fixedNow.Add(time.Hour)))
	f.dbMock.ExpectRollback()

	_, err := f.svc.PayDebts(context.Background(), loanID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestApplyDamage(t *testing.T) {
	t.Run("positive amount marks returned loan damaged", func(t *testing.T) {
		f := newFixture(t)
		f.expectLock(returnedLoanRow(0, 0, "RETURNED"))
		f.dbMock.ExpectExec(regexp.QuoteMeta(`SET damage_charge = $1, status = $2`)).
			WithArgs(int64(800), StatusDamaged, loanID, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.expectAppend(loanID, 2, EventDamageAssessed)
		f.dbMock.ExpectCommit()
		f.customers.On("GetCustomer", mock.Anything, customerID).Return(&customer.Customer{Name: "Ana Rojas"}, nil)
		f.catalog.On("GetToolGroup", mock.Anything, toolGroupID).Return(nil, apperror.ErrNotFound)

		view, err := f.svc.ApplyDamage(context.Background(), loanID, ApplyDamageRequest{Amount: 800})
		require.NoError(t, err)
		assert.Equal(t, StatusDamaged, view.Status)
		assert.Equal(t, "Tool group #4", view.ToolGroupName)
		f.catalog.AssertNotCalled(t, "SetUnitStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertAll(t)
	})

	t.Run("negative amount", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ApplyDamage(context.Background(), loanID, ApplyDamageRequest{Amount: -1})
		assert.ErrorIs(t, err, apperror.ErrInvalidRequest)
	})

	t.Run("zero charge on damaged loan", func(t *testing.T) {
		f := newFixture(t)
		f.expectLock(returnedLoanRow(0, 2500, "DAMAGED"))
		f.dbMock.ExpectRollback()
		_, err := f.svc.ApplyDamage(context.Background(), loanID, ApplyDamageRequest{Amount: 0})
		assert.ErrorIs(t, err, apperror.ErrInvalidState)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("zero charge on returned loan", func(t *testing.T) {
		f := newFixture(t)
		f.expectLock(returnedLoanRow(0, 0, "RETURNED"))
		f.dbMock.ExpectExec(regexp.QuoteMeta(`SET damage_charge = $1, status = $2`)).
			WithArgs(int64(0), StatusReturned, loanID, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.expectAppend(loanID, 2, EventDamageAssessed)
		f.dbMock.ExpectCommit()
		f.customers.On("GetCustomer", mock.Anything, customerID).Return(&customer.Customer{Name: "Ana Rojas"}, nil)
		f.catalog.On("GetToolGroup", mock.Anything, toolGroupID).Return(&catalog.ToolGroup{Name: "Hammer"}, nil)

		view, err := f.svc.ApplyDamage(context.Background(), loanID, ApplyDamageRequest{Amount: 0})
		require.NoError(t, err)
		assert.Equal(t, StatusReturned, view.Status)
		f.assertAll(t)
	})

	t.Run("open loan", func(t *testing.T) {
		f := newFixture(t)
		f.expectLock(openLoanRow(fixedNow.Add(time.Hour)))
		f.dbMock.ExpectRollback()
		_, err := f.svc.ApplyDamage(context.Background(), loanID, ApplyDamageRequest{Amount: 10})
		assert.ErrorIs(t, err, apperror.ErrInvalidState)
	})
}

func TestListOverdue_CachesNamesPerCall(t *testing.T) {
	f := newFixture(t)
	rows := sqlmock.NewRows(loanCols)
	for i := int64(1); i <= 3; i++ {
		rows.AddRow(i, customerID, unitID+i, toolGroupID, fixedNow.Add(-96*time.Hour), fixedNow.Add(-24*time.Hour), nil,
			int64(3000), int64(0), int64(0), "ACTIVE", 1)
	}
	f.dbMock.ExpectQuery(regexp.QuoteMeta(`WHERE return_date IS NULL AND due_date < $1`)).
		WithArgs(fixedNow).
		WillReturnRows(rows)
	f.customers.On("GetCustomer", mock.Anything, customerID).Return(&customer.Customer{Name: "Ana Rojas"}, nil).Once()
	f.catalog.On("GetToolGroup", mock.Anything, toolGroupID).Return(&catalog.ToolGroup{Name: "Hammer"}, nil).Once()

	views, err := f.svc.ListOverdue(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 3)
	for _, v := range views {
		assert.Equal(t, StatusOverdue, v.EffectiveStatus)
		assert.Equal(t, StatusActive, v.Status)
		assert.Equal(t, "Ana Rojas", v.CustomerName)
	}
	f.assertAll(t)
}

func TestCustomerSummary(t *testing.T) {
	f := newFixture(t)
	f.dbMock.ExpectQuery(regexp.QuoteMeta(`FROM loans`)).
		WithArgs(customerID, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"open", "overdue", "fines", "damage"}).AddRow(2, 1, int64(500), int64(0)))

	summary, err := f.svc.CustomerSummary(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, &CustomerSummary{CustomerID: customerID, OpenLoans: 2, OverdueLoans: 1, UnpaidFines: 500}, summary)
}

func TestGetHistory_UnknownLoan(t *testing.T) {
	f := newFixture(t)
	f.dbMock.ExpectQuery(regexp.QuoteMeta(`FROM loan_events`)).
		WithArgs(loanID, "loan").
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_id", "aggregate_type", "event_type", "event_data", "metadata", "version", "created_at"}))

	_, err := f.svc.GetHistory(context.Background(), loanID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
