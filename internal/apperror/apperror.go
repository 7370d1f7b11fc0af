// Package apperror holds the error taxonomy shared by every service.
package apperror

import "errors"

var (
	// Validation errors.
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidMovementType = errors.New("invalid movement type")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrMissingField        = errors.New("missing required field")

	// Eligibility errors.
	ErrCustomerIneligible = errors.New("customer is not eligible for a loan")
	ErrLoanLimitExceeded  = errors.New("loan limit exceeded")
	ErrDuplicateToolGroup = errors.New("customer already has an open loan for this tool group")
	ErrNoUnitsAvailable   = errors.New("no units available")

	// State errors.
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")

	ErrRateLimited = errors.New("rate limit exceeded")
	ErrUnavailable = errors.New("collaborator unavailable")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidRequest, "INVALID_REQUEST"},
	{ErrInvalidMovementType, "INVALID_MOVEMENT_TYPE"},
	{ErrInvalidStatus, "INVALID_STATUS"},
	{ErrMissingField, "MISSING_FIELD"},
	{ErrCustomerIneligible, "CUSTOMER_INELIGIBLE"},
	{ErrLoanLimitExceeded, "LOAN_LIMIT_EXCEEDED"},
	{ErrDuplicateToolGroup, "DUPLICATE_TOOL_GROUP"},
	{ErrNoUnitsAvailable, "NO_UNITS_AVAILABLE"},
	{ErrNotFound, "NOT_FOUND"},
	{ErrInvalidState, "INVALID_STATE"},
	{ErrRateLimited, "RATE_LIMITED"},
	{ErrUnavailable, "UNAVAILABLE"},
}

// CodeInternal is returned by Code for errors outside the taxonomy.
const CodeInternal = "INTERNAL"

// Code returns the wire code of the first sentinel err wraps.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// FromCode maps a wire code back to its sentinel, or nil if the code is unknown.
func FromCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
