package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: "loans_open_group_idx"}

	assert.True(t, IsUniqueViolation(dup))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert loan: %w", dup)))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("23505")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestUniqueViolation_ReturnsConstraint(t *testing.T) {
	name, ok := UniqueViolation(fmt.Errorf("insert loan: %w", &pq.Error{Code: "23505", Constraint: OpenLoanPerUnitIndex}))
	assert.True(t, ok)
	assert.Equal(t, OpenLoanPerUnitIndex, name)

	name, ok = UniqueViolation(&pq.Error{Code: "23503", Constraint: OpenLoanPerUnitIndex})
	assert.False(t, ok)
	assert.Empty(t, name)

	_, ok = UniqueViolation(nil)
	assert.False(t, ok)
}
