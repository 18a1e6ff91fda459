package domain

import (
	"fmt"
	"strings"
)

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError reports malformed or out-of-range input on a single field.
type ValidationError struct {
	Entity EntityType
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Reason)
}

// ReferentialError reports a delete blocked by dependents or a write against
// a missing foreign key.
type ReferentialError struct {
	Entity     EntityType
	ID         string
	Dependents []string
}

func (e ReferentialError) Error() string {
	if len(e.Dependents) == 0 {
		return fmt.Sprintf("%s %s is referenced and cannot be removed", e.Entity, e.ID)
	}
	return fmt.Sprintf("%s %s is referenced by %s", e.Entity, e.ID, strings.Join(e.Dependents, ", "))
}

// CapacityError reports a per-kind cap exceeded, e.g. the custom field limit.
type CapacityError struct {
	Entity EntityType
	Limit  int
}

func (e CapacityError) Error() string {
	return fmt.Sprintf("%s limit of %d reached", e.Entity, e.Limit)
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
