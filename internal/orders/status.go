package orders

import (
	"fmt"
	"slices"
	"strings"
)

// Status is the lifecycle state of an order. The set is closed.
type Status string

// Order statuses.
const (
	StatusCreated   Status = "Created"
	StatusPaid      Status = "Paid"
	StatusShipped   Status = "Shipped"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// transitions is the full order state graph. Terminal statuses map to nothing.
var transitions = map[Status][]Status{
	StatusCreated:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusCompleted},
	StatusCompleted: nil,
	StatusCancelled: nil,
}

// ParseStatus matches raw (trimmed, case-sensitive) against the known statuses.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%q: %w", raw, ErrUnknownStatus)
	}
	return s, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Next lists the statuses reachable from s in one step.
func (s Status) Next() []Status {
	return slices.Clone(transitions[s])
}

// CanTransitionTo reports whether target is a direct successor of s.
func (s Status) CanTransitionTo(target Status) bool {
	return slices.Contains(transitions[s], target)
}

// CheckAdminTransition validates an administrative move from current to target.
// Checks run in order: final state, no-op, then graph membership.
func CheckAdminTransition(current, target Status) error {
	if current.IsTerminal() {
		return fmt.Errorf("order is final (%s), status cannot be changed: %w", current, ErrOrderFinal)
	}
	if current == target {
		return fmt.Errorf("order already has status %s: %w", current, ErrNoOpStatus)
	}
	if !current.CanTransitionTo(target) {
		return fmt.Errorf("cannot change status from %s to %s: %w", current, target, ErrIllegalTransition)
	}
	return nil
}

// CheckCustomerCancel decides whether a customer may cancel an order in status current.
// alreadyCancelled is true when the request is an idempotent repeat.
func CheckCustomerCancel(current Status) (alreadyCancelled bool, err error) {
	switch current {
	case StatusCancelled:
		return true, nil
	case StatusShipped, StatusCompleted:
		return false, fmt.Errorf("order is %s and can no longer be cancelled: %w", current, ErrOrderFinal)
	}
	if !current.CanTransitionTo(StatusCancelled) {
		return false, fmt.Errorf("cannot change status from %s to %s: %w", current, StatusCancelled, ErrIllegalTransition)
	}
	return false, nil
}
