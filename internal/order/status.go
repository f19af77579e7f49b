package order

import (
	"encoding/json"
	"fmt"
)

// Status tracks an order through its settlement lifecycle.
type Status int32

const (
	StatusInProgress Status = iota
	StatusCompleted
	StatusCancelled
	StatusDisputedWithMod
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "InProgress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	case StatusDisputedWithMod:
		return "DisputedWithMod"
	default:
		return "Unknown"
	}
}

// MarshalJSON encodes the status as its name, matching the persisted form.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "InProgress":
		*s = StatusInProgress
	case "Completed":
		*s = StatusCompleted
	case "Cancelled":
		*s = StatusCancelled
	case "DisputedWithMod":
		*s = StatusDisputedWithMod
	default:
		return fmt.Errorf("unknown order status %q", name)
	}
	return nil
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s != StatusInProgress
}

// CanTransitionTo validates state transitions
func (s Status) CanTransitionTo(next Status) bool {
	validTransitions := map[Status][]Status{
		StatusInProgress: {
			StatusCompleted,
			StatusCancelled,
			StatusDisputedWithMod,
		},
		// Completed, Cancelled and DisputedWithMod are terminal. Moderator
		// resolution of a dispute happens outside this core.
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}
	for _, allowedStatus := range allowed {
		if next == allowedStatus {
			return true
		}
	}
	return false
}
