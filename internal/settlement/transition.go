package settlement

import "fmt"

// transitions lists the allowed status changes of a statement. Completed is
// terminal.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusCompleted},
	StatusCompleted: {},
}

// ValidateTransition checks whether moving from current to target is
// allowed.
func ValidateTransition(current, target Status) error {
	allowed, ok := transitions[current]
	if !ok {
		return fmt.Errorf("unknown statement status: %s", current)
	}
	for _, s := range allowed {
		if s == target {
			return nil
		}
	}
	return fmt.Errorf("statement status transition from %q to %q is not allowed", current, target)
}

// Complete marks a Draft statement Completed.
func (s *Statement) Complete() error {
	if err := ValidateTransition(s.Status, StatusCompleted); err != nil {
		return err
	}
	s.Status = StatusCompleted
	return nil
}
