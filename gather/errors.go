package gather

import (
	"fmt"
)

// AllRejected is Any's aggregate error: every input rejected, or
// there were no inputs to begin with.  Reasons holds the rejection
// errors in input order.
type AllRejected struct {
	Reasons []error
}

func (e *AllRejected) Error() string {
	if len(e.Reasons) == 0 {
		return "no futures fulfilled"
	}
	return fmt.Sprintf("no futures fulfilled: %d rejected", len(e.Reasons))
}

// Unwrap exposes the reasons to errors.Is and errors.As.
func (e *AllRejected) Unwrap() []error {
	return e.Reasons
}
