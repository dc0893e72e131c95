package lifecycle

import (
	"fmt"

	"escrowflow/profile"
	"escrowflow/transaction"
)

// InvalidTransitionError reports an event fired from the wrong stage or by
// the wrong actor. The attempt is rejected with no state change; the caller
// must re-render current state rather than assume success.
type InvalidTransitionError struct {
	Event transaction.Event
	Stage transaction.Stage
	Role  profile.Role
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("lifecycle: %s not permitted for %s at stage %s", e.Event, e.Role, e.Stage)
}

// ValidationError reports a missing or malformed required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lifecycle: invalid %s: %s", e.Field, e.Reason)
}
