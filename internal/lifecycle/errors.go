package lifecycle

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

// ErrTokenRequired is returned when a lifecycle call arrives without a
// capability token.
var ErrTokenRequired = eris.New("lifecycle: capability token required")

// InvalidStateError reports a transition attempted from a state that
// does not permit it.
type InvalidStateError struct {
	Key     model.AssignmentKey
	Current model.Status
	Action  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s assignment %s/%s/%s in status %q",
		e.Action, e.Key.OperationCode, e.Key.RuralPropertyID, e.Key.Operator, e.Current)
}

// AlreadyAssignedError reports an assign call against an assignment that
// has left the unassigned state.
type AlreadyAssignedError struct {
	Key     model.AssignmentKey
	Current model.Status
}

func (e *AlreadyAssignedError) Error() string {
	if e.Key.Operator != "" {
		return fmt.Sprintf("assignment %s/%s already assigned to %s (status %q)",
			e.Key.OperationCode, e.Key.RuralPropertyID, e.Key.Operator, e.Current)
	}
	return fmt.Sprintf("assignment %s/%s already assigned (status %q)",
		e.Key.OperationCode, e.Key.RuralPropertyID, e.Current)
}

// ActivityOpenError reports a start attempt while an unended activity
// already exists on the assignment.
type ActivityOpenError struct {
	Key        model.AssignmentKey
	ActivityID string
}

func (e *ActivityOpenError) Error() string {
	return fmt.Sprintf("assignment %s/%s already has open activity %s",
		e.Key.OperationCode, e.Key.RuralPropertyID, e.ActivityID)
}

// AlreadyEndedError reports an end attempt on an activity whose ended
// predicate is already true. Duplicate submissions from retried taps
// land here instead of silently re-applying.
type AlreadyEndedError struct {
	ActivityID string
}

func (e *AlreadyEndedError) Error() string {
	return fmt.Sprintf("activity %s already ended", e.ActivityID)
}

// ActivityNotFoundError reports an unknown activity id.
type ActivityNotFoundError struct {
	ActivityID string
}

func (e *ActivityNotFoundError) Error() string {
	return fmt.Sprintf("activity %s not found", e.ActivityID)
}

// ActivityNotEndedError reports an info append against an activity that
// is still open. Enrichment is append-only and only ever follows the
// end of the activity.
type ActivityNotEndedError struct {
	ActivityID string
}

func (e *ActivityNotEndedError) Error() string {
	return fmt.Sprintf("activity %s has not ended", e.ActivityID)
}
