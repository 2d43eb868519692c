package lifecycle

import (
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

// Guards are pure precondition checks with no side effects. The machine
// evaluates them against the assignment as read from the store, applies
// the transition as a compare-and-set, and re-evaluates on a CAS miss so
// callers always receive the precise error kind for the state that beat
// them.

// CanAssign checks the unassigned -> assigned transition.
func CanAssign(a *model.Assignment) error {
	if a.Status != model.StatusUnassigned {
		return &AlreadyAssignedError{Key: a.AssignmentKey, Current: a.Status}
	}
	return nil
}

// CanStartActivity checks that a new activity may be opened. The
// assignment must have been assigned (first start moves it to
// in_progress; later starts are legal while it stays there), and no
// activity may currently be open.
func CanStartActivity(a *model.Assignment) error {
	switch a.Status {
	case model.StatusAssigned, model.StatusInProgress:
	default:
		return &InvalidStateError{Key: a.AssignmentKey, Current: a.Status, Action: "start activity on"}
	}
	if open := a.OpenActivity(); open != nil {
		return &ActivityOpenError{Key: a.AssignmentKey, ActivityID: open.ID}
	}
	return nil
}

// CanEndActivity locates the target activity and checks that it is
// currently open. The ended predicate is the defensive multi-alias one
// from the model package: upstream sources disagree on the field name,
// so a single canonical check would let duplicates through.
func CanEndActivity(a *model.Assignment, activityID string) (*model.Activity, error) {
	act := a.FindActivity(activityID)
	if act == nil {
		return nil, &ActivityNotFoundError{ActivityID: activityID}
	}
	if act.Ended() {
		return nil, &AlreadyEndedError{ActivityID: activityID}
	}
	return act, nil
}

// CanAppendInfo checks that an activity accepts append-only enrichment,
// which requires it to have ended first.
func CanAppendInfo(act *model.Activity) error {
	if !act.Ended() {
		return &ActivityNotEndedError{ActivityID: act.ID}
	}
	return nil
}
