// Package lifecycle implements the authoritative state model for
// operation assignments and their activities. Assignments move
// unassigned -> assigned -> in_progress -> completed; completed is
// terminal. Records may be mutated concurrently by other operators, so
// every transition is a guarded compare-and-set, never an unconditional
// write.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/ident"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/store"
)

const timestampFormat = "2006-01-02 15:04:05"

// Machine applies assignment lifecycle transitions through the store.
type Machine struct {
	store store.Store
	now   func() time.Time
}

// NewMachine creates a Machine backed by the given store.
func NewMachine(s store.Store) *Machine {
	return &Machine{store: s, now: time.Now}
}

// Assign binds an operator to an unassigned assignment.
func (m *Machine) Assign(ctx context.Context, tok model.Token, key model.AssignmentKey, operator string) (*model.Assignment, error) {
	if !tok.Valid() {
		return nil, ErrTokenRequired
	}
	if operator == "" {
		return nil, eris.New("lifecycle: operator is required")
	}

	a, err := m.store.GetAssignment(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if aerr := m.claimedBy(ctx, key); aerr != nil {
				return nil, aerr
			}
		}
		return nil, err
	}
	if err := CanAssign(a); err != nil {
		return nil, err
	}

	updated := *a
	updated.Operator = operator
	updated.Status = model.StatusAssigned

	ok, err := m.store.UpdateAssignmentCAS(ctx, a.AssignmentKey, model.StatusUnassigned, updated)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race: report against the state that won.
		fresh, err := m.store.GetAssignment(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				if aerr := m.claimedBy(ctx, key); aerr != nil {
					return nil, aerr
				}
			}
			return nil, err
		}
		if gerr := CanAssign(fresh); gerr != nil {
			return nil, gerr
		}
		return nil, &AlreadyAssignedError{Key: key, Current: fresh.Status}
	}

	zap.L().Info("lifecycle: operator assigned",
		zap.Int("worksheet", key.WorksheetID),
		zap.String("operation", key.OperationCode),
		zap.String("operator", operator),
	)
	return &updated, nil
}

// claimedBy looks for an operator-qualified row covering the same
// operation and parcel. A successful assign moves the seed row to a new
// key, so a raced assign would otherwise see a bare not-found.
func (m *Machine) claimedBy(ctx context.Context, key model.AssignmentKey) error {
	list, err := m.store.ListAssignments(ctx, store.AssignmentFilter{
		WorksheetID:   key.WorksheetID,
		OperationCode: key.OperationCode,
	})
	if err != nil {
		zap.L().Warn("lifecycle: resolve claimed assignment", zap.Error(err))
		return nil
	}
	for i := range list {
		a := &list[i]
		if a.RuralPropertyID == key.RuralPropertyID && a.PolygonID == key.PolygonID && a.Operator != "" {
			return &AlreadyAssignedError{Key: a.AssignmentKey, Current: a.Status}
		}
	}
	return nil
}

// StartActivity opens a new activity on the assignment. The first open
// activity moves the assignment from assigned to in_progress.
func (m *Machine) StartActivity(ctx context.Context, tok model.Token, key model.AssignmentKey, startTS string) (*model.Assignment, error) {
	if !tok.Valid() {
		return nil, ErrTokenRequired
	}

	a, err := m.store.GetAssignment(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := CanStartActivity(a); err != nil {
		return nil, err
	}

	if startTS == "" {
		startTS = m.now().UTC().Format(timestampFormat)
	}
	act := model.Activity{ID: ident.NewID(m.now()), StartDate: startTS}

	if err := m.store.InsertActivity(ctx, a.AssignmentKey, act); err != nil {
		if errors.Is(err, store.ErrActivityOpen) {
			openID := ""
			if fresh, ferr := m.store.GetAssignment(ctx, a.AssignmentKey); ferr == nil {
				if open := fresh.OpenActivity(); open != nil {
					openID = open.ID
				}
			}
			return nil, &ActivityOpenError{Key: a.AssignmentKey, ActivityID: openID}
		}
		return nil, err
	}

	if a.Status == model.StatusAssigned {
		updated := *a
		updated.Status = model.StatusInProgress
		if updated.StartDate == "" {
			updated.StartDate = startTS
		}
		ok, err := m.store.UpdateAssignmentCAS(ctx, a.AssignmentKey, model.StatusAssigned, updated)
		if err != nil {
			return nil, err
		}
		if !ok {
			fresh, err := m.store.GetAssignment(ctx, a.AssignmentKey)
			if err != nil {
				return nil, err
			}
			if fresh.Status != model.StatusInProgress {
				return nil, &InvalidStateError{Key: a.AssignmentKey, Current: fresh.Status, Action: "start activity on"}
			}
		}
	}

	zap.L().Info("lifecycle: activity started",
		zap.Int("worksheet", key.WorksheetID),
		zap.String("operation", key.OperationCode),
		zap.String("activity", act.ID),
	)
	return m.store.GetAssignment(ctx, a.AssignmentKey)
}

// EndActivity closes an open activity, appending any notes, GPS track,
// and photos to the values already recorded. With final set, the
// assignment transitions to completed and accepts no further activities.
func (m *Machine) EndActivity(ctx context.Context, tok model.Token, key model.AssignmentKey, activityID, endTS string, notes, gpsTrack string, photos []string, final bool) (*model.Assignment, error) {
	if !tok.Valid() {
		return nil, ErrTokenRequired
	}
	id, err := ident.Decode(activityID)
	if err != nil {
		return nil, err
	}
	if endTS == "" {
		endTS = m.now().UTC().Format(timestampFormat)
	}
	if !model.EndedTimestamp(endTS) {
		return nil, eris.Errorf("lifecycle: invalid end timestamp %q", endTS)
	}

	a, err := m.store.GetAssignment(ctx, key)
	if err != nil {
		return nil, err
	}
	act, err := CanEndActivity(a, id)
	if err != nil {
		return nil, err
	}

	updated := *act
	updated.EndDate = endTS
	updated.Notes = appendText(act.Notes, notes)
	updated.GPSTrack = appendText(act.GPSTrack, gpsTrack)
	updated.Photos = append(append([]string(nil), act.Photos...), photos...)
	updated.Final = final

	ok, err := m.store.UpdateActivityCAS(ctx, updated, *act)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent end won the compare-and-set.
		return nil, &AlreadyEndedError{ActivityID: id}
	}

	if final {
		done := *a
		done.Status = model.StatusCompleted
		done.EndDate = endTS
		ok, err := m.store.UpdateAssignmentCAS(ctx, a.AssignmentKey, a.Status, done)
		if err != nil {
			return nil, err
		}
		if !ok {
			fresh, err := m.store.GetAssignment(ctx, a.AssignmentKey)
			if err != nil {
				return nil, err
			}
			if fresh.Status != model.StatusCompleted {
				return nil, &InvalidStateError{Key: a.AssignmentKey, Current: fresh.Status, Action: "complete"}
			}
		}
	}

	zap.L().Info("lifecycle: activity ended",
		zap.Int("worksheet", key.WorksheetID),
		zap.String("activity", id),
		zap.Bool("final", final),
	)
	return m.store.GetAssignment(ctx, a.AssignmentKey)
}

// AddActivityInfo appends notes, GPS track, or photos to an activity
// that has already ended. Enrichment is append-only: existing values are
// never replaced.
func (m *Machine) AddActivityInfo(ctx context.Context, tok model.Token, activityID string, notes, gpsTrack string, photos []string) (*model.Activity, error) {
	if !tok.Valid() {
		return nil, ErrTokenRequired
	}
	id, err := ident.Decode(activityID)
	if err != nil {
		return nil, err
	}

	// The compare-and-set matches the notes, GPS track, and photos the
	// append was computed from, so a concurrent append forces a miss
	// here and the loser re-reads and re-appends.
	for attempt := 0; attempt < 3; attempt++ {
		act, _, err := m.store.GetActivity(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ActivityNotFoundError{ActivityID: id}
		}
		if err != nil {
			return nil, err
		}
		if err := CanAppendInfo(act); err != nil {
			return nil, err
		}

		updated := *act
		updated.Notes = appendText(act.Notes, notes)
		updated.GPSTrack = appendText(act.GPSTrack, gpsTrack)
		updated.Photos = append(append([]string(nil), act.Photos...), photos...)

		ok, err := m.store.UpdateActivityCAS(ctx, updated, *act)
		if err != nil {
			return nil, err
		}
		if ok {
			return &updated, nil
		}
	}
	return nil, eris.Errorf("lifecycle: activity %s modified concurrently", id)
}

func appendText(existing, extra string) string {
	if extra == "" {
		return existing
	}
	if existing == "" {
		return extra
	}
	return existing + "\n" + extra
}
