package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrActivityOpen is returned when inserting an activity would violate
// the one-open-activity-per-assignment constraint. Both backends enforce
// it with a partial unique index so concurrent starts cannot both land.
var ErrActivityOpen = eris.New("store: open activity exists")

// ErrWorksheetExists is returned when creating a worksheet whose id is
// already taken.
var ErrWorksheetExists = eris.New("store: worksheet already exists")

// AssignmentFilter specifies criteria for listing assignments.
type AssignmentFilter struct {
	WorksheetID   int
	OperationCode string
	Status        model.Status
}

// Store defines the persistence interface for worksheets, assignments,
// and activities. Every state-changing assignment/activity write is a
// compare-and-set: the caller names the state it observed, and the
// update applies only while that precondition still holds.
type Store interface {
	// Worksheets
	CreateWorksheet(ctx context.Context, ws model.Worksheet) error
	GetWorksheet(ctx context.Context, id int) (*model.Worksheet, error)
	ListWorksheets(ctx context.Context) ([]model.Worksheet, error)
	DeleteWorksheet(ctx context.Context, id int) error

	// Assignments
	GetAssignment(ctx context.Context, key model.AssignmentKey) (*model.Assignment, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.Assignment, error)
	// UpdateAssignmentCAS applies updated to the row identified by key,
	// but only while its status is still expect. Returns false on a miss.
	UpdateAssignmentCAS(ctx context.Context, key model.AssignmentKey, expect model.Status, updated model.Assignment) (bool, error)

	// Activities
	InsertActivity(ctx context.Context, key model.AssignmentKey, act model.Activity) error
	GetActivity(ctx context.Context, id string) (*model.Activity, model.AssignmentKey, error)
	// UpdateActivityCAS applies updated only while the stored end
	// timestamp, notes, GPS track, and photos still match expect.
	// Appends compare the fields they grow, so two interleaved appends
	// cannot both land; the loser re-reads. Returns false on a miss.
	UpdateActivityCAS(ctx context.Context, updated model.Activity, expect model.Activity) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
