package model

// Status represents the lifecycle state of a worksheet, operation, or
// assignment. Worksheets and operations only ever occupy the
// pre-assignment states; the assignment machine owns the rest.
type Status string

const (
	// Pre-assignment states (worksheet / operation level).
	StatusCreated   Status = "created"
	StatusImported  Status = "imported"
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"

	// Assignment states.
	StatusUnassigned Status = "unassigned"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusImported, StatusPending, StatusScheduled,
		StatusUnassigned, StatusAssigned, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}
