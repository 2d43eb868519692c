package model

// AssignmentKey identifies an assignment: one operation bound to one
// parcel and one field operator.
type AssignmentKey struct {
	WorksheetID     int    `json:"worksheet_id"`
	OperationCode   string `json:"operation_code"`
	RuralPropertyID string `json:"rural_property_id"`
	PolygonID       int    `json:"polygon_id"`
	Operator        string `json:"operator"`
}

// Assignment is the unit the lifecycle machine governs: a parcel/operator
// pairing with its ordered activity log.
type Assignment struct {
	AssignmentKey
	Status     Status     `json:"status"`
	StartDate  string     `json:"start_date,omitempty"`
	EndDate    string     `json:"end_date,omitempty"`
	Activities []Activity `json:"activities"`
}

// OpenActivity returns the assignment's currently open activity, or nil
// if every activity has ended.
func (a *Assignment) OpenActivity() *Activity {
	for i := range a.Activities {
		if !a.Activities[i].Ended() {
			return &a.Activities[i]
		}
	}
	return nil
}

// FindActivity returns the activity with the given id, or nil.
func (a *Assignment) FindActivity(id string) *Activity {
	for i := range a.Activities {
		if a.Activities[i].ID == id {
			return &a.Activities[i]
		}
	}
	return nil
}
