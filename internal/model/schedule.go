package model

// ScheduleEvent is a read-only projection of a worksheet for calendar
// display. Date fields are "DD/MM/YYYY HH:mm"-compatible text; the date
// portion is whatever precedes the first whitespace.
type ScheduleEvent struct {
	WorksheetID int    `json:"worksheet_id"`
	StartDate   string `json:"event_start_date"`
	EndDate     string `json:"event_end_date,omitempty"`
	Location    string `json:"event_location,omitempty"`
	Status      Status `json:"event_status"`
}
